package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"smartbiz/log"
)

var (
	ErrNotLoggedIn        = errors.New("not logged in")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// APIError is a non-2xx reply from the backend.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Detail)
}

// DecodeError builds an APIError from a failed response body, reading the
// "detail", "error" or "message" field when present.
func DecodeError(status int, body []byte) *APIError {
	var fields struct {
		Detail  any    `json:"detail"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	e := &APIError{Status: status}
	if json.Unmarshal(body, &fields) == nil {
		switch d := fields.Detail.(type) {
		case string:
			e.Detail = d
		case nil:
		default:
			// Validation errors arrive as a list of objects.
			if b, err := json.Marshal(d); err == nil {
				e.Detail = string(b)
			}
		}
		if e.Detail == "" {
			e.Detail = fields.Error
		}
		if e.Detail == "" {
			e.Detail = fields.Message
		}
	}
	return e
}

type Client struct {
	base  string
	http  *http.Client
	store *TokenStore
}

func NewClient(serverURL string, timeout time.Duration, store *TokenStore) *Client {
	return &Client{
		base:  strings.TrimRight(serverURL, "/"),
		http:  &http.Client{Timeout: timeout},
		store: store,
	}
}

func (c *Client) Store() *TokenStore { return c.store }

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contacting server: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return DecodeError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// Login exchanges credentials for a token and stores it.
func (c *Client) Login(ctx context.Context, email, password string) (Token, error) {
	if err := validateEmail(email); err != nil {
		return Token{}, err
	}
	var tok Token
	err := c.post(ctx, "/api/auth/login", map[string]string{"email": email, "password": password}, &tok)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		return Token{}, ErrInvalidCredentials
	}
	if err != nil {
		return Token{}, err
	}
	if tok.AccessToken == "" {
		return Token{}, errors.New("server returned an empty token")
	}
	if err := c.store.Save(tok); err != nil {
		return Token{}, fmt.Errorf("saving token: %w", err)
	}
	log.Info("login")
	return tok, nil
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, name, email, password string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("name must not be empty")
	}
	if err := validateEmail(email); err != nil {
		return err
	}
	if len(password) < 6 {
		return errors.New("password must be at least 6 characters")
	}
	return c.post(ctx, "/api/auth/register", map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	}, nil)
}

func (c *Client) Logout() error {
	log.Info("logout")
	return c.store.Clear()
}

func validateEmail(email string) error {
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("invalid email %q", email)
	}
	return nil
}
