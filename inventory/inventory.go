package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"smartbiz/auth"
)

// LowStockThreshold is the level below which an item counts as low.
const LowStockThreshold = 40

var ErrUnauthorized = errors.New("session expired, log in again")

type Item struct {
	Name      string  `json:"item"`
	NameLocal string  `json:"item_nepali"`
	Stock     float64 `json:"current_stock"`
	Unit      string  `json:"unit"`
}

func (it Item) Low() bool { return it.Stock < LowStockThreshold }

type stockResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Inventory []Item `json:"inventory"`
}

// TokenSource supplies the bearer token for authenticated requests.
type TokenSource interface {
	Token() (string, error)
}

type Client struct {
	base   string
	http   *http.Client
	tokens TokenSource
}

func NewClient(serverURL string, timeout time.Duration, tokens TokenSource) *Client {
	return &Client{
		base:   strings.TrimRight(serverURL, "/"),
		http:   &http.Client{Timeout: timeout},
		tokens: tokens,
	}
}

// List fetches the full inventory.
func (c *Client) List(ctx context.Context) ([]Item, error) {
	body, _, err := c.get(ctx, "/stock", "application/json")
	if err != nil {
		return nil, err
	}

	var out stockResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decoding inventory: %w", err)
	}
	if out.Status == "error" {
		return nil, fmt.Errorf("server error: %s", out.Message)
	}
	return out.Inventory, nil
}

// get performs an authenticated GET and returns the body of a 2xx reply.
func (c *Client) get(ctx context.Context, path, accept string) ([]byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", accept)
	if c.tokens != nil {
		tok, err := c.tokens.Token()
		if err != nil {
			return nil, nil, err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("contacting server: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, nil, ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, auth.DecodeError(resp.StatusCode, body)
	}
	return body, resp.Header, nil
}

// Search returns items whose English or local name contains q, ignoring
// case. An empty query matches everything.
func Search(items []Item, q string) []Item {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return items
	}
	var out []Item
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.Name), q) || strings.Contains(strings.ToLower(it.NameLocal), q) {
			out = append(out, it)
		}
	}
	return out
}

type Summary struct {
	Total    int
	LowStock int
	Low      []Item
}

// Dashboard summarizes the inventory, lowest stock first in Low.
func Dashboard(items []Item) Summary {
	s := Summary{Total: len(items)}
	for _, it := range items {
		if it.Low() {
			s.Low = append(s.Low, it)
		}
	}
	sort.SliceStable(s.Low, func(i, j int) bool { return s.Low[i].Stock < s.Low[j].Stock })
	s.LowStock = len(s.Low)
	return s
}

// FormatStock prints whole quantities without a fractional part.
func FormatStock(it Item) string {
	return strings.TrimSpace(fmt.Sprintf("%s %s", formatQty(it.Stock), it.Unit))
}

func formatQty(q float64) string {
	if q == float64(int64(q)) {
		return fmt.Sprintf("%d", int64(q))
	}
	return fmt.Sprintf("%g", q)
}
