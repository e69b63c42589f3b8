package intent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"smartbiz/audio"
	"smartbiz/log"
)

const DefaultVoicePath = "/process-voice"

var ErrUploadInFlight = errors.New("an upload is already in progress")

// TokenSource supplies a bearer token for authenticated requests.
type TokenSource interface {
	Token() (string, error)
}

type Config struct {
	ServerURL string
	VoicePath string
	Timeout   time.Duration
	// Auth, when set, adds "Authorization: Bearer <token>" to every upload.
	Auth TokenSource
}

// Uploader sends one audio artifact per call to the intent endpoint.
// At most one upload runs at a time.
type Uploader struct {
	client   *TracedClient
	endpoint string
	auth     TokenSource
	inFlight atomic.Bool
}

func NewUploader(cfg Config) (*Uploader, error) {
	endpoint, err := joinURL(cfg.ServerURL, cfg.VoicePath)
	if err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Uploader{
		client:   NewTracedClient(timeout),
		endpoint: endpoint,
		auth:     cfg.Auth,
	}, nil
}

func joinURL(base, path string) (string, error) {
	if path == "" {
		path = DefaultVoicePath
	}
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid server url %q: scheme must be http or https", base)
	}
	return u.String() + "/" + strings.TrimLeft(path, "/"), nil
}

func (u *Uploader) Endpoint() string { return u.endpoint }
func (u *Uploader) InFlight() bool   { return u.inFlight.Load() }

// Upload posts the artifact and maps the reply. The artifact is discarded
// before Upload returns, including when it is rejected with
// ErrUploadInFlight. Every failure other than rejection is reported through
// UploadResult.ErrorKind.
func (u *Uploader) Upload(ctx context.Context, a *audio.Artifact) (UploadResult, error) {
	if !u.inFlight.CompareAndSwap(false, true) {
		a.Discard()
		return UploadResult{}, ErrUploadInFlight
	}
	defer u.inFlight.Store(false)
	defer func() {
		if err := a.Discard(); err != nil {
			log.Warnf("discard artifact: %v", err)
		}
	}()

	body, contentType, err := encodeArtifact(a)
	if err != nil {
		log.Errorf("read artifact: %v", err)
		return Failure(KindHardware), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, body)
	if err != nil {
		log.Errorf("build upload request: %v", err)
		return Failure(KindNetwork), nil
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if u.auth != nil {
		token, err := u.auth.Token()
		if err != nil {
			log.Warnf("voice upload without token: %v", err)
		} else if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := u.client.Do(req)
	if err != nil {
		log.Errorf("voice upload: %v", err)
		result := Failure(KindNetwork)
		u.logUpload(a, result, &NetworkMetrics{})
		return result, nil
	}

	result := parseResponse(resp.StatusCode, resp.Body)
	u.logUpload(a, result, resp.Metrics)
	return result, nil
}

func (u *Uploader) logUpload(a *audio.Artifact, r UploadResult, m *NetworkMetrics) {
	log.Upload(log.UploadMetrics{
		Encoding:     a.MimeType,
		AudioS:       a.Duration.Seconds(),
		SizeKB:       float64(a.Size) / 1024,
		ConnWaitMs:   ms(m.ConnWait),
		DNSMs:        ms(m.DNS),
		TCPMs:        ms(m.TCP),
		TLSMs:        ms(m.TLS),
		ReqHeadersMs: ms(m.ReqHeaders),
		ReqBodyMs:    ms(m.ReqBody),
		TTFBMs:       ms(m.TTFB),
		DownloadMs:   ms(m.Download),
		NetworkMs:    ms(m.Sum()),
		TotalMs:      ms(m.Total),
		ConnReused:   m.ConnReused,
		TLSProtocol:  m.TLSProtocol,
		Status:       r.Status,
		ErrorKind:    r.ErrorKind.String(),
	})
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// encodeArtifact builds a multipart body with a single "file" part carrying
// the artifact's MIME type.
func encodeArtifact(a *audio.Artifact) (io.Reader, string, error) {
	f, err := a.Open()
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, a.Filename()))
	h.Set("Content-Type", a.MimeType)
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &body, writer.FormDataContentType(), nil
}
