// Package doctor runs non-interactive diagnostics for the voice client.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"smartbiz/audio"
	"smartbiz/auth"
	"smartbiz/clipboard"
	"smartbiz/config"
	"smartbiz/hotkey"
)

type Status int

const (
	Pass Status = iota
	Warn
	Fail
)

func (s Status) String() string {
	return [...]string{"PASS", "WARN", "FAIL"}[s]
}

// Check is one diagnostic. Run returns a short message for the report.
type Check struct {
	Name string
	Run  func(ctx context.Context) (Status, string)
}

type TokenSource interface {
	Token() (string, error)
}

// Deps are the collaborators the standard checks inspect. A nil field
// skips its check.
type Deps struct {
	Config    *config.Config
	ConfigErr error
	Mic       audio.Microphone
	Tokens    TokenSource
	HTTP      *http.Client
	// SampleFor is how long the microphone check records.
	SampleFor time.Duration
}

func Checks(d Deps) []Check {
	checks := []Check{{Name: "Configuration", Run: d.checkConfig}}
	if d.Mic != nil {
		checks = append(checks, Check{Name: "Microphone", Run: d.checkMic})
	}
	if d.Config != nil {
		checks = append(checks, Check{Name: "Server", Run: d.checkServer})
	}
	if d.Tokens != nil {
		checks = append(checks, Check{Name: "Login", Run: d.checkToken})
	}
	checks = append(checks,
		Check{Name: "Hotkey", Run: checkHotkey},
		Check{Name: "Clipboard", Run: checkClipboard},
	)
	return checks
}

// Run executes checks in order, printing each result, and returns an exit
// code: 0 when nothing failed, 1 otherwise.
func Run(ctx context.Context, w io.Writer, checks []Check) int {
	fmt.Fprintln(w, "smartbiz doctor - system diagnostics")
	fmt.Fprintln(w, strings.Repeat("=", 36))

	failed := 0
	for i, c := range checks {
		fmt.Fprintf(w, "\n[%d/%d] %s\n", i+1, len(checks), c.Name)
		cctx, cancel := context.WithTimeout(ctx, 15*time.Second)
		status, msg := c.Run(cctx)
		cancel()
		fmt.Fprintf(w, "  %s: %s\n", status, msg)
		if status == Fail {
			failed++
		}
	}

	fmt.Fprintln(w)
	if failed == 0 {
		fmt.Fprintln(w, "All checks passed!")
		return 0
	}
	fmt.Fprintf(w, "%d check(s) failed. See details above.\n", failed)
	return 1
}

func (d Deps) checkConfig(context.Context) (Status, string) {
	if d.ConfigErr != nil {
		return Fail, d.ConfigErr.Error()
	}
	if d.Config == nil {
		return Fail, "no configuration loaded"
	}
	if err := config.Validate(d.Config); err != nil {
		return Fail, err.Error()
	}
	src := d.Config.Path
	if src == "" {
		src = "defaults"
	}
	return Pass, fmt.Sprintf("server %s, %s at %d Hz (%s)", d.Config.ServerURL, d.Config.Format, d.Config.SampleRate, src)
}

func (d Deps) checkMic(ctx context.Context) (Status, string) {
	perm, err := d.Mic.RequestPermission(ctx)
	if err != nil || perm != audio.PermissionGranted {
		if err == nil {
			err = fmt.Errorf("permission %s", perm)
		}
		return Fail, fmt.Sprintf("microphone unavailable: %v", err)
	}

	cfg := audio.DefaultCaptureConfig()
	if d.Config != nil {
		cfg = d.Config.Capture()
	}
	h, err := d.Mic.StartCapture(ctx, cfg)
	if err != nil {
		return Fail, fmt.Sprintf("cannot start capture: %v", err)
	}
	sample := d.SampleFor
	if sample <= 0 {
		sample = time.Second
	}
	select {
	case <-time.After(sample):
	case <-ctx.Done():
		d.Mic.ForceRelease(h)
		return Fail, ctx.Err().Error()
	}
	a, err := d.Mic.StopCapture(ctx, h)
	if err != nil {
		d.Mic.ForceRelease(h)
		return Fail, fmt.Sprintf("cannot stop capture: %v", err)
	}
	defer a.Discard()
	if a.Frames == 0 {
		return Warn, "capture produced no audio"
	}
	return Pass, fmt.Sprintf("recorded %.1fs (%.1f KB %s)", a.Duration.Seconds(), float64(a.Size)/1024, a.MimeType)
}

func (d Deps) checkServer(ctx context.Context) (Status, string) {
	client := d.HTTP
	if client == nil {
		client = &http.Client{Timeout: d.Config.RequestTimeout}
	}
	url := strings.TrimRight(d.Config.ServerURL, "/") + "/stock"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Fail, err.Error()
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return Fail, fmt.Sprintf("cannot reach %s: %v", d.Config.ServerURL, err)
	}
	resp.Body.Close()
	elapsed := time.Since(start).Round(time.Millisecond)
	if resp.StatusCode >= 500 {
		return Fail, fmt.Sprintf("%s answered %d", d.Config.ServerURL, resp.StatusCode)
	}
	return Pass, fmt.Sprintf("%s reachable (HTTP %d in %s)", d.Config.ServerURL, resp.StatusCode, elapsed)
}

func (d Deps) checkToken(context.Context) (Status, string) {
	_, err := d.Tokens.Token()
	if errors.Is(err, auth.ErrNotLoggedIn) {
		return Warn, "not logged in; run 'smartbiz login' to use stock commands"
	}
	if err != nil {
		return Fail, err.Error()
	}
	return Pass, "session token present"
}

func checkHotkey(context.Context) (Status, string) {
	msg, err := hotkey.Diagnose()
	if err != nil {
		return Warn, err.Error() + "; use the terminal key instead"
	}
	return Pass, msg
}

func checkClipboard(context.Context) (Status, string) {
	if !clipboard.Available() {
		return Warn, clipboard.ErrUnavailable.Error()
	}
	return Pass, "clipboard available"
}
