// Package clipboard copies command results to the system clipboard.
package clipboard

import (
	"errors"
	"strings"

	cb "github.com/atotto/clipboard"
)

var ErrUnavailable = errors.New("no clipboard utility available (install xclip, xsel or wl-clipboard)")

// Available reports whether the platform clipboard can be used.
func Available() bool {
	return !cb.Unsupported
}

func Read() (string, error) {
	if !Available() {
		return "", ErrUnavailable
	}
	return cb.ReadAll()
}

// Copy writes text to the clipboard. Empty text is rejected so a stale
// selection is never overwritten with nothing.
func Copy(text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("nothing to copy")
	}
	if !Available() {
		return ErrUnavailable
	}
	return cb.WriteAll(text)
}
