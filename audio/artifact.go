package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Artifact is an encoded recording on disk. It is consumed by exactly one
// upload and then discarded.
type Artifact struct {
	MimeType string
	Frames   uint64
	Duration time.Duration
	Size     int64

	path      string
	mu        sync.Mutex
	discarded bool
}

// WriteArtifact stores data as voice-<uuid>.<ext> under dir (os.TempDir when
// empty).
func WriteArtifact(dir, ext, mimeType string, data []byte) (*Artifact, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, fmt.Sprintf("voice-%s.%s", uuid.NewString(), ext))
	if err := os.WriteFile(path, data, 0600); err != nil {
		return nil, fmt.Errorf("writing artifact: %w", err)
	}
	return &Artifact{MimeType: mimeType, Size: int64(len(data)), path: path}, nil
}

func (a *Artifact) Path() string     { return a.path }
func (a *Artifact) Filename() string { return filepath.Base(a.path) }

func (a *Artifact) Open() (io.ReadCloser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.discarded {
		return nil, errors.New("artifact already discarded")
	}
	return os.Open(a.path)
}

// Discard removes the backing file. Safe to call more than once.
func (a *Artifact) Discard() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.discarded {
		return nil
	}
	a.discarded = true
	if err := os.Remove(a.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (a *Artifact) Discarded() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.discarded
}
