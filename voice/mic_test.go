package voice

import (
	"context"
	"errors"
	"sync"
	"testing"

	"smartbiz/audio"
)

// fakeMic records every acquire and release so tests can check that each
// handle is released exactly once.
type fakeMic struct {
	t *testing.T

	mu        sync.Mutex
	perm      audio.Permission
	permErr   error
	permCalls int
	startErr  error
	stopErr   error
	next      uint64
	held      map[audio.Handle]bool
	releases  map[audio.Handle]int
	artifacts []*audio.Artifact

	// startGate and stopGate, when set, block the hardware call until closed.
	startGate chan struct{}
	stopGate  chan struct{}
	entered   chan struct{}
}

func newFakeMic(t *testing.T) *fakeMic {
	return &fakeMic{
		t:        t,
		perm:     audio.PermissionGranted,
		held:     make(map[audio.Handle]bool),
		releases: make(map[audio.Handle]int),
		entered:  make(chan struct{}, 8),
	}
}

func (m *fakeMic) RequestPermission(ctx context.Context) (audio.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.permCalls++
	return m.perm, m.permErr
}

func (m *fakeMic) StartCapture(ctx context.Context, cfg audio.CaptureConfig) (audio.Handle, error) {
	m.mu.Lock()
	gate := m.startGate
	m.mu.Unlock()
	if gate != nil {
		m.entered <- struct{}{}
		<-gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return audio.Handle{}, m.startErr
	}
	if len(m.held) > 0 {
		return audio.Handle{}, audio.ErrBusy
	}
	m.next++
	h := audio.HandleFor(m.next)
	m.held[h] = true
	return h, nil
}

func (m *fakeMic) StopCapture(ctx context.Context, h audio.Handle) (*audio.Artifact, error) {
	m.mu.Lock()
	gate := m.stopGate
	m.mu.Unlock()
	if gate != nil {
		m.entered <- struct{}{}
		<-gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.held[h] {
		return nil, audio.ErrUnknownHandle
	}
	delete(m.held, h)
	m.releases[h]++
	if m.stopErr != nil {
		return nil, m.stopErr
	}
	a, err := audio.WriteArtifact(m.t.TempDir(), "wav", "audio/wav", []byte("RIFFfake"))
	if err != nil {
		return nil, err
	}
	m.artifacts = append(m.artifacts, a)
	return a, nil
}

func (m *fakeMic) ForceRelease(h audio.Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.held[h] {
		return
	}
	delete(m.held, h)
	m.releases[h]++
}

func (m *fakeMic) Held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.held)
}

// releasedOnce fails the test when any handle was released other than once.
func (m *fakeMic) releasedOnce(t *testing.T) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for h, n := range m.releases {
		if n != 1 {
			t.Errorf("handle %d released %d times", h.ID(), n)
		}
	}
	if uint64(len(m.releases)) != m.next {
		t.Errorf("acquired %d handles, released %d", m.next, len(m.releases))
	}
}

var errBoom = errors.New("boom")
