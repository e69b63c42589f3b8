package voice

import (
	"context"
	"sync"

	"smartbiz/audio"
	"smartbiz/log"
)

// PermissionGate asks the platform for microphone access once per mount and
// remembers the answer until Reset.
type PermissionGate struct {
	mic audio.Microphone

	query sync.Mutex // serializes platform queries

	mu      sync.Mutex
	state   audio.Permission
	lastErr error
}

func NewPermissionGate(mic audio.Microphone) *PermissionGate {
	return &PermissionGate{mic: mic}
}

// RequestCapability queries the platform unless a previous call since the
// last Reset already produced an answer. A cancelled ctx leaves the gate
// unanswered.
func (g *PermissionGate) RequestCapability(ctx context.Context) audio.Permission {
	g.query.Lock()
	defer g.query.Unlock()

	if p := g.Capability(); p != audio.PermissionUnknown {
		return p
	}

	p, err := g.mic.RequestPermission(ctx)
	if ctx.Err() != nil {
		return audio.PermissionUnknown
	}
	if err != nil || p != audio.PermissionGranted {
		p = audio.PermissionDenied
		reason := "denied"
		if err != nil {
			reason = err.Error()
		}
		log.PermissionDenied(reason)
	}

	g.mu.Lock()
	g.state = p
	g.lastErr = err
	g.mu.Unlock()
	return p
}

func (g *PermissionGate) Capability() audio.Permission {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Err returns the platform error behind the last denial, if any.
func (g *PermissionGate) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastErr
}

func (g *PermissionGate) Reset() {
	g.mu.Lock()
	g.state = audio.PermissionUnknown
	g.lastErr = nil
	g.mu.Unlock()
}
