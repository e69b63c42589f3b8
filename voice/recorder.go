package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"smartbiz/audio"
	"smartbiz/log"
)

var (
	ErrNotIdle          = errors.New("recorder is not idle")
	ErrNotRecording     = errors.New("recorder is not recording")
	ErrPermissionDenied = errors.New("microphone permission not granted")
	ErrHardware         = errors.New("microphone failure")
	ErrTornDown         = errors.New("recording torn down")
)

// Capability reports the current microphone permission.
type Capability interface {
	Capability() audio.Permission
}

// Recorder owns the microphone for one capture session at a time. The
// handle it acquires never leaves the Recorder; callers only see the
// resulting artifact.
type Recorder struct {
	mic  audio.Microphone
	perm Capability
	cfg  audio.CaptureConfig

	// op serializes Start and Stop so a Stop never races an acquisition.
	op sync.Mutex

	mu        sync.Mutex
	state     State
	startedAt time.Time
	handle    audio.Handle
	held      bool
	epoch     uint64
	observer  func(State)
}

func NewRecorder(mic audio.Microphone, perm Capability, cfg audio.CaptureConfig) *Recorder {
	return &Recorder{mic: mic, perm: perm, cfg: cfg, state: StateIdle}
}

// OnStateChange registers fn to receive every state the Recorder enters.
// fn runs outside the Recorder's lock.
func (r *Recorder) OnStateChange(fn func(State)) {
	r.mu.Lock()
	r.observer = fn
	r.mu.Unlock()
}

func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// StartedAt returns when the current session began, zero when Idle.
func (r *Recorder) StartedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startedAt
}

// fire applies event under r.mu and returns the new state.
func (r *Recorder) fire(event Event) (State, bool) {
	next, err := Transition(r.state, event)
	if err != nil {
		log.Warnf("recorder: %v", err)
		return r.state, false
	}
	r.state = next
	if next == StateIdle {
		r.startedAt = time.Time{}
	}
	return next, true
}

func (r *Recorder) notify(states ...State) {
	r.mu.Lock()
	fn := r.observer
	r.mu.Unlock()
	if fn == nil {
		return
	}
	for _, s := range states {
		fn(s)
	}
}

// Start acquires the microphone and enters Recording. It returns
// ErrNotIdle or ErrPermissionDenied without side effects, and an error
// wrapping ErrHardware after the Recorder has recovered to Idle.
func (r *Recorder) Start(ctx context.Context) error {
	r.op.Lock()
	defer r.op.Unlock()

	r.mu.Lock()
	if r.state != StateIdle {
		r.mu.Unlock()
		return ErrNotIdle
	}
	if r.perm.Capability() != audio.PermissionGranted {
		r.mu.Unlock()
		return ErrPermissionDenied
	}
	r.fire(EventStart)
	r.startedAt = time.Now()
	epoch := r.epoch
	r.mu.Unlock()
	r.notify(StateRecording)

	h, err := r.mic.StartCapture(ctx, r.cfg)

	r.mu.Lock()
	if r.epoch != epoch {
		r.mu.Unlock()
		if err == nil {
			r.mic.ForceRelease(h)
			log.CaptureReleased(h.ID(), "teardown_during_start")
		}
		return ErrTornDown
	}
	if err != nil {
		r.fire(EventFail)
		r.fire(EventReset)
		r.mu.Unlock()
		log.Errorf("capture start: %v", err)
		r.notify(StateError, StateIdle)
		return fmt.Errorf("%w: %w", ErrHardware, err)
	}
	r.handle = h
	r.held = true
	r.mu.Unlock()

	log.CaptureStart(h.ID(), r.cfg.Encoding, r.cfg.SampleRate, r.cfg.Channels)
	return nil
}

// Stop finalizes the capture, releasing the microphone before returning the
// artifact. The caller owns the artifact.
func (r *Recorder) Stop(ctx context.Context) (*audio.Artifact, error) {
	r.op.Lock()
	defer r.op.Unlock()

	r.mu.Lock()
	if r.state != StateRecording || !r.held {
		r.mu.Unlock()
		return nil, ErrNotRecording
	}
	r.fire(EventStop)
	h := r.handle
	epoch := r.epoch
	r.mu.Unlock()
	r.notify(StateFinalizing)

	a, err := r.mic.StopCapture(ctx, h)

	r.mu.Lock()
	if r.epoch != epoch {
		r.mu.Unlock()
		if a != nil {
			a.Discard()
		}
		return nil, ErrTornDown
	}
	r.held = false
	if err != nil {
		r.fire(EventFail)
		r.mu.Unlock()
		r.notify(StateError)

		r.mic.ForceRelease(h)
		log.Errorf("capture stop: %v", err)

		r.mu.Lock()
		reset := r.epoch == epoch && r.state == StateError
		if reset {
			r.fire(EventReset)
		}
		r.mu.Unlock()
		if reset {
			r.notify(StateIdle)
		}
		return nil, fmt.Errorf("%w: %w", ErrHardware, err)
	}
	r.fire(EventFinalized)
	r.mu.Unlock()
	r.notify(StateIdle)

	log.CaptureStop(h.ID(), a.Frames, a.Duration, a.Size)
	return a, nil
}

// ForceTeardown returns the Recorder to Idle from any state and releases a
// held microphone. A Start or Stop in progress observes the teardown and
// drops its result. Safe to call any number of times.
func (r *Recorder) ForceTeardown() {
	r.mu.Lock()
	r.epoch++
	prev := r.state
	if prev == StateIdle {
		r.mu.Unlock()
		return
	}
	h, held := r.handle, r.held
	r.held = false
	r.handle = audio.Handle{}
	r.fire(EventCancel)
	r.mu.Unlock()

	if held {
		r.mic.ForceRelease(h)
		log.CaptureReleased(h.ID(), "teardown")
	}
	r.notify(StateIdle)
}
