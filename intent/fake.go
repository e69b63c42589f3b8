package intent

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"smartbiz/audio"
)

// FakeUploader returns scripted results without touching the network. It
// shares the real Uploader's single-flight and discard rules.
type FakeUploader struct {
	mu      sync.Mutex
	results []UploadResult
	calls   int
	mimes   []string

	// Delay holds each upload open; Gate, when non-nil, holds it until closed.
	Delay time.Duration
	Gate  chan struct{}

	inFlight atomic.Bool
}

func NewFake(results ...UploadResult) *FakeUploader {
	return &FakeUploader{results: results}
}

func (f *FakeUploader) Push(r UploadResult) {
	f.mu.Lock()
	f.results = append(f.results, r)
	f.mu.Unlock()
}

func (f *FakeUploader) Upload(ctx context.Context, a *audio.Artifact) (UploadResult, error) {
	if !f.inFlight.CompareAndSwap(false, true) {
		a.Discard()
		return UploadResult{}, ErrUploadInFlight
	}
	defer f.inFlight.Store(false)
	defer a.Discard()

	f.mu.Lock()
	f.calls++
	f.mimes = append(f.mimes, a.MimeType)
	f.mu.Unlock()

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return Failure(KindNetwork), nil
		}
	}
	if f.Gate != nil {
		select {
		case <-f.Gate:
		case <-ctx.Done():
			return Failure(KindNetwork), nil
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.results) == 0 {
		return UploadResult{ResponseText: "ok"}, nil
	}
	r := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return r, nil
}

func (f *FakeUploader) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FakeUploader) InFlight() bool { return f.inFlight.Load() }
