package hotkey

import (
	"sync"
	"sync/atomic"
	"time"
)

type Gesture int

const (
	GesturePress Gesture = iota
	GestureRelease
)

func (g Gesture) String() string {
	if g == GesturePress {
		return "press"
	}
	return "release"
}

// Hybrid turns raw key events into press and release gestures. Holding the
// combination longer than longPress records until the key comes up; a
// shorter tap keeps recording until the next tap. A zero longPress disables
// tapping so every keyup releases.
type Hybrid struct {
	out    chan Gesture
	toggle atomic.Bool
	stop   chan struct{}
	once   sync.Once
}

func NewHybrid(hk Hotkey, longPress time.Duration) *Hybrid {
	h := &Hybrid{
		out:  make(chan Gesture, 2),
		stop: make(chan struct{}),
	}
	go h.run(hk, longPress)
	return h
}

func (h *Hybrid) Gestures() <-chan Gesture { return h.out }

// IsToggle reports whether the current recording was started by a tap.
func (h *Hybrid) IsToggle() bool { return h.toggle.Load() }

func (h *Hybrid) Close() {
	h.once.Do(func() { close(h.stop) })
}

func (h *Hybrid) emit(g Gesture) bool {
	select {
	case h.out <- g:
		return true
	case <-h.stop:
		return false
	}
}

func (h *Hybrid) wait(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	case <-h.stop:
		return false
	}
}

func (h *Hybrid) run(hk Hotkey, longPress time.Duration) {
	for {
		if !h.wait(hk.Keydown()) || !h.emit(GesturePress) {
			return
		}
		if longPress <= 0 {
			if !h.wait(hk.Keyup()) || !h.emit(GestureRelease) {
				return
			}
			continue
		}

		timer := time.NewTimer(longPress)
		select {
		case <-timer.C:
			if !h.wait(hk.Keyup()) {
				return
			}
		case <-hk.Keyup():
			timer.Stop()
			h.toggle.Store(true)
			// Next tap ends the recording on its release.
			if !h.wait(hk.Keydown()) || !h.wait(hk.Keyup()) {
				return
			}
		case <-h.stop:
			timer.Stop()
			return
		}
		h.toggle.Store(false)
		if !h.emit(GestureRelease) {
			return
		}
	}
}
