// Package beep plays the short cues that accompany push-to-talk gestures.
package beep

import (
	"math"
	"sync"
)

const sampleRate = 44100

type tone struct {
	freq     float64
	duration float64
	volume   float64
	decay    float64
}

var (
	// Press: high pitch, short.
	pressTone = tone{freq: 1200, duration: 0.2, volume: 0.5, decay: 60}
	// Release: medium pitch, slightly longer.
	releaseTone = tone{freq: 900, duration: 0.2, volume: 0.5, decay: 40}
	// Success: two rising ticks.
	successLow  = tone{freq: 880, duration: 0.06, volume: 0.45, decay: 35}
	successHigh = tone{freq: 1320, duration: 0.15, volume: 0.45, decay: 35}
	// Failure: low double beep.
	failureTone = tone{freq: 350, duration: 0.08, volume: 0.6, decay: 30}
)

type cue int

const (
	cuePress cue = iota
	cueRelease
	cueSuccess
	cueFailure
)

// Cues renders each cue once and plays it on the platform output.
// A disabled Cues is silent.
type Cues struct {
	enabled bool
	once    sync.Once
	samples map[cue][]int16
}

func New(enabled bool) *Cues {
	return &Cues{enabled: enabled}
}

func (c *Cues) Press()   { c.play(cuePress) }
func (c *Cues) Release() { c.play(cueRelease) }
func (c *Cues) Success() { c.play(cueSuccess) }
func (c *Cues) Failure() { c.play(cueFailure) }

func (c *Cues) play(k cue) {
	if c == nil || !c.enabled {
		return
	}
	c.once.Do(c.render)
	go playSamples(c.samples[k])
}

func (c *Cues) render() {
	c.samples = map[cue][]int16{
		cuePress:   generateTick(sampleRate, pressTone),
		cueRelease: generateTick(sampleRate, releaseTone),
		cueSuccess: join(sampleRate, 0.03, successLow, successHigh),
		cueFailure: join(sampleRate, 0.05, failureTone, failureTone),
	}
}

// generateTick renders a decaying mono sine.
func generateTick(rate int, t tone) []int16 {
	n := int(float64(rate) * t.duration)
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		at := float64(i) / float64(rate)
		envelope := math.Exp(-at * t.decay)
		samples[i] = int16(math.Sin(2*math.Pi*t.freq*at) * 32767 * t.volume * envelope)
	}
	return samples
}

// join renders tones back to back with gap seconds of silence between them.
func join(rate int, gap float64, tones ...tone) []int16 {
	silence := make([]int16, int(float64(rate)*gap))
	var out []int16
	for i, t := range tones {
		if i > 0 {
			out = append(out, silence...)
		}
		out = append(out, generateTick(rate, t)...)
	}
	return out
}
