package audio

import (
	"encoding/binary"
	"math"
)

// Level returns the RMS of 16-bit little-endian PCM scaled to 0..1.
func Level(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}

type SilenceEvent int

const (
	SilenceNone SilenceEvent = iota
	// SilenceWarn fires once when the recent window holds almost no speech.
	SilenceWarn
	// SilenceClear fires when speech resumes after a warning.
	SilenceClear
	// SilenceAutoStop fires when an open-ended recording has been silent
	// for the whole stop window.
	SilenceAutoStop
)

// SilenceMonitor classifies a stream of level samples taken at a fixed
// interval.
type SilenceMonitor struct {
	// Threshold is the level above which a sample counts as speech.
	Threshold float64

	warnN  int
	stopN  int
	speech []bool
	ticks  int
	warned bool
}

const (
	speechLevel      = 0.02
	warnSpeechRatio  = 0.10
	clearSpeechRatio = 0.25
)

// NewSilenceMonitor warns after warnAfter and auto-stops after stopAfter,
// both expressed in samples. A stopAfter of zero never auto-stops.
func NewSilenceMonitor(warnAfter, stopAfter int) *SilenceMonitor {
	size := max(warnAfter, stopAfter, 1)
	return &SilenceMonitor{
		Threshold: speechLevel,
		warnN:     warnAfter,
		stopN:     stopAfter,
		speech:    make([]bool, size),
	}
}

// ratio is the share of speech among the last n samples.
func (m *SilenceMonitor) ratio(n int) float64 {
	n = min(n, m.ticks)
	if n == 0 {
		return 1
	}
	count := 0
	for i := 1; i <= n; i++ {
		if m.speech[(m.ticks-i)%len(m.speech)] {
			count++
		}
	}
	return float64(count) / float64(n)
}

func (m *SilenceMonitor) Tick(level float64) SilenceEvent {
	m.speech[m.ticks%len(m.speech)] = level >= m.Threshold
	m.ticks++

	warnRatio := m.ratio(m.warnN)
	switch {
	case !m.warned && m.ticks >= m.warnN && warnRatio < warnSpeechRatio:
		m.warned = true
		return SilenceWarn
	case m.warned && warnRatio >= clearSpeechRatio:
		m.warned = false
		return SilenceClear
	case m.stopN > 0 && m.ticks >= m.stopN && m.ratio(m.stopN) < warnSpeechRatio:
		return SilenceAutoStop
	}
	return SilenceNone
}

// Warned reports whether a warning is active.
func (m *SilenceMonitor) Warned() bool { return m.warned }
