package audio

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func pcmOf(samples ...int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(s))
	}
	return b
}

func TestLevel(t *testing.T) {
	require.Zero(t, Level(nil))
	require.Zero(t, Level(pcmOf(0, 0, 0)))
	require.InDelta(t, 0.5, Level(pcmOf(16384, -16384)), 1e-9)
	require.InDelta(t, 1.0, Level(pcmOf(-32768)), 1e-9)
}

func feed(m *SilenceMonitor, level float64, n int) []SilenceEvent {
	var evs []SilenceEvent
	for range n {
		if ev := m.Tick(level); ev != SilenceNone {
			evs = append(evs, ev)
		}
	}
	return evs
}

func TestSilenceMonitorWarnsOnce(t *testing.T) {
	m := NewSilenceMonitor(10, 0)
	require.Empty(t, feed(m, 0, 9))
	require.Equal(t, []SilenceEvent{SilenceWarn}, feed(m, 0, 100))
	require.True(t, m.Warned())
}

func TestSilenceMonitorClears(t *testing.T) {
	m := NewSilenceMonitor(10, 0)
	feed(m, 0, 10)
	require.Equal(t, []SilenceEvent{SilenceClear}, feed(m, 0.3, 3))
	require.False(t, m.Warned())
}

func TestSilenceMonitorNoWarnWithSpeech(t *testing.T) {
	m := NewSilenceMonitor(10, 30)
	for i := range 200 {
		level := 0.0
		if i%4 == 0 {
			level = 0.2
		}
		require.Equal(t, SilenceNone, m.Tick(level), "tick %d", i)
	}
}

func TestSilenceMonitorAutoStop(t *testing.T) {
	m := NewSilenceMonitor(10, 30)
	evs := feed(m, 0, 30)
	require.Equal(t, []SilenceEvent{SilenceWarn, SilenceAutoStop}, evs)
}

func TestSilenceMonitorNoAutoStopWhenDisabled(t *testing.T) {
	m := NewSilenceMonitor(10, 0)
	require.NotContains(t, feed(m, 0, 500), SilenceAutoStop)
}
