package beep

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateTickDecays(t *testing.T) {
	s := generateTick(sampleRate, pressTone)
	require.Len(t, s, int(sampleRate*pressTone.duration))
	require.Zero(t, s[0])

	peak := func(xs []int16) int16 {
		var m int16
		for _, x := range xs {
			if x > m {
				m = x
			}
		}
		return m
	}
	head := peak(s[:len(s)/4])
	tail := peak(s[len(s)*3/4:])
	require.Greater(t, head, tail)
}

func TestJoinInsertsGap(t *testing.T) {
	one := generateTick(sampleRate, failureTone)
	gap := int(sampleRate * 0.05)
	out := join(sampleRate, 0.05, failureTone, failureTone)
	require.Len(t, out, 2*len(one)+gap)
	for _, x := range out[len(one) : len(one)+gap] {
		require.Zero(t, x)
	}
}

func TestDisabledCuesAreSilent(t *testing.T) {
	c := New(false)
	c.Press()
	c.Release()
	c.Success()
	c.Failure()
	require.Nil(t, c.samples)

	var nilCues *Cues
	nilCues.Press()
}
