package encoder

import (
	"bytes"
	"testing"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/require"
)

func TestWavEncoderRoundTrip(t *testing.T) {
	enc, err := New("wav", DefaultFormat())
	require.NoError(t, err)

	samples := sine(SampleRate/2, 1)
	require.NoError(t, enc.EncodeBlock(samples[:BlockSize]))
	require.NoError(t, enc.EncodeBlock(samples[BlockSize:]))
	require.NoError(t, enc.Close())

	require.Equal(t, uint64(len(samples)), enc.TotalFrames())
	require.Equal(t, "audio/wav", enc.MimeType())
	require.Equal(t, "wav", enc.Ext())

	data := enc.Bytes()
	require.Equal(t, "RIFF", string(data[:4]))
	require.Equal(t, "WAVE", string(data[8:12]))

	dec := wav.NewDecoder(bytes.NewReader(data))
	require.True(t, dec.IsValidFile())
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	require.Equal(t, SampleRate, buf.Format.SampleRate)
	require.Equal(t, 1, buf.Format.NumChannels)
	require.Len(t, buf.Data, len(samples))
	require.Equal(t, int(samples[100]), buf.Data[100])
}

func TestWavEncoderEmptyHasHeader(t *testing.T) {
	enc, err := NewWav(DefaultFormat())
	require.NoError(t, err)
	require.NoError(t, enc.Close())

	data := enc.Bytes()
	require.GreaterOrEqual(t, len(data), 44)
	require.Equal(t, "RIFF", string(data[:4]))
	require.Zero(t, enc.TotalFrames())
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New("mp3", DefaultFormat())
	require.Error(t, err)

	_, err = New("wav", Format{SampleRate: 0, Channels: 1})
	require.Error(t, err)

	_, err = New("flac", Format{SampleRate: SampleRate, Channels: 6})
	require.Error(t, err)

	enc, err := New("", DefaultFormat())
	require.NoError(t, err)
	require.Equal(t, "audio/wav", enc.MimeType())
}

func TestSeekBufferOverwrite(t *testing.T) {
	var b seekBuffer
	_, _ = b.Write([]byte("abcdef"))
	_, err := b.Seek(2, 0)
	require.NoError(t, err)
	_, _ = b.Write([]byte("XY"))
	require.Equal(t, "abXYef", string(b.Bytes()))

	_, err = b.Seek(-1, 0)
	require.Error(t, err)
}
