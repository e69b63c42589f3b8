package encoder

import (
	"fmt"
	"time"
)

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

// Format describes the PCM stream handed to an encoder.
type Format struct {
	SampleRate int
	Channels   int
}

func DefaultFormat() Format {
	return Format{SampleRate: SampleRate, Channels: Channels}
}

type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
	MimeType() string
	Ext() string
	AddEncodeTime(d time.Duration)
	EncodeTime() time.Duration
}

// New returns the encoder registered for encoding ("wav" or "flac").
func New(encoding string, f Format) (Encoder, error) {
	if f.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", f.SampleRate)
	}
	if f.Channels < 1 || f.Channels > 2 {
		return nil, fmt.Errorf("unsupported channel count %d", f.Channels)
	}
	switch encoding {
	case "", "wav":
		return NewWav(f)
	case "flac":
		return NewFlac(f)
	default:
		return nil, fmt.Errorf("unknown encoding %q", encoding)
	}
}
