package encoder

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

type WavEncoder struct {
	buf         seekBuffer
	enc         *wav.Encoder
	format      Format
	totalFrames uint64
	wroteData   bool
	encodeTime  time.Duration
	mu          sync.Mutex
}

func NewWav(f Format) (*WavEncoder, error) {
	e := &WavEncoder{format: f}
	e.enc = wav.NewEncoder(&e.buf, f.SampleRate, BitsPerSample, f.Channels, wavFormatPCM)
	return e, nil
}

func (e *WavEncoder) EncodeBlock(block []int16) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	data := make([]int, len(block))
	for i, s := range block {
		data[i] = int(s)
	}
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: e.format.Channels,
			SampleRate:  e.format.SampleRate,
		},
		Data:           data,
		SourceBitDepth: BitsPerSample,
	}
	if err := e.enc.Write(buf); err != nil {
		return fmt.Errorf("writing wav samples: %w", err)
	}
	e.wroteData = true
	e.totalFrames += uint64(len(block) / e.format.Channels)
	return nil
}

func (e *WavEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	// The header is only emitted on the first write.
	if !e.wroteData {
		if err := e.enc.Write(&audio.IntBuffer{
			Format:         &audio.Format{NumChannels: e.format.Channels, SampleRate: e.format.SampleRate},
			SourceBitDepth: BitsPerSample,
		}); err != nil {
			return fmt.Errorf("writing wav header: %w", err)
		}
		e.wroteData = true
	}
	return e.enc.Close()
}

func (e *WavEncoder) Bytes() []byte      { return e.buf.Bytes() }
func (e *WavEncoder) TotalFrames() uint64 { return e.totalFrames }
func (e *WavEncoder) MimeType() string    { return "audio/wav" }
func (e *WavEncoder) Ext() string         { return "wav" }

func (e *WavEncoder) AddEncodeTime(d time.Duration) {
	e.mu.Lock()
	e.encodeTime += d
	e.mu.Unlock()
}

func (e *WavEncoder) EncodeTime() time.Duration {
	return e.encodeTime
}

// seekBuffer is an in-memory io.WriteSeeker; the wav encoder seeks back to
// patch chunk sizes on Close.
type seekBuffer struct {
	data []byte
	pos  int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	end := b.pos + len(p)
	if end > len(b.data) {
		b.data = append(b.data, make([]byte, end-len(b.data))...)
	}
	copy(b.data[b.pos:end], p)
	b.pos = end
	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(b.pos) + offset
	case io.SeekEnd:
		abs = int64(len(b.data)) + offset
	default:
		return 0, errors.New("seekBuffer: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("seekBuffer: negative position")
	}
	b.pos = int(abs)
	return abs, nil
}

func (b *seekBuffer) Bytes() []byte { return b.data }
