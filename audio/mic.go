package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"smartbiz/encoder"
)

// Mic implements Microphone over a platform Context. It holds at most one
// capture at a time.
type Mic struct {
	ctx    Context
	device *DeviceInfo
	dir    string

	mu     sync.Mutex
	nextID uint64
	active map[uint64]*capture

	// level holds the float64 bits of the latest input level.
	level atomic.Uint64
}

func NewMic(ctx Context, device *DeviceInfo, artifactDir string) *Mic {
	return &Mic{
		ctx:    ctx,
		device: device,
		dir:    artifactDir,
		active: make(map[uint64]*capture),
	}
}

func (m *Mic) RequestPermission(ctx context.Context) (Permission, error) {
	if err := ctx.Err(); err != nil {
		return PermissionUnknown, err
	}
	devices, err := m.ctx.Devices()
	if err != nil {
		return PermissionDenied, fmt.Errorf("enumerating devices: %w", err)
	}
	if len(devices) == 0 {
		return PermissionDenied, ErrNoDevices
	}
	return PermissionGranted, nil
}

func (m *Mic) StartCapture(ctx context.Context, cfg CaptureConfig) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return Handle{}, err
	}
	enc, err := encoder.New(cfg.Encoding, encoder.Format{SampleRate: cfg.SampleRate, Channels: cfg.Channels})
	if err != nil {
		return Handle{}, err
	}

	m.mu.Lock()
	if len(m.active) > 0 {
		m.mu.Unlock()
		return Handle{}, ErrBusy
	}
	m.nextID++
	id := m.nextID
	c := newCapture(enc, cfg.SampleRate, cfg.Channels)
	m.active[id] = c
	m.mu.Unlock()

	dev, err := m.ctx.NewCapture(m.device, DeviceConfig{
		SampleRate: uint32(cfg.SampleRate),
		Channels:   uint32(cfg.Channels),
	})
	if err == nil {
		dev.SetCallback(func(data []byte, _ uint32) {
			m.level.Store(math.Float64bits(Level(data)))
			c.feed(data)
		})
		if err = dev.Start(); err != nil {
			dev.ClearCallback()
			dev.Close()
		}
	}
	if err != nil {
		m.mu.Lock()
		delete(m.active, id)
		m.mu.Unlock()
		c.abort()
		return Handle{}, fmt.Errorf("starting capture: %w", err)
	}

	m.mu.Lock()
	c.dev = dev
	m.mu.Unlock()
	return Handle{id: id}, nil
}

// StopCapture stops the device, releases it and writes the encoded artifact.
// The handle is released even when encoding fails.
func (m *Mic) StopCapture(ctx context.Context, h Handle) (*Artifact, error) {
	c := m.take(h)
	if c == nil {
		return nil, ErrUnknownHandle
	}
	c.release()
	m.level.Store(0)

	data, err := c.finish()
	if err != nil {
		return nil, fmt.Errorf("encoding capture: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a, err := WriteArtifact(m.dir, c.enc.Ext(), c.enc.MimeType(), data)
	if err != nil {
		return nil, err
	}
	a.Frames = c.enc.TotalFrames()
	a.Duration = c.duration()
	return a, nil
}

func (m *Mic) ForceRelease(h Handle) {
	c := m.take(h)
	if c == nil {
		return
	}
	c.release()
	c.abort()
	m.level.Store(0)
}

// Level returns the input level of the most recent audio block, 0 when
// nothing is being captured.
func (m *Mic) Level() float64 {
	return math.Float64frombits(m.level.Load())
}

// Active reports the number of handles currently held.
func (m *Mic) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

func (m *Mic) take(h Handle) *capture {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.active[h.id]
	if !ok {
		return nil
	}
	delete(m.active, h.id)
	return c
}

type capture struct {
	enc        encoder.Encoder
	sampleRate int
	channels   int
	dev        CaptureDevice
	blockChan  chan []int16
	encodeDone chan struct{}

	bufMu     sync.Mutex
	sampleBuf []int16
	closed    bool
}

func newCapture(enc encoder.Encoder, sampleRate, channels int) *capture {
	c := &capture{
		enc:        enc,
		sampleRate: sampleRate,
		channels:   channels,
		blockChan:  make(chan []int16, 64),
		encodeDone: make(chan struct{}),
	}
	go func() {
		defer close(c.encodeDone)
		for block := range c.blockChan {
			start := time.Now()
			c.enc.EncodeBlock(block)
			c.enc.AddEncodeTime(time.Since(start))
		}
	}()
	return c
}

func (c *capture) feed(pcm []byte) {
	blockLen := encoder.BlockSize * c.channels

	c.bufMu.Lock()
	defer c.bufMu.Unlock()
	if c.closed {
		return
	}
	for i := 0; i+1 < len(pcm); i += 2 {
		c.sampleBuf = append(c.sampleBuf, int16(binary.LittleEndian.Uint16(pcm[i:])))
	}
	for len(c.sampleBuf) >= blockLen {
		block := make([]int16, blockLen)
		copy(block, c.sampleBuf[:blockLen])
		c.sampleBuf = c.sampleBuf[blockLen:]
		c.blockChan <- block
	}
}

func (c *capture) release() {
	if c.dev == nil {
		return
	}
	c.dev.Stop()
	c.dev.ClearCallback()
	c.dev.Close()
}

// finish flushes buffered samples and closes the encoder.
func (c *capture) finish() ([]byte, error) {
	c.bufMu.Lock()
	if !c.closed {
		if n := len(c.sampleBuf) - len(c.sampleBuf)%c.channels; n > 0 {
			partial := make([]int16, n)
			copy(partial, c.sampleBuf[:n])
			c.blockChan <- partial
		}
		c.sampleBuf = nil
		c.closed = true
		close(c.blockChan)
	}
	c.bufMu.Unlock()
	<-c.encodeDone

	if err := c.enc.Close(); err != nil {
		return nil, err
	}
	return c.enc.Bytes(), nil
}

func (c *capture) abort() {
	c.bufMu.Lock()
	if !c.closed {
		c.closed = true
		c.sampleBuf = nil
		close(c.blockChan)
	}
	c.bufMu.Unlock()
	<-c.encodeDone
}

func (c *capture) duration() time.Duration {
	return time.Duration(c.enc.TotalFrames()) * time.Second / time.Duration(c.sampleRate)
}
