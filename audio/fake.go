package audio

import (
	"errors"
	"os"
	"sync"
	"time"
)

const fakeFrameSize = 1024

var errFakeDenied = errors.New("fake: microphone access denied")

// FakeContext replays 16-bit PCM from a WAV file instead of a real device.
type FakeContext struct {
	pcm        []byte
	realtime   bool
	sampleRate int

	// Deny makes Devices fail, which Mic reports as a denied permission.
	Deny bool
	// StartErr is returned by every capture's Start.
	StartErr error

	mu       sync.Mutex
	captures int
}

func NewFakeContext(wavPath string, realtime bool) (*FakeContext, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, err
	}
	if len(data) > WAVHeaderSize {
		data = data[WAVHeaderSize:]
	}
	return NewFakeContextPCM(data, realtime), nil
}

func NewFakeContextPCM(pcm []byte, realtime bool) *FakeContext {
	return &FakeContext{pcm: pcm, realtime: realtime, sampleRate: 16000}
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	if f.Deny {
		return nil, errFakeDenied
	}
	return []DeviceInfo{{ID: "fake", Name: "Fake Microphone"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, config DeviceConfig) (CaptureDevice, error) {
	f.mu.Lock()
	f.captures++
	f.mu.Unlock()
	rate := f.sampleRate
	if config.SampleRate > 0 {
		rate = int(config.SampleRate)
	}
	return &FakeCapture{
		pcm:        f.pcm,
		realtime:   f.realtime,
		sampleRate: rate,
		startErr:   f.StartErr,
		audioDone:  make(chan struct{}),
	}, nil
}

// Captures returns how many capture devices were opened.
func (f *FakeContext) Captures() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.captures
}

type FakeCapture struct {
	pcm        []byte
	realtime   bool
	sampleRate int
	startErr   error
	audioDone  chan struct{}

	mu       sync.Mutex
	cb       DataCallback
	stopOnce sync.Once
	stopCh   chan struct{}
	feedDone chan struct{}
}

// AudioDone is closed once the whole recording has been delivered.
func (f *FakeCapture) AudioDone() <-chan struct{} { return f.audioDone }

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) callback() DataCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

func (f *FakeCapture) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})

	chunk := fakeFrameSize * 2
	var interval time.Duration
	if f.realtime {
		interval = time.Duration(fakeFrameSize) * time.Second / time.Duration(f.sampleRate)
		if len(f.pcm) == 0 {
			close(f.audioDone)
		}
	} else {
		// Deliver the whole file before Start returns.
		if cb := f.callback(); cb != nil {
			for pos := 0; pos < len(f.pcm); pos += chunk {
				end := min(pos+chunk, len(f.pcm))
				cb(append([]byte(nil), f.pcm[pos:end]...), uint32((end-pos)/2))
			}
		}
		close(f.audioDone)
		interval = time.Millisecond
	}

	go func() {
		defer close(f.feedDone)
		pos := len(f.pcm)
		if f.realtime {
			pos = 0
		}
		silence := make([]byte, chunk)
		for {
			select {
			case <-f.stopCh:
				return
			case <-time.After(interval):
			}
			cb := f.callback()
			if cb == nil {
				continue
			}
			if pos < len(f.pcm) {
				end := min(pos+chunk, len(f.pcm))
				cb(append([]byte(nil), f.pcm[pos:end]...), uint32((end-pos)/2))
				pos = end
				if pos == len(f.pcm) {
					close(f.audioDone)
				}
				continue
			}
			cb(silence, fakeFrameSize)
		}
	}()
	return nil
}

func (f *FakeCapture) Stop() {
	if f.stopCh == nil {
		return
	}
	f.stopOnce.Do(func() { close(f.stopCh) })
	<-f.feedDone
}

func (f *FakeCapture) Close() { f.Stop() }
