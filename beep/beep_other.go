//go:build !linux

package beep

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"smartbiz/log"
)

var (
	initOnce sync.Once
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device

	// Read from the device callback.
	playing atomic.Pointer[[]byte]
	playPos atomic.Uint32
	playMu  sync.Mutex
)

func initDevice() error {
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = sampleRate

	var err error
	device, err = malgo.InitDevice(malgoCtx.Context, config, malgo.DeviceCallbacks{Data: dataCallback})
	return err
}

func initOutput() {
	var err error
	malgoCtx, err = malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		log.Warnf("malgo playback: %v", err)
		return
	}
	if err := initDevice(); err != nil {
		log.Warnf("malgo playback: %v", err)
		malgoCtx.Uninit()
		malgoCtx = nil
	}
}

func dataCallback(out, _ []byte, frameCount uint32) {
	want := frameCount * 2
	buf := playing.Load()
	var n uint32
	if buf != nil {
		pos := playPos.Load()
		if remaining := uint32(len(*buf)) - pos; remaining > 0 {
			n = min(want, remaining)
			copy(out[:n], (*buf)[pos:pos+n])
			playPos.Store(pos + n)
		} else {
			playing.Store(nil)
		}
	}
	clear(out[n:want])
}

func playSamples(samples []int16) {
	initOnce.Do(initOutput)
	if malgoCtx == nil || len(samples) == 0 {
		return
	}
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}

	playMu.Lock()
	defer playMu.Unlock()

	device.Stop()
	playPos.Store(0)
	playing.Store(&pcm)

	if err := device.Start(); err != nil {
		// The device goes stale across sleep and wake; rebuild it once.
		device.Uninit()
		if err := initDevice(); err != nil {
			playing.Store(nil)
			return
		}
		if err := device.Start(); err != nil {
			playing.Store(nil)
		}
	}
}
