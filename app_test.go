package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"smartbiz/audio"
	"smartbiz/hotkey"
	"smartbiz/intent"
	"smartbiz/voice"
)

type levelRecorder struct {
	mu     sync.Mutex
	levels int
	warned []bool
}

func (l *levelRecorder) Level(float64, time.Duration) {
	l.mu.Lock()
	l.levels++
	l.mu.Unlock()
}

func (l *levelRecorder) SilenceWarning(on bool) {
	l.mu.Lock()
	l.warned = append(l.warned, on)
	l.mu.Unlock()
}

func (l *levelRecorder) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.levels
}

func startDrive(t *testing.T, up voice.Dispatcher) (*voice.Screen, chan command, *levelRecorder) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	mic := audio.NewMic(audio.NewFakeContextPCM(make([]byte, 32000), false), nil, t.TempDir())
	screen := voice.NewScreen(mic, up, audio.DefaultCaptureConfig())
	screen.Mount(ctx)

	cmds := make(chan command, 4)
	levels := &levelRecorder{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		drive(ctx, screen, mic, cmds, levels, func() bool { return true })
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		screen.Unmount()
	})
	return screen, cmds, levels
}

func TestDriveToggle(t *testing.T) {
	up := intent.NewFake()
	screen, cmds, levels := startDrive(t, up)

	cmds <- cmdToggle
	require.Eventually(t, func() bool { return screen.State() == voice.StateRecording }, time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return levels.count() > 0 }, time.Second, 10*time.Millisecond)

	cmds <- cmdToggle
	require.Eventually(t, func() bool { return up.Calls() == 1 }, time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return !screen.Uploading() }, time.Second, 10*time.Millisecond)
	require.Equal(t, voice.StateIdle, screen.State())
}

func TestDrivePressRelease(t *testing.T) {
	up := intent.NewFake()
	screen, cmds, _ := startDrive(t, up)

	cmds <- cmdRelease
	cmds <- cmdPress
	require.Eventually(t, func() bool { return screen.State() == voice.StateRecording }, time.Second, 10*time.Millisecond)
	cmds <- cmdPress
	cmds <- cmdRelease
	require.Eventually(t, func() bool { return up.Calls() == 1 }, time.Second, 10*time.Millisecond)
}

func TestDriveRemountKeepsIdle(t *testing.T) {
	screen, cmds, _ := startDrive(t, intent.NewFake())

	cmds <- cmdPress
	require.Eventually(t, func() bool { return screen.State() == voice.StateRecording }, time.Second, 10*time.Millisecond)
	cmds <- cmdRemount
	require.Eventually(t, func() bool { return screen.State() == voice.StateIdle }, time.Second, 10*time.Millisecond)
	require.Equal(t, voice.Prompt(), screen.Display())
}

func TestResolveDeviceEmptyMeansDefault(t *testing.T) {
	dev, err := resolveDevice(audio.NewFakeContextPCM(nil, false), "")
	require.NoError(t, err)
	require.Nil(t, dev)
	require.Equal(t, "system default", deviceName(dev))

	dev, err = resolveDevice(audio.NewFakeContextPCM(nil, false), "Fake Microphone")
	require.NoError(t, err)
	require.Equal(t, "Fake Microphone", deviceName(dev))
}

func TestForwardGestures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fk := hotkey.NewFake()
	require.NoError(t, fk.Register())
	cmds := make(chan command, 4)
	hy := forwardGestures(ctx, fk, 0, cmds)
	defer hy.Close()

	fk.SimKeydown()
	require.Equal(t, cmdPress, <-cmds)
	fk.SimKeyup()
	require.Equal(t, cmdRelease, <-cmds)

	cancel()
	require.Eventually(t, func() bool { return !fk.Registered() }, time.Second, 10*time.Millisecond)
}
