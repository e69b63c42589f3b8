package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"smartbiz/audio"
	"smartbiz/auth"
	"smartbiz/beep"
	"smartbiz/config"
	"smartbiz/hotkey"
	"smartbiz/intent"
	"smartbiz/log"
	"smartbiz/notify"
	"smartbiz/voice"
)

type voiceOptions struct {
	setup     bool
	device    string
	noHotkey  bool
	longPress time.Duration
}

const (
	levelInterval = 100 * time.Millisecond
	// In level samples: warn after 8s of silence, stop open-ended
	// recordings after 30s.
	silenceWarnTicks = 80
	silenceStopTicks = 300
)

// command is a gesture from any input source.
type command int

const (
	cmdPress command = iota
	cmdRelease
	// cmdToggle presses when idle and releases otherwise.
	cmdToggle
	// cmdRemount re-checks microphone permission.
	cmdRemount
)

func artifactDir() (string, error) {
	dir := filepath.Join(os.TempDir(), "smartbiz-audio")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("creating audio directory: %w", err)
	}
	return dir, nil
}

// resolveDevice returns nil, meaning the system default, for an empty name.
func resolveDevice(actx audio.Context, name string) (*audio.DeviceInfo, error) {
	if name == "" {
		return nil, nil
	}
	return audio.FindDevice(actx, name)
}

func deviceName(dev *audio.DeviceInfo) string {
	if dev == nil {
		return "system default"
	}
	return dev.Name
}

func newUploader(cfg *config.Config) (*intent.Uploader, error) {
	var tokens intent.TokenSource
	if cfg.VoiceAuth {
		tokens = auth.NewTokenStore(cfg.TokenPath)
	}
	return intent.NewUploader(intent.Config{
		ServerURL: cfg.ServerURL,
		VoicePath: cfg.VoicePath,
		Timeout:   cfg.RequestTimeout,
		Auth:      tokens,
	})
}

func runVoice(ctx context.Context, d *deps, opts voiceOptions) error {
	cfg := d.cfg
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	actx, err := audio.NewContext()
	if err != nil {
		return fmt.Errorf("initializing audio: %w", err)
	}
	defer actx.Close()

	dev, err := pickDevice(actx, d, opts)
	if err != nil {
		return err
	}
	dir, err := artifactDir()
	if err != nil {
		return err
	}
	mic := audio.NewMic(actx, dev, dir)
	up, err := newUploader(cfg)
	if err != nil {
		return err
	}

	cmds := make(chan command, 4)
	ui := newTUI(tuiInfo{
		Server:  up.Endpoint(),
		Format:  cfg.Format,
		Device:  deviceName(dev),
		Hotkey:  cfg.Hotkey,
		Version: version,
	}, cmds)
	screen := voice.NewScreen(mic, up, cfg.Capture(),
		voice.WithSink(ui),
		voice.WithCues(beep.New(cfg.Beep)),
		voice.WithNotifier(notify.New(cfg.Notify)),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	openEnded := func() bool { return true }
	if !opts.noHotkey {
		if hk, err := registerHotkey(cfg.Hotkey); err != nil {
			log.Warnf("global hotkey unavailable: %v", err)
			ui.Notice("Global hotkey unavailable, use space in this window.")
		} else {
			hy := forwardGestures(ctx, hk, opts.longPress, cmds)
			defer hy.Close()
			openEnded = hy.IsToggle
		}
	}

	log.SessionStart(up.Endpoint(), cfg.Format, deviceName(dev))

	done := make(chan struct{})
	go func() {
		defer close(done)
		screen.Mount(ctx)
		drive(ctx, screen, mic, cmds, ui, openEnded)
	}()

	_, runErr := ui.Run()
	cancel()
	<-done
	screen.Unmount()
	return runErr
}

func pickDevice(actx audio.Context, d *deps, opts voiceOptions) (*audio.DeviceInfo, error) {
	if opts.setup {
		dev, err := audio.SelectDevice(actx)
		if errors.Is(err, audio.ErrPickerAborted) {
			return nil, err
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: device selection failed: %v, using the default microphone\n", err)
			return nil, nil
		}
		d.cfg.Device = dev.Name
		path := d.cfg.Path
		if path == "" {
			path = config.DefaultPath()
		}
		if err := config.Save(d.cfg, path); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not save device choice: %v\n", err)
		}
		return dev, nil
	}

	name := d.cfg.Device
	if opts.device != "" {
		name = opts.device
	}
	dev, err := resolveDevice(actx, name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v, using the default microphone\n", err)
		return nil, nil
	}
	return dev, nil
}

// registerHotkey parses and grabs the global combination.
func registerHotkey(combo string) (hotkey.Hotkey, error) {
	c, err := hotkey.Parse(combo)
	if err != nil {
		return nil, err
	}
	hk, err := hotkey.New(c)
	if err != nil {
		return nil, err
	}
	if err := hk.Register(); err != nil {
		return nil, err
	}
	return hk, nil
}

// forwardGestures turns hold and tap gestures into commands until ctx ends,
// then unregisters hk.
func forwardGestures(ctx context.Context, hk hotkey.Hotkey, longPress time.Duration, out chan<- command) *hotkey.Hybrid {
	hy := hotkey.NewHybrid(hk, longPress)
	go func() {
		defer hk.Unregister()
		for {
			select {
			case g := <-hy.Gestures():
				cmd := cmdPress
				if g == hotkey.GestureRelease {
					cmd = cmdRelease
				}
				select {
				case out <- cmd:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return hy
}

// levelSink receives the live input level while recording.
type levelSink interface {
	Level(level float64, elapsed time.Duration)
	SilenceWarning(on bool)
}

// drive applies commands to the screen until ctx ends. While recording it
// samples the input level, warns on silence and stops open-ended
// recordings that stay silent.
func drive(ctx context.Context, screen *voice.Screen, mic *audio.Mic, cmds <-chan command, ui levelSink, openEnded func() bool) {
	ticker := time.NewTicker(levelInterval)
	defer ticker.Stop()

	var monitor *audio.SilenceMonitor
	var started time.Time
	release := func() {
		monitor = nil
		ui.SilenceWarning(false)
		if _, err := screen.Release(ctx); err != nil && !errors.Is(err, voice.ErrNotRecording) {
			log.Warnf("release: %v", err)
		}
	}
	press := func(open bool) {
		if err := screen.Press(ctx); err != nil {
			if !errors.Is(err, voice.ErrNotIdle) {
				log.Warnf("press: %v", err)
			}
			return
		}
		stopAfter := 0
		if open {
			stopAfter = silenceStopTicks
		}
		monitor = audio.NewSilenceMonitor(silenceWarnTicks, stopAfter)
		started = time.Now()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-cmds:
			switch cmd {
			case cmdPress:
				press(false)
			case cmdRelease:
				release()
			case cmdToggle:
				if screen.State() == voice.StateIdle {
					press(true)
				} else {
					release()
				}
			case cmdRemount:
				screen.Unmount()
				screen.Mount(ctx)
			}
		case <-ticker.C:
			if monitor == nil || screen.State() != voice.StateRecording {
				continue
			}
			level := mic.Level()
			ui.Level(level, time.Since(started))
			switch monitor.Tick(level) {
			case audio.SilenceWarn:
				ui.SilenceWarning(true)
			case audio.SilenceClear:
				ui.SilenceWarning(false)
			case audio.SilenceAutoStop:
				if openEnded() {
					log.Info("silence_auto_stop")
					release()
				}
			}
		}
	}
}
