package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"smartbiz/audio"
	"smartbiz/hotkey"
)

const (
	DefaultServerURL = "http://127.0.0.1:8000"
	DefaultVoicePath = "/process-voice"
	DefaultHotkey    = hotkey.DefaultCombo
	DefaultTimeout   = 60 * time.Second
)

type Config struct {
	ServerURL      string
	VoicePath      string
	Format         string
	SampleRate     int
	Channels       int
	BitRate        int
	Device         string
	Hotkey         string
	VoiceAuth      bool
	RequestTimeout time.Duration
	Beep           bool
	Notify         bool
	TokenPath      string

	// Path is the file the config was read from, empty when defaults were used.
	Path string
}

type fileConfig struct {
	ServerURL      string `toml:"server_url"`
	VoicePath      string `toml:"voice_path"`
	Format         string `toml:"format"`
	SampleRate     int    `toml:"sample_rate"`
	Channels       int    `toml:"channels"`
	BitRate        int    `toml:"bit_rate"`
	Device         string `toml:"device"`
	Hotkey         string `toml:"hotkey"`
	VoiceAuth      *bool  `toml:"voice_auth"`
	RequestTimeout string `toml:"request_timeout"`
	Beep           *bool  `toml:"beep"`
	Notify         *bool  `toml:"notify"`
	TokenPath      string `toml:"token_path"`
}

// Warning is a non-fatal config problem.
type Warning struct {
	Message string
}

func Default() *Config {
	capture := audio.DefaultCaptureConfig()
	return &Config{
		ServerURL:      DefaultServerURL,
		VoicePath:      DefaultVoicePath,
		Format:         capture.Encoding,
		SampleRate:     capture.SampleRate,
		Channels:       capture.Channels,
		BitRate:        capture.BitRate,
		Hotkey:         DefaultHotkey,
		RequestTimeout: DefaultTimeout,
		Beep:           true,
		TokenPath:      filepath.Join(configDir(), "token"),
	}
}

// Load reads path, or the default location when path is empty. A missing
// file yields defaults; a malformed one is an error.
func Load(path string) (*Config, []Warning, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	var warnings []Warning
	var fc fileConfig
	md, err := toml.DecodeFile(path, &fc)
	switch {
	case err == nil:
		cfg.Path = path
		if err := apply(cfg, fc); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", path, err)
		}
		for _, key := range md.Undecoded() {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("unknown config key %q", key.String())})
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, nil, fmt.Errorf("reading config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, nil, err
	}
	if !cfg.VoiceAuth {
		if u, err := url.Parse(cfg.ServerURL); err == nil && u.Scheme == "http" && !isLoopback(u.Hostname()) {
			warnings = append(warnings, Warning{Message: "server_url uses plain http to a remote host"})
		}
	}
	return cfg, warnings, nil
}

func apply(cfg *Config, fc fileConfig) error {
	if fc.ServerURL != "" {
		cfg.ServerURL = fc.ServerURL
	}
	if fc.VoicePath != "" {
		cfg.VoicePath = fc.VoicePath
	}
	if fc.Format != "" {
		cfg.Format = strings.ToLower(fc.Format)
	}
	if fc.SampleRate != 0 {
		cfg.SampleRate = fc.SampleRate
	}
	if fc.Channels != 0 {
		cfg.Channels = fc.Channels
	}
	if fc.BitRate != 0 {
		cfg.BitRate = fc.BitRate
	}
	cfg.Device = fc.Device
	if fc.Hotkey != "" {
		cfg.Hotkey = fc.Hotkey
	}
	if fc.VoiceAuth != nil {
		cfg.VoiceAuth = *fc.VoiceAuth
	}
	if fc.RequestTimeout != "" {
		d, err := time.ParseDuration(fc.RequestTimeout)
		if err != nil {
			return fmt.Errorf("request_timeout: %w", err)
		}
		cfg.RequestTimeout = d
	}
	if fc.Beep != nil {
		cfg.Beep = *fc.Beep
	}
	if fc.Notify != nil {
		cfg.Notify = *fc.Notify
	}
	if fc.TokenPath != "" {
		cfg.TokenPath = expandTilde(fc.TokenPath)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SMARTBIZ_SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv("SMARTBIZ_TOKEN_PATH"); v != "" {
		cfg.TokenPath = expandTilde(v)
	}
}

// Validate returns the first invariant the config breaks.
func Validate(cfg *Config) error {
	u, err := url.Parse(cfg.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server_url must be an http(s) URL, got %q", cfg.ServerURL)
	}
	if !strings.HasPrefix(cfg.VoicePath, "/") {
		return fmt.Errorf("voice_path must start with '/'")
	}
	if cfg.Format != "wav" && cfg.Format != "flac" {
		return fmt.Errorf("format must be one of: wav, flac")
	}
	if cfg.SampleRate < 8000 || cfg.SampleRate > 48000 {
		return fmt.Errorf("sample_rate must be between 8000 and 48000")
	}
	if cfg.Channels != 1 && cfg.Channels != 2 {
		return fmt.Errorf("channels must be 1 or 2")
	}
	if cfg.BitRate < 0 {
		return fmt.Errorf("bit_rate must be >= 0")
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be > 0")
	}
	if _, err := hotkey.Parse(cfg.Hotkey); err != nil {
		return err
	}
	if cfg.TokenPath == "" {
		return fmt.Errorf("token_path must not be empty")
	}
	return nil
}

// Capture returns the recording parameters.
func (c *Config) Capture() audio.CaptureConfig {
	return audio.CaptureConfig{
		SampleRate: c.SampleRate,
		Channels:   c.Channels,
		BitRate:    c.BitRate,
		Encoding:   c.Format,
	}
}

func DefaultPath() string {
	return filepath.Join(configDir(), "config.toml")
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "smartbiz")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "smartbiz")
	}
	return "smartbiz"
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

// Save writes cfg as TOML, used by the device picker to remember a choice.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	voiceAuth, beep, notify := cfg.VoiceAuth, cfg.Beep, cfg.Notify
	fc := fileConfig{
		ServerURL:      cfg.ServerURL,
		VoicePath:      cfg.VoicePath,
		Format:         cfg.Format,
		SampleRate:     cfg.SampleRate,
		Channels:       cfg.Channels,
		BitRate:        cfg.BitRate,
		Device:         cfg.Device,
		Hotkey:         cfg.Hotkey,
		VoiceAuth:      &voiceAuth,
		RequestTimeout: cfg.RequestTimeout.String(),
		Beep:           &beep,
		Notify:         &notify,
		TokenPath:      cfg.TokenPath,
	}
	return toml.NewEncoder(f).Encode(fc)
}
