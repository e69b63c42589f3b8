package log

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	diagnosticsFile = "diagnostics_log.txt"
	voiceFile       = "voice_log.txt"
)

var (
	diagLog   zerolog.Logger
	diagOut   *lumberjack.Logger
	voiceOut  *lumberjack.Logger
	logMu     sync.Mutex
	logReady  bool
	pid       int
	dir       string
)

const maxSizeMB = 5

// UploadMetrics describes one voice upload.
type UploadMetrics struct {
	Encoding     string
	AudioS       float64
	SizeKB       float64
	ConnWaitMs   float64
	DNSMs        float64
	TCPMs        float64
	TLSMs        float64
	ReqHeadersMs float64
	ReqBodyMs    float64
	TTFBMs       float64
	DownloadMs   float64
	// NetworkMs is the sum of the request phases; TotalMs minus NetworkMs
	// is time spent outside the connection.
	NetworkMs   float64
	TotalMs     float64
	ConnReused  bool
	TLSProtocol string
	Status      int
	ErrorKind   string
}

func ResolveDir(flagPath string) (string, error) {
	if flagPath != "" {
		return absolute(flagPath)
	}
	if envPath := os.Getenv("SMARTBIZ_LOG_PATH"); envPath != "" {
		return absolute(envPath)
	}
	return getDefaultDir()
}

func absolute(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func rotated(name string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filepath.Join(dir, name),
		MaxSize:    maxSizeMB,
		MaxBackups: 3,
		MaxAge:     28,
	}
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}
	pid = os.Getpid()

	diagOut = rotated(diagnosticsFile)
	voiceOut = rotated(voiceFile)
	// lumberjack opens lazily; an empty write creates the files now.
	for _, w := range []*lumberjack.Logger{diagOut, voiceOut} {
		if _, err := w.Write(nil); err != nil {
			diagOut.Close()
			voiceOut.Close()
			return err
		}
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagOut,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagOut != nil {
		diagOut.Close()
		diagOut = nil
	}
	if voiceOut != nil {
		voiceOut.Close()
		voiceOut = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func SessionStart(server, encoding, device string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("server", server).
		Str("format", encoding).
		Str("device", device).
		Msg("session_start")
}

func SessionEnd(count int) {
	if !logReady {
		return
	}
	diagLog.Info().Int("count", count).Msg("session_end")
}

func PermissionDenied(reason string) {
	if !logReady {
		return
	}
	diagLog.Warn().Str("reason", reason).Msg("permission_denied")
}

func CaptureStart(handle uint64, encoding string, sampleRate, channels int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Uint64("handle", handle).
		Str("format", encoding).
		Int("sample_rate", sampleRate).
		Int("channels", channels).
		Msg("capture_start")
}

func CaptureStop(handle uint64, frames uint64, duration time.Duration, sizeBytes int64) {
	if !logReady {
		return
	}
	diagLog.Info().
		Uint64("handle", handle).
		Uint64("frames", frames).
		Float64("audio_s", duration.Seconds()).
		Float64("size_kb", float64(sizeBytes)/1024).
		Msg("capture_stop")
}

func CaptureReleased(handle uint64, reason string) {
	if !logReady {
		return
	}
	diagLog.Info().Uint64("handle", handle).Str("reason", reason).Msg("capture_released")
}

func Upload(m UploadMetrics) {
	if !logReady {
		return
	}
	connStatus := "new"
	if m.ConnReused {
		connStatus = "reused"
	}
	ev := diagLog.Info().
		Str("format", m.Encoding).
		Str("conn", connStatus).
		Int("status", m.Status).
		Str("kind", m.ErrorKind)
	if m.TLSProtocol != "" {
		ev = ev.Str("tls_proto", m.TLSProtocol)
	}
	ev.Float64("audio_s", m.AudioS).
		Float64("size_kb", m.SizeKB).
		Float64("conn_wait_ms", m.ConnWaitMs).
		Float64("dns_ms", m.DNSMs).
		Float64("tcp_ms", m.TCPMs).
		Float64("tls_ms", m.TLSMs).
		Float64("req_headers_ms", m.ReqHeadersMs).
		Float64("req_body_ms", m.ReqBodyMs).
		Float64("ttfb_ms", m.TTFBMs).
		Float64("download_ms", m.DownloadMs).
		Float64("network_ms", m.NetworkMs).
		Float64("total_ms", m.TotalMs).
		Msg("upload")
}

func Decision(intent, item string, qty float64, unit string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("intent", intent).
		Str("item", item).
		Float64("qty", qty).
		Str("unit", unit).
		Msg("decision")
}

// VoiceCommand appends one tab separated line to voice_log.txt.
func VoiceCommand(transcription, outcome string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	if voiceOut == nil {
		return
	}
	clean := func(s string) string {
		return strings.NewReplacer("\t", " ", "\n", " ").Replace(s)
	}
	line := fmt.Sprintf("%s\t[%d]\t%s\t%s\n",
		time.Now().Format("2006-01-02 15:04:05"), pid, clean(transcription), clean(outcome))
	voiceOut.Write([]byte(line))
}
