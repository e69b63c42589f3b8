package audio

import (
	"context"
	"errors"
	"strings"
)

const WAVHeaderSize = 44

var (
	ErrBusy          = errors.New("microphone already capturing")
	ErrUnknownHandle = errors.New("unknown capture handle")
	ErrNoDevices     = errors.New("no capture devices found")
)

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"jabra", "galaxy buds", "pixel buds",
	"bluetooth", " bt ", " bt)", " bt]",
}

func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

type DataCallback func(data []byte, frameCount uint32)

// DeviceConfig is what the platform backend opens a stream with.
type DeviceConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config DeviceConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
}

type Permission int

const (
	PermissionUnknown Permission = iota
	PermissionGranted
	PermissionDenied
)

func (p Permission) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// CaptureConfig shapes the produced artifact. BitRate is advisory and only
// recorded; wav and flac are lossless.
type CaptureConfig struct {
	SampleRate int
	Channels   int
	BitRate    int
	Encoding   string
}

func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{SampleRate: 16000, Channels: 1, BitRate: 256000, Encoding: "wav"}
}

// Handle identifies one exclusive capture. The zero Handle is never issued.
type Handle struct {
	id uint64
}

// HandleFor builds a handle for Microphone implementations outside this
// package. id must be non-zero.
func HandleFor(id uint64) Handle { return Handle{id: id} }

func (h Handle) Valid() bool { return h.id != 0 }
func (h Handle) ID() uint64  { return h.id }

// Microphone is the exclusive capture resource. Every handle returned by
// StartCapture must be passed to exactly one of StopCapture or ForceRelease;
// ForceRelease on an already released handle is a no-op.
type Microphone interface {
	RequestPermission(ctx context.Context) (Permission, error)
	StartCapture(ctx context.Context, cfg CaptureConfig) (Handle, error)
	StopCapture(ctx context.Context, h Handle) (*Artifact, error)
	ForceRelease(h Handle)
}
