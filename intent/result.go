package intent

import "fmt"

// ErrorKind classifies how a voice command failed.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindPermission
	KindHardware
	KindNetwork
	KindServer
	KindMalformed
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindPermission:
		return "permission"
	case KindHardware:
		return "hardware"
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Retryable reports whether a new gesture can be expected to succeed.
func (k ErrorKind) Retryable() bool {
	return k == KindHardware || k == KindNetwork || k == KindServer
}

// IntentDecision is a fully parsed inventory command.
type IntentDecision struct {
	Intent   string
	Item     string
	Quantity float64
	Unit     string
}

// Decision is either a complete IntentDecision or nothing.
type Decision struct {
	d  IntentDecision
	ok bool
}

func Some(d IntentDecision) Decision { return Decision{d: d, ok: true} }
func None() Decision                 { return Decision{} }

func (d Decision) Get() (IntentDecision, bool) { return d.d, d.ok }
func (d Decision) Present() bool                { return d.ok }

// UploadResult is the outcome of one voice upload.
type UploadResult struct {
	Transcription *string
	ResponseText  string
	Decision      Decision
	ErrorKind     ErrorKind

	// Alert is the server's optional low-stock warning.
	Alert string
	// NewStock is the stock level after the command, when reported.
	NewStock *float64
	// Status is the HTTP status, zero when the request never completed.
	Status int
}

const (
	MsgMalformed  = "The server sent a response we could not read. Please try again."
	MsgNetwork    = "Could not reach the server. Check your connection and try again."
	MsgPermission = "Microphone access is required for voice commands. Grant access and reopen this screen."
	MsgHardware   = "The microphone stopped unexpectedly. Please try again."
)

func serverMessage(status int) string {
	return fmt.Sprintf("The server could not process the command (HTTP %d). Please try again.", status)
}

// Failure builds a result for errors raised before any upload happened.
func Failure(kind ErrorKind) UploadResult {
	r := UploadResult{ErrorKind: kind}
	switch kind {
	case KindPermission:
		r.ResponseText = MsgPermission
	case KindHardware:
		r.ResponseText = MsgHardware
	case KindNetwork:
		r.ResponseText = MsgNetwork
	case KindMalformed:
		r.ResponseText = MsgMalformed
	}
	return r
}
