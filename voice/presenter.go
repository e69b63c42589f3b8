package voice

import (
	"strconv"
	"strings"

	"smartbiz/intent"
)

type Tone int

const (
	ToneInfo Tone = iota
	ToneSuccess
	ToneWarning
	ToneError
)

// DisplayModel is what the voice screen renders for one result.
type DisplayModel struct {
	Headline      string
	Detail        string
	Transcription string
	Alert         string
	Tone          Tone
	Retry         bool
}

// Text flattens the model into display lines.
func (m DisplayModel) Text() string {
	var lines []string
	for _, s := range []string{m.Headline, m.Detail} {
		if s != "" {
			lines = append(lines, s)
		}
	}
	if m.Transcription != "" {
		lines = append(lines, "Heard: \""+m.Transcription+"\"")
	}
	if m.Alert != "" {
		lines = append(lines, m.Alert)
	}
	if m.Retry {
		lines = append(lines, "Hold the key and try again.")
	}
	return strings.Join(lines, "\n")
}

// Prompt is shown while nothing has been said yet.
func Prompt() DisplayModel {
	return DisplayModel{Headline: "Hold to speak", Detail: "Say a command like \"add 5 kg rice\"."}
}

func Busy() DisplayModel {
	return DisplayModel{Headline: "Processing…", Detail: "Wait for the current command to finish.", Tone: ToneWarning}
}

var errorHeadlines = map[intent.ErrorKind]string{
	intent.KindPermission: "Microphone access needed",
	intent.KindHardware:   "Microphone error",
	intent.KindNetwork:    "Connection problem",
	intent.KindServer:     "Server error",
	intent.KindMalformed:  "Unexpected response",
}

// Present projects an upload result into display text. It never panics.
func Present(r intent.UploadResult) DisplayModel {
	m := DisplayModel{Alert: r.Alert}
	if r.Transcription != nil {
		m.Transcription = *r.Transcription
	}

	if r.ErrorKind != intent.KindNone {
		m.Headline = errorHeadlines[r.ErrorKind]
		if m.Headline == "" {
			m.Headline = "Something went wrong"
		}
		m.Detail = r.ResponseText
		m.Tone = ToneError
		if r.ErrorKind == intent.KindPermission {
			m.Tone = ToneWarning
		}
		m.Retry = r.ErrorKind.Retryable()
		return m
	}

	d, ok := r.Decision.Get()
	if !ok {
		m.Headline = r.ResponseText
		if m.Headline == "" {
			m.Headline = "No command recognized"
		}
		m.Tone = ToneInfo
		return m
	}

	m.Headline = DescribeDecision(d)
	if r.ResponseText != m.Headline {
		m.Detail = r.ResponseText
	}
	if r.NewStock != nil {
		stock := "Now in stock: " + FormatQuantity(*r.NewStock) + " " + d.Unit
		m.Detail = strings.TrimSpace(strings.Join([]string{m.Detail, stock}, "\n"))
	}
	m.Tone = ToneSuccess
	if m.Alert != "" {
		m.Tone = ToneWarning
	}
	return m
}

var intentVerbs = map[string]string{
	"ADD":    "Add",
	"REMOVE": "Remove",
	"CHECK":  "Check",
}

// DescribeDecision renders a decision as e.g. "Add 5 kg Rice".
func DescribeDecision(d intent.IntentDecision) string {
	verb, ok := intentVerbs[strings.ToUpper(d.Intent)]
	if !ok {
		verb = d.Intent
	}
	if strings.EqualFold(d.Intent, "CHECK") && d.Quantity == 0 {
		return strings.TrimSpace(verb + " stock: " + d.Item)
	}
	parts := []string{verb, FormatQuantity(d.Quantity), d.Unit, d.Item}
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

// FormatQuantity prints whole quantities without a fractional part.
func FormatQuantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}
