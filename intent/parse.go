package intent

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type fields map[string]json.RawMessage

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// str returns the string at key, nil when absent or null, and an error when
// the value has another type.
func (f fields) str(key string) (*string, error) {
	raw, ok := f[key]
	if !ok || isNull(raw) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("field %q: want string", key)
	}
	return &s, nil
}

func (f fields) num(key string) (*float64, error) {
	raw, ok := f[key]
	if !ok || isNull(raw) {
		return nil, nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("field %q: want number", key)
	}
	return &n, nil
}

// firstString returns the first key holding a non-empty string.
func (f fields) firstString(keys ...string) string {
	for _, k := range keys {
		if s, err := f.str(k); err == nil && s != nil && *s != "" {
			return *s
		}
	}
	return ""
}

func parseResponse(status int, body []byte) UploadResult {
	var f fields
	decodeErr := json.Unmarshal(body, &f)
	if f == nil {
		f = fields{}
	}

	if status < 200 || status > 299 {
		r := UploadResult{ErrorKind: KindServer, Status: status}
		r.ResponseText = f.firstString("error", "detail", "message")
		if r.ResponseText == "" {
			r.ResponseText = serverMessage(status)
		}
		r.Transcription, _ = f.str("transcription")
		return r
	}

	if decodeErr != nil {
		return malformed(status)
	}

	// Backends may report a failed command inside a 2xx body.
	if st, _ := f.str("status"); st != nil && *st == "error" {
		if msg := f.firstString("error", "message", "response"); msg != "" {
			r := UploadResult{ErrorKind: KindServer, Status: status, ResponseText: msg}
			r.Transcription, _ = f.str("transcription")
			return r
		}
	}

	response, err := f.str("response")
	if err != nil || response == nil {
		return malformed(status)
	}
	transcription, err := f.str("transcription")
	if err != nil {
		return malformed(status)
	}
	decision, err := parseDecision(f)
	if err != nil {
		return malformed(status)
	}

	r := UploadResult{
		Transcription: transcription,
		ResponseText:  *response,
		Decision:      decision,
		ErrorKind:     KindNone,
		Status:        status,
	}
	if alert, err := f.str("alert_message"); err == nil && alert != nil {
		r.Alert = *alert
	}
	if stock, err := f.num("new_stock"); err == nil {
		r.NewStock = stock
	}
	return r
}

// parseDecision yields a decision only when intent, item, qty and unit are
// all present and non-null.
func parseDecision(f fields) (Decision, error) {
	intentName, err := f.str("intent")
	if err != nil {
		return None(), err
	}
	item, err := f.str("item")
	if err != nil {
		return None(), err
	}
	qty, err := f.num("qty")
	if err != nil {
		return None(), err
	}
	unit, err := f.str("unit")
	if err != nil {
		return None(), err
	}
	if intentName == nil || item == nil || qty == nil || unit == nil {
		return None(), nil
	}
	return Some(IntentDecision{
		Intent:   *intentName,
		Item:     *item,
		Quantity: *qty,
		Unit:     *unit,
	}), nil
}

func malformed(status int) UploadResult {
	r := Failure(KindMalformed)
	r.Status = status
	return r
}
