package intent

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseResponseFullDecision(t *testing.T) {
	r := parseResponse(200, []byte(`{"transcription":"add five kg rice","response":"Added 5 kg Rice","intent":"ADD","item":"Rice","qty":5,"unit":"kg"}`))

	require.Equal(t, KindNone, r.ErrorKind)
	require.Equal(t, "Added 5 kg Rice", r.ResponseText)
	require.NotNil(t, r.Transcription)
	require.Equal(t, "add five kg rice", *r.Transcription)

	d, ok := r.Decision.Get()
	require.True(t, ok)
	require.Equal(t, IntentDecision{Intent: "ADD", Item: "Rice", Quantity: 5, Unit: "kg"}, d)
}

func TestParseResponseDecisionRequiresAllFour(t *testing.T) {
	full := map[string]string{
		"intent": `"ADD"`,
		"item":   `"Rice"`,
		"qty":    `5`,
		"unit":   `"kg"`,
	}
	for missing := range full {
		for _, mode := range []string{"absent", "null"} {
			t.Run(missing+"_"+mode, func(t *testing.T) {
				body := `{"response":"partial"`
				for k, v := range full {
					switch {
					case k != missing:
						body += `,"` + k + `":` + v
					case mode == "null":
						body += `,"` + k + `":null`
					}
				}
				body += "}"

				r := parseResponse(200, []byte(body))
				require.Equal(t, KindNone, r.ErrorKind)
				require.Equal(t, "partial", r.ResponseText)
				require.False(t, r.Decision.Present())
			})
		}
	}
}

func TestParseResponseNoIntentFields(t *testing.T) {
	r := parseResponse(200, []byte(`{"response":"Could not parse"}`))
	require.Equal(t, KindNone, r.ErrorKind)
	require.Equal(t, "Could not parse", r.ResponseText)
	require.Nil(t, r.Transcription)
	require.False(t, r.Decision.Present())
}

func TestParseResponseMalformed(t *testing.T) {
	for name, body := range map[string]string{
		"not json":          `<html>oops</html>`,
		"array":             `[1,2,3]`,
		"null":              `null`,
		"missing response":  `{"intent":"ADD","item":"Rice","qty":5,"unit":"kg"}`,
		"response number":   `{"response":42}`,
		"qty string":        `{"response":"x","intent":"ADD","item":"Rice","qty":"five","unit":"kg"}`,
		"transcription obj": `{"response":"x","transcription":{"a":1}}`,
	} {
		t.Run(name, func(t *testing.T) {
			r := parseResponse(200, []byte(body))
			require.Equal(t, KindMalformed, r.ErrorKind)
			require.Equal(t, MsgMalformed, r.ResponseText)
			require.False(t, r.Decision.Present())
		})
	}
}

func TestParseResponseServerError(t *testing.T) {
	r := parseResponse(500, []byte(`{"error":"database unavailable"}`))
	require.Equal(t, KindServer, r.ErrorKind)
	require.Equal(t, "database unavailable", r.ResponseText)
	require.Equal(t, 500, r.Status)

	r = parseResponse(422, []byte(`{"detail":"Item 'Ghee' not found"}`))
	require.Equal(t, KindServer, r.ErrorKind)
	require.Equal(t, "Item 'Ghee' not found", r.ResponseText)

	r = parseResponse(502, []byte(`Bad Gateway`))
	require.Equal(t, KindServer, r.ErrorKind)
	require.Contains(t, r.ResponseText, "502")
	require.False(t, r.Decision.Present())
}

func TestParseResponseErrorStatusInSuccessBody(t *testing.T) {
	r := parseResponse(200, []byte(`{"status":"error","message":"Cannot remove 50 kg of Rice","transcription":"remove 50 rice"}`))
	require.Equal(t, KindServer, r.ErrorKind)
	require.Equal(t, "Cannot remove 50 kg of Rice", r.ResponseText)
	require.Equal(t, "remove 50 rice", *r.Transcription)
}

func TestParseResponseExtras(t *testing.T) {
	r := parseResponse(200, []byte(`{"response":"Removed","intent":"REMOVE","item":"Sugar","qty":2.5,"unit":"kg","new_stock":12.5,"alert_message":"LOW STOCK: Sugar"}`))
	require.Equal(t, KindNone, r.ErrorKind)
	require.Equal(t, "LOW STOCK: Sugar", r.Alert)
	require.NotNil(t, r.NewStock)
	require.Equal(t, 12.5, *r.NewStock)
}

func TestErrorKindRetryable(t *testing.T) {
	require.True(t, KindNetwork.Retryable())
	require.True(t, KindServer.Retryable())
	require.True(t, KindHardware.Retryable())
	require.False(t, KindPermission.Retryable())
	require.False(t, KindMalformed.Retryable())
	require.False(t, KindNone.Retryable())
}
