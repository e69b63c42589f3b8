package voice

import (
	"testing"

	"github.com/stretchr/testify/require"

	"smartbiz/intent"
)

func strPtr(s string) *string { return &s }

func TestPresentDecision(t *testing.T) {
	m := Present(intent.UploadResult{
		Transcription: strPtr("add five kg rice"),
		ResponseText:  "Added 5 kg Rice",
		Decision:      intent.Some(intent.IntentDecision{Intent: "ADD", Item: "Rice", Quantity: 5, Unit: "kg"}),
	})

	require.Equal(t, "Add 5 kg Rice", m.Headline)
	require.Equal(t, "Added 5 kg Rice", m.Detail)
	require.Equal(t, ToneSuccess, m.Tone)
	require.False(t, m.Retry)
	require.Contains(t, m.Text(), "Rice")
	require.Contains(t, m.Text(), "5")
	require.Contains(t, m.Text(), `Heard: "add five kg rice"`)
}

func TestPresentNoDecision(t *testing.T) {
	m := Present(intent.UploadResult{ResponseText: "Could not parse"})
	require.Equal(t, "Could not parse", m.Headline)
	require.Equal(t, ToneInfo, m.Tone)
	require.Empty(t, m.Transcription)

	m = Present(intent.UploadResult{})
	require.Equal(t, "No command recognized", m.Headline)
}

func TestPresentErrors(t *testing.T) {
	tests := []struct {
		kind  intent.ErrorKind
		head  string
		retry bool
		tone  Tone
	}{
		{intent.KindPermission, "Microphone access needed", false, ToneWarning},
		{intent.KindHardware, "Microphone error", true, ToneError},
		{intent.KindNetwork, "Connection problem", true, ToneError},
		{intent.KindServer, "Server error", true, ToneError},
		{intent.KindMalformed, "Unexpected response", false, ToneError},
	}
	for _, tc := range tests {
		t.Run(tc.kind.String(), func(t *testing.T) {
			m := Present(intent.Failure(tc.kind))
			require.Equal(t, tc.head, m.Headline)
			require.Equal(t, tc.retry, m.Retry)
			require.Equal(t, tc.tone, m.Tone)
			require.NotEmpty(t, m.Text())
		})
	}
}

func TestPresentNeverPanics(t *testing.T) {
	inputs := []intent.UploadResult{
		{},
		{ErrorKind: intent.ErrorKind(99)},
		{ErrorKind: intent.KindServer},
		{Decision: intent.Some(intent.IntentDecision{})},
		{Decision: intent.None(), Transcription: strPtr("")},
	}
	for _, in := range inputs {
		require.NotPanics(t, func() { _ = Present(in).Text() })
	}
}

func TestPresentAlertAndStock(t *testing.T) {
	stock := 12.5
	m := Present(intent.UploadResult{
		ResponseText: "Removed from stock",
		Decision:     intent.Some(intent.IntentDecision{Intent: "REMOVE", Item: "Sugar", Quantity: 2.5, Unit: "kg"}),
		Alert:        "LOW STOCK: Sugar is at 12.5 kg",
		NewStock:     &stock,
	})
	require.Equal(t, "Remove 2.5 kg Sugar", m.Headline)
	require.Contains(t, m.Detail, "Now in stock: 12.5 kg")
	require.Equal(t, ToneWarning, m.Tone)
	require.Contains(t, m.Text(), "LOW STOCK")
}

func TestDescribeDecision(t *testing.T) {
	require.Equal(t, "Check stock: Rice", DescribeDecision(intent.IntentDecision{Intent: "CHECK", Item: "Rice", Unit: "kg"}))
	require.Equal(t, "Add 1 packet Noodles", DescribeDecision(intent.IntentDecision{Intent: "add", Item: "Noodles", Quantity: 1, Unit: "packet"}))
	require.Equal(t, "TRANSFER 3 Oil", DescribeDecision(intent.IntentDecision{Intent: "TRANSFER", Item: "Oil", Quantity: 3}))
}

func TestFormatQuantity(t *testing.T) {
	require.Equal(t, "5", FormatQuantity(5))
	require.Equal(t, "2.5", FormatQuantity(2.5))
	require.Equal(t, "0", FormatQuantity(0))
}
