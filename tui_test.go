package main

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"smartbiz/voice"
)

func update(t *testing.T, m tuiModel, msg tea.Msg) tuiModel {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(tuiModel)
}

func TestTUISpaceToggles(t *testing.T) {
	cmds := make(chan command, 1)
	m := newTUIModel(tuiInfo{}, cmds)

	update(t, m, tea.KeyMsg{Type: tea.KeySpace})
	require.Equal(t, cmdToggle, <-cmds)

	// A full queue drops the gesture instead of blocking.
	cmds <- cmdPress
	update(t, m, tea.KeyMsg{Type: tea.KeySpace})
	require.Len(t, cmds, 1)
}

func TestTUIRecordingView(t *testing.T) {
	m := newTUIModel(tuiInfo{Server: "http://shop", Format: "wav", Device: "Fake Microphone", Hotkey: "ctrl+shift+space"}, nil)
	require.Contains(t, m.View(), "READY")
	require.Contains(t, m.View(), "Hold to speak")

	m = update(t, m, stateMsg{State: voice.StateRecording})
	m = update(t, m, levelMsg{Level: 0.2, Elapsed: 1500 * time.Millisecond})
	require.Contains(t, m.View(), "REC 1.5s")
	require.Greater(t, m.level, 0.0)

	m = update(t, m, silenceMsg{On: true})
	require.Contains(t, m.View(), "no voice detected")

	m = update(t, m, stateMsg{State: voice.StateIdle})
	require.Zero(t, m.level)
	require.False(t, m.silent)
	require.NotContains(t, m.View(), "no voice detected")
}

func TestTUILevelIgnoredWhenIdle(t *testing.T) {
	m := newTUIModel(tuiInfo{}, nil)
	m = update(t, m, levelMsg{Level: 0.5})
	require.Zero(t, m.level)
}

func TestTUIDisplay(t *testing.T) {
	m := newTUIModel(tuiInfo{}, nil)
	m = update(t, m, uploadingMsg{Busy: true})
	require.Contains(t, m.View(), "SENDING")

	m = update(t, m, uploadingMsg{Busy: false})
	m = update(t, m, displayMsg{Model: voice.DisplayModel{
		Headline:      "Remove 70 litre Oil",
		Transcription: "tel sattari ghataunu",
		Alert:         "LOW STOCK: Oil is at 30 litre (threshold: 40)",
		Tone:          voice.ToneWarning,
	}})
	view := m.View()
	require.Contains(t, view, "Remove 70 litre Oil")
	require.Contains(t, view, "tel sattari ghataunu")
	require.Contains(t, view, "LOW STOCK")
	require.Equal(t, 1, m.results)
}

func TestTUICopy(t *testing.T) {
	var copied string
	m := newTUIModel(tuiInfo{}, nil)
	m.copy = func(s string) error { copied = s; return nil }
	m = update(t, m, displayMsg{Model: voice.DisplayModel{Headline: "Add 5 kg Rice", Tone: voice.ToneSuccess}})

	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlY})
	require.Equal(t, "Add 5 kg Rice", copied)
	require.Contains(t, m.View(), "Copied")

	m.copy = func(string) error { return errors.New("no clipboard") }
	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlY})
	require.Contains(t, m.notice, "no clipboard")
}

func TestTUIQuit(t *testing.T) {
	m := newTUIModel(tuiInfo{}, nil)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	require.IsType(t, tea.QuitMsg{}, cmd())
}

func TestMeterBounds(t *testing.T) {
	require.NotPanics(t, func() {
		meter(-1, 10)
		meter(5, 10)
	})
}
