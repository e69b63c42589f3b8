package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"smartbiz/clipboard"
	"smartbiz/voice"
)

// TUI message types
type stateMsg struct{ State voice.State }
type uploadingMsg struct{ Busy bool }
type displayMsg struct{ Model voice.DisplayModel }
type levelMsg struct {
	Level   float64
	Elapsed time.Duration
}
type silenceMsg struct{ On bool }
type noticeMsg struct{ Text string }
type tickMsg time.Time

type tuiInfo struct {
	Server  string
	Format  string
	Device  string
	Hotkey  string
	Version string
}

type tuiModel struct {
	info      tuiInfo
	cmds      chan<- command
	copy      func(string) error
	state     voice.State
	uploading bool
	display   voice.DisplayModel
	level     float64
	elapsed   time.Duration
	silent    bool
	notice    string
	results   int
	frame     int
	width     int
}

var (
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	helpKey     = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	recStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	heardStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	meterStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	toneColours = map[voice.Tone]lipgloss.Color{
		voice.ToneInfo:    lipgloss.Color("252"),
		voice.ToneSuccess: lipgloss.Color("42"),
		voice.ToneWarning: lipgloss.Color("214"),
		voice.ToneError:   lipgloss.Color("196"),
	}
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

func newTUIModel(info tuiInfo, cmds chan<- command) tuiModel {
	return tuiModel{
		info:    info,
		cmds:    cmds,
		copy:    clipboard.Copy,
		state:   voice.StateIdle,
		display: voice.Prompt(),
	}
}

func tuiTick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

// send never blocks the UI; a gesture dropped while the driver is busy is
// equivalent to one made too early.
func (m tuiModel) send(c command) {
	select {
	case m.cmds <- c:
	default:
	}
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case " ":
			m.send(cmdToggle)
		case "ctrl+r":
			m.notice = ""
			m.send(cmdRemount)
		case "ctrl+y":
			if err := m.copy(m.display.Text()); err != nil {
				m.notice = "Copy failed: " + err.Error()
			} else {
				m.notice = "Copied to clipboard."
			}
		}

	case tickMsg:
		m.frame++
		return m, tuiTick()

	case stateMsg:
		m.state = msg.State
		if m.state != voice.StateRecording {
			m.level = 0
			m.silent = false
		}
		if m.state == voice.StateRecording {
			m.elapsed = 0
		}

	case uploadingMsg:
		m.uploading = msg.Busy

	case displayMsg:
		m.display = msg.Model
		if msg.Model.Tone != voice.ToneInfo {
			m.results++
		}

	case levelMsg:
		if m.state == voice.StateRecording {
			m.level = m.level*0.6 + msg.Level*0.4
			m.elapsed = msg.Elapsed
		}

	case silenceMsg:
		m.silent = msg.On

	case noticeMsg:
		m.notice = msg.Text
	}
	return m, nil
}

func (m tuiModel) status() string {
	switch {
	case m.state == voice.StateRecording:
		return recStyle.Render(fmt.Sprintf("● REC %.1fs", m.elapsed.Seconds())) + "  " + meter(m.level, 20)
	case m.state == voice.StateFinalizing:
		return warnStyle.Render("◐ FINALIZING")
	case m.uploading:
		return warnStyle.Render(spinnerFrames[m.frame%len(spinnerFrames)] + " SENDING")
	default:
		return dimStyle.Render("○ READY")
	}
}

// meter renders level, roughly 0..0.3 for speech, as a bar of width cells.
func meter(level float64, width int) string {
	n := int(level / 0.3 * float64(width))
	n = max(0, min(n, width))
	return meterStyle.Render(strings.Repeat("█", n)) + dimStyle.Render(strings.Repeat("░", width-n))
}

func (m tuiModel) panel() string {
	d := m.display
	tone := lipgloss.NewStyle().Foreground(toneColours[d.Tone])
	var lines []string
	lines = append(lines, tone.Bold(true).Render(d.Headline))
	if d.Detail != "" {
		lines = append(lines, tone.Render(d.Detail))
	}
	if d.Transcription != "" {
		lines = append(lines, heardStyle.Render("Heard: \""+d.Transcription+"\""))
	}
	if d.Alert != "" {
		lines = append(lines, warnStyle.Bold(true).Render("⚠ "+d.Alert))
	}
	if d.Retry {
		lines = append(lines, dimStyle.Render("Hold the key and try again."))
	}

	style := panelStyle.BorderForeground(toneColours[d.Tone])
	if m.width > 4 {
		style = style.Width(min(m.width-2, 72))
	}
	return style.Render(strings.Join(lines, "\n"))
}

func (m tuiModel) View() string {
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render("SmartBiz voice") + "\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%s | %s | %s", m.info.Server, strings.ToUpper(m.info.Format), m.info.Device)) + "\n\n")

	b.WriteString(m.status() + "\n")
	if m.silent {
		b.WriteString(warnStyle.Render("  ⚠ no voice detected") + "\n")
	}
	b.WriteString("\n" + m.panel() + "\n")
	if m.notice != "" {
		b.WriteString(dimStyle.Render(m.notice) + "\n")
	}

	b.WriteString("\n")
	if m.info.Hotkey != "" {
		b.WriteString(helpKey.Render(m.info.Hotkey) + helpStyle.Render(" hold or tap to record, "))
	}
	b.WriteString(helpKey.Render("space") + helpStyle.Render(" start/stop") + "\n")
	b.WriteString(helpKey.Render("ctrl+y") + helpStyle.Render(" copy  ") +
		helpKey.Render("ctrl+r") + helpStyle.Render(" recheck mic  ") +
		helpKey.Render("q") + helpStyle.Render(" quit") + "\n")
	b.WriteString(helpStyle.Render(fmt.Sprintf("smartbiz %s, %d results", m.info.Version, m.results)))
	return b.String()
}

// tui forwards screen events to the bubbletea program.
type tui struct {
	program *tea.Program
}

func newTUI(info tuiInfo, cmds chan<- command) *tui {
	return &tui{program: tea.NewProgram(newTUIModel(info, cmds), tea.WithAltScreen())}
}

func (t *tui) Run() (tea.Model, error) { return t.program.Run() }

func (t *tui) StateChanged(s voice.State)   { t.program.Send(stateMsg{State: s}) }
func (t *tui) Uploading(busy bool)          { t.program.Send(uploadingMsg{Busy: busy}) }
func (t *tui) Display(m voice.DisplayModel) { t.program.Send(displayMsg{Model: m}) }
func (t *tui) SilenceWarning(on bool)       { t.program.Send(silenceMsg{On: on}) }
func (t *tui) Notice(text string)           { go t.program.Send(noticeMsg{Text: text}) }

func (t *tui) Level(level float64, elapsed time.Duration) {
	t.program.Send(levelMsg{Level: level, Elapsed: elapsed})
}
