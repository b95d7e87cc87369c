package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"murmur/session"
)

// TUI message types
type PhaseMsg struct{ Phase session.Phase }
type AudioLevelMsg struct{ Level float64 }
type WarmupMsg struct{ Progress float64 }
type ToastMsg struct{ Text string }
type TranscriptionMsg struct {
	Text   string
	Copied bool
}
type RunMsg struct{ Metrics session.RunMetrics }
type ModeLineMsg struct{ Text string }
type DeviceLineMsg struct{ Text string }
type LastTranscriptMsg struct{ Available bool }
type tickMsg time.Time

var (
	tuiProgram *tea.Program
	tuiCoord   *session.Coordinator
	tuiMu      sync.Mutex
)

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// tuiSink forwards coordinator events to the bubbletea program. Send never
// blocks, which keeps the coordinator loop free to run.
type tuiSink struct{}

func (tuiSink) PhaseChanged(p session.Phase)         { tuiSend(PhaseMsg{Phase: p}) }
func (tuiSink) AudioLevel(rms float64)               { tuiSend(AudioLevelMsg{Level: rms}) }
func (tuiSink) WarmupProgress(p float64)             { tuiSend(WarmupMsg{Progress: p}) }
func (tuiSink) Toast(msg string)                     { tuiSend(ToastMsg{Text: msg}) }
func (tuiSink) Transcription(text string, cp bool)   { tuiSend(TranscriptionMsg{Text: text, Copied: cp}) }
func (tuiSink) LastTranscript(avail bool)            { tuiSend(LastTranscriptMsg{Available: avail}) }
func (tuiSink) RunCompleted(m session.RunMetrics)    { tuiSend(RunMsg{Metrics: m}) }

var (
	styleRec     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleWarm    = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	styleWork    = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	styleIdle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleToast   = lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true)
	styleText    = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	styleCopied  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleMetrics = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	styleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	styleDimBold = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	styleMeterOn = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	styleMeterHi = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type tuiModel struct {
	phase          session.Phase
	level          float64
	peak           float64
	warmup         float64
	toast          string
	lastText       string
	copied         bool
	lastRun        session.RunMetrics
	haveRun        bool
	msgCount       int
	recordingStart time.Time
	modeLine       string
	deviceLine     string
	haveTranscript bool
	width, height  int
}

func NewTUIProgram() *tea.Program {
	return tea.NewProgram(tuiModel{}, tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		tuiMu.Lock()
		coord := tuiCoord
		tuiMu.Unlock()
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			if coord != nil {
				coord.Cancel()
			}
		case "p":
			if coord != nil && m.haveTranscript {
				coord.PasteLast()
			}
		case "c":
			if coord != nil && m.haveTranscript {
				coord.CopyLast()
			}
		}

	case tickMsg:
		return m, tuiTick()

	case PhaseMsg:
		prev := m.phase
		m.phase = msg.Phase
		if recordingPhase(msg.Phase) && !recordingPhase(prev) {
			m.recordingStart = time.Now()
			m.level = 0
			m.peak = 0
		}
		if msg.Phase != session.PhaseToast {
			m.toast = ""
		}
		if msg.Phase != session.PhaseInitializing {
			m.warmup = 0
		}

	case AudioLevelMsg:
		if recordingPhase(m.phase) {
			m.level = m.level*0.6 + msg.Level*0.4
			if msg.Level > m.peak {
				m.peak = msg.Level
			}
		}

	case WarmupMsg:
		m.warmup = msg.Progress

	case ToastMsg:
		m.toast = msg.Text

	case TranscriptionMsg:
		m.msgCount++
		m.lastText = msg.Text
		m.copied = msg.Copied

	case RunMsg:
		m.lastRun = msg.Metrics
		m.haveRun = true

	case ModeLineMsg:
		m.modeLine = msg.Text

	case DeviceLineMsg:
		m.deviceLine = msg.Text

	case LastTranscriptMsg:
		m.haveTranscript = msg.Available
	}
	return m, nil
}

func recordingPhase(p session.Phase) bool {
	return p == session.PhaseListening || p == session.PhaseInitializing
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var lines []string

	switch m.phase {
	case session.PhaseInitializing:
		status := styleWarm.Render(fmt.Sprintf("◌ WARMING %3.0f%%", m.warmup*100))
		lines = append(lines, status, renderMeter(m.level))
	case session.PhaseListening:
		dur := time.Since(m.recordingStart).Seconds()
		lines = append(lines, styleRec.Render(fmt.Sprintf("● REC %.1fs", dur)), renderMeter(m.level))
		if dur > 1.0 && m.peak < 0.02 {
			lines = append(lines, styleToast.Render("  ⚠ no voice detected"))
		}
	case session.PhaseTranscribing:
		lines = append(lines, styleWork.Render("◍ TRANSCRIBING"))
	case session.PhaseToast:
		lines = append(lines, styleToast.Render("▲ "+m.toast))
	default:
		lines = append(lines, styleIdle.Render("○ STANDBY"))
	}

	if m.modeLine != "" {
		lines = append(lines, styleMetrics.Render(m.modeLine))
	}
	if m.deviceLine != "" {
		lines = append(lines, styleIdle.Render(m.deviceLine))
	}

	lines = append(lines, "")

	wrapWidth := m.width - 4
	if wrapWidth < 10 {
		wrapWidth = 10
	}
	if m.lastText != "" {
		title := styleMetrics.Render(fmt.Sprintf("Last transcription (#%d)", m.msgCount))
		lines = append(lines, title, "")
		wrapped := wrapText(m.lastText, wrapWidth)
		for i, line := range wrapped {
			rendered := styleText.Render(line)
			if i == len(wrapped)-1 && m.copied {
				rendered += " " + styleCopied.Render("[✓ copied]")
			}
			lines = append(lines, rendered)
		}
	} else {
		lines = append(lines, styleIdle.Render("No transcriptions yet"))
	}

	if m.haveRun {
		lines = append(lines, "", styleMetrics.Render(runLine(m.lastRun)))
	}

	lines = append(lines, "")
	help := styleDimBold.Render("Ctrl+Shift+Space") + styleDim.Render(" to record · esc cancel")
	if m.haveTranscript {
		help += styleDim.Render(" · p paste last · c copy last")
	}
	lines = append(lines, help, styleDim.Render("murmur "+version))

	body := strings.Join(lines, "\n")
	return lipgloss.NewStyle().
		Width(m.width - 2).
		Height(m.height).
		Padding(1, 2).
		Render(body)
}

// renderMeter draws a 30-cell level bar. RMS for speech rarely exceeds 0.3,
// so the scale saturates there.
func renderMeter(level float64) string {
	const cells = 30
	filled := int(level / 0.3 * cells)
	if filled > cells {
		filled = cells
	}
	var b strings.Builder
	for i := 0; i < cells; i++ {
		switch {
		case i >= filled:
			b.WriteString(styleIdle.Render("░"))
		case i >= cells*3/4:
			b.WriteString(styleMeterHi.Render("█"))
		default:
			b.WriteString(styleMeterOn.Render("█"))
		}
	}
	return b.String()
}

func runLine(m session.RunMetrics) string {
	start := "cold"
	if m.WarmStart {
		start = "warm"
	}
	return fmt.Sprintf("%s · %.1fs audio · %.0fms transcribe · %.0fms latency · %s start",
		m.Result, m.AudioSeconds, m.TranscribeMs, m.LatencyMs, start)
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}
