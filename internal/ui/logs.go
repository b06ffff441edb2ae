package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/cubespace/internal/logtail"
)

var logLevels = []string{"DEBUG", "INFO", "WARN", "ERROR"}

// logState holds all log-related state.
type logState struct {
	raw      []string
	entries  []logtail.Entry
	minLevel string
	follow   bool
	err      error

	// version starts at 1; rendered == 0 means the viewport was never filled
	version  uint64
	rendered uint64
}

type logLinesMsg struct {
	lines []string
	err   error
}

func newLogState() logState {
	return logState{minLevel: "DEBUG", follow: true, version: 1}
}

func readLogCmd(path string) tea.Cmd {
	if path == "" {
		return nil
	}
	return func() tea.Msg {
		lines, err := logtail.Read(path, logTailLines)
		return logLinesMsg{lines: lines, err: err}
	}
}

func nextLevel(current string) string {
	for i, l := range logLevels {
		if l == current {
			return logLevels[(i+1)%len(logLevels)]
		}
	}
	return logLevels[0]
}

func (m *Model) handleLogLines(msg logLinesMsg) {
	m.logState.err = msg.err
	if msg.err == nil {
		m.logState.raw = msg.lines
		m.logState.entries = logtail.Filter(msg.lines, m.logState.minLevel)
	}
	m.logState.version++
	m.updateLogViewport()
}

// initLogViewport initializes the log viewport.
func (m *Model) initLogViewport() {
	m.logViewport = viewport.New(maxInt(m.width-4, 1), maxInt(m.height-5, 1))
}

// updateLogViewport resizes the viewport and re-renders when content changed.
func (m *Model) updateLogViewport() {
	if !m.ready {
		return
	}
	m.logViewport.Width = maxInt(m.width-4, 1)
	m.logViewport.Height = maxInt(m.height-5, 1)
	m.logViewport.Style = lipgloss.NewStyle().Background(lipgloss.Color(m.theme.FocusBg))

	if m.logState.version != m.logState.rendered {
		m.logViewport.SetContent(m.renderLogContent())
		m.logState.rendered = m.logState.version
	}
	if m.logState.follow {
		m.logViewport.GotoBottom()
	}
}

// handleLogsKey processes keyboard input for the log view.
func (m Model) handleLogsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.ToggleFollow):
		m.logState.follow = !m.logState.follow
		if m.logState.follow {
			m.logViewport.GotoBottom()
			return m, readLogCmd(m.logPath)
		}
	case key.Matches(msg, m.keys.CycleLevel):
		m.logState.minLevel = nextLevel(m.logState.minLevel)
		m.logState.entries = logtail.Filter(m.logState.raw, m.logState.minLevel)
		m.logState.version++
		m.updateLogViewport()
	case key.Matches(msg, m.keys.Top):
		m.logViewport.GotoTop()
		m.logState.follow = false
	case key.Matches(msg, m.keys.Bottom):
		m.logViewport.GotoBottom()
		m.logState.follow = true
	case key.Matches(msg, m.keys.Down):
		m.logViewport.ScrollDown(1)
		m.logState.follow = false
	case key.Matches(msg, m.keys.Up):
		m.logViewport.ScrollUp(1)
		m.logState.follow = false
	case key.Matches(msg, m.keys.HalfPageDown):
		m.logViewport.HalfPageDown()
		m.logState.follow = false
	case key.Matches(msg, m.keys.HalfPageUp):
		m.logViewport.HalfPageUp()
		m.logState.follow = false
	}
	return m, nil
}

// renderLogs renders the bordered log viewport and its status line.
func (m Model) renderLogs() string {
	styles := m.theme.Styles()
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.BorderFocus)).
		Render(m.logViewport.View())

	follow := "off"
	if m.logState.follow {
		follow = "on"
	}
	status := fmt.Sprintf("%s  %d/%d lines  level ≥ %s  follow %s",
		truncateMiddle(m.logPath, 40), len(m.logState.entries), len(m.logState.raw), m.logState.minLevel, follow)
	line := styles.FaintText.Render(status)
	if m.logState.err != nil {
		line = styles.DangerText.Render(truncate(m.logState.err.Error(), m.width))
	}
	return box + "\n" + line
}

func (m *Model) renderLogContent() string {
	bg := NewBgStyle(m.theme.FocusBg)
	styles := m.theme.Styles()
	width := m.logViewport.Width

	if len(m.logState.entries) == 0 {
		return bg.FillLine(bg.Render("No log entries", styles.MutedText), width)
	}

	var b strings.Builder
	for i, e := range m.logState.entries {
		b.WriteString(bg.FillLine(m.renderEntry(e, styles, bg), width))
		if i < len(m.logState.entries)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// renderEntry colors one parsed line: clock time, level, message, then the
// attributes dimmed.
func (m *Model) renderEntry(e logtail.Entry, styles Styles, bg BgStyle) string {
	if !e.Parsed {
		return bg.Render(e.Raw, styles.Text)
	}
	var parts []string
	if ts := clockTime(e.Time); ts != "" {
		parts = append(parts, bg.Render(ts, styles.FaintText))
	}
	parts = append(parts, bg.Render(padRight(e.Level, 5), levelStyle(e.Level, styles).Bold(true)))
	parts = append(parts, bg.Render(e.Msg, styles.Text))
	for _, a := range e.Attrs {
		parts = append(parts, bg.Render(a.Key+"=", styles.FaintText)+bg.Render(a.Value, styles.MutedText))
	}
	return strings.Join(parts, bg.Space())
}

func levelStyle(level string, styles Styles) lipgloss.Style {
	switch strings.ToUpper(level) {
	case "INFO":
		return styles.SuccessText
	case "WARN":
		return styles.WarningText
	case "ERROR":
		return styles.DangerText
	case "DEBUG":
		return styles.InfoText
	default:
		return styles.Text
	}
}

// clockTime extracts HH:MM:SS from an RFC 3339 timestamp.
func clockTime(ts string) string {
	if i := strings.IndexByte(ts, 'T'); i >= 0 && len(ts) >= i+9 {
		return ts[i+1 : i+9]
	}
	return ts
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
