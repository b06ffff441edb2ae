package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/cubespace/internal/cube"
	"github.com/five82/cubespace/internal/flow"
	"github.com/five82/cubespace/internal/state"
)

// renderHeader renders the status bar: data source, counts, flow phase.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)
	compact := m.width < LayoutCompactWidth

	parts := []string{
		bg.Render("cubespace", styles.Logo),
		m.renderMode(styles, bg),
	}

	var drafts, saving, failed int
	for _, c := range m.snapshot.Cubes {
		switch c.Status {
		case cube.StatusDraft:
			drafts++
		case cube.StatusSaving:
			saving++
		case cube.StatusError:
			failed++
		}
	}
	parts = append(parts,
		bg.Render("Cubes:", styles.MutedText)+bg.Space()+bg.Render(fmt.Sprintf("%d", len(m.snapshot.Cubes)), styles.Text),
		bg.Render("Owners:", styles.MutedText)+bg.Space()+bg.Render(fmt.Sprintf("%d", len(m.snapshot.Owners)), styles.Text),
	)
	if saving > 0 {
		parts = append(parts, bg.Render(fmt.Sprintf("saving %d", saving), styles.InfoText))
	}
	if failed > 0 {
		parts = append(parts, bg.Render(fmt.Sprintf("failed %d", failed), styles.DangerText))
	}
	if m.snapshot.Buffered {
		parts = append(parts, bg.Render("update held", styles.WarningText))
	}
	if phase := m.session.Phase; phase != "" && phase != flow.PhaseIdle {
		parts = append(parts, bg.Render(phaseLabel(phase), styles.AccentText.Bold(true)))
	}
	if !compact && !m.snapshot.UpdatedAt.IsZero() {
		parts = append(parts, bg.Render(humanizeAge(m.now(), m.snapshot.UpdatedAt), styles.FaintText))
	}
	if m.snapshot.Error != "" {
		limit := 60
		if compact {
			limit = 30
		}
		parts = append(parts, bg.Render(truncate(m.snapshot.Error, limit), styles.DangerText))
	}

	return styles.Header.Width(m.width).Render(bg.Join(parts, "  "))
}

func (m Model) renderMode(styles Styles, bg BgStyle) string {
	switch m.snapshot.Mode {
	case state.ModeLive:
		return bg.Render("● LIVE", styles.SuccessText)
	case state.ModeFallback:
		return bg.Render("● OFFLINE", styles.WarningText.Bold(true))
	default:
		return bg.Render("● Connecting...", styles.MutedText)
	}
}

func phaseLabel(p flow.Phase) string {
	switch p {
	case flow.PhasePlacing:
		return "PLACING"
	case flow.PhaseSimulating:
		return "FALLING"
	case flow.PhaseFocusing:
		return "SETTLED"
	case flow.PhaseOwnerCard:
		return "CLAIM"
	case flow.PhaseSaving:
		return "SAVING"
	default:
		return strings.ToUpper(string(p))
	}
}

// renderCommandBar renders the context-sensitive key hints and any notice.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	type cmd struct{ key, desc string }
	var commands []cmd

	switch {
	case m.currentView == ViewLogs:
		follow := "Pause"
		if !m.logState.follow {
			follow = "Follow"
		}
		commands = []cmd{
			{"Space", follow},
			{"F", "Level " + m.logState.minLevel},
			{"j/k", "Scroll"},
			{"tab", "Scene"},
			{"?", "More"},
		}
	case m.session.OwnerCardOpen:
		commands = []cmd{
			{"enter", "Save"},
			{"ctrl+l", "Link profile"},
			{"esc", "Cancel"},
		}
	case m.session.IsPlacing:
		commands = []cmd{
			{"hjkl", "Move"},
			{"enter", "Drop"},
			{"c", "Color"},
			{"p", "Stop placing"},
		}
	default:
		commands = []cmd{
			{"p", "Place"},
			{"J/K", "Cubes"},
			{"tab", "Logs"},
			{"?", "More"},
		}
		if m.session.DraftID != "" {
			commands = append(commands, cmd{"x", "Discard"})
		}
	}

	colon := bg.Render(":", styles.FaintText)
	segments := make([]string, 0, len(commands)+3)
	for _, c := range commands {
		segments = append(segments, bg.Render(c.key, styles.AccentText)+colon+bg.Render(c.desc, styles.MutedText))
	}

	swatch := lipgloss.NewStyle().
		Foreground(lipgloss.Color(m.color)).
		Background(lipgloss.Color(m.theme.Surface)).
		Render("■")
	segments = append(segments, swatch)
	segments = append(segments,
		bg.Render("T", styles.AccentText)+colon+bg.Render(m.theme.Name, styles.FaintText))

	if text, danger := m.activeNotice(); text != "" {
		style := styles.InfoText
		if danger {
			style = styles.DangerText
		}
		segments = append(segments, bg.Render(text, style))
	}

	return styles.Header.Width(m.width).Render(bg.Join(segments, "  "))
}
