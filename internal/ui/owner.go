package ui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/cubespace/internal/docstore"
	"github.com/five82/cubespace/internal/flow"
)

type saveDoneMsg struct {
	name string
	err  error
}

type identityDoneMsg struct {
	profile *docstore.Profile
	err     error
}

// saveCmd runs the save sequence off the UI goroutine.
func saveCmd(ctx context.Context, f Flow, owner flow.OwnerData) tea.Cmd {
	return func() tea.Msg {
		return saveDoneMsg{name: owner.Name, err: f.OnSaveConfirm(ctx, owner)}
	}
}

func identityCmd(ctx context.Context, f Flow) tea.Cmd {
	return func() tea.Msg {
		p, err := f.OnConnectIdentityProvider(ctx)
		return identityDoneMsg{profile: p, err: err}
	}
}

// handleOwnerKey routes keys while the owner card holds focus. Everything
// that is not a card command goes to the name input.
func (m Model) handleOwnerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Save):
		if m.session.Saving {
			return m, nil
		}
		owner := flow.OwnerData{Name: m.ownerInput.Value()}
		if p := m.session.Profile; p != nil {
			owner.ProfileURL = p.ProfileURL
			owner.AvatarURL = p.AvatarURL
		}
		m.session.Saving = true
		return m, saveCmd(m.ctx, m.flow, owner)

	case key.Matches(msg, m.keys.Dismiss):
		m.flow.OnOwnerDismiss()
		m.refresh()
		if m.session.DraftID == "" {
			m.setNotice("Cube discarded", false)
		} else {
			m.setNotice("Saving in the background", false)
		}
		return m, nil

	case key.Matches(msg, m.keys.Link):
		if m.session.AuthStatus == flow.AuthLoading {
			return m, nil
		}
		m.session.AuthStatus = flow.AuthLoading
		return m, identityCmd(m.ctx, m.flow)
	}

	var cmd tea.Cmd
	m.ownerInput, cmd = m.ownerInput.Update(msg)
	return m, cmd
}

func (m Model) handleSaveDone(msg saveDoneMsg) (tea.Model, tea.Cmd) {
	m.refresh()
	switch {
	case msg.err == nil:
		m.setNotice("Cube saved", false)
		if name := strings.TrimSpace(msg.name); name != "" && name != m.prefs.OwnerName {
			m.prefs.OwnerName = name
			m.savePrefs()
		}
	case errors.Is(msg.err, flow.ErrOwnerNameRequired):
		// shown on the card
	case errors.Is(msg.err, flow.ErrNoDraft):
		m.setNotice("Nothing to save", true)
	default:
		m.setNotice("Save failed", true)
	}
	return m, nil
}

func (m Model) handleIdentityDone(msg identityDoneMsg) (tea.Model, tea.Cmd) {
	m.refreshSession()
	switch {
	case msg.err != nil:
		m.setNotice("Could not link profile", true)
	case msg.profile == nil:
		m.setNotice("No identity provider available", false)
	default:
		if strings.TrimSpace(m.ownerInput.Value()) == "" {
			m.ownerInput.SetValue(msg.profile.Name)
			m.ownerInput.CursorEnd()
		}
		m.setNotice("Linked as "+msg.profile.Name, false)
	}
	return m, nil
}

// renderOwnerCard renders the form that claims the draft cube.
func (m Model) renderOwnerCard(width int) string {
	styles := m.theme.Styles()
	st := m.session

	var b strings.Builder
	b.WriteString(styles.AccentText.Bold(true).Render("Claim your cube"))
	b.WriteString("\n\n")

	if c, ok := m.snapshot.CubesByLocalID[st.DraftID]; ok {
		swatch := lipgloss.NewStyle().Foreground(lipgloss.Color(c.Color)).Render("■■")
		b.WriteString(swatch + " " + styles.StatusStyle(c.Status).Render(string(c.Status)))
		b.WriteString("\n")
		if c.FinalPosition != nil {
			b.WriteString(styles.FaintText.Render("at " + formatVec(*c.FinalPosition)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(styles.MutedText.Render("Name"))
	b.WriteString("\n")
	m.ownerInput.Width = width - 6
	b.WriteString(m.ownerInput.View())
	b.WriteString("\n\n")

	b.WriteString(m.renderAuthLine(styles, width))
	b.WriteString("\n")

	if st.Saving {
		b.WriteString(styles.InfoText.Render("Saving..."))
		b.WriteString("\n")
	}
	if st.OwnerError != "" {
		b.WriteString(styles.DangerText.Width(width - 4).Render(st.OwnerError))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	hint := func(k, d string) string {
		return styles.AccentText.Render(k) + " " + styles.FaintText.Render(d)
	}
	b.WriteString(hint("enter", "save") + "  " + hint("ctrl+l", "link") + "  " + hint("esc", "cancel"))

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.BorderFocus)).
		Background(lipgloss.Color(m.theme.FocusBg)).
		Padding(0, 1).
		Width(width - 2).
		Render(b.String())
}

func (m Model) renderAuthLine(styles Styles, width int) string {
	st := m.session
	switch st.AuthStatus {
	case flow.AuthLoading:
		return styles.InfoText.Render("Linking profile...")
	case flow.AuthLinked:
		name := ""
		if st.Profile != nil {
			name = st.Profile.Name
		}
		return styles.SuccessText.Render("Linked") + " " + styles.Text.Render(truncate(name, width-12))
	case flow.AuthUnavailable:
		return styles.FaintText.Render("Profile linking unavailable")
	case flow.AuthError:
		return styles.WarningText.Render(truncate("Link failed: "+st.AuthError, width-4))
	default:
		return styles.FaintText.Render("Optional: link a profile")
	}
}
