package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the application.
type keyMap struct {
	// Global
	Quit       key.Binding
	Help       key.Binding
	CycleTheme key.Binding
	Tab        key.Binding

	// Scene
	Place    key.Binding
	Drop     key.Binding
	Color    key.Binding
	Abandon  key.Binding
	Left     key.Binding
	Right    key.Binding
	Forward  key.Binding
	Back     key.Binding
	ListUp   key.Binding
	ListDown key.Binding

	// Owner card
	Save    key.Binding
	Dismiss key.Binding
	Link    key.Binding

	// Logs
	Up           key.Binding
	Down         key.Binding
	Top          key.Binding
	Bottom       key.Binding
	HalfPageUp   key.Binding
	HalfPageDown key.Binding
	ToggleFollow key.Binding
	CycleLevel   key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "Toggle help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "Scene/Logs"),
		),

		Place: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "Place mode"),
		),
		Drop: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter", "Drop cube"),
		),
		Color: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "Next color"),
		),
		Abandon: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "Abandon cube"),
		),
		Left: key.NewBinding(
			key.WithKeys("h", "left"),
			key.WithHelp("h/←", "Move west"),
		),
		Right: key.NewBinding(
			key.WithKeys("l", "right"),
			key.WithHelp("l/→", "Move east"),
		),
		Forward: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "Move north"),
		),
		Back: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "Move south"),
		),
		ListUp: key.NewBinding(
			key.WithKeys("K", "shift+up"),
			key.WithHelp("K", "Previous cube"),
		),
		ListDown: key.NewBinding(
			key.WithKeys("J", "shift+down"),
			key.WithHelp("J", "Next cube"),
		),

		Save: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Save"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Close"),
		),
		Link: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("ctrl+l", "Link profile"),
		),

		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "Scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "Scroll down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "Go to top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "Go to bottom"),
		),
		HalfPageUp: key.NewBinding(
			key.WithKeys("ctrl+u"),
			key.WithHelp("ctrl+u", "Half page up"),
		),
		HalfPageDown: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("ctrl+d", "Half page down"),
		),
		ToggleFollow: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("Space", "Toggle follow"),
		),
		CycleLevel: key.NewBinding(
			key.WithKeys("F"),
			key.WithHelp("F", "Minimum level"),
		),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

// FullHelp returns key bindings grouped for the help overlay.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Place, k.Drop, k.Color, k.Abandon},
		{k.Forward, k.Back, k.Left, k.Right, k.ListUp, k.ListDown},
		{k.Save, k.Link, k.Dismiss},
		{k.ToggleFollow, k.CycleLevel, k.Top, k.Bottom, k.HalfPageDown, k.HalfPageUp},
		{k.Tab, k.CycleTheme, k.Help, k.Quit},
	}
}
