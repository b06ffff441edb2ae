package ui

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/cubespace/internal/cube"
	"github.com/five82/cubespace/internal/flow"
	"github.com/five82/cubespace/internal/physics"
)

type physicsTickMsg struct{ id string }

type focusDoneMsg struct{ id string }

func physicsTickCmd(id string) tea.Cmd {
	return tea.Tick(physicsTick, func(time.Time) tea.Msg {
		return physicsTickMsg{id: id}
	})
}

func focusCmd(id string, delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return focusDoneMsg{id: id}
	})
}

// handleSceneKey processes keyboard input for the scene view.
func (m Model) handleSceneKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Place):
		if err := m.flow.TogglePlacing(); err != nil {
			m.setNotice(guardMessage(err), true)
		}
		m.refreshSession()
		return m, nil

	case key.Matches(msg, m.keys.Drop):
		if !m.session.IsPlacing {
			return m, nil
		}
		return m.dropCube()

	case key.Matches(msg, m.keys.Color):
		m.color = NextColor(m.color)
		m.prefs.Color = m.color
		m.savePrefs()
		return m, nil

	case key.Matches(msg, m.keys.Abandon):
		if m.session.DraftID == "" {
			return m, nil
		}
		m.flow.OnAbandonFlow()
		m.sim = nil
		m.simID = ""
		m.setNotice("Cube discarded", false)
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Left):
		m.cursorX = clampGrid(m.cursorX - 1)
	case key.Matches(msg, m.keys.Right):
		m.cursorX = clampGrid(m.cursorX + 1)
	case key.Matches(msg, m.keys.Forward):
		m.cursorZ = clampGrid(m.cursorZ - 1)
	case key.Matches(msg, m.keys.Back):
		m.cursorZ = clampGrid(m.cursorZ + 1)

	case key.Matches(msg, m.keys.ListUp):
		if m.selected > 0 {
			m.selected--
		}
	case key.Matches(msg, m.keys.ListDown):
		if m.selected < len(m.snapshot.Cubes)-1 {
			m.selected++
		}
	}
	return m, nil
}

// dropCube releases a cube above the cursor and starts its fall.
func (m Model) dropCube() (tea.Model, tea.Cmd) {
	pos := cube.Vec3{X: float64(m.cursorX), Y: dropHeight, Z: float64(m.cursorZ)}
	id, err := m.flow.DropCube(m.color, pos)
	if err != nil {
		m.setNotice(guardMessage(err), true)
		return m, nil
	}
	m.refresh()

	world := physics.NewWorld(restingCenters(m.snapshot.Cubes, id))
	m.sim = world.Drop(pos)
	m.simID = id
	return m, physicsTickCmd(id)
}

// handlePhysicsTick advances the falling cube and reports where it settles.
func (m Model) handlePhysicsTick(msg physicsTickMsg) (tea.Model, tea.Cmd) {
	if m.sim == nil || msg.id != m.simID {
		return m, nil
	}
	pos, settled := m.sim.Step(physicsTick)
	if !settled {
		return m, physicsTickCmd(msg.id)
	}

	rot := m.sim.Rotation()
	m.sim = nil
	m.simID = ""
	if err := m.flow.SettleCube(msg.id, pos, rot); err != nil {
		// abandoned while falling
		return m, nil
	}
	m.refresh()
	m.selectCube(msg.id)
	return m, focusCmd(msg.id, m.focusDelay)
}

// handleFocusDone opens the owner card once the camera pause is over.
func (m Model) handleFocusDone(msg focusDoneMsg) (tea.Model, tea.Cmd) {
	if msg.id != m.session.DraftID {
		return m, nil
	}
	m.flow.FocusComplete()
	m.refreshSession()
	return m, nil
}

func (m *Model) selectCube(localID string) {
	for i, c := range m.snapshot.Cubes {
		if c.LocalID == localID {
			m.selected = i
			return
		}
	}
}

func (m Model) selectedCube() (cube.LocalCube, bool) {
	if m.selected < 0 || m.selected >= len(m.snapshot.Cubes) {
		return cube.LocalCube{}, false
	}
	return m.snapshot.Cubes[m.selected], true
}

func guardMessage(err error) string {
	switch {
	case errors.Is(err, flow.ErrDraftPending):
		return "Finish or discard the current cube first"
	case errors.Is(err, flow.ErrCubeLimitReached):
		return "You already placed your cube"
	case errors.Is(err, flow.ErrSaveInProgress):
		return "Still saving..."
	case errors.Is(err, flow.ErrNotPlacing):
		return "Press p to start placing"
	default:
		return err.Error()
	}
}

func clampGrid(v int) int {
	if v < -gridRadius {
		return -gridRadius
	}
	if v > gridRadius {
		return gridRadius
	}
	return v
}

// restingCenters returns where every cube except skip currently rests.
func restingCenters(cubes []cube.LocalCube, skip string) []cube.Vec3 {
	out := make([]cube.Vec3, 0, len(cubes))
	for _, c := range cubes {
		if c.LocalID == skip {
			continue
		}
		if c.FinalPosition != nil {
			out = append(out, *c.FinalPosition)
		}
	}
	return out
}

// cell is a floor coordinate.
type cell struct{ x, z int }

// stack is the cubes occupying one cell, lowest first.
type stack []cube.LocalCube

func (s stack) top() cube.LocalCube { return s[len(s)-1] }

// columnStacks groups cubes by the floor cell under their center. Cubes that
// have not settled are placed by their drop position.
func columnStacks(cubes []cube.LocalCube) map[cell]stack {
	out := make(map[cell]stack)
	for _, c := range cubes {
		p := c.DropPosition
		if c.FinalPosition != nil {
			p = *c.FinalPosition
		}
		k := cell{x: int(math.Round(p.X)), z: int(math.Round(p.Z))}
		out[k] = append(out[k], c)
	}
	for k, s := range out {
		sort.SliceStable(s, func(i, j int) bool {
			return heightOf(s[i]) < heightOf(s[j])
		})
		out[k] = s
	}
	return out
}

func heightOf(c cube.LocalCube) float64 {
	if c.FinalPosition != nil {
		return c.FinalPosition.Y
	}
	return c.DropPosition.Y
}

// renderScene renders the floor grid beside the cube list or owner card.
func (m Model) renderScene() string {
	grid := m.renderGrid()
	height := m.contentHeight()

	if m.width < LayoutCompactWidth {
		if m.session.OwnerCardOpen {
			return lipgloss.JoinVertical(lipgloss.Left, grid, m.renderOwnerCard(m.width-2))
		}
		return lipgloss.NewStyle().Height(height).Render(grid)
	}

	side := m.renderCubeList(cubeListWidth, height)
	if m.session.OwnerCardOpen {
		side = m.renderOwnerCard(cubeListWidth)
	}
	gridBox := lipgloss.NewStyle().
		Width(m.width - cubeListWidth - 1).
		Height(height).
		Render(grid)
	return lipgloss.JoinHorizontal(lipgloss.Top, gridBox, " ", side)
}

func (m Model) contentHeight() int {
	h := m.height - 2
	if h < 1 {
		h = 1
	}
	return h
}

// renderGrid draws the floor top-down. Each occupied cell shows the color of
// its highest cube and, for stacks, the number of cubes.
func (m Model) renderGrid() string {
	styles := m.theme.Styles()
	stacks := columnStacks(m.snapshot.Cubes)
	selectedID := ""
	if c, ok := m.selectedCube(); ok {
		selectedID = c.LocalID
	}

	var fall *cell
	if m.sim != nil {
		p := m.sim.Position()
		fall = &cell{x: int(math.Round(p.X)), z: int(math.Round(p.Z))}
	}

	floor := lipgloss.NewStyle().
		Background(lipgloss.Color(m.theme.SurfaceAlt)).
		Foreground(lipgloss.Color(m.theme.Faint))

	var b strings.Builder
	b.WriteString(styles.FaintText.Render(m.gridTitle()))
	b.WriteString("\n")
	for z := -gridRadius; z <= gridRadius; z++ {
		for x := -gridRadius; x <= gridRadius; x++ {
			k := cell{x: x, z: z}
			cursor := m.session.IsPlacing && x == m.cursorX && z == m.cursorZ
			b.WriteString(m.renderCell(stacks[k], cursor, fall != nil && *fall == k, selectedID, floor))
		}
		if z < gridRadius {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m Model) gridTitle() string {
	switch {
	case m.sim != nil:
		return fmt.Sprintf("falling  y=%.1f", m.sim.Position().Y)
	case m.session.IsPlacing:
		return fmt.Sprintf("placing at %d,%d", m.cursorX, m.cursorZ)
	default:
		return "scene"
	}
}

func (m Model) renderCell(s stack, cursor, falling bool, selectedID string, floor lipgloss.Style) string {
	if falling {
		return lipgloss.NewStyle().
			Foreground(lipgloss.Color(m.color)).
			Background(lipgloss.Color(m.theme.SurfaceAlt)).
			Bold(true).
			Render(" ▼ ")
	}
	if len(s) == 0 {
		if cursor {
			return lipgloss.NewStyle().
				Foreground(lipgloss.Color(m.color)).
				Background(lipgloss.Color(m.theme.FocusBg)).
				Bold(true).
				Render("[ ]")
		}
		return floor.Render(" · ")
	}

	top := s.top()
	label := " "
	switch {
	case top.Status == cube.StatusError:
		label = "!"
	case top.Status == cube.StatusSaving:
		label = "…"
	case top.Status == cube.StatusDraft:
		label = "*"
	case len(s) > 1 && len(s) < 10:
		label = fmt.Sprintf("%d", len(s))
	case len(s) >= 10:
		label = "+"
	}
	text := " " + label + " "
	if cursor {
		text = "[" + label + "]"
	}

	style := lipgloss.NewStyle().
		Background(lipgloss.Color(top.Color)).
		Foreground(lipgloss.Color(m.theme.Background))
	for _, c := range s {
		if c.LocalID == selectedID {
			style = style.Bold(true).Underline(true)
			break
		}
	}
	return style.Render(text)
}

// renderCubeList renders the newest cubes with the selection kept visible,
// followed by details of the selected cube.
func (m Model) renderCubeList(width, height int) string {
	styles := m.theme.Styles()
	cubes := m.snapshot.Cubes

	var b strings.Builder
	b.WriteString(styles.AccentText.Bold(true).Render(fmt.Sprintf("Cubes (%d)", len(cubes))))
	b.WriteString("\n")

	if len(cubes) == 0 {
		b.WriteString(styles.MutedText.Render("No cubes yet. Press p to place one."))
		return lipgloss.NewStyle().Width(width).Render(b.String())
	}

	listRows := height - 8
	if listRows < 3 {
		listRows = 3
	}
	start, end := listWindow(len(cubes), m.selected, listRows)
	for i := start; i < end; i++ {
		c := cubes[i]
		swatch := lipgloss.NewStyle().Foreground(lipgloss.Color(c.Color)).Render("■")
		badge := styles.StatusStyle(c.Status).Render(string(c.Status))
		name := m.ownerName(c)
		row := swatch + " " + padRight(truncate(name, width-14), width-14) + " " + badge
		if i == m.selected {
			row = styles.Selected.Render("›") + row
		} else {
			row = " " + row
		}
		b.WriteString(row)
		b.WriteString("\n")
	}

	if c, ok := m.selectedCube(); ok {
		b.WriteString("\n")
		b.WriteString(m.renderCubeDetail(c, styles, width))
	}
	return lipgloss.NewStyle().Width(width).Render(b.String())
}

func (m Model) renderCubeDetail(c cube.LocalCube, styles Styles, width int) string {
	rows := [][2]string{
		{"id", shortID(c.LocalID)},
		{"drop", formatVec(c.DropPosition)},
	}
	if c.FinalPosition != nil {
		rows = append(rows, [2]string{"rest", formatVec(*c.FinalPosition)})
	}
	if c.RemoteID != "" {
		rows = append(rows, [2]string{"remote", truncate(c.RemoteID, width-10)})
	}
	if !c.CreatedAtRemote.IsZero() {
		rows = append(rows, [2]string{"saved", humanizeAge(m.now(), c.CreatedAtRemote)})
	} else if !c.CreatedAtLocal.IsZero() {
		rows = append(rows, [2]string{"placed", humanizeAge(m.now(), c.CreatedAtLocal)})
	}

	var b strings.Builder
	for _, r := range rows {
		b.WriteString(styles.FaintText.Render(padRight(r[0], 8)))
		b.WriteString(styles.Text.Render(r[1]))
		b.WriteString("\n")
	}
	if c.LastError != "" {
		b.WriteString(styles.DangerText.Render(truncate(c.LastError, width)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) ownerName(c cube.LocalCube) string {
	if c.OwnerID != "" {
		if o, ok := m.snapshot.Owner(c.OwnerID); ok && o.Name != "" {
			return o.Name
		}
	}
	if c.Status != cube.StatusSynced {
		return "unsaved"
	}
	return "unknown"
}

// listWindow returns the [start, end) slice of n rows that keeps selected
// visible in at most rows lines.
func listWindow(n, selected, rows int) (int, int) {
	if n <= rows {
		return 0, n
	}
	start := selected - rows/2
	if start < 0 {
		start = 0
	}
	if start+rows > n {
		start = n - rows
	}
	return start, start + rows
}
