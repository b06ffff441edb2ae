package ui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/cubespace/internal/cube"
	"github.com/five82/cubespace/internal/docstore"
	"github.com/five82/cubespace/internal/flow"
	"github.com/five82/cubespace/internal/logging"
	"github.com/five82/cubespace/internal/physics"
	"github.com/five82/cubespace/internal/prefs"
	"github.com/five82/cubespace/internal/state"
)

// View represents the active pane.
type View int

const (
	ViewScene View = iota
	ViewLogs
)

// Scene is the read side of the data provider.
type Scene interface {
	Snapshot() state.View
	Changes() <-chan struct{}
}

// Flow is the cube flow the UI drives.
type Flow interface {
	State() flow.UIState
	TogglePlacing() error
	DropCube(color string, pos cube.Vec3) (string, error)
	SettleCube(localID string, pos cube.Vec3, rot *cube.Quat) error
	FocusComplete()
	OnSaveConfirm(ctx context.Context, owner flow.OwnerData) error
	OnAbandonFlow()
	OnOwnerDismiss()
	OnConnectIdentityProvider(ctx context.Context) (*docstore.Profile, error)
}

var (
	_ Scene = (*state.Provider)(nil)
	_ Flow  = (*flow.Session)(nil)
)

// Options configures the UI.
type Options struct {
	Context   context.Context
	Scene     Scene
	Flow      Flow
	Logger    logging.Logger
	LogPath   string
	Prefs     prefs.Prefs
	PrefsPath string

	// FocusDelay is the pause between a cube settling and the owner card
	// opening. Zero uses the default.
	FocusDelay time.Duration
	Now        func() time.Time
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx        context.Context
	scene      Scene
	flow       Flow
	log        logging.Logger
	logPath    string
	prefs      prefs.Prefs
	prefsPath  string
	focusDelay time.Duration
	now        func() time.Time
	keys       keyMap

	// UI state
	theme       Theme
	currentView View
	width       int
	height      int
	ready       bool
	showHelp    bool

	// Data state
	snapshot state.View
	session  flow.UIState

	// Placement
	cursorX  int
	cursorZ  int
	color    string
	selected int

	// Falling cube
	sim   *physics.Sim
	simID string

	ownerInput textinput.Model

	notice       string
	noticeDanger bool
	noticeAt     time.Time

	logViewport viewport.Model
	logState    logState
}

// New creates the Bubble Tea model and takes an initial snapshot.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	log := opts.Logger
	if log == nil {
		log = logging.Noop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	focusDelay := opts.FocusDelay
	if focusDelay <= 0 {
		focusDelay = defaultFocusDelay
	}

	color := opts.Prefs.Color
	if color == "" {
		color = CubeColors[0]
	}

	input := textinput.New()
	input.Placeholder = "Your name"
	input.CharLimit = 80
	input.Prompt = "› "
	input.Cursor.SetMode(cursor.CursorStatic)
	input.SetValue(opts.Prefs.OwnerName)

	m := Model{
		ctx:         ctx,
		scene:       opts.Scene,
		flow:        opts.Flow,
		log:         log.With(logging.String("component", "ui")),
		logPath:     opts.LogPath,
		prefs:       opts.Prefs,
		prefsPath:   opts.PrefsPath,
		focusDelay:  focusDelay,
		now:         now,
		keys:        DefaultKeyMap(),
		theme:       GetTheme(opts.Prefs.Theme),
		currentView: ViewScene,
		color:       color,
		ownerInput:  input,
		logState:    newLogState(),
	}
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.waitForChange(),
		logTickCmd(),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.initLogViewport()
		}
		m.ready = true
		m.updateLogViewport()
		return m, nil

	case changeMsg:
		m.refresh()
		return m, m.waitForChange()

	case physicsTickMsg:
		return m.handlePhysicsTick(msg)

	case focusDoneMsg:
		return m.handleFocusDone(msg)

	case saveDoneMsg:
		return m.handleSaveDone(msg)

	case identityDoneMsg:
		return m.handleIdentityDone(msg)

	case logTickMsg:
		if m.currentView == ViewLogs && m.logState.follow {
			return m, tea.Batch(readLogCmd(m.logPath), logTickCmd())
		}
		return m, logTickCmd()

	case logLinesMsg:
		m.handleLogLines(msg)
		return m, nil
	}

	if m.ownerInput.Focused() {
		var cmd tea.Cmd
		m.ownerInput, cmd = m.ownerInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	return m.renderMain()
}

// refresh copies the provider and session state into the model.
func (m *Model) refresh() {
	if m.scene != nil {
		m.snapshot = m.scene.Snapshot()
	}
	m.refreshSession()
	if m.selected >= len(m.snapshot.Cubes) {
		m.selected = len(m.snapshot.Cubes) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

func (m *Model) refreshSession() {
	if m.flow == nil {
		return
	}
	m.session = m.flow.State()
	if m.session.OwnerCardOpen && !m.ownerInput.Focused() {
		m.ownerInput.Focus()
	}
	if !m.session.OwnerCardOpen && m.ownerInput.Focused() {
		m.ownerInput.Blur()
	}
}

func (m *Model) setNotice(text string, danger bool) {
	m.notice = text
	m.noticeDanger = danger
	m.noticeAt = m.now()
}

func (m Model) activeNotice() (string, bool) {
	if m.notice == "" || m.now().Sub(m.noticeAt) > noticeTTL {
		return "", false
	}
	return m.notice, m.noticeDanger
}

func (m *Model) savePrefs() {
	if m.prefsPath == "" {
		return
	}
	if err := prefs.Save(m.prefsPath, m.prefs); err != nil {
		m.log.Warn(m.ctx, "save prefs failed", logging.Err(err))
	}
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	if m.currentView == ViewScene && m.session.OwnerCardOpen {
		return m.handleOwnerKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.prefs.Theme = m.theme.Name
		m.savePrefs()
		m.logState.rendered = 0
		m.updateLogViewport()
		return m, nil

	case key.Matches(msg, m.keys.Tab):
		if m.currentView == ViewScene {
			m.currentView = ViewLogs
			return m, readLogCmd(m.logPath)
		}
		m.currentView = ViewScene
		return m, nil
	}

	switch m.currentView {
	case ViewLogs:
		return m.handleLogsKey(msg)
	default:
		return m.handleSceneKey(msg)
	}
}

// renderMain renders header, content, and command bar.
func (m Model) renderMain() string {
	content := m.renderScene()
	if m.currentView == ViewLogs {
		content = m.renderLogs()
	}
	return m.renderHeader() + "\n" + content + "\n" + m.renderCommandBar()
}

// Messages

type changeMsg struct{}

type logTickMsg time.Time

// Commands

// waitForChange blocks until the provider signals a change. Each changeMsg
// re-arms it, so exactly one waiter is outstanding.
func (m Model) waitForChange() tea.Cmd {
	if m.scene == nil {
		return nil
	}
	ch := m.scene.Changes()
	ctx := m.ctx
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			return changeMsg{}
		}
	}
}

func logTickCmd() tea.Cmd {
	return tea.Tick(logRefreshInterval, func(t time.Time) tea.Msg {
		return logTickMsg(t)
	})
}

// Run starts the Bubble Tea program and blocks until the user quits or the
// context is cancelled.
func Run(opts Options) error {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
		opts.Context = ctx
	}
	p := tea.NewProgram(New(opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
