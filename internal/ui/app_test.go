package ui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/cubespace/internal/cube"
	"github.com/five82/cubespace/internal/docstore"
	"github.com/five82/cubespace/internal/flow"
	"github.com/five82/cubespace/internal/prefs"
	"github.com/five82/cubespace/internal/state"
)

type fakeWriter struct {
	mu      sync.Mutex
	owners  []docstore.OwnerInput
	cubes   []docstore.CubeInput
	cubeErr error
}

func (w *fakeWriter) EnsureAuthenticated(context.Context) error { return nil }

func (w *fakeWriter) CreateOwnerRecord(_ context.Context, in docstore.OwnerInput) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.owners = append(w.owners, in)
	return "owner-1", nil
}

func (w *fakeWriter) CreateCubeRecord(_ context.Context, in docstore.CubeInput) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cubeErr != nil {
		return "", w.cubeErr
	}
	w.cubes = append(w.cubes, in)
	return "remote-1", nil
}

type harness struct {
	provider  *state.Provider
	session   *flow.Session
	writer    *fakeWriter
	prefsPath string
}

func newHarness(t *testing.T) (Model, *harness) {
	t.Helper()
	h := &harness{
		provider:  state.New(state.Options{}),
		writer:    &fakeWriter{},
		prefsPath: filepath.Join(t.TempDir(), "prefs.toml"),
	}
	h.session = flow.New(flow.Options{Store: h.provider, Writer: h.writer, OnePerVisitor: true})
	m := New(Options{
		Scene:      h.provider,
		Flow:       h.session,
		Prefs:      prefs.Prefs{Theme: "Nightfall"},
		PrefsPath:  h.prefsPath,
		FocusDelay: time.Millisecond,
	})
	m, _ = update(m, tea.WindowSizeMsg{Width: 120, Height: 40})
	return m, h
}

func update(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
	keyTab   = tea.KeyMsg{Type: tea.KeyTab}
)

// dropAndSettle places a cube two cells east of the origin and runs the
// simulation to rest, returning the cube's local id.
func dropAndSettle(t *testing.T, m Model) (Model, string) {
	t.Helper()
	m, _ = update(m, keyRunes("p"))
	if !m.session.IsPlacing {
		t.Fatalf("expected placing mode, phase %q", m.session.Phase)
	}
	m, _ = update(m, keyRunes("l"))
	m, _ = update(m, keyRunes("l"))

	m, cmd := update(m, keyEnter)
	if cmd == nil || m.simID == "" {
		t.Fatalf("drop did not start a simulation")
	}
	id := m.simID
	for i := 0; m.sim != nil && i < 2000; i++ {
		m, cmd = update(m, physicsTickMsg{id: id})
	}
	if m.sim != nil {
		t.Fatalf("cube never settled")
	}
	if cmd == nil {
		t.Fatalf("settling should schedule the focus delay")
	}
	return m, id
}

func TestPlaceDropSettleAndSave(t *testing.T) {
	m, h := newHarness(t)
	m, id := dropAndSettle(t, m)

	c, ok := h.provider.Cube(id)
	if !ok || c.FinalPosition == nil {
		t.Fatalf("cube %s not settled: %+v", id, c)
	}
	if want := (cube.Vec3{X: 2, Y: 0.5, Z: 0}); *c.FinalPosition != want {
		t.Fatalf("final position = %+v, want %+v", *c.FinalPosition, want)
	}
	if c.FinalRotation == nil {
		t.Fatalf("expected a resting rotation")
	}
	if got := h.session.State().Phase; got != flow.PhaseFocusing {
		t.Fatalf("phase = %q, want focusing", got)
	}

	m, _ = update(m, focusDoneMsg{id: id})
	if !m.session.OwnerCardOpen || !m.ownerInput.Focused() {
		t.Fatalf("owner card should be open and focused")
	}

	// q is text while the card is open
	m, _ = update(m, keyRunes("q"))
	m, _ = update(m, keyRunes("uinn"))
	if got := m.ownerInput.Value(); got != "quinn" {
		t.Fatalf("owner input = %q, want quinn", got)
	}
	if view := m.View(); !strings.Contains(view, "Claim your cube") {
		t.Fatalf("owner card not rendered")
	}

	m, cmd := update(m, keyEnter)
	if cmd == nil {
		t.Fatalf("enter should start the save")
	}
	msg := cmd()
	done, ok := msg.(saveDoneMsg)
	if !ok || done.err != nil {
		t.Fatalf("save result = %#v", msg)
	}
	m, _ = update(m, done)

	if len(h.writer.owners) != 1 || h.writer.owners[0].Name != "quinn" {
		t.Fatalf("owners written = %+v", h.writer.owners)
	}
	if len(h.writer.cubes) != 1 || h.writer.cubes[0].FinalPosition != *c.FinalPosition {
		t.Fatalf("cubes written = %+v", h.writer.cubes)
	}
	if got, _ := h.provider.Cube(id); got.RemoteID != "remote-1" {
		t.Fatalf("remote id = %q, want remote-1", got.RemoteID)
	}
	if m.session.OwnerCardOpen || m.session.Phase != flow.PhaseIdle {
		t.Fatalf("session not reset: %+v", m.session)
	}
	if m.notice != "Cube saved" {
		t.Fatalf("notice = %q", m.notice)
	}

	saved, err := prefs.Load(h.prefsPath)
	if err != nil {
		t.Fatalf("load prefs: %v", err)
	}
	if saved.OwnerName != "quinn" {
		t.Fatalf("remembered owner = %q, want quinn", saved.OwnerName)
	}

	m, _ = update(m, keyRunes("p"))
	if m.session.IsPlacing {
		t.Fatalf("second cube should be refused")
	}
	if m.notice != "You already placed your cube" {
		t.Fatalf("notice = %q", m.notice)
	}
}

func TestEmptyNameKeepsCardOpen(t *testing.T) {
	m, _ := newHarness(t)
	m, id := dropAndSettle(t, m)
	m, _ = update(m, focusDoneMsg{id: id})

	m, cmd := update(m, keyEnter)
	m, _ = update(m, cmd())
	if !m.session.OwnerCardOpen {
		t.Fatalf("card should stay open")
	}
	if m.session.OwnerError == "" {
		t.Fatalf("expected a name error on the card")
	}
}

func TestSaveFailureKeepsCardOpen(t *testing.T) {
	m, h := newHarness(t)
	h.writer.cubeErr = errors.New("boom")
	m, id := dropAndSettle(t, m)
	m, _ = update(m, focusDoneMsg{id: id})
	m, _ = update(m, keyRunes("ada"))

	m, cmd := update(m, keyEnter)
	m, _ = update(m, cmd())

	if !m.session.OwnerCardOpen {
		t.Fatalf("card should reopen after a failed save")
	}
	if !strings.Contains(m.session.OwnerError, "boom") {
		t.Fatalf("owner error = %q", m.session.OwnerError)
	}
	c, _ := h.provider.Cube(id)
	if c.Status != cube.StatusError || !strings.Contains(c.LastError, "boom") {
		t.Fatalf("cube = %+v", c)
	}
	if m.notice != "Save failed" {
		t.Fatalf("notice = %q", m.notice)
	}
}

func TestDismissAbandonsDraft(t *testing.T) {
	m, h := newHarness(t)
	m, id := dropAndSettle(t, m)
	m, _ = update(m, focusDoneMsg{id: id})

	m, _ = update(m, keyEsc)
	if len(h.provider.Snapshot().Cubes) != 0 {
		t.Fatalf("draft should be removed")
	}
	if m.session.Phase != flow.PhaseIdle || m.ownerInput.Focused() {
		t.Fatalf("session not reset: %+v", m.session)
	}
	if m.notice != "Cube discarded" {
		t.Fatalf("notice = %q", m.notice)
	}
}

func TestAbandonWhileFalling(t *testing.T) {
	m, h := newHarness(t)
	m, _ = update(m, keyRunes("p"))
	m, _ = update(m, keyEnter)
	id := m.simID

	m, _ = update(m, keyRunes("x"))
	if m.sim != nil {
		t.Fatalf("simulation should stop")
	}
	if _, ok := h.provider.Cube(id); ok {
		t.Fatalf("draft should be removed")
	}
	if _, cmd := update(m, physicsTickMsg{id: id}); cmd != nil {
		t.Fatalf("stale tick should be ignored")
	}
	if _, cmd := update(m, focusDoneMsg{id: id}); cmd != nil || h.session.State().OwnerCardOpen {
		t.Fatalf("stale focus should be ignored")
	}
}

func TestDropIgnoredOutsidePlacing(t *testing.T) {
	m, h := newHarness(t)
	m, cmd := update(m, keyEnter)
	if cmd != nil || m.simID != "" {
		t.Fatalf("enter outside placing should do nothing")
	}
	if len(h.provider.Snapshot().Cubes) != 0 {
		t.Fatalf("no cube expected")
	}
}

func TestChangeSignalRefreshesSnapshot(t *testing.T) {
	m, h := newHarness(t)
	wait := m.waitForChange()

	h.provider.Dispatch(cube.ListenerSnapshot{Records: []cube.RemoteCubeView{{
		RemoteID:      "r1",
		OwnerID:       "o1",
		Color:         "#17bebb",
		DropPosition:  cube.Vec3{Y: 8},
		FinalPosition: &cube.Vec3{Y: 0.5},
		CreatedAt:     time.Unix(100, 0),
	}}})

	msg := wait()
	if _, ok := msg.(changeMsg); !ok {
		t.Fatalf("wait returned %#v", msg)
	}
	m, cmd := update(m, msg)
	if len(m.snapshot.Cubes) != 1 || m.snapshot.Cubes[0].RemoteID != "r1" {
		t.Fatalf("snapshot not refreshed: %+v", m.snapshot.Cubes)
	}
	if cmd == nil {
		t.Fatalf("change wait should be re-armed")
	}
}

func TestChangeWaitStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	provider := state.New(state.Options{})
	m := New(Options{Context: ctx, Scene: provider, Flow: flow.New(flow.Options{Store: provider, Writer: &fakeWriter{}})})
	wait := m.waitForChange()
	cancel()
	if msg := wait(); msg != nil {
		t.Fatalf("wait after cancel = %#v, want nil", msg)
	}
}

func TestThemeCyclePersists(t *testing.T) {
	m, h := newHarness(t)
	m, _ = update(m, keyRunes("T"))
	if m.theme.Name != "Kanagawa" {
		t.Fatalf("theme = %q", m.theme.Name)
	}
	saved, err := prefs.Load(h.prefsPath)
	if err != nil {
		t.Fatalf("load prefs: %v", err)
	}
	if saved.Theme != "Kanagawa" {
		t.Fatalf("saved theme = %q", saved.Theme)
	}
}

func TestLogViewFiltersByLevel(t *testing.T) {
	m, _ := newHarness(t)
	logPath := filepath.Join(t.TempDir(), "cubespace.log")
	content := strings.Join([]string{
		`time=2025-01-02T03:04:05.000Z level=DEBUG msg="feed message" collection=cubes`,
		`time=2025-01-02T03:04:06.000Z level=INFO msg="cube saved" local_id=abc`,
		`time=2025-01-02T03:04:07.000Z level=ERROR msg="feed closed"`,
	}, "\n") + "\n"
	if err := os.WriteFile(logPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	m.logPath = logPath

	m, cmd := update(m, keyTab)
	if m.currentView != ViewLogs || cmd == nil {
		t.Fatalf("tab should open the log view and read the file")
	}
	m, _ = update(m, cmd())
	if len(m.logState.entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(m.logState.entries))
	}
	if view := m.View(); !strings.Contains(view, "cube saved") {
		t.Fatalf("log line not rendered")
	}

	m, _ = update(m, keyRunes("F"))
	if m.logState.minLevel != "INFO" || len(m.logState.entries) != 2 {
		t.Fatalf("after F: level %q, %d entries", m.logState.minLevel, len(m.logState.entries))
	}

	m, _ = update(m, keyRunes("k"))
	if m.logState.follow {
		t.Fatalf("scrolling up should pause follow")
	}

	m, _ = update(m, keyTab)
	if m.currentView != ViewScene {
		t.Fatalf("tab should return to the scene")
	}
}

func TestHelpOverlayClosesOnAnyKey(t *testing.T) {
	m, _ := newHarness(t)
	m, _ = update(m, keyRunes("?"))
	if !m.showHelp || !strings.Contains(m.View(), "Keyboard Shortcuts") {
		t.Fatalf("help not shown")
	}
	m, _ = update(m, keyRunes("z"))
	if m.showHelp {
		t.Fatalf("help should close")
	}
}

func TestLogViewShowsFirstLoad(t *testing.T) {
	m, _ := newHarness(t)
	logPath := filepath.Join(t.TempDir(), "cubespace.log")
	line := `time=2025-01-02T03:04:06.000Z level=INFO msg="cube saved" local_id=abc` + "\n"
	if err := os.WriteFile(logPath, []byte(line), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	m.logPath = logPath

	m, cmd := update(m, keyTab)
	if view := m.View(); !strings.Contains(view, "No log entries") {
		t.Fatalf("empty pane expected before the read completes")
	}
	m, _ = update(m, cmd())

	view := m.View()
	if strings.Contains(view, "No log entries") {
		t.Fatalf("first load not rendered:\n%s", view)
	}
	if !strings.Contains(view, "cube saved") {
		t.Fatalf("log line missing from view:\n%s", view)
	}
}
