package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/five82/cubespace/internal/cube"
	"github.com/five82/cubespace/internal/docstore"
	"github.com/five82/cubespace/internal/logging"
	"github.com/five82/cubespace/internal/state"
)

// Guard errors returned by Session commands.
var (
	ErrDraftPending      = errors.New("flow: an unsaved cube is still in progress")
	ErrCubeLimitReached  = errors.New("flow: this visitor already saved a cube")
	ErrNotPlacing        = errors.New("flow: not in placing mode")
	ErrNoDraft           = errors.New("flow: no cube in progress")
	ErrSaveInProgress    = errors.New("flow: save already in progress")
	ErrOwnerNameRequired = errors.New("flow: owner name is required")
)

// Phase is the user-visible step of the cube flow.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhasePlacing    Phase = "placing"
	PhaseSimulating Phase = "simulating"
	PhaseFocusing   Phase = "focusing"
	PhaseOwnerCard  Phase = "owner-card"
	PhaseSaving     Phase = "saving"
)

// AuthStatus tracks identity-provider linking. It is independent of saving.
type AuthStatus string

const (
	AuthIdle        AuthStatus = "idle"
	AuthLoading     AuthStatus = "loading"
	AuthLinked      AuthStatus = "linked"
	AuthUnavailable AuthStatus = "unavailable"
	AuthError       AuthStatus = "error"
)

// Store is the part of the Provider the session drives.
type Store interface {
	DropCube(color string, at cube.Vec3) string
	SettleCube(localID string, pos cube.Vec3, rot *cube.Quat)
	RequestSaveCube(localID string)
	ConfirmSaveCube(localID, remoteID string)
	FailSaveCube(localID, message string)
	AbandonFlow()
	Cube(localID string) (cube.LocalCube, bool)
}

// Writer persists owners and cubes.
type Writer interface {
	EnsureAuthenticated(ctx context.Context) error
	CreateOwnerRecord(ctx context.Context, in docstore.OwnerInput) (string, error)
	CreateCubeRecord(ctx context.Context, in docstore.CubeInput) (string, error)
}

// IdentityProvider links the visitor to an external profile.
type IdentityProvider interface {
	LoginWithIdentityProvider(ctx context.Context) (*docstore.Profile, error)
}

var (
	_ Store            = (*state.Provider)(nil)
	_ Writer           = (*docstore.Client)(nil)
	_ IdentityProvider = (*docstore.Client)(nil)
)

// OwnerData is what the owner card collects.
type OwnerData struct {
	Name       string
	ProfileURL string
	AvatarURL  string
}

// Options configures a Session.
type Options struct {
	Store    Store
	Writer   Writer
	Identity IdentityProvider // optional
	Logger   logging.Logger

	// OnePerVisitor blocks placing after one successful save.
	OnePerVisitor bool
	// SaveTimeout bounds the whole save sequence. Zero means no limit.
	SaveTimeout time.Duration
}

// UIState is a copy of the session's read state.
type UIState struct {
	Phase           Phase
	IsPlacing       bool
	DraftID         string
	OwnerCardOpen   bool
	Saving          bool
	AuthStatus      AuthStatus
	AuthError       string
	OwnerError      string
	HasUnsavedDraft bool
	SavedCount      int
	Profile         *docstore.Profile
}

// Session sequences place, simulate, confirm ownership, and persist on top of
// a Provider. Its methods are safe for concurrent use; OnSaveConfirm and
// OnConnectIdentityProvider block on the network and are meant to run off the
// UI goroutine.
type Session struct {
	store    Store
	writer   Writer
	identity IdentityProvider
	log      logging.Logger
	onePer   bool
	timeout  time.Duration

	mu            sync.Mutex
	phase         Phase
	draftID       string
	ownerCardOpen bool
	saving        bool
	authStatus    AuthStatus
	authError     string
	ownerError    string
	saved         int
	profile       *docstore.Profile
	generation    uint64
}

// New builds a Session.
func New(opts Options) *Session {
	log := opts.Logger
	if log == nil {
		log = logging.Noop()
	}
	return &Session{
		store:      opts.Store,
		writer:     opts.Writer,
		identity:   opts.Identity,
		log:        log.With(logging.String("component", "session")),
		onePer:     opts.OnePerVisitor,
		timeout:    opts.SaveTimeout,
		phase:      PhaseIdle,
		authStatus: AuthIdle,
	}
}

// State returns the current UI state.
func (s *Session) State() UIState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := UIState{
		Phase:         s.phase,
		IsPlacing:     s.phase == PhasePlacing,
		DraftID:       s.draftID,
		OwnerCardOpen: s.ownerCardOpen,
		Saving:        s.saving,
		AuthStatus:    s.authStatus,
		AuthError:     s.authError,
		OwnerError:    s.ownerError,
		SavedCount:    s.saved,
		Profile:       s.profile,
	}
	st.HasUnsavedDraft = s.unsavedDraftLocked()
	return st
}

func (s *Session) unsavedDraftLocked() bool {
	if s.draftID == "" {
		return false
	}
	c, ok := s.store.Cube(s.draftID)
	return ok && c.Status != cube.StatusSynced
}

// TogglePlacing enters placing mode, or leaves it when already placing.
func (s *Session) TogglePlacing() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhasePlacing {
		s.phase = PhaseIdle
		return nil
	}
	if s.saving {
		return ErrSaveInProgress
	}
	if s.unsavedDraftLocked() || s.phase != PhaseIdle {
		return ErrDraftPending
	}
	if s.onePer && s.saved > 0 {
		return ErrCubeLimitReached
	}
	s.phase = PhasePlacing
	return nil
}

// DropCube drops a cube of the given color at pos and starts simulating it.
// It returns the new cube's local id.
func (s *Session) DropCube(color string, pos cube.Vec3) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhasePlacing {
		return "", ErrNotPlacing
	}
	id := s.store.DropCube(color, pos)
	s.generation++
	s.draftID = id
	s.phase = PhaseSimulating
	s.ownerError = ""
	s.log.Debug(context.Background(), "cube dropped", logging.String("local_id", id), logging.String("color", color))
	return id, nil
}

// SettleCube records where the simulation brought the draft to rest and
// moves the camera toward it.
func (s *Session) SettleCube(localID string, pos cube.Vec3, rot *cube.Quat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if localID == "" || localID != s.draftID {
		return ErrNoDraft
	}
	s.store.SettleCube(localID, pos, rot)
	if s.phase == PhaseSimulating {
		s.phase = PhaseFocusing
	}
	return nil
}

// FocusComplete opens the owner card once the camera has reached the draft.
func (s *Session) FocusComplete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseFocusing {
		return
	}
	s.phase = PhaseOwnerCard
	s.ownerCardOpen = true
}

// OnSaveConfirm writes the owner and the draft cube to the store. A failure
// leaves the owner card open with the error shown; the user may call it
// again or abandon.
func (s *Session) OnSaveConfirm(ctx context.Context, owner OwnerData) error {
	owner.Name = strings.TrimSpace(owner.Name)

	s.mu.Lock()
	if s.saving {
		s.mu.Unlock()
		return ErrSaveInProgress
	}
	if s.draftID == "" {
		s.mu.Unlock()
		return ErrNoDraft
	}
	c, ok := s.store.Cube(s.draftID)
	if !ok || c.Status == cube.StatusSynced {
		s.mu.Unlock()
		return ErrNoDraft
	}
	if owner.Name == "" {
		s.ownerError = "Please enter a name."
		s.mu.Unlock()
		return ErrOwnerNameRequired
	}
	id := s.draftID
	gen := s.generation
	s.saving = true
	s.phase = PhaseSaving
	s.ownerError = ""
	s.mu.Unlock()

	s.store.RequestSaveCube(id)
	log := s.log.With(logging.String("local_id", id))
	log.Info(ctx, "saving cube")

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	remoteID, err := s.persist(ctx, c, owner)
	if err != nil {
		msg := err.Error()
		s.store.FailSaveCube(id, msg)
		log.Warn(ctx, "save failed", logging.Err(err))

		s.mu.Lock()
		if gen == s.generation {
			s.saving = false
			s.phase = PhaseOwnerCard
			s.ownerCardOpen = true
			s.ownerError = msg
		}
		s.mu.Unlock()
		return err
	}

	s.store.ConfirmSaveCube(id, remoteID)
	log.Info(ctx, "cube saved", logging.String("remote_id", remoteID))

	s.mu.Lock()
	s.saved++
	if gen == s.generation {
		s.resetLocked()
	}
	s.mu.Unlock()
	return nil
}

// persist runs the three network steps. Owner and cube failures are reported
// as one save failure.
func (s *Session) persist(ctx context.Context, c cube.LocalCube, owner OwnerData) (string, error) {
	if err := s.writer.EnsureAuthenticated(ctx); err != nil {
		return "", fmt.Errorf("save cube: %w", err)
	}
	ownerID, err := s.writer.CreateOwnerRecord(ctx, docstore.OwnerInput{
		Name:       owner.Name,
		ProfileURL: owner.ProfileURL,
		AvatarURL:  owner.AvatarURL,
	})
	if err != nil {
		return "", fmt.Errorf("save cube: %w", err)
	}
	final := c.DropPosition
	if c.FinalPosition != nil {
		final = *c.FinalPosition
	}
	remoteID, err := s.writer.CreateCubeRecord(ctx, docstore.CubeInput{
		OwnerID:       ownerID,
		Color:         c.Color,
		DropPosition:  c.DropPosition,
		FinalPosition: final,
		FinalRotation: c.FinalRotation,
	})
	if err != nil {
		return "", fmt.Errorf("save cube: %w", err)
	}
	return remoteID, nil
}

// OnAbandonFlow drops the draft and clears the UI state. A save still in
// flight is not cancelled; its result no longer affects the session.
func (s *Session) OnAbandonFlow() {
	s.mu.Lock()
	id := s.draftID
	s.generation++
	s.resetLocked()
	s.mu.Unlock()

	s.store.AbandonFlow()
	if id != "" {
		s.log.Info(context.Background(), "flow abandoned", logging.String("local_id", id))
	}
}

// OnOwnerDismiss closes the owner card. Without a save in flight this
// abandons the flow.
func (s *Session) OnOwnerDismiss() {
	s.mu.Lock()
	if s.saving {
		s.ownerCardOpen = false
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.OnAbandonFlow()
}

// OnConnectIdentityProvider links an external identity. Failure is recorded
// in AuthStatus and never affects a save.
func (s *Session) OnConnectIdentityProvider(ctx context.Context) (*docstore.Profile, error) {
	if s.identity == nil {
		s.mu.Lock()
		s.authStatus = AuthUnavailable
		s.mu.Unlock()
		return nil, nil
	}

	s.mu.Lock()
	s.authStatus = AuthLoading
	s.authError = ""
	s.mu.Unlock()

	profile, err := s.identity.LoginWithIdentityProvider(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case err != nil:
		s.authStatus = AuthError
		s.authError = err.Error()
		s.log.Warn(ctx, "identity linking failed", logging.Err(err))
		return nil, err
	case profile == nil:
		s.authStatus = AuthUnavailable
	default:
		s.authStatus = AuthLinked
		s.profile = profile
	}
	return profile, nil
}

func (s *Session) resetLocked() {
	s.phase = PhaseIdle
	s.draftID = ""
	s.ownerCardOpen = false
	s.saving = false
	s.ownerError = ""
}
