package state

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/five82/cubespace/internal/cube"
	"github.com/five82/cubespace/internal/docstore"
	"github.com/five82/cubespace/internal/logging"
)

// Mode describes where the provider's data currently comes from.
type Mode string

const (
	ModeConnecting Mode = "connecting"
	ModeLive       Mode = "live"
	ModeFallback   Mode = "fallback"
)

// Feed is the remote subscription source. *docstore.Client implements it.
type Feed interface {
	SubscribeCubes(ctx context.Context, onData func([]cube.RemoteCubeView, docstore.Meta), onError func(error)) func()
	SubscribeOwners(ctx context.Context, onData func([]cube.RemoteOwnerView, docstore.Meta), onError func(error)) func()
}

// Authenticator establishes the session the feeds run under.
type Authenticator interface {
	EnsureAuthenticated(ctx context.Context) error
}

var (
	_ Feed          = (*docstore.Client)(nil)
	_ Authenticator = (*docstore.Client)(nil)
)

// Options configures a Provider.
type Options struct {
	Feed      Feed
	Auth      Authenticator // optional
	Logger    logging.Logger
	Telemetry cube.Telemetry // optional
	Fallback  *Dataset       // nil uses the embedded dataset
	NewID     cube.IDFunc    // nil uses cube.NewID
	Now       func() time.Time
}

// View is a copy of the provider's read state.
type View struct {
	Cubes             []cube.LocalCube // sorted by creation time
	CubesByLocalID    map[string]cube.LocalCube
	LocalIDByRemoteID map[string]string
	Owners            map[string]cube.RemoteOwnerView
	ActiveFlowID      string
	Buffered          bool
	Mode              Mode
	Error             string
	UpdatedAt         time.Time
}

// Owner returns the owner record for id.
func (v View) Owner(id string) (cube.RemoteOwnerView, bool) {
	o, ok := v.Owners[id]
	return o, ok
}

// Provider owns the reducer state for one mounted scene. It bridges the
// remote feeds to reducer actions and exposes dispatchers and read state.
// All methods are safe for concurrent use.
type Provider struct {
	feed     Feed
	auth     Authenticator
	log      logging.Logger
	reduce   cube.Reducer
	newID    cube.IDFunc
	now      func() time.Time
	fallback Dataset

	mu        sync.Mutex
	state     *cube.State
	owners    map[string]cube.RemoteOwnerView
	mode      Mode
	err       string
	synthetic bool // state holds fallback records
	// heldLive is the newest live snapshot received while synthetic state
	// was pinned by an active flow. It replaces the scene when the flow ends.
	heldLive    []cube.RemoteCubeView
	holdingLive bool
	updatedAt time.Time
	started   bool
	stopped   bool
	unsubs    []func()

	changes chan struct{}
}

// New builds a Provider. It does not touch the network until Start.
func New(opts Options) *Provider {
	log := opts.Logger
	if log == nil {
		log = logging.Noop()
	}
	newID := opts.NewID
	if newID == nil {
		newID = cube.NewID
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	fallback := DefaultFallback()
	if opts.Fallback != nil {
		fallback = *opts.Fallback
	}
	var reduce cube.Reducer = cube.NewReducer(newID)
	if opts.Telemetry != nil {
		reduce = cube.WithTelemetry(reduce, opts.Telemetry)
	}
	return &Provider{
		feed:     opts.Feed,
		auth:     opts.Auth,
		log:      log.With(logging.String("component", "provider")),
		reduce:   reduce,
		newID:    newID,
		now:      now,
		fallback: fallback,
		state:    cube.NewState(),
		owners:   map[string]cube.RemoteOwnerView{},
		mode:     ModeConnecting,
		changes:  make(chan struct{}, 1),
	}
}

// Start authenticates and subscribes to both feeds. Only the first call has
// any effect. A failure switches the provider to fallback mode instead of
// returning an error.
func (p *Provider) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	if p.auth != nil {
		if err := p.auth.EnsureAuthenticated(ctx); err != nil {
			p.log.Warn(ctx, "authentication failed", logging.Err(err))
			p.fail(fmt.Errorf("authenticate: %w", err))
			return
		}
	}
	if p.feed == nil {
		p.fail(fmt.Errorf("no feed configured"))
		return
	}

	unsubCubes := p.feed.SubscribeCubes(ctx, p.onCubes, func(err error) {
		p.fail(fmt.Errorf("cube feed: %w", err))
	})
	unsubOwners := p.feed.SubscribeOwners(ctx, p.onOwners, func(err error) {
		p.fail(fmt.Errorf("owner feed: %w", err))
	})
	p.log.Info(ctx, "subscribed to feeds")

	p.mu.Lock()
	stopped := p.stopped
	if !stopped {
		p.unsubs = append(p.unsubs, unsubCubes, unsubOwners)
	}
	p.mu.Unlock()
	if stopped {
		unsubCubes()
		unsubOwners()
	}
}

// Stop unsubscribes both feeds. Safe to call more than once.
func (p *Provider) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	unsubs := p.unsubs
	p.unsubs = nil
	p.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	p.log.Debug(context.Background(), "unsubscribed from feeds")
}

// Changes receives a value after state changes. Signals are coalesced: one
// receive may stand for several changes.
func (p *Provider) Changes() <-chan struct{} {
	return p.changes
}

// Snapshot returns a copy of the current read state.
func (p *Provider) Snapshot() View {
	p.mu.Lock()
	defer p.mu.Unlock()

	v := View{
		Cubes:             p.state.Sorted(),
		CubesByLocalID:    make(map[string]cube.LocalCube, len(p.state.CubesByLocalID)),
		LocalIDByRemoteID: make(map[string]string, len(p.state.LocalIDByRemoteID)),
		Owners:            make(map[string]cube.RemoteOwnerView, len(p.owners)),
		ActiveFlowID:      p.state.ActiveFlowID,
		Buffered:          p.state.Buffered != nil,
		Mode:              p.mode,
		Error:             p.err,
		UpdatedAt:         p.updatedAt,
	}
	for id, c := range p.state.CubesByLocalID {
		v.CubesByLocalID[id] = c
	}
	for rid, lid := range p.state.LocalIDByRemoteID {
		v.LocalIDByRemoteID[rid] = lid
	}
	for id, o := range p.owners {
		v.Owners[id] = o
	}
	return v
}

// Cube returns one cube from the current state.
func (p *Provider) Cube(localID string) (cube.LocalCube, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Cube(localID)
}

// ActiveFlowID returns the local id of the cube in flight, if any.
func (p *Provider) ActiveFlowID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.ActiveFlowID
}

// DropCube creates a draft cube with a fresh local id and returns the id.
func (p *Provider) DropCube(color string, at cube.Vec3) string {
	id := p.newID()
	p.Dispatch(cube.DropCube{LocalID: id, Color: color, DropPosition: at, At: p.now()})
	return id
}

// SettleCube records a cube's resting position.
func (p *Provider) SettleCube(localID string, pos cube.Vec3, rot *cube.Quat) {
	p.Dispatch(cube.SettleCube{LocalID: localID, FinalPosition: pos, FinalRotation: rot})
}

// RequestSaveCube marks a cube as saving.
func (p *Provider) RequestSaveCube(localID string) {
	p.Dispatch(cube.SaveRequest{LocalID: localID})
}

// ConfirmSaveCube records the remote id of a written cube.
func (p *Provider) ConfirmSaveCube(localID, remoteID string) {
	p.Dispatch(cube.SaveSuccess{LocalID: localID, RemoteID: remoteID})
}

// FailSaveCube marks a cube's write as failed.
func (p *Provider) FailSaveCube(localID, message string) {
	p.Dispatch(cube.SaveFail{LocalID: localID, Err: message})
}

// AbandonFlow cancels the active flow.
func (p *Provider) AbandonFlow() {
	p.Dispatch(cube.AbandonFlow{})
}

// Dispatch applies one action to the state.
func (p *Provider) Dispatch(a cube.Action) {
	p.mu.Lock()
	changed := p.applyLocked(a)
	p.mu.Unlock()
	if changed {
		p.notify()
	}
}

func (p *Provider) applyLocked(a cube.Action) bool {
	next := p.reduce(p.state, a)
	if next == p.state {
		return false
	}
	if msg := next.CheckInvariants(); msg != "" {
		p.log.Error(context.Background(), "state invariant violated",
			logging.String("action", a.Kind()), logging.String("detail", msg))
	}
	p.state = next
	p.updatedAt = p.now()
	if p.holdingLive && next.ActiveFlowID == "" {
		live := p.heldLive
		p.heldLive, p.holdingLive = nil, false
		p.synthetic = false
		p.applyLocked(cube.ResetWithFallback{Records: live})
	}
	return true
}

func (p *Provider) onCubes(records []cube.RemoteCubeView, meta docstore.Meta) {
	p.mu.Lock()
	wasFallback := p.mode == ModeFallback
	p.mode = ModeLive
	p.err = ""
	var action cube.Action = cube.ListenerSnapshot{Records: records, ReceivedAt: meta.ReceivedAt}
	if p.synthetic {
		if p.state.ActiveFlowID == "" {
			// Swap the placeholder scene for real data.
			action = cube.ResetWithFallback{Records: records}
			p.synthetic = false
		} else {
			p.heldLive = append([]cube.RemoteCubeView(nil), records...)
			p.holdingLive = true
		}
	}
	p.applyLocked(action)
	p.mu.Unlock()

	if wasFallback {
		p.log.Info(context.Background(), "feed recovered", logging.String("source", meta.Source))
	}
	p.notify()
}

func (p *Provider) onOwners(records []cube.RemoteOwnerView, _ docstore.Meta) {
	owners := make(map[string]cube.RemoteOwnerView, len(records))
	for _, o := range records {
		if o.OwnerID == "" {
			continue
		}
		owners[o.OwnerID] = o
	}
	p.mu.Lock()
	p.owners = owners
	p.mu.Unlock()
	p.notify()
}

// fail records err and applies the fallback dataset when nothing has been
// loaded yet. Live data already on screen is kept.
func (p *Provider) fail(err error) {
	p.mu.Lock()
	p.err = err.Error()
	p.mode = ModeFallback
	p.heldLive, p.holdingLive = nil, false
	applied := false
	if len(p.state.CubesByLocalID) == 0 {
		p.applyLocked(cube.ResetWithFallback{Records: p.fallback.Cubes})
		p.synthetic = true
		applied = true
	}
	if len(p.owners) == 0 {
		for _, o := range p.fallback.Owners {
			p.owners[o.OwnerID] = o
		}
	}
	p.mu.Unlock()

	p.log.Warn(context.Background(), "switched to fallback mode",
		logging.Err(err), logging.Any("fallback_applied", applied))
	p.notify()
}

func (p *Provider) notify() {
	select {
	case p.changes <- struct{}{}:
	default:
	}
}

// SortedOwners returns the owners ordered by name. Used for legends.
func (v View) SortedOwners() []cube.RemoteOwnerView {
	out := make([]cube.RemoteOwnerView, 0, len(v.Owners))
	for _, o := range v.Owners {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].OwnerID < out[j].OwnerID
	})
	return out
}
