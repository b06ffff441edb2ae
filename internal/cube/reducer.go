package cube

import (
	"strings"

	"github.com/google/uuid"
)

// Reducer is a pure transition function over State. It never mutates its
// input and returns the same pointer when an action changes nothing.
type Reducer func(*State, Action) *State

// NewID returns a UUIDv7 string. Used as the default IDFunc.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewReducer builds the flow reducer. newID mints local ids for cubes first
// seen through a snapshot; nil uses NewID.
func NewReducer(newID IDFunc) Reducer {
	if newID == nil {
		newID = NewID
	}
	return func(s *State, a Action) *State {
		if s == nil {
			s = NewState()
		}
		switch a := a.(type) {
		case DropCube:
			return dropCube(s, a)
		case SettleCube:
			return settleCube(s, a)
		case SaveRequest:
			return saveRequest(s, a)
		case SaveSuccess:
			return saveSuccess(s, a, newID)
		case SaveFail:
			return saveFail(s, a)
		case AbandonFlow:
			return abandonFlow(s, newID)
		case ListenerSnapshot:
			return listenerSnapshot(s, a, newID)
		case ResetWithFallback:
			return Reconcile(NewState(), a.Records, newID)
		default:
			return s
		}
	}
}

func dropCube(s *State, a DropCube) *State {
	if a.LocalID == "" {
		return s
	}
	if existing, ok := s.CubesByLocalID[a.LocalID]; ok && existing.Status != StatusDraft {
		// local ids are never reassigned to a different cube
		return s
	}
	next := s.clone()
	next.CubesByLocalID[a.LocalID] = LocalCube{
		LocalID:        a.LocalID,
		Status:         StatusDraft,
		Color:          a.Color,
		DropPosition:   a.DropPosition,
		CreatedAtLocal: a.At,
	}
	next.ActiveFlowID = a.LocalID
	return next
}

func settleCube(s *State, a SettleCube) *State {
	c, ok := s.CubesByLocalID[a.LocalID]
	if !ok {
		return s
	}
	pos := a.FinalPosition
	c.FinalPosition = &pos
	if a.FinalRotation != nil {
		rot := *a.FinalRotation
		c.FinalRotation = &rot
	}
	next := s.clone()
	next.CubesByLocalID[a.LocalID] = c
	return next
}

func saveRequest(s *State, a SaveRequest) *State {
	c, ok := s.CubesByLocalID[a.LocalID]
	if !ok || c.Status == StatusSynced {
		return s
	}
	c.Status = StatusSaving
	c.LastError = ""
	next := s.clone()
	next.CubesByLocalID[a.LocalID] = c
	return next
}

func saveSuccess(s *State, a SaveSuccess, newID IDFunc) *State {
	c, ok := s.CubesByLocalID[a.LocalID]
	remoteID := strings.TrimSpace(a.RemoteID)
	if !ok || remoteID == "" {
		return s
	}
	next := s.clone()
	if c.RemoteID != "" && c.RemoteID != remoteID {
		delete(next.LocalIDByRemoteID, c.RemoteID)
	}
	if other, ok := next.LocalIDByRemoteID[remoteID]; ok && other != a.LocalID {
		// a cube synthesized for the same record is superseded by this one
		delete(next.CubesByLocalID, other)
	}
	c.RemoteID = remoteID
	if c.Status != StatusSynced {
		c.Status = StatusSaving
	}
	c.LastError = ""
	next.CubesByLocalID[a.LocalID] = c
	next.LocalIDByRemoteID[remoteID] = a.LocalID

	buffered := next.Buffered
	next.Buffered = nil
	next.ActiveFlowID = ""
	if buffered != nil {
		next = Reconcile(next, buffered.Records, newID)
	}
	return next
}

func saveFail(s *State, a SaveFail) *State {
	c, ok := s.CubesByLocalID[a.LocalID]
	if !ok || c.Status == StatusSynced {
		return s
	}
	c.Status = StatusError
	c.LastError = a.Err
	next := s.clone()
	next.CubesByLocalID[a.LocalID] = c
	return next
}

func abandonFlow(s *State, newID IDFunc) *State {
	if s.ActiveFlowID == "" {
		return s
	}
	next := s.clone()
	if c, ok := next.CubesByLocalID[s.ActiveFlowID]; ok && c.Status != StatusSynced {
		delete(next.CubesByLocalID, c.LocalID)
		if c.RemoteID != "" && next.LocalIDByRemoteID[c.RemoteID] == c.LocalID {
			delete(next.LocalIDByRemoteID, c.RemoteID)
		}
	}
	buffered := next.Buffered
	next.Buffered = nil
	next.ActiveFlowID = ""
	if buffered != nil {
		next = Reconcile(next, buffered.Records, newID)
	}
	return next
}

func listenerSnapshot(s *State, a ListenerSnapshot, newID IDFunc) *State {
	if s.ActiveFlowID != "" {
		next := *s
		next.Buffered = &Snapshot{Records: a.Records, ReceivedAt: a.ReceivedAt}
		return &next
	}
	if s.Buffered != nil {
		cleared := *s
		cleared.Buffered = nil
		s = &cleared
	}
	return Reconcile(s, a.Records, newID)
}
