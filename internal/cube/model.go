package cube

import (
	"sort"
	"time"
)

// Status is the lifecycle state of a LocalCube.
type Status string

const (
	StatusDraft  Status = "draft"
	StatusSaving Status = "saving"
	StatusSynced Status = "synced"
	StatusError  Status = "error"
)

// Vec3 is a position in scene units.
type Vec3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Quat is an orientation reported by the simulation.
type Quat struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
	W float64 `json:"w" yaml:"w"`
}

// LocalCube is the authoritative local entity for one cube.
type LocalCube struct {
	LocalID         string
	RemoteID        string
	Status          Status
	Color           string
	DropPosition    Vec3
	FinalPosition   *Vec3
	FinalRotation   *Quat
	OwnerID         string
	CreatedAtLocal  time.Time
	CreatedAtRemote time.Time
	LastError       string
}

// Equal reports whether two cubes carry the same values. Pointer fields are
// compared by value.
func (c LocalCube) Equal(o LocalCube) bool {
	if c.LocalID != o.LocalID ||
		c.RemoteID != o.RemoteID ||
		c.Status != o.Status ||
		c.Color != o.Color ||
		c.DropPosition != o.DropPosition ||
		c.OwnerID != o.OwnerID ||
		!c.CreatedAtLocal.Equal(o.CreatedAtLocal) ||
		!c.CreatedAtRemote.Equal(o.CreatedAtRemote) ||
		c.LastError != o.LastError {
		return false
	}
	if (c.FinalPosition == nil) != (o.FinalPosition == nil) {
		return false
	}
	if c.FinalPosition != nil && *c.FinalPosition != *o.FinalPosition {
		return false
	}
	if (c.FinalRotation == nil) != (o.FinalRotation == nil) {
		return false
	}
	return c.FinalRotation == nil || *c.FinalRotation == *o.FinalRotation
}

// RemoteCubeView is the document shape of a cube in the remote store.
type RemoteCubeView struct {
	RemoteID      string    `json:"remoteId" yaml:"remote_id"`
	OwnerID       string    `json:"ownerId" yaml:"owner_id"`
	Color         string    `json:"color" yaml:"color"`
	DropPosition  Vec3      `json:"dropPosition" yaml:"drop_position"`
	FinalPosition *Vec3     `json:"finalPosition,omitempty" yaml:"final_position"`
	FinalRotation *Quat     `json:"finalRotation,omitempty" yaml:"final_rotation"`
	CreatedAt     time.Time `json:"createdAt" yaml:"created_at"`
}

// RemoteOwnerView is the document shape of a cube owner.
type RemoteOwnerView struct {
	OwnerID    string    `json:"ownerId" yaml:"owner_id"`
	Name       string    `json:"name" yaml:"name"`
	ProfileURL string    `json:"profileUrl,omitempty" yaml:"profile_url"`
	AvatarURL  string    `json:"avatarUrl,omitempty" yaml:"avatar_url"`
	CreatedAt  time.Time `json:"createdAt" yaml:"created_at"`
}

// Snapshot is one full-state push from the cube feed.
type Snapshot struct {
	Records    []RemoteCubeView
	ReceivedAt time.Time
}

// State is the complete subsystem state owned by the reducer. Values are
// treated as immutable once returned from a Reducer.
type State struct {
	CubesByLocalID    map[string]LocalCube
	LocalIDByRemoteID map[string]string
	Buffered          *Snapshot
	ActiveFlowID      string
}

// NewState returns an empty state.
func NewState() *State {
	return &State{
		CubesByLocalID:    map[string]LocalCube{},
		LocalIDByRemoteID: map[string]string{},
	}
}

// Cube returns the cube with the given local id.
func (s *State) Cube(localID string) (LocalCube, bool) {
	if s == nil {
		return LocalCube{}, false
	}
	c, ok := s.CubesByLocalID[localID]
	return c, ok
}

// Sorted returns the cubes ordered by creation time, then local id.
func (s *State) Sorted() []LocalCube {
	if s == nil || len(s.CubesByLocalID) == 0 {
		return nil
	}
	out := make([]LocalCube, 0, len(s.CubesByLocalID))
	for _, c := range s.CubesByLocalID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].createdAt(), out[j].createdAt()
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return out[i].LocalID < out[j].LocalID
	})
	return out
}

func (c LocalCube) createdAt() time.Time {
	if !c.CreatedAtRemote.IsZero() {
		return c.CreatedAtRemote
	}
	return c.CreatedAtLocal
}

// clone returns a shallow copy with its own maps. Cube values are copied;
// position pointers are shared because they are never mutated in place.
func (s *State) clone() *State {
	next := &State{
		CubesByLocalID:    make(map[string]LocalCube, len(s.CubesByLocalID)+1),
		LocalIDByRemoteID: make(map[string]string, len(s.LocalIDByRemoteID)+1),
		Buffered:          s.Buffered,
		ActiveFlowID:      s.ActiveFlowID,
	}
	for k, v := range s.CubesByLocalID {
		next.CubesByLocalID[k] = v
	}
	for k, v := range s.LocalIDByRemoteID {
		next.LocalIDByRemoteID[k] = v
	}
	return next
}

// CheckInvariants returns a description of the first broken invariant, or
// an empty string.
func (s *State) CheckInvariants() string {
	if s.Buffered != nil && s.ActiveFlowID == "" {
		return "buffered snapshot without active flow"
	}
	for remoteID, localID := range s.LocalIDByRemoteID {
		c, ok := s.CubesByLocalID[localID]
		if !ok {
			return "index entry " + remoteID + " points at missing cube " + localID
		}
		if c.RemoteID != remoteID {
			return "index entry " + remoteID + " points at cube with remote id " + c.RemoteID
		}
	}
	for id, c := range s.CubesByLocalID {
		if c.LocalID != id {
			return "cube stored under " + id + " has local id " + c.LocalID
		}
		switch c.Status {
		case StatusDraft:
			if c.RemoteID != "" {
				return "draft cube " + id + " has a remote id"
			}
		case StatusSynced:
			if c.RemoteID == "" || c.FinalPosition == nil {
				return "synced cube " + id + " lacks remote id or final position"
			}
		}
		if c.RemoteID != "" && s.LocalIDByRemoteID[c.RemoteID] != id {
			return "cube " + id + " is not indexed by its remote id"
		}
	}
	return ""
}
