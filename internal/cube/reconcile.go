package cube

import "strings"

// IDFunc returns a fresh, never-reused local id.
type IDFunc func() string

// Reconcile folds records into s keyed by remote id and returns the result.
// Known remote ids update their local cube in place and become synced; unknown
// ids get a new local cube. Records without a remote id are skipped. When
// nothing changes the input pointer is returned.
func Reconcile(s *State, records []RemoteCubeView, newID IDFunc) *State {
	var next *State
	for _, r := range records {
		remoteID := strings.TrimSpace(r.RemoteID)
		if remoteID == "" {
			continue
		}
		r.RemoteID = remoteID

		current := s
		if next != nil {
			current = next
		}

		if localID, ok := current.LocalIDByRemoteID[remoteID]; ok {
			existing := current.CubesByLocalID[localID]
			merged := mergeRemote(existing, r)
			if merged.Equal(existing) {
				continue
			}
			if next == nil {
				next = s.clone()
			}
			next.CubesByLocalID[localID] = merged
			continue
		}

		if next == nil {
			next = s.clone()
		}
		localID := newID()
		next.CubesByLocalID[localID] = fromRemote(localID, r)
		next.LocalIDByRemoteID[remoteID] = localID
	}
	if next == nil {
		return s
	}
	return next
}

// mergeRemote copies the remote fields onto c and marks it synced. Local-only
// fields are preserved, as are local positions the record does not carry.
func mergeRemote(c LocalCube, r RemoteCubeView) LocalCube {
	c.RemoteID = r.RemoteID
	c.Status = StatusSynced
	c.LastError = ""
	if r.Color != "" {
		c.Color = r.Color
	}
	c.DropPosition = r.DropPosition
	if r.FinalPosition != nil {
		pos := *r.FinalPosition
		c.FinalPosition = &pos
	}
	if c.FinalPosition == nil {
		pos := c.DropPosition
		c.FinalPosition = &pos
	}
	if r.FinalRotation != nil {
		rot := *r.FinalRotation
		c.FinalRotation = &rot
	}
	if r.OwnerID != "" {
		c.OwnerID = r.OwnerID
	}
	if !r.CreatedAt.IsZero() {
		c.CreatedAtRemote = r.CreatedAt
	}
	return c
}

func fromRemote(localID string, r RemoteCubeView) LocalCube {
	c := LocalCube{
		LocalID:        localID,
		CreatedAtLocal: r.CreatedAt,
	}
	return mergeRemote(c, r)
}
