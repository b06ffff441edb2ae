package cube

import "time"

// Action is one input to the flow reducer. The set is closed: only the types
// in this file implement it.
type Action interface {
	// Kind names the action for logs and telemetry.
	Kind() string
	isAction()
}

// DropCube creates a draft cube and makes it the active flow.
type DropCube struct {
	LocalID      string
	Color        string
	DropPosition Vec3
	At           time.Time
}

// SettleCube records where the simulation brought a cube to rest.
type SettleCube struct {
	LocalID       string
	FinalPosition Vec3
	FinalRotation *Quat
}

// SaveRequest marks a cube as being written to the remote store.
type SaveRequest struct {
	LocalID string
}

// SaveSuccess records the remote id assigned to a cube and ends its flow.
type SaveSuccess struct {
	LocalID  string
	RemoteID string
}

// SaveFail marks a cube's write as rejected.
type SaveFail struct {
	LocalID string
	Err     string
}

// AbandonFlow cancels the active flow.
type AbandonFlow struct{}

// ListenerSnapshot delivers a full snapshot from the cube feed.
type ListenerSnapshot struct {
	Records    []RemoteCubeView
	ReceivedAt time.Time
}

// ResetWithFallback replaces all state with the given records.
type ResetWithFallback struct {
	Records []RemoteCubeView
}

func (DropCube) Kind() string          { return "DROP_CUBE" }
func (SettleCube) Kind() string        { return "SETTLE_CUBE" }
func (SaveRequest) Kind() string       { return "SAVE_REQUEST" }
func (SaveSuccess) Kind() string       { return "SAVE_SUCCESS" }
func (SaveFail) Kind() string          { return "SAVE_FAIL" }
func (AbandonFlow) Kind() string       { return "ABANDON_FLOW" }
func (ListenerSnapshot) Kind() string  { return "LISTENER_SNAPSHOT" }
func (ResetWithFallback) Kind() string { return "RESET_WITH_FALLBACK" }

func (DropCube) isAction()          {}
func (SettleCube) isAction()        {}
func (SaveRequest) isAction()       {}
func (SaveSuccess) isAction()       {}
func (SaveFail) isAction()          {}
func (AbandonFlow) isAction()       {}
func (ListenerSnapshot) isAction()  {}
func (ResetWithFallback) isAction() {}
