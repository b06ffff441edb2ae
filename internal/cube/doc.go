// Package cube defines the CubeSpace entity model and the pure state machine
// that reconciles locally dropped cubes with the shared remote feed.
//
// # Overview
//
// A visitor drops a cube into the shared scene. The cube is simulated locally,
// written to the remote document store, and eventually confirmed by the live
// feed that streams every visitor's cubes. This package owns the mapping
// between local entities and remote records while that happens.
//
// # Core Types
//
//   - LocalCube: the authoritative local entity, keyed by a client-generated
//     local id that is never reused
//   - RemoteCubeView: the document shape, keyed by remote id
//   - State: cubes by local id, the remote-to-local index, at most one
//     buffered snapshot, and at most one active flow
//   - Action: the closed set of inputs (DropCube, SettleCube, SaveRequest,
//     SaveSuccess, SaveFail, AbandonFlow, ListenerSnapshot, ResetWithFallback)
//
// # Lifecycle
//
//	DropCube ──> draft ──SettleCube──> draft (final position)
//	                 │
//	           SaveRequest
//	                 ▼
//	              saving ──SaveFail──> error ──SaveRequest──> saving
//	                 │
//	           SaveSuccess (remote id set, still saving)
//	                 │
//	           feed confirms
//	                 ▼
//	              synced
//
// AbandonFlow deletes the active cube unless it is already synced.
//
// # Buffering
//
// While a flow is active, ListenerSnapshot only stores the snapshot. The
// feed can show this client's own write before SaveSuccess has indexed its
// remote id, and reconciling then would mint a duplicate cube. The buffer is
// folded in by SaveSuccess or AbandonFlow, after the index is current. Only
// the newest snapshot is kept because each one is a full view of the remote
// collection. SaveFail keeps the buffer so a retry or abandon can still use it.
//
// # Purity
//
// Reducer values never mutate their input. A transition that changes nothing
// returns the same *State, so callers can skip work by pointer comparison.
// WithTelemetry decorates a Reducer with event reporting without touching the
// base transition function.
//
// # Usage Example
//
//	reduce := cube.WithTelemetry(cube.NewReducer(nil), port)
//	s := cube.NewState()
//	s = reduce(s, cube.DropCube{LocalID: id, Color: "red", DropPosition: cube.Vec3{Y: 5}})
//	s = reduce(s, cube.SettleCube{LocalID: id, FinalPosition: cube.Vec3{}})
//	s = reduce(s, cube.SaveRequest{LocalID: id})
//	s = reduce(s, cube.SaveSuccess{LocalID: id, RemoteID: "r9"})
package cube
