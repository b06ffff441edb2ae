// Package state holds the Provider, the stateful shell around the cube
// reducer.
//
// # Overview
//
// A Provider owns exactly one cube.State for the lifetime of a mounted scene.
// It is the only component that subscribes to the remote feeds and the only
// one that calls the reducer. Everything else reads copies through Snapshot
// and writes through the dispatchers.
//
//	Feeds (goroutines):          Dispatchers (UI, Session):
//	┌──────────────────┐        ┌─────────────────────────┐
//	│ cube snapshot    │        │ DropCube / SettleCube   │
//	│ owner snapshot   │        │ RequestSaveCube         │
//	│ feed error       │        │ ConfirmSaveCube         │
//	└────────┬─────────┘        │ FailSaveCube / Abandon  │
//	         │                  └────────────┬────────────┘
//	         └──────────→ reducer ←──────────┘
//	                   (under mutex)
//	                        │
//	                  Changes() signal → Snapshot()
//
// # Lifecycle
//
// Start authenticates, then subscribes to the cube and owner feeds. It runs
// once; later calls do nothing. Stop unsubscribes both feeds and may be called
// any number of times, including before Start returns.
//
// # Fallback Mode
//
// Any failure (authentication, either feed) records the error string and
// switches Mode to ModeFallback. If no cubes are loaded yet the embedded
// dataset in fallback.yaml is applied with RESET_WITH_FALLBACK so the scene is
// never blank. Live data already loaded is kept. When a polling feed recovers,
// the next cube snapshot replaces the placeholder scene, unless a flow is in
// progress, in which case it is buffered as usual.
//
// # Concurrency
//
// Feed callbacks and dispatchers may arrive from any goroutine. All reducer
// calls happen under one mutex, so actions apply atomically in the order the
// lock is acquired. Changes is a one-slot channel: a receive means "something
// changed since you last looked", which suits a render loop that always
// redraws from a fresh Snapshot.
package state
