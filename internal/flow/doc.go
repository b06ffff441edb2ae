// Package flow implements the Session, the user-facing state machine that
// sits above the Provider.
//
// A Session owns only UI state: the phase, the draft id, whether the owner
// card is open, and identity-linking status. Cube data lives in the Provider
// and is changed through its dispatchers.
//
//	idle → placing → simulating → focusing → owner-card → saving → idle
//	                                              ↑          │
//	                                              └─ failure ┘
//
// Abandoning at any step before the cube is synced returns to idle and
// dispatches ABANDON_FLOW. Each drop and each abandonment bumps a generation
// counter; a save that completes for an older generation still updates the
// Provider but leaves the Session's UI state alone.
package flow
