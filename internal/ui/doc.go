// Package ui is the CubeSpace terminal front end, built on Bubble Tea.
//
// # Architecture Overview
//
// Model is a plain Bubble Tea model. It never owns cube state: it holds a
// copy of the provider's View and the session's UIState and refreshes both
// whenever the provider signals a change. All mutations go through the Flow
// interface (a *flow.Session in production).
//
// # Package Structure
//
//   - app.go: Model, Options, Init/Update/View, change subscription, Run
//   - scene.go: placement keys, the falling cube, floor grid and cube list
//   - owner.go: owner card, save and identity commands
//   - header.go: status bar and command bar
//   - logs.go: client log viewer over logtail
//   - keys.go, help.go: key map and help overlay
//   - theme.go, style_helpers.go: palettes and Lipgloss helpers
//
// # Event Flow
//
//  1. Init arms a command that waits on Provider.Changes; each changeMsg
//     refreshes the copies and re-arms it.
//  2. p enters placing mode, enter drops a cube above the cursor. A
//     physics.Sim advances on a ticker until the cube settles, then
//     Session.SettleCube records the rest position.
//  3. After a short pause standing in for the camera move, FocusComplete
//     opens the owner card and the name input takes focus.
//  4. enter runs Session.OnSaveConfirm in a command goroutine, since it
//     blocks on the network; esc dismisses, which abandons unless a save
//     is already running.
//
// # Key Bindings
//
//   - p: Toggle placing mode
//   - h/j/k/l or arrows: Move the drop cursor
//   - enter: Drop the cube (placing) or save (owner card)
//   - c: Next cube color
//   - x: Discard the cube in progress
//   - J/K: Select cube in the list
//   - ctrl+l: Link an identity profile (owner card)
//   - tab: Switch between scene and logs
//   - Space, F: Follow and minimum level in the log view
//   - T: Cycle theme
//   - q or Ctrl+C: Exit
//
// The chosen theme, cube color, and last saved owner name persist through
// the prefs package.
package ui
