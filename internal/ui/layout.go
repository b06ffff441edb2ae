package ui

import "time"

// Terminal width thresholds for responsive layouts.
const (
	// LayoutCompactWidth is the threshold below which the cube list is hidden.
	LayoutCompactWidth = 90

	// cubeListWidth is the width of the cube list beside the scene.
	cubeListWidth = 34
)

// Scene geometry. The floor is a square of cells centered on the origin,
// one cell per world unit.
const (
	gridRadius = 6
	dropHeight = 8.0
)

// Timing constants.
const (
	// physicsTick is how often a falling cube is stepped.
	physicsTick = 33 * time.Millisecond

	// defaultFocusDelay stands in for the camera move to the settled cube.
	defaultFocusDelay = 600 * time.Millisecond

	// logRefreshInterval is how often the log view rereads the file.
	logRefreshInterval = 2 * time.Second

	// logTailLines bounds how much of the log file is read.
	logTailLines = 2000

	// noticeTTL is how long a transient notice stays in the footer.
	noticeTTL = 4 * time.Second
)
