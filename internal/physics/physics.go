// Package physics is a small falling-cube simulation. It knows about the
// ground and about cubes already resting in the scene, which is enough to
// stack new cubes on old ones.
package physics

import (
	"math"
	"time"

	"github.com/five82/cubespace/internal/cube"
)

const (
	defaultGravity     = 9.81
	defaultSize        = 1.0
	defaultRestitution = 0.3
	settleSpeed        = 0.5
	maxStep            = 50 * time.Millisecond
)

// World holds the static obstacles a dropped cube can land on.
type World struct {
	Gravity     float64
	Size        float64
	Restitution float64

	resting []cube.Vec3
}

// NewWorld returns a world whose obstacles are cubes resting at the given
// centers.
func NewWorld(resting []cube.Vec3) *World {
	dup := make([]cube.Vec3, len(resting))
	copy(dup, resting)
	return &World{
		Gravity:     defaultGravity,
		Size:        defaultSize,
		Restitution: defaultRestitution,
		resting:     dup,
	}
}

// RestHeight is the y coordinate a cube centered at x,z comes to rest at.
func (w *World) RestHeight(x, z float64) float64 {
	half := w.Size / 2
	top := 0.0
	for _, r := range w.resting {
		if math.Abs(r.X-x) < w.Size && math.Abs(r.Z-z) < w.Size {
			if t := r.Y + half; t > top {
				top = t
			}
		}
	}
	return top + half
}

// Sim is one falling cube.
type Sim struct {
	pos         cube.Vec3
	vy          float64
	rest        float64
	gravity     float64
	restitution float64
	yaw         float64
	settled     bool
}

// Drop starts a simulation for a cube released at pos.
func (w *World) Drop(pos cube.Vec3) *Sim {
	rest := w.RestHeight(pos.X, pos.Z)
	s := &Sim{
		pos:         pos,
		rest:        rest,
		gravity:     w.Gravity,
		restitution: w.Restitution,
		yaw:         yawFor(pos),
	}
	if pos.Y <= rest {
		s.pos.Y = rest
		s.settled = true
	}
	return s
}

// Step advances the simulation by dt and reports the new position and
// whether the cube has settled. Large steps are split.
func (s *Sim) Step(dt time.Duration) (cube.Vec3, bool) {
	for dt > 0 && !s.settled {
		step := dt
		if step > maxStep {
			step = maxStep
		}
		dt -= step
		s.integrate(step.Seconds())
	}
	return s.pos, s.settled
}

func (s *Sim) integrate(sec float64) {
	s.vy -= s.gravity * sec
	s.pos.Y += s.vy * sec
	if s.pos.Y > s.rest {
		return
	}
	s.pos.Y = s.rest
	s.vy = -s.vy * s.restitution
	if math.Abs(s.vy) < settleSpeed {
		s.vy = 0
		s.settled = true
	}
}

// Position returns the current center.
func (s *Sim) Position() cube.Vec3 { return s.pos }

// Settled reports whether the cube is at rest.
func (s *Sim) Settled() bool { return s.settled }

// Rotation is the cube's resting orientation, a turn about the vertical axis.
func (s *Sim) Rotation() *cube.Quat {
	half := s.yaw / 2
	return &cube.Quat{Y: math.Sin(half), W: math.Cos(half)}
}

// yawFor derives a stable turn of up to a quarter circle from the drop point
// so identical drops land identically.
func yawFor(p cube.Vec3) float64 {
	deg := math.Mod(math.Abs(p.X*37+p.Z*17), 90)
	return deg * math.Pi / 180
}
