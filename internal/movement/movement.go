// Package movement is the platformer movement model shared by the local
// player and the extrapolation of remote players.
package movement

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"coin-chase/internal/engine"
)

type Params struct {
	Speed        float64
	JumpVelocity float64
	// MomentumFactor damps the held takeoff velocity once per tick while
	// airborne without input.
	MomentumFactor float64
}

func DefaultParams() Params {
	return Params{
		Speed:          100,
		JumpVelocity:   -300,
		MomentumFactor: 0.9,
	}
}

// Model carries the per-character momentum lock between ticks.
type Model struct {
	params   Params
	momentum *mgl64.Vec2
}

func New(params Params) *Model {
	return &Model{params: params}
}

func (m *Model) Params() Params {
	return m.params
}

// HasMomentum reports whether a takeoff velocity is currently held.
func (m *Model) HasMomentum() bool {
	return m.momentum != nil
}

// Reset drops the momentum lock, e.g. after a teleport.
func (m *Model) Reset() {
	m.momentum = nil
}

func ApplyGravity(velocity, gravity mgl64.Vec2, onFloor bool, delta float64) mgl64.Vec2 {
	if !onFloor {
		velocity[1] += gravity.Y() * delta
	}
	return velocity
}

// Jump launches when trigger is set while grounded. The takeoff velocity,
// including the horizontal speed of the platform left behind, becomes the
// momentum snapshot.
func (m *Model) Jump(velocity, platformVelocity mgl64.Vec2, onFloor, trigger bool) mgl64.Vec2 {
	if !trigger || !onFloor {
		return velocity
	}
	velocity[1] = m.params.JumpVelocity
	velocity[0] += platformVelocity.X()
	snapshot := velocity
	m.momentum = &snapshot
	return velocity
}

func (m *Model) ApplyHorizontal(velocity mgl64.Vec2, direction float64, onFloor bool, delta float64) mgl64.Vec2 {
	if onFloor && velocity.Y() >= 0 {
		m.momentum = nil
	}
	direction = Sign(direction)

	if m.momentum != nil {
		if direction != 0 {
			velocity[0] = direction * m.params.Speed
		} else {
			m.momentum[0] *= m.params.MomentumFactor
			velocity[0] = m.momentum.X()
		}
		return velocity
	}

	if direction != 0 {
		velocity[0] = direction * m.params.Speed
	} else {
		velocity[0] = MoveToward(velocity.X(), 0, m.params.Speed*delta)
	}
	return velocity
}

// Velocity runs one tick of the model against body and returns the new
// velocity. The caller applies it.
func (m *Model) Velocity(body engine.Body, direction float64, jump bool, delta float64) mgl64.Vec2 {
	onFloor := body.IsOnFloor()
	velocity := ApplyGravity(body.Velocity(), body.Gravity(), onFloor, delta)
	velocity = m.Jump(velocity, body.PlatformVelocity(), onFloor, jump)
	return m.ApplyHorizontal(velocity, direction, onFloor, delta)
}

// MoveToward moves from toward to by at most step.
func MoveToward(from, to, step float64) float64 {
	if math.Abs(to-from) <= step {
		return to
	}
	if to > from {
		return from + step
	}
	return from - step
}

func Sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
