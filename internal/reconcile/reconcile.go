// Package reconcile keeps remote characters close to their authoritative
// positions. Each tick a remote entity is extrapolated with the shared
// movement model driven by its last known input, then pulled toward the
// last server position: large errors snap, small ones are ignored, and
// the rest are blended with frame-count hysteresis so persistent drift is
// eventually snapped.
package reconcile

import (
	"github.com/go-gl/mathgl/mgl64"

	"coin-chase/internal/engine"
	"coin-chase/internal/movement"
)

type Params struct {
	// CorrectionStrength is the fraction of the error removed by one blend.
	CorrectionStrength    float64
	MaxCorrectionDistance float64
	Deadband              float64
	VerticalDiffThreshold float64
	// VerticalFrameThreshold is the number of consecutive ticks a vertical
	// mismatch is tolerated before snapping.
	VerticalFrameThreshold int
	// DeadbandFrameThreshold is the number of consecutive ticks outside
	// the deadband tolerated before snapping.
	DeadbandFrameThreshold int
}

func DefaultParams() Params {
	return Params{
		CorrectionStrength:     0.05,
		MaxCorrectionDistance:  100,
		Deadband:               1,
		VerticalDiffThreshold:  3,
		VerticalFrameThreshold: 10,
		DeadbandFrameThreshold: 60,
	}
}

// ServerState is the latest authoritative pose of a remote entity.
type ServerState struct {
	Position  mgl64.Vec2
	Direction int
	IsJumping bool
}

type Outcome int

const (
	// OutcomeNone means no server state has arrived yet.
	OutcomeNone Outcome = iota
	OutcomeSnap
	OutcomeVerticalHold
	OutcomeVerticalSnap
	OutcomeDeadband
	OutcomeForcedSnap
	OutcomeBlend
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeSnap:
		return "snap"
	case OutcomeVerticalHold:
		return "vertical_hold"
	case OutcomeVerticalSnap:
		return "vertical_snap"
	case OutcomeDeadband:
		return "deadband"
	case OutcomeForcedSnap:
		return "forced_snap"
	case OutcomeBlend:
		return "blend"
	default:
		return "unknown"
	}
}

// Snapped reports whether the outcome teleported the entity.
func (o Outcome) Snapped() bool {
	return o == OutcomeSnap || o == OutcomeVerticalSnap || o == OutcomeForcedSnap
}

// Entity is the reconciliation state of one remote character.
type Entity struct {
	params Params
	model  *movement.Model

	server     *ServerState
	direction  int
	jumping    bool
	wasJumping bool

	verticalFrames int
	deadbandFrames int
}

func NewEntity(params Params, movementParams movement.Params) *Entity {
	return &Entity{params: params, model: movement.New(movementParams)}
}

// SetServerState replaces the last known server state and the input used
// for extrapolation. Delivery order is not checked: the newest call wins.
func (e *Entity) SetServerState(state ServerState) {
	s := state
	e.server = &s
	e.direction = state.Direction
	e.jumping = state.IsJumping
}

func (e *Entity) ServerState() (ServerState, bool) {
	if e.server == nil {
		return ServerState{}, false
	}
	return *e.server, true
}

// Counters returns the vertical and deadband hysteresis counters.
func (e *Entity) Counters() (vertical, deadband int) {
	return e.verticalFrames, e.deadbandFrames
}

// Correct computes the corrected position for current. It never fails;
// without a server state it returns current unchanged.
func (e *Entity) Correct(current mgl64.Vec2, onFloor bool) (mgl64.Vec2, Outcome) {
	if e.server == nil {
		return current, OutcomeNone
	}
	server := e.server.Position
	distance := server.Sub(current).Len()

	if distance > e.params.MaxCorrectionDistance {
		e.resetCounters()
		return server, OutcomeSnap
	}

	verticalDiff := server.Y() - current.Y()
	if verticalDiff < 0 {
		verticalDiff = -verticalDiff
	}
	if onFloor && e.server.Direction != 0 && !e.server.IsJumping && verticalDiff > e.params.VerticalDiffThreshold {
		e.verticalFrames++
		if e.verticalFrames > e.params.VerticalFrameThreshold {
			e.resetCounters()
			return server, OutcomeVerticalSnap
		}
		return current, OutcomeVerticalHold
	}
	e.verticalFrames = 0

	if distance <= e.params.Deadband {
		e.deadbandFrames = 0
		return current, OutcomeDeadband
	}

	e.deadbandFrames++
	if e.deadbandFrames > e.params.DeadbandFrameThreshold {
		e.resetCounters()
		return server, OutcomeForcedSnap
	}
	return current.Add(server.Sub(current).Mul(e.params.CorrectionStrength)), OutcomeBlend
}

func (e *Entity) resetCounters() {
	e.verticalFrames = 0
	e.deadbandFrames = 0
}

// Step runs one physics tick for the entity's avatar: extrapolate with the
// last remote input, correct toward the server, move and animate.
func (e *Entity) Step(avatar engine.Avatar, delta float64) Outcome {
	onFloor := avatar.IsOnFloor()
	velocity := movement.ApplyGravity(avatar.Velocity(), avatar.Gravity(), onFloor, delta)

	newJump := e.jumping && !e.wasJumping && onFloor
	velocity = e.model.Jump(velocity, avatar.PlatformVelocity(), onFloor, newJump)
	e.wasJumping = e.jumping

	velocity = e.model.ApplyHorizontal(velocity, float64(e.direction), onFloor, delta)

	outcome := OutcomeNone
	if e.server != nil {
		var corrected mgl64.Vec2
		corrected, outcome = e.Correct(avatar.Position(), onFloor)
		if outcome == OutcomeBlend || outcome.Snapped() {
			avatar.SetPosition(corrected)
		}
	}

	avatar.SetVelocity(velocity)
	avatar.MoveAndSlide(delta)
	avatar.Animate(float64(e.direction), onFloor)
	return outcome
}
