// Package engine declares the contracts the game logic needs from a game
// engine runtime: physics bodies, input polling and a spawn API.
package engine

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// Body is a kinematic character body. MoveAndSlide integrates the current
// velocity over delta seconds and resolves collisions.
type Body interface {
	Position() mgl64.Vec2
	SetPosition(mgl64.Vec2)
	Velocity() mgl64.Vec2
	SetVelocity(mgl64.Vec2)
	MoveAndSlide(delta float64)
	IsOnFloor() bool
	Gravity() mgl64.Vec2
	// PlatformVelocity is the velocity of the moving platform the body
	// stands on, or zero.
	PlatformVelocity() mgl64.Vec2
}

type Action string

const (
	ActionMoveLeft  Action = "move_left"
	ActionMoveRight Action = "move_right"
	ActionJump      Action = "jump"
)

type Input interface {
	// Axis returns the strength of positive minus the strength of negative,
	// in [-1, 1].
	Axis(negative, positive Action) float64
	// IsActionJustPressed reports a press that started this frame.
	IsActionJustPressed(action Action) bool
}

// Avatar is a spawned player character.
type Avatar interface {
	Body
	// Animate selects the animation for the given movement.
	Animate(direction float64, onFloor bool)
	SetLabel(text string)
	Free()
}

type Prop interface {
	Position() mgl64.Vec2
	Free()
}

// AnimatedProp is a prop whose motion is a pure function of elapsed time.
type AnimatedProp interface {
	Prop
	Seek(elapsed time.Duration)
}

const (
	PrefabLocalPlayer  = "prefabs/local_player"
	PrefabRemotePlayer = "prefabs/remote_player"
	PrefabCoin         = "prefabs/coin"
	PrefabPlatform     = "prefabs/platform"
	PrefabEnemy        = "prefabs/green_slime"
)

type Spawner interface {
	SpawnLocalPlayer(name string, position mgl64.Vec2) (Avatar, error)
	SpawnRemotePlayer(name string, position mgl64.Vec2) (Avatar, error)
	SpawnCoin(id uint32, position mgl64.Vec2) (Prop, error)
	SpawnPlatform(id uint32, position mgl64.Vec2) (AnimatedProp, error)
	SpawnEnemy(id uint32, position mgl64.Vec2) (AnimatedProp, error)
}

// Killzone reports whether a position is lethal: below the level or
// touching a hazard.
type Killzone interface {
	InKillzone(position mgl64.Vec2) bool
}
