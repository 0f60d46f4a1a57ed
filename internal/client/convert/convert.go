// Package convert maps between store rows and engine math types.
package convert

import (
	"github.com/go-gl/mathgl/mgl64"

	"coin-chase/internal/movement"
	"coin-chase/internal/reconcile"
	"coin-chase/internal/store"
)

func Vec(v store.Vector2) mgl64.Vec2 {
	return mgl64.Vec2{float64(v.X), float64(v.Y)}
}

func Vector2(v mgl64.Vec2) store.Vector2 {
	return store.Vector2{X: float32(v.X()), Y: float32(v.Y())}
}

// PlayerState builds the state row sent for a local player. direction is
// collapsed to its sign.
func PlayerState(position mgl64.Vec2, direction float64, jumping bool) store.PlayerState {
	return store.PlayerState{
		Position:  Vector2(position),
		Direction: int32(movement.Sign(direction)),
		IsJumping: jumping,
	}
}

// ServerState converts a player row into reconciler input.
func ServerState(s store.PlayerState) reconcile.ServerState {
	return reconcile.ServerState{
		Position:  Vec(s.Position),
		Direction: int(s.Direction),
		IsJumping: s.IsJumping,
	}
}
