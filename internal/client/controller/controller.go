// Package controller drives the local player: it polls input, predicts
// movement with the shared model, applies it immediately and pushes the
// resulting state to the server every tick.
package controller

import (
	"github.com/go-gl/mathgl/mgl64"

	"coin-chase/internal/client/convert"
	"coin-chase/internal/engine"
	"coin-chase/internal/movement"
	"coin-chase/internal/store"
	"coin-chase/internal/telemetry"
)

// DefaultPickupRadius is the distance at which the player touches a coin.
const DefaultPickupRadius = 12.0

// Session is the part of the session the controller writes to.
type Session interface {
	SendState(state store.PlayerState) error
	CollectCoin(id uint32) error
}

type Config struct {
	Avatar   engine.Avatar
	Input    engine.Input
	Session  Session
	Killzone engine.Killzone
	// SpawnPoint is where the player reappears after touching a killzone.
	SpawnPoint mgl64.Vec2
	// Coins are the spawned coins by row id. Collected coins are freed
	// and removed from the map.
	Coins        map[uint32]engine.Prop
	Params       movement.Params
	PickupRadius float64
	Logger       telemetry.Logger
}

type Controller struct {
	cfg   Config
	model *movement.Model

	lastState store.PlayerState
	deaths    int
	collected int
	sendFails int
}

func New(cfg Config) *Controller {
	if cfg.Params == (movement.Params{}) {
		cfg.Params = movement.DefaultParams()
	}
	if cfg.PickupRadius <= 0 {
		cfg.PickupRadius = DefaultPickupRadius
	}
	if cfg.Logger == nil {
		cfg.Logger = telemetry.Discard
	}
	return &Controller{cfg: cfg, model: movement.New(cfg.Params)}
}

// PhysicsProcess runs one tick of delta seconds.
func (c *Controller) PhysicsProcess(delta float64) {
	avatar := c.cfg.Avatar
	input := c.cfg.Input

	onFloor := avatar.IsOnFloor()
	jumpPressed := input.IsActionJustPressed(engine.ActionJump)
	direction := movement.Sign(input.Axis(engine.ActionMoveLeft, engine.ActionMoveRight))

	velocity := c.model.Velocity(avatar, direction, jumpPressed, delta)
	avatar.SetVelocity(velocity)
	avatar.MoveAndSlide(delta)
	avatar.Animate(direction, onFloor)

	if c.cfg.Killzone != nil && c.cfg.Killzone.InKillzone(avatar.Position()) {
		c.respawn()
	}
	c.pickupCoins()

	jumping := jumpPressed || (!onFloor && avatar.Velocity().Y() < 0)
	c.lastState = convert.PlayerState(avatar.Position(), direction, jumping)
	if err := c.cfg.Session.SendState(c.lastState); err != nil {
		c.sendFails++
		c.cfg.Logger.Printf("failed to send player state: %v", err)
	}
}

func (c *Controller) respawn() {
	c.deaths++
	c.cfg.Avatar.SetPosition(c.cfg.SpawnPoint)
	c.cfg.Avatar.SetVelocity(mgl64.Vec2{})
	c.model.Reset()
}

// pickupCoins collects every coin within reach. The coin disappears
// locally right away; a lost race is reported by the server and ignored.
func (c *Controller) pickupCoins() {
	position := c.cfg.Avatar.Position()
	for id, coin := range c.cfg.Coins {
		if coin.Position().Sub(position).Len() > c.cfg.PickupRadius {
			continue
		}
		if err := c.cfg.Session.CollectCoin(id); err != nil {
			c.cfg.Logger.Printf("failed to collect coin %d: %v", id, err)
			continue
		}
		coin.Free()
		delete(c.cfg.Coins, id)
		c.collected++
	}
}

// LastState is the state sent on the last tick.
func (c *Controller) LastState() store.PlayerState { return c.lastState }

func (c *Controller) Deaths() int { return c.deaths }

// Collected counts coin pickups attempted by this controller.
func (c *Controller) Collected() int { return c.collected }

func (c *Controller) SendFailures() int { return c.sendFails }
