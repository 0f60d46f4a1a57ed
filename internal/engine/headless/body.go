package headless

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/solarlune/resolv"

	"coin-chase/internal/engine"
)

// floorTolerance is how far below its feet a body looks for ground.
const floorTolerance = 1.0

// Avatar is a kinematic character body. Position is the body's center.
type Avatar struct {
	world *World
	obj   *resolv.Object
	kind  Kind

	velocity mgl64.Vec2
	onFloor  bool
	floor    *Prop

	label     string
	facing    int
	animation string
	freed     bool
}

var _ engine.Avatar = (*Avatar)(nil)

func (a *Avatar) Position() mgl64.Vec2 {
	r := a.world.rectOf(a.obj)
	return mgl64.Vec2{r.X + r.W/2, r.Y + r.H/2}
}

// SetPosition teleports the body without collision checks.
func (a *Avatar) SetPosition(p mgl64.Vec2) {
	if a.freed {
		return
	}
	a.world.place(a.obj, centered(p, a.obj.W, a.obj.H))
	a.floor = nil
}

func (a *Avatar) Velocity() mgl64.Vec2     { return a.velocity }
func (a *Avatar) SetVelocity(v mgl64.Vec2) { a.velocity = v }
func (a *Avatar) IsOnFloor() bool          { return a.onFloor }

func (a *Avatar) Gravity() mgl64.Vec2 {
	return mgl64.Vec2{0, a.world.level.Gravity}
}

func (a *Avatar) PlatformVelocity() mgl64.Vec2 {
	if a.floor == nil || !a.onFloor {
		return mgl64.Vec2{}
	}
	return a.floor.velocity
}

// MoveAndSlide rides the supporting platform, then integrates velocity one
// axis at a time, stopping at solid edges and zeroing the blocked component.
func (a *Avatar) MoveAndSlide(delta float64) {
	if a.freed {
		return
	}
	if a.floor != nil && a.onFloor {
		a.obj.X += a.floor.lastDelta.X()
		a.obj.Y += a.floor.lastDelta.Y()
		a.obj.Update()
	}

	if dx := a.velocity.X() * delta; dx != 0 {
		x, blocked := a.resolveX(dx)
		a.obj.X = x
		a.obj.Update()
		if blocked {
			a.velocity[0] = 0
		}
	}
	if dy := a.velocity.Y() * delta; dy != 0 {
		y, blocked := a.resolveY(dy)
		a.obj.Y = y
		a.obj.Update()
		if blocked {
			a.velocity[1] = 0
		}
	}
	a.detectFloor()
}

func (a *Avatar) resolveX(dx float64) (float64, bool) {
	target := a.obj.X + dx
	collision := a.obj.Check(dx, 0, TagSolid)
	if collision == nil {
		return target, false
	}
	blocked := false
	for _, other := range collision.Objects {
		if a.obj.Y >= other.Y+other.H || a.obj.Y+a.obj.H <= other.Y {
			continue
		}
		if dx > 0 {
			boundary := other.X - a.obj.W
			if a.obj.X <= boundary+1e-6 && target > boundary {
				target = boundary
				blocked = true
			}
		} else {
			boundary := other.X + other.W
			if a.obj.X >= boundary-1e-6 && target < boundary {
				target = boundary
				blocked = true
			}
		}
	}
	return target, blocked
}

func (a *Avatar) resolveY(dy float64) (float64, bool) {
	target := a.obj.Y + dy
	collision := a.obj.Check(0, dy, TagSolid)
	if collision == nil {
		return target, false
	}
	blocked := false
	for _, other := range collision.Objects {
		if a.obj.X >= other.X+other.W || a.obj.X+a.obj.W <= other.X {
			continue
		}
		if dy > 0 {
			boundary := other.Y - a.obj.H
			if a.obj.Y <= boundary+1e-6 && target > boundary {
				target = boundary
				blocked = true
			}
		} else {
			boundary := other.Y + other.H
			if a.obj.Y >= boundary-1e-6 && target < boundary {
				target = boundary
				blocked = true
			}
		}
	}
	return target, blocked
}

func (a *Avatar) detectFloor() {
	a.onFloor = false
	a.floor = nil
	if a.velocity.Y() < 0 {
		return
	}
	collision := a.obj.Check(0, floorTolerance, TagSolid)
	if collision == nil {
		return
	}
	feet := a.obj.Y + a.obj.H
	for _, other := range collision.Objects {
		if a.obj.X >= other.X+other.W || a.obj.X+a.obj.W <= other.X {
			continue
		}
		if math.Abs(other.Y-feet) > floorTolerance {
			continue
		}
		a.onFloor = true
		if p := a.world.platformFor(other); p != nil {
			a.floor = p
		}
	}
}

// Animate picks idle, run or jump and faces the direction of travel.
func (a *Avatar) Animate(direction float64, onFloor bool) {
	switch {
	case direction > 0:
		a.facing = 1
	case direction < 0:
		a.facing = -1
	}
	switch {
	case !onFloor:
		a.animation = "jump"
	case direction == 0:
		a.animation = "idle"
	default:
		a.animation = "run"
	}
}

func (a *Avatar) Animation() string { return a.animation }
func (a *Avatar) Facing() int       { return a.facing }
func (a *Avatar) Label() string     { return a.label }
func (a *Avatar) Kind() Kind        { return a.kind }
func (a *Avatar) Freed() bool       { return a.freed }

func (a *Avatar) SetLabel(text string) {
	a.label = text
}

func (a *Avatar) Free() {
	if a.freed {
		return
	}
	a.freed = true
	a.world.removeAvatar(a)
}
