package headless

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/solarlune/resolv"

	"coin-chase/internal/client/animation"
	"coin-chase/internal/engine"
)

// Prop is a coin, platform or slime. Platforms carry a solid object in the
// collision space; coins and slimes are overlap-only.
type Prop struct {
	world *World
	kind  Kind
	id    uint32
	obj   *resolv.Object

	base   mgl64.Vec2
	offset mgl64.Vec2
	size   mgl64.Vec2

	elapsed   time.Duration
	velocity  mgl64.Vec2
	lastDelta mgl64.Vec2
	facing    int
	freed     bool
}

var (
	_ engine.Prop         = (*Prop)(nil)
	_ engine.AnimatedProp = (*Prop)(nil)
)

func (p *Prop) ID() uint32 { return p.id }
func (p *Prop) Kind() Kind { return p.kind }

func (p *Prop) Position() mgl64.Vec2 {
	return p.base.Add(p.offset)
}

// Bounds is centered on the position, except for platforms whose position
// marks the middle of their top edge.
func (p *Prop) Bounds() Rect {
	pos := p.Position()
	if p.kind == KindPlatform {
		return Rect{X: pos.X() - p.size.X()/2, Y: pos.Y(), W: p.size.X(), H: p.size.Y()}
	}
	return centered(pos, p.size.X(), p.size.Y())
}

func (p *Prop) Elapsed() time.Duration { return p.elapsed }

// Seek jumps the animation to elapsed without carrying riders.
func (p *Prop) Seek(elapsed time.Duration) {
	if p.freed {
		return
	}
	p.elapsed = elapsed
	p.animate()
	p.lastDelta = mgl64.Vec2{}
}

func (p *Prop) advance(delta float64) {
	if p.freed {
		return
	}
	before := p.Position()
	p.elapsed += time.Duration(delta * float64(time.Second))
	p.animate()
	p.lastDelta = p.Position().Sub(before)
}

func (p *Prop) animated() bool {
	return p.kind == KindPlatform || p.kind == KindEnemy
}

func (p *Prop) animate() {
	switch p.kind {
	case KindPlatform:
		p.offset = animation.PlatformOffset(p.elapsed)
		p.velocity = animation.PlatformVelocity(p.elapsed)
	case KindEnemy:
		p.offset = animation.SlimeOffset(p.elapsed)
		p.facing = animation.SlimeFacing(p.elapsed)
	}
	if p.obj != nil {
		p.world.place(p.obj, p.Bounds())
	}
}

func (p *Prop) Free() {
	if p.freed {
		return
	}
	p.freed = true
	p.world.removeProp(p)
}
