// Package headless is an engine runtime without a window: resolv collision
// spaces, kinematic bodies, animated props, scripted input and a spawner
// with injectable failures. The terminal front-end and the tests run the
// game logic on top of it.
package headless

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/solarlune/resolv"

	"coin-chase/internal/engine"
)

const (
	TagSolid    = "solid"
	TagPlatform = "platform"
	TagBody     = "body"
)

// Kind classifies what a drawable is.
type Kind int

const (
	KindLocalPlayer Kind = iota
	KindRemotePlayer
	KindCoin
	KindPlatform
	KindEnemy
	KindSolid
)

// Drawable is a render-ready view of one entity.
type Drawable struct {
	Kind      Kind
	Bounds    Rect
	Label     string
	Facing    int
	Animation string
}

// World owns the collision space and every spawned entity.
type World struct {
	level  Level
	space  *resolv.Space
	origin mgl64.Vec2

	avatars  []*Avatar
	props    []*Prop
	failures map[string]error
}

var (
	_ engine.Spawner  = (*World)(nil)
	_ engine.Killzone = (*World)(nil)
)

func NewWorld(level Level) *World {
	cell := level.CellSize
	if cell <= 0 {
		cell = 16
	}
	w := &World{
		level:    level,
		space:    resolv.NewSpace(int(math.Ceil(level.Bounds.W)), int(math.Ceil(level.Bounds.H)), cell, cell),
		origin:   level.Bounds.Min(),
		failures: make(map[string]error),
	}
	for _, solid := range level.Solids {
		w.space.Add(w.newObject(solid, TagSolid))
	}
	return w
}

func (w *World) Level() Level {
	return w.level
}

// newObject converts a world rectangle into a space object.
func (w *World) newObject(r Rect, tags ...string) *resolv.Object {
	obj := resolv.NewObject(r.X-w.origin.X(), r.Y-w.origin.Y(), r.W, r.H, tags...)
	obj.SetShape(resolv.NewRectangle(0, 0, r.W, r.H))
	return obj
}

func (w *World) rectOf(obj *resolv.Object) Rect {
	return Rect{X: obj.X + w.origin.X(), Y: obj.Y + w.origin.Y(), W: obj.W, H: obj.H}
}

func (w *World) place(obj *resolv.Object, r Rect) {
	obj.X = r.X - w.origin.X()
	obj.Y = r.Y - w.origin.Y()
	obj.Update()
}

// Advance moves every animated prop forward by delta seconds. Call it once
// per physics tick before stepping bodies so riders follow their platform.
func (w *World) Advance(delta float64) {
	for _, p := range w.props {
		if p.animated() {
			p.advance(delta)
		}
	}
}

// InKillzone reports positions below the level or touching a slime.
func (w *World) InKillzone(position mgl64.Vec2) bool {
	if position.Y() > w.level.KillY {
		return true
	}
	body := centered(position, PlayerWidth, PlayerHeight)
	for _, p := range w.props {
		if p.kind == KindEnemy && p.Bounds().Overlaps(body) {
			return true
		}
	}
	return false
}

// FailSpawn makes every later spawn of prefab return err. A nil err clears
// the failure.
func (w *World) FailSpawn(prefab string, err error) {
	if err == nil {
		delete(w.failures, prefab)
		return
	}
	w.failures[prefab] = err
}

// Failure is a way loading a prefab can go wrong in an engine.
type Failure int

const (
	FailNone Failure = iota
	// FailLoad is a missing or unreadable resource.
	FailLoad
	// FailCast is a resource whose root node has the wrong type.
	FailCast
	// FailInstantiate is a scene that loaded but could not be instanced.
	FailInstantiate
)

// BreakPrefab makes later spawns of prefab fail with the typed resource
// error for f. FailNone repairs the prefab.
func (w *World) BreakPrefab(prefab string, f Failure) {
	switch f {
	case FailLoad:
		w.FailSpawn(prefab, &engine.ResourceLoadError{Path: prefab})
	case FailCast:
		w.FailSpawn(prefab, &engine.ResourceCastError{Path: prefab, Target: castTarget(prefab)})
	case FailInstantiate:
		w.FailSpawn(prefab, &engine.ResourceInstantiateError{Path: prefab})
	default:
		w.FailSpawn(prefab, nil)
	}
}

// castTarget names the handle type a prefab is cast to when spawned.
func castTarget(prefab string) string {
	switch prefab {
	case engine.PrefabLocalPlayer, engine.PrefabRemotePlayer:
		return "Avatar"
	case engine.PrefabPlatform, engine.PrefabEnemy:
		return "AnimatedProp"
	default:
		return "Prop"
	}
}

func (w *World) Avatars() []*Avatar {
	return append([]*Avatar(nil), w.avatars...)
}

func (w *World) Props() []*Prop {
	return append([]*Prop(nil), w.props...)
}

// Drawables lists solids, props and avatars in back-to-front order.
func (w *World) Drawables() []Drawable {
	out := make([]Drawable, 0, len(w.level.Solids)+len(w.props)+len(w.avatars))
	for _, s := range w.level.Solids {
		out = append(out, Drawable{Kind: KindSolid, Bounds: s})
	}
	props := w.Props()
	sort.SliceStable(props, func(i, j int) bool { return props[i].kind < props[j].kind })
	for _, p := range props {
		out = append(out, Drawable{Kind: p.kind, Bounds: p.Bounds(), Facing: p.facing})
	}
	for _, a := range w.avatars {
		out = append(out, Drawable{
			Kind:      a.kind,
			Bounds:    w.rectOf(a.obj),
			Label:     a.label,
			Facing:    a.facing,
			Animation: a.animation,
		})
	}
	return out
}

func (w *World) removeAvatar(a *Avatar) {
	for i, existing := range w.avatars {
		if existing == a {
			w.avatars = append(w.avatars[:i], w.avatars[i+1:]...)
			break
		}
	}
	w.space.Remove(a.obj)
}

func (w *World) removeProp(p *Prop) {
	for i, existing := range w.props {
		if existing == p {
			w.props = append(w.props[:i], w.props[i+1:]...)
			break
		}
	}
	if p.obj != nil {
		w.space.Remove(p.obj)
	}
}

// platformFor returns the platform prop owning obj, if any.
func (w *World) platformFor(obj *resolv.Object) *Prop {
	if !obj.HasTags(TagPlatform) {
		return nil
	}
	for _, p := range w.props {
		if p.obj == obj {
			return p
		}
	}
	return nil
}
