package headless

import "github.com/go-gl/mathgl/mgl64"

// Rect is an axis-aligned rectangle in world coordinates, Y pointing down.
type Rect struct {
	X, Y, W, H float64
}

func (r Rect) Min() mgl64.Vec2 { return mgl64.Vec2{r.X, r.Y} }
func (r Rect) Max() mgl64.Vec2 { return mgl64.Vec2{r.X + r.W, r.Y + r.H} }

func (r Rect) Overlaps(o Rect) bool {
	return r.X < o.X+o.W && r.X+r.W > o.X && r.Y < o.Y+o.H && r.Y+r.H > o.Y
}

// centered returns a w by h rectangle centered on p.
func centered(p mgl64.Vec2, w, h float64) Rect {
	return Rect{X: p.X() - w/2, Y: p.Y() - h/2, W: w, H: h}
}

// Level is the static collision geometry of a scene.
type Level struct {
	Bounds   Rect
	Solids   []Rect
	KillY    float64
	Gravity  float64
	CellSize int
}

const (
	PlayerWidth    = 12.0
	PlayerHeight   = 20.0
	CoinSize       = 10.0
	PlatformWidth  = 48.0
	PlatformHeight = 8.0
	SlimeWidth     = 16.0
	SlimeHeight    = 12.0
)

// MainLevel is the geometry of the "Main" scene: a ground strip, a lower
// pit on the right, and a staircase of ledges reaching the upper coins.
func MainLevel() Level {
	return Level{
		Bounds: Rect{X: -400, Y: -700, W: 1600, H: 1200},
		Solids: []Rect{
			{X: -300, Y: 0, W: 940, H: 40},
			{X: 640, Y: 48, W: 360, H: 40},
			{X: -332, Y: -600, W: 32, H: 640},
			{X: 1000, Y: -600, W: 32, H: 688},
			{X: 440, Y: -72, W: 80, H: 12},
			{X: 360, Y: -150, W: 80, H: 12},
			{X: 600, Y: -296, W: 100, H: 12},
			{X: 740, Y: -280, W: 160, H: 12},
		},
		KillY:    400,
		Gravity:  500,
		CellSize: 16,
	}
}
