// Package term plays the game in a terminal. It draws the headless world
// with tcell and turns key presses into engine input.
package term

import (
	"math"

	"github.com/gdamore/tcell/v2"
	"github.com/go-gl/mathgl/mgl64"

	"coin-chase/internal/engine/headless"
)

// World units covered by one terminal cell.
const (
	unitsPerColumn = 8.0
	unitsPerRow    = 16.0
)

type glyph struct {
	r     rune
	style tcell.Style
}

var glyphs = map[headless.Kind]glyph{
	headless.KindSolid:        {'█', tcell.StyleDefault.Foreground(tcell.ColorGray)},
	headless.KindPlatform:     {'=', tcell.StyleDefault.Foreground(tcell.ColorTeal)},
	headless.KindCoin:         {'o', tcell.StyleDefault.Foreground(tcell.ColorYellow)},
	headless.KindEnemy:        {'s', tcell.StyleDefault.Foreground(tcell.ColorGreen)},
	headless.KindRemotePlayer: {'P', tcell.StyleDefault.Foreground(tcell.ColorBlue)},
	headless.KindLocalPlayer:  {'@', tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)},
}

// View renders drawables around a camera focus.
type View struct {
	screen tcell.Screen
}

func NewView(screen tcell.Screen) *View {
	return &View{screen: screen}
}

// cell maps a world point to a screen cell for a camera centred on focus.
func (v *View) cell(p, focus mgl64.Vec2) (int, int) {
	w, h := v.screen.Size()
	// The bottom row is the status line.
	h--
	col := int(math.Floor((p.X()-focus.X())/unitsPerColumn)) + w/2
	row := int(math.Floor((p.Y()-focus.Y())/unitsPerRow)) + h/2
	return col, row
}

func (v *View) Draw(drawables []headless.Drawable, focus mgl64.Vec2, status string) {
	v.screen.Clear()
	w, h := v.screen.Size()
	for _, d := range drawables {
		g, ok := glyphs[d.Kind]
		if !ok {
			continue
		}
		x0, y0 := v.cell(mgl64.Vec2{d.Bounds.X, d.Bounds.Y}, focus)
		x1, y1 := v.cell(mgl64.Vec2{d.Bounds.X + d.Bounds.W, d.Bounds.Y + d.Bounds.H}, focus)
		// Everything is at least one cell.
		x1 = max(x1, x0+1)
		y1 = max(y1, y0+1)
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				v.set(x, y, h-1, g.r, g.style)
			}
		}
		if d.Label != "" {
			v.text(x0-len(d.Label)/2, y0-1, h-1, d.Label, g.style)
		}
	}
	v.text(0, h-1, h, status, tcell.StyleDefault.Reverse(true))
	for x := len([]rune(status)); x < w; x++ {
		v.screen.SetContent(x, h-1, ' ', nil, tcell.StyleDefault.Reverse(true))
	}
	v.screen.Show()
}

// set draws a cell if it lies above row limit.
func (v *View) set(x, y, limit int, r rune, style tcell.Style) {
	w, _ := v.screen.Size()
	if x < 0 || y < 0 || x >= w || y >= limit {
		return
	}
	v.screen.SetContent(x, y, r, nil, style)
}

func (v *View) text(x, y, limit int, s string, style tcell.Style) {
	for i, r := range []rune(s) {
		v.set(x+i, y, limit, r, style)
	}
}

// Focus returns the centre of the local player, or the centre of the
// level when no local player is spawned.
func Focus(drawables []headless.Drawable, level headless.Level) mgl64.Vec2 {
	for _, d := range drawables {
		if d.Kind == headless.KindLocalPlayer {
			return mgl64.Vec2{d.Bounds.X + d.Bounds.W/2, d.Bounds.Y + d.Bounds.H/2}
		}
	}
	b := level.Bounds
	return mgl64.Vec2{b.X + b.W/2, b.Y + b.H/2}
}
