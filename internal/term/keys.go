package term

import (
	"time"

	"github.com/gdamore/tcell/v2"

	"coin-chase/internal/engine"
	"coin-chase/internal/engine/headless"
)

// DefaultHold is how long a key counts as held after its last key event.
// Terminals only report presses and auto-repeat, never releases.
const DefaultHold = 350 * time.Millisecond

// Command is what a key event asks the runner to do besides moving.
type Command int

const (
	CommandNone Command = iota
	CommandQuit
	CommandReconnect
)

type Keys struct {
	input *headless.Input
	hold  time.Duration
	last  map[engine.Action]time.Time
}

func NewKeys(input *headless.Input, hold time.Duration) *Keys {
	if hold <= 0 {
		hold = DefaultHold
	}
	return &Keys{input: input, hold: hold, last: make(map[engine.Action]time.Time)}
}

func (k *Keys) Handle(ev *tcell.EventKey, now time.Time) Command {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return CommandQuit
	case tcell.KeyLeft:
		k.press(engine.ActionMoveLeft, now)
		k.release(engine.ActionMoveRight)
	case tcell.KeyRight:
		k.press(engine.ActionMoveRight, now)
		k.release(engine.ActionMoveLeft)
	case tcell.KeyUp:
		k.press(engine.ActionJump, now)
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return CommandQuit
		case 'r':
			return CommandReconnect
		case ' ', 'w':
			k.press(engine.ActionJump, now)
		case 'a':
			k.press(engine.ActionMoveLeft, now)
			k.release(engine.ActionMoveRight)
		case 'd':
			k.press(engine.ActionMoveRight, now)
			k.release(engine.ActionMoveLeft)
		}
	}
	return CommandNone
}

func (k *Keys) press(action engine.Action, now time.Time) {
	k.input.Press(action)
	k.last[action] = now
}

func (k *Keys) release(action engine.Action) {
	k.input.Release(action)
	delete(k.last, action)
}

// Expire releases every action whose key has not repeated within the hold
// window.
func (k *Keys) Expire(now time.Time) {
	for action, at := range k.last {
		if now.Sub(at) > k.hold {
			k.release(action)
		}
	}
}
