package headless

import "coin-chase/internal/engine"

// Input is polled input fed by a script or a terminal. Presses become
// "just pressed" until EndFrame.
type Input struct {
	held    map[engine.Action]bool
	pressed map[engine.Action]bool
}

var _ engine.Input = (*Input)(nil)

func NewInput() *Input {
	return &Input{
		held:    make(map[engine.Action]bool),
		pressed: make(map[engine.Action]bool),
	}
}

func (i *Input) Press(action engine.Action) {
	if !i.held[action] {
		i.pressed[action] = true
	}
	i.held[action] = true
}

func (i *Input) Release(action engine.Action) {
	delete(i.held, action)
}

func (i *Input) Held(action engine.Action) bool {
	return i.held[action]
}

func (i *Input) Axis(negative, positive engine.Action) float64 {
	value := 0.0
	if i.held[negative] {
		value--
	}
	if i.held[positive] {
		value++
	}
	return value
}

func (i *Input) IsActionJustPressed(action engine.Action) bool {
	return i.pressed[action]
}

// EndFrame clears edge triggers. Call it after every physics tick.
func (i *Input) EndFrame() {
	clear(i.pressed)
}
