package term

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"

	"coin-chase/internal/client/game"
	"coin-chase/internal/client/session"
	"coin-chase/internal/engine/headless"
	"coin-chase/internal/telemetry"
)

const DefaultTickRate = 60

type Config struct {
	Screen   tcell.Screen
	Game     *game.Game
	World    *headless.World
	Input    *headless.Input
	Username string
	TickRate int
	Hold     time.Duration
	Logger   telemetry.Logger
}

type Runner struct {
	cfg  Config
	view *View
	keys *Keys
}

func NewRunner(cfg Config) *Runner {
	if cfg.TickRate <= 0 {
		cfg.TickRate = DefaultTickRate
	}
	if cfg.Logger == nil {
		cfg.Logger = telemetry.Discard
	}
	return &Runner{
		cfg:  cfg,
		view: NewView(cfg.Screen),
		keys: NewKeys(cfg.Input, cfg.Hold),
	}
}

// Run plays until ctx is cancelled or the player quits. Connection
// failures are shown on the status line and can be retried with 'r'.
func (r *Runner) Run(ctx context.Context) error {
	delta := 1.0 / float64(r.cfg.TickRate)
	ticker := time.NewTicker(time.Second / time.Duration(r.cfg.TickRate))
	defer ticker.Stop()

	events := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := r.cfg.Screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := r.cfg.Game.Start(ctx, r.cfg.Username); err != nil {
		r.cfg.Logger.Printf("start: %v", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if r.handle(ctx, ev) == CommandQuit {
				return nil
			}
		case now := <-ticker.C:
			r.step(ctx, now, delta)
		}
	}
}

func (r *Runner) handle(ctx context.Context, ev tcell.Event) Command {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		cmd := r.keys.Handle(ev, time.Now())
		if cmd == CommandReconnect && r.cfg.Game.Session().State() == session.StateDisconnected {
			if err := r.cfg.Game.Start(ctx, r.cfg.Username); err != nil {
				r.cfg.Logger.Printf("reconnect: %v", err)
			}
		}
		return cmd
	case *tcell.EventResize:
		r.cfg.Screen.Sync()
	}
	return CommandNone
}

func (r *Runner) step(ctx context.Context, now time.Time, delta float64) {
	r.keys.Expire(now)
	if err := r.cfg.Game.Frame(ctx); err != nil {
		r.cfg.Logger.Printf("frame: %v", err)
	}
	r.cfg.Game.PhysicsProcess(delta)
	r.cfg.Input.EndFrame()

	drawables := r.cfg.World.Drawables()
	r.view.Draw(drawables, Focus(drawables, r.cfg.World.Level()), r.status())
}

func (r *Runner) status() string {
	s := r.cfg.Game.Session()
	line := fmt.Sprintf(" %s | %s | others %d", r.cfg.Username, r.cfg.Game.Status(), r.cfg.Game.Remotes())
	if rtt := s.RTT(); rtt > 0 {
		line += fmt.Sprintf(" | rtt %s", rtt.Round(time.Millisecond))
	}
	if s.State() == session.StateDisconnected {
		return line + " | r reconnect, q quit"
	}
	return line + " | arrows move, space jump, q quit"
}
