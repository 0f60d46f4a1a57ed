// Package game is the client application. It owns the session, boots the
// world once the player is logged in, drives the local controller and the
// remote players every tick, and tears the world down when the connection
// is lost.
package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coin-chase/internal/client/bootstrap"
	"coin-chase/internal/client/controller"
	"coin-chase/internal/client/convert"
	"coin-chase/internal/client/multiplayer"
	"coin-chase/internal/client/session"
	"coin-chase/internal/engine"
	"coin-chase/internal/telemetry"
	"coin-chase/logging"
)

// Engine is the runtime the game is played in.
type Engine interface {
	engine.Spawner
	engine.Killzone
	// Advance moves scripted props forward by delta seconds.
	Advance(delta float64)
}

type Config struct {
	Session   *session.Session
	Engine    Engine
	Input     engine.Input
	SceneID   uint32
	Logger    telemetry.Logger
	Publisher logging.Publisher
	Metrics   telemetry.Metrics
	Clock     func() time.Time
}

type Game struct {
	cfg     Config
	session *session.Session
	manager *multiplayer.Manager

	world      *bootstrap.Result
	controller *controller.Controller
	status     string
	lastErr    error
}

func New(cfg Config) *Game {
	if cfg.Logger == nil {
		cfg.Logger = telemetry.Discard
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.SceneID == 0 {
		cfg.SceneID = 1
	}
	g := &Game{cfg: cfg, session: cfg.Session, status: "disconnected"}
	g.manager = multiplayer.New(multiplayer.Config{
		Session:   cfg.Session,
		Spawner:   cfg.Engine,
		Logger:    cfg.Logger,
		Publisher: cfg.Publisher,
		Metrics:   cfg.Metrics,
	})
	cfg.Session.SetCallbacks(session.Callbacks{
		OnDisconnect: g.onDisconnect,
	})
	return g
}

// Start connects as username and requests login. Progress is reported by
// Status while Frame is called.
func (g *Game) Start(ctx context.Context, username string) error {
	g.lastErr = nil
	g.status = "connecting"
	if err := g.session.Connect(ctx, username); err != nil {
		g.fail(err)
		return err
	}
	if err := g.session.Login(username, g.cfg.SceneID); err != nil {
		g.fail(err)
		return err
	}
	return nil
}

// Frame advances the connection, boots the world once logged in and syncs
// remote players and coins. A returned error is also reflected in Status.
// Remote players are not read until the world is booted.
func (g *Game) Frame(ctx context.Context) error {
	tick := g.session.Tick
	if g.world != nil {
		tick = g.manager.Frame
	}
	if err := tick(); err != nil {
		g.fail(err)
		return err
	}

	switch g.session.State() {
	case session.StateConnecting:
		g.status = "connecting"
	case session.StateConnected:
		if err := g.session.LoginError(); err != nil {
			g.status = "login failed: " + err.Error()
		} else {
			g.status = "logging in"
		}
	case session.StateLoggedIn:
		if g.world == nil {
			// A failed bootstrap stays failed until the next Start.
			if g.lastErr != nil {
				return nil
			}
			if err := g.boot(ctx); err != nil {
				g.fail(err)
				return err
			}
			g.manager.Sync()
		}
		g.syncCoins()
		g.syncLabels()
	}
	return nil
}

func (g *Game) boot(ctx context.Context) error {
	world, err := bootstrap.Run(ctx, bootstrap.Config{
		World:     g.session,
		Spawner:   g.cfg.Engine,
		Logger:    g.cfg.Logger,
		Publisher: g.cfg.Publisher,
	}, g.cfg.Clock())
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	g.world = world
	g.controller = controller.New(controller.Config{
		Avatar:     world.Player,
		Input:      g.cfg.Input,
		Session:    g.session,
		Killzone:   g.cfg.Engine,
		SpawnPoint: convert.Vec(world.Scene.SpawnPoint),
		Coins:      world.Coins,
		Logger:     g.cfg.Logger,
	})
	g.status = "playing"
	return nil
}

// syncCoins frees coins another player collected.
func (g *Game) syncCoins() {
	for id, prop := range g.world.Coins {
		coin, ok := g.session.Coin(id)
		if ok && !coin.Collected() {
			continue
		}
		prop.Free()
		delete(g.world.Coins, id)
	}
}

func (g *Game) syncLabels() {
	player, ok := g.session.LocalPlayer()
	if !ok {
		return
	}
	score, _ := g.session.Score(player.Identity)
	g.world.Player.SetLabel(fmt.Sprintf("%s (%d)", player.Name, score.CoinsCollected))
}

// PhysicsProcess runs one physics tick. It does nothing before the world
// is booted.
func (g *Game) PhysicsProcess(delta float64) {
	if g.world == nil {
		return
	}
	g.cfg.Engine.Advance(delta)
	g.controller.PhysicsProcess(delta)
	g.manager.PhysicsStep(delta)
}

func (g *Game) onDisconnect(err error) {
	g.teardown()
	if err != nil {
		g.status = "disconnected: " + err.Error()
	} else {
		g.status = "disconnected"
	}
}

func (g *Game) teardown() {
	g.manager.Reset()
	g.world.Free()
	g.world = nil
	g.controller = nil
}

func (g *Game) fail(err error) {
	g.lastErr = err
	var connErr *session.ConnectionError
	switch {
	case errors.As(err, &connErr):
		g.status = "connection failed: " + err.Error()
	case isSetupError(err):
		g.status = "world setup failed: " + err.Error()
	default:
		g.status = "error: " + err.Error()
	}
	g.cfg.Logger.Printf("%s", g.status)
}

func isSetupError(err error) bool {
	var (
		setupErr *bootstrap.WorldSetupError
		loadErr  *engine.ResourceLoadError
		castErr  *engine.ResourceCastError
		instErr  *engine.ResourceInstantiateError
	)
	return errors.As(err, &setupErr) || errors.As(err, &loadErr) ||
		errors.As(err, &castErr) || errors.As(err, &instErr)
}

// Close disconnects and frees the world.
func (g *Game) Close() error {
	err := g.session.Close()
	g.teardown()
	return err
}

func (g *Game) Status() string { return g.status }

// Booted reports whether the world has been spawned.
func (g *Game) Booted() bool { return g.world != nil }

func (g *Game) Session() *session.Session { return g.session }

func (g *Game) Remotes() int { return g.manager.Len() }

func (g *Game) Controller() *controller.Controller { return g.controller }
