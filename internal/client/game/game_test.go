package game

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"coin-chase/internal/client/credentials"
	"coin-chase/internal/client/session"
	"coin-chase/internal/engine"
	"coin-chase/internal/engine/headless"
	gamenet "coin-chase/internal/net"
	"coin-chase/internal/protocol"
	"coin-chase/internal/store"
	"coin-chase/internal/telemetry"
)

func startServer(t *testing.T) *httptest.Server {
	t.Helper()
	st := store.New(store.Config{})
	hub := gamenet.NewHub(gamenet.HubConfig{Store: st, HeartbeatInterval: time.Minute, ScheduleInterval: time.Hour})
	stop := make(chan struct{})
	go hub.Run(stop)
	srv := httptest.NewServer(gamenet.NewHTTPHandler(hub, gamenet.HTTPHandlerConfig{Tokens: gamenet.NewTokens("secret")}))
	t.Cleanup(func() {
		srv.Close()
		close(stop)
	})
	return srv
}

type harness struct {
	game  *Game
	world *headless.World
	input *headless.Input
}

func newGame(t *testing.T, srv *httptest.Server) *harness {
	t.Helper()
	s := session.New(session.Config{
		URL:         "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		Codec:       protocol.JSONCodec{},
		Credentials: credentials.NewFileStore(t.TempDir()),
		Logger:      telemetry.Discard,
	})
	world := headless.NewWorld(headless.MainLevel())
	input := headless.NewInput()
	g := New(Config{Session: s, Engine: world, Input: input, Logger: telemetry.Discard})
	t.Cleanup(func() { g.Close() })
	return &harness{game: g, world: world, input: input}
}

func (h *harness) start(t *testing.T, name string) {
	t.Helper()
	if err := h.game.Start(context.Background(), name); err != nil {
		t.Fatalf("start %s: %v", name, err)
	}
}

func newHarness(t *testing.T, srv *httptest.Server, name string) *harness {
	t.Helper()
	h := newGame(t, srv)
	h.start(t, name)
	h.until(t, h.game.Booted)
	return h
}

func (h *harness) step(t *testing.T) {
	t.Helper()
	if err := h.game.Frame(context.Background()); err != nil {
		t.Fatalf("frame: %v", err)
	}
	h.game.PhysicsProcess(1.0 / 60)
	h.input.EndFrame()
}

func (h *harness) until(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		h.step(t)
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not reached, status %q", h.game.Status())
}

func (h *harness) count(kind headless.Kind) int {
	n := 0
	for _, d := range h.world.Drawables() {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

func (h *harness) localLabel() string {
	for _, a := range h.world.Avatars() {
		if a.Kind() == headless.KindLocalPlayer {
			return a.Label()
		}
	}
	return ""
}

func TestBootsWorldAfterLogin(t *testing.T) {
	srv := startServer(t)
	alice := newHarness(t, srv, "alice")

	if got := alice.game.Status(); got != "playing" {
		t.Fatalf("expected playing, got %q", got)
	}
	if got := alice.count(headless.KindLocalPlayer); got != 1 {
		t.Fatalf("expected one local player, got %d", got)
	}
	if got := alice.count(headless.KindCoin); got != 15 {
		t.Fatalf("expected 15 coins, got %d", got)
	}
	if alice.count(headless.KindPlatform) == 0 || alice.count(headless.KindEnemy) == 0 {
		t.Fatalf("expected platforms and enemies to be spawned")
	}
	alice.step(t)
	if got := alice.localLabel(); got != "alice (0)" {
		t.Fatalf("expected score label, got %q", got)
	}

	// Booting happens once per login.
	for i := 0; i < 5; i++ {
		alice.step(t)
	}
	if got := alice.count(headless.KindLocalPlayer); got != 1 {
		t.Fatalf("expected world to stay booted once, got %d local players", got)
	}
}

func TestRemotePlayersAppear(t *testing.T) {
	srv := startServer(t)
	alice := newHarness(t, srv, "alice")
	bob := newHarness(t, srv, "bob")

	alice.until(t, func() bool { return alice.game.Remotes() == 1 })
	bob.until(t, func() bool { return bob.game.Remotes() == 1 })
	if got := alice.count(headless.KindRemotePlayer); got != 1 {
		t.Fatalf("expected bob drawn for alice, got %d", got)
	}
}

func TestCoinCollectedElsewhereIsFreed(t *testing.T) {
	srv := startServer(t)
	alice := newHarness(t, srv, "alice")
	bob := newHarness(t, srv, "bob")

	coins := bob.game.Session().Coins(1)
	if err := bob.game.Session().CollectCoin(coins[0].ID); err != nil {
		t.Fatalf("collect: %v", err)
	}
	alice.until(t, func() bool { return alice.count(headless.KindCoin) == 14 })
	bob.until(t, func() bool { return bob.count(headless.KindCoin) == 14 })
	bob.until(t, func() bool { return bob.localLabel() == "bob (1)" })
}

func TestServerLossTearsDownWorld(t *testing.T) {
	srv := startServer(t)
	alice := newHarness(t, srv, "alice")

	srv.CloseClientConnections()
	deadline := time.Now().Add(3 * time.Second)
	var frameErr error
	for frameErr == nil && time.Now().Before(deadline) {
		frameErr = alice.game.Frame(context.Background())
		time.Sleep(2 * time.Millisecond)
	}
	if frameErr == nil {
		t.Fatalf("expected frame error after server loss")
	}
	if alice.game.Booted() {
		t.Fatalf("expected world torn down")
	}
	if got := len(alice.world.Drawables()); got != len(alice.world.Level().Solids) {
		t.Fatalf("expected only level geometry left, got %d drawables", got)
	}
	if !strings.HasPrefix(alice.game.Status(), "connection failed") {
		t.Fatalf("expected connection failure status, got %q", alice.game.Status())
	}
	alice.game.PhysicsProcess(1.0 / 60)
}

func TestRemotesWaitForBootstrap(t *testing.T) {
	srv := startServer(t)
	newHarness(t, srv, "alice")
	bob := newGame(t, srv)
	bob.start(t, "bob")

	deadline := time.Now().Add(3 * time.Second)
	for !bob.game.Booted() {
		if time.Now().After(deadline) {
			t.Fatalf("bob never booted, status %q", bob.game.Status())
		}
		bob.step(t)
		if !bob.game.Booted() && bob.game.Remotes() != 0 {
			t.Fatalf("expected no remotes before bootstrap, got %d", bob.game.Remotes())
		}
		time.Sleep(2 * time.Millisecond)
	}
	bob.until(t, func() bool { return bob.game.Remotes() == 1 })
}

func TestBootstrapFailureKeepsSessionAlive(t *testing.T) {
	srv := startServer(t)
	newHarness(t, srv, "alice")
	bob := newGame(t, srv)
	bob.world.BreakPrefab(engine.PrefabCoin, headless.FailLoad)
	bob.start(t, "bob")

	deadline := time.Now().Add(3 * time.Second)
	var bootErr error
	for bootErr == nil && time.Now().Before(deadline) {
		bootErr = bob.game.Frame(context.Background())
		time.Sleep(2 * time.Millisecond)
	}
	var loadErr *engine.ResourceLoadError
	if !errors.As(bootErr, &loadErr) {
		t.Fatalf("expected resource load error from bootstrap, got %v", bootErr)
	}

	for i := 0; i < 20; i++ {
		bob.step(t)
	}
	if bob.game.Booted() {
		t.Fatalf("expected world not booted")
	}
	if !strings.HasPrefix(bob.game.Status(), "world setup failed") {
		t.Fatalf("expected world setup status, got %q", bob.game.Status())
	}
	if got := bob.game.Session().State(); got != session.StateLoggedIn {
		t.Fatalf("expected session to stay logged in, got %s", got)
	}
	if bob.game.Remotes() != 0 {
		t.Fatalf("expected no remotes without a world, got %d", bob.game.Remotes())
	}
	if got := len(bob.world.Drawables()); got != len(bob.world.Level().Solids) {
		t.Fatalf("expected partial world freed, got %d drawables", got)
	}
}
