package controller

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"coin-chase/internal/engine"
	"coin-chase/internal/engine/headless"
	"coin-chase/internal/store"
)

const tick = 1.0 / 60

type fakeSession struct {
	states    []store.PlayerState
	collected []uint32
	sendErr   error
}

func (s *fakeSession) SendState(state store.PlayerState) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.states = append(s.states, state)
	return nil
}

func (s *fakeSession) CollectCoin(id uint32) error {
	s.collected = append(s.collected, id)
	return nil
}

type fixture struct {
	world   *headless.World
	avatar  engine.Avatar
	input   *headless.Input
	session *fakeSession
	ctrl    *Controller
	coins   map[uint32]engine.Prop
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	world := headless.NewWorld(headless.MainLevel())
	avatar, err := world.SpawnLocalPlayer("alice", mgl64.Vec2{-15, -35})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	f := &fixture{
		world:   world,
		avatar:  avatar,
		input:   headless.NewInput(),
		session: &fakeSession{},
		coins:   make(map[uint32]engine.Prop),
	}
	f.ctrl = New(Config{
		Avatar:     avatar,
		Input:      f.input,
		Session:    f.session,
		Killzone:   world,
		SpawnPoint: mgl64.Vec2{-15, -35},
		Coins:      f.coins,
	})
	return f
}

func (f *fixture) run(ticks int) {
	for i := 0; i < ticks; i++ {
		f.world.Advance(tick)
		f.ctrl.PhysicsProcess(tick)
		f.input.EndFrame()
	}
}

func (f *fixture) settle(t *testing.T) {
	t.Helper()
	f.run(60)
	if !f.avatar.IsOnFloor() {
		t.Fatalf("expected player to land, at %v", f.avatar.Position())
	}
}

func TestSendsStateEveryTick(t *testing.T) {
	f := newFixture(t)
	f.run(10)
	if len(f.session.states) != 10 {
		t.Fatalf("expected 10 states, got %d", len(f.session.states))
	}
	last := f.session.states[9]
	pos := f.avatar.Position()
	if last.Position != (store.Vector2{X: float32(pos.X()), Y: float32(pos.Y())}) {
		t.Fatalf("expected sent position %v, got %+v", pos, last.Position)
	}
}

func TestWalkRight(t *testing.T) {
	f := newFixture(t)
	f.settle(t)
	start := f.avatar.Position().X()
	f.input.Press(engine.ActionMoveRight)
	f.run(30)
	if got := f.avatar.Position().X() - start; math.Abs(got-50) > 1e-6 {
		t.Fatalf("expected to walk 50 units, got %v", got)
	}
	if got := f.ctrl.LastState().Direction; got != 1 {
		t.Fatalf("expected direction 1, got %d", got)
	}

	f.input.Release(engine.ActionMoveRight)
	f.run(1)
	if got := f.avatar.Velocity().X(); math.Abs(got-(100-100*tick)) > 1e-9 {
		t.Fatalf("expected move toward zero by speed*delta, got %v", got)
	}
	if got := f.ctrl.LastState().Direction; got != 0 {
		t.Fatalf("expected direction 0, got %d", got)
	}
}

func TestJumpingFlag(t *testing.T) {
	f := newFixture(t)
	f.settle(t)

	f.input.Press(engine.ActionJump)
	f.run(1)
	if !f.ctrl.LastState().IsJumping {
		t.Fatalf("expected jumping on the press tick")
	}
	if f.avatar.Velocity().Y() >= 0 {
		t.Fatalf("expected upward velocity, got %v", f.avatar.Velocity())
	}

	f.run(1)
	if !f.ctrl.LastState().IsJumping {
		t.Fatalf("expected jumping while rising")
	}

	f.input.Release(engine.ActionJump)
	f.run(120)
	if f.ctrl.LastState().IsJumping {
		t.Fatalf("expected not jumping after landing")
	}
	if !f.avatar.IsOnFloor() {
		t.Fatalf("expected to land again")
	}
}

func TestHeldJumpDoesNotRepeat(t *testing.T) {
	f := newFixture(t)
	f.settle(t)
	f.input.Press(engine.ActionJump)
	f.run(120)
	if !f.avatar.IsOnFloor() {
		t.Fatalf("expected a single jump then landing")
	}
	if f.ctrl.LastState().IsJumping {
		t.Fatalf("expected held jump key not to keep jumping")
	}
}

func TestKillzoneRespawns(t *testing.T) {
	f := newFixture(t)
	f.avatar.SetPosition(mgl64.Vec2{0, 450})
	f.run(1)
	if got := f.avatar.Position(); got != (mgl64.Vec2{-15, -35}) {
		t.Fatalf("expected respawn at spawn point, got %v", got)
	}
	if f.ctrl.Deaths() != 1 {
		t.Fatalf("expected one death, got %d", f.ctrl.Deaths())
	}
}

func TestCoinPickupByID(t *testing.T) {
	f := newFixture(t)
	f.settle(t)
	near, _ := f.world.SpawnCoin(7, f.avatar.Position().Add(mgl64.Vec2{4, 0}))
	far, _ := f.world.SpawnCoin(8, mgl64.Vec2{600, -300})
	f.coins[7] = near
	f.coins[8] = far

	f.run(1)
	if len(f.session.collected) != 1 || f.session.collected[0] != 7 {
		t.Fatalf("expected coin 7 collected, got %v", f.session.collected)
	}
	if _, ok := f.coins[7]; ok {
		t.Fatalf("expected collected coin removed")
	}
	if len(f.world.Props()) != 1 {
		t.Fatalf("expected collected coin freed, got %d props", len(f.world.Props()))
	}
	f.run(1)
	if len(f.session.collected) != 1 {
		t.Fatalf("expected no second collect, got %v", f.session.collected)
	}
}

func TestSendFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.session.sendErr = errors.New("not logged in")
	f.run(3)
	if f.ctrl.SendFailures() != 3 {
		t.Fatalf("expected 3 send failures, got %d", f.ctrl.SendFailures())
	}
}
