// Package multiplayer owns the remote players of a client. Each frame it
// advances the session, diffs the roster of other players against the
// ones it already knows, spawns and despawns their avatars, and feeds the
// freshest server pose into each reconciler.
package multiplayer

import (
	"context"
	"sort"

	"coin-chase/internal/client/convert"
	"coin-chase/internal/engine"
	"coin-chase/internal/movement"
	"coin-chase/internal/reconcile"
	"coin-chase/internal/store"
	"coin-chase/internal/telemetry"
	"coin-chase/logging"
	"coin-chase/logging/lifecycle"
	reconcilelog "coin-chase/logging/reconcile"
)

// Roster is the part of the session the manager reads.
type Roster interface {
	Tick() error
	OtherPlayers() []store.Player
}

type Config struct {
	Session   Roster
	Spawner   engine.Spawner
	Reconcile reconcile.Params
	Movement  movement.Params
	Logger    telemetry.Logger
	Publisher logging.Publisher
	Metrics   telemetry.Metrics
}

type remote struct {
	player store.Player
	avatar engine.Avatar
	entity *reconcile.Entity
}

type Manager struct {
	cfg     Config
	remotes map[store.Identity]*remote
	// failed remembers identities whose spawn failed so the failure is
	// logged once while they stay in the roster.
	failed map[store.Identity]bool
	frame  uint64
}

func New(cfg Config) *Manager {
	if cfg.Reconcile == (reconcile.Params{}) {
		cfg.Reconcile = reconcile.DefaultParams()
	}
	if cfg.Movement == (movement.Params{}) {
		cfg.Movement = movement.DefaultParams()
	}
	if cfg.Logger == nil {
		cfg.Logger = telemetry.Discard
	}
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NopMetrics()
	}
	return &Manager{
		cfg:     cfg,
		remotes: make(map[store.Identity]*remote),
		failed:  make(map[store.Identity]bool),
	}
}

// Frame advances the connection and syncs the roster. A connection error
// drops every remote player before it is returned.
func (m *Manager) Frame() error {
	m.frame++
	if err := m.cfg.Session.Tick(); err != nil {
		m.Reset()
		return err
	}
	m.Sync()
	return nil
}

// Sync reconciles the known remote players with the session roster.
func (m *Manager) Sync() {
	ctx := context.Background()
	current := m.cfg.Session.OtherPlayers()
	seen := make(map[store.Identity]struct{}, len(current))

	for _, player := range current {
		seen[player.Identity] = struct{}{}
		state := convert.ServerState(player.State)

		if r, ok := m.remotes[player.Identity]; ok {
			r.player = player
			r.entity.SetServerState(state)
			continue
		}

		avatar, err := m.cfg.Spawner.SpawnRemotePlayer(player.Name, state.Position)
		if err != nil {
			if !m.failed[player.Identity] {
				m.failed[player.Identity] = true
				m.cfg.Logger.Printf("failed to spawn remote player %s: %v", player.Identity, err)
			}
			continue
		}
		delete(m.failed, player.Identity)
		avatar.SetLabel(player.Name)
		entity := reconcile.NewEntity(m.cfg.Reconcile, m.cfg.Movement)
		entity.SetServerState(state)
		m.remotes[player.Identity] = &remote{player: player, avatar: avatar, entity: entity}
		lifecycle.RemoteSpawned(ctx, m.cfg.Publisher, m.frame, remoteRef(player.Identity), lifecycle.RemoteSpawnedPayload{Name: player.Name})
	}

	for id, r := range m.remotes {
		if _, ok := seen[id]; ok {
			continue
		}
		r.avatar.Free()
		delete(m.remotes, id)
		lifecycle.RemoteDespawned(ctx, m.cfg.Publisher, m.frame, remoteRef(id))
	}
	for id := range m.failed {
		if _, ok := seen[id]; !ok {
			delete(m.failed, id)
		}
	}
}

// PhysicsStep advances every remote entity by one tick.
func (m *Manager) PhysicsStep(delta float64) {
	ctx := context.Background()
	for _, id := range m.identities() {
		r := m.remotes[id]
		before := r.avatar.Position()
		outcome := r.entity.Step(r.avatar, delta)
		switch {
		case outcome.Snapped():
			m.cfg.Metrics.Add(telemetry.MetricSnaps, 1)
			distance := 0.0
			if server, ok := r.entity.ServerState(); ok {
				distance = server.Position.Sub(before).Len()
			}
			reconcilelog.Correction(ctx, m.cfg.Publisher, m.frame, remoteRef(id), reconcilelog.CorrectionPayload{
				Outcome:  outcome.String(),
				Distance: distance,
			})
		case outcome == reconcile.OutcomeBlend:
			m.cfg.Metrics.Add(telemetry.MetricBlends, 1)
		}
	}
}

// Reset frees every remote avatar and forgets the roster.
func (m *Manager) Reset() {
	ctx := context.Background()
	for id, r := range m.remotes {
		r.avatar.Free()
		delete(m.remotes, id)
		lifecycle.RemoteDespawned(ctx, m.cfg.Publisher, m.frame, remoteRef(id))
	}
	clear(m.failed)
}

func (m *Manager) Len() int {
	return len(m.remotes)
}

func (m *Manager) Frames() uint64 {
	return m.frame
}

// Remote returns the avatar and reconciler of a known remote player.
func (m *Manager) Remote(id store.Identity) (engine.Avatar, *reconcile.Entity, bool) {
	r, ok := m.remotes[id]
	if !ok {
		return nil, nil, false
	}
	return r.avatar, r.entity, true
}

func (m *Manager) identities() []store.Identity {
	ids := make([]store.Identity, 0, len(m.remotes))
	for id := range m.remotes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func remoteRef(id store.Identity) logging.EntityRef {
	return logging.EntityRef{ID: string(id), Kind: logging.EntityKindRemote}
}
