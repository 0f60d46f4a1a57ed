// Package bootstrap populates a freshly logged-in client's scene from the
// session cache: the local player first, then the uncollected coins, then
// the platforms and slimes with their animation clocks seeded from the
// scene's creation time. It must run exactly once per session; a second
// run spawns everything again.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"coin-chase/internal/client/animation"
	"coin-chase/internal/client/convert"
	"coin-chase/internal/engine"
	"coin-chase/internal/store"
	"coin-chase/internal/telemetry"
	"coin-chase/logging"
	"coin-chase/logging/lifecycle"
)

// WorldSetupError means the cached world is unusable: the scene or the
// local player row is missing.
type WorldSetupError struct {
	Reason string
}

func (e *WorldSetupError) Error() string {
	return "world setup: " + e.Reason
}

// World is the slice of the session bootstrap reads from.
type World interface {
	Identity() store.Identity
	LocalPlayer() (store.Player, bool)
	Scene(id uint32) (store.Scene, bool)
	Coins(sceneID uint32) []store.Coin
	Platforms(sceneID uint32) []store.Platform
	Enemies(sceneID uint32) []store.Enemy
	UpdateTimestamp(sceneID uint32) error
	RegisterCoin(position store.Vector2, sceneID uint32) error
}

type Config struct {
	World     World
	Spawner   engine.Spawner
	Logger    telemetry.Logger
	Publisher logging.Publisher
}

// Result holds every spawned handle. Coins are keyed by row id.
type Result struct {
	Scene     store.Scene
	Player    engine.Avatar
	Coins     map[uint32]engine.Prop
	Platforms []engine.AnimatedProp
	Enemies   []engine.AnimatedProp
	Elapsed   time.Duration
}

// Free releases every spawned handle.
func (r *Result) Free() {
	if r == nil {
		return
	}
	if r.Player != nil {
		r.Player.Free()
		r.Player = nil
	}
	for id, coin := range r.Coins {
		coin.Free()
		delete(r.Coins, id)
	}
	for _, p := range r.Platforms {
		p.Free()
	}
	r.Platforms = nil
	for _, e := range r.Enemies {
		e.Free()
	}
	r.Enemies = nil
}

// Run spawns the world as seen at now. On error everything spawned so far
// is freed and nothing is returned.
func Run(ctx context.Context, cfg Config, now time.Time) (*Result, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.Discard
	}

	player, ok := cfg.World.LocalPlayer()
	if !ok {
		return nil, &WorldSetupError{Reason: "local player row missing"}
	}
	scene, ok := cfg.World.Scene(player.SceneID)
	if !ok {
		return nil, &WorldSetupError{Reason: fmt.Sprintf("scene %d not found", player.SceneID)}
	}

	// The commit lands after bootstrap; it refreshes the scene clock for
	// the next client to join.
	if err := cfg.World.UpdateTimestamp(scene.ID); err != nil {
		logger.Printf("failed to update timestamp for scene %d: %v", scene.ID, err)
	}

	result := &Result{Scene: scene, Coins: make(map[uint32]engine.Prop)}

	avatar, err := cfg.Spawner.SpawnLocalPlayer(player.Name, convert.Vec(player.State.Position))
	if err != nil {
		return nil, fmt.Errorf("spawn local player: %w", err)
	}
	avatar.SetLabel(player.Name)
	result.Player = avatar

	for _, coin := range cfg.World.Coins(scene.ID) {
		if coin.Collected() {
			continue
		}
		prop, err := cfg.Spawner.SpawnCoin(coin.ID, convert.Vec(coin.Position))
		if err != nil {
			result.Free()
			return nil, fmt.Errorf("spawn coin %d: %w", coin.ID, err)
		}
		result.Coins[coin.ID] = prop
		// Registering an existing position is a no-op on the server.
		if err := cfg.World.RegisterCoin(coin.Position, scene.ID); err != nil {
			logger.Printf("failed to register coin %d: %v", coin.ID, err)
		}
	}

	elapsed := animation.Elapsed(scene.CreationTime, now)
	result.Elapsed = elapsed
	for _, platform := range cfg.World.Platforms(scene.ID) {
		prop, err := cfg.Spawner.SpawnPlatform(platform.ID, convert.Vec(platform.Position))
		if err != nil {
			result.Free()
			return nil, fmt.Errorf("spawn platform %d: %w", platform.ID, err)
		}
		prop.Seek(elapsed)
		result.Platforms = append(result.Platforms, prop)
	}
	for _, enemy := range cfg.World.Enemies(scene.ID) {
		prop, err := cfg.Spawner.SpawnEnemy(enemy.ID, convert.Vec(enemy.Position))
		if err != nil {
			result.Free()
			return nil, fmt.Errorf("spawn enemy %d: %w", enemy.ID, err)
		}
		prop.Seek(elapsed)
		result.Enemies = append(result.Enemies, prop)
	}

	lifecycle.WorldBootstrapped(ctx, cfg.Publisher, logging.PlayerRef(string(cfg.World.Identity())), lifecycle.WorldBootstrappedPayload{
		SceneID:   scene.ID,
		Coins:     len(result.Coins),
		Platforms: len(result.Platforms),
		Enemies:   len(result.Enemies),
		ElapsedMS: elapsed.Milliseconds(),
	})
	return result, nil
}
