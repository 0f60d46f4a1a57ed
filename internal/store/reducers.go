package store

import (
	"context"
	"strings"
	"unicode/utf8"

	"coin-chase/logging"
	"coin-chase/logging/economy"
	"coin-chase/logging/lifecycle"
)

const (
	ReducerInit            = "init"
	ReducerRegisterScene   = "register_scene"
	ReducerRegister        = "register_player"
	ReducerUpdateState     = "update_player_state"
	ReducerCollectCoin     = "collect_coin"
	ReducerCollectCoinAt   = "try_collect_coin"
	ReducerRegisterCoin    = "register_coin"
	ReducerUpdateTimestamp = "update_timestamp"
	ReducerConnect         = "identity_connected"
	ReducerDisconnect      = "identity_disconnected"
)

const (
	MaxPlayerNameLength = 20
	MaxSceneNameLength  = 50
)

// Init seeds the store with a layout. Duplicate coin positions within a
// scene are dropped.
func (s *Store) Init(ctx context.Context, layout Layout) (Commit, error) {
	return s.run(ctx, ReducerInit, ServerIdentity, 0, func(tx *Tx) error {
		for _, sl := range layout.Scenes {
			scene, err := tx.insertScene(sl.Name, sl.SpawnPoint)
			if err != nil {
				return err
			}
			for _, pos := range dedupe(sl.Coins) {
				tx.insertCoin(pos, scene.ID)
			}
			for _, pos := range sl.Platforms {
				tx.s.ids.platform++
				put(tx, TablePlatform, tx.s.platforms, tx.s.ids.platform, Platform{ID: tx.s.ids.platform, Position: pos, SceneID: scene.ID})
			}
			for _, pos := range sl.Enemies {
				tx.s.ids.enemy++
				put(tx, TableEnemy, tx.s.enemies, tx.s.ids.enemy, Enemy{ID: tx.s.ids.enemy, Position: pos, SceneID: scene.ID})
			}
		}
		return nil
	})
}

func (s *Store) RegisterScene(ctx context.Context, caller Identity, name string, spawn Vector2) (Commit, error) {
	return s.run(ctx, ReducerRegisterScene, caller, requestID(ctx), func(tx *Tx) error {
		_, err := tx.insertScene(name, spawn)
		return err
	})
}

func (tx *Tx) insertScene(name string, spawn Vector2) (Scene, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxSceneNameLength || !finite(spawn) {
		return Scene{}, ErrInvalidScene
	}
	tx.s.ids.scene++
	scene := Scene{
		ID:             tx.s.ids.scene,
		Name:           name,
		SpawnPoint:     spawn,
		CreationTime:   tx.Timestamp,
		LastUpdateTime: tx.Timestamp,
	}
	put(tx, TableScene, tx.s.scenes, scene.ID, scene)
	tx.onCommit(func(seq uint64) {
		lifecycle.SceneRegistered(tx.ctx, tx.s.pub, seq, logging.EntityRef{ID: string(tx.Caller), Kind: logging.EntityKindScene}, lifecycle.SceneRegisteredPayload{
			SceneID: scene.ID,
			Name:    scene.Name,
			SpawnX:  spawn.X,
			SpawnY:  spawn.Y,
		})
	})
	return scene, nil
}

// Register creates the caller's player row at the scene spawn point. The
// first player in the world restarts the scene clock.
func (s *Store) Register(ctx context.Context, caller Identity, name string, sceneID uint32) (Commit, error) {
	return s.run(ctx, ReducerRegister, caller, requestID(ctx), func(tx *Tx) error {
		if _, ok := tx.s.players[caller]; ok {
			return ErrAlreadyRegistered
		}
		scene, ok := tx.s.scenes[sceneID]
		if !ok {
			return ErrSceneNotFound
		}
		name = strings.TrimSpace(name)
		if name == "" || utf8.RuneCountInString(name) > MaxPlayerNameLength {
			return ErrInvalidName
		}

		host := len(tx.s.players) == 0
		if host {
			scene.CreationTime = tx.Timestamp
			scene.LastUpdateTime = tx.Timestamp
			put(tx, TableScene, tx.s.scenes, scene.ID, scene)
		}
		tx.s.ids.player++
		player := Player{
			Identity: caller,
			PlayerID: tx.s.ids.player,
			Name:     name,
			SceneID:  scene.ID,
			State:    PlayerState{Position: scene.SpawnPoint},
		}
		put(tx, TablePlayer, tx.s.players, caller, player)
		remove(tx, "", tx.s.loggedOut, caller)
		tx.onCommit(func(seq uint64) {
			lifecycle.PlayerRegistered(tx.ctx, tx.s.pub, seq, logging.PlayerRef(string(caller)), lifecycle.PlayerRegisteredPayload{
				Name:    name,
				SceneID: scene.ID,
				Host:    host,
			})
		})
		return nil
	})
}

// UpdateState overwrites the caller's state. Last write wins: there is no
// sequencing, stale updates are accepted as they arrive.
func (s *Store) UpdateState(ctx context.Context, caller Identity, state PlayerState) (Commit, error) {
	return s.run(ctx, ReducerUpdateState, caller, requestID(ctx), func(tx *Tx) error {
		player, ok := tx.s.players[caller]
		if !ok {
			return ErrNotRegistered
		}
		if !finite(state.Position) {
			return ErrInvalidState
		}
		state.Direction = signOf(state.Direction)
		player.State = state
		put(tx, TablePlayer, tx.s.players, caller, player)
		return nil
	})
}

// CollectCoin claims the coin with the given row id for the caller.
func (s *Store) CollectCoin(ctx context.Context, caller Identity, coinID uint32) (Commit, error) {
	return s.run(ctx, ReducerCollectCoin, caller, requestID(ctx), func(tx *Tx) error {
		if _, ok := tx.s.players[caller]; !ok {
			return ErrNotRegistered
		}
		coin, ok := tx.s.coins[coinID]
		if !ok {
			return ErrCoinNotFound
		}
		return tx.collect(coin)
	})
}

// CollectCoinAt claims the coin lying exactly at position.
func (s *Store) CollectCoinAt(ctx context.Context, caller Identity, position Vector2) (Commit, error) {
	return s.run(ctx, ReducerCollectCoinAt, caller, requestID(ctx), func(tx *Tx) error {
		if _, ok := tx.s.players[caller]; !ok {
			return ErrNotRegistered
		}
		coin, ok := tx.coinAt(position)
		if !ok {
			return ErrCoinNotFound
		}
		return tx.collect(coin)
	})
}

func (tx *Tx) coinAt(position Vector2) (Coin, bool) {
	var (
		found Coin
		ok    bool
	)
	for _, c := range tx.s.coins {
		if c.Position == position && (!ok || c.ID < found.ID) {
			found, ok = c, true
		}
	}
	return found, ok
}

func (tx *Tx) collect(coin Coin) error {
	if coin.Collected() {
		return ErrAlreadyCollected
	}
	caller := tx.Caller
	coin.CollectedBy = &caller
	put(tx, TableCoin, tx.s.coins, coin.ID, coin)

	score, ok := tx.s.scores[caller]
	if ok {
		score.CoinsCollected++
	} else {
		tx.s.ids.score++
		score = PlayerScore{ID: tx.s.ids.score, PlayerIdentity: caller, CoinsCollected: 1, SceneID: coin.SceneID}
	}
	put(tx, TableScore, tx.s.scores, caller, score)
	tx.onCommit(func(seq uint64) {
		economy.CoinCollected(tx.ctx, tx.s.pub, seq, logging.PlayerRef(string(caller)), economy.CoinCollectedPayload{
			CoinID: coin.ID,
			Score:  score.CoinsCollected,
		})
	})
	return nil
}

// RegisterCoin adds a coin at position. Registering a position that already
// holds a coin succeeds without changes.
func (s *Store) RegisterCoin(ctx context.Context, caller Identity, position Vector2, sceneID uint32) (Commit, error) {
	return s.run(ctx, ReducerRegisterCoin, caller, requestID(ctx), func(tx *Tx) error {
		if _, ok := tx.s.scenes[sceneID]; !ok {
			return ErrSceneNotFound
		}
		if _, exists := tx.coinAt(position); exists {
			return nil
		}
		if !finite(position) {
			return ErrInvalidState
		}
		tx.insertCoin(position, sceneID)
		return nil
	})
}

func (tx *Tx) insertCoin(position Vector2, sceneID uint32) Coin {
	tx.s.ids.coin++
	coin := Coin{ID: tx.s.ids.coin, Position: position, SceneID: sceneID}
	put(tx, TableCoin, tx.s.coins, coin.ID, coin)
	tx.onCommit(func(seq uint64) {
		economy.CoinRegistered(tx.ctx, tx.s.pub, seq, logging.PlayerRef(string(tx.Caller)), economy.CoinRegisteredPayload{
			CoinID: coin.ID,
			X:      position.X,
			Y:      position.Y,
		})
	})
	return coin
}

func (s *Store) UpdateTimestamp(ctx context.Context, caller Identity, sceneID uint32) (Commit, error) {
	return s.run(ctx, ReducerUpdateTimestamp, caller, requestID(ctx), func(tx *Tx) error {
		scene, ok := tx.s.scenes[sceneID]
		if !ok {
			return ErrSceneNotFound
		}
		scene.LastUpdateTime = tx.Timestamp
		put(tx, TableScene, tx.s.scenes, scene.ID, scene)
		return nil
	})
}

// Connect restores a logged-out player row for the caller, keeping its
// player id. Identities without one are left untouched.
func (s *Store) Connect(ctx context.Context, caller Identity) (Commit, error) {
	return s.run(ctx, ReducerConnect, caller, 0, func(tx *Tx) error {
		player, ok := remove(tx, "", tx.s.loggedOut, caller)
		if !ok {
			return nil
		}
		if _, active := tx.s.players[caller]; active {
			return nil
		}
		put(tx, TablePlayer, tx.s.players, caller, player)
		tx.onCommit(func(seq uint64) {
			lifecycle.PlayerReconnected(tx.ctx, tx.s.pub, seq, logging.PlayerRef(string(caller)))
		})
		return nil
	})
}

// Disconnect parks the caller's player row in the logged-out table. Coin
// and score rows are untouched.
func (s *Store) Disconnect(ctx context.Context, caller Identity, reason string) (Commit, error) {
	return s.run(ctx, ReducerDisconnect, caller, 0, func(tx *Tx) error {
		player, ok := remove(tx, TablePlayer, tx.s.players, caller)
		if !ok {
			return nil
		}
		putPrivate(tx, tx.s.loggedOut, caller, player)
		tx.onCommit(func(seq uint64) {
			lifecycle.PlayerDisconnected(tx.ctx, tx.s.pub, seq, logging.PlayerRef(string(caller)), lifecycle.PlayerDisconnectedPayload{Reason: reason})
		})
		return nil
	})
}
