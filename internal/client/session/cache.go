package session

import (
	"sort"

	"coin-chase/internal/protocol"
	"coin-chase/internal/store"
)

// cache mirrors the subscribed server tables.
type cache struct {
	scenes    map[uint32]store.Scene
	players   map[store.Identity]store.Player
	coins     map[uint32]store.Coin
	scores    map[store.Identity]store.PlayerScore
	platforms map[uint32]store.Platform
	enemies   map[uint32]store.Enemy
	seq       uint64
}

func newCache() *cache {
	c := &cache{}
	c.reset()
	return c
}

func (c *cache) reset() {
	c.scenes = make(map[uint32]store.Scene)
	c.players = make(map[store.Identity]store.Player)
	c.coins = make(map[uint32]store.Coin)
	c.scores = make(map[store.Identity]store.PlayerScore)
	c.platforms = make(map[uint32]store.Platform)
	c.enemies = make(map[uint32]store.Enemy)
	c.seq = 0
}

// applySnapshot replaces the cache with rows.
func (c *cache) applySnapshot(rows *protocol.TableRows) {
	c.reset()
	if rows == nil {
		return
	}
	for _, r := range rows.Scenes {
		c.scenes[r.ID] = r
	}
	for _, r := range rows.Players {
		c.players[r.Identity] = r
	}
	for _, r := range rows.Coins {
		c.coins[r.ID] = r
	}
	for _, r := range rows.Scores {
		c.scores[r.PlayerIdentity] = r
	}
	for _, r := range rows.Platforms {
		c.platforms[r.ID] = r
	}
	for _, r := range rows.Enemies {
		c.enemies[r.ID] = r
	}
	c.seq = rows.CommitSeq
}

func (c *cache) applyUpdate(update *protocol.TransactionUpdate) {
	if update == nil {
		return
	}
	for _, ch := range update.Changes {
		c.applyChange(ch)
	}
	if update.CommitSeq > c.seq {
		c.seq = update.CommitSeq
	}
}

func (c *cache) applyChange(ch protocol.RowChange) {
	del := ch.Op == store.OpDelete
	switch {
	case ch.Scene != nil:
		if del {
			delete(c.scenes, ch.Scene.ID)
		} else {
			c.scenes[ch.Scene.ID] = *ch.Scene
		}
	case ch.Player != nil:
		if del {
			delete(c.players, ch.Player.Identity)
		} else {
			c.players[ch.Player.Identity] = *ch.Player
		}
	case ch.Coin != nil:
		if del {
			delete(c.coins, ch.Coin.ID)
		} else {
			c.coins[ch.Coin.ID] = *ch.Coin
		}
	case ch.Score != nil:
		if del {
			delete(c.scores, ch.Score.PlayerIdentity)
		} else {
			c.scores[ch.Score.PlayerIdentity] = *ch.Score
		}
	case ch.Platform != nil:
		if del {
			delete(c.platforms, ch.Platform.ID)
		} else {
			c.platforms[ch.Platform.ID] = *ch.Platform
		}
	case ch.Enemy != nil:
		if del {
			delete(c.enemies, ch.Enemy.ID)
		} else {
			c.enemies[ch.Enemy.ID] = *ch.Enemy
		}
	}
}

func sortedByKey[K ~uint32, V any](m map[K]V, keep func(V) bool) []V {
	keys := make([]K, 0, len(m))
	for k, v := range m {
		if keep == nil || keep(v) {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := make([]V, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}
