package store

import (
	"math"
	"time"
)

// Identity is the opaque credential-bound key of a connected client.
type Identity string

// ServerIdentity is the caller recorded for scheduled reducers.
const ServerIdentity Identity = "server"

type Vector2 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

type PlayerState struct {
	Position  Vector2 `json:"position"`
	Direction int32   `json:"direction"`
	IsJumping bool    `json:"isJumping"`
}

type Scene struct {
	ID             uint32    `json:"id"`
	Name           string    `json:"name"`
	SpawnPoint     Vector2   `json:"spawnPoint"`
	CreationTime   time.Time `json:"creationTime"`
	LastUpdateTime time.Time `json:"lastUpdateTime"`
}

type Player struct {
	Identity Identity    `json:"identity"`
	PlayerID uint32      `json:"playerId"`
	Name     string      `json:"name"`
	SceneID  uint32      `json:"sceneId"`
	State    PlayerState `json:"state"`
}

// Coin rows are never deleted. CollectedBy is set exactly once.
type Coin struct {
	ID          uint32    `json:"id"`
	Position    Vector2   `json:"position"`
	SceneID     uint32    `json:"sceneId"`
	CollectedBy *Identity `json:"collectedBy,omitempty"`
}

func (c Coin) Collected() bool {
	return c.CollectedBy != nil
}

type PlayerScore struct {
	ID             uint32   `json:"id"`
	PlayerIdentity Identity `json:"playerIdentity"`
	CoinsCollected uint32   `json:"coinsCollected"`
	SceneID        uint32   `json:"sceneId"`
}

type Platform struct {
	ID       uint32  `json:"id"`
	Position Vector2 `json:"position"`
	SceneID  uint32  `json:"sceneId"`
}

type Enemy struct {
	ID       uint32  `json:"id"`
	Position Vector2 `json:"position"`
	SceneID  uint32  `json:"sceneId"`
}

const (
	TableScene    = "scene"
	TablePlayer   = "player"
	TableCoin     = "coin"
	TableScore    = "player_score"
	TablePlatform = "platform"
	TableEnemy    = "enemy"
)

// PublicTables lists the tables clients may subscribe to.
var PublicTables = []string{TableScene, TablePlayer, TableCoin, TableScore, TablePlatform, TableEnemy}

type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// RowChange is one mutation inside a commit. Row holds the new row for
// inserts and updates and the removed row for deletes. Its dynamic type is
// one of the row structs above.
type RowChange struct {
	Table string
	Op    Op
	Row   any
}

// Commit describes a successfully applied reducer call.
type Commit struct {
	Seq       uint64
	Reducer   string
	Caller    Identity
	RequestID uint64
	Timestamp time.Time
	Changes   []RowChange
}

// Touches reports whether any change in the commit belongs to table.
func (c Commit) Touches(table string) bool {
	for _, ch := range c.Changes {
		if ch.Table == table {
			return true
		}
	}
	return false
}

func signOf(direction int32) int32 {
	switch {
	case direction > 0:
		return 1
	case direction < 0:
		return -1
	default:
		return 0
	}
}

func finite(v Vector2) bool {
	return !math.IsNaN(float64(v.X)) && !math.IsNaN(float64(v.Y)) &&
		!math.IsInf(float64(v.X), 0) && !math.IsInf(float64(v.Y), 0)
}
