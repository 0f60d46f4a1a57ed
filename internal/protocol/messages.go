package protocol

import (
	"coin-chase/internal/store"
)

// Version is the wire protocol version carried on every message.
const Version = 1

const (
	TypeSubscribe = "subscribe"
	TypeCall      = "call"
	TypeHeartbeat = "heartbeat"

	TypeIdentityToken       = "identityToken"
	TypeSubscriptionApplied = "subscriptionApplied"
	TypeTransactionUpdate   = "transactionUpdate"
	TypeError               = "error"
)

const (
	StatusCommitted = "committed"
	StatusFailed    = "failed"
)

// ClientMessage is every message a client may send. Fields not used by a
// message type are left empty.
type ClientMessage struct {
	Ver     int         `json:"ver"`
	Type    string      `json:"type"`
	Seq     uint64      `json:"seq,omitempty"`
	Reducer string      `json:"reducer,omitempty"`
	Args    *store.Args `json:"args,omitempty"`
	Tables  []string    `json:"tables,omitempty"`
	SentAt  int64       `json:"sentAt,omitempty"`
}

// ServerMessage is every message the server may send.
type ServerMessage struct {
	Ver        int                `json:"ver"`
	Type       string             `json:"type"`
	Seq        uint64             `json:"seq,omitempty"`
	Identity   store.Identity     `json:"identity,omitempty"`
	Token      string             `json:"token,omitempty"`
	Rows       *TableRows         `json:"rows,omitempty"`
	Update     *TransactionUpdate `json:"update,omitempty"`
	ServerTime int64              `json:"serverTime,omitempty"`
	ClientTime int64              `json:"clientTime,omitempty"`
	RTTMillis  int64              `json:"rtt,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// TableRows is a subscription snapshot. Only subscribed tables are set.
type TableRows struct {
	Scenes    []store.Scene       `json:"scene,omitempty"`
	Players   []store.Player      `json:"player,omitempty"`
	Coins     []store.Coin        `json:"coin,omitempty"`
	Scores    []store.PlayerScore `json:"player_score,omitempty"`
	Platforms []store.Platform    `json:"platform,omitempty"`
	Enemies   []store.Enemy       `json:"enemy,omitempty"`
	// CommitSeq is the store sequence the snapshot was taken at.
	CommitSeq uint64 `json:"commitSeq"`
}

type TransactionUpdate struct {
	Status    string         `json:"status"`
	Reducer   string         `json:"reducer"`
	Caller    store.Identity `json:"caller,omitempty"`
	CommitSeq uint64         `json:"commitSeq,omitempty"`
	Timestamp int64          `json:"timestamp,omitempty"`
	Error     string         `json:"error,omitempty"`
	Changes   []RowChange    `json:"changes,omitempty"`
}

// RowChange carries exactly one row pointer, matching Table.
type RowChange struct {
	Table    string             `json:"table"`
	Op       store.Op           `json:"op"`
	Scene    *store.Scene       `json:"scene,omitempty"`
	Player   *store.Player      `json:"player,omitempty"`
	Coin     *store.Coin        `json:"coin,omitempty"`
	Score    *store.PlayerScore `json:"score,omitempty"`
	Platform *store.Platform    `json:"platform,omitempty"`
	Enemy    *store.Enemy       `json:"enemy,omitempty"`
}

// FromStoreChange converts a store row change into its wire form.
func FromStoreChange(ch store.RowChange) (RowChange, bool) {
	out := RowChange{Table: ch.Table, Op: ch.Op}
	switch row := ch.Row.(type) {
	case store.Scene:
		out.Scene = &row
	case store.Player:
		out.Player = &row
	case store.Coin:
		out.Coin = &row
	case store.PlayerScore:
		out.Score = &row
	case store.Platform:
		out.Platform = &row
	case store.Enemy:
		out.Enemy = &row
	default:
		return RowChange{}, false
	}
	return out, true
}

// FromCommit builds a committed update keeping only changes to tables
// accepted by include. A nil include keeps everything.
func FromCommit(c store.Commit, include func(table string) bool) *TransactionUpdate {
	update := &TransactionUpdate{
		Status:    StatusCommitted,
		Reducer:   c.Reducer,
		Caller:    c.Caller,
		CommitSeq: c.Seq,
		Timestamp: c.Timestamp.UnixMicro(),
	}
	for _, ch := range c.Changes {
		if include != nil && !include(ch.Table) {
			continue
		}
		if wire, ok := FromStoreChange(ch); ok {
			update.Changes = append(update.Changes, wire)
		}
	}
	return update
}

// FromSnapshot converts store.Snapshot output into TableRows.
func FromSnapshot(rows map[string][]any, seq uint64) *TableRows {
	out := &TableRows{CommitSeq: seq}
	for table, list := range rows {
		for _, row := range list {
			switch table {
			case store.TableScene:
				out.Scenes = append(out.Scenes, row.(store.Scene))
			case store.TablePlayer:
				out.Players = append(out.Players, row.(store.Player))
			case store.TableCoin:
				out.Coins = append(out.Coins, row.(store.Coin))
			case store.TableScore:
				out.Scores = append(out.Scores, row.(store.PlayerScore))
			case store.TablePlatform:
				out.Platforms = append(out.Platforms, row.(store.Platform))
			case store.TableEnemy:
				out.Enemies = append(out.Enemies, row.(store.Enemy))
			}
		}
	}
	return out
}
