package store

import (
	"context"
	"time"
)

type idCounters struct {
	scene, player, coin, score, platform, enemy uint32
}

// Tx is the mutable view a reducer runs against. Every write is recorded
// in an undo journal so a failing reducer leaves no trace.
type Tx struct {
	ctx       context.Context
	s         *Store
	Caller    Identity
	Timestamp time.Time

	ids       idCounters
	undo      []func()
	changes   []RowChange
	afterward []func(seq uint64)
}

func (tx *Tx) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.s.ids = tx.ids
}

// onCommit schedules fn to run once the transaction has a sequence number.
func (tx *Tx) onCommit(fn func(seq uint64)) {
	tx.afterward = append(tx.afterward, fn)
}

func put[K comparable, V any](tx *Tx, table string, rows map[K]V, key K, row V) {
	prev, existed := rows[key]
	rows[key] = row
	if existed {
		tx.undo = append(tx.undo, func() { rows[key] = prev })
		tx.changes = append(tx.changes, RowChange{Table: table, Op: OpUpdate, Row: row})
		return
	}
	tx.undo = append(tx.undo, func() { delete(rows, key) })
	tx.changes = append(tx.changes, RowChange{Table: table, Op: OpInsert, Row: row})
}

func remove[K comparable, V any](tx *Tx, table string, rows map[K]V, key K) (V, bool) {
	prev, existed := rows[key]
	if !existed {
		return prev, false
	}
	delete(rows, key)
	tx.undo = append(tx.undo, func() { rows[key] = prev })
	if table != "" {
		tx.changes = append(tx.changes, RowChange{Table: table, Op: OpDelete, Row: prev})
	}
	return prev, true
}

// putPrivate writes to a table that is never broadcast.
func putPrivate[K comparable, V any](tx *Tx, rows map[K]V, key K, row V) {
	prev, existed := rows[key]
	rows[key] = row
	if existed {
		tx.undo = append(tx.undo, func() { rows[key] = prev })
		return
	}
	tx.undo = append(tx.undo, func() { delete(rows, key) })
}
