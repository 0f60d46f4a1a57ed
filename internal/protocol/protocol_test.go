package protocol

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"coin-chase/internal/store"
)

func TestCodecByName(t *testing.T) {
	cases := map[string]int{
		"":         websocket.TextMessage,
		"json":     websocket.TextMessage,
		" MsgPack": websocket.BinaryMessage,
	}
	for name, frame := range cases {
		codec, err := CodecByName(name)
		if err != nil {
			t.Fatalf("CodecByName(%q): %v", name, err)
		}
		if codec.FrameType() != frame {
			t.Fatalf("CodecByName(%q) frame type %d, want %d", name, codec.FrameType(), frame)
		}
	}
	if _, err := CodecByName("protobuf"); err == nil {
		t.Fatalf("expected unknown codec to fail")
	}
}

func TestMsgpackUsesJSONFieldNames(t *testing.T) {
	state := store.PlayerState{Position: store.Vector2{X: 1.5, Y: -2}, Direction: 1, IsJumping: true}
	msg := ClientMessage{Ver: Version, Type: TypeCall, Seq: 9, Reducer: store.ReducerUpdateState, Args: &store.Args{State: &state}}

	data, err := MsgpackCodec{}.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var generic map[string]any
	if err := msgpack.Unmarshal(data, &generic); err != nil {
		t.Fatalf("decode generic: %v", err)
	}
	for _, key := range []string{"ver", "type", "seq", "reducer", "args"} {
		if _, ok := generic[key]; !ok {
			t.Fatalf("expected key %q in %v", key, generic)
		}
	}
	if _, ok := generic["tables"]; ok {
		t.Fatalf("expected omitempty to drop tables")
	}

	var decoded ClientMessage
	if err := (MsgpackCodec{}).Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Args == nil || decoded.Args.State == nil || *decoded.Args.State != state {
		t.Fatalf("state lost in transit: %+v", decoded.Args)
	}
}

func TestServerMessageTimesSurviveBothCodecs(t *testing.T) {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	who := store.Identity("abc")
	msg := ServerMessage{
		Ver:  Version,
		Type: TypeSubscriptionApplied,
		Rows: &TableRows{
			Scenes:    []store.Scene{{ID: 1, Name: "Main", CreationTime: created, LastUpdateTime: created}},
			Coins:     []store.Coin{{ID: 2, CollectedBy: &who}},
			CommitSeq: 4,
		},
	}
	for _, codec := range []Codec{JSONCodec{}, MsgpackCodec{}} {
		data, err := codec.Marshal(msg)
		if err != nil {
			t.Fatalf("%s marshal: %v", codec.Name(), err)
		}
		var got ServerMessage
		if err := codec.Unmarshal(data, &got); err != nil {
			t.Fatalf("%s unmarshal: %v", codec.Name(), err)
		}
		if got.Rows == nil || len(got.Rows.Scenes) != 1 || !got.Rows.Scenes[0].CreationTime.Equal(created) {
			t.Fatalf("%s: scene time lost: %+v", codec.Name(), got.Rows)
		}
		if got.Rows.Coins[0].CollectedBy == nil || *got.Rows.Coins[0].CollectedBy != who {
			t.Fatalf("%s: collector lost", codec.Name())
		}
		if got.Rows.CommitSeq != 4 {
			t.Fatalf("%s: expected commit seq 4, got %d", codec.Name(), got.Rows.CommitSeq)
		}
	}
}

func TestFromCommitFiltersTables(t *testing.T) {
	commit := store.Commit{
		Seq:       3,
		Reducer:   store.ReducerCollectCoin,
		Caller:    "p",
		Timestamp: time.UnixMicro(1234),
		Changes: []store.RowChange{
			{Table: store.TableCoin, Op: store.OpUpdate, Row: store.Coin{ID: 1}},
			{Table: store.TableScore, Op: store.OpInsert, Row: store.PlayerScore{ID: 1, CoinsCollected: 1}},
		},
	}
	update := FromCommit(commit, func(table string) bool { return table == store.TableScore })
	if update.Status != StatusCommitted || update.CommitSeq != 3 || update.Timestamp != 1234 {
		t.Fatalf("unexpected update header %+v", update)
	}
	if len(update.Changes) != 1 || update.Changes[0].Score == nil || update.Changes[0].Coin != nil {
		t.Fatalf("expected only the score change, got %+v", update.Changes)
	}
	if all := FromCommit(commit, nil); len(all.Changes) != 2 {
		t.Fatalf("expected nil filter to keep all changes")
	}
}

func TestFromSnapshot(t *testing.T) {
	rows := map[string][]any{
		store.TablePlayer:   {store.Player{Identity: "a"}, store.Player{Identity: "b"}},
		store.TablePlatform: {store.Platform{ID: 1}},
	}
	out := FromSnapshot(rows, 8)
	if len(out.Players) != 2 || len(out.Platforms) != 1 || out.CommitSeq != 8 {
		t.Fatalf("unexpected snapshot %+v", out)
	}
}

func TestSchemaDescribesMessages(t *testing.T) {
	schemas := Schema()
	data, err := json.Marshal(schemas)
	if err != nil {
		t.Fatalf("marshal schema: %v", err)
	}
	text := string(data)
	for _, want := range []string{"Coin Chase client message", "Coin Chase server message", "\"reducer\"", "\"collectedBy\""} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %s in schema", want)
		}
	}
}
