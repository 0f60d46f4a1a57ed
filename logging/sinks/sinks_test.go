package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"coin-chase/logging"
)

func TestConsoleFormatsEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsole(&buf)
	err := sink.Write(logging.Event{
		Type:     "economy.coin_collected",
		Seq:      7,
		Actor:    logging.PlayerRef("abc"),
		Targets:  []logging.EntityRef{{ID: "3", Kind: logging.EntityKindCoin}},
		Severity: logging.SeverityInfo,
		Reducer:  "collect_coin",
		Payload:  map[string]int{"score": 1},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	line := buf.String()
	for _, want := range []string{"[economy.coin_collected]", "seq=7", "actor=player:abc", "severity=info", "reducer=collect_coin", "targets=coin:3", `payload={"score":1}`} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
}

func TestJSONWritesOneObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSON(&buf, 0)
	for i := 0; i < 2; i++ {
		if err := sink.Write(logging.Event{Type: "network.session_opened", Seq: uint64(i)}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var decoded logging.Event
	if err := json.Unmarshal([]byte(lines[1]), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Seq != 1 || decoded.Type != "network.session_opened" {
		t.Fatalf("unexpected decoded event %+v", decoded)
	}
}

func TestMemoryFiltersByType(t *testing.T) {
	sink := NewMemory()
	sink.Publish(context.Background(), logging.Event{Type: "a"})
	sink.Publish(context.Background(), logging.Event{Type: "b"})
	sink.Publish(context.Background(), logging.Event{Type: "a"})
	if got := len(sink.OfType("a")); got != 2 {
		t.Fatalf("expected 2 events of type a, got %d", got)
	}
	sink.Reset()
	if len(sink.Events()) != 0 {
		t.Fatalf("expected reset to clear events")
	}
}

func TestFromConfigBuildsEnabledSinks(t *testing.T) {
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = []string{"console", "json"}
	cfg.JSON.FilePath = filepath.Join(t.TempDir(), "logs", "events.jsonl")
	cfg.JSON.FlushInterval = 0

	var console bytes.Buffer
	named, err := FromConfig(cfg, &console)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(named) != 2 || named[0].Name != "console" || named[1].Name != "json" {
		t.Fatalf("unexpected sinks %+v", named)
	}
	if err := named[1].Sink.Write(logging.Event{Type: "x"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := named[1].Sink.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(cfg.JSON.FilePath)
	if err != nil || !strings.Contains(string(data), `"type":"x"`) {
		t.Fatalf("expected event in file, got %q (%v)", data, err)
	}

	cfg.EnabledSinks = nil
	if named, _ := FromConfig(cfg, &console); len(named) != 0 {
		t.Fatalf("expected no sinks")
	}
}
