package telemetry

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestWrapLogger(t *testing.T) {
	t.Run("nil logger", func(t *testing.T) {
		WrapLogger(nil).Printf("ignored %d", 1)
	})

	t.Run("writes through", func(t *testing.T) {
		var buf bytes.Buffer
		WrapLogger(log.New(&buf, "", 0)).Printf("hello %s", "world")
		if got := strings.TrimSpace(buf.String()); got != "hello world" {
			t.Fatalf("unexpected output %q", got)
		}
	})
}

func TestCountersAddAndStore(t *testing.T) {
	c := NewCounters()
	c.Add(MetricCommits, 2)
	c.Add(MetricCommits, 3)
	c.Store(MetricSessionsActive, 4)
	c.Store(MetricSessionsActive, 1)

	if got := c.Get(MetricCommits); got != 5 {
		t.Fatalf("expected commits 5, got %d", got)
	}
	if got := c.Get(MetricSessionsActive); got != 1 {
		t.Fatalf("expected gauge 1, got %d", got)
	}
	keys := c.Keys()
	if len(keys) != 2 || keys[0] != MetricCommits {
		t.Fatalf("unexpected keys %v", keys)
	}
	snap := c.Snapshot()
	snap[MetricCommits] = 99
	if c.Get(MetricCommits) != 5 {
		t.Fatalf("snapshot must not alias counters")
	}
}

func TestNilCountersAreSafe(t *testing.T) {
	var c *Counters
	c.Add("x", 1)
	c.Store("x", 1)
	if c.Get("x") != 0 {
		t.Fatalf("expected zero from nil counters")
	}
}
