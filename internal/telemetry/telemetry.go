package telemetry

import (
	"log"
	"sort"
	"sync"
)

// Logger is the printf-style logger components accept.
type Logger interface {
	Printf(format string, args ...any)
}

type LoggerFunc func(format string, args ...any)

func (f LoggerFunc) Printf(format string, args ...any) {
	if f == nil {
		return
	}
	f(format, args...)
}

// WrapLogger adapts a standard library logger. A nil logger discards.
func WrapLogger(logger *log.Logger) Logger {
	return LoggerFunc(func(format string, args ...any) {
		if logger == nil {
			return
		}
		logger.Printf(format, args...)
	})
}

// Discard drops everything.
var Discard Logger = LoggerFunc(func(string, ...any) {})

// Metrics records counters and gauges by key.
type Metrics interface {
	Add(key string, delta uint64)
	Store(key string, value uint64)
}

const (
	MetricReducerCalls    = "reducer_calls_total"
	MetricReducerFailures = "reducer_failures_total"
	MetricCommits         = "commits_total"
	MetricSessionsOpened  = "sessions_opened_total"
	MetricSessionsActive  = "sessions_active"
	MetricBroadcastBytes  = "broadcast_bytes_total"
	MetricBroadcastErrors = "broadcast_errors_total"
	MetricSnaps           = "reconcile_snaps_total"
	MetricBlends          = "reconcile_blends_total"
)

// Counters is an in-memory Metrics implementation.
type Counters struct {
	mu     sync.Mutex
	values map[string]uint64
}

func NewCounters() *Counters {
	return &Counters{values: make(map[string]uint64)}
}

func (c *Counters) Add(key string, delta uint64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.values[key] += delta
	c.mu.Unlock()
}

func (c *Counters) Store(key string, value uint64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.values[key] = value
	c.mu.Unlock()
}

func (c *Counters) Get(key string) uint64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[key]
}

// Snapshot copies the current values.
func (c *Counters) Snapshot() map[string]uint64 {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]uint64, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Keys returns the recorded keys in sorted order.
func (c *Counters) Keys() []string {
	snap := c.Snapshot()
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NopMetrics returns a Metrics that drops everything.
func NopMetrics() Metrics {
	return nopMetrics{}
}

type nopMetrics struct{}

func (nopMetrics) Add(string, uint64)   {}
func (nopMetrics) Store(string, uint64) {}
