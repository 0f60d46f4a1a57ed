package logging

import (
	"context"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock reports wall-clock time.
var SystemClock Clock = ClockFunc(time.Now)

type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

type NamedSink struct {
	Name string
	Sink Sink
}

// Router fans published events out to its sinks. Publish never blocks:
// when the queue is full the event is counted as dropped.
type Router struct {
	cfg      Config
	queue    chan Event
	workers  []*sinkWorker
	clock    Clock
	fallback *log.Logger
	stop     chan struct{}
	closed   atomic.Bool
	fields   map[string]any
	wg       sync.WaitGroup

	published atomic.Uint64
	dropped   atomic.Uint64
	nextWarn  atomic.Int64
}

type RouterStats struct {
	EventsTotal  uint64
	DroppedTotal uint64
}

func NewRouter(clock Clock, cfg Config, namedSinks []NamedSink) *Router {
	if clock == nil {
		clock = SystemClock
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = DefaultConfig().BufferSize
	}
	r := &Router{
		cfg:      cfg,
		queue:    make(chan Event, size),
		clock:    clock,
		fallback: log.New(os.Stderr, "[logging] ", log.LstdFlags),
		stop:     make(chan struct{}),
		fields:   cfg.CloneFields(),
	}
	perSink := size
	if perSink > 1024 {
		perSink = 1024
	}
	if perSink < 32 {
		perSink = 32
	}
	for _, named := range namedSinks {
		if named.Sink == nil {
			continue
		}
		r.workers = append(r.workers, &sinkWorker{
			name:     named.Name,
			sink:     named.Sink,
			events:   make(chan Event, perSink),
			fallback: r.fallback,
		})
	}

	r.wg.Add(1 + len(r.workers))
	go r.dispatch()
	for _, w := range r.workers {
		go func(w *sinkWorker) {
			defer r.wg.Done()
			w.run()
		}(w)
	}
	return r
}

func (r *Router) dispatch() {
	defer func() {
		for _, w := range r.workers {
			close(w.events)
		}
		r.wg.Done()
	}()
	for {
		select {
		case <-r.stop:
			for {
				select {
				case event := <-r.queue:
					r.forward(event)
				default:
					return
				}
			}
		case event := <-r.queue:
			r.forward(event)
		}
	}
}

func (r *Router) forward(event Event) {
	if event.Severity < r.cfg.MinimumSeverity {
		return
	}
	if event.Time.IsZero() {
		event.Time = r.clock.Now()
	}
	event = mergeFields(event, r.fields)
	r.published.Add(1)
	for _, w := range r.workers {
		select {
		case w.events <- cloneEvent(event):
		default:
			r.fallback.Printf("sink %s backlog full, dropping %s", w.name, event.Type)
		}
	}
}

func (r *Router) Publish(_ context.Context, event Event) {
	if event.Type == "" || r.closed.Load() {
		return
	}
	select {
	case r.queue <- event:
	default:
		r.dropped.Add(1)
		r.warnDrop(event)
	}
}

func (r *Router) warnDrop(event Event) {
	interval := r.cfg.DropWarnInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	now := time.Now().UnixNano()
	next := r.nextWarn.Load()
	if now < next {
		return
	}
	if r.nextWarn.CompareAndSwap(next, now+interval.Nanoseconds()) {
		r.fallback.Printf("queue full, dropping %s seq=%d", event.Type, event.Seq)
	}
}

// Close drains queued events into the sinks and closes them. A second
// Close is a no-op.
func (r *Router) Close(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(r.stop)
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	var firstErr error
	for _, w := range r.workers {
		if err := w.sink.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Router) Stats() RouterStats {
	return RouterStats{
		EventsTotal:  r.published.Load(),
		DroppedTotal: r.dropped.Load(),
	}
}

func (r *Router) Sink(name string) Sink {
	for _, w := range r.workers {
		if w.name == name {
			return w.sink
		}
	}
	return nil
}

type sinkWorker struct {
	name      string
	sink      Sink
	events    chan Event
	fallback  *log.Logger
	failures  int
	nextRetry time.Time
}

func (w *sinkWorker) run() {
	for event := range w.events {
		if w.failures > 0 {
			if wait := time.Until(w.nextRetry); wait > 0 {
				time.Sleep(wait)
			}
		}
		if err := w.sink.Write(event); err != nil {
			w.failures++
			shift := w.failures
			if shift > 5 {
				shift = 5
			}
			delay := time.Duration(1<<shift) * 100 * time.Millisecond
			w.nextRetry = time.Now().Add(delay)
			w.fallback.Printf("sink %s failed: %v (retry in %s)", w.name, err, delay)
			continue
		}
		w.failures = 0
	}
}
