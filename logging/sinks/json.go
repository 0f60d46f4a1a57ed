package sinks

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"coin-chase/logging"
)

// JSON emits newline-delimited structured events.
type JSON struct {
	mu        sync.Mutex
	writer    *bufio.Writer
	encoder   *json.Encoder
	autoFlush bool
	done      chan struct{}
	closeOnce sync.Once
}

// NewJSON writes to w, flushing every flushInterval. A non-positive
// interval flushes after each event.
func NewJSON(w io.Writer, flushInterval time.Duration) *JSON {
	if w == nil {
		w = io.Discard
	}
	buf := bufio.NewWriter(w)
	sink := &JSON{writer: buf, encoder: json.NewEncoder(buf), autoFlush: flushInterval <= 0, done: make(chan struct{})}
	if flushInterval > 0 {
		go sink.periodicFlush(flushInterval)
	}
	return sink
}

func (s *JSON) Write(event logging.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.encoder.Encode(event); err != nil {
		return err
	}
	if s.autoFlush {
		return s.writer.Flush()
	}
	return nil
}

func (s *JSON) Close(context.Context) error {
	s.closeOnce.Do(func() { close(s.done) })
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writer.Flush()
}

func (s *JSON) periodicFlush(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.writer.Flush()
			s.mu.Unlock()
		}
	}
}

type fileJSON struct {
	*JSON
	file *os.File
}

func (s *fileJSON) Close(ctx context.Context) error {
	if err := s.JSON.Close(ctx); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}
