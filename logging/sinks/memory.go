package sinks

import (
	"context"
	"sync"

	"coin-chase/logging"
)

// Memory keeps every event in order. Used by tests.
type Memory struct {
	mu     sync.RWMutex
	events []logging.Event
}

func NewMemory() *Memory {
	return &Memory{}
}

func (s *Memory) Write(event logging.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *Memory) Publish(_ context.Context, event logging.Event) {
	_ = s.Write(event)
}

func (s *Memory) Events() []logging.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]logging.Event(nil), s.events...)
}

// OfType returns the recorded events with the given type.
func (s *Memory) OfType(t logging.EventType) []logging.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []logging.Event
	for _, e := range s.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (s *Memory) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = s.events[:0]
}

func (s *Memory) Close(context.Context) error {
	return nil
}
