package logging

import (
	"context"
	"time"
)

type EventType string

type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
)

type EntityKind string

const (
	EntityKindUnknown EntityKind = "unknown"
	EntityKindPlayer  EntityKind = "player"
	EntityKindRemote  EntityKind = "remote"
	EntityKindCoin    EntityKind = "coin"
	EntityKindScene   EntityKind = "scene"
	EntityKindSession EntityKind = "session"
)

// Event is a single structured log record. Seq carries the store commit
// sequence on the server and the frame counter on the client.
type Event struct {
	Type     EventType      `json:"type"`
	Seq      uint64         `json:"seq"`
	Time     time.Time      `json:"time"`
	Actor    EntityRef      `json:"actor"`
	Targets  []EntityRef    `json:"targets,omitempty"`
	Severity Severity       `json:"severity"`
	Category string         `json:"category,omitempty"`
	Payload  any            `json:"payload,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
	Reducer  string         `json:"reducer,omitempty"`
}

type EntityRef struct {
	ID   string     `json:"id"`
	Kind EntityKind `json:"kind"`
}

const (
	CategoryLifecycle = "lifecycle"
	CategoryEconomy   = "economy"
	CategoryNetwork   = "network"
	CategoryReconcile = "reconcile"
)

type Publisher interface {
	Publish(ctx context.Context, event Event)
}

type PublisherFunc func(ctx context.Context, event Event)

func (f PublisherFunc) Publish(ctx context.Context, event Event) {
	if f == nil {
		return
	}
	f(ctx, event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) {}

func NopPublisher() Publisher {
	return nopPublisher{}
}

type fieldPublisher struct {
	next   Publisher
	fields map[string]any
}

func (p *fieldPublisher) Publish(ctx context.Context, event Event) {
	if p.next == nil {
		return
	}
	p.next.Publish(ctx, mergeFields(event, p.fields))
}

func mergeFields(event Event, fields map[string]any) Event {
	if len(fields) == 0 {
		return event
	}
	event = cloneEvent(event)
	if event.Extra == nil {
		event.Extra = make(map[string]any, len(fields))
	}
	for k, v := range fields {
		if _, exists := event.Extra[k]; !exists {
			event.Extra[k] = v
		}
	}
	return event
}

func cloneEvent(event Event) Event {
	cloned := event
	if len(event.Targets) > 0 {
		cloned.Targets = append([]EntityRef(nil), event.Targets...)
	}
	if event.Extra != nil {
		copied := make(map[string]any, len(event.Extra))
		for k, v := range event.Extra {
			copied[k] = v
		}
		cloned.Extra = copied
	}
	return cloned
}

// WithFields decorates p so every event carries the given extra fields
// unless the event already sets them.
func WithFields(p Publisher, fields map[string]any) Publisher {
	if p == nil {
		return NopPublisher()
	}
	if len(fields) == 0 {
		return p
	}
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return &fieldPublisher{next: p, fields: copied}
}

func (e Event) WithExtra(key string, value any) Event {
	if e.Extra == nil {
		e.Extra = make(map[string]any, 1)
	}
	e.Extra[key] = value
	return e
}

// PlayerRef builds an actor reference for a player identity.
func PlayerRef(identity string) EntityRef {
	return EntityRef{ID: identity, Kind: EntityKindPlayer}
}
