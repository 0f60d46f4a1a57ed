package network

import (
	"context"

	"coin-chase/logging"
)

const (
	// EventSessionOpened is emitted when a websocket session is established.
	EventSessionOpened logging.EventType = "network.session_opened"
	// EventSessionClosed is emitted when a websocket session ends.
	EventSessionClosed logging.EventType = "network.session_closed"
	// EventMessageRejected is emitted when an inbound message cannot be handled.
	EventMessageRejected logging.EventType = "network.message_rejected"
	// EventStateChanged is emitted when a client session moves between states.
	EventStateChanged logging.EventType = "network.state_changed"
)

type SessionOpenedPayload struct {
	Codec    string `json:"codec"`
	Returned bool   `json:"returned"`
}

type SessionClosedPayload struct {
	Reason string `json:"reason"`
}

type MessageRejectedPayload struct {
	Reason string `json:"reason"`
}

type StateChangedPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func SessionOpened(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload SessionOpenedPayload) {
	publish(ctx, pub, logging.SeverityInfo, EventSessionOpened, actor, payload)
}

func SessionClosed(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload SessionClosedPayload) {
	publish(ctx, pub, logging.SeverityInfo, EventSessionClosed, actor, payload)
}

func MessageRejected(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload MessageRejectedPayload) {
	publish(ctx, pub, logging.SeverityWarn, EventMessageRejected, actor, payload)
}

func StateChanged(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload StateChangedPayload) {
	publish(ctx, pub, logging.SeverityInfo, EventStateChanged, actor, payload)
}

func publish(ctx context.Context, pub logging.Publisher, severity logging.Severity, eventType logging.EventType, actor logging.EntityRef, payload any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Actor:    actor,
		Severity: severity,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}
