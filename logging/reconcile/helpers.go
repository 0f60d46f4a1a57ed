package reconcile

import (
	"context"

	"coin-chase/logging"
)

const (
	// EventCorrection is emitted when a remote entity is snapped onto its
	// authoritative position.
	EventCorrection logging.EventType = "reconcile.correction"
)

type CorrectionPayload struct {
	Outcome  string  `json:"outcome"`
	Distance float64 `json:"distance"`
}

// Correction publishes a snap. Blends are too frequent to log.
func Correction(ctx context.Context, pub logging.Publisher, frame uint64, actor logging.EntityRef, payload CorrectionPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCorrection,
		Seq:      frame,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryReconcile,
		Payload:  payload,
	})
}
