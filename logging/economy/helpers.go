package economy

import (
	"context"
	"strconv"

	"coin-chase/logging"
)

const (
	// EventCoinRegistered is emitted when a coin row is created.
	EventCoinRegistered logging.EventType = "economy.coin_registered"
	// EventCoinCollected is emitted when a coin is claimed and the score bumped.
	EventCoinCollected logging.EventType = "economy.coin_collected"
)

type CoinRegisteredPayload struct {
	CoinID uint32  `json:"coinId"`
	X      float32 `json:"x"`
	Y      float32 `json:"y"`
}

type CoinCollectedPayload struct {
	CoinID uint32 `json:"coinId"`
	Score  uint32 `json:"score"`
}

func CoinRegistered(ctx context.Context, pub logging.Publisher, seq uint64, actor logging.EntityRef, payload CoinRegisteredPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCoinRegistered,
		Seq:      seq,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryEconomy,
		Payload:  payload,
	})
}

func CoinCollected(ctx context.Context, pub logging.Publisher, seq uint64, actor logging.EntityRef, payload CoinCollectedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCoinCollected,
		Seq:      seq,
		Actor:    actor,
		Targets:  []logging.EntityRef{{ID: strconv.FormatUint(uint64(payload.CoinID), 10), Kind: logging.EntityKindCoin}},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryEconomy,
		Payload:  payload,
	})
}
