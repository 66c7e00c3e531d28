// Package broadcast publishes state-changing auction events to viewers. The
// two publish modes make the latency/consistency tradeoff explicit per call
// site: latency-critical events (bids, bid undos) go out fire-and-forget,
// while sale events are published before the mutating call returns so the
// acting client observes them in order relative to other viewers.
package broadcast

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hammerdown-io/hammerdown/internal/apperrors"
)

// Publisher delivers one named event for one auction. Delivery is
// at-least-once and possibly zero; consumers treat payloads as hints.
type Publisher interface {
	Publish(ctx context.Context, auctionID uuid.UUID, event string, data []byte) error
}

// Envelope is the JSON message wrapped around every published payload.
type Envelope struct {
	EventID   string          `json:"event_id"`
	AuctionID string          `json:"auction_id"`
	Event     string          `json:"event"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Gateway fans auction events out to the configured publisher.
type Gateway struct {
	pub          Publisher
	asyncTimeout time.Duration
}

// NewGateway creates a broadcast gateway over the given publisher.
func NewGateway(pub Publisher) *Gateway {
	return &Gateway{
		pub:          pub,
		asyncTimeout: 5 * time.Second,
	}
}

// PublishAsync publishes without blocking the caller. Failures are logged
// and swallowed; the caller's outcome never depends on them.
func (g *Gateway) PublishAsync(auctionID uuid.UUID, event string, payload any) {
	data, err := marshalEnvelope(auctionID, event, payload)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("failed to marshal broadcast payload")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), g.asyncTimeout)
		defer cancel()

		if err := g.pub.Publish(ctx, auctionID, event, data); err != nil {
			terr := apperrors.Transient("broadcast publish", err)
			log.Warn().
				Err(terr).
				Str("auction_id", auctionID.String()).
				Str("event", event).
				Msg("dropped broadcast event")
		}
	}()
}

// PublishAwaited publishes before returning. The returned error is always a
// TransientError; callers log it but must not roll back the persisted write
// it announces.
func (g *Gateway) PublishAwaited(ctx context.Context, auctionID uuid.UUID, event string, payload any) error {
	data, err := marshalEnvelope(auctionID, event, payload)
	if err != nil {
		return apperrors.Transient("broadcast marshal", err)
	}
	if err := g.pub.Publish(ctx, auctionID, event, data); err != nil {
		return apperrors.Transient("broadcast publish", err)
	}
	return nil
}

func marshalEnvelope(auctionID uuid.UUID, event string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(Envelope{
		EventID:   uuid.New().String(),
		AuctionID: auctionID.String(),
		Event:     event,
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	})
}
