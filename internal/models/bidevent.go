package models

import (
	"time"

	"github.com/google/uuid"
)

// BidEventType tags the variants of a ledger entry.
type BidEventType string

const (
	BidEventBid      BidEventType = "bid"
	BidEventSold     BidEventType = "sold"
	BidEventUnsold   BidEventType = "unsold"
	BidEventSaleUndo BidEventType = "sale-undo"
)

// BidEvent is one entry of an auction's append-only ledger. Sequence is a
// monotonic per-auction counter; it, not the wall-clock Timestamp, defines
// event order. BidderID is set for bid/sold entries, Amount carries the bid
// or sale amount (the refunded amount for sale-undo).
type BidEvent struct {
	AuctionID uuid.UUID    `json:"-"`
	Sequence  int64        `json:"-"`
	Type      BidEventType `json:"type"`
	PlayerID  uuid.UUID    `json:"playerId"`
	BidderID  *uuid.UUID   `json:"bidderId,omitempty"`
	Amount    *int64       `json:"amount,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// IsBid reports whether the entry is a live bid (not a sold/unsold marker).
func (e BidEvent) IsBid() bool {
	return e.Type == BidEventBid
}
