package sale

import (
	"context"

	"github.com/google/uuid"

	"github.com/hammerdown-io/hammerdown/internal/models"
)

// MarkSoldParams is persisted atomically: the player's sale fields, the
// buyer's purse debit and the appended Sold event commit in one transaction.
type MarkSoldParams struct {
	AuctionID uuid.UUID
	PlayerID  uuid.UUID
	BidderID  uuid.UUID
	Amount    int64
	Event     models.BidEvent
}

// MarkUnsoldParams is persisted atomically: player status and the Unsold
// ledger entry commit together. Purses are untouched.
type MarkUnsoldParams struct {
	AuctionID uuid.UUID
	PlayerID  uuid.UUID
	Event     models.BidEvent
}

// UndoSaleParams reverts a sale atomically: the player returns to AVAILABLE
// with sale fields cleared, the buyer's purse is refunded, every ledger
// entry for the player is removed, and the auction's current player is set
// back to the reverted player.
type UndoSaleParams struct {
	AuctionID    uuid.UUID
	PlayerID     uuid.UUID
	BidderID     uuid.UUID
	RefundAmount int64
}

// RetirementEvent is the domain event emitted when a player is retired or
// un-retired. The bidder provisioner consumes it to keep the synthetic
// bidder in step with the player's status.
type RetirementEvent struct {
	Auction *models.Auction
	Player  *models.Player
	// Retired is true on retirement, false on un-retirement.
	Retired bool
}

// RetirementHandler consumes retirement events. Handlers must be idempotent;
// a failing handler aborts the retirement.
type RetirementHandler interface {
	HandleRetirement(ctx context.Context, ev RetirementEvent) error
}
