// Package events holds the wire names and JSON payloads broadcast to auction
// viewers. Payloads are hints: clients must re-fetch authoritative state on
// reconnect or suspected loss, and delivery is at-least-once and possibly
// zero, so consumers are expected to be idempotent on replay.
package events

import (
	"time"

	"github.com/hammerdown-io/hammerdown/internal/models"
)

// Event names published on the auction channel.
const (
	EventNewBid         = "new-bid"
	EventBidUndo        = "bid-undo"
	EventNewPlayer      = "new-player"
	EventPlayerSold     = "player-sold"
	EventSaleUndo       = "sale-undo"
	EventAuctionPaused  = "auction-paused"
	EventAuctionResumed = "auction-resumed"
	EventAuctionEnded   = "auction-ended"
	EventPlayersUpdated = "players-updated"
)

// NewBidPayload accompanies an accepted bid.
type NewBidPayload struct {
	BidderID         string    `json:"bidder_id"`
	PlayerID         string    `json:"player_id"`
	Amount           int64     `json:"amount"`
	Timestamp        time.Time `json:"timestamp"`
	CountdownSeconds int       `json:"countdown_seconds"`
	UpdatedPurse     int64     `json:"updated_purse"`
}

// BidUndoPayload accompanies a retracted bid. CurrentBid is nil when the
// retraction left no bids on the current player.
type BidUndoPayload struct {
	BidderID         string           `json:"bidder_id"`
	CurrentBid       *models.BidEvent `json:"current_bid"`
	CountdownSeconds int              `json:"countdown_seconds"`
}

// NewPlayerPayload accompanies a player being put up for bidding.
type NewPlayerPayload struct {
	Player models.Player `json:"player"`
}

// PurseDelta reports one bidder's purse after a sale-side mutation.
type PurseDelta struct {
	BidderID       string `json:"bidder_id"`
	RemainingPurse int64  `json:"remaining_purse"`
}

// PlayerSoldPayload accompanies a finalized sale.
type PlayerSoldPayload struct {
	Player models.Player `json:"player"`
	Purse  PurseDelta    `json:"purse"`
}

// SaleUndoPayload accompanies a reverted sale; the player is back up for
// bidding and the buyer's purse has been refunded.
type SaleUndoPayload struct {
	Player models.Player `json:"player"`
	Purse  PurseDelta    `json:"purse"`
}

// PlayersUpdatedPayload carries batch player deltas, e.g. after a full reset.
type PlayersUpdatedPayload struct {
	Players []models.Player `json:"players"`
}
