package models

import (
	"time"

	"github.com/google/uuid"
)

// AuctionStatus defines the lifecycle state of an auction.
type AuctionStatus string

const (
	AuctionStatusDraft     AuctionStatus = "DRAFT"
	AuctionStatusLive      AuctionStatus = "LIVE"
	AuctionStatusPaused    AuctionStatus = "PAUSED"
	AuctionStatusCompleted AuctionStatus = "COMPLETED"
)

// AuctionRules holds the per-auction configuration applied while bidding.
type AuctionRules struct {
	MinBidIncrement  int64 `json:"min_bid_increment"`
	CountdownSeconds int   `json:"countdown_seconds"`
	TotalPurse       int64 `json:"total_purse"`
	IconPlayerCount  int   `json:"icon_player_count"`
}

// Auction represents a single auction instance.
type Auction struct {
	ID              uuid.UUID     `json:"id"`
	Name            string        `json:"name"`
	Status          AuctionStatus `json:"status"`
	CurrentPlayerID *uuid.UUID    `json:"current_player_id,omitempty"`
	Rules           AuctionRules  `json:"rules"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}
