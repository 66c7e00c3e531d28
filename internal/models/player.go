package models

import (
	"time"

	"github.com/google/uuid"
)

// PlayerStatus defines the sale state of a player within an auction.
type PlayerStatus string

const (
	PlayerStatusAvailable PlayerStatus = "AVAILABLE"
	PlayerStatusSold      PlayerStatus = "SOLD"
	PlayerStatusUnsold    PlayerStatus = "UNSOLD"
	PlayerStatusRetired   PlayerStatus = "RETIRED"
)

// Player represents a lot put up for bidding in an auction.
type Player struct {
	ID         uuid.UUID         `json:"id"`
	AuctionID  uuid.UUID         `json:"auction_id"`
	Name       string            `json:"name"`
	BasePrice  int64             `json:"base_price"`
	IsIcon     bool              `json:"is_icon"`
	Status     PlayerStatus      `json:"status"`
	SoldTo     *uuid.UUID        `json:"sold_to,omitempty"`
	SoldPrice  *int64            `json:"sold_price,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}
