package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Bidder represents a participant spending a purse in an auction.
// Slug is unique per auction; synthetic bidders provisioned for retired
// players use the fixed slug "retired_<playerID>".
type Bidder struct {
	ID             uuid.UUID  `json:"id"`
	UserID         *uuid.UUID `json:"user_id,omitempty"`
	AuctionID      uuid.UUID  `json:"auction_id"`
	Slug           string     `json:"slug"`
	TeamName       string     `json:"team_name"`
	PhotoURL       string     `json:"photo_url,omitempty"`
	PurseAmount    int64      `json:"purse_amount"`
	RemainingPurse int64      `json:"remaining_purse"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// RetiredBidderSlug returns the deterministic slug of the synthetic bidder
// provisioned when the given player is retired.
func RetiredBidderSlug(playerID uuid.UUID) string {
	return retiredSlugPrefix + playerID.String()
}

// IsRetiredBidderSlug reports whether the slug belongs to a synthetic
// retired-player bidder.
func IsRetiredBidderSlug(slug string) bool {
	return strings.HasPrefix(slug, retiredSlugPrefix)
}

const retiredSlugPrefix = "retired_"
