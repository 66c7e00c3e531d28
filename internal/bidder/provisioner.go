package bidder

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/hammerdown-io/hammerdown/internal/models"
	"github.com/hammerdown-io/hammerdown/internal/sale"
)

// Provisioner keeps synthetic bidders in step with player retirements:
// exactly one bidder with slug retired_<playerID> exists iff the player is
// RETIRED. It consumes the sale app's retirement events.
type Provisioner struct {
	repo Repository
}

func NewProvisioner(repo Repository) *Provisioner {
	return &Provisioner{repo: repo}
}

// HandleRetirement provisions or removes the synthetic bidder for the
// player. Idempotent: an already-provisioned or already-removed bidder is
// left as is.
func (p *Provisioner) HandleRetirement(ctx context.Context, ev sale.RetirementEvent) error {
	slug := models.RetiredBidderSlug(ev.Player.ID)

	existing, err := p.repo.GetBidderBySlug(ctx, ev.Auction.ID, slug)
	if err != nil {
		return err
	}

	if ev.Retired {
		if existing != nil {
			return nil
		}
		total := ev.Auction.Rules.TotalPurse
		b := &models.Bidder{
			AuctionID:      ev.Auction.ID,
			Slug:           slug,
			TeamName:       ev.Player.Attributes["team"],
			PhotoURL:       ev.Player.Attributes["photo"],
			PurseAmount:    total,
			RemainingPurse: total,
		}
		if b.TeamName == "" {
			b.TeamName = ev.Player.Name
		}
		if _, err := p.repo.CreateBidder(ctx, b); err != nil {
			return err
		}
		log.Info().
			Str("auction_id", ev.Auction.ID.String()).
			Str("slug", slug).
			Msg("synthetic bidder provisioned")
		return nil
	}

	if existing == nil {
		return nil
	}
	if err := p.repo.DeleteBidder(ctx, existing.ID); err != nil {
		return err
	}
	log.Info().
		Str("auction_id", ev.Auction.ID.String()).
		Str("slug", slug).
		Msg("synthetic bidder removed")
	return nil
}
