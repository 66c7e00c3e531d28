// Package bidder manages auction participants: registration with per-auction
// slug uniqueness, removal, and the provisioning of synthetic bidders for
// retired players.
package bidder

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hammerdown-io/hammerdown/internal/apperrors"
	"github.com/hammerdown-io/hammerdown/internal/models"
)

// Repository defines what the bidder app needs from the store.
type Repository interface {
	CreateBidder(ctx context.Context, b *models.Bidder) (*models.Bidder, error)
	GetBidder(ctx context.Context, id uuid.UUID) (*models.Bidder, error)
	// GetBidderBySlug returns nil without error when no bidder has the slug.
	GetBidderBySlug(ctx context.Context, auctionID uuid.UUID, slug string) (*models.Bidder, error)
	DeleteBidder(ctx context.Context, id uuid.UUID) error
	ListBidders(ctx context.Context, auctionID uuid.UUID) ([]models.Bidder, error)
}

// App handles bidder business logic.
type App struct {
	repo Repository
}

func NewApp(repo Repository) *App {
	return &App{repo: repo}
}

// Register adds a bidder with the full purse of the auction's rules. The
// slug must be unique within the auction.
func (a *App) Register(ctx context.Context, b *models.Bidder) (*models.Bidder, error) {
	if b.Slug == "" {
		return nil, apperrors.Validationf("bidder slug is required")
	}
	existing, err := a.repo.GetBidderBySlug(ctx, b.AuctionID, b.Slug)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.Validationf("bidder slug %q already taken in this auction", b.Slug)
	}
	if b.PurseAmount <= 0 {
		return nil, apperrors.Validationf("purse amount must be positive, got %d", b.PurseAmount)
	}
	b.RemainingPurse = b.PurseAmount

	created, err := a.repo.CreateBidder(ctx, b)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("auction_id", b.AuctionID.String()).
		Str("slug", b.Slug).
		Msg("bidder registered")
	return created, nil
}

// Get returns a bidder by id.
func (a *App) Get(ctx context.Context, id uuid.UUID) (*models.Bidder, error) {
	b, err := a.repo.GetBidder(ctx, id)
	if err != nil {
		return nil, apperrors.NotFound("bidder", id.String())
	}
	return b, nil
}

// List returns every bidder of an auction.
func (a *App) List(ctx context.Context, auctionID uuid.UUID) ([]models.Bidder, error) {
	return a.repo.ListBidders(ctx, auctionID)
}

// Remove deletes a bidder.
func (a *App) Remove(ctx context.Context, id uuid.UUID) error {
	if _, err := a.repo.GetBidder(ctx, id); err != nil {
		return apperrors.NotFound("bidder", id.String())
	}
	return a.repo.DeleteBidder(ctx, id)
}
