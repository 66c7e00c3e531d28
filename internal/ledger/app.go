// Package ledger implements the append-only bid ledger: bid placement with
// increment and purse validation, and the strictly authorized undo of the
// most recent bid. Entries are ordered by a monotonic per-auction sequence;
// reads return newest first.
package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/hammerdown-io/hammerdown/internal/apperrors"
	"github.com/hammerdown-io/hammerdown/internal/broadcast"
	"github.com/hammerdown-io/hammerdown/internal/events"
	"github.com/hammerdown-io/hammerdown/internal/keylock"
	"github.com/hammerdown-io/hammerdown/internal/models"
	"github.com/hammerdown-io/hammerdown/internal/purse"
	"github.com/hammerdown-io/hammerdown/internal/timer"
)

// Repository defines what the ledger app needs from the store. AppendEvent
// assigns the next per-auction sequence; removals are by exact sequence.
type Repository interface {
	GetAuction(ctx context.Context, id uuid.UUID) (*models.Auction, error)
	GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error)
	GetBidder(ctx context.Context, id uuid.UUID) (*models.Bidder, error)
	AppendEvent(ctx context.Context, ev *models.BidEvent) (*models.BidEvent, error)
	RemoveEvent(ctx context.Context, auctionID uuid.UUID, sequence int64) error
	// HighestBid returns the highest live bid for a player, or nil.
	HighestBid(ctx context.Context, auctionID, playerID uuid.UUID) (*models.BidEvent, error)
	// LatestBid returns the most recent live bid for a player by sequence,
	// ignoring sold/unsold markers, or nil.
	LatestBid(ctx context.Context, auctionID, playerID uuid.UUID) (*models.BidEvent, error)
	// EventsForAuction returns the auction's ledger, newest first.
	EventsForAuction(ctx context.Context, auctionID uuid.UUID) ([]models.BidEvent, error)
}

// App handles bid ledger business logic.
type App struct {
	repo    Repository
	timers  *timer.Service
	gateway *broadcast.Gateway
	locks   *keylock.KeyLock
	clock   clockwork.Clock
}

// NewApp creates a ledger App. The key lock must be the same instance used
// by the sale and auction apps so per-auction mutations serialize.
func NewApp(repo Repository, timers *timer.Service, gateway *broadcast.Gateway, locks *keylock.KeyLock, clock clockwork.Clock) *App {
	return &App{
		repo:    repo,
		timers:  timers,
		gateway: gateway,
		locks:   locks,
		clock:   clock,
	}
}

// PlaceBid validates and appends a bid for the auction's current player. On
// success the countdown is reset to the configured window and a new-bid
// event is broadcast fire-and-forget. On any failure nothing is mutated.
func (a *App) PlaceBid(ctx context.Context, auctionID, playerID, bidderID uuid.UUID, amount int64) (*models.BidEvent, error) {
	a.locks.Lock(auctionID)
	defer a.locks.Unlock(auctionID)

	auction, err := a.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, apperrors.NotFound("auction", auctionID.String())
	}
	if auction.Status != models.AuctionStatusLive {
		return nil, apperrors.Validationf("auction is %s, bidding requires LIVE", auction.Status)
	}
	if auction.CurrentPlayerID == nil || *auction.CurrentPlayerID != playerID {
		return nil, apperrors.Validationf("player %s is not under the hammer", playerID)
	}

	player, err := a.repo.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, apperrors.NotFound("player", playerID.String())
	}

	bidder, err := a.repo.GetBidder(ctx, bidderID)
	if err != nil {
		return nil, apperrors.NotFound("bidder", bidderID.String())
	}
	if bidder.AuctionID != auctionID {
		return nil, apperrors.Validationf("bidder %s is not registered for this auction", bidderID)
	}
	if err := purse.Check(bidder); err != nil {
		log.Error().Err(err).Str("bidder_id", bidderID.String()).Msg("purse invariant broken")
		return nil, err
	}

	highest, err := a.repo.HighestBid(ctx, auctionID, playerID)
	if err != nil {
		return nil, err
	}
	if highest != nil {
		floor := *highest.Amount + auction.Rules.MinBidIncrement
		if amount < floor {
			return nil, apperrors.Validationf("bid %d below minimum %d (highest bid plus increment)", amount, floor)
		}
	} else if amount < player.BasePrice {
		return nil, apperrors.Validationf("bid %d below base price %d", amount, player.BasePrice)
	}
	if !purse.CanAfford(bidder, amount) {
		return nil, apperrors.Validationf("insufficient purse: %d required, %d remaining", amount, bidder.RemainingPurse)
	}

	ev, err := a.repo.AppendEvent(ctx, &models.BidEvent{
		AuctionID: auctionID,
		Type:      models.BidEventBid,
		PlayerID:  playerID,
		BidderID:  &bidderID,
		Amount:    &amount,
		Timestamp: a.clock.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	a.timers.Reset(auctionID, auction.Rules.CountdownSeconds)

	a.gateway.PublishAsync(auctionID, events.EventNewBid, events.NewBidPayload{
		BidderID:         bidderID.String(),
		PlayerID:         playerID.String(),
		Amount:           amount,
		Timestamp:        ev.Timestamp,
		CountdownSeconds: auction.Rules.CountdownSeconds,
		UpdatedPurse:     bidder.RemainingPurse,
	})

	log.Info().
		Str("auction_id", auctionID.String()).
		Str("bidder_id", bidderID.String()).
		Int64("amount", amount).
		Msg("bid placed")

	return ev, nil
}

// UndoLastBid retracts the most recent bid on the auction's current player.
// Only the bidder who placed that bid may undo it; anyone else gets an
// AuthorizationError and the ledger stays untouched. Purses are never
// mutated. Returns the new highest bid, or nil when none remains.
func (a *App) UndoLastBid(ctx context.Context, auctionID, bidderID uuid.UUID) (*models.BidEvent, error) {
	a.locks.Lock(auctionID)
	defer a.locks.Unlock(auctionID)

	auction, err := a.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, apperrors.NotFound("auction", auctionID.String())
	}
	if auction.Status != models.AuctionStatusLive {
		return nil, apperrors.Validationf("auction is %s, undo requires LIVE", auction.Status)
	}
	if auction.CurrentPlayerID == nil {
		return nil, apperrors.Validationf("no player is under the hammer")
	}
	playerID := *auction.CurrentPlayerID

	last, err := a.repo.LatestBid(ctx, auctionID, playerID)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return nil, apperrors.Validationf("no bid to undo for the current player")
	}
	if last.BidderID == nil || *last.BidderID != bidderID {
		return nil, apperrors.Authorizationf("only the bidder who placed the last bid may undo it")
	}

	if err := a.repo.RemoveEvent(ctx, auctionID, last.Sequence); err != nil {
		return nil, err
	}

	a.timers.Reset(auctionID, auction.Rules.CountdownSeconds)

	highest, err := a.repo.HighestBid(ctx, auctionID, playerID)
	if err != nil {
		return nil, err
	}

	a.gateway.PublishAsync(auctionID, events.EventBidUndo, events.BidUndoPayload{
		BidderID:         bidderID.String(),
		CurrentBid:       highest,
		CountdownSeconds: auction.Rules.CountdownSeconds,
	})

	log.Info().
		Str("auction_id", auctionID.String()).
		Str("bidder_id", bidderID.String()).
		Msg("bid undone")

	return highest, nil
}

// History returns the auction's ledger, newest first.
func (a *App) History(ctx context.Context, auctionID uuid.UUID) ([]models.BidEvent, error) {
	return a.repo.EventsForAuction(ctx, auctionID)
}

// HighestBid returns the highest live bid for the auction's current player,
// or nil when there is none.
func (a *App) HighestBid(ctx context.Context, auctionID uuid.UUID) (*models.BidEvent, error) {
	auction, err := a.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, apperrors.NotFound("auction", auctionID.String())
	}
	if auction.CurrentPlayerID == nil {
		return nil, nil
	}
	return a.repo.HighestBid(ctx, auctionID, *auction.CurrentPlayerID)
}
