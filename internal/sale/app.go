// Package sale implements the player lifecycle: finalizing lots as sold or
// unsold, reverting sales, and retiring players into synthetic bidders via
// an explicit domain event.
package sale

import (
	"context"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/hammerdown-io/hammerdown/internal/apperrors"
	"github.com/hammerdown-io/hammerdown/internal/auth"
	"github.com/hammerdown-io/hammerdown/internal/broadcast"
	"github.com/hammerdown-io/hammerdown/internal/events"
	"github.com/hammerdown-io/hammerdown/internal/keylock"
	"github.com/hammerdown-io/hammerdown/internal/models"
	"github.com/hammerdown-io/hammerdown/internal/purse"
	"github.com/hammerdown-io/hammerdown/internal/timer"
)

// Repository defines what the sale app needs from the store. The composite
// methods (MarkSold, MarkUnsold, UndoSale) each run as a single atomic
// transaction; a failure leaves the store unchanged.
type Repository interface {
	GetAuction(ctx context.Context, id uuid.UUID) (*models.Auction, error)
	GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error)
	GetBidder(ctx context.Context, id uuid.UUID) (*models.Bidder, error)
	CreatePlayer(ctx context.Context, p *models.Player) (*models.Player, error)
	UpdatePlayerStatus(ctx context.Context, playerID uuid.UUID, status models.PlayerStatus) error
	MarkSold(ctx context.Context, params MarkSoldParams) error
	MarkUnsold(ctx context.Context, params MarkUnsoldParams) error
	UndoSale(ctx context.Context, params UndoSaleParams) error
	// LatestSoldEvent returns the Sold entry with the highest sequence for
	// the auction, or nil. Sequence order, not wall-clock order, decides
	// which sale is "most recent".
	LatestSoldEvent(ctx context.Context, auctionID uuid.UUID) (*models.BidEvent, error)
}

// App handles sale and player lifecycle business logic.
type App struct {
	repo     Repository
	timers   *timer.Service
	gateway  *broadcast.Gateway
	locks    *keylock.KeyLock
	clock    clockwork.Clock
	handlers []RetirementHandler
}

// NewApp creates a sale App sharing the key lock of the ledger and auction
// apps.
func NewApp(repo Repository, timers *timer.Service, gateway *broadcast.Gateway, locks *keylock.KeyLock, clock clockwork.Clock) *App {
	return &App{
		repo:    repo,
		timers:  timers,
		gateway: gateway,
		locks:   locks,
		clock:   clock,
	}
}

// OnRetirement registers a handler for retirement domain events.
func (a *App) OnRetirement(h RetirementHandler) {
	a.handlers = append(a.handlers, h)
}

// RegisterPlayer adds an AVAILABLE player to the auction.
func (a *App) RegisterPlayer(ctx context.Context, p *models.Player) (*models.Player, error) {
	if _, err := a.repo.GetAuction(ctx, p.AuctionID); err != nil {
		return nil, apperrors.NotFound("auction", p.AuctionID.String())
	}
	if p.BasePrice <= 0 {
		return nil, apperrors.Validationf("base price must be positive, got %d", p.BasePrice)
	}
	p.Status = models.PlayerStatusAvailable
	created, err := a.repo.CreatePlayer(ctx, p)
	if err != nil {
		return nil, err
	}

	a.gateway.PublishAsync(p.AuctionID, events.EventPlayersUpdated, events.PlayersUpdatedPayload{
		Players: []models.Player{*created},
	})
	return created, nil
}

// MarkSold finalizes the lot: the player becomes SOLD to the bidder, the
// bidder's purse is debited, a Sold entry is appended, the countdown stops
// and the sale is broadcast before returning.
func (a *App) MarkSold(ctx context.Context, ident auth.Identity, auctionID, playerID, bidderID uuid.UUID, amount int64) (*models.Player, error) {
	if err := auth.RequireAdmin(ident); err != nil {
		return nil, err
	}

	a.locks.Lock(auctionID)
	defer a.locks.Unlock(auctionID)

	auction, err := a.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, apperrors.NotFound("auction", auctionID.String())
	}
	if auction.Status != models.AuctionStatusLive {
		return nil, apperrors.Validationf("auction is %s, selling requires LIVE", auction.Status)
	}

	player, err := a.repo.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, apperrors.NotFound("player", playerID.String())
	}
	if player.AuctionID != auctionID {
		return nil, apperrors.Validationf("player %s does not belong to this auction", playerID)
	}
	if player.Status != models.PlayerStatusAvailable {
		return nil, apperrors.Validationf("player is %s, selling requires AVAILABLE", player.Status)
	}

	bidder, err := a.repo.GetBidder(ctx, bidderID)
	if err != nil {
		return nil, apperrors.NotFound("bidder", bidderID.String())
	}
	if bidder.AuctionID != auctionID {
		return nil, apperrors.Validationf("bidder %s is not registered for this auction", bidderID)
	}
	// Validate the debit before touching the store; the repository enforces
	// the same bound inside the transaction.
	if err := purse.Debit(bidder, amount); err != nil {
		return nil, err
	}

	err = a.repo.MarkSold(ctx, MarkSoldParams{
		AuctionID: auctionID,
		PlayerID:  playerID,
		BidderID:  bidderID,
		Amount:    amount,
		Event: models.BidEvent{
			AuctionID: auctionID,
			Type:      models.BidEventSold,
			PlayerID:  playerID,
			BidderID:  &bidderID,
			Amount:    &amount,
			Timestamp: a.clock.Now().UTC(),
		},
	})
	if err != nil {
		return nil, err
	}

	a.timers.Stop(auctionID)

	sold, err := a.repo.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if err := a.gateway.PublishAwaited(ctx, auctionID, events.EventPlayerSold, events.PlayerSoldPayload{
		Player: *sold,
		Purse:  events.PurseDelta{BidderID: bidderID.String(), RemainingPurse: bidder.RemainingPurse},
	}); err != nil {
		log.Warn().Err(err).Str("auction_id", auctionID.String()).Msg("player-sold broadcast failed")
	}

	log.Info().
		Str("auction_id", auctionID.String()).
		Str("player_id", playerID.String()).
		Str("bidder_id", bidderID.String()).
		Int64("amount", amount).
		Msg("player sold")

	return sold, nil
}

// MarkUnsold closes the lot without a sale. No purse is touched.
func (a *App) MarkUnsold(ctx context.Context, ident auth.Identity, auctionID, playerID uuid.UUID) (*models.Player, error) {
	if err := auth.RequireAdmin(ident); err != nil {
		return nil, err
	}

	a.locks.Lock(auctionID)
	defer a.locks.Unlock(auctionID)

	player, err := a.repo.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, apperrors.NotFound("player", playerID.String())
	}
	if player.AuctionID != auctionID {
		return nil, apperrors.Validationf("player %s does not belong to this auction", playerID)
	}
	if player.Status != models.PlayerStatusAvailable {
		return nil, apperrors.Validationf("player is %s, marking unsold requires AVAILABLE", player.Status)
	}

	err = a.repo.MarkUnsold(ctx, MarkUnsoldParams{
		AuctionID: auctionID,
		PlayerID:  playerID,
		Event: models.BidEvent{
			AuctionID: auctionID,
			Type:      models.BidEventUnsold,
			PlayerID:  playerID,
			Timestamp: a.clock.Now().UTC(),
		},
	})
	if err != nil {
		return nil, err
	}

	a.timers.Stop(auctionID)

	unsold, err := a.repo.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	a.gateway.PublishAsync(auctionID, events.EventPlayersUpdated, events.PlayersUpdatedPayload{
		Players: []models.Player{*unsold},
	})

	log.Info().
		Str("auction_id", auctionID.String()).
		Str("player_id", playerID.String()).
		Msg("player unsold")

	return unsold, nil
}

// UndoSale reverts the most recent sale of the auction, found by the
// highest-sequence Sold entry. The player returns to AVAILABLE, the buyer is
// refunded, every ledger entry for the player is removed so rebidding starts
// clean at base price, and the player is put back under the hammer.
func (a *App) UndoSale(ctx context.Context, ident auth.Identity, auctionID uuid.UUID) (*models.Player, error) {
	if err := auth.RequireAdmin(ident); err != nil {
		return nil, err
	}

	a.locks.Lock(auctionID)
	defer a.locks.Unlock(auctionID)

	auction, err := a.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, apperrors.NotFound("auction", auctionID.String())
	}

	sold, err := a.repo.LatestSoldEvent(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if sold == nil {
		return nil, apperrors.Validationf("no sold player to revert")
	}

	player, err := a.repo.GetPlayer(ctx, sold.PlayerID)
	if err != nil {
		return nil, apperrors.NotFound("player", sold.PlayerID.String())
	}
	if player.Status != models.PlayerStatusSold {
		err := apperrors.Consistencyf("sold ledger entry %d references player %s in status %s", sold.Sequence, player.ID, player.Status)
		log.Error().Err(err).Str("auction_id", auctionID.String()).Msg("refusing to undo sale")
		return nil, err
	}
	if player.SoldTo == nil || player.SoldPrice == nil {
		err := apperrors.Consistencyf("player %s is SOLD with no recorded buyer or price", player.ID)
		log.Error().Err(err).Str("auction_id", auctionID.String()).Msg("refusing to undo sale")
		return nil, err
	}

	bidder, err := a.repo.GetBidder(ctx, *player.SoldTo)
	if err != nil {
		err := apperrors.Consistencyf("buyer %s of player %s cannot be resolved", player.SoldTo, player.ID)
		log.Error().Err(err).Str("auction_id", auctionID.String()).Msg("refusing to undo sale")
		return nil, err
	}
	// Validate the refund before touching the store.
	if err := purse.Refund(bidder, *player.SoldPrice); err != nil {
		log.Error().Err(err).Str("auction_id", auctionID.String()).Msg("refusing to undo sale")
		return nil, err
	}

	err = a.repo.UndoSale(ctx, UndoSaleParams{
		AuctionID:    auctionID,
		PlayerID:     player.ID,
		BidderID:     bidder.ID,
		RefundAmount: *player.SoldPrice,
	})
	if err != nil {
		return nil, err
	}

	a.timers.Reset(auctionID, auction.Rules.CountdownSeconds)

	restored, err := a.repo.GetPlayer(ctx, player.ID)
	if err != nil {
		return nil, err
	}
	if err := a.gateway.PublishAwaited(ctx, auctionID, events.EventSaleUndo, events.SaleUndoPayload{
		Player: *restored,
		Purse:  events.PurseDelta{BidderID: bidder.ID.String(), RemainingPurse: bidder.RemainingPurse},
	}); err != nil {
		log.Warn().Err(err).Str("auction_id", auctionID.String()).Msg("sale-undo broadcast failed")
	}

	log.Info().
		Str("auction_id", auctionID.String()).
		Str("player_id", player.ID.String()).
		Msg("sale undone")

	return restored, nil
}

// RetirePlayer marks the player RETIRED and provisions the matching
// synthetic bidder through the registered retirement handlers. A failing
// handler aborts the retirement and restores the player.
func (a *App) RetirePlayer(ctx context.Context, ident auth.Identity, auctionID, playerID uuid.UUID) error {
	if err := auth.RequireAdmin(ident); err != nil {
		return err
	}

	a.locks.Lock(auctionID)
	defer a.locks.Unlock(auctionID)

	auction, err := a.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return apperrors.NotFound("auction", auctionID.String())
	}
	player, err := a.repo.GetPlayer(ctx, playerID)
	if err != nil {
		return apperrors.NotFound("player", playerID.String())
	}
	if player.AuctionID != auctionID {
		return apperrors.Validationf("player %s does not belong to this auction", playerID)
	}
	if player.Status != models.PlayerStatusAvailable {
		return apperrors.Validationf("player is %s, retiring requires AVAILABLE", player.Status)
	}

	if err := a.repo.UpdatePlayerStatus(ctx, playerID, models.PlayerStatusRetired); err != nil {
		return err
	}
	player.Status = models.PlayerStatusRetired

	if err := a.emitRetirement(ctx, RetirementEvent{Auction: auction, Player: player, Retired: true}); err != nil {
		// Fail closed: revert the status so the one-bidder-iff-RETIRED
		// invariant holds.
		if rbErr := a.repo.UpdatePlayerStatus(ctx, playerID, models.PlayerStatusAvailable); rbErr != nil {
			log.Error().Err(rbErr).Str("player_id", playerID.String()).Msg("failed to roll back retirement")
		}
		return err
	}

	a.gateway.PublishAsync(auctionID, events.EventPlayersUpdated, events.PlayersUpdatedPayload{
		Players: []models.Player{*player},
	})
	log.Info().Str("player_id", playerID.String()).Msg("player retired")
	return nil
}

// UnretirePlayer restores a RETIRED player to AVAILABLE and removes the
// synthetic bidder.
func (a *App) UnretirePlayer(ctx context.Context, ident auth.Identity, auctionID, playerID uuid.UUID) error {
	if err := auth.RequireAdmin(ident); err != nil {
		return err
	}

	a.locks.Lock(auctionID)
	defer a.locks.Unlock(auctionID)

	auction, err := a.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return apperrors.NotFound("auction", auctionID.String())
	}
	player, err := a.repo.GetPlayer(ctx, playerID)
	if err != nil {
		return apperrors.NotFound("player", playerID.String())
	}
	if player.Status != models.PlayerStatusRetired {
		return apperrors.Validationf("player is %s, un-retiring requires RETIRED", player.Status)
	}

	if err := a.repo.UpdatePlayerStatus(ctx, playerID, models.PlayerStatusAvailable); err != nil {
		return err
	}
	player.Status = models.PlayerStatusAvailable

	if err := a.emitRetirement(ctx, RetirementEvent{Auction: auction, Player: player, Retired: false}); err != nil {
		if rbErr := a.repo.UpdatePlayerStatus(ctx, playerID, models.PlayerStatusRetired); rbErr != nil {
			log.Error().Err(rbErr).Str("player_id", playerID.String()).Msg("failed to roll back un-retirement")
		}
		return err
	}

	a.gateway.PublishAsync(auctionID, events.EventPlayersUpdated, events.PlayersUpdatedPayload{
		Players: []models.Player{*player},
	})
	log.Info().Str("player_id", playerID.String()).Msg("player un-retired")
	return nil
}

func (a *App) emitRetirement(ctx context.Context, ev RetirementEvent) error {
	for _, h := range a.handlers {
		if err := h.HandleRetirement(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}
