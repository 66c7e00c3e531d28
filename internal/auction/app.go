// Package auction implements the auction-level state machine
// (DRAFT → LIVE ⇄ PAUSED → COMPLETED) and the icon-priority random
// selection of the next player under the hammer.
package auction

import (
	"context"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hammerdown-io/hammerdown/internal/apperrors"
	"github.com/hammerdown-io/hammerdown/internal/auth"
	"github.com/hammerdown-io/hammerdown/internal/broadcast"
	"github.com/hammerdown-io/hammerdown/internal/events"
	"github.com/hammerdown-io/hammerdown/internal/keylock"
	"github.com/hammerdown-io/hammerdown/internal/models"
	"github.com/hammerdown-io/hammerdown/internal/sale"
	"github.com/hammerdown-io/hammerdown/internal/timer"
)

// Repository defines what the auction app needs from the store. ResetAuction
// runs as one atomic transaction covering players, bidders, ledger and the
// auction row.
type Repository interface {
	CreateAuction(ctx context.Context, a *models.Auction) (*models.Auction, error)
	GetAuction(ctx context.Context, id uuid.UUID) (*models.Auction, error)
	UpdateAuctionState(ctx context.Context, id uuid.UUID, status models.AuctionStatus, currentPlayerID *uuid.UUID) error
	// DeleteAuction cascades to the auction's players, bidders and ledger.
	DeleteAuction(ctx context.Context, id uuid.UUID) error
	GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error)
	ListPlayers(ctx context.Context, auctionID uuid.UUID) ([]models.Player, error)
	ClearEvents(ctx context.Context, auctionID uuid.UUID) error
	ResetAuction(ctx context.Context, auctionID uuid.UUID) error
}

// App orchestrates auction state transitions, composing the countdown timer
// service and the sale manager.
type App struct {
	repo    Repository
	timers  *timer.Service
	sales   *sale.App
	gateway *broadcast.Gateway
	locks   *keylock.KeyLock
	pick    func(n int) int
}

// Option configures an App.
type Option func(*App)

// WithPicker overrides the random index picker, used by tests to make
// selection deterministic.
func WithPicker(pick func(n int) int) Option {
	return func(a *App) { a.pick = pick }
}

// NewApp creates an auction App sharing the key lock of the ledger and sale
// apps.
func NewApp(repo Repository, timers *timer.Service, sales *sale.App, gateway *broadcast.Gateway, locks *keylock.KeyLock, opts ...Option) *App {
	a := &App{
		repo:    repo,
		timers:  timers,
		sales:   sales,
		gateway: gateway,
		locks:   locks,
		pick:    rand.IntN,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Create registers a new DRAFT auction.
func (a *App) Create(ctx context.Context, ident auth.Identity, auction *models.Auction) (*models.Auction, error) {
	if err := auth.RequireAdmin(ident); err != nil {
		return nil, err
	}
	if auction.Rules.MinBidIncrement <= 0 {
		return nil, apperrors.Validationf("min bid increment must be positive")
	}
	if auction.Rules.CountdownSeconds <= 0 {
		return nil, apperrors.Validationf("countdown seconds must be positive")
	}
	if auction.Rules.TotalPurse <= 0 {
		return nil, apperrors.Validationf("total purse must be positive")
	}
	auction.Status = models.AuctionStatusDraft
	auction.CurrentPlayerID = nil
	return a.repo.CreateAuction(ctx, auction)
}

// Get returns an auction by id.
func (a *App) Get(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	auction, err := a.repo.GetAuction(ctx, id)
	if err != nil {
		return nil, apperrors.NotFound("auction", id.String())
	}
	return auction, nil
}

// ListPlayers returns every player of the auction.
func (a *App) ListPlayers(ctx context.Context, auctionID uuid.UUID) ([]models.Player, error) {
	return a.repo.ListPlayers(ctx, auctionID)
}

// Delete removes the auction and cascades to its players, bidders and
// ledger.
func (a *App) Delete(ctx context.Context, ident auth.Identity, id uuid.UUID) error {
	if err := auth.RequireAdmin(ident); err != nil {
		return err
	}
	if _, err := a.repo.GetAuction(ctx, id); err != nil {
		return apperrors.NotFound("auction", id.String())
	}
	a.timers.Stop(id)
	return a.repo.DeleteAuction(ctx, id)
}

// Start opens bidding: picks the first player (icon players first while the
// icon quota is open), clears the ledger, sets LIVE and starts the
// countdown. Valid from DRAFT only; rejected when no AVAILABLE player
// exists.
func (a *App) Start(ctx context.Context, ident auth.Identity, auctionID uuid.UUID) (*models.Player, error) {
	if err := auth.RequireAdmin(ident); err != nil {
		return nil, err
	}

	a.locks.Lock(auctionID)
	defer a.locks.Unlock(auctionID)

	auction, err := a.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, apperrors.NotFound("auction", auctionID.String())
	}
	if auction.Status != models.AuctionStatusDraft {
		return nil, apperrors.Validationf("auction is %s, starting requires DRAFT", auction.Status)
	}

	next, err := a.selectNext(ctx, auction)
	if err != nil {
		return nil, err
	}

	if err := a.repo.ClearEvents(ctx, auctionID); err != nil {
		return nil, err
	}
	if err := a.repo.UpdateAuctionState(ctx, auctionID, models.AuctionStatusLive, &next.ID); err != nil {
		return nil, err
	}

	a.startCountdown(auction)

	a.gateway.PublishAsync(auctionID, events.EventNewPlayer, events.NewPlayerPayload{Player: *next})
	log.Info().
		Str("auction_id", auctionID.String()).
		Str("player_id", next.ID.String()).
		Msg("auction started")
	return next, nil
}

// Pause halts the countdown and sets PAUSED. Idempotent.
func (a *App) Pause(ctx context.Context, ident auth.Identity, auctionID uuid.UUID) error {
	if err := auth.RequireAdmin(ident); err != nil {
		return err
	}

	a.locks.Lock(auctionID)
	defer a.locks.Unlock(auctionID)

	auction, err := a.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return apperrors.NotFound("auction", auctionID.String())
	}
	switch auction.Status {
	case models.AuctionStatusPaused:
		return nil
	case models.AuctionStatusLive:
	default:
		return apperrors.Validationf("auction is %s, pausing requires LIVE", auction.Status)
	}

	if err := a.repo.UpdateAuctionState(ctx, auctionID, models.AuctionStatusPaused, auction.CurrentPlayerID); err != nil {
		return err
	}
	a.timers.Pause(auctionID)

	if err := a.gateway.PublishAwaited(ctx, auctionID, events.EventAuctionPaused, nil); err != nil {
		log.Warn().Err(err).Str("auction_id", auctionID.String()).Msg("auction-paused broadcast failed")
	}
	log.Info().Str("auction_id", auctionID.String()).Msg("auction paused")
	return nil
}

// Resume continues a paused auction. Idempotent.
func (a *App) Resume(ctx context.Context, ident auth.Identity, auctionID uuid.UUID) error {
	if err := auth.RequireAdmin(ident); err != nil {
		return err
	}

	a.locks.Lock(auctionID)
	defer a.locks.Unlock(auctionID)

	auction, err := a.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return apperrors.NotFound("auction", auctionID.String())
	}
	switch auction.Status {
	case models.AuctionStatusLive:
		return nil
	case models.AuctionStatusPaused:
	default:
		return apperrors.Validationf("auction is %s, resuming requires PAUSED", auction.Status)
	}

	if err := a.repo.UpdateAuctionState(ctx, auctionID, models.AuctionStatusLive, auction.CurrentPlayerID); err != nil {
		return err
	}
	a.timers.Resume(auctionID)

	if err := a.gateway.PublishAwaited(ctx, auctionID, events.EventAuctionResumed, nil); err != nil {
		log.Warn().Err(err).Str("auction_id", auctionID.String()).Msg("auction-resumed broadcast failed")
	}
	log.Info().Str("auction_id", auctionID.String()).Msg("auction resumed")
	return nil
}

// NextPlayer puts the next player under the hammer using the same
// icon-priority selection over the remaining AVAILABLE pool, and restarts
// the countdown. Only valid while LIVE.
func (a *App) NextPlayer(ctx context.Context, ident auth.Identity, auctionID uuid.UUID) (*models.Player, error) {
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
		return nil, apperrors.Validationf("auction is %s, next player requires LIVE", auction.Status)
	}

	next, err := a.selectNext(ctx, auction)
	if err != nil {
		return nil, err
	}

	if err := a.repo.UpdateAuctionState(ctx, auctionID, models.AuctionStatusLive, &next.ID); err != nil {
		return nil, err
	}

	a.startCountdown(auction)

	a.gateway.PublishAsync(auctionID, events.EventNewPlayer, events.NewPlayerPayload{Player: *next})
	log.Info().
		Str("auction_id", auctionID.String()).
		Str("player_id", next.ID.String()).
		Msg("next player under the hammer")
	return next, nil
}

// End completes the auction. A current player still AVAILABLE is
// auto-marked UNSOLD first; the countdown stops.
func (a *App) End(ctx context.Context, ident auth.Identity, auctionID uuid.UUID) error {
	if err := auth.RequireAdmin(ident); err != nil {
		return err
	}

	a.locks.Lock(auctionID)
	auction, err := a.repo.GetAuction(ctx, auctionID)
	if err != nil {
		a.locks.Unlock(auctionID)
		return apperrors.NotFound("auction", auctionID.String())
	}
	if auction.Status != models.AuctionStatusLive && auction.Status != models.AuctionStatusPaused {
		a.locks.Unlock(auctionID)
		return apperrors.Validationf("auction is %s, ending requires LIVE or PAUSED", auction.Status)
	}
	currentID := auction.CurrentPlayerID
	a.locks.Unlock(auctionID)

	// The sale app takes the same per-auction lock, so the auto-unsold runs
	// outside ours.
	if currentID != nil {
		player, err := a.repo.GetPlayer(ctx, *currentID)
		if err == nil && player.Status == models.PlayerStatusAvailable {
			if _, err := a.sales.MarkUnsold(ctx, auth.System(), auctionID, *currentID); err != nil {
				return err
			}
		}
	}

	a.locks.Lock(auctionID)
	defer a.locks.Unlock(auctionID)

	if err := a.repo.UpdateAuctionState(ctx, auctionID, models.AuctionStatusCompleted, currentID); err != nil {
		return err
	}
	a.timers.Stop(auctionID)

	if err := a.gateway.PublishAwaited(ctx, auctionID, events.EventAuctionEnded, nil); err != nil {
		log.Warn().Err(err).Str("auction_id", auctionID.String()).Msg("auction-ended broadcast failed")
	}
	log.Info().Str("auction_id", auctionID.String()).Msg("auction ended")
	return nil
}

// Reset destructively returns the auction to DRAFT: every player back to
// AVAILABLE with sale fields cleared, every purse restored, the ledger
// cleared and no current player. Runs as one transaction in the store.
func (a *App) Reset(ctx context.Context, ident auth.Identity, auctionID uuid.UUID) error {
	if err := auth.RequireAdmin(ident); err != nil {
		return err
	}

	a.locks.Lock(auctionID)
	defer a.locks.Unlock(auctionID)

	if _, err := a.repo.GetAuction(ctx, auctionID); err != nil {
		return apperrors.NotFound("auction", auctionID.String())
	}

	if err := a.repo.ResetAuction(ctx, auctionID); err != nil {
		return err
	}
	a.timers.Stop(auctionID)

	players, err := a.repo.ListPlayers(ctx, auctionID)
	if err != nil {
		return err
	}
	a.gateway.PublishAsync(auctionID, events.EventPlayersUpdated, events.PlayersUpdatedPayload{Players: players})

	log.Info().Str("auction_id", auctionID.String()).Msg("auction reset to draft")
	return nil
}

// selectNext applies the icon-priority rule: while fewer icon players have
// been auctioned than the configured quota and at least one icon player is
// AVAILABLE, pick uniformly among AVAILABLE icon players; otherwise pick
// uniformly among all AVAILABLE players.
func (a *App) selectNext(ctx context.Context, auction *models.Auction) (*models.Player, error) {
	players, err := a.repo.ListPlayers(ctx, auction.ID)
	if err != nil {
		return nil, err
	}

	var available, icons []models.Player
	auctionedIcons := 0
	for _, p := range players {
		switch p.Status {
		case models.PlayerStatusAvailable:
			available = append(available, p)
			if p.IsIcon {
				icons = append(icons, p)
			}
		case models.PlayerStatusSold, models.PlayerStatusUnsold:
			if p.IsIcon {
				auctionedIcons++
			}
		}
	}
	if len(available) == 0 {
		return nil, apperrors.Validationf("no AVAILABLE players to put under the hammer")
	}

	pool := available
	if auctionedIcons < auction.Rules.IconPlayerCount && len(icons) > 0 {
		pool = icons
	}
	picked := pool[a.pick(len(pool))]
	return &picked, nil
}

// startCountdown arms the bidding window. Reaching zero is a domain-level
// timeout: the lot stays open for the administrator to finalize, so the
// completion hook only records that the window closed.
func (a *App) startCountdown(auction *models.Auction) {
	id := auction.ID
	a.timers.Start(id, auction.Rules.CountdownSeconds, func() {
		log.Info().Str("auction_id", id.String()).Msg("bidding window expired")
	})
}
