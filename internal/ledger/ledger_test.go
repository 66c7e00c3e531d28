package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/hammerdown-io/hammerdown/internal/apperrors"
	"github.com/hammerdown-io/hammerdown/internal/broadcast"
	"github.com/hammerdown-io/hammerdown/internal/events"
	"github.com/hammerdown-io/hammerdown/internal/keylock"
	"github.com/hammerdown-io/hammerdown/internal/memstore"
	"github.com/hammerdown-io/hammerdown/internal/models"
	"github.com/hammerdown-io/hammerdown/internal/timer"
)

type fixture struct {
	app     *App
	store   *memstore.Store
	pub     *broadcast.MemoryPublisher
	timers  *timer.Service
	auction *models.Auction
	player  *models.Player
	alice   *models.Bidder
	bob     *models.Bidder
}

// newFixture seeds a LIVE auction with one player under the hammer and two
// registered bidders: increment 1000, countdown 30s, base price 10000, each
// bidder holding a 50000 purse.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	pub := broadcast.NewMemoryPublisher()
	clk := clockwork.NewFakeClock()
	timers := timer.NewService(timer.WithClock(clk))
	app := NewApp(store, timers, broadcast.NewGateway(pub), keylock.New(), clk)

	auction, err := store.CreateAuction(ctx, &models.Auction{
		Name:   "premier night",
		Status: models.AuctionStatusLive,
		Rules: models.AuctionRules{
			MinBidIncrement:  1000,
			CountdownSeconds: 30,
			TotalPurse:       50000,
			IconPlayerCount:  0,
		},
	})
	assert.NoError(t, err)

	player, err := store.CreatePlayer(ctx, &models.Player{
		AuctionID: auction.ID,
		Name:      "Striker One",
		BasePrice: 10000,
		Status:    models.PlayerStatusAvailable,
	})
	assert.NoError(t, err)
	err = store.UpdateAuctionState(ctx, auction.ID, models.AuctionStatusLive, &player.ID)
	assert.NoError(t, err)

	alice, err := store.CreateBidder(ctx, &models.Bidder{
		AuctionID:      auction.ID,
		Slug:           "alice",
		TeamName:       "Team A",
		PurseAmount:    50000,
		RemainingPurse: 50000,
	})
	assert.NoError(t, err)
	bob, err := store.CreateBidder(ctx, &models.Bidder{
		AuctionID:      auction.ID,
		Slug:           "bob",
		TeamName:       "Team B",
		PurseAmount:    50000,
		RemainingPurse: 50000,
	})
	assert.NoError(t, err)

	return &fixture{
		app:     app,
		store:   store,
		pub:     pub,
		timers:  timers,
		auction: auction,
		player:  player,
		alice:   alice,
		bob:     bob,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestPlaceBidValidatesFloor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Opening bid must meet the base price.
	_, err := f.app.PlaceBid(ctx, f.auction.ID, f.player.ID, f.alice.ID, 9999)
	check.True(t, apperrors.IsValidation(err))

	ev, err := f.app.PlaceBid(ctx, f.auction.ID, f.player.ID, f.alice.ID, 10000)
	assert.NoError(t, err)
	check.Equal(t, int64(10000), *ev.Amount)
	check.Equal(t, f.alice.ID, *ev.BidderID)

	// The next bid must clear highest plus the increment.
	_, err = f.app.PlaceBid(ctx, f.auction.ID, f.player.ID, f.bob.ID, 10500)
	check.True(t, apperrors.IsValidation(err))

	_, err = f.app.PlaceBid(ctx, f.auction.ID, f.player.ID, f.bob.ID, 11000)
	assert.NoError(t, err)

	highest, err := f.app.HighestBid(ctx, f.auction.ID)
	assert.NoError(t, err)
	check.Equal(t, int64(11000), *highest.Amount)
	check.Equal(t, f.bob.ID, *highest.BidderID)
}

func TestPlaceBidRejectsInsufficientPurse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.app.PlaceBid(ctx, f.auction.ID, f.player.ID, f.alice.ID, 50001)
	check.True(t, apperrors.IsValidation(err))

	history, err := f.app.History(ctx, f.auction.ID)
	assert.NoError(t, err)
	check.Equal(t, 0, len(history))
}

func TestPlaceBidRequiresLiveAuctionAndCurrentPlayer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.store.UpdateAuctionState(ctx, f.auction.ID, models.AuctionStatusPaused, &f.player.ID)
	assert.NoError(t, err)
	_, err = f.app.PlaceBid(ctx, f.auction.ID, f.player.ID, f.alice.ID, 10000)
	check.True(t, apperrors.IsValidation(err))

	err = f.store.UpdateAuctionState(ctx, f.auction.ID, models.AuctionStatusLive, nil)
	assert.NoError(t, err)
	_, err = f.app.PlaceBid(ctx, f.auction.ID, f.player.ID, f.alice.ID, 10000)
	check.True(t, apperrors.IsValidation(err))
}

func TestPlaceBidRejectsForeignBidder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other, err := f.store.CreateAuction(ctx, &models.Auction{
		Name:   "other",
		Status: models.AuctionStatusDraft,
		Rules:  f.auction.Rules,
	})
	assert.NoError(t, err)
	stranger, err := f.store.CreateBidder(ctx, &models.Bidder{
		AuctionID:      other.ID,
		Slug:           "stranger",
		PurseAmount:    50000,
		RemainingPurse: 50000,
	})
	assert.NoError(t, err)

	_, err = f.app.PlaceBid(ctx, f.auction.ID, f.player.ID, stranger.ID, 10000)
	check.True(t, apperrors.IsValidation(err))
}

func TestPlaceBidResetsCountdown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.timers.Start(f.auction.ID, 3, func() {})

	_, err := f.app.PlaceBid(ctx, f.auction.ID, f.player.ID, f.alice.ID, 10000)
	assert.NoError(t, err)
	check.Equal(t, 30, f.timers.Value(f.auction.ID))

	waitFor(t, func() bool {
		for _, name := range f.pub.EventNames() {
			if name == events.EventNewBid {
				return true
			}
		}
		return false
	})
}

func TestUndoLastBidRestoresPreviousHighest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.app.PlaceBid(ctx, f.auction.ID, f.player.ID, f.alice.ID, 10000)
	assert.NoError(t, err)
	_, err = f.app.PlaceBid(ctx, f.auction.ID, f.player.ID, f.bob.ID, 11000)
	assert.NoError(t, err)

	highest, err := f.app.UndoLastBid(ctx, f.auction.ID, f.bob.ID)
	assert.NoError(t, err)
	assert.NotNil(t, highest)
	check.Equal(t, int64(10000), *highest.Amount)
	check.Equal(t, f.alice.ID, *highest.BidderID)

	history, err := f.app.History(ctx, f.auction.ID)
	assert.NoError(t, err)
	check.Equal(t, 1, len(history))

	// Re-bidding after the undo starts from the surviving highest.
	_, err = f.app.PlaceBid(ctx, f.auction.ID, f.player.ID, f.bob.ID, 10999)
	check.True(t, apperrors.IsValidation(err))
	_, err = f.app.PlaceBid(ctx, f.auction.ID, f.player.ID, f.bob.ID, 11000)
	assert.NoError(t, err)
}

func TestUndoLastBidOnlyByLastBidder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.app.PlaceBid(ctx, f.auction.ID, f.player.ID, f.alice.ID, 10000)
	assert.NoError(t, err)
	_, err = f.app.PlaceBid(ctx, f.auction.ID, f.player.ID, f.bob.ID, 11000)
	assert.NoError(t, err)

	_, err = f.app.UndoLastBid(ctx, f.auction.ID, f.alice.ID)
	check.True(t, apperrors.IsAuthorization(err))

	// Ledger untouched by the rejected undo.
	history, err := f.app.History(ctx, f.auction.ID)
	assert.NoError(t, err)
	check.Equal(t, 2, len(history))
}

func TestUndoLastBidWithEmptyLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.app.UndoLastBid(ctx, f.auction.ID, f.alice.ID)
	check.True(t, apperrors.IsValidation(err))
}

func TestUndoLastBidToEmptyClearsHighest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.app.PlaceBid(ctx, f.auction.ID, f.player.ID, f.alice.ID, 10000)
	assert.NoError(t, err)

	highest, err := f.app.UndoLastBid(ctx, f.auction.ID, f.alice.ID)
	assert.NoError(t, err)
	check.Nil(t, highest)

	// The floor resets to the base price.
	_, err = f.app.PlaceBid(ctx, f.auction.ID, f.player.ID, f.bob.ID, 10000)
	assert.NoError(t, err)
}

func TestHistoryNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.app.PlaceBid(ctx, f.auction.ID, f.player.ID, f.alice.ID, 10000)
	assert.NoError(t, err)
	_, err = f.app.PlaceBid(ctx, f.auction.ID, f.player.ID, f.bob.ID, 11000)
	assert.NoError(t, err)
	_, err = f.app.PlaceBid(ctx, f.auction.ID, f.player.ID, f.alice.ID, 12000)
	assert.NoError(t, err)

	history, err := f.app.History(ctx, f.auction.ID)
	assert.NoError(t, err)
	assert.Equal(t, 3, len(history))
	check.Equal(t, int64(12000), *history[0].Amount)
	check.Equal(t, int64(11000), *history[1].Amount)
	check.Equal(t, int64(10000), *history[2].Amount)
}
