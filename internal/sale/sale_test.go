package sale_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/hammerdown-io/hammerdown/internal/apperrors"
	"github.com/hammerdown-io/hammerdown/internal/auth"
	"github.com/hammerdown-io/hammerdown/internal/bidder"
	"github.com/hammerdown-io/hammerdown/internal/broadcast"
	"github.com/hammerdown-io/hammerdown/internal/events"
	"github.com/hammerdown-io/hammerdown/internal/keylock"
	"github.com/hammerdown-io/hammerdown/internal/ledger"
	"github.com/hammerdown-io/hammerdown/internal/memstore"
	"github.com/hammerdown-io/hammerdown/internal/models"
	"github.com/hammerdown-io/hammerdown/internal/sale"
	"github.com/hammerdown-io/hammerdown/internal/timer"
)

type fixture struct {
	sales   *sale.App
	bids    *ledger.App
	store   *memstore.Store
	pub     *broadcast.MemoryPublisher
	admin   auth.Identity
	auction *models.Auction
	player  *models.Player
	buyer   *models.Bidder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	pub := broadcast.NewMemoryPublisher()
	gw := broadcast.NewGateway(pub)
	clk := clockwork.NewFakeClock()
	timers := timer.NewService(timer.WithClock(clk))
	locks := keylock.New()

	sales := sale.NewApp(store, timers, gw, locks, clk)
	sales.OnRetirement(bidder.NewProvisioner(store))
	bids := ledger.NewApp(store, timers, gw, locks, clk)

	auction, err := store.CreateAuction(ctx, &models.Auction{
		Name:   "league finale",
		Status: models.AuctionStatusLive,
		Rules: models.AuctionRules{
			MinBidIncrement:  1000,
			CountdownSeconds: 30,
			TotalPurse:       50000,
		},
	})
	assert.NoError(t, err)
	player, err := store.CreatePlayer(ctx, &models.Player{
		AuctionID: auction.ID,
		Name:      "Keeper Prime",
		BasePrice: 10000,
		Status:    models.PlayerStatusAvailable,
	})
	assert.NoError(t, err)
	err = store.UpdateAuctionState(ctx, auction.ID, models.AuctionStatusLive, &player.ID)
	assert.NoError(t, err)
	buyer, err := store.CreateBidder(ctx, &models.Bidder{
		AuctionID:      auction.ID,
		Slug:           "buyer",
		TeamName:       "Buyers FC",
		PurseAmount:    50000,
		RemainingPurse: 50000,
	})
	assert.NoError(t, err)

	return &fixture{
		sales:   sales,
		bids:    bids,
		store:   store,
		pub:     pub,
		admin:   auth.Identity{Role: auth.RoleAdmin},
		auction: auction,
		player:  player,
		buyer:   buyer,
	}
}

func TestMarkSoldDebitsPurseAndRecordsSale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sold, err := f.sales.MarkSold(ctx, f.admin, f.auction.ID, f.player.ID, f.buyer.ID, 12000)
	assert.NoError(t, err)
	check.Equal(t, models.PlayerStatusSold, sold.Status)
	check.Equal(t, f.buyer.ID, *sold.SoldTo)
	check.Equal(t, int64(12000), *sold.SoldPrice)

	b, err := f.store.GetBidder(ctx, f.buyer.ID)
	assert.NoError(t, err)
	check.Equal(t, int64(38000), b.RemainingPurse)

	// The awaited broadcast happened before MarkSold returned.
	check.Equal(t, []string{events.EventPlayerSold}, f.pub.EventNames())
}

func TestMarkSoldRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	viewer := auth.Identity{Role: auth.RoleViewer}
	_, err := f.sales.MarkSold(ctx, viewer, f.auction.ID, f.player.ID, f.buyer.ID, 12000)
	check.True(t, apperrors.IsAuthorization(err))
}

func TestMarkSoldRejectsOverdraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.sales.MarkSold(ctx, f.admin, f.auction.ID, f.player.ID, f.buyer.ID, 50001)
	check.True(t, apperrors.IsValidation(err))

	p, err := f.store.GetPlayer(ctx, f.player.ID)
	assert.NoError(t, err)
	check.Equal(t, models.PlayerStatusAvailable, p.Status)
	b, err := f.store.GetBidder(ctx, f.buyer.ID)
	assert.NoError(t, err)
	check.Equal(t, int64(50000), b.RemainingPurse)
}

func TestMarkSoldRejectsNonAvailablePlayer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.sales.MarkSold(ctx, f.admin, f.auction.ID, f.player.ID, f.buyer.ID, 12000)
	assert.NoError(t, err)

	_, err = f.sales.MarkSold(ctx, f.admin, f.auction.ID, f.player.ID, f.buyer.ID, 12000)
	check.True(t, apperrors.IsValidation(err))
}

func TestMarkUnsoldLeavesPurseAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	unsold, err := f.sales.MarkUnsold(ctx, f.admin, f.auction.ID, f.player.ID)
	assert.NoError(t, err)
	check.Equal(t, models.PlayerStatusUnsold, unsold.Status)
	check.Nil(t, unsold.SoldTo)

	b, err := f.store.GetBidder(ctx, f.buyer.ID)
	assert.NoError(t, err)
	check.Equal(t, int64(50000), b.RemainingPurse)
}

func TestUndoSaleRestoresEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Bid, then hammer down, then revert: the round trip must leave the
	// player AVAILABLE with a clean ledger and the purse fully restored.
	_, err := f.bids.PlaceBid(ctx, f.auction.ID, f.player.ID, f.buyer.ID, 10000)
	assert.NoError(t, err)
	_, err = f.sales.MarkSold(ctx, f.admin, f.auction.ID, f.player.ID, f.buyer.ID, 10000)
	assert.NoError(t, err)

	restored, err := f.sales.UndoSale(ctx, f.admin, f.auction.ID)
	assert.NoError(t, err)
	check.Equal(t, models.PlayerStatusAvailable, restored.Status)
	check.Nil(t, restored.SoldTo)
	check.Nil(t, restored.SoldPrice)

	b, err := f.store.GetBidder(ctx, f.buyer.ID)
	assert.NoError(t, err)
	check.Equal(t, int64(50000), b.RemainingPurse)

	history, err := f.bids.History(ctx, f.auction.ID)
	assert.NoError(t, err)
	check.Equal(t, 0, len(history))

	a, err := f.store.GetAuction(ctx, f.auction.ID)
	assert.NoError(t, err)
	assert.NotNil(t, a.CurrentPlayerID)
	check.Equal(t, f.player.ID, *a.CurrentPlayerID)

	// Rebidding starts clean at base price.
	_, err = f.bids.PlaceBid(ctx, f.auction.ID, f.player.ID, f.buyer.ID, 10000)
	assert.NoError(t, err)
}

func TestUndoSaleWithNothingSold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.sales.UndoSale(ctx, f.admin, f.auction.ID)
	check.True(t, apperrors.IsValidation(err))
}

func TestUndoSaleRevertsMostRecentBySequence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	second, err := f.store.CreatePlayer(ctx, &models.Player{
		AuctionID: f.auction.ID,
		Name:      "Winger Two",
		BasePrice: 5000,
		Status:    models.PlayerStatusAvailable,
	})
	assert.NoError(t, err)

	_, err = f.sales.MarkSold(ctx, f.admin, f.auction.ID, f.player.ID, f.buyer.ID, 10000)
	assert.NoError(t, err)
	_, err = f.sales.MarkSold(ctx, f.admin, f.auction.ID, second.ID, f.buyer.ID, 5000)
	assert.NoError(t, err)

	restored, err := f.sales.UndoSale(ctx, f.admin, f.auction.ID)
	assert.NoError(t, err)
	check.Equal(t, second.ID, restored.ID)

	// The first sale is untouched.
	p, err := f.store.GetPlayer(ctx, f.player.ID)
	assert.NoError(t, err)
	check.Equal(t, models.PlayerStatusSold, p.Status)

	// A second undo now reverts the remaining sale.
	restored, err = f.sales.UndoSale(ctx, f.admin, f.auction.ID)
	assert.NoError(t, err)
	check.Equal(t, f.player.ID, restored.ID)
}

func TestRegisterPlayerValidatesBasePrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.sales.RegisterPlayer(ctx, &models.Player{
		AuctionID: f.auction.ID,
		Name:      "Free Agent",
		BasePrice: 0,
	})
	check.True(t, apperrors.IsValidation(err))

	created, err := f.sales.RegisterPlayer(ctx, &models.Player{
		AuctionID: f.auction.ID,
		Name:      "Free Agent",
		BasePrice: 2000,
	})
	assert.NoError(t, err)
	check.Equal(t, models.PlayerStatusAvailable, created.Status)
}

func TestRetireProvisionsSyntheticBidder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.sales.RetirePlayer(ctx, f.admin, f.auction.ID, f.player.ID)
	assert.NoError(t, err)

	p, err := f.store.GetPlayer(ctx, f.player.ID)
	assert.NoError(t, err)
	check.Equal(t, models.PlayerStatusRetired, p.Status)

	slug := models.RetiredBidderSlug(f.player.ID)
	synthetic, err := f.store.GetBidderBySlug(ctx, f.auction.ID, slug)
	assert.NoError(t, err)
	assert.NotNil(t, synthetic)
	check.Equal(t, f.auction.Rules.TotalPurse, synthetic.PurseAmount)
	check.Equal(t, f.auction.Rules.TotalPurse, synthetic.RemainingPurse)

	// The synthetic bidder can place bids like any other.
	other, err := f.store.CreatePlayer(ctx, &models.Player{
		AuctionID: f.auction.ID,
		Name:      "Teammate",
		BasePrice: 3000,
		Status:    models.PlayerStatusAvailable,
	})
	assert.NoError(t, err)
	err = f.store.UpdateAuctionState(ctx, f.auction.ID, models.AuctionStatusLive, &other.ID)
	assert.NoError(t, err)
	_, err = f.bids.PlaceBid(ctx, f.auction.ID, other.ID, synthetic.ID, 3000)
	assert.NoError(t, err)
}

func TestUnretireRemovesSyntheticBidder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.sales.RetirePlayer(ctx, f.admin, f.auction.ID, f.player.ID)
	assert.NoError(t, err)
	err = f.sales.UnretirePlayer(ctx, f.admin, f.auction.ID, f.player.ID)
	assert.NoError(t, err)

	p, err := f.store.GetPlayer(ctx, f.player.ID)
	assert.NoError(t, err)
	check.Equal(t, models.PlayerStatusAvailable, p.Status)

	synthetic, err := f.store.GetBidderBySlug(ctx, f.auction.ID, models.RetiredBidderSlug(f.player.ID))
	assert.NoError(t, err)
	check.Nil(t, synthetic)
}

func TestRetireRejectsSoldPlayer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.sales.MarkSold(ctx, f.admin, f.auction.ID, f.player.ID, f.buyer.ID, 12000)
	assert.NoError(t, err)

	err = f.sales.RetirePlayer(ctx, f.admin, f.auction.ID, f.player.ID)
	check.True(t, apperrors.IsValidation(err))
}

type failingHandler struct{}

func (failingHandler) HandleRetirement(ctx context.Context, ev sale.RetirementEvent) error {
	return errors.New("provisioning unavailable")
}

func TestRetireRollsBackWhenHandlerFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	broken := sale.NewApp(f.store, timer.NewService(), broadcast.NewGateway(f.pub), keylock.New(), clockwork.NewFakeClock())
	broken.OnRetirement(failingHandler{})

	err := broken.RetirePlayer(ctx, f.admin, f.auction.ID, f.player.ID)
	assert.Error(t, err)

	p, err := f.store.GetPlayer(ctx, f.player.ID)
	assert.NoError(t, err)
	check.Equal(t, models.PlayerStatusAvailable, p.Status)
}
