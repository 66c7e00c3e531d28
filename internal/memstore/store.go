// Package memstore is an in-memory implementation of every repository
// interface the apps consume, used in tests and local development. Composite
// operations hold the store lock for their whole span, matching the
// transactional guarantees of the Postgres implementation.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hammerdown-io/hammerdown/internal/apperrors"
	"github.com/hammerdown-io/hammerdown/internal/models"
	"github.com/hammerdown-io/hammerdown/internal/purse"
	"github.com/hammerdown-io/hammerdown/internal/sale"
)

// Store holds all auction state in process memory.
type Store struct {
	mu       sync.RWMutex
	auctions map[uuid.UUID]*models.Auction
	players  map[uuid.UUID]*models.Player
	bidders  map[uuid.UUID]*models.Bidder
	// events are kept in ascending sequence order per auction.
	events map[uuid.UUID][]models.BidEvent
	seq    map[uuid.UUID]int64
}

func New() *Store {
	return &Store{
		auctions: make(map[uuid.UUID]*models.Auction),
		players:  make(map[uuid.UUID]*models.Player),
		bidders:  make(map[uuid.UUID]*models.Bidder),
		events:   make(map[uuid.UUID][]models.BidEvent),
		seq:      make(map[uuid.UUID]int64),
	}
}

// --- auctions ---

func (s *Store) CreateAuction(ctx context.Context, a *models.Auction) (*models.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	cp := *a
	s.auctions[a.ID] = &cp
	out := cp
	return &out, nil
}

func (s *Store) GetAuction(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.auctions[id]
	if !ok {
		return nil, apperrors.NotFound("auction", id.String())
	}
	out := *a
	return &out, nil
}

func (s *Store) UpdateAuctionState(ctx context.Context, id uuid.UUID, status models.AuctionStatus, currentPlayerID *uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[id]
	if !ok {
		return apperrors.NotFound("auction", id.String())
	}
	a.Status = status
	a.CurrentPlayerID = currentPlayerID
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) DeleteAuction(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.auctions[id]; !ok {
		return apperrors.NotFound("auction", id.String())
	}
	delete(s.auctions, id)
	delete(s.events, id)
	delete(s.seq, id)
	for pid, p := range s.players {
		if p.AuctionID == id {
			delete(s.players, pid)
		}
	}
	for bid, b := range s.bidders {
		if b.AuctionID == id {
			delete(s.bidders, bid)
		}
	}
	return nil
}

func (s *Store) ResetAuction(ctx context.Context, auctionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[auctionID]
	if !ok {
		return apperrors.NotFound("auction", auctionID.String())
	}

	now := time.Now().UTC()
	for _, p := range s.players {
		if p.AuctionID != auctionID {
			continue
		}
		p.Status = models.PlayerStatusAvailable
		p.SoldTo = nil
		p.SoldPrice = nil
		p.UpdatedAt = now
	}
	for bid, b := range s.bidders {
		if b.AuctionID != auctionID {
			continue
		}
		// Synthetic bidders go with their players returning to AVAILABLE.
		if models.IsRetiredBidderSlug(b.Slug) {
			delete(s.bidders, bid)
			continue
		}
		purse.Reset(b)
		b.UpdatedAt = now
	}
	delete(s.events, auctionID)
	delete(s.seq, auctionID)

	a.Status = models.AuctionStatusDraft
	a.CurrentPlayerID = nil
	a.UpdatedAt = now
	return nil
}

// --- players ---

func (s *Store) CreatePlayer(ctx context.Context, p *models.Player) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	cp := *p
	s.players[p.ID] = &cp
	out := cp
	return &out, nil
}

func (s *Store) GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.players[id]
	if !ok {
		return nil, apperrors.NotFound("player", id.String())
	}
	out := *p
	return &out, nil
}

func (s *Store) UpdatePlayerStatus(ctx context.Context, playerID uuid.UUID, status models.PlayerStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[playerID]
	if !ok {
		return apperrors.NotFound("player", playerID.String())
	}
	p.Status = status
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) ListPlayers(ctx context.Context, auctionID uuid.UUID) ([]models.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Player
	for _, p := range s.players {
		if p.AuctionID == auctionID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// --- bidders ---

func (s *Store) CreateBidder(ctx context.Context, b *models.Bidder) (*models.Bidder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.bidders {
		if existing.AuctionID == b.AuctionID && existing.Slug == b.Slug {
			return nil, apperrors.Validationf("bidder slug %q already taken in this auction", b.Slug)
		}
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	cp := *b
	s.bidders[b.ID] = &cp
	out := cp
	return &out, nil
}

func (s *Store) GetBidder(ctx context.Context, id uuid.UUID) (*models.Bidder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bidders[id]
	if !ok {
		return nil, apperrors.NotFound("bidder", id.String())
	}
	out := *b
	return &out, nil
}

func (s *Store) GetBidderBySlug(ctx context.Context, auctionID uuid.UUID, slug string) (*models.Bidder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, b := range s.bidders {
		if b.AuctionID == auctionID && b.Slug == slug {
			out := *b
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) DeleteBidder(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bidders[id]; !ok {
		return apperrors.NotFound("bidder", id.String())
	}
	delete(s.bidders, id)
	return nil
}

func (s *Store) ListBidders(ctx context.Context, auctionID uuid.UUID) ([]models.Bidder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Bidder
	for _, b := range s.bidders {
		if b.AuctionID == auctionID {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// --- ledger ---

func (s *Store) AppendEvent(ctx context.Context, ev *models.BidEvent) (*models.BidEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(*ev), nil
}

func (s *Store) appendLocked(ev models.BidEvent) *models.BidEvent {
	s.seq[ev.AuctionID]++
	ev.Sequence = s.seq[ev.AuctionID]
	s.events[ev.AuctionID] = append(s.events[ev.AuctionID], ev)
	out := ev
	return &out
}

func (s *Store) RemoveEvent(ctx context.Context, auctionID uuid.UUID, sequence int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	evs := s.events[auctionID]
	for i, ev := range evs {
		if ev.Sequence == sequence {
			s.events[auctionID] = append(evs[:i:i], evs[i+1:]...)
			return nil
		}
	}
	return apperrors.NotFound("ledger entry", auctionID.String())
}

func (s *Store) HighestBid(ctx context.Context, auctionID, playerID uuid.UUID) (*models.BidEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.highestBidLocked(auctionID, playerID), nil
}

func (s *Store) highestBidLocked(auctionID, playerID uuid.UUID) *models.BidEvent {
	var best *models.BidEvent
	for _, ev := range s.events[auctionID] {
		if !ev.IsBid() || ev.PlayerID != playerID || ev.Amount == nil {
			continue
		}
		if best == nil || *ev.Amount > *best.Amount {
			cp := ev
			best = &cp
		}
	}
	return best
}

func (s *Store) LatestBid(ctx context.Context, auctionID, playerID uuid.UUID) (*models.BidEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	evs := s.events[auctionID]
	for i := len(evs) - 1; i >= 0; i-- {
		if evs[i].IsBid() && evs[i].PlayerID == playerID {
			out := evs[i]
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) EventsForAuction(ctx context.Context, auctionID uuid.UUID) ([]models.BidEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	evs := s.events[auctionID]
	out := make([]models.BidEvent, 0, len(evs))
	for i := len(evs) - 1; i >= 0; i-- {
		out = append(out, evs[i])
	}
	return out, nil
}

func (s *Store) ClearEvents(ctx context.Context, auctionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.events, auctionID)
	delete(s.seq, auctionID)
	return nil
}

func (s *Store) LatestSoldEvent(ctx context.Context, auctionID uuid.UUID) (*models.BidEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	evs := s.events[auctionID]
	for i := len(evs) - 1; i >= 0; i-- {
		if evs[i].Type == models.BidEventSold {
			out := evs[i]
			return &out, nil
		}
	}
	return nil, nil
}

// --- composite sale transactions ---

func (s *Store) MarkSold(ctx context.Context, params sale.MarkSoldParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[params.PlayerID]
	if !ok {
		return apperrors.NotFound("player", params.PlayerID.String())
	}
	b, ok := s.bidders[params.BidderID]
	if !ok {
		return apperrors.NotFound("bidder", params.BidderID.String())
	}
	if err := purse.Debit(b, params.Amount); err != nil {
		return err
	}

	now := time.Now().UTC()
	amount := params.Amount
	bidderID := params.BidderID
	p.Status = models.PlayerStatusSold
	p.SoldTo = &bidderID
	p.SoldPrice = &amount
	p.UpdatedAt = now
	b.UpdatedAt = now
	s.appendLocked(params.Event)
	return nil
}

func (s *Store) MarkUnsold(ctx context.Context, params sale.MarkUnsoldParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[params.PlayerID]
	if !ok {
		return apperrors.NotFound("player", params.PlayerID.String())
	}
	p.Status = models.PlayerStatusUnsold
	p.UpdatedAt = time.Now().UTC()
	s.appendLocked(params.Event)
	return nil
}

func (s *Store) UndoSale(ctx context.Context, params sale.UndoSaleParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[params.AuctionID]
	if !ok {
		return apperrors.NotFound("auction", params.AuctionID.String())
	}
	p, ok := s.players[params.PlayerID]
	if !ok {
		return apperrors.NotFound("player", params.PlayerID.String())
	}
	b, ok := s.bidders[params.BidderID]
	if !ok {
		return apperrors.NotFound("bidder", params.BidderID.String())
	}
	if err := purse.Refund(b, params.RefundAmount); err != nil {
		return err
	}

	now := time.Now().UTC()
	p.Status = models.PlayerStatusAvailable
	p.SoldTo = nil
	p.SoldPrice = nil
	p.UpdatedAt = now
	b.UpdatedAt = now

	kept := s.events[params.AuctionID][:0]
	for _, ev := range s.events[params.AuctionID] {
		if ev.PlayerID != params.PlayerID {
			kept = append(kept, ev)
		}
	}
	s.events[params.AuctionID] = kept

	playerID := params.PlayerID
	a.CurrentPlayerID = &playerID
	a.UpdatedAt = now
	return nil
}
