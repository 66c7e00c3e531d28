package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/hammerdown-io/hammerdown/internal/apperrors"
	"github.com/hammerdown-io/hammerdown/internal/models"
)

const eventColumns = `auction_id, sequence, type, player_id, bidder_id, amount, ts`

// AppendEvent assigns the next per-auction sequence under a row lock on the
// auction, so concurrent appends serialize instead of colliding on the
// primary key.
func (s *Store) AppendEvent(ctx context.Context, ev *models.BidEvent) (*models.BidEvent, error) {
	var out *models.BidEvent
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		appended, err := appendEventTx(ctx, tx, *ev)
		if err != nil {
			return err
		}
		out = appended
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func appendEventTx(ctx context.Context, tx *sql.Tx, ev models.BidEvent) (*models.BidEvent, error) {
	var id uuid.UUID
	if err := tx.QueryRowContext(ctx, `
		SELECT id FROM auctions WHERE id = $1 FOR UPDATE`, ev.AuctionID).Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NotFound("auction", ev.AuctionID.String())
		}
		return nil, fmt.Errorf("failed to lock auction for append: %w", err)
	}

	if err := tx.QueryRowContext(ctx, `
		INSERT INTO bid_events (auction_id, sequence, type, player_id, bidder_id, amount, ts)
		SELECT $1, COALESCE(MAX(sequence), 0) + 1, $2, $3, $4, $5, $6
		FROM bid_events WHERE auction_id = $1
		RETURNING sequence`,
		ev.AuctionID, ev.Type, ev.PlayerID, nullUUID(ev.BidderID), nullInt64(ev.Amount), ev.Timestamp,
	).Scan(&ev.Sequence); err != nil {
		return nil, fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return &ev, nil
}

func (s *Store) RemoveEvent(ctx context.Context, auctionID uuid.UUID, sequence int64) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM bid_events WHERE auction_id = $1 AND sequence = $2`, auctionID, sequence)
	if err != nil {
		return fmt.Errorf("failed to remove ledger entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound("ledger entry", auctionID.String())
	}
	return nil
}

func (s *Store) HighestBid(ctx context.Context, auctionID, playerID uuid.UUID) (*models.BidEvent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+eventColumns+` FROM bid_events
		WHERE auction_id = $1 AND player_id = $2 AND type = $3
		ORDER BY amount DESC, sequence DESC LIMIT 1`,
		auctionID, playerID, models.BidEventBid)

	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get highest bid: %w", err)
	}
	return ev, nil
}

func (s *Store) LatestBid(ctx context.Context, auctionID, playerID uuid.UUID) (*models.BidEvent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+eventColumns+` FROM bid_events
		WHERE auction_id = $1 AND player_id = $2 AND type = $3
		ORDER BY sequence DESC LIMIT 1`,
		auctionID, playerID, models.BidEventBid)

	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest bid: %w", err)
	}
	return ev, nil
}

func (s *Store) EventsForAuction(ctx context.Context, auctionID uuid.UUID) ([]models.BidEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+` FROM bid_events
		WHERE auction_id = $1 ORDER BY sequence DESC`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var out []models.BidEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		out = append(out, *ev)
	}
	return out, rows.Err()
}

func (s *Store) ClearEvents(ctx context.Context, auctionID uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM bid_events WHERE auction_id = $1`, auctionID); err != nil {
		return fmt.Errorf("failed to clear ledger: %w", err)
	}
	return nil
}

func (s *Store) LatestSoldEvent(ctx context.Context, auctionID uuid.UUID) (*models.BidEvent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+eventColumns+` FROM bid_events
		WHERE auction_id = $1 AND type = $2
		ORDER BY sequence DESC LIMIT 1`,
		auctionID, models.BidEventSold)

	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest sold entry: %w", err)
	}
	return ev, nil
}

func scanEvent(row rowScanner) (*models.BidEvent, error) {
	var (
		ev       models.BidEvent
		bidderID uuid.NullUUID
		amount   sql.NullInt64
	)
	if err := row.Scan(&ev.AuctionID, &ev.Sequence, &ev.Type, &ev.PlayerID, &bidderID, &amount, &ev.Timestamp); err != nil {
		return nil, err
	}
	if bidderID.Valid {
		ev.BidderID = &bidderID.UUID
	}
	if amount.Valid {
		ev.Amount = &amount.Int64
	}
	return &ev, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
