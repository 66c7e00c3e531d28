package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/hammerdown-io/hammerdown/internal/apperrors"
	"github.com/hammerdown-io/hammerdown/internal/models"
)

func (s *Store) CreateAuction(ctx context.Context, a *models.Auction) (*models.Auction, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	rules, err := json.Marshal(a.Rules)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal auction rules: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO auctions (id, name, status, current_player_id, rules)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, name, status, current_player_id, rules, created_at, updated_at`,
		a.ID, a.Name, a.Status, nullUUID(a.CurrentPlayerID), rules)

	created, err := scanAuction(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create auction: %w", err)
	}
	return created, nil
}

func (s *Store) GetAuction(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, status, current_player_id, rules, created_at, updated_at
		FROM auctions WHERE id = $1`, id)

	a, err := scanAuction(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("auction", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	return a, nil
}

func (s *Store) UpdateAuctionState(ctx context.Context, id uuid.UUID, status models.AuctionStatus, currentPlayerID *uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE auctions SET status = $2, current_player_id = $3, updated_at = now()
		WHERE id = $1`,
		id, status, nullUUID(currentPlayerID))
	if err != nil {
		return fmt.Errorf("failed to update auction state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound("auction", id.String())
	}
	return nil
}

// DeleteAuction removes the auction; players, bidders and ledger entries go
// with it via ON DELETE CASCADE.
func (s *Store) DeleteAuction(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM auctions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete auction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound("auction", id.String())
	}
	return nil
}

// ResetAuction returns the auction to DRAFT in one transaction: players back
// to AVAILABLE, synthetic retired-player bidders removed, purses restored and
// the ledger cleared.
func (s *Store) ResetAuction(ctx context.Context, auctionID uuid.UUID) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE auctions SET status = $2, current_player_id = NULL, updated_at = now()
			WHERE id = $1`,
			auctionID, models.AuctionStatusDraft)
		if err != nil {
			return fmt.Errorf("failed to reset auction row: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if n == 0 {
			return apperrors.NotFound("auction", auctionID.String())
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE players SET status = $2, sold_to = NULL, sold_price = NULL, updated_at = now()
			WHERE auction_id = $1`,
			auctionID, models.PlayerStatusAvailable); err != nil {
			return fmt.Errorf("failed to reset players: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM bidders WHERE auction_id = $1 AND slug LIKE 'retired\_%'`,
			auctionID); err != nil {
			return fmt.Errorf("failed to remove synthetic bidders: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE bidders SET remaining_purse = purse_amount, updated_at = now()
			WHERE auction_id = $1`,
			auctionID); err != nil {
			return fmt.Errorf("failed to restore purses: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM bid_events WHERE auction_id = $1`, auctionID); err != nil {
			return fmt.Errorf("failed to clear ledger: %w", err)
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuction(row rowScanner) (*models.Auction, error) {
	var (
		a       models.Auction
		current uuid.NullUUID
		rules   []byte
	)
	if err := row.Scan(&a.ID, &a.Name, &a.Status, &current, &rules, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rules, &a.Rules); err != nil {
		return nil, fmt.Errorf("failed to unmarshal auction rules: %w", err)
	}
	if current.Valid {
		a.CurrentPlayerID = &current.UUID
	}
	return &a, nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
