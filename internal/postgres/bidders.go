package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hammerdown-io/hammerdown/internal/apperrors"
	"github.com/hammerdown-io/hammerdown/internal/models"
)

const bidderColumns = `id, auction_id, user_id, slug, team_name, photo_url, purse_amount, remaining_purse, created_at, updated_at`

func (s *Store) CreateBidder(ctx context.Context, b *models.Bidder) (*models.Bidder, error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO bidders (id, auction_id, user_id, slug, team_name, photo_url, purse_amount, remaining_purse)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+bidderColumns,
		b.ID, b.AuctionID, nullUUID(b.UserID), b.Slug, b.TeamName, b.PhotoURL, b.PurseAmount, b.RemainingPurse)

	created, err := scanBidder(row)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return nil, apperrors.Validationf("bidder slug %q already taken in this auction", b.Slug)
		}
		return nil, fmt.Errorf("failed to create bidder: %w", err)
	}
	return created, nil
}

func (s *Store) GetBidder(ctx context.Context, id uuid.UUID) (*models.Bidder, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+bidderColumns+` FROM bidders WHERE id = $1`, id)

	b, err := scanBidder(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("bidder", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bidder: %w", err)
	}
	return b, nil
}

func (s *Store) GetBidderBySlug(ctx context.Context, auctionID uuid.UUID, slug string) (*models.Bidder, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+bidderColumns+` FROM bidders WHERE auction_id = $1 AND slug = $2`, auctionID, slug)

	b, err := scanBidder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bidder by slug: %w", err)
	}
	return b, nil
}

func (s *Store) DeleteBidder(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bidders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete bidder: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound("bidder", id.String())
	}
	return nil
}

func (s *Store) ListBidders(ctx context.Context, auctionID uuid.UUID) ([]models.Bidder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bidderColumns+` FROM bidders
		WHERE auction_id = $1 ORDER BY created_at, id`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bidders: %w", err)
	}
	defer rows.Close()

	var out []models.Bidder
	for rows.Next() {
		b, err := scanBidder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bidder: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func scanBidder(row rowScanner) (*models.Bidder, error) {
	var (
		b      models.Bidder
		userID uuid.NullUUID
	)
	if err := row.Scan(&b.ID, &b.AuctionID, &userID, &b.Slug, &b.TeamName, &b.PhotoURL,
		&b.PurseAmount, &b.RemainingPurse, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	if userID.Valid {
		b.UserID = &userID.UUID
	}
	return &b, nil
}
