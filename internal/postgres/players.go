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

const playerColumns = `id, auction_id, name, base_price, is_icon, status, sold_to, sold_price, attributes, created_at, updated_at`

func (s *Store) CreatePlayer(ctx context.Context, p *models.Player) (*models.Player, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	attrs, err := marshalAttributes(p.Attributes)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO players (id, auction_id, name, base_price, is_icon, status, attributes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+playerColumns,
		p.ID, p.AuctionID, p.Name, p.BasePrice, p.IsIcon, p.Status, attrs)

	created, err := scanPlayer(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create player: %w", err)
	}
	return created, nil
}

func (s *Store) GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+playerColumns+` FROM players WHERE id = $1`, id)

	p, err := scanPlayer(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("player", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return p, nil
}

func (s *Store) UpdatePlayerStatus(ctx context.Context, playerID uuid.UUID, status models.PlayerStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE players SET status = $2, updated_at = now() WHERE id = $1`,
		playerID, status)
	if err != nil {
		return fmt.Errorf("failed to update player status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound("player", playerID.String())
	}
	return nil
}

func (s *Store) ListPlayers(ctx context.Context, auctionID uuid.UUID) ([]models.Player, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+playerColumns+` FROM players
		WHERE auction_id = $1 ORDER BY created_at, id`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()

	var out []models.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanPlayer(row rowScanner) (*models.Player, error) {
	var (
		p         models.Player
		soldTo    uuid.NullUUID
		soldPrice sql.NullInt64
		attrs     []byte
	)
	if err := row.Scan(&p.ID, &p.AuctionID, &p.Name, &p.BasePrice, &p.IsIcon, &p.Status,
		&soldTo, &soldPrice, &attrs, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if soldTo.Valid {
		p.SoldTo = &soldTo.UUID
	}
	if soldPrice.Valid {
		p.SoldPrice = &soldPrice.Int64
	}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &p.Attributes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal player attributes: %w", err)
		}
	}
	return &p, nil
}

func marshalAttributes(attrs map[string]string) ([]byte, error) {
	if attrs == nil {
		return nil, nil
	}
	b, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal player attributes: %w", err)
	}
	return b, nil
}
