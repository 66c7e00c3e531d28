// Package postgres implements every repository interface over a PostgreSQL
// database. Composite operations (MarkSold, MarkUnsold, UndoSale,
// ResetAuction) run inside a single transaction; ledger sequence assignment
// takes a row lock on the auction so concurrent writers cannot collide.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Store is a SQL-backed implementation of the app repositories.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS auctions (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	status TEXT NOT NULL,
	current_player_id UUID,
	rules JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS players (
	id UUID PRIMARY KEY,
	auction_id UUID NOT NULL REFERENCES auctions(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	base_price BIGINT NOT NULL,
	is_icon BOOLEAN NOT NULL DEFAULT FALSE,
	status TEXT NOT NULL,
	sold_to UUID,
	sold_price BIGINT,
	attributes JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_players_auction ON players(auction_id);

CREATE TABLE IF NOT EXISTS bidders (
	id UUID PRIMARY KEY,
	auction_id UUID NOT NULL REFERENCES auctions(id) ON DELETE CASCADE,
	user_id UUID,
	slug TEXT NOT NULL,
	team_name TEXT NOT NULL DEFAULT '',
	photo_url TEXT NOT NULL DEFAULT '',
	purse_amount BIGINT NOT NULL,
	remaining_purse BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (auction_id, slug)
);
CREATE INDEX IF NOT EXISTS idx_bidders_auction ON bidders(auction_id);

CREATE TABLE IF NOT EXISTS bid_events (
	auction_id UUID NOT NULL REFERENCES auctions(id) ON DELETE CASCADE,
	sequence BIGINT NOT NULL,
	type TEXT NOT NULL,
	player_id UUID NOT NULL,
	bidder_id UUID,
	amount BIGINT,
	ts TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (auction_id, sequence)
);
CREATE INDEX IF NOT EXISTS idx_bid_events_player ON bid_events(auction_id, player_id);
`

// InitSchema creates the tables if they do not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// withTx runs fn inside a transaction, rolling back on error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
