package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hammerdown-io/hammerdown/internal/apperrors"
	"github.com/hammerdown-io/hammerdown/internal/models"
	"github.com/hammerdown-io/hammerdown/internal/sale"
)

// MarkSold debits the purse, flips the player to SOLD and appends the Sold
// ledger entry in one transaction. The purse bound is enforced by the
// guarded UPDATE, so a concurrent debit cannot overdraw.
func (s *Store) MarkSold(ctx context.Context, params sale.MarkSoldParams) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE bidders SET remaining_purse = remaining_purse - $2, updated_at = now()
			WHERE id = $1 AND remaining_purse >= $2`,
			params.BidderID, params.Amount)
		if err != nil {
			return fmt.Errorf("failed to debit purse: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if n == 0 {
			return apperrors.Validationf("insufficient purse for amount %d", params.Amount)
		}

		res, err = tx.ExecContext(ctx, `
			UPDATE players SET status = $2, sold_to = $3, sold_price = $4, updated_at = now()
			WHERE id = $1 AND status = $5`,
			params.PlayerID, models.PlayerStatusSold, params.BidderID, params.Amount, models.PlayerStatusAvailable)
		if err != nil {
			return fmt.Errorf("failed to mark player sold: %w", err)
		}
		n, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if n == 0 {
			return apperrors.Validationf("player %s is not AVAILABLE", params.PlayerID)
		}

		_, err = appendEventTx(ctx, tx, params.Event)
		return err
	})
}

// MarkUnsold flips the player to UNSOLD and appends the Unsold entry. No
// purse is touched.
func (s *Store) MarkUnsold(ctx context.Context, params sale.MarkUnsoldParams) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE players SET status = $2, updated_at = now()
			WHERE id = $1 AND status = $3`,
			params.PlayerID, models.PlayerStatusUnsold, models.PlayerStatusAvailable)
		if err != nil {
			return fmt.Errorf("failed to mark player unsold: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if n == 0 {
			return apperrors.Validationf("player %s is not AVAILABLE", params.PlayerID)
		}

		_, err = appendEventTx(ctx, tx, params.Event)
		return err
	})
}

// UndoSale reverts a sale in one transaction: refund, player back to
// AVAILABLE, every ledger entry for the player removed and the player put
// back under the hammer. The refund is bounded by the purse total.
func (s *Store) UndoSale(ctx context.Context, params sale.UndoSaleParams) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE bidders SET remaining_purse = remaining_purse + $2, updated_at = now()
			WHERE id = $1 AND remaining_purse + $2 <= purse_amount`,
			params.BidderID, params.RefundAmount)
		if err != nil {
			return fmt.Errorf("failed to refund purse: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if n == 0 {
			return apperrors.Consistencyf("refund of %d to bidder %s would exceed the purse total", params.RefundAmount, params.BidderID)
		}

		res, err = tx.ExecContext(ctx, `
			UPDATE players SET status = $2, sold_to = NULL, sold_price = NULL, updated_at = now()
			WHERE id = $1 AND status = $3`,
			params.PlayerID, models.PlayerStatusAvailable, models.PlayerStatusSold)
		if err != nil {
			return fmt.Errorf("failed to restore player: %w", err)
		}
		n, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if n == 0 {
			return apperrors.Consistencyf("player %s is not SOLD", params.PlayerID)
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM bid_events WHERE auction_id = $1 AND player_id = $2`,
			params.AuctionID, params.PlayerID); err != nil {
			return fmt.Errorf("failed to remove ledger entries: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE auctions SET current_player_id = $2, updated_at = now() WHERE id = $1`,
			params.AuctionID, params.PlayerID); err != nil {
			return fmt.Errorf("failed to set current player: %w", err)
		}
		return nil
	})
}
