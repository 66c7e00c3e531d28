// Package purse implements bidder purse bookkeeping. It mutates bidders in
// memory only; persisting the result is the caller's job, inside whatever
// transaction also writes the paired ledger or status change.
package purse

import (
	"github.com/hammerdown-io/hammerdown/internal/apperrors"
	"github.com/hammerdown-io/hammerdown/internal/models"
)

// Check verifies the purse invariant 0 <= remaining <= total. A violation
// means persisted state is already broken, so it surfaces as a
// ConsistencyError rather than a validation failure.
func Check(b *models.Bidder) error {
	if b.RemainingPurse < 0 || b.RemainingPurse > b.PurseAmount {
		return apperrors.Consistencyf(
			"bidder %s purse out of bounds: remaining %d of total %d",
			b.ID, b.RemainingPurse, b.PurseAmount,
		)
	}
	return nil
}

// CanAfford reports whether the bidder can commit amount without breaking
// the purse bound.
func CanAfford(b *models.Bidder, amount int64) bool {
	return amount > 0 && b.RemainingPurse >= amount
}

// Debit removes amount from the bidder's remaining purse. It rejects any
// debit that would drive the purse negative and leaves the bidder untouched
// on failure.
func Debit(b *models.Bidder, amount int64) error {
	if err := Check(b); err != nil {
		return err
	}
	if amount <= 0 {
		return apperrors.Validationf("debit amount must be positive, got %d", amount)
	}
	if b.RemainingPurse < amount {
		return apperrors.Validationf(
			"insufficient purse: %d required, %d remaining", amount, b.RemainingPurse,
		)
	}
	b.RemainingPurse -= amount
	return nil
}

// Refund returns amount to the bidder's remaining purse, e.g. when a sale is
// undone. A refund may not push the purse above its original total.
func Refund(b *models.Bidder, amount int64) error {
	if err := Check(b); err != nil {
		return err
	}
	if amount <= 0 {
		return apperrors.Validationf("refund amount must be positive, got %d", amount)
	}
	if b.RemainingPurse+amount > b.PurseAmount {
		return apperrors.Consistencyf(
			"refund of %d would exceed purse total %d for bidder %s",
			amount, b.PurseAmount, b.ID,
		)
	}
	b.RemainingPurse += amount
	return nil
}

// Reset restores the full purse, used when an auction is reset to DRAFT.
func Reset(b *models.Bidder) {
	b.RemainingPurse = b.PurseAmount
}
