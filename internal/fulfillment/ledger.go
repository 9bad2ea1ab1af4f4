package fulfillment

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/straye-as/purchasing-api/internal/domain"
)

// LedgerResult is the outcome of applying a shipment to a line item.
type LedgerResult struct {
	NewRemaining   decimal.Decimal
	FullyFulfilled bool
}

// Initialize back-fills OriginalQuantity on line items created before
// shipment tracking existed. shippedSoFar is the sum of events already
// recorded for the item (zero for untouched legacy rows). It reports whether
// the item was changed. An already set OriginalQuantity is never modified.
func Initialize(item *domain.LineItem, shippedSoFar decimal.Decimal) bool {
	if item.OriginalQuantity != nil {
		return false
	}
	original := item.RemainingQuantity.Add(shippedSoFar)
	item.OriginalQuantity = &original
	return true
}

// Apply computes the effect of shipping qty of the item. It does not mutate
// the item; persisting NewRemaining is the caller's job.
func Apply(item domain.LineItem, qty decimal.Decimal) (LedgerResult, error) {
	if !qty.IsPositive() {
		return LedgerResult{}, fmt.Errorf("%w: shipped quantity must be greater than zero, got %s", ErrInvalidQuantity, qty)
	}
	if qty.GreaterThan(item.RemainingQuantity) {
		return LedgerResult{}, fmt.Errorf("%w: shipped quantity %s exceeds remaining %s %s",
			ErrInvalidQuantity, qty, item.RemainingQuantity, item.Unit)
	}

	remaining := item.RemainingQuantity.Sub(qty)
	return LedgerResult{
		NewRemaining:   remaining,
		FullyFulfilled: !remaining.IsPositive(),
	}, nil
}

// ShippedQuantity is how much of the item has left the depot so far.
func ShippedQuantity(item domain.LineItem) decimal.Decimal {
	if item.OriginalQuantity == nil {
		return decimal.Zero
	}
	return item.OriginalQuantity.Sub(item.RemainingQuantity)
}
