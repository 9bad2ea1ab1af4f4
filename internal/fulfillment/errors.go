package fulfillment

import "errors"

// Errors returned by the ledger, the reconciler guards and the aggregator.
// Callers match them with errors.Is; messages carry the details.
var (
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrForbidden              = errors.New("role does not permit this action")
	ErrCurrencyMismatch       = errors.New("currency mismatch")
	ErrConcurrentModification = errors.New("line item was modified concurrently")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrNegativeGrandTotal     = errors.New("grand total is negative")
)
