package service

import (
	"errors"

	"github.com/straye-as/purchasing-api/internal/fulfillment"
)

// Common service errors
var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when there's a conflict (e.g., duplicate)
	ErrConflict = errors.New("resource conflict")

	// ErrResourceBusy is returned when the per-item lock could not be obtained in time
	ErrResourceBusy = errors.New("resource is busy, try again")
)

// Entity specific errors. Not-found errors wrap ErrNotFound so handlers can
// map them with a single errors.Is check.
var (
	ErrPurchaseRequestNotFound = notFound("purchase request not found")
	ErrLineItemNotFound        = notFound("line item not found")
	ErrSupplierNotFound        = notFound("supplier not found")
	ErrOrderNotFound           = notFound("order not found")
	ErrInvoiceNotFound         = notFound("invoice not found")
	ErrInvoiceGroupNotFound    = notFound("invoice group not found")

	// ErrSupplierInactive is returned when ordering from an inactive or blacklisted supplier
	ErrSupplierInactive = errors.New("supplier is not active")

	// ErrDuplicateOrgNumber is returned when a supplier with the org number exists
	ErrDuplicateOrgNumber = errors.New("supplier with this organization number already exists")

	// ErrLineItemNotInRequest is returned when an order references another request's item
	ErrLineItemNotInRequest = errors.New("line item does not belong to the purchase request")

	// ErrInvoiceAlreadyGrouped is returned when an invoice already belongs to a group
	ErrInvoiceAlreadyGrouped = errors.New("invoice already belongs to an invoice group")

	// ErrOrdersNotDelivered is returned when completing a request with open orders
	ErrOrdersNotDelivered = errors.New("purchase request has orders that are not delivered")
)

// Re-exported so handlers and callers only need this package.
var (
	ErrForbidden              = fulfillment.ErrForbidden
	ErrInvalidQuantity        = fulfillment.ErrInvalidQuantity
	ErrInvalidTransition      = fulfillment.ErrInvalidTransition
	ErrConcurrentModification = fulfillment.ErrConcurrentModification
	ErrCurrencyMismatch       = fulfillment.ErrCurrencyMismatch
	ErrInvalidAmount          = fulfillment.ErrInvalidAmount
	ErrNegativeGrandTotal     = fulfillment.ErrNegativeGrandTotal
)

type notFoundError struct {
	msg string
}

func notFound(msg string) error {
	return &notFoundError{msg: msg}
}

func (e *notFoundError) Error() string { return e.msg }

func (e *notFoundError) Unwrap() error { return ErrNotFound }
