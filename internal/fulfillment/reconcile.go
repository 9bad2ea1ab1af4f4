package fulfillment

import "github.com/straye-as/purchasing-api/internal/domain"

// Reconcile derives a request's status from its line item ledger.
//
//   - every item fully fulfilled: shipped
//   - some item fulfilled, or any shipment recorded: partially_shipped
//   - otherwise the current status is kept
//
// Terminal statuses and requests without items are returned unchanged.
// Reconcile is total and idempotent: feeding its result back in with the
// same items yields the same status.
func Reconcile(current domain.RequestStatus, items []domain.LineItem, hasShipments bool) domain.RequestStatus {
	if current.IsTerminal() || len(items) == 0 {
		return current
	}

	fulfilled := 0
	for i := range items {
		if items[i].FullyFulfilled() {
			fulfilled++
		}
	}

	switch {
	case fulfilled == len(items):
		return domain.RequestStatusShipped
	case fulfilled > 0 || hasShipments:
		return domain.RequestStatusPartiallyShipped
	default:
		return current
	}
}
