package fulfillment

import (
	"fmt"
	"time"

	"github.com/straye-as/purchasing-api/internal/domain"
)

// Transition names an explicit, user initiated status change.
type Transition string

const (
	TransitionRequestOffers        Transition = "request_offers"
	TransitionApprove              Transition = "approve"
	TransitionMarkOrdered          Transition = "mark_ordered"
	TransitionMarkDepotUnavailable Transition = "mark_depot_unavailable"
	TransitionEscalate             Transition = "escalate_to_purchasing"
	TransitionReject               Transition = "reject"
	TransitionCompleteDelivery     Transition = "complete_delivery"
)

type transitionRule struct {
	from       []domain.RequestStatus
	to         domain.RequestStatus
	capability domain.Capability
}

var nonTerminal = []domain.RequestStatus{
	domain.RequestStatusPending,
	domain.RequestStatusAwaitingOffers,
	domain.RequestStatusSiteManagerApproved,
	domain.RequestStatusOrdered,
	domain.RequestStatusPartiallyShipped,
	domain.RequestStatusShipped,
	domain.RequestStatusDepotUnavailable,
	domain.RequestStatusSentToPurchasing,
}

var transitionRules = map[Transition]transitionRule{
	TransitionRequestOffers: {
		from:       []domain.RequestStatus{domain.RequestStatusPending},
		to:         domain.RequestStatusAwaitingOffers,
		capability: domain.CapabilityRequestOffers,
	},
	TransitionApprove: {
		from:       []domain.RequestStatus{domain.RequestStatusPending, domain.RequestStatusAwaitingOffers},
		to:         domain.RequestStatusSiteManagerApproved,
		capability: domain.CapabilityApprove,
	},
	TransitionMarkOrdered: {
		from: []domain.RequestStatus{
			domain.RequestStatusAwaitingOffers,
			domain.RequestStatusSiteManagerApproved,
			domain.RequestStatusSentToPurchasing,
			domain.RequestStatusDepotUnavailable,
		},
		to:         domain.RequestStatusOrdered,
		capability: domain.CapabilityManageOrders,
	},
	TransitionMarkDepotUnavailable: {
		from: []domain.RequestStatus{
			domain.RequestStatusPending,
			domain.RequestStatusAwaitingOffers,
			domain.RequestStatusSiteManagerApproved,
			domain.RequestStatusPartiallyShipped,
		},
		to:         domain.RequestStatusDepotUnavailable,
		capability: domain.CapabilityMarkDepotUnavailable,
	},
	TransitionEscalate: {
		from:       []domain.RequestStatus{domain.RequestStatusPartiallyShipped, domain.RequestStatusDepotUnavailable},
		to:         domain.RequestStatusSentToPurchasing,
		capability: domain.CapabilityEscalate,
	},
	TransitionReject: {
		from:       nonTerminal,
		to:         domain.RequestStatusRejected,
		capability: domain.CapabilityReject,
	},
	TransitionCompleteDelivery: {
		from:       []domain.RequestStatus{domain.RequestStatusShipped, domain.RequestStatusOrdered},
		to:         domain.RequestStatusDelivered,
		capability: domain.CapabilityCompleteDelivery,
	},
}

// IsKnown reports whether t names a supported transition.
func (t Transition) IsKnown() bool {
	_, ok := transitionRules[t]
	return ok
}

// Guard checks a manual transition and returns the target status. The
// actor's capability is checked before the current status, so an actor
// without the capability always gets ErrForbidden.
func Guard(t Transition, current domain.RequestStatus, actor domain.Actor) (domain.RequestStatus, error) {
	rule, ok := transitionRules[t]
	if !ok {
		return current, fmt.Errorf("%w: unknown transition %q", ErrInvalidTransition, t)
	}
	if !actor.Can(rule.capability) {
		return current, fmt.Errorf("%w: %s requires %s", ErrForbidden, t, rule.capability)
	}
	for _, allowed := range rule.from {
		if current == allowed {
			return rule.to, nil
		}
	}
	return current, fmt.Errorf("%w: cannot %s from %s", ErrInvalidTransition, t, current)
}

// AllowedTransitions lists the transitions the actor may apply from current.
func AllowedTransitions(current domain.RequestStatus, actor domain.Actor) []Transition {
	order := []Transition{
		TransitionRequestOffers, TransitionApprove, TransitionMarkOrdered,
		TransitionMarkDepotUnavailable, TransitionEscalate, TransitionReject, TransitionCompleteDelivery,
	}
	var out []Transition
	for _, t := range order {
		if _, err := Guard(t, current, actor); err == nil {
			out = append(out, t)
		}
	}
	return out
}

// CanConfirmDelivery checks that an order may be marked delivered at now.
// The order must still be ordered, carry a delivery date, and that date
// (a calendar day) must not lie after today's date in loc.
func CanConfirmDelivery(order domain.Order, now time.Time, loc *time.Location) error {
	if order.Status != domain.OrderStatusOrdered {
		return fmt.Errorf("%w: order is %s", ErrInvalidTransition, order.Status)
	}
	if order.DeliveryDate == nil {
		return fmt.Errorf("%w: order has no delivery date", ErrInvalidTransition)
	}
	if loc == nil {
		loc = time.UTC
	}

	ty, tm, td := now.In(loc).Date()
	today := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	dy, dm, dd := order.DeliveryDate.UTC().Date()
	due := time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC)

	if today.Before(due) {
		return fmt.Errorf("%w: delivery date %s has not been reached", ErrInvalidTransition, due.Format("2006-01-02"))
	}
	return nil
}
