package fulfillment_test

import (
	"testing"
	"time"

	"github.com/straye-as/purchasing-api/internal/domain"
	"github.com/straye-as/purchasing-api/internal/fulfillment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func actor(roles ...domain.UserRoleType) domain.Actor {
	return domain.Actor{ID: "user-1", Name: "Test User", Roles: roles}
}

func TestGuard_Escalate(t *testing.T) {
	tests := []struct {
		name    string
		current domain.RequestStatus
		actor   domain.Actor
		wantErr error
	}{
		{"site manager from partially shipped", domain.RequestStatusPartiallyShipped, actor(domain.RoleSiteManager), nil},
		{"site manager from depot unavailable", domain.RequestStatusDepotUnavailable, actor(domain.RoleSiteManager), nil},
		{"admin may escalate", domain.RequestStatusDepotUnavailable, actor(domain.RoleAdmin), nil},
		{"site personnel is forbidden", domain.RequestStatusPartiallyShipped, actor(domain.RoleSitePersonnel), fulfillment.ErrForbidden},
		{"forbidden wins over bad status", domain.RequestStatusPending, actor(domain.RoleSitePersonnel), fulfillment.ErrForbidden},
		{"pending cannot escalate", domain.RequestStatusPending, actor(domain.RoleSiteManager), fulfillment.ErrInvalidTransition},
		{"shipped cannot escalate", domain.RequestStatusShipped, actor(domain.RoleSiteManager), fulfillment.ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			to, err := fulfillment.Guard(fulfillment.TransitionEscalate, tt.current, tt.actor)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.current, to)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, domain.RequestStatusSentToPurchasing, to)
		})
	}
}

func TestGuard_MarkDepotUnavailable(t *testing.T) {
	warehouse := actor(domain.RoleWarehouse)

	for _, from := range []domain.RequestStatus{
		domain.RequestStatusPending,
		domain.RequestStatusAwaitingOffers,
		domain.RequestStatusSiteManagerApproved,
		domain.RequestStatusPartiallyShipped,
	} {
		to, err := fulfillment.Guard(fulfillment.TransitionMarkDepotUnavailable, from, warehouse)
		require.NoError(t, err, from)
		assert.Equal(t, domain.RequestStatusDepotUnavailable, to)
	}

	for _, from := range []domain.RequestStatus{
		domain.RequestStatusShipped,
		domain.RequestStatusDelivered,
		domain.RequestStatusRejected,
		domain.RequestStatusDepotUnavailable,
		domain.RequestStatusOrdered,
	} {
		_, err := fulfillment.Guard(fulfillment.TransitionMarkDepotUnavailable, from, warehouse)
		assert.ErrorIs(t, err, fulfillment.ErrInvalidTransition, from)
	}
}

func TestGuard_RejectOnlyFromNonTerminal(t *testing.T) {
	manager := actor(domain.RoleSiteManager)
	_, err := fulfillment.Guard(fulfillment.TransitionReject, domain.RequestStatusPending, manager)
	assert.NoError(t, err)
	_, err = fulfillment.Guard(fulfillment.TransitionReject, domain.RequestStatusDelivered, manager)
	assert.ErrorIs(t, err, fulfillment.ErrInvalidTransition)
}

func TestGuard_UnknownTransition(t *testing.T) {
	_, err := fulfillment.Guard("teleport", domain.RequestStatusPending, actor(domain.RoleAdmin))
	assert.ErrorIs(t, err, fulfillment.ErrInvalidTransition)
}

func TestAllowedTransitions(t *testing.T) {
	got := fulfillment.AllowedTransitions(domain.RequestStatusPartiallyShipped, actor(domain.RoleSiteManager))
	assert.ElementsMatch(t, []fulfillment.Transition{fulfillment.TransitionEscalate, fulfillment.TransitionReject}, got)

	assert.Empty(t, fulfillment.AllowedTransitions(domain.RequestStatusDelivered, actor(domain.RoleSiteManager)))
}

func TestCanConfirmDelivery(t *testing.T) {
	delivery := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	istanbul := time.FixedZone("TRT", 3*60*60)

	tests := []struct {
		name    string
		order   domain.Order
		now     time.Time
		loc     *time.Location
		wantErr bool
	}{
		{"on delivery date", domain.Order{Status: domain.OrderStatusOrdered, DeliveryDate: &delivery}, delivery.Add(9 * time.Hour), time.UTC, false},
		{"after delivery date", domain.Order{Status: domain.OrderStatusOrdered, DeliveryDate: &delivery}, delivery.AddDate(0, 0, 3), time.UTC, false},
		{"day before", domain.Order{Status: domain.OrderStatusOrdered, DeliveryDate: &delivery}, delivery.Add(-time.Hour), time.UTC, true},
		// 22:30 UTC on the 9th is already the 10th in Istanbul (UTC+3)
		{"local calendar day counts", domain.Order{Status: domain.OrderStatusOrdered, DeliveryDate: &delivery}, delivery.Add(-90 * time.Minute), istanbul, false},
		{"no delivery date", domain.Order{Status: domain.OrderStatusOrdered}, delivery, time.UTC, true},
		{"already delivered", domain.Order{Status: domain.OrderStatusDelivered, DeliveryDate: &delivery}, delivery, time.UTC, true},
		{"nil location means utc", domain.Order{Status: domain.OrderStatusOrdered, DeliveryDate: &delivery}, delivery, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fulfillment.CanConfirmDelivery(tt.order, tt.now, tt.loc)
			if tt.wantErr {
				assert.ErrorIs(t, err, fulfillment.ErrInvalidTransition)
				return
			}
			assert.NoError(t, err)
		})
	}
}
