package domain_test

import (
	"testing"

	"github.com/straye-as/purchasing-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// RequestStatus Tests
// =============================================================================

func TestRequestStatus_IsValid(t *testing.T) {
	for _, s := range domain.AllRequestStatuses {
		assert.True(t, s.IsValid(), s)
	}
	assert.False(t, domain.RequestStatus("").IsValid())
	assert.False(t, domain.RequestStatus("partially_delivered").IsValid())
	assert.False(t, domain.RequestStatus("Shipped").IsValid())
}

func TestRequestStatus_IsTerminal(t *testing.T) {
	assert.True(t, domain.RequestStatusDelivered.IsTerminal())
	assert.True(t, domain.RequestStatusRejected.IsTerminal())
	assert.False(t, domain.RequestStatusShipped.IsTerminal())
	assert.False(t, domain.RequestStatusPartiallyShipped.IsTerminal())
}

func TestRequestStatus_LabelCoversEveryStatus(t *testing.T) {
	for _, locale := range []domain.Locale{domain.LocaleEnglish, domain.LocaleTurkish} {
		for _, s := range domain.AllRequestStatuses {
			label := s.Label(locale)
			assert.NotEmpty(t, label)
			assert.NotEqual(t, string(s), label, "missing %s label for %s", locale, s)
		}
	}
	assert.Equal(t, "Kısmen gönderildi", domain.RequestStatusPartiallyShipped.Label(domain.LocaleTurkish))
	assert.Equal(t, "Partially shipped", domain.RequestStatusPartiallyShipped.Label(domain.LocaleEnglish))
	assert.Equal(t, "mystery", domain.RequestStatus("mystery").Label(domain.LocaleEnglish))
}

func TestParseRequestStatus(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected domain.RequestStatus
		wantErr  bool
	}{
		{"canonical", "partially_shipped", domain.RequestStatusPartiallyShipped, false},
		{"canonical with spaces and case", "  SHIPPED ", domain.RequestStatusShipped, false},
		{"legacy alias", "partially_delivered", domain.RequestStatusPartiallyShipped, false},
		{"turkish label", "Depoda yok", domain.RequestStatusDepotUnavailable, false},
		{"english label", "Sent to purchasing", domain.RequestStatusSentToPurchasing, false},
		{"unknown", "lost_in_transit", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := domain.ParseRequestStatus(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseLocale(t *testing.T) {
	assert.Equal(t, domain.LocaleEnglish, domain.ParseLocale("en-US"))
	assert.Equal(t, domain.LocaleTurkish, domain.ParseLocale("tr"))
	assert.Equal(t, domain.LocaleTurkish, domain.ParseLocale(""))
}

// =============================================================================
// Role capability Tests
// =============================================================================

func TestActor_Can(t *testing.T) {
	tests := []struct {
		name     string
		roles    []domain.UserRoleType
		cap      domain.Capability
		expected bool
	}{
		{"site manager escalates", []domain.UserRoleType{domain.RoleSiteManager}, domain.CapabilityEscalate, true},
		{"site personnel cannot escalate", []domain.UserRoleType{domain.RoleSitePersonnel}, domain.CapabilityEscalate, false},
		{"warehouse records shipments", []domain.UserRoleType{domain.RoleWarehouse}, domain.CapabilityRecordShipment, true},
		{"purchasing cannot record shipments", []domain.UserRoleType{domain.RolePurchasing}, domain.CapabilityRecordShipment, false},
		{"admin can do anything", []domain.UserRoleType{domain.RoleAdmin}, domain.CapabilityMarkDepotUnavailable, true},
		{"any role grants", []domain.UserRoleType{domain.RoleSitePersonnel, domain.RoleWarehouse}, domain.CapabilityRecordShipment, true},
		{"no roles", nil, domain.CapabilityReadRequests, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actor := domain.Actor{ID: "u1", Roles: tt.roles}
			assert.Equal(t, tt.expected, actor.Can(tt.cap))
		})
	}
}
