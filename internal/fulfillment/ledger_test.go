package fulfillment_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/straye-as/purchasing-api/internal/domain"
	"github.com/straye-as/purchasing-api/internal/fulfillment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestInitialize_BackfillsOriginalFromRemaining(t *testing.T) {
	item := domain.LineItem{RemainingQuantity: dec("100"), Unit: "kg"}

	changed := fulfillment.Initialize(&item, decimal.Zero)

	assert.True(t, changed)
	require.NotNil(t, item.OriginalQuantity)
	assert.True(t, item.OriginalQuantity.Equal(dec("100")))
}

func TestInitialize_IncludesAlreadyShippedQuantity(t *testing.T) {
	item := domain.LineItem{RemainingQuantity: dec("60")}

	fulfillment.Initialize(&item, dec("40"))

	require.NotNil(t, item.OriginalQuantity)
	assert.True(t, item.OriginalQuantity.Equal(dec("100")))
}

func TestInitialize_NeverOverwritesOriginal(t *testing.T) {
	item := domain.LineItem{OriginalQuantity: decPtr("100"), RemainingQuantity: dec("10")}

	changed := fulfillment.Initialize(&item, dec("5"))

	assert.False(t, changed)
	assert.True(t, item.OriginalQuantity.Equal(dec("100")))
}

func TestApply(t *testing.T) {
	tests := []struct {
		name          string
		remaining     string
		shipped       string
		wantErr       bool
		wantRemaining string
		wantFulfilled bool
	}{
		{"partial shipment", "100", "40", false, "60", false},
		{"ships the rest", "60", "60", false, "0", true},
		{"fractional", "2.5", "0.75", false, "1.75", false},
		{"zero is rejected", "100", "0", true, "", false},
		{"negative is rejected", "100", "-5", true, "", false},
		{"more than remaining", "60", "70", true, "", false},
		{"nothing left", "0", "1", true, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := domain.LineItem{OriginalQuantity: decPtr("100"), RemainingQuantity: dec(tt.remaining), Unit: "adet"}

			res, err := fulfillment.Apply(item, dec(tt.shipped))

			if tt.wantErr {
				assert.ErrorIs(t, err, fulfillment.ErrInvalidQuantity)
				return
			}
			require.NoError(t, err)
			assert.True(t, res.NewRemaining.Equal(dec(tt.wantRemaining)), "remaining %s", res.NewRemaining)
			assert.Equal(t, tt.wantFulfilled, res.FullyFulfilled)
			// Apply is pure
			assert.True(t, item.RemainingQuantity.Equal(dec(tt.remaining)))
		})
	}
}

func TestApply_SequenceNeverGoesNegative(t *testing.T) {
	item := domain.LineItem{OriginalQuantity: decPtr("10"), RemainingQuantity: dec("10")}
	for _, q := range []string{"3", "3", "3", "1"} {
		res, err := fulfillment.Apply(item, dec(q))
		require.NoError(t, err)
		item.RemainingQuantity = res.NewRemaining
	}
	assert.True(t, item.RemainingQuantity.IsZero())
	assert.True(t, fulfillment.ShippedQuantity(item).Equal(dec("10")))

	_, err := fulfillment.Apply(item, dec("0.001"))
	assert.ErrorIs(t, err, fulfillment.ErrInvalidQuantity)
}
