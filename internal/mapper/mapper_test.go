package mapper_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/purchasing-api/internal/domain"
	"github.com/straye-as/purchasing-api/internal/mapper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToPurchaseRequestDTO(t *testing.T) {
	now := time.Date(2026, 3, 10, 7, 30, 0, 0, time.UTC)
	original := decimal.NewFromInt(10)
	req := &domain.PurchaseRequest{
		BaseModel:     domain.BaseModel{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		RequestNumber: "PR-2026-0001",
		Title:         "Temel betonu",
		Site:          "Kadikoy",
		Status:        domain.RequestStatusPartiallyShipped,
		RequestedByID: "sm-1",
		LineItems: []domain.LineItem{
			{Material: "Beton C30", OriginalQuantity: &original, RemainingQuantity: decimal.NewFromInt(4), Unit: "m3", Version: 2},
			{Material: "Demir", RemainingQuantity: decimal.Zero, Unit: "ton"},
		},
	}

	dto := mapper.ToPurchaseRequestDTO(req, domain.LocaleEnglish)
	assert.Equal(t, req.ID, dto.ID)
	assert.Equal(t, "PR-2026-0001", dto.RequestNumber)
	assert.Equal(t, "Partially shipped", dto.StatusLabel)
	assert.Equal(t, "2026-03-10T07:30:00Z", dto.CreatedAt)
	require.Len(t, dto.LineItems, 2)
	assert.False(t, dto.LineItems[0].FullyFulfilled)
	assert.Equal(t, 2, dto.LineItems[0].Version)
	assert.True(t, dto.LineItems[1].FullyFulfilled)
	assert.Nil(t, dto.LineItems[1].OriginalQuantity)

	assert.Equal(t, "Kısmen gönderildi", mapper.ToPurchaseRequestDTO(req, domain.LocaleTurkish).StatusLabel)
}

func TestToOrderDTO_DeliveryDate(t *testing.T) {
	date := time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)
	order := &domain.Order{
		BaseModel:    domain.BaseModel{ID: uuid.New()},
		Supplier:     &domain.Supplier{Name: "Akcansa"},
		DeliveryDate: &date,
		Amount:       decimal.RequireFromString("1500.50"),
		Currency:     "TRY",
		Status:       domain.OrderStatusOrdered,
	}

	dto := mapper.ToOrderDTO(order)
	assert.Equal(t, "2026-03-12", dto.DeliveryDate)
	assert.Equal(t, "Akcansa", dto.SupplierName)
	assert.Empty(t, dto.DeliveredAt)

	order.DeliveryDate = nil
	assert.Empty(t, mapper.ToOrderDTO(order).DeliveryDate)
}

func TestToShipmentEventDTO_IdempotencyKey(t *testing.T) {
	key := "scan-001"
	event := &domain.ShipmentEvent{
		ID:              uuid.New(),
		ShippedQuantity: decimal.NewFromInt(4),
		RemainingAfter:  decimal.NewFromInt(6),
		IdempotencyKey:  &key,
	}
	assert.Equal(t, "scan-001", mapper.ToShipmentEventDTO(event).IdempotencyKey)

	event.IdempotencyKey = nil
	assert.Empty(t, mapper.ToShipmentEventDTO(event).IdempotencyKey)
}

func TestToInvoiceRefsAndAmounts(t *testing.T) {
	groupID := uuid.New()
	invoices := []domain.Invoice{
		{
			BaseModel:      domain.BaseModel{ID: uuid.New()},
			Amount:         decimal.RequireFromString("100.25"),
			Currency:       "TRY",
			InvoiceGroupID: &groupID,
			Photos:         []domain.InvoicePhoto{{URL: "https://files/a.jpg"}},
		},
		{
			BaseModel: domain.BaseModel{ID: uuid.New()},
			Amount:    decimal.NewFromInt(40),
			Currency:  "EUR",
		},
	}

	refs := mapper.ToInvoiceRefs(invoices)
	require.Len(t, refs, 2)
	assert.Equal(t, &groupID, refs[0].GroupID)
	assert.Equal(t, []string{"https://files/a.jpg"}, refs[0].PhotoURLs)
	assert.Empty(t, refs[1].PhotoURLs)

	amounts := mapper.ToMonetaryAmounts(invoices)
	assert.Equal(t, "100.25", amounts[invoices[0].ID].Amount)
	assert.Equal(t, "EUR", amounts[invoices[1].ID].Currency)
}

func TestToStatusLabels(t *testing.T) {
	labels := mapper.ToStatusLabels(domain.LocaleEnglish)
	require.Len(t, labels, len(domain.AllRequestStatuses))
	for _, l := range labels {
		assert.NotEmpty(t, l.Label, l.Status)
	}
}
