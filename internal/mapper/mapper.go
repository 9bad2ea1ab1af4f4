package mapper

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/purchasing-api/internal/domain"
	"github.com/straye-as/purchasing-api/internal/fulfillment"
)

const (
	timestampFormat = "2006-01-02T15:04:05Z"
	dateFormat      = "2006-01-02"
)

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampFormat)
}

// ToPurchaseRequestDTO converts PurchaseRequest to PurchaseRequestDTO.
// The status label is rendered in the given locale.
func ToPurchaseRequestDTO(req *domain.PurchaseRequest, locale domain.Locale) domain.PurchaseRequestDTO {
	dto := domain.PurchaseRequestDTO{
		ID:              req.ID,
		RequestNumber:   req.RequestNumber,
		Title:           req.Title,
		Site:            req.Site,
		Notes:           req.Notes,
		Status:          req.Status,
		StatusLabel:     req.Status.Label(locale),
		RequestedByID:   req.RequestedByID,
		RequestedByName: req.RequestedByName,
		CreatedAt:       formatTimestamp(req.CreatedAt),
		UpdatedAt:       formatTimestamp(req.UpdatedAt),
	}
	if len(req.LineItems) > 0 {
		dto.LineItems = make([]domain.LineItemDTO, len(req.LineItems))
		for i := range req.LineItems {
			dto.LineItems[i] = ToLineItemDTO(&req.LineItems[i])
		}
	}
	return dto
}

// ToLineItemDTO converts LineItem to LineItemDTO
func ToLineItemDTO(item *domain.LineItem) domain.LineItemDTO {
	return domain.LineItemDTO{
		ID:                item.ID,
		PurchaseRequestID: item.PurchaseRequestID,
		Material:          item.Material,
		OriginalQuantity:  item.OriginalQuantity,
		RemainingQuantity: item.RemainingQuantity,
		Unit:              item.Unit,
		FullyFulfilled:    item.FullyFulfilled(),
		Version:           item.Version,
	}
}

// ToShipmentEventDTO converts ShipmentEvent to ShipmentEventDTO
func ToShipmentEventDTO(event *domain.ShipmentEvent) domain.ShipmentEventDTO {
	dto := domain.ShipmentEventDTO{
		ID:                event.ID,
		LineItemID:        event.LineItemID,
		PurchaseRequestID: event.PurchaseRequestID,
		ShippedQuantity:   event.ShippedQuantity,
		RemainingAfter:    event.RemainingAfter,
		ShippedAt:         formatTimestamp(event.ShippedAt),
		ShippedByID:       event.ShippedByID,
		ShippedByName:     event.ShippedByName,
	}
	if event.IdempotencyKey != nil {
		dto.IdempotencyKey = *event.IdempotencyKey
	}
	return dto
}

func ToStatusHistoryDTO(h *domain.StatusHistory) domain.StatusHistoryDTO {
	return domain.StatusHistoryDTO{
		ID:            h.ID,
		FromStatus:    h.FromStatus,
		ToStatus:      h.ToStatus,
		Source:        h.Source,
		ChangedByID:   h.ChangedByID,
		ChangedByName: h.ChangedByName,
		Notes:         h.Notes,
		ChangedAt:     formatTimestamp(h.ChangedAt),
	}
}

// ToStatusLabels lists every status with its label in locale.
func ToStatusLabels(locale domain.Locale) []domain.StatusLabelDTO {
	labels := make([]domain.StatusLabelDTO, 0, len(domain.AllRequestStatuses))
	for _, s := range domain.AllRequestStatuses {
		labels = append(labels, domain.StatusLabelDTO{Status: s, Label: s.Label(locale)})
	}
	return labels
}

// ToSupplierDTO converts Supplier to SupplierDTO
func ToSupplierDTO(supplier *domain.Supplier) domain.SupplierDTO {
	return domain.SupplierDTO{
		ID:        supplier.ID,
		Name:      supplier.Name,
		OrgNumber: supplier.OrgNumber,
		Email:     supplier.Email,
		Phone:     supplier.Phone,
		City:      supplier.City,
		Status:    supplier.Status,
		CreatedAt: formatTimestamp(supplier.CreatedAt),
	}
}

// ToOrderDTO converts Order to OrderDTO. The delivery date is a calendar day
// and is rendered without a time component.
func ToOrderDTO(order *domain.Order) domain.OrderDTO {
	dto := domain.OrderDTO{
		ID:                order.ID,
		PurchaseRequestID: order.PurchaseRequestID,
		LineItemID:        order.LineItemID,
		SupplierID:        order.SupplierID,
		Amount:            order.Amount,
		Currency:          order.Currency,
		Status:            order.Status,
		DeliveredByName:   order.DeliveredByName,
		CreatedAt:         formatTimestamp(order.CreatedAt),
	}
	if order.Supplier != nil {
		dto.SupplierName = order.Supplier.Name
	}
	if order.DeliveryDate != nil {
		dto.DeliveryDate = order.DeliveryDate.UTC().Format(dateFormat)
	}
	if order.DeliveredAt != nil {
		dto.DeliveredAt = formatTimestamp(*order.DeliveredAt)
	}
	return dto
}

// ToInvoiceDTO converts Invoice to InvoiceDTO
func ToInvoiceDTO(invoice *domain.Invoice) domain.InvoiceDTO {
	photos := make([]domain.InvoicePhotoDTO, len(invoice.Photos))
	for i, p := range invoice.Photos {
		photos[i] = domain.InvoicePhotoDTO{
			ID:          p.ID,
			URL:         p.URL,
			ContentType: p.ContentType,
			Size:        p.Size,
		}
	}
	return domain.InvoiceDTO{
		ID:             invoice.ID,
		OrderID:        invoice.OrderID,
		InvoiceNumber:  invoice.InvoiceNumber,
		Amount:         invoice.Amount,
		Currency:       invoice.Currency,
		InvoiceGroupID: invoice.InvoiceGroupID,
		Photos:         photos,
		CreatedAt:      formatTimestamp(invoice.CreatedAt),
	}
}

// ToInvoiceGroupDTO converts InvoiceGroup to InvoiceGroupDTO
func ToInvoiceGroupDTO(group *domain.InvoiceGroup) domain.InvoiceGroupDTO {
	ids := make([]uuid.UUID, len(group.Invoices))
	for i, inv := range group.Invoices {
		ids[i] = inv.ID
	}
	return domain.InvoiceGroupDTO{
		ID:         group.ID,
		Currency:   group.Currency,
		Subtotal:   group.Subtotal,
		Discount:   group.Discount,
		Tax:        group.Tax,
		GrandTotal: group.GrandTotal,
		Notes:      group.Notes,
		InvoiceIDs: ids,
		CreatedAt:  formatTimestamp(group.CreatedAt),
	}
}

// ToInvoiceRefs builds the grouping view of invoices.
func ToInvoiceRefs(invoices []domain.Invoice) []fulfillment.InvoiceRef {
	refs := make([]fulfillment.InvoiceRef, len(invoices))
	for i := range invoices {
		refs[i] = fulfillment.InvoiceRef{
			InvoiceID: invoices[i].ID,
			GroupID:   invoices[i].InvoiceGroupID,
			PhotoURLs: invoices[i].PhotoURLs(),
		}
	}
	return refs
}

func ToInvoiceBatchDTO(batch fulfillment.InvoiceBatch) domain.InvoiceBatchDTO {
	return domain.InvoiceBatchDTO{
		InvoiceGroupID: batch.GroupID,
		InvoiceIDs:     batch.InvoiceIDs,
		PhotoURLs:      batch.PhotoURLs,
	}
}

// ToMonetaryAmounts keys stored invoice amounts by invoice id for the aggregator.
func ToMonetaryAmounts(invoices []domain.Invoice) map[uuid.UUID]fulfillment.MonetaryAmount {
	amounts := make(map[uuid.UUID]fulfillment.MonetaryAmount, len(invoices))
	for _, inv := range invoices {
		amounts[inv.ID] = fulfillment.MonetaryAmount{
			Amount:   inv.Amount.String(),
			Currency: inv.Currency,
		}
	}
	return amounts
}

// FormatError creates a formatted error message
func FormatError(entity, operation string, err error) error {
	return fmt.Errorf("failed to %s %s: %w", operation, entity, err)
}
