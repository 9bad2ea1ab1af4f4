package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Response DTOs. Timestamps are ISO 8601 strings, delivery dates are YYYY-MM-DD,
// decimals marshal as JSON strings.

type PurchaseRequestDTO struct {
	ID              uuid.UUID     `json:"id"`
	RequestNumber   string        `json:"requestNumber"`
	Title           string        `json:"title"`
	Site            string        `json:"site"`
	Notes           string        `json:"notes,omitempty"`
	Status          RequestStatus `json:"status"`
	StatusLabel     string        `json:"statusLabel"`
	RequestedByID   string        `json:"requestedById"`
	RequestedByName string        `json:"requestedByName,omitempty"`
	LineItems       []LineItemDTO `json:"lineItems,omitempty"`
	CreatedAt       string        `json:"createdAt"`
	UpdatedAt       string        `json:"updatedAt"`
}

type LineItemDTO struct {
	ID                uuid.UUID        `json:"id"`
	PurchaseRequestID uuid.UUID        `json:"purchaseRequestId"`
	Material          string           `json:"material"`
	OriginalQuantity  *decimal.Decimal `json:"originalQuantity,omitempty"`
	RemainingQuantity decimal.Decimal  `json:"remainingQuantity"`
	Unit              string           `json:"unit"`
	FullyFulfilled    bool             `json:"fullyFulfilled"`
	Version           int              `json:"version"`
}

type ShipmentEventDTO struct {
	ID                uuid.UUID       `json:"id"`
	LineItemID        uuid.UUID       `json:"lineItemId"`
	PurchaseRequestID uuid.UUID       `json:"purchaseRequestId"`
	ShippedQuantity   decimal.Decimal `json:"shippedQuantity"`
	RemainingAfter    decimal.Decimal `json:"remainingAfter"`
	ShippedAt         string          `json:"shippedAt"`
	ShippedByID       string          `json:"shippedById"`
	ShippedByName     string          `json:"shippedByName,omitempty"`
	IdempotencyKey    string          `json:"idempotencyKey,omitempty"`
}

// ShipmentResultDTO is returned after recording a shipment.
type ShipmentResultDTO struct {
	FullyFulfilled    bool             `json:"fullyFulfilled"`
	RemainingQuantity decimal.Decimal  `json:"remainingQuantity"`
	RequestStatus     RequestStatus    `json:"requestStatus"`
	StatusLabel       string           `json:"statusLabel"`
	Replayed          bool             `json:"replayed"`
	Event             ShipmentEventDTO `json:"event"`
}

type StatusHistoryDTO struct {
	ID            uuid.UUID          `json:"id"`
	FromStatus    *RequestStatus     `json:"fromStatus,omitempty"`
	ToStatus      RequestStatus      `json:"toStatus"`
	Source        StatusChangeSource `json:"source"`
	ChangedByID   string             `json:"changedById"`
	ChangedByName string             `json:"changedByName,omitempty"`
	Notes         string             `json:"notes,omitempty"`
	ChangedAt     string             `json:"changedAt"`
}

type StatusLabelDTO struct {
	Status RequestStatus `json:"status"`
	Label  string        `json:"label"`
}

type SupplierDTO struct {
	ID        uuid.UUID      `json:"id"`
	Name      string         `json:"name"`
	OrgNumber string         `json:"orgNumber,omitempty"`
	Email     string         `json:"email,omitempty"`
	Phone     string         `json:"phone,omitempty"`
	City      string         `json:"city,omitempty"`
	Status    SupplierStatus `json:"status"`
	CreatedAt string         `json:"createdAt"`
}

type OrderDTO struct {
	ID                uuid.UUID       `json:"id"`
	PurchaseRequestID uuid.UUID       `json:"purchaseRequestId"`
	LineItemID        *uuid.UUID      `json:"lineItemId,omitempty"`
	SupplierID        uuid.UUID       `json:"supplierId"`
	SupplierName      string          `json:"supplierName,omitempty"`
	DeliveryDate      string          `json:"deliveryDate,omitempty"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Status            OrderStatus     `json:"status"`
	DeliveredAt       string          `json:"deliveredAt,omitempty"`
	DeliveredByName   string          `json:"deliveredByName,omitempty"`
	CreatedAt         string          `json:"createdAt"`
}

type InvoicePhotoDTO struct {
	ID          uuid.UUID `json:"id"`
	URL         string    `json:"url"`
	ContentType string    `json:"contentType,omitempty"`
	Size        int64     `json:"size"`
}

type InvoiceDTO struct {
	ID             uuid.UUID         `json:"id"`
	OrderID        uuid.UUID         `json:"orderId"`
	InvoiceNumber  string            `json:"invoiceNumber,omitempty"`
	Amount         decimal.Decimal   `json:"amount"`
	Currency       string            `json:"currency"`
	InvoiceGroupID *uuid.UUID        `json:"invoiceGroupId,omitempty"`
	Photos         []InvoicePhotoDTO `json:"photos"`
	CreatedAt      string            `json:"createdAt"`
}

type InvoiceGroupDTO struct {
	ID         uuid.UUID       `json:"id"`
	Currency   string          `json:"currency"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Discount   decimal.Decimal `json:"discount"`
	Tax        decimal.Decimal `json:"tax"`
	GrandTotal decimal.Decimal `json:"grandTotal"`
	Notes      string          `json:"notes,omitempty"`
	InvoiceIDs []uuid.UUID     `json:"invoiceIds"`
	CreatedAt  string          `json:"createdAt"`
}

// InvoiceBatchDTO is one batch of invoices that were billed together.
type InvoiceBatchDTO struct {
	InvoiceGroupID *uuid.UUID  `json:"invoiceGroupId,omitempty"`
	InvoiceIDs     []uuid.UUID `json:"invoiceIds"`
	PhotoURLs      []string    `json:"photoUrls,omitempty"`
}

// CurrencyTotalsDTO holds per-currency sums.
type CurrencyTotalsDTO struct {
	Subtotals map[string]decimal.Decimal `json:"subtotals"`
}

type OrderInvoiceSummaryDTO struct {
	OrderID      uuid.UUID                  `json:"orderId"`
	InvoiceCount int                        `json:"invoiceCount"`
	Subtotals    map[string]decimal.Decimal `json:"subtotals"`
}

type TotalsPreviewDTO struct {
	Subtotals  map[string]decimal.Decimal `json:"subtotals"`
	Currency   string                     `json:"currency,omitempty"`
	GrandTotal *decimal.Decimal           `json:"grandTotal,omitempty"`
}

// AuthUserDTO describes the authenticated caller.
type AuthUserDTO struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Email        string         `json:"email,omitempty"`
	Roles        []UserRoleType `json:"roles"`
	Capabilities []Capability   `json:"capabilities"`
}

// AllowedTransitionsDTO lists the explicit transitions the caller may apply now.
type AllowedTransitionsDTO struct {
	Transitions []string `json:"transitions"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	TotalPages int         `json:"totalPages"`
}

// Request DTOs

type CreateLineItemRequest struct {
	Material string          `json:"material" validate:"required,max=300"`
	Quantity decimal.Decimal `json:"quantity"`
	Unit     string          `json:"unit" validate:"required,max=30"`
}

type CreatePurchaseRequestRequest struct {
	Title     string                  `json:"title" validate:"required,max=200"`
	Site      string                  `json:"site" validate:"required,max=200"`
	Notes     string                  `json:"notes" validate:"max=5000"`
	LineItems []CreateLineItemRequest `json:"lineItems" validate:"required,min=1,dive"`
}

type RecordShipmentRequest struct {
	Quantity decimal.Decimal `json:"quantity"`
	// IdempotencyKey may also be sent as the Idempotency-Key header.
	IdempotencyKey string `json:"idempotencyKey" validate:"max=100"`
}

type StatusTransitionRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

type CreateSupplierRequest struct {
	Name      string `json:"name" validate:"required,max=200"`
	OrgNumber string `json:"orgNumber" validate:"max=20"`
	Email     string `json:"email" validate:"omitempty,email,max=255"`
	Phone     string `json:"phone" validate:"max=50"`
	City      string `json:"city" validate:"max=100"`
}

type CreateOrderRequest struct {
	PurchaseRequestID uuid.UUID       `json:"purchaseRequestId" validate:"required"`
	LineItemID        *uuid.UUID      `json:"lineItemId"`
	SupplierID        uuid.UUID       `json:"supplierId" validate:"required"`
	DeliveryDate      string          `json:"deliveryDate" validate:"omitempty,datetime=2006-01-02"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency" validate:"required,len=3,alpha"`
}

type CreateInvoiceRequest struct {
	OrderID       uuid.UUID       `json:"orderId" validate:"required"`
	InvoiceNumber string          `json:"invoiceNumber" validate:"max=100"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency" validate:"required,len=3,alpha"`
}

type CreateInvoiceGroupRequest struct {
	InvoiceIDs []uuid.UUID     `json:"invoiceIds" validate:"required,min=1"`
	Currency   string          `json:"currency" validate:"required,len=3,alpha"`
	Discount   decimal.Decimal `json:"discount"`
	// DiscountCurrency and TaxCurrency default to Currency when empty.
	DiscountCurrency string          `json:"discountCurrency" validate:"omitempty,len=3,alpha"`
	Tax              decimal.Decimal `json:"tax"`
	TaxCurrency      string          `json:"taxCurrency" validate:"omitempty,len=3,alpha"`
	Notes            string          `json:"notes" validate:"max=2000"`
}

// AmountInput is a raw amount as typed by a user.
type AmountInput struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency" validate:"required,len=3,alpha"`
}

type TotalsPreviewRequest struct {
	Amounts  []AmountInput `json:"amounts" validate:"required,min=1,dive"`
	Currency string        `json:"currency" validate:"omitempty,len=3,alpha"`
	Discount string        `json:"discount"`
	Tax      string        `json:"tax"`
}
