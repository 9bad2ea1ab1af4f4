package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// BeforeCreate assigns the primary key client side so inserts behave the
// same on postgres and sqlite.
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// PurchaseRequest is a site's request for materials. Its Status is derived from
// the line item ledger by the reconciler or moved by explicit manual transitions.
type PurchaseRequest struct {
	BaseModel
	RequestNumber   string        `gorm:"type:varchar(50);not null;uniqueIndex;column:request_number"`
	Title           string        `gorm:"type:varchar(200);not null"`
	Site            string        `gorm:"type:varchar(200);not null;index"`
	Notes           string        `gorm:"type:text"`
	Status          RequestStatus `gorm:"type:varchar(50);not null;index"`
	RequestedByID   string        `gorm:"type:varchar(100);not null;column:requested_by_id"`
	RequestedByName string        `gorm:"type:varchar(200);column:requested_by_name"`
	LineItems       []LineItem    `gorm:"foreignKey:PurchaseRequestID;constraint:OnDelete:CASCADE"`
}

// LineItem is one material line of a purchase request together with its
// quantity ledger. OriginalQuantity is nil on rows created before shipment
// tracking existed and is back-filled on the first shipment.
type LineItem struct {
	BaseModel
	PurchaseRequestID uuid.UUID        `gorm:"type:uuid;not null;index;column:purchase_request_id"`
	Material          string           `gorm:"type:varchar(300);not null"`
	OriginalQuantity  *decimal.Decimal `gorm:"type:numeric(18,4);column:original_quantity"`
	RemainingQuantity decimal.Decimal  `gorm:"type:numeric(18,4);not null;column:remaining_quantity"`
	Unit              string           `gorm:"type:varchar(30);not null"`
	// Version is bumped on every ledger write and guards concurrent shipments.
	Version int `gorm:"not null"`
}

// FullyFulfilled reports whether nothing remains to ship.
func (li *LineItem) FullyFulfilled() bool {
	return li.RemainingQuantity.LessThanOrEqual(decimal.Zero)
}

// ShipmentEvent is an immutable record of a quantity leaving the depot.
type ShipmentEvent struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey"`
	LineItemID        uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:idx_shipment_events_item_key,priority:1;column:line_item_id"`
	PurchaseRequestID uuid.UUID       `gorm:"type:uuid;not null;index;column:purchase_request_id"`
	ShippedQuantity   decimal.Decimal `gorm:"type:numeric(18,4);not null;column:shipped_quantity"`
	RemainingAfter    decimal.Decimal `gorm:"type:numeric(18,4);not null;column:remaining_after"`
	ShippedAt         time.Time       `gorm:"not null;index;column:shipped_at"`
	ShippedByID       string          `gorm:"type:varchar(100);not null;column:shipped_by_id"`
	ShippedByName     string          `gorm:"type:varchar(200);column:shipped_by_name"`
	IdempotencyKey    *string         `gorm:"type:varchar(100);uniqueIndex:idx_shipment_events_item_key,priority:2;column:idempotency_key"`
	CreatedAt         time.Time       `gorm:"not null"`
}

func (ShipmentEvent) TableName() string {
	return "shipment_events"
}

func (e *ShipmentEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// SupplierStatus represents the status of a supplier
type SupplierStatus string

const (
	SupplierStatusActive      SupplierStatus = "active"
	SupplierStatusInactive    SupplierStatus = "inactive"
	SupplierStatusBlacklisted SupplierStatus = "blacklisted"
)

// IsValid checks if the SupplierStatus is a valid enum value
func (s SupplierStatus) IsValid() bool {
	switch s {
	case SupplierStatusActive, SupplierStatusInactive, SupplierStatusBlacklisted:
		return true
	}
	return false
}

type Supplier struct {
	BaseModel
	Name      string         `gorm:"type:varchar(200);not null;index"`
	OrgNumber string         `gorm:"type:varchar(20);index;column:org_number"`
	Email     string         `gorm:"type:varchar(255)"`
	Phone     string         `gorm:"type:varchar(50)"`
	City      string         `gorm:"type:varchar(100)"`
	Status    SupplierStatus `gorm:"type:varchar(50);not null;index"`
}

// OrderStatus tracks a supplier order from placement to site delivery
type OrderStatus string

const (
	OrderStatusOrdered   OrderStatus = "ordered"
	OrderStatusDelivered OrderStatus = "delivered"
)

// Order is a purchase placed with a supplier for (part of) a request.
type Order struct {
	BaseModel
	PurchaseRequestID uuid.UUID       `gorm:"type:uuid;not null;index;column:purchase_request_id"`
	LineItemID        *uuid.UUID      `gorm:"type:uuid;index;column:line_item_id"`
	SupplierID        uuid.UUID       `gorm:"type:uuid;not null;index;column:supplier_id"`
	Supplier          *Supplier       `gorm:"foreignKey:SupplierID"`
	DeliveryDate      *time.Time      `gorm:"type:date;column:delivery_date"`
	Amount            decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Currency          string          `gorm:"type:varchar(3);not null"`
	Status            OrderStatus     `gorm:"type:varchar(50);not null;index"`
	DeliveredAt       *time.Time      `gorm:"column:delivered_at"`
	DeliveredByID     string          `gorm:"type:varchar(100);column:delivered_by_id"`
	DeliveredByName   string          `gorm:"type:varchar(200);column:delivered_by_name"`
	Invoices          []Invoice       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// Invoice is a supplier bill for an order. Several invoices may belong to one
// order and several may be billed together through an InvoiceGroup.
type Invoice struct {
	BaseModel
	OrderID        uuid.UUID       `gorm:"type:uuid;not null;index;column:order_id"`
	InvoiceNumber  string          `gorm:"type:varchar(100);column:invoice_number"`
	Amount         decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Currency       string          `gorm:"type:varchar(3);not null"`
	InvoiceGroupID *uuid.UUID      `gorm:"type:uuid;index;column:invoice_group_id"`
	Photos         []InvoicePhoto  `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
}

// PhotoURLs returns the URLs of the invoice's photos.
func (i *Invoice) PhotoURLs() []string {
	urls := make([]string, 0, len(i.Photos))
	for _, p := range i.Photos {
		urls = append(urls, p.URL)
	}
	return urls
}

type InvoicePhoto struct {
	BaseModel
	InvoiceID   uuid.UUID `gorm:"type:uuid;not null;index;column:invoice_id"`
	URL         string    `gorm:"type:varchar(1000);not null"`
	StoragePath string    `gorm:"type:varchar(500);not null;column:storage_path"`
	ContentType string    `gorm:"type:varchar(100);column:content_type"`
	Size        int64     `gorm:"not null;default:0"`
}

// InvoiceGroup bills several invoices together. All monetary fields share Currency.
type InvoiceGroup struct {
	BaseModel
	Currency      string          `gorm:"type:varchar(3);not null"`
	Subtotal      decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Discount      decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Tax           decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	GrandTotal    decimal.Decimal `gorm:"type:numeric(18,2);not null;column:grand_total"`
	Notes         string          `gorm:"type:text"`
	CreatedByID   string          `gorm:"type:varchar(100);column:created_by_id"`
	CreatedByName string          `gorm:"type:varchar(200);column:created_by_name"`
	Invoices      []Invoice       `gorm:"foreignKey:InvoiceGroupID"`
}

// StatusChangeSource tells whether a status change came from the reconciler
// or from an explicit user action.
type StatusChangeSource string

const (
	StatusChangeReconcile StatusChangeSource = "reconcile"
	StatusChangeManual    StatusChangeSource = "manual"
)

// StatusHistory records every status change of a purchase request.
type StatusHistory struct {
	ID                uuid.UUID          `gorm:"type:uuid;primaryKey"`
	PurchaseRequestID uuid.UUID          `gorm:"type:uuid;not null;index;column:purchase_request_id"`
	FromStatus        *RequestStatus     `gorm:"type:varchar(50);column:from_status"`
	ToStatus          RequestStatus      `gorm:"type:varchar(50);not null;column:to_status"`
	Source            StatusChangeSource `gorm:"type:varchar(20);not null"`
	ChangedByID       string             `gorm:"type:varchar(100);not null;column:changed_by_id"`
	ChangedByName     string             `gorm:"type:varchar(200);column:changed_by_name"`
	Notes             string             `gorm:"type:text"`
	ChangedAt         time.Time          `gorm:"not null;column:changed_at"`
	CreatedAt         time.Time          `gorm:"not null"`
}

func (StatusHistory) TableName() string {
	return "purchase_request_status_history"
}

func (h *StatusHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

// NumberSequence tracks the last issued request number per prefix and year.
type NumberSequence struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"`
	Prefix       string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_number_sequences_prefix_year,priority:1"`
	Year         int       `gorm:"not null;uniqueIndex:idx_number_sequences_prefix_year,priority:2"`
	LastSequence int       `gorm:"not null;column:last_sequence"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}
