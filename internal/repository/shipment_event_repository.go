package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/purchasing-api/internal/domain"
	"gorm.io/gorm"
)

// ShipmentEventRepository is append-only: events are never updated or deleted.
type ShipmentEventRepository struct {
	db *gorm.DB
}

func NewShipmentEventRepository(db *gorm.DB) *ShipmentEventRepository {
	return &ShipmentEventRepository{db: db}
}

func (r *ShipmentEventRepository) WithTx(tx *gorm.DB) *ShipmentEventRepository {
	return &ShipmentEventRepository{db: tx}
}

func (r *ShipmentEventRepository) Append(ctx context.Context, event *domain.ShipmentEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// FindByIdempotencyKey returns nil, nil when no event carries the key.
func (r *ShipmentEventRepository) FindByIdempotencyKey(ctx context.Context, lineItemID uuid.UUID, key string) (*domain.ShipmentEvent, error) {
	var event domain.ShipmentEvent
	err := r.db.WithContext(ctx).
		Where("line_item_id = ? AND idempotency_key = ?", lineItemID, key).
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func (r *ShipmentEventRepository) ListByLineItem(ctx context.Context, lineItemID uuid.UUID) ([]domain.ShipmentEvent, error) {
	var events []domain.ShipmentEvent
	err := r.db.WithContext(ctx).
		Where("line_item_id = ?", lineItemID).
		Order("shipped_at ASC, created_at ASC").
		Find(&events).Error
	return events, err
}

func (r *ShipmentEventRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]domain.ShipmentEvent, error) {
	var events []domain.ShipmentEvent
	err := r.db.WithContext(ctx).
		Where("purchase_request_id = ?", requestID).
		Order("shipped_at ASC, created_at ASC").
		Find(&events).Error
	return events, err
}

func (r *ShipmentEventRepository) CountByRequest(ctx context.Context, requestID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.ShipmentEvent{}).
		Where("purchase_request_id = ?", requestID).
		Count(&count).Error
	return count, err
}

// ShippedTotal sums the shipped quantity of all events of a line item.
func (r *ShipmentEventRepository) ShippedTotal(ctx context.Context, lineItemID uuid.UUID) (decimal.Decimal, error) {
	events, err := r.ListByLineItem(ctx, lineItemID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, e := range events {
		total = total.Add(e.ShippedQuantity)
	}
	return total, nil
}
