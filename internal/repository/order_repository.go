package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/purchasing-api/internal/domain"
	"gorm.io/gorm"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) WithTx(tx *gorm.DB) *OrderRepository {
	return &OrderRepository{db: tx}
}

func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	return r.db.WithContext(ctx).Omit("Supplier", "Invoices").Create(order).Error
}

func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	var order domain.Order
	err := r.db.WithContext(ctx).
		Preload("Supplier").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *OrderRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]domain.Order, error) {
	var orders []domain.Order
	err := r.db.WithContext(ctx).
		Preload("Supplier").
		Where("purchase_request_id = ?", requestID).
		Order("created_at ASC").
		Find(&orders).Error
	return orders, err
}

// CountUndelivered counts the request's orders not yet delivered.
func (r *OrderRepository) CountUndelivered(ctx context.Context, requestID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("purchase_request_id = ? AND status <> ?", requestID, domain.OrderStatusDelivered).
		Count(&count).Error
	return count, err
}

// MarkDelivered moves an ordered order to delivered. It reports false when
// the order was no longer in the ordered state.
func (r *OrderRepository) MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time, byID, byName string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ? AND status = ?", id, domain.OrderStatusOrdered).
		Updates(map[string]interface{}{
			"status":            domain.OrderStatusDelivered,
			"delivered_at":      at,
			"delivered_by_id":   byID,
			"delivered_by_name": byName,
			"updated_at":        time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
