package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/purchasing-api/internal/domain"
	"gorm.io/gorm"
)

type LineItemRepository struct {
	db *gorm.DB
}

func NewLineItemRepository(db *gorm.DB) *LineItemRepository {
	return &LineItemRepository{db: db}
}

func (r *LineItemRepository) WithTx(tx *gorm.DB) *LineItemRepository {
	return &LineItemRepository{db: tx}
}

func (r *LineItemRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.LineItem, error) {
	var item domain.LineItem
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *LineItemRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]domain.LineItem, error) {
	var items []domain.LineItem
	err := r.db.WithContext(ctx).
		Where("purchase_request_id = ?", requestID).
		Order("created_at ASC, id ASC").
		Find(&items).Error
	return items, err
}

// UpdateLedger persists the item's quantities if the stored version still
// equals expectedVersion, bumping the version. It reports false when another
// writer got there first.
func (r *LineItemRepository) UpdateLedger(ctx context.Context, item *domain.LineItem, expectedVersion int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.LineItem{}).
		Where("id = ? AND version = ?", item.ID, expectedVersion).
		Updates(map[string]interface{}{
			"original_quantity":  item.OriginalQuantity,
			"remaining_quantity": item.RemainingQuantity,
			"version":            expectedVersion + 1,
			"updated_at":         time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	item.Version = expectedVersion + 1
	return true, nil
}
