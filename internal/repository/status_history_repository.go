package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/straye-as/purchasing-api/internal/domain"
	"gorm.io/gorm"
)

type StatusHistoryRepository struct {
	db *gorm.DB
}

func NewStatusHistoryRepository(db *gorm.DB) *StatusHistoryRepository {
	return &StatusHistoryRepository{db: db}
}

func (r *StatusHistoryRepository) WithTx(tx *gorm.DB) *StatusHistoryRepository {
	return &StatusHistoryRepository{db: tx}
}

// Create records a status transition
func (r *StatusHistoryRepository) Create(ctx context.Context, history *domain.StatusHistory) error {
	return r.db.WithContext(ctx).Create(history).Error
}

// ListByRequest returns the request's history, newest first
func (r *StatusHistoryRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]domain.StatusHistory, error) {
	var history []domain.StatusHistory
	err := r.db.WithContext(ctx).
		Where("purchase_request_id = ?", requestID).
		Order("changed_at DESC, created_at DESC").
		Find(&history).Error
	return history, err
}

// Latest returns the most recent change of the request, or nil when the
// request has no history.
func (r *StatusHistoryRepository) Latest(ctx context.Context, requestID uuid.UUID) (*domain.StatusHistory, error) {
	var history domain.StatusHistory
	err := r.db.WithContext(ctx).
		Where("purchase_request_id = ?", requestID).
		Order("changed_at DESC, created_at DESC").
		First(&history).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &history, nil
}
