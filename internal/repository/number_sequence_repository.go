package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/straye-as/purchasing-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NumberSequenceRepository hands out gap-free request numbers per prefix and year.
type NumberSequenceRepository struct {
	db *gorm.DB
}

func NewNumberSequenceRepository(db *gorm.DB) *NumberSequenceRepository {
	return &NumberSequenceRepository{db: db}
}

func (r *NumberSequenceRepository) WithTx(tx *gorm.DB) *NumberSequenceRepository {
	return &NumberSequenceRepository{db: tx}
}

// GetNextNumber atomically increments and returns the sequence for prefix/year,
// starting at 1. The row is locked with SELECT ... FOR UPDATE; when called on a
// transaction-bound repository the increment commits or rolls back with it.
func (r *NumberSequenceRepository) GetNextNumber(ctx context.Context, prefix string, year int) (int, error) {
	var next int

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var seq domain.NumberSequence
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("prefix = ? AND year = ?", prefix, year).
			First(&seq).Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			seq = domain.NumberSequence{Prefix: prefix, Year: year, LastSequence: 1}
			if err := tx.Create(&seq).Error; err != nil {
				return fmt.Errorf("failed to create number sequence: %w", err)
			}
			next = 1
		case err != nil:
			return fmt.Errorf("failed to get number sequence: %w", err)
		default:
			next = seq.LastSequence + 1
			if err := tx.Model(&seq).Update("last_sequence", next).Error; err != nil {
				return fmt.Errorf("failed to update number sequence: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return next, nil
}

// GetCurrentSequence returns the last issued number, or 0 if none was issued.
func (r *NumberSequenceRepository) GetCurrentSequence(ctx context.Context, prefix string, year int) (int, error) {
	var seq domain.NumberSequence
	err := r.db.WithContext(ctx).Where("prefix = ? AND year = ?", prefix, year).First(&seq).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get number sequence: %w", err)
	}
	return seq.LastSequence, nil
}
