package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/purchasing-api/internal/domain"
	"gorm.io/gorm"
)

// SupplierFilters defines filter options for supplier listing
type SupplierFilters struct {
	Search string
	City   string
	Status *domain.SupplierStatus
}

// supplierSortableFields is the whitelist of sortable supplier columns
var supplierSortableFields = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"name":      "name",
	"city":      "city",
	"status":    "status",
}

// SupplierRepository handles supplier data access operations
type SupplierRepository struct {
	db *gorm.DB
}

func NewSupplierRepository(db *gorm.DB) *SupplierRepository {
	return &SupplierRepository{db: db}
}

func (r *SupplierRepository) WithTx(tx *gorm.DB) *SupplierRepository {
	return &SupplierRepository{db: tx}
}

func (r *SupplierRepository) Create(ctx context.Context, supplier *domain.Supplier) error {
	return r.db.WithContext(ctx).Create(supplier).Error
}

func (r *SupplierRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Supplier, error) {
	var supplier domain.Supplier
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&supplier).Error; err != nil {
		return nil, err
	}
	return &supplier, nil
}

// GetByOrgNumber returns nil, nil when no supplier has the number.
func (r *SupplierRepository) GetByOrgNumber(ctx context.Context, orgNumber string) (*domain.Supplier, error) {
	var supplier domain.Supplier
	err := r.db.WithContext(ctx).Where("org_number = ?", orgNumber).First(&supplier).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &supplier, nil
}

func (r *SupplierRepository) List(ctx context.Context, page, pageSize int, filters *SupplierFilters, sort SortConfig) ([]domain.Supplier, int64, error) {
	var suppliers []domain.Supplier
	var total int64

	page, pageSize = NormalizePage(page, pageSize)
	query := r.db.WithContext(ctx).Model(&domain.Supplier{})

	if filters != nil {
		if filters.Search != "" {
			pattern := "%" + strings.ToLower(filters.Search) + "%"
			query = query.Where("LOWER(name) LIKE ? OR LOWER(org_number) LIKE ?", pattern, pattern)
		}
		if filters.City != "" {
			query = query.Where("LOWER(city) = LOWER(?)", filters.City)
		}
		if filters.Status != nil {
			query = query.Where("status = ?", *filters.Status)
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order(BuildOrderClause(sort, supplierSortableFields, "name")).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&suppliers).Error

	return suppliers, total, err
}
