package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/purchasing-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PurchaseRequestFilters defines filter options for request listing
type PurchaseRequestFilters struct {
	Status        *domain.RequestStatus
	Site          string
	Search        string
	RequestedByID string
}

var purchaseRequestSortableFields = map[string]string{
	"createdAt":     "created_at",
	"updatedAt":     "updated_at",
	"requestNumber": "request_number",
	"status":        "status",
	"site":          "site",
}

type PurchaseRequestRepository struct {
	db *gorm.DB
}

func NewPurchaseRequestRepository(db *gorm.DB) *PurchaseRequestRepository {
	return &PurchaseRequestRepository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *PurchaseRequestRepository) WithTx(tx *gorm.DB) *PurchaseRequestRepository {
	return &PurchaseRequestRepository{db: tx}
}

// Create inserts the request together with its line items.
func (r *PurchaseRequestRepository) Create(ctx context.Context, req *domain.PurchaseRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *PurchaseRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.PurchaseRequest, error) {
	var req domain.PurchaseRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// GetWithLineItems loads the request and its items in creation order.
func (r *PurchaseRequestRepository) GetWithLineItems(ctx context.Context, id uuid.UUID) (*domain.PurchaseRequest, error) {
	var req domain.PurchaseRequest
	err := r.db.WithContext(ctx).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Where("id = ?", id).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// GetForUpdate loads the request row with a write lock. Must run inside a transaction.
func (r *PurchaseRequestRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.PurchaseRequest, error) {
	var req domain.PurchaseRequest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *PurchaseRequestRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.RequestStatus) error {
	return r.db.WithContext(ctx).
		Model(&domain.PurchaseRequest{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *PurchaseRequestRepository) List(ctx context.Context, page, pageSize int, filters *PurchaseRequestFilters, sort SortConfig) ([]domain.PurchaseRequest, int64, error) {
	var requests []domain.PurchaseRequest
	var total int64

	page, pageSize = NormalizePage(page, pageSize)
	query := r.db.WithContext(ctx).Model(&domain.PurchaseRequest{})

	if filters != nil {
		if filters.Status != nil {
			query = query.Where("status = ?", *filters.Status)
		}
		if filters.Site != "" {
			query = query.Where("LOWER(site) = LOWER(?)", filters.Site)
		}
		if filters.RequestedByID != "" {
			query = query.Where("requested_by_id = ?", filters.RequestedByID)
		}
		if filters.Search != "" {
			pattern := "%" + strings.ToLower(filters.Search) + "%"
			query = query.Where("LOWER(title) LIKE ? OR LOWER(request_number) LIKE ?", pattern, pattern)
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Preload("LineItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Order(BuildOrderClause(sort, purchaseRequestSortableFields, "created_at")).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&requests).Error

	return requests, total, err
}

// ListOpenIDs returns up to limit ids of requests the reconciler may still
// move, in id order and strictly after the given id. Pass uuid.Nil for the
// first page.
func (r *PurchaseRequestRepository) ListOpenIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	query := r.db.WithContext(ctx).
		Model(&domain.PurchaseRequest{}).
		Where("status NOT IN ?", []domain.RequestStatus{domain.RequestStatusDelivered, domain.RequestStatusRejected})
	if after != uuid.Nil {
		query = query.Where("id > ?", after)
	}

	var ids []uuid.UUID
	err := query.Order("id ASC").Limit(limit).Pluck("id", &ids).Error
	return ids, err
}
