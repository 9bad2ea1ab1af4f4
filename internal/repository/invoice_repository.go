package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/straye-as/purchasing-api/internal/domain"
	"gorm.io/gorm"
)

type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

func (r *InvoiceRepository) WithTx(tx *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: tx}
}

func (r *InvoiceRepository) Create(ctx context.Context, invoice *domain.Invoice) error {
	return r.db.WithContext(ctx).Omit("Photos").Create(invoice).Error
}

func (r *InvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := r.db.WithContext(ctx).
		Preload("Photos", orderPhotos).
		Where("id = ?", id).
		First(&invoice).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *InvoiceRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Invoice, error) {
	var invoices []domain.Invoice
	err := r.db.WithContext(ctx).
		Preload("Photos", orderPhotos).
		Where("id IN ?", ids).
		Order("created_at ASC").
		Find(&invoices).Error
	return invoices, err
}

func (r *InvoiceRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.Invoice, error) {
	var invoices []domain.Invoice
	err := r.db.WithContext(ctx).
		Preload("Photos", orderPhotos).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&invoices).Error
	return invoices, err
}

// ListByRequest returns every invoice of every order of the request.
func (r *InvoiceRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]domain.Invoice, error) {
	var invoices []domain.Invoice
	err := r.db.WithContext(ctx).
		Preload("Photos", orderPhotos).
		Where("order_id IN (?)", r.db.Model(&domain.Order{}).Select("id").Where("purchase_request_id = ?", requestID)).
		Order("created_at ASC").
		Find(&invoices).Error
	return invoices, err
}

// AssignGroup links ungrouped invoices to a group and returns how many rows
// were linked. Invoices already in a group are left untouched.
func (r *InvoiceRepository) AssignGroup(ctx context.Context, ids []uuid.UUID, groupID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("id IN ? AND invoice_group_id IS NULL", ids).
		Update("invoice_group_id", groupID)
	return result.RowsAffected, result.Error
}

func (r *InvoiceRepository) AddPhoto(ctx context.Context, photo *domain.InvoicePhoto) error {
	return r.db.WithContext(ctx).Create(photo).Error
}

func orderPhotos(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC")
}

type InvoiceGroupRepository struct {
	db *gorm.DB
}

func NewInvoiceGroupRepository(db *gorm.DB) *InvoiceGroupRepository {
	return &InvoiceGroupRepository{db: db}
}

func (r *InvoiceGroupRepository) WithTx(tx *gorm.DB) *InvoiceGroupRepository {
	return &InvoiceGroupRepository{db: tx}
}

func (r *InvoiceGroupRepository) Create(ctx context.Context, group *domain.InvoiceGroup) error {
	return r.db.WithContext(ctx).Omit("Invoices").Create(group).Error
}

func (r *InvoiceGroupRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.InvoiceGroup, error) {
	var group domain.InvoiceGroup
	err := r.db.WithContext(ctx).
		Preload("Invoices", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("id = ?", id).
		First(&group).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}
