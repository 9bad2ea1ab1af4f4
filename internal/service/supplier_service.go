package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/purchasing-api/internal/domain"
	"github.com/straye-as/purchasing-api/internal/mapper"
	"github.com/straye-as/purchasing-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type SupplierService struct {
	supplierRepo *repository.SupplierRepository
	logger       *zap.Logger
}

func NewSupplierService(supplierRepo *repository.SupplierRepository, logger *zap.Logger) *SupplierService {
	return &SupplierService{
		supplierRepo: supplierRepo,
		logger:       logger,
	}
}

// Create registers an active supplier. Organization numbers are unique when given.
func (s *SupplierService) Create(ctx context.Context, req *domain.CreateSupplierRequest, actor domain.Actor) (*domain.SupplierDTO, error) {
	if !actor.Can(domain.CapabilityManageSuppliers) {
		return nil, fmt.Errorf("%w: managing suppliers requires %s", ErrForbidden, domain.CapabilityManageSuppliers)
	}

	orgNumber := strings.TrimSpace(req.OrgNumber)
	if orgNumber != "" {
		existing, err := s.supplierRepo.GetByOrgNumber(ctx, orgNumber)
		if err != nil {
			return nil, fmt.Errorf("failed to check org number: %w", err)
		}
		if existing != nil {
			return nil, ErrDuplicateOrgNumber
		}
	}

	supplier := &domain.Supplier{
		Name:      strings.TrimSpace(req.Name),
		OrgNumber: orgNumber,
		Email:     req.Email,
		Phone:     req.Phone,
		City:      req.City,
		Status:    domain.SupplierStatusActive,
	}
	if err := s.supplierRepo.Create(ctx, supplier); err != nil {
		return nil, mapper.FormatError("supplier", "create", err)
	}

	s.logger.Info("supplier created",
		zap.String("supplierID", supplier.ID.String()),
		zap.String("name", supplier.Name))

	dto := mapper.ToSupplierDTO(supplier)
	return &dto, nil
}

func (s *SupplierService) GetByID(ctx context.Context, id uuid.UUID) (*domain.SupplierDTO, error) {
	supplier, err := s.supplierRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSupplierNotFound
		}
		return nil, mapper.FormatError("supplier", "get", err)
	}
	dto := mapper.ToSupplierDTO(supplier)
	return &dto, nil
}

func (s *SupplierService) List(ctx context.Context, page, pageSize int, filters *repository.SupplierFilters, sort repository.SortConfig) (*domain.PaginatedResponse, error) {
	page, pageSize = repository.NormalizePage(page, pageSize)
	suppliers, total, err := s.supplierRepo.List(ctx, page, pageSize, filters, sort)
	if err != nil {
		return nil, mapper.FormatError("suppliers", "list", err)
	}

	dtos := make([]domain.SupplierDTO, len(suppliers))
	for i := range suppliers {
		dtos[i] = mapper.ToSupplierDTO(&suppliers[i])
	}

	return &domain.PaginatedResponse{
		Data:       dtos,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: int((total + int64(pageSize) - 1) / int64(pageSize)),
	}, nil
}
