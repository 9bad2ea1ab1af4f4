package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/purchasing-api/internal/domain"
	"github.com/straye-as/purchasing-api/internal/fulfillment"
	"github.com/straye-as/purchasing-api/internal/mapper"
	"github.com/straye-as/purchasing-api/internal/repository"
	"github.com/straye-as/purchasing-api/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// InvoiceService manages supplier invoices, invoice photos and invoice groups.
type InvoiceService struct {
	invoiceRepo *repository.InvoiceRepository
	groupRepo   *repository.InvoiceGroupRepository
	orderRepo   *repository.OrderRepository
	requestRepo *repository.PurchaseRequestRepository
	storage     storage.Storage
	aggregator  *fulfillment.Aggregator
	logger      *zap.Logger
	db          *gorm.DB
}

func NewInvoiceService(
	invoiceRepo *repository.InvoiceRepository,
	groupRepo *repository.InvoiceGroupRepository,
	orderRepo *repository.OrderRepository,
	requestRepo *repository.PurchaseRequestRepository,
	store storage.Storage,
	aggregator *fulfillment.Aggregator,
	logger *zap.Logger,
	db *gorm.DB,
) *InvoiceService {
	return &InvoiceService{
		invoiceRepo: invoiceRepo,
		groupRepo:   groupRepo,
		orderRepo:   orderRepo,
		requestRepo: requestRepo,
		storage:     store,
		aggregator:  aggregator,
		logger:      logger,
		db:          db,
	}
}

func (s *InvoiceService) Create(ctx context.Context, req *domain.CreateInvoiceRequest, actor domain.Actor) (*domain.InvoiceDTO, error) {
	if !actor.Can(domain.CapabilityManageInvoices) {
		return nil, fmt.Errorf("%w: recording invoices requires %s", ErrForbidden, domain.CapabilityManageInvoices)
	}
	if req.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: invoice amount must not be negative", ErrInvalidAmount)
	}

	if _, err := s.orderRepo.GetByID(ctx, req.OrderID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	invoice := &domain.Invoice{
		OrderID:       req.OrderID,
		InvoiceNumber: strings.TrimSpace(req.InvoiceNumber),
		Amount:        req.Amount,
		Currency:      fulfillment.NormalizeCurrency(req.Currency),
	}
	if err := s.invoiceRepo.Create(ctx, invoice); err != nil {
		return nil, mapper.FormatError("invoice", "create", err)
	}

	s.logger.Info("invoice created",
		zap.String("invoiceID", invoice.ID.String()),
		zap.String("orderID", invoice.OrderID.String()),
		zap.String("amount", invoice.Amount.String()),
		zap.String("currency", invoice.Currency))

	dto := mapper.ToInvoiceDTO(invoice)
	return &dto, nil
}

func (s *InvoiceService) GetByID(ctx context.Context, id uuid.UUID, actor domain.Actor) (*domain.InvoiceDTO, error) {
	if !actor.Can(domain.CapabilityReadRequests) {
		return nil, fmt.Errorf("%w: reading invoices requires %s", ErrForbidden, domain.CapabilityReadRequests)
	}
	invoice, err := s.getInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToInvoiceDTO(invoice)
	return &dto, nil
}

// UploadPhoto stores a scan of the invoice and attaches it. The stored object
// is removed again when the database write fails.
func (s *InvoiceService) UploadPhoto(ctx context.Context, invoiceID uuid.UUID, filename, contentType string, data io.Reader, actor domain.Actor) (*domain.InvoiceDTO, error) {
	if !actor.Can(domain.CapabilityManageInvoices) {
		return nil, fmt.Errorf("%w: uploading invoice photos requires %s", ErrForbidden, domain.CapabilityManageInvoices)
	}
	if _, err := s.getInvoice(ctx, invoiceID); err != nil {
		return nil, err
	}

	obj, err := s.storage.Put(ctx, "invoices/"+invoiceID.String(), filename, contentType, data)
	if err != nil {
		return nil, fmt.Errorf("failed to store invoice photo: %w", err)
	}

	photo := &domain.InvoicePhoto{
		InvoiceID:   invoiceID,
		URL:         obj.URL,
		StoragePath: obj.Path,
		ContentType: contentType,
		Size:        obj.Size,
	}
	if err := s.invoiceRepo.AddPhoto(ctx, photo); err != nil {
		if delErr := s.storage.Delete(ctx, obj.Path); delErr != nil {
			s.logger.Warn("failed to remove orphaned invoice photo",
				zap.String("path", obj.Path),
				zap.Error(delErr))
		}
		return nil, mapper.FormatError("invoice photo", "save", err)
	}

	s.logger.Info("invoice photo uploaded",
		zap.String("invoiceID", invoiceID.String()),
		zap.String("path", obj.Path),
		zap.Int64("size", obj.Size))

	invoice, err := s.getInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToInvoiceDTO(invoice)
	return &dto, nil
}

// CreateGroup bills invoices together. Invoices, discount and tax must all
// be in the group currency; nothing is converted.
func (s *InvoiceService) CreateGroup(ctx context.Context, req *domain.CreateInvoiceGroupRequest, actor domain.Actor) (*domain.InvoiceGroupDTO, error) {
	if !actor.Can(domain.CapabilityManageInvoices) {
		return nil, fmt.Errorf("%w: grouping invoices requires %s", ErrForbidden, domain.CapabilityManageInvoices)
	}

	currency := fulfillment.NormalizeCurrency(req.Currency)
	discountCurrency := defaultCurrency(req.DiscountCurrency, currency)
	taxCurrency := defaultCurrency(req.TaxCurrency, currency)
	if !fulfillment.ValidateCurrencyConsistency(currency, discountCurrency, taxCurrency, currency) {
		return nil, fmt.Errorf("%w: group %s, discount %s, tax %s", ErrCurrencyMismatch, currency, discountCurrency, taxCurrency)
	}
	if req.Discount.IsNegative() || req.Tax.IsNegative() {
		return nil, fmt.Errorf("%w: discount and tax must not be negative", ErrInvalidAmount)
	}

	ids := uniqueIDs(req.InvoiceIDs)
	group := &domain.InvoiceGroup{
		Currency:      currency,
		Discount:      req.Discount,
		Tax:           req.Tax,
		Notes:         req.Notes,
		CreatedByID:   actor.ID,
		CreatedByName: actor.Name,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoices := s.invoiceRepo.WithTx(tx)

		found, err := invoices.ListByIDs(ctx, ids)
		if err != nil {
			return fmt.Errorf("failed to load invoices: %w", err)
		}
		if len(found) != len(ids) {
			return fmt.Errorf("%w: %d of %d invoices exist", ErrInvoiceNotFound, len(found), len(ids))
		}
		for _, inv := range found {
			if inv.InvoiceGroupID != nil {
				return fmt.Errorf("%w: %s", ErrInvoiceAlreadyGrouped, inv.ID)
			}
		}

		subtotals, err := s.aggregator.Subtotal(mapper.ToMonetaryAmounts(found))
		if err != nil {
			return err
		}
		subtotal, ok := subtotals[currency]
		if !ok || len(subtotals) != 1 {
			return fmt.Errorf("%w: invoices are in %s, group is %s", ErrCurrencyMismatch, currencyList(subtotals), currency)
		}

		grand, err := s.aggregator.GrandTotal(subtotal, req.Discount, req.Tax)
		if err != nil {
			return err
		}
		group.Subtotal = subtotal
		group.GrandTotal = grand

		if err := s.groupRepo.WithTx(tx).Create(ctx, group); err != nil {
			return mapper.FormatError("invoice group", "create", err)
		}

		linked, err := invoices.AssignGroup(ctx, ids, group.ID)
		if err != nil {
			return fmt.Errorf("failed to link invoices: %w", err)
		}
		if linked != int64(len(ids)) {
			return fmt.Errorf("%w: linked %d of %d", ErrInvoiceAlreadyGrouped, linked, len(ids))
		}
		group.Invoices = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("invoice group created",
		zap.String("groupID", group.ID.String()),
		zap.Int("invoices", len(ids)),
		zap.String("grandTotal", group.GrandTotal.String()),
		zap.String("currency", group.Currency))

	dto := mapper.ToInvoiceGroupDTO(group)
	return &dto, nil
}

func (s *InvoiceService) GetGroup(ctx context.Context, id uuid.UUID, actor domain.Actor) (*domain.InvoiceGroupDTO, error) {
	if !actor.Can(domain.CapabilityReadRequests) {
		return nil, fmt.Errorf("%w: reading invoices requires %s", ErrForbidden, domain.CapabilityReadRequests)
	}
	group, err := s.groupRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvoiceGroupNotFound
		}
		return nil, mapper.FormatError("invoice group", "get", err)
	}
	dto := mapper.ToInvoiceGroupDTO(group)
	return &dto, nil
}

// OrderSummary sums all invoices of an order per currency.
func (s *InvoiceService) OrderSummary(ctx context.Context, orderID uuid.UUID, actor domain.Actor) (*domain.OrderInvoiceSummaryDTO, error) {
	if !actor.Can(domain.CapabilityReadRequests) {
		return nil, fmt.Errorf("%w: reading invoices requires %s", ErrForbidden, domain.CapabilityReadRequests)
	}
	if _, err := s.orderRepo.GetByID(ctx, orderID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	invoices, err := s.invoiceRepo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, mapper.FormatError("invoices", "list", err)
	}
	subtotals, err := s.aggregator.Subtotal(mapper.ToMonetaryAmounts(invoices))
	if err != nil {
		return nil, err
	}
	return &domain.OrderInvoiceSummaryDTO{
		OrderID:      orderID,
		InvoiceCount: len(invoices),
		Subtotals:    subtotals,
	}, nil
}

// InvoiceBatches groups a request's invoices into the batches they were
// billed in: by invoice group, or for ungrouped invoices by shared photos.
func (s *InvoiceService) InvoiceBatches(ctx context.Context, requestID uuid.UUID, actor domain.Actor) ([]domain.InvoiceBatchDTO, error) {
	if !actor.Can(domain.CapabilityReadRequests) {
		return nil, fmt.Errorf("%w: reading invoices requires %s", ErrForbidden, domain.CapabilityReadRequests)
	}
	if _, err := s.requestRepo.GetByID(ctx, requestID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPurchaseRequestNotFound
		}
		return nil, fmt.Errorf("failed to load purchase request: %w", err)
	}

	invoices, err := s.invoiceRepo.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, mapper.FormatError("invoices", "list", err)
	}

	batches := fulfillment.GroupByPhotoOrGroupID(mapper.ToInvoiceRefs(invoices))
	dtos := make([]domain.InvoiceBatchDTO, len(batches))
	for i, b := range batches {
		dtos[i] = mapper.ToInvoiceBatchDTO(b)
	}
	return dtos, nil
}

// TotalsPreview computes totals over raw amounts as typed by a user, under
// the configured parsing and negative total policies. With a currency set,
// every amount must be in it and a grand total is returned; no amounts at all
// is a zero subtotal in that currency.
func (s *InvoiceService) TotalsPreview(ctx context.Context, req *domain.TotalsPreviewRequest) (*domain.TotalsPreviewDTO, error) {
	amounts := make(map[uuid.UUID]fulfillment.MonetaryAmount, len(req.Amounts))
	for _, a := range req.Amounts {
		amounts[uuid.New()] = fulfillment.MonetaryAmount{Amount: a.Amount, Currency: a.Currency}
	}

	subtotals, err := s.aggregator.Subtotal(amounts)
	if err != nil {
		return nil, err
	}
	preview := &domain.TotalsPreviewDTO{Subtotals: subtotals}
	if req.Currency == "" {
		return preview, nil
	}

	currency := fulfillment.NormalizeCurrency(req.Currency)
	if len(subtotals) == 0 {
		// nothing entered yet totals to zero in the requested currency
		subtotals[currency] = decimal.Zero
	}
	subtotal, ok := subtotals[currency]
	if !ok || len(subtotals) != 1 {
		return nil, fmt.Errorf("%w: amounts are in %s, requested %s", ErrCurrencyMismatch, currencyList(subtotals), currency)
	}
	discount, err := s.optionalAmount(req.Discount)
	if err != nil {
		return nil, err
	}
	tax, err := s.optionalAmount(req.Tax)
	if err != nil {
		return nil, err
	}

	grand, err := s.aggregator.GrandTotal(subtotal, discount, tax)
	if err != nil {
		return nil, err
	}
	preview.Currency = currency
	preview.GrandTotal = &grand
	return preview, nil
}

// optionalAmount parses discount/tax input; blank is zero. In lenient mode an
// unparseable value is zero as well.
func (s *InvoiceService) optionalAmount(raw string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, nil
	}
	d, err := fulfillment.ParseAmount(raw)
	if err != nil {
		if s.aggregator.Policy().StrictAmounts {
			return decimal.Zero, err
		}
		return decimal.Zero, nil
	}
	return d, nil
}

func (s *InvoiceService) getInvoice(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, mapper.FormatError("invoice", "get", err)
	}
	return invoice, nil
}

func defaultCurrency(code, fallback string) string {
	if strings.TrimSpace(code) == "" {
		return fallback
	}
	return code
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func currencyList(subtotals map[string]decimal.Decimal) string {
	codes := make([]string, 0, len(subtotals))
	for c := range subtotals {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return strings.Join(codes, ",")
}
