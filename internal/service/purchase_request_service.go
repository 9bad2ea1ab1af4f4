package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/straye-as/purchasing-api/internal/config"
	"github.com/straye-as/purchasing-api/internal/domain"
	"github.com/straye-as/purchasing-api/internal/fulfillment"
	"github.com/straye-as/purchasing-api/internal/mapper"
	"github.com/straye-as/purchasing-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultSweepBatch = 500

// ReconcileSweepResult summarises one pass of ReconcileOpen.
type ReconcileSweepResult struct {
	Checked int
	Changed int
	Failed  int
}

type PurchaseRequestService struct {
	requestRepo   *repository.PurchaseRequestRepository
	eventRepo     *repository.ShipmentEventRepository
	historyRepo   *repository.StatusHistoryRepository
	orderRepo     *repository.OrderRepository
	numberSeqRepo *repository.NumberSequenceRepository
	cfg           *config.FulfillmentConfig
	clock         fulfillment.Clock
	logger        *zap.Logger
	db            *gorm.DB
}

func NewPurchaseRequestService(
	requestRepo *repository.PurchaseRequestRepository,
	eventRepo *repository.ShipmentEventRepository,
	historyRepo *repository.StatusHistoryRepository,
	orderRepo *repository.OrderRepository,
	numberSeqRepo *repository.NumberSequenceRepository,
	cfg *config.FulfillmentConfig,
	clock fulfillment.Clock,
	logger *zap.Logger,
	db *gorm.DB,
) *PurchaseRequestService {
	if clock == nil {
		clock = fulfillment.SystemClock{}
	}
	return &PurchaseRequestService{
		requestRepo:   requestRepo,
		eventRepo:     eventRepo,
		historyRepo:   historyRepo,
		orderRepo:     orderRepo,
		numberSeqRepo: numberSeqRepo,
		cfg:           cfg,
		clock:         clock,
		logger:        logger,
		db:            db,
	}
}

// Create opens a purchase request in pending status. Every line item starts
// with original and remaining quantity equal to the requested quantity.
func (s *PurchaseRequestService) Create(ctx context.Context, req *domain.CreatePurchaseRequestRequest, actor domain.Actor) (*domain.PurchaseRequestDTO, error) {
	if !actor.Can(domain.CapabilityCreateRequest) {
		return nil, fmt.Errorf("%w: creating requests requires %s", ErrForbidden, domain.CapabilityCreateRequest)
	}

	items := make([]domain.LineItem, len(req.LineItems))
	for i, li := range req.LineItems {
		if !li.Quantity.IsPositive() {
			return nil, fmt.Errorf("%w: line %d quantity must be greater than zero", ErrInvalidQuantity, i+1)
		}
		original := li.Quantity
		items[i] = domain.LineItem{
			Material:          li.Material,
			OriginalQuantity:  &original,
			RemainingQuantity: li.Quantity,
			Unit:              li.Unit,
		}
	}

	now := s.clock.Now()
	request := &domain.PurchaseRequest{
		Title:           req.Title,
		Site:            req.Site,
		Notes:           req.Notes,
		Status:          domain.RequestStatusPending,
		RequestedByID:   actor.ID,
		RequestedByName: actor.Name,
		LineItems:       items,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		year := now.In(s.cfg.Location()).Year()
		seq, err := s.numberSeqRepo.WithTx(tx).GetNextNumber(ctx, s.cfg.RequestNumberPrefix, year)
		if err != nil {
			return fmt.Errorf("failed to generate request number: %w", err)
		}
		request.RequestNumber = fmt.Sprintf("%s-%d-%04d", s.cfg.RequestNumberPrefix, year, seq)

		if err := s.requestRepo.WithTx(tx).Create(ctx, request); err != nil {
			return mapper.FormatError("purchase request", "create", err)
		}

		return s.historyRepo.WithTx(tx).Create(ctx, &domain.StatusHistory{
			PurchaseRequestID: request.ID,
			ToStatus:          domain.RequestStatusPending,
			Source:            domain.StatusChangeManual,
			ChangedByID:       actor.ID,
			ChangedByName:     actor.Name,
			ChangedAt:         now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("purchase request created",
		zap.String("requestID", request.ID.String()),
		zap.String("requestNumber", request.RequestNumber),
		zap.Int("lineItems", len(items)),
		zap.String("actorID", actor.ID))

	dto := mapper.ToPurchaseRequestDTO(request, domain.LocaleFromContext(ctx))
	return &dto, nil
}

func (s *PurchaseRequestService) GetByID(ctx context.Context, id uuid.UUID, actor domain.Actor) (*domain.PurchaseRequestDTO, error) {
	if !actor.Can(domain.CapabilityReadRequests) {
		return nil, fmt.Errorf("%w: reading requests requires %s", ErrForbidden, domain.CapabilityReadRequests)
	}
	request, err := s.load(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToPurchaseRequestDTO(request, domain.LocaleFromContext(ctx))
	return &dto, nil
}

// List returns a page of requests. Site personnel only see their own requests.
func (s *PurchaseRequestService) List(ctx context.Context, page, pageSize int, filters *repository.PurchaseRequestFilters, sort repository.SortConfig, actor domain.Actor) (*domain.PaginatedResponse, error) {
	if !actor.Can(domain.CapabilityReadRequests) {
		return nil, fmt.Errorf("%w: reading requests requires %s", ErrForbidden, domain.CapabilityReadRequests)
	}
	if filters == nil {
		filters = &repository.PurchaseRequestFilters{}
	}
	if onlyOwnRequests(actor) {
		filters.RequestedByID = actor.ID
	}

	page, pageSize = repository.NormalizePage(page, pageSize)
	requests, total, err := s.requestRepo.List(ctx, page, pageSize, filters, sort)
	if err != nil {
		return nil, mapper.FormatError("purchase requests", "list", err)
	}

	locale := domain.LocaleFromContext(ctx)
	dtos := make([]domain.PurchaseRequestDTO, len(requests))
	for i := range requests {
		dtos[i] = mapper.ToPurchaseRequestDTO(&requests[i], locale)
	}

	return &domain.PaginatedResponse{
		Data:       dtos,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: int((total + int64(pageSize) - 1) / int64(pageSize)),
	}, nil
}

// History returns the request's status changes, newest first.
func (s *PurchaseRequestService) History(ctx context.Context, id uuid.UUID, actor domain.Actor) ([]domain.StatusHistoryDTO, error) {
	if !actor.Can(domain.CapabilityReadRequests) {
		return nil, fmt.Errorf("%w: reading requests requires %s", ErrForbidden, domain.CapabilityReadRequests)
	}
	if _, err := s.getRequest(ctx, id, actor); err != nil {
		return nil, err
	}
	rows, err := s.historyRepo.ListByRequest(ctx, id)
	if err != nil {
		return nil, mapper.FormatError("status history", "list", err)
	}
	dtos := make([]domain.StatusHistoryDTO, len(rows))
	for i := range rows {
		dtos[i] = mapper.ToStatusHistoryDTO(&rows[i])
	}
	return dtos, nil
}

// Shipments returns every shipment event of the request in shipping order.
func (s *PurchaseRequestService) Shipments(ctx context.Context, id uuid.UUID, actor domain.Actor) ([]domain.ShipmentEventDTO, error) {
	if !actor.Can(domain.CapabilityReadRequests) {
		return nil, fmt.Errorf("%w: reading requests requires %s", ErrForbidden, domain.CapabilityReadRequests)
	}
	if _, err := s.getRequest(ctx, id, actor); err != nil {
		return nil, err
	}
	events, err := s.eventRepo.ListByRequest(ctx, id)
	if err != nil {
		return nil, mapper.FormatError("shipment events", "list", err)
	}
	dtos := make([]domain.ShipmentEventDTO, len(events))
	for i := range events {
		dtos[i] = mapper.ToShipmentEventDTO(&events[i])
	}
	return dtos, nil
}

// Reconcile re-derives the request status from its ledger on demand.
func (s *PurchaseRequestService) Reconcile(ctx context.Context, id uuid.UUID, actor domain.Actor) (*domain.PurchaseRequestDTO, error) {
	if !actor.Can(domain.CapabilityReconcile) {
		return nil, fmt.Errorf("%w: reconciling requires %s", ErrForbidden, domain.CapabilityReconcile)
	}

	request, _, err := s.reconcileOne(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToPurchaseRequestDTO(request, domain.LocaleFromContext(ctx))
	return &dto, nil
}

// ReconcileOpen reconciles every non-terminal request, reading ids in pages of
// batchSize and handling each request in its own transaction. A failing
// request is logged and skipped.
func (s *PurchaseRequestService) ReconcileOpen(ctx context.Context, batchSize int) (*ReconcileSweepResult, error) {
	if batchSize <= 0 {
		batchSize = defaultSweepBatch
	}

	result := &ReconcileSweepResult{}
	after := uuid.Nil
	for {
		ids, err := s.requestRepo.ListOpenIDs(ctx, after, batchSize)
		if err != nil {
			return result, mapper.FormatError("open purchase requests", "list", err)
		}

		for _, id := range ids {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Checked++

			request, changed, err := s.reconcileOne(ctx, id, domain.SystemActor)
			if err != nil {
				result.Failed++
				s.logger.Warn("reconcile sweep failed for request",
					zap.String("requestID", id.String()),
					zap.Error(err))
				continue
			}
			if changed {
				result.Changed++
				s.logger.Info("reconcile sweep changed request status",
					zap.String("requestID", id.String()),
					zap.String("status", string(request.Status)))
			}
		}

		if len(ids) < batchSize {
			return result, nil
		}
		after = ids[len(ids)-1]
	}
}

// reconcileOne reconciles a request outside a shipment commit. A status set by
// an explicit transition is kept.
func (s *PurchaseRequestService) reconcileOne(ctx context.Context, id uuid.UUID, actor domain.Actor) (*domain.PurchaseRequest, bool, error) {
	var request *domain.PurchaseRequest
	var changed bool

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		writer := newStatusWriter(tx)
		var err error
		request, err = writer.lockRequest(ctx, id)
		if err != nil {
			return err
		}

		held, err := writer.heldByManualChange(ctx, request)
		if err != nil {
			return err
		}
		if held {
			request.LineItems, err = writer.lineItemRepo.ListByRequest(ctx, id)
			return err
		}

		changed, err = writer.reconcile(ctx, request, actor, s.clock.Now())
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return request, changed, nil
}

// Transition applies an explicit workflow transition. Completing delivery
// additionally requires every order of the request to be delivered.
func (s *PurchaseRequestService) Transition(ctx context.Context, id uuid.UUID, t fulfillment.Transition, notes string, actor domain.Actor) (*domain.PurchaseRequestDTO, error) {
	var request *domain.PurchaseRequest

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		writer := newStatusWriter(tx)
		var err error
		request, err = writer.lockRequest(ctx, id)
		if err != nil {
			return err
		}

		to, err := fulfillment.Guard(t, request.Status, actor)
		if err != nil {
			return err
		}

		if t == fulfillment.TransitionCompleteDelivery {
			open, err := s.orderRepo.WithTx(tx).CountUndelivered(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to count open orders: %w", err)
			}
			if open > 0 {
				return fmt.Errorf("%w: %d open", ErrOrdersNotDelivered, open)
			}
		}

		if err := writer.apply(ctx, request, to, domain.StatusChangeManual, actor, notes, s.clock.Now()); err != nil {
			return err
		}
		request.LineItems, err = writer.lineItemRepo.ListByRequest(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("purchase request transitioned",
		zap.String("requestID", id.String()),
		zap.String("transition", string(t)),
		zap.String("status", string(request.Status)),
		zap.String("actorID", actor.ID))

	dto := mapper.ToPurchaseRequestDTO(request, domain.LocaleFromContext(ctx))
	return &dto, nil
}

// AllowedTransitions lists what the actor may do next with the request.
func (s *PurchaseRequestService) AllowedTransitions(ctx context.Context, id uuid.UUID, actor domain.Actor) ([]fulfillment.Transition, error) {
	if !actor.Can(domain.CapabilityReadRequests) {
		return nil, fmt.Errorf("%w: reading requests requires %s", ErrForbidden, domain.CapabilityReadRequests)
	}
	request, err := s.getRequest(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	return fulfillment.AllowedTransitions(request.Status, actor), nil
}

// load reads the request with its line items. Site personnel get
// ErrPurchaseRequestNotFound for requests they did not raise.
func (s *PurchaseRequestService) load(ctx context.Context, id uuid.UUID, actor domain.Actor) (*domain.PurchaseRequest, error) {
	request, err := s.requestRepo.GetWithLineItems(ctx, id)
	return visibleRequest(request, err, actor)
}

func (s *PurchaseRequestService) getRequest(ctx context.Context, id uuid.UUID, actor domain.Actor) (*domain.PurchaseRequest, error) {
	request, err := s.requestRepo.GetByID(ctx, id)
	return visibleRequest(request, err, actor)
}

func visibleRequest(request *domain.PurchaseRequest, err error, actor domain.Actor) (*domain.PurchaseRequest, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPurchaseRequestNotFound
		}
		return nil, mapper.FormatError("purchase request", "get", err)
	}
	if onlyOwnRequests(actor) && request.RequestedByID != actor.ID {
		return nil, ErrPurchaseRequestNotFound
	}
	return request, nil
}

// onlyOwnRequests reports actors whose only read access comes from site personnel.
func onlyOwnRequests(actor domain.Actor) bool {
	if len(actor.Roles) == 0 {
		return false
	}
	for _, r := range actor.Roles {
		if r != domain.RoleSitePersonnel {
			return false
		}
	}
	return true
}
