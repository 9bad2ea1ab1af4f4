package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/purchasing-api/internal/config"
	"github.com/straye-as/purchasing-api/internal/domain"
	"github.com/straye-as/purchasing-api/internal/fulfillment"
	"github.com/straye-as/purchasing-api/internal/mapper"
	"github.com/straye-as/purchasing-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type OrderService struct {
	orderRepo    *repository.OrderRepository
	supplierRepo *repository.SupplierRepository
	cfg          *config.FulfillmentConfig
	clock        fulfillment.Clock
	logger       *zap.Logger
	db           *gorm.DB
}

func NewOrderService(
	orderRepo *repository.OrderRepository,
	supplierRepo *repository.SupplierRepository,
	cfg *config.FulfillmentConfig,
	clock fulfillment.Clock,
	logger *zap.Logger,
	db *gorm.DB,
) *OrderService {
	if clock == nil {
		clock = fulfillment.SystemClock{}
	}
	return &OrderService{
		orderRepo:    orderRepo,
		supplierRepo: supplierRepo,
		cfg:          cfg,
		clock:        clock,
		logger:       logger,
		db:           db,
	}
}

// Create places an order with an active supplier. The first order placed
// for a request that may still be ordered moves the request to ordered.
func (s *OrderService) Create(ctx context.Context, req *domain.CreateOrderRequest, actor domain.Actor) (*domain.OrderDTO, error) {
	if !actor.Can(domain.CapabilityManageOrders) {
		return nil, fmt.Errorf("%w: placing orders requires %s", ErrForbidden, domain.CapabilityManageOrders)
	}
	if req.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: order amount must not be negative", ErrInvalidAmount)
	}

	order := &domain.Order{
		PurchaseRequestID: req.PurchaseRequestID,
		LineItemID:        req.LineItemID,
		SupplierID:        req.SupplierID,
		Amount:            req.Amount,
		Currency:          fulfillment.NormalizeCurrency(req.Currency),
		Status:            domain.OrderStatusOrdered,
	}
	if req.DeliveryDate != "" {
		d, err := time.Parse("2006-01-02", req.DeliveryDate)
		if err != nil {
			return nil, fmt.Errorf("%w: delivery date %q", ErrInvalidInput, req.DeliveryDate)
		}
		order.DeliveryDate = &d
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		writer := newStatusWriter(tx)
		request, err := writer.lockRequest(ctx, req.PurchaseRequestID)
		if err != nil {
			return err
		}
		if request.Status.IsTerminal() {
			return fmt.Errorf("%w: cannot order for a %s request", ErrInvalidTransition, request.Status)
		}

		supplier, err := s.supplierRepo.WithTx(tx).GetByID(ctx, req.SupplierID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSupplierNotFound
			}
			return fmt.Errorf("failed to load supplier: %w", err)
		}
		if supplier.Status != domain.SupplierStatusActive {
			return fmt.Errorf("%w: %s is %s", ErrSupplierInactive, supplier.Name, supplier.Status)
		}

		if req.LineItemID != nil {
			item, err := writer.lineItemRepo.GetByID(ctx, *req.LineItemID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrLineItemNotFound
				}
				return fmt.Errorf("failed to load line item: %w", err)
			}
			if item.PurchaseRequestID != request.ID {
				return ErrLineItemNotInRequest
			}
		}

		if err := s.orderRepo.WithTx(tx).Create(ctx, order); err != nil {
			return mapper.FormatError("order", "create", err)
		}
		order.Supplier = supplier

		to, err := fulfillment.Guard(fulfillment.TransitionMarkOrdered, request.Status, actor)
		switch {
		case err == nil:
			return writer.apply(ctx, request, to, domain.StatusChangeManual, actor, "order placed", s.clock.Now())
		case errors.Is(err, ErrInvalidTransition):
			// already past the ordering stage
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order created",
		zap.String("orderID", order.ID.String()),
		zap.String("requestID", order.PurchaseRequestID.String()),
		zap.String("supplierID", order.SupplierID.String()),
		zap.String("amount", order.Amount.String()),
		zap.String("currency", order.Currency))

	dto := mapper.ToOrderDTO(order)
	return &dto, nil
}

func (s *OrderService) GetByID(ctx context.Context, id uuid.UUID, actor domain.Actor) (*domain.OrderDTO, error) {
	if !actor.Can(domain.CapabilityReadRequests) {
		return nil, fmt.Errorf("%w: reading orders requires %s", ErrForbidden, domain.CapabilityReadRequests)
	}
	order, err := s.getOrder(ctx, s.orderRepo, id)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToOrderDTO(order)
	return &dto, nil
}

// ConfirmDelivery marks an ordered order delivered once its delivery date
// has been reached in the configured timezone. The request status is not
// touched; completing the request is a separate transition.
func (s *OrderService) ConfirmDelivery(ctx context.Context, id uuid.UUID, actor domain.Actor) (*domain.OrderDTO, error) {
	if !actor.Can(domain.CapabilityConfirmDelivery) {
		return nil, fmt.Errorf("%w: confirming delivery requires %s", ErrForbidden, domain.CapabilityConfirmDelivery)
	}

	var order *domain.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := s.orderRepo.WithTx(tx)
		var err error
		order, err = s.getOrder(ctx, orders, id)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		if err := fulfillment.CanConfirmDelivery(*order, now, s.cfg.Location()); err != nil {
			return err
		}

		ok, err := orders.MarkDelivered(ctx, id, now, actor.ID, actor.Name)
		if err != nil {
			return fmt.Errorf("failed to mark order delivered: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: order is no longer ordered", ErrInvalidTransition)
		}

		order.Status = domain.OrderStatusDelivered
		order.DeliveredAt = &now
		order.DeliveredByID = actor.ID
		order.DeliveredByName = actor.Name
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order delivery confirmed",
		zap.String("orderID", id.String()),
		zap.String("actorID", actor.ID))

	dto := mapper.ToOrderDTO(order)
	return &dto, nil
}

func (s *OrderService) getOrder(ctx context.Context, repo *repository.OrderRepository, id uuid.UUID) (*domain.Order, error) {
	order, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, mapper.FormatError("order", "get", err)
	}
	return order, nil
}
