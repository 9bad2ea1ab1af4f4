package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/straye-as/purchasing-api/internal/domain"
	"github.com/straye-as/purchasing-api/internal/fulfillment"
	"github.com/straye-as/purchasing-api/internal/lock"
	"github.com/straye-as/purchasing-api/internal/mapper"
	"github.com/straye-as/purchasing-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ShipmentService records depot shipments against line items.
type ShipmentService struct {
	lineItemRepo *repository.LineItemRepository
	eventRepo    *repository.ShipmentEventRepository
	locker       lock.Locker
	clock        fulfillment.Clock
	logger       *zap.Logger
	db           *gorm.DB
}

func NewShipmentService(
	lineItemRepo *repository.LineItemRepository,
	eventRepo *repository.ShipmentEventRepository,
	locker lock.Locker,
	clock fulfillment.Clock,
	logger *zap.Logger,
	db *gorm.DB,
) *ShipmentService {
	if locker == nil {
		locker = lock.NopLocker{}
	}
	if clock == nil {
		clock = fulfillment.SystemClock{}
	}
	return &ShipmentService{
		lineItemRepo: lineItemRepo,
		eventRepo:    eventRepo,
		locker:       locker,
		clock:        clock,
		logger:       logger,
		db:           db,
	}
}

// RecordShipment ships qty of a line item and reconciles the owning request.
//
// The event append, the ledger update and the reconcile run in one
// transaction that holds the request row lock before the item is read. The
// ledger update is conditional on the item version read under that lock;
// losing that race returns ErrConcurrentModification and nothing is written.
// When an idempotency key is given and an event with that key already exists
// for the item, the stored outcome is returned unchanged, including when the
// event was committed by a concurrent submission of the same key.
func (s *ShipmentService) RecordShipment(ctx context.Context, lineItemID uuid.UUID, req *domain.RecordShipmentRequest, actor domain.Actor) (*domain.ShipmentResultDTO, error) {
	if !actor.Can(domain.CapabilityRecordShipment) {
		return nil, fmt.Errorf("%w: recording shipments requires %s", ErrForbidden, domain.CapabilityRecordShipment)
	}
	if !req.Quantity.IsPositive() {
		return nil, fmt.Errorf("%w: shipped quantity must be greater than zero, got %s", ErrInvalidQuantity, req.Quantity)
	}

	release, err := s.locker.Acquire(ctx, lock.Key("line_item", lineItemID))
	if err != nil {
		if errors.Is(err, lock.ErrNotObtained) {
			return nil, fmt.Errorf("%w: line item %s", ErrResourceBusy, lineItemID)
		}
		return nil, fmt.Errorf("failed to lock line item: %w", err)
	}
	defer release()

	locale := domain.LocaleFromContext(ctx)
	var result *domain.ShipmentResultDTO

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items := s.lineItemRepo.WithTx(tx)
		events := s.eventRepo.WithTx(tx)
		writer := newStatusWriter(tx)

		requestID, err := owningRequest(ctx, items, lineItemID)
		if err != nil {
			return err
		}
		request, err := writer.lockRequest(ctx, requestID)
		if err != nil {
			return err
		}

		// re-read under the lock
		item, err := items.GetByID(ctx, lineItemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLineItemNotFound
			}
			return fmt.Errorf("failed to load line item: %w", err)
		}

		if req.IdempotencyKey != "" {
			prior, err := events.FindByIdempotencyKey(ctx, item.ID, req.IdempotencyKey)
			if err != nil {
				return fmt.Errorf("failed to look up idempotency key: %w", err)
			}
			if prior != nil {
				result = shipmentResult(prior, request.Status, locale, true)
				return nil
			}
		}

		if request.Status.IsTerminal() {
			return fmt.Errorf("%w: cannot record shipments on a %s request", ErrInvalidTransition, request.Status)
		}

		expectedVersion := item.Version
		if item.OriginalQuantity == nil {
			shipped, err := events.ShippedTotal(ctx, item.ID)
			if err != nil {
				return fmt.Errorf("failed to sum prior shipments: %w", err)
			}
			fulfillment.Initialize(item, shipped)
		}

		outcome, err := fulfillment.Apply(*item, req.Quantity)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		event := &domain.ShipmentEvent{
			LineItemID:        item.ID,
			PurchaseRequestID: item.PurchaseRequestID,
			ShippedQuantity:   req.Quantity,
			RemainingAfter:    outcome.NewRemaining,
			ShippedAt:         now,
			ShippedByID:       actor.ID,
			ShippedByName:     actor.Name,
		}
		if req.IdempotencyKey != "" {
			key := req.IdempotencyKey
			event.IdempotencyKey = &key
		}
		if err := events.Append(ctx, event); err != nil {
			return fmt.Errorf("failed to append shipment event: %w", err)
		}

		item.RemainingQuantity = outcome.NewRemaining
		updated, err := items.UpdateLedger(ctx, item, expectedVersion)
		if err != nil {
			return fmt.Errorf("failed to update line item: %w", err)
		}
		if !updated {
			return fmt.Errorf("%w: line item %s", ErrConcurrentModification, item.ID)
		}

		if _, err := writer.reconcile(ctx, request, actor, now); err != nil {
			return err
		}

		result = shipmentResult(event, request.Status, locale, false)
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) && req.IdempotencyKey != "" {
		result, err = s.replayCommitted(ctx, lineItemID, req.IdempotencyKey, locale)
	}
	if err != nil {
		return nil, err
	}

	if result.Replayed {
		s.logger.Info("shipment replayed from idempotency key",
			zap.String("lineItemID", lineItemID.String()),
			zap.String("idempotencyKey", req.IdempotencyKey))
	} else {
		s.logger.Info("shipment recorded",
			zap.String("lineItemID", lineItemID.String()),
			zap.String("quantity", req.Quantity.String()),
			zap.String("remaining", result.RemainingQuantity.String()),
			zap.String("requestStatus", string(result.RequestStatus)),
			zap.String("actorID", actor.ID))
	}

	return result, nil
}

func owningRequest(ctx context.Context, items *repository.LineItemRepository, lineItemID uuid.UUID) (uuid.UUID, error) {
	item, err := items.GetByID(ctx, lineItemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, ErrLineItemNotFound
		}
		return uuid.Nil, fmt.Errorf("failed to load line item: %w", err)
	}
	return item.PurchaseRequestID, nil
}

// replayCommitted answers a submission that lost the insert race to another
// one carrying the same idempotency key.
func (s *ShipmentService) replayCommitted(ctx context.Context, lineItemID uuid.UUID, key string, locale domain.Locale) (*domain.ShipmentResultDTO, error) {
	prior, err := s.eventRepo.FindByIdempotencyKey(ctx, lineItemID, key)
	if err != nil {
		return nil, fmt.Errorf("failed to look up idempotency key: %w", err)
	}
	if prior == nil {
		return nil, fmt.Errorf("%w: line item %s", ErrConcurrentModification, lineItemID)
	}
	request, err := repository.NewPurchaseRequestRepository(s.db).GetByID(ctx, prior.PurchaseRequestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load purchase request: %w", err)
	}
	return shipmentResult(prior, request.Status, locale, true), nil
}

// ListByLineItem returns the item's shipment events in shipping order.
func (s *ShipmentService) ListByLineItem(ctx context.Context, lineItemID uuid.UUID, actor domain.Actor) ([]domain.ShipmentEventDTO, error) {
	if !actor.Can(domain.CapabilityReadRequests) {
		return nil, fmt.Errorf("%w: reading shipments requires %s", ErrForbidden, domain.CapabilityReadRequests)
	}
	if _, err := s.lineItemRepo.GetByID(ctx, lineItemID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLineItemNotFound
		}
		return nil, fmt.Errorf("failed to load line item: %w", err)
	}

	events, err := s.eventRepo.ListByLineItem(ctx, lineItemID)
	if err != nil {
		return nil, mapper.FormatError("shipment events", "list", err)
	}
	dtos := make([]domain.ShipmentEventDTO, len(events))
	for i := range events {
		dtos[i] = mapper.ToShipmentEventDTO(&events[i])
	}
	return dtos, nil
}

// shipmentResult reports the item state as of the event: for replays that is
// the stored RemainingAfter, not the item's current remaining quantity.
func shipmentResult(event *domain.ShipmentEvent, status domain.RequestStatus, locale domain.Locale, replayed bool) *domain.ShipmentResultDTO {
	return &domain.ShipmentResultDTO{
		FullyFulfilled:    !event.RemainingAfter.IsPositive(),
		RemainingQuantity: event.RemainingAfter,
		RequestStatus:     status,
		StatusLabel:       status.Label(locale),
		Replayed:          replayed,
		Event:             mapper.ToShipmentEventDTO(event),
	}
}
