package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/purchasing-api/internal/domain"
	"github.com/straye-as/purchasing-api/internal/fulfillment"
	"github.com/straye-as/purchasing-api/internal/repository"
	"gorm.io/gorm"
)

// statusWriter moves purchase requests between statuses inside a caller
// owned transaction and records every change in the status history.
type statusWriter struct {
	requestRepo  *repository.PurchaseRequestRepository
	lineItemRepo *repository.LineItemRepository
	eventRepo    *repository.ShipmentEventRepository
	historyRepo  *repository.StatusHistoryRepository
}

func newStatusWriter(tx *gorm.DB) *statusWriter {
	return &statusWriter{
		requestRepo:  repository.NewPurchaseRequestRepository(tx),
		lineItemRepo: repository.NewLineItemRepository(tx),
		eventRepo:    repository.NewShipmentEventRepository(tx),
		historyRepo:  repository.NewStatusHistoryRepository(tx),
	}
}

// lockRequest loads the request row for update.
func (w *statusWriter) lockRequest(ctx context.Context, id uuid.UUID) (*domain.PurchaseRequest, error) {
	req, err := w.requestRepo.GetForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPurchaseRequestNotFound
		}
		return nil, fmt.Errorf("failed to load purchase request: %w", err)
	}
	return req, nil
}

// reconcile re-derives the request's status from its ledger. It returns the
// request with its line items loaded and whether the status changed.
func (w *statusWriter) reconcile(ctx context.Context, req *domain.PurchaseRequest, actor domain.Actor, at time.Time) (bool, error) {
	items, err := w.lineItemRepo.ListByRequest(ctx, req.ID)
	if err != nil {
		return false, fmt.Errorf("failed to load line items: %w", err)
	}
	req.LineItems = items

	count, err := w.eventRepo.CountByRequest(ctx, req.ID)
	if err != nil {
		return false, fmt.Errorf("failed to count shipments: %w", err)
	}

	next := fulfillment.Reconcile(req.Status, items, count > 0)
	if next == req.Status {
		return false, nil
	}
	if err := w.apply(ctx, req, next, domain.StatusChangeReconcile, actor, "", at); err != nil {
		return false, err
	}
	return true, nil
}

// heldByManualChange reports whether the request's latest status change was an
// explicit user transition. Reconciling outside a shipment commit leaves such
// a status in place; the next shipment reconciles it as usual. The creation
// row has no from status and does not count.
func (w *statusWriter) heldByManualChange(ctx context.Context, req *domain.PurchaseRequest) (bool, error) {
	latest, err := w.historyRepo.Latest(ctx, req.ID)
	if err != nil {
		return false, fmt.Errorf("failed to load status history: %w", err)
	}
	return latest != nil && latest.Source == domain.StatusChangeManual && latest.FromStatus != nil, nil
}

// apply persists the new status and appends a history row.
func (w *statusWriter) apply(ctx context.Context, req *domain.PurchaseRequest, to domain.RequestStatus, source domain.StatusChangeSource, actor domain.Actor, notes string, at time.Time) error {
	from := req.Status
	if err := w.requestRepo.UpdateStatus(ctx, req.ID, to); err != nil {
		return fmt.Errorf("failed to update request status: %w", err)
	}
	history := &domain.StatusHistory{
		PurchaseRequestID: req.ID,
		FromStatus:        &from,
		ToStatus:          to,
		Source:            source,
		ChangedByID:       actor.ID,
		ChangedByName:     actor.Name,
		Notes:             notes,
		ChangedAt:         at,
	}
	if err := w.historyRepo.Create(ctx, history); err != nil {
		return fmt.Errorf("failed to record status history: %w", err)
	}
	req.Status = to
	return nil
}
