package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/straye-as/purchasing-api/internal/domain"
	"github.com/straye-as/purchasing-api/internal/lock"
	"github.com/straye-as/purchasing-api/internal/repository"
	"github.com/straye-as/purchasing-api/internal/service"
	"github.com/straye-as/purchasing-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func ship(t *testing.T, s *services, item domain.LineItem, qty string) *domain.ShipmentResultDTO {
	t.Helper()
	res, err := s.shipments.RecordShipment(context.Background(), item.ID,
		&domain.RecordShipmentRequest{Quantity: testutil.Dec(t, qty)}, warehouseActor)
	require.NoError(t, err)
	return res
}

func TestRecordShipment_PartialThenFull(t *testing.T) {
	s := newServices(t)
	req := testutil.CreateTestRequest(t, s.db, domain.RequestStatusSiteManagerApproved, "100", "50")
	first, second := req.LineItems[0], req.LineItems[1]

	res := ship(t, s, first, "40")
	assert.False(t, res.FullyFulfilled)
	assert.True(t, res.RemainingQuantity.Equal(testutil.Dec(t, "60")))
	assert.Equal(t, domain.RequestStatusPartiallyShipped, res.RequestStatus)
	assert.False(t, res.Replayed)

	res = ship(t, s, first, "60")
	assert.True(t, res.FullyFulfilled)
	assert.Equal(t, domain.RequestStatusPartiallyShipped, res.RequestStatus)

	res = ship(t, s, second, "50")
	assert.True(t, res.FullyFulfilled)
	assert.Equal(t, domain.RequestStatusShipped, res.RequestStatus)

	got := s.reload(t, req)
	assert.Equal(t, domain.RequestStatusShipped, got.Status)
	versions := map[uuid.UUID]int{first.ID: 2, second.ID: 1}
	for _, li := range got.LineItems {
		assert.True(t, li.RemainingQuantity.IsZero())
		assert.Equal(t, versions[li.ID], li.Version)
	}

	history, err := s.requests.History(context.Background(), req.ID, adminActor)
	require.NoError(t, err)
	require.Len(t, history, 2, "pending->partially and partially->shipped")
	for _, h := range history {
		assert.Equal(t, domain.StatusChangeReconcile, h.Source)
	}
}

func TestRecordShipment_OverShipmentLeavesNoTrace(t *testing.T) {
	s := newServices(t)
	req := testutil.CreateTestRequest(t, s.db, domain.RequestStatusOrdered, "10")
	item := req.LineItems[0]

	for _, qty := range []string{"11", "0", "-3"} {
		_, err := s.shipments.RecordShipment(context.Background(), item.ID,
			&domain.RecordShipmentRequest{Quantity: testutil.Dec(t, qty)}, warehouseActor)
		assert.ErrorIs(t, err, service.ErrInvalidQuantity, qty)
	}

	got := s.reload(t, req)
	assert.Equal(t, domain.RequestStatusOrdered, got.Status)
	assert.True(t, got.LineItems[0].RemainingQuantity.Equal(testutil.Dec(t, "10")))
	assert.Equal(t, 0, got.LineItems[0].Version)

	count, err := repository.NewShipmentEventRepository(s.db).CountByRequest(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRecordShipment_BackfillsLegacyItem(t *testing.T) {
	s := newServices(t)
	req := testutil.CreateTestRequest(t, s.db, domain.RequestStatusOrdered)
	legacy := testutil.CreateLegacyLineItem(t, s.db, req.ID, "30")

	res := ship(t, s, *legacy, "10")
	assert.True(t, res.RemainingQuantity.Equal(testutil.Dec(t, "20")))

	item, err := repository.NewLineItemRepository(s.db).GetByID(context.Background(), legacy.ID)
	require.NoError(t, err)
	require.NotNil(t, item.OriginalQuantity)
	assert.True(t, item.OriginalQuantity.Equal(testutil.Dec(t, "30")))

	ship(t, s, *item, "5")
	item, err = repository.NewLineItemRepository(s.db).GetByID(context.Background(), legacy.ID)
	require.NoError(t, err)
	assert.True(t, item.OriginalQuantity.Equal(testutil.Dec(t, "30")), "original is set once")
	assert.True(t, item.RemainingQuantity.Equal(testutil.Dec(t, "15")))
}

func TestRecordShipment_IdempotencyKeyReplays(t *testing.T) {
	s := newServices(t)
	req := testutil.CreateTestRequest(t, s.db, domain.RequestStatusOrdered, "100")
	item := req.LineItems[0]
	in := &domain.RecordShipmentRequest{Quantity: testutil.Dec(t, "30"), IdempotencyKey: "scan-1"}

	first, err := s.shipments.RecordShipment(context.Background(), item.ID, in, warehouseActor)
	require.NoError(t, err)
	ship(t, s, item, "20")

	again, err := s.shipments.RecordShipment(context.Background(), item.ID, in, warehouseActor)
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.Event.ID, again.Event.ID)
	assert.True(t, again.RemainingQuantity.Equal(testutil.Dec(t, "70")), "outcome as of the original event")

	got := s.reload(t, req)
	assert.True(t, got.LineItems[0].RemainingQuantity.Equal(testutil.Dec(t, "50")))

	count, err := repository.NewShipmentEventRepository(s.db).CountByRequest(context.Background(), req.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

// A submission that loses the insert race to a concurrent one with the same
// key replays the committed event instead of failing.
func TestRecordShipment_ConcurrentSameKeyReplays(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	req := testutil.CreateTestRequest(t, s.db, domain.RequestStatusOrdered, "10")
	item := req.LineItems[0]

	key := "scan-7"
	committed := &domain.ShipmentEvent{
		LineItemID: item.ID, PurchaseRequestID: req.ID,
		ShippedQuantity: testutil.Dec(t, "4"), RemainingAfter: testutil.Dec(t, "6"),
		ShippedAt: testNow, ShippedByID: warehouseActor.ID, ShippedByName: warehouseActor.Name,
		IdempotencyKey: &key,
	}
	require.NoError(t, repository.NewShipmentEventRepository(s.db).Append(ctx, committed))

	// the in-transaction key lookup runs before the other submission commits
	hidden := false
	require.NoError(t, s.db.Callback().Query().After("gorm:query").Register("test:hide_committed_event", func(tx *gorm.DB) {
		if hidden || tx.Statement.Table != "shipment_events" {
			return
		}
		if _, ok := tx.Statement.Dest.(*domain.ShipmentEvent); ok {
			hidden = true
			tx.RowsAffected = 0
			tx.AddError(gorm.ErrRecordNotFound)
		}
	}))

	res, err := s.shipments.RecordShipment(ctx, item.ID,
		&domain.RecordShipmentRequest{Quantity: testutil.Dec(t, "4"), IdempotencyKey: key}, warehouseActor)
	require.NoError(t, err)
	assert.True(t, hidden)
	assert.True(t, res.Replayed)
	assert.Equal(t, committed.ID, res.Event.ID)
	assert.True(t, res.RemainingQuantity.Equal(testutil.Dec(t, "6")))
	assert.Equal(t, domain.RequestStatusOrdered, res.RequestStatus)

	got := s.reload(t, req)
	assert.True(t, got.LineItems[0].RemainingQuantity.Equal(testutil.Dec(t, "10")), "the losing submission wrote nothing")
	count, err := repository.NewShipmentEventRepository(s.db).CountByRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestRecordShipment_Guards(t *testing.T) {
	s := newServices(t)
	req := testutil.CreateTestRequest(t, s.db, domain.RequestStatusOrdered, "10")
	rejected := testutil.CreateTestRequest(t, s.db, domain.RequestStatusRejected, "10")
	ctx := context.Background()
	in := &domain.RecordShipmentRequest{Quantity: testutil.Dec(t, "1")}

	_, err := s.shipments.RecordShipment(ctx, req.LineItems[0].ID, in, sitePersonActor)
	assert.ErrorIs(t, err, service.ErrForbidden)

	_, err = s.shipments.RecordShipment(ctx, rejected.LineItems[0].ID, in, warehouseActor)
	assert.ErrorIs(t, err, service.ErrInvalidTransition)

	_, err = s.shipments.RecordShipment(ctx, uuid.New(), in, warehouseActor)
	assert.ErrorIs(t, err, service.ErrLineItemNotFound)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

type busyLocker struct{}

func (busyLocker) Acquire(context.Context, string) (lock.ReleaseFunc, error) {
	return nil, lock.ErrNotObtained
}

type failingLocker struct{}

func (failingLocker) Acquire(context.Context, string) (lock.ReleaseFunc, error) {
	return nil, errors.New("redis down")
}

func TestRecordShipment_LockNotObtained(t *testing.T) {
	s := newServices(t, withLocker(busyLocker{}))
	req := testutil.CreateTestRequest(t, s.db, domain.RequestStatusOrdered, "10")

	_, err := s.shipments.RecordShipment(context.Background(), req.LineItems[0].ID,
		&domain.RecordShipmentRequest{Quantity: testutil.Dec(t, "1")}, warehouseActor)
	assert.ErrorIs(t, err, service.ErrResourceBusy)

	s = newServices(t, withLocker(failingLocker{}))
	req = testutil.CreateTestRequest(t, s.db, domain.RequestStatusOrdered, "10")
	_, err = s.shipments.RecordShipment(context.Background(), req.LineItems[0].ID,
		&domain.RecordShipmentRequest{Quantity: testutil.Dec(t, "1")}, warehouseActor)
	require.Error(t, err)
	assert.NotErrorIs(t, err, service.ErrResourceBusy)
}

func TestListByLineItem(t *testing.T) {
	s := newServices(t)
	req := testutil.CreateTestRequest(t, s.db, domain.RequestStatusOrdered, "10")
	item := req.LineItems[0]
	ship(t, s, item, "3")
	ship(t, s, item, "4")

	events, err := s.shipments.ListByLineItem(context.Background(), item.ID, siteManagerActor)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.True(t, events[1].RemainingAfter.Equal(testutil.Dec(t, "3")))
	assert.Equal(t, warehouseActor.ID, events[0].ShippedByID)
}
