package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/straye-as/purchasing-api/internal/config"
	"github.com/straye-as/purchasing-api/internal/domain"
	"github.com/straye-as/purchasing-api/internal/fulfillment"
	"github.com/straye-as/purchasing-api/internal/lock"
	"github.com/straye-as/purchasing-api/internal/repository"
	"github.com/straye-as/purchasing-api/internal/service"
	"github.com/straye-as/purchasing-api/internal/storage"
	"github.com/straye-as/purchasing-api/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	warehouseActor   = domain.Actor{ID: "wh-1", Name: "Depo Sorumlusu", Roles: []domain.UserRoleType{domain.RoleWarehouse}}
	siteManagerActor = domain.Actor{ID: "sm-1", Name: "Santiye Sefi", Roles: []domain.UserRoleType{domain.RoleSiteManager}}
	sitePersonActor  = domain.Actor{ID: "sp-1", Name: "Saha Personeli", Roles: []domain.UserRoleType{domain.RoleSitePersonnel}}
	purchasingActor  = domain.Actor{ID: "pu-1", Name: "Satin Alma", Roles: []domain.UserRoleType{domain.RolePurchasing}}
	adminActor       = domain.Actor{ID: "ad-1", Name: "Admin", Roles: []domain.UserRoleType{domain.RoleAdmin}}
)

// 2026-03-10 10:00 in Istanbul.
var testNow = time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)

type services struct {
	db        *gorm.DB
	cfg       *config.FulfillmentConfig
	requests  *service.PurchaseRequestService
	shipments *service.ShipmentService
	orders    *service.OrderService
	invoices  *service.InvoiceService
	suppliers *service.SupplierService
}

type options struct {
	locker lock.Locker
	clock  fulfillment.Clock
	policy fulfillment.AggregatorPolicy
}

func newServices(t *testing.T, opts ...func(*options)) *services {
	t.Helper()

	o := options{
		locker: lock.NopLocker{},
		clock:  fulfillment.FixedClock{T: testNow},
		policy: fulfillment.AggregatorPolicy{StrictAmounts: true, NegativeTotals: fulfillment.NegativeTotalAllow},
	}
	for _, opt := range opts {
		opt(&o)
	}

	db := testutil.NewTestDB(t)
	logger := zap.NewNop()
	cfg := &config.FulfillmentConfig{
		StrictAmountParsing:      o.policy.StrictAmounts,
		NegativeGrandTotalPolicy: string(o.policy.NegativeTotals),
		DeliveryTimezone:         "Europe/Istanbul",
		RequestNumberPrefix:      "PR",
	}

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	requestRepo := repository.NewPurchaseRequestRepository(db)
	lineItemRepo := repository.NewLineItemRepository(db)
	eventRepo := repository.NewShipmentEventRepository(db)
	historyRepo := repository.NewStatusHistoryRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	supplierRepo := repository.NewSupplierRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	groupRepo := repository.NewInvoiceGroupRepository(db)
	numberSeqRepo := repository.NewNumberSequenceRepository(db)

	return &services{
		db:        db,
		cfg:       cfg,
		requests:  service.NewPurchaseRequestService(requestRepo, eventRepo, historyRepo, orderRepo, numberSeqRepo, cfg, o.clock, logger, db),
		shipments: service.NewShipmentService(lineItemRepo, eventRepo, o.locker, o.clock, logger, db),
		orders:    service.NewOrderService(orderRepo, supplierRepo, cfg, o.clock, logger, db),
		invoices:  service.NewInvoiceService(invoiceRepo, groupRepo, orderRepo, requestRepo, store, fulfillment.NewAggregator(o.policy), logger, db),
		suppliers: service.NewSupplierService(supplierRepo, logger),
	}
}

func withLocker(l lock.Locker) func(*options) {
	return func(o *options) { o.locker = l }
}

func withClock(c fulfillment.Clock) func(*options) {
	return func(o *options) { o.clock = c }
}

func withPolicy(p fulfillment.AggregatorPolicy) func(*options) {
	return func(o *options) { o.policy = p }
}

func (s *services) reload(t *testing.T, req *domain.PurchaseRequest) *domain.PurchaseRequest {
	t.Helper()
	got, err := repository.NewPurchaseRequestRepository(s.db).GetWithLineItems(context.Background(), req.ID)
	require.NoError(t, err)
	return got
}
