package testutil

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/purchasing-api/internal/database"
	"github.com/straye-as/purchasing-api/internal/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB returns a migrated in-memory SQLite database private to the test.
// The pool is pinned to one connection so every query sees the same memory DB.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		// unique violations surface as gorm.ErrDuplicatedKey on both drivers
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.AutoMigrate(db))

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

// Dec parses a decimal literal and fails the test on error.
func Dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

// CreateTestSupplier inserts an active supplier.
func CreateTestSupplier(t *testing.T, db *gorm.DB, name string) *domain.Supplier {
	t.Helper()
	s := &domain.Supplier{Name: name, City: "Istanbul", Status: domain.SupplierStatusActive}
	require.NoError(t, db.Create(s).Error)
	return s
}

// CreateTestRequest inserts a purchase request with one line item per quantity.
// Items start with OriginalQuantity equal to the quantity.
func CreateTestRequest(t *testing.T, db *gorm.DB, status domain.RequestStatus, quantities ...string) *domain.PurchaseRequest {
	t.Helper()
	req := &domain.PurchaseRequest{
		RequestNumber:   "PR-TEST-" + uuid.NewString()[:8],
		Title:           "Rebar for block C",
		Site:            "Kadikoy",
		Status:          status,
		RequestedByID:   "site-user",
		RequestedByName: "Site User",
	}
	for _, q := range quantities {
		qty := Dec(t, q)
		original := qty
		req.LineItems = append(req.LineItems, domain.LineItem{
			Material:          "Rebar 12mm",
			OriginalQuantity:  &original,
			RemainingQuantity: qty,
			Unit:              "kg",
		})
	}
	require.NoError(t, db.Create(req).Error)
	return req
}

// CreateLegacyLineItem inserts an item without OriginalQuantity, as rows
// written before shipment tracking look.
func CreateLegacyLineItem(t *testing.T, db *gorm.DB, requestID uuid.UUID, remaining string) *domain.LineItem {
	t.Helper()
	item := &domain.LineItem{
		PurchaseRequestID: requestID,
		Material:          "Cement",
		RemainingQuantity: Dec(t, remaining),
		Unit:              "bag",
	}
	require.NoError(t, db.Create(item).Error)
	return item
}

// CreateTestOrder inserts an order in the ordered state.
func CreateTestOrder(t *testing.T, db *gorm.DB, requestID, supplierID uuid.UUID, amount, currency string, deliveryDate *time.Time) *domain.Order {
	t.Helper()
	o := &domain.Order{
		PurchaseRequestID: requestID,
		SupplierID:        supplierID,
		Amount:            Dec(t, amount),
		Currency:          currency,
		Status:            domain.OrderStatusOrdered,
		DeliveryDate:      deliveryDate,
	}
	require.NoError(t, db.Create(o).Error)
	return o
}
