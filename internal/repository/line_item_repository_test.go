package repository_test

import (
	"context"
	"testing"

	"github.com/straye-as/purchasing-api/internal/domain"
	"github.com/straye-as/purchasing-api/internal/repository"
	"github.com/straye-as/purchasing-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineItemRepository_UpdateLedgerChecksVersion(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewLineItemRepository(db)
	ctx := context.Background()

	req := testutil.CreateTestRequest(t, db, domain.RequestStatusPending, "100")
	item, err := repo.GetByID(ctx, req.LineItems[0].ID)
	require.NoError(t, err)
	require.Equal(t, 0, item.Version)

	// a stale copy of the same row
	stale := *item

	item.RemainingQuantity = testutil.Dec(t, "60")
	ok, err := repo.UpdateLedger(ctx, item, 0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, item.Version)

	stale.RemainingQuantity = testutil.Dec(t, "90")
	ok, err = repo.UpdateLedger(ctx, &stale, stale.Version)
	require.NoError(t, err)
	assert.False(t, ok, "stale version must not overwrite")

	reloaded, err := repo.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.RemainingQuantity.Equal(testutil.Dec(t, "60")))
	assert.Equal(t, 1, reloaded.Version)
	require.NotNil(t, reloaded.OriginalQuantity)
	assert.True(t, reloaded.OriginalQuantity.Equal(testutil.Dec(t, "100")))
}

func TestLineItemRepository_ListByRequest(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewLineItemRepository(db)

	req := testutil.CreateTestRequest(t, db, domain.RequestStatusPending, "10", "20", "30")
	testutil.CreateTestRequest(t, db, domain.RequestStatusPending, "5")

	items, err := repo.ListByRequest(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Len(t, items, 3)
	for _, it := range items {
		assert.Equal(t, req.ID, it.PurchaseRequestID)
	}
}
