package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockwise/internal/domain"
)

func TestReleaseOrder_RestoresPreAllocationState(t *testing.T) {
	store := newMemStore()
	store.variants[1] = &domain.ProductVariant{ID: 1, LotTracked: true}
	store.variants[2] = &domain.ProductVariant{ID: 2}
	key21 := domain.StockKey{VariantID: 2, WarehouseID: 1}
	store.addBalance(key11, 60, 5)
	store.addBalance(key21, 8, 0)
	store.addLot(domain.Lot{ID: "L1", VariantID: 1, WarehouseID: 1, ExpiryDate: datePtr(2025, 4, 1), QtyAvailable: 10})
	store.addLot(domain.Lot{ID: "L2", VariantID: 1, WarehouseID: 1, ExpiryDate: datePtr(2025, 6, 1), QtyAvailable: 45})
	store.addLine(domain.SalesOrderLine{ID: 1, OrderID: 7, VariantID: 1, WarehouseID: 1, OrderedQty: 30})
	store.addLine(domain.SalesOrderLine{ID: 2, OrderID: 7, VariantID: 2, WarehouseID: 1, OrderedQty: 3})

	svc := newTestLedgerService(t, store)
	ctx := context.Background()

	for _, id := range []int64{1, 2} {
		_, err := svc.AllocateLine(ctx, *store.lines[id])
		require.NoError(t, err)
	}
	require.Equal(t, 35, store.balances[key11].QtyReserved)

	res, err := svc.ReleaseOrder(ctx, 7)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Released)
	assert.Equal(t, 33, res.ReleasedQty)
	assert.Empty(t, res.FailedKeys)

	assert.Equal(t, 5, store.balances[key11].QtyReserved)
	assert.Equal(t, 0, store.balances[key21].QtyReserved)
	assert.Equal(t, 10, store.lots["L1"].QtyAvailable)
	assert.Equal(t, 45, store.lots["L2"].QtyAvailable)
	assert.Equal(t, 0, store.lines[1].AllocatedQty)
	assert.Equal(t, 0, store.lines[2].AllocatedQty)
	for _, r := range store.reservations {
		assert.Equal(t, domain.ReservationReleased, r.Status)
		assert.NotNil(t, r.ReleasedAt)
	}
}

func TestReleaseOrder_IsIdempotent(t *testing.T) {
	store := newMemStore()
	store.variants[1] = &domain.ProductVariant{ID: 1}
	store.addBalance(key11, 10, 0)
	store.addLine(domain.SalesOrderLine{ID: 1, OrderID: 7, VariantID: 1, WarehouseID: 1, OrderedQty: 4})

	svc := newTestLedgerService(t, store)
	ctx := context.Background()

	_, err := svc.AllocateLine(ctx, *store.lines[1])
	require.NoError(t, err)

	_, err = svc.ReleaseOrder(ctx, 7)
	require.NoError(t, err)

	res, err := svc.ReleaseOrder(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Released)
	assert.Equal(t, 0, store.balances[key11].QtyReserved)
}

func TestReleaseOrder_NothingAllocated(t *testing.T) {
	svc := newTestLedgerService(t, newMemStore())

	res, err := svc.ReleaseOrder(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), res.OrderID)
	assert.Equal(t, 0, res.Released)
}

func TestReleaseOrder_FailedKeyDoesNotBlockOthers(t *testing.T) {
	store := newMemStore()
	store.variants[1] = &domain.ProductVariant{ID: 1}
	store.variants[2] = &domain.ProductVariant{ID: 2}
	key21 := domain.StockKey{VariantID: 2, WarehouseID: 1}
	store.addBalance(key11, 10, 0)
	store.addBalance(key21, 10, 0)
	store.addLine(domain.SalesOrderLine{ID: 1, OrderID: 7, VariantID: 1, WarehouseID: 1, OrderedQty: 2})
	store.addLine(domain.SalesOrderLine{ID: 2, OrderID: 7, VariantID: 2, WarehouseID: 1, OrderedQty: 2})

	svc := newTestLedgerService(t, store)
	ctx := context.Background()
	for _, id := range []int64{1, 2} {
		_, err := svc.AllocateLine(ctx, *store.lines[id])
		require.NoError(t, err)
	}

	// key11 sorts first; its balance row vanishing makes the lock fail.
	delete(store.balances, key11)

	res, err := svc.ReleaseOrder(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []domain.StockKey{key11}, res.FailedKeys)
	assert.Equal(t, 1, res.Released)
	assert.Equal(t, 0, store.balances[key21].QtyReserved)
}
