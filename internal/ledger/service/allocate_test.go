package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockwise/internal/domain"
	apperrors "stockwise/internal/errors"
)

var key11 = domain.StockKey{VariantID: 1, WarehouseID: 1}

func TestAllocateLine_FEFOConsumesEarliestExpiryFirst(t *testing.T) {
	store := newMemStore()
	store.variants[1] = &domain.ProductVariant{ID: 1, SKU: "MILK-1L", LotTracked: true}
	store.addBalance(key11, 60, 0)
	store.addLot(domain.Lot{ID: "L2", VariantID: 1, WarehouseID: 1, ExpiryDate: datePtr(2025, 6, 1), QtyAvailable: 50})
	store.addLot(domain.Lot{ID: "L1", VariantID: 1, WarehouseID: 1, ExpiryDate: datePtr(2025, 4, 1), QtyAvailable: 10})
	store.addLine(domain.SalesOrderLine{ID: 100, OrderID: 7, VariantID: 1, WarehouseID: 1, OrderedQty: 30})

	svc := newTestLedgerService(t, store)

	res, err := svc.AllocateLine(context.Background(), *store.lines[100])
	require.NoError(t, err)

	assert.Equal(t, 30, res.Allocated)
	assert.Equal(t, 0, res.Shortage)
	require.Len(t, res.Reservations, 2)
	assert.Equal(t, "L1", *res.Reservations[0].LotID)
	assert.Equal(t, 10, res.Reservations[0].QtyReserved)
	assert.Equal(t, "L2", *res.Reservations[1].LotID)
	assert.Equal(t, 20, res.Reservations[1].QtyReserved)

	assert.Equal(t, 0, store.lots["L1"].QtyAvailable)
	assert.Equal(t, 30, store.lots["L2"].QtyAvailable)
	assert.Equal(t, 30, store.balances[key11].QtyReserved)
	assert.Equal(t, 60, store.balances[key11].QtyOnHand)
	assert.Equal(t, 30, store.lines[100].AllocatedQty)
}

func TestAllocateLine_FIFOForUntrackedVariant(t *testing.T) {
	store := newMemStore()
	store.variants[1] = &domain.ProductVariant{ID: 1}
	store.addBalance(key11, 20, 0)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	// Expiry is ignored for untracked variants.
	store.addLot(domain.Lot{ID: "A", VariantID: 1, WarehouseID: 1, ExpiryDate: datePtr(2025, 2, 1), QtyAvailable: 10, ReceivedAt: base.Add(48 * time.Hour)})
	store.addLot(domain.Lot{ID: "B", VariantID: 1, WarehouseID: 1, ExpiryDate: datePtr(2026, 2, 1), QtyAvailable: 10, ReceivedAt: base})
	store.addLine(domain.SalesOrderLine{ID: 1, OrderID: 1, VariantID: 1, WarehouseID: 1, OrderedQty: 5})

	svc := newTestLedgerService(t, store)

	res, err := svc.AllocateLine(context.Background(), *store.lines[1])
	require.NoError(t, err)
	require.Len(t, res.Reservations, 1)
	assert.Equal(t, "B", *res.Reservations[0].LotID)
	assert.Equal(t, 5, store.lots["B"].QtyAvailable)
	assert.Equal(t, 10, store.lots["A"].QtyAvailable)
}

func TestAllocateLine_PartialFromUnlottedStock(t *testing.T) {
	store := newMemStore()
	store.variants[1] = &domain.ProductVariant{ID: 1}
	store.addBalance(key11, 5, 0)
	store.addLine(domain.SalesOrderLine{ID: 1, OrderID: 1, VariantID: 1, WarehouseID: 1, OrderedQty: 10})

	svc := newTestLedgerService(t, store)

	res, err := svc.AllocateLine(context.Background(), *store.lines[1])
	require.NoError(t, err)

	assert.Equal(t, 10, res.Requested)
	assert.Equal(t, 5, res.Allocated)
	assert.Equal(t, 5, res.Shortage)
	require.Len(t, res.Reservations, 1)
	assert.Nil(t, res.Reservations[0].LotID)
	assert.Equal(t, 5, store.balances[key11].QtyReserved)
}

func TestAllocateLine_LotsBeforeUnlottedStock(t *testing.T) {
	store := newMemStore()
	store.variants[1] = &domain.ProductVariant{ID: 1, LotTracked: true}
	store.addBalance(key11, 12, 0)
	store.addLot(domain.Lot{ID: "L1", VariantID: 1, WarehouseID: 1, QtyAvailable: 4})
	store.addLine(domain.SalesOrderLine{ID: 1, OrderID: 1, VariantID: 1, WarehouseID: 1, OrderedQty: 6})

	svc := newTestLedgerService(t, store)

	res, err := svc.AllocateLine(context.Background(), *store.lines[1])
	require.NoError(t, err)
	require.Len(t, res.Reservations, 2)
	assert.Equal(t, 4, res.Reservations[0].QtyReserved)
	assert.Nil(t, res.Reservations[1].LotID)
	assert.Equal(t, 2, res.Reservations[1].QtyReserved)
	assert.Equal(t, 6, store.balances[key11].QtyReserved)
}

func TestAllocateLine_NoBalanceIsFullShortage(t *testing.T) {
	store := newMemStore()
	store.variants[1] = &domain.ProductVariant{ID: 1}
	store.addLine(domain.SalesOrderLine{ID: 1, OrderID: 1, VariantID: 1, WarehouseID: 1, OrderedQty: 3})

	svc := newTestLedgerService(t, store)

	res, err := svc.AllocateLine(context.Background(), *store.lines[1])
	require.NoError(t, err)
	assert.Equal(t, 0, res.Allocated)
	assert.Equal(t, 3, res.Shortage)
	assert.Empty(t, res.Reservations)
	assert.Empty(t, store.reservations)
}

func TestAllocateLine_SecondPassOnlyTakesRemaining(t *testing.T) {
	store := newMemStore()
	store.variants[1] = &domain.ProductVariant{ID: 1}
	store.addBalance(key11, 4, 0)
	store.addLine(domain.SalesOrderLine{ID: 1, OrderID: 1, VariantID: 1, WarehouseID: 1, OrderedQty: 10})

	svc := newTestLedgerService(t, store)
	ctx := context.Background()

	_, err := svc.AllocateLine(ctx, *store.lines[1])
	require.NoError(t, err)

	store.balances[key11].QtyOnHand = 20

	res, err := svc.AllocateLine(ctx, *store.lines[1])
	require.NoError(t, err)
	assert.Equal(t, 6, res.Requested)
	assert.Equal(t, 6, res.Allocated)
	assert.Equal(t, 10, store.lines[1].AllocatedQty)
	assert.Equal(t, 10, store.balances[key11].QtyReserved)

	res, err = svc.AllocateLine(ctx, *store.lines[1])
	require.NoError(t, err)
	assert.Equal(t, 0, res.Requested)
	assert.Empty(t, res.Reservations)
}

func TestAllocateLine_RetriesOnDeadlock(t *testing.T) {
	store := newMemStore()
	store.variants[1] = &domain.ProductVariant{ID: 1}
	store.addBalance(key11, 10, 0)
	store.addLine(domain.SalesOrderLine{ID: 1, OrderID: 1, VariantID: 1, WarehouseID: 1, OrderedQty: 2})
	store.lockErrs = []error{&mysql.MySQLError{Number: 1213}}

	svc := newTestLedgerService(t, store)

	res, err := svc.AllocateLine(context.Background(), *store.lines[1])
	require.NoError(t, err)
	assert.Equal(t, 2, res.Allocated)
}

func TestAllocateLine_GivesUpAfterMaxRetries(t *testing.T) {
	store := newMemStore()
	store.variants[1] = &domain.ProductVariant{ID: 1}
	store.addBalance(key11, 10, 0)
	store.addLine(domain.SalesOrderLine{ID: 1, OrderID: 1, VariantID: 1, WarehouseID: 1, OrderedQty: 2})
	deadlock := &mysql.MySQLError{Number: 1213}
	store.lockErrs = []error{deadlock, deadlock, deadlock}

	svc := newTestLedgerService(t, store)

	_, err := svc.AllocateLine(context.Background(), *store.lines[1])
	_, ok := apperrors.IsDeadlockError(err)
	assert.True(t, ok)
	assert.Empty(t, store.reservations)
}

func TestAllocateLine_UnknownVariant(t *testing.T) {
	store := newMemStore()
	svc := newTestLedgerService(t, store)

	_, err := svc.AllocateLine(context.Background(), domain.SalesOrderLine{ID: 1, VariantID: 99, WarehouseID: 1, OrderedQty: 1})
	_, ok := apperrors.IsNotFoundError(err)
	assert.True(t, ok)
}
