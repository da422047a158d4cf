package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(s string) *time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return &t
}

func TestStockBalance_Available(t *testing.T) {
	assert.Equal(t, 5, StockBalance{QtyOnHand: 5}.Available())
	assert.Equal(t, 2, StockBalance{QtyOnHand: 10, QtyReserved: 8}.Available())
	assert.Equal(t, 0, StockBalance{QtyOnHand: 3, QtyReserved: 7}.Available())
}

func TestLotOrdering_FEFO(t *testing.T) {
	received := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	lots := []Lot{
		{ID: "no-expiry", ExpiryDate: nil, QtyAvailable: 5, ReceivedAt: received.Add(-time.Hour)},
		{ID: "L2", ExpiryDate: date("2024-06-01"), QtyAvailable: 50, ReceivedAt: received},
		{ID: "L1", ExpiryDate: date("2024-01-01"), QtyAvailable: 10, ReceivedAt: received.Add(time.Hour)},
	}

	SortLots(lots, LotOrdering(ProductVariant{LotTracked: true}))

	assert.Equal(t, []string{"L1", "L2", "no-expiry"}, []string{lots[0].ID, lots[1].ID, lots[2].ID})
}

func TestLotOrdering_FEFO_SameExpiryFallsBackToReceipt(t *testing.T) {
	received := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	lots := []Lot{
		{ID: "b", ExpiryDate: date("2024-01-01"), ReceivedAt: received.Add(time.Hour)},
		{ID: "a", ExpiryDate: date("2024-01-01"), ReceivedAt: received},
	}

	SortLots(lots, LotOrdering(ProductVariant{LotTracked: true}))

	assert.Equal(t, "a", lots[0].ID)
}

func TestLotOrdering_FIFO(t *testing.T) {
	received := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	lots := []Lot{
		{ID: "late", ExpiryDate: date("2023-02-01"), ReceivedAt: received.Add(48 * time.Hour)},
		{ID: "early", ExpiryDate: date("2025-01-01"), ReceivedAt: received},
	}

	SortLots(lots, LotOrdering(ProductVariant{LotTracked: false}))

	assert.Equal(t, "early", lots[0].ID)
	assert.Equal(t, "late", lots[1].ID)
}

func TestStockKey_Less(t *testing.T) {
	assert.True(t, StockKey{VariantID: 9, WarehouseID: 1}.Less(StockKey{VariantID: 1, WarehouseID: 2}))
	assert.True(t, StockKey{VariantID: 1, WarehouseID: 2}.Less(StockKey{VariantID: 3, WarehouseID: 2}))
	assert.False(t, StockKey{VariantID: 3, WarehouseID: 2}.Less(StockKey{VariantID: 3, WarehouseID: 2}))
}

func TestSumLots(t *testing.T) {
	assert.Equal(t, 0, SumLots(nil))
	assert.Equal(t, 60, SumLots([]Lot{{QtyAvailable: 10}, {QtyAvailable: 50}}))
}
