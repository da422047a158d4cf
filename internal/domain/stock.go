package domain

import (
	"fmt"
	"sort"
	"time"
)

type StockKey struct {
	VariantID   int64
	WarehouseID int64
}

func (k StockKey) String() string {
	return fmt.Sprintf("%d:%d", k.VariantID, k.WarehouseID)
}

// Less orders keys by warehouse then variant. Every code path that locks
// more than one balance row takes the locks in this order.
func (k StockKey) Less(other StockKey) bool {
	if k.WarehouseID != other.WarehouseID {
		return k.WarehouseID < other.WarehouseID
	}
	return k.VariantID < other.VariantID
}

type StockBalance struct {
	VariantID   int64
	WarehouseID int64
	QtyOnHand   int
	QtyReserved int
	UpdatedAt   time.Time
}

func (b StockBalance) Key() StockKey {
	return StockKey{VariantID: b.VariantID, WarehouseID: b.WarehouseID}
}

// Available is always derived from on hand and reserved; the stored column
// is only an index helper.
func (b StockBalance) Available() int {
	available := b.QtyOnHand - b.QtyReserved
	if available < 0 {
		return 0
	}
	return available
}

type Lot struct {
	ID           string
	VariantID    int64
	WarehouseID  int64
	LotNumber    string
	ExpiryDate   *time.Time
	QtyAvailable int
	ReceivedAt   time.Time
}

// LotLess reports whether a must be consumed before b.
type LotLess func(a, b Lot) bool

func byExpiry(a, b Lot) bool {
	switch {
	case a.ExpiryDate == nil && b.ExpiryDate != nil:
		return false
	case a.ExpiryDate != nil && b.ExpiryDate == nil:
		return true
	case a.ExpiryDate != nil && b.ExpiryDate != nil && !a.ExpiryDate.Equal(*b.ExpiryDate):
		return a.ExpiryDate.Before(*b.ExpiryDate)
	}
	return byReceipt(a, b)
}

func byReceipt(a, b Lot) bool {
	if !a.ReceivedAt.Equal(b.ReceivedAt) {
		return a.ReceivedAt.Before(b.ReceivedAt)
	}
	return a.ID < b.ID
}

// LotOrdering picks FEFO for lot-tracked variants and FIFO otherwise.
func LotOrdering(v ProductVariant) LotLess {
	if v.LotTracked {
		return byExpiry
	}
	return byReceipt
}

func SortLots(lots []Lot, less LotLess) {
	sort.SliceStable(lots, func(i, j int) bool { return less(lots[i], lots[j]) })
}

func SumLots(lots []Lot) int {
	total := 0
	for _, l := range lots {
		total += l.QtyAvailable
	}
	return total
}
