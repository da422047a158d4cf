package domain

import "time"

type SalesOrder struct {
	ID          int64
	OrderNumber string
	Status      string
	Lines       []SalesOrderLine
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const (
	OrderStatusDraft     = "draft"
	OrderStatusConfirmed = "confirmed"
	OrderStatusPartial   = "partial"
	OrderStatusAllocated = "allocated"
	OrderStatusCancelled = "cancelled"
)

// CanAllocate reports whether the order may take (more) reservations.
func (o SalesOrder) CanAllocate() bool {
	switch o.Status {
	case OrderStatusConfirmed, OrderStatusPartial, OrderStatusAllocated:
		return true
	}
	return false
}

// AllocationStatus derives the order status from its lines.
func (o SalesOrder) AllocationStatus() string {
	for _, l := range o.Lines {
		if l.Remaining() > 0 {
			return OrderStatusPartial
		}
	}
	return OrderStatusAllocated
}

type SalesOrderLine struct {
	ID           int64
	OrderID      int64
	VariantID    int64
	WarehouseID  int64
	OrderedQty   int
	AllocatedQty int
}

func (l SalesOrderLine) Key() StockKey {
	return StockKey{VariantID: l.VariantID, WarehouseID: l.WarehouseID}
}

func (l SalesOrderLine) Remaining() int {
	remaining := l.OrderedQty - l.AllocatedQty
	if remaining < 0 {
		return 0
	}
	return remaining
}
