package dto

import "stockwise/internal/domain"

// LineAllocation is the outcome of one allocation pass over an order line.
// Err is set when the line could not be processed at all; the other lines
// of the order are unaffected.
type LineAllocation struct {
	LineID       int64
	VariantID    int64
	WarehouseID  int64
	Requested    int
	Allocated    int
	Shortage     int
	Reservations []domain.Reservation
	Err          error
}

type AllocationResult struct {
	Order   domain.SalesOrder
	Lines   []LineAllocation
	Partial bool
}

type ReleaseResult struct {
	OrderID      int64
	Released     int
	ReleasedQty  int
	FailedKeys   []domain.StockKey
	Reservations []domain.Reservation
}
