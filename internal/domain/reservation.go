package domain

import "time"

type ReservationStatus string

const (
	ReservationActive   ReservationStatus = "active"
	ReservationReleased ReservationStatus = "released"
)

// Reservation holds quantity for one sales order line. LotID is nil when
// the quantity came from stock that was never received into a lot.
type Reservation struct {
	ID          string
	OrderID     int64
	OrderLineID int64
	VariantID   int64
	WarehouseID int64
	LotID       *string
	QtyReserved int
	Status      ReservationStatus
	CreatedAt   time.Time
	ReleasedAt  *time.Time
}

func (r Reservation) Key() StockKey {
	return StockKey{VariantID: r.VariantID, WarehouseID: r.WarehouseID}
}
