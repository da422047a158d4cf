package dto

import "time"

type SalesOrderLineDTO struct {
	ID               int64 `json:"id"`
	ProductVariantID int64 `json:"productVariantId"`
	WarehouseID      int64 `json:"warehouseId"`
	OrderedQty       int   `json:"orderedQty"`
	AllocatedQty     int   `json:"allocatedQty"`
}

type SalesOrderDTO struct {
	ID          int64               `json:"id"`
	OrderNumber string              `json:"orderNumber"`
	Status      string              `json:"status"`
	Lines       []SalesOrderLineDTO `json:"lines"`
}

type ReservationDTO struct {
	ID       string  `json:"id"`
	LotID    *string `json:"lotId,omitempty"`
	Quantity int     `json:"quantity"`
}

type LineAllocationDTO struct {
	LineID       int64            `json:"lineId"`
	Requested    int              `json:"requested"`
	Allocated    int              `json:"allocated"`
	Shortage     int              `json:"shortage"`
	Reservations []ReservationDTO `json:"reservations"`
	Error        string           `json:"error,omitempty"`
}

type AllocateResponse struct {
	TraceID    string              `json:"traceId"`
	SalesOrder SalesOrderDTO       `json:"salesOrder"`
	Partial    bool                `json:"partial"`
	Lines      []LineAllocationDTO `json:"lines"`
	Timestamp  time.Time           `json:"timestamp"`
}

type ReleaseResponse struct {
	TraceID     string    `json:"traceId"`
	OrderID     int64     `json:"orderId"`
	Released    int       `json:"released"`
	ReleasedQty int       `json:"releasedQty"`
	FailedKeys  []string  `json:"failedKeys"`
	Timestamp   time.Time `json:"timestamp"`
}

type ErrorResponse struct {
	TraceID   string    `json:"traceId"`
	Status    int       `json:"status"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	Timestamp time.Time `json:"timestamp"`
}
