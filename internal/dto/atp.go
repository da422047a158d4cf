package dto

import "time"

type ATPCheckRequest struct {
	ProductVariantID int64  `json:"productVariantId"`
	WarehouseID      *int64 `json:"warehouseId,omitempty"`
	RequiredQty      int    `json:"requiredQty"`
}

type ATPCheckResponse struct {
	TraceID          string    `json:"traceId"`
	ProductVariantID int64     `json:"productVariantId"`
	WarehouseID      *int64    `json:"warehouseId,omitempty"`
	CanFulfill       bool      `json:"canFulfill"`
	Shortage         int       `json:"shortage"`
	OnHand           int       `json:"onHand"`
	Reserved         int       `json:"reserved"`
	Available        int       `json:"available"`
	Timestamp        time.Time `json:"timestamp"`
}
