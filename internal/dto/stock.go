package dto

import "time"

type StockSearchRequest struct {
	WarehouseID       int64   `json:"warehouseId"`
	ProductVariantIDs []int64 `json:"productVariantIds"`
}

type StockBalanceDTO struct {
	ProductVariantID int64 `json:"productVariantId"`
	WarehouseID      int64 `json:"warehouseId"`
	QtyOnHand        int   `json:"qtyOnHand"`
	QtyReserved      int   `json:"qtyReserved"`
	QtyAvailable     int   `json:"qtyAvailable"`
}

type StockSearchResponse struct {
	TraceID  string            `json:"traceId"`
	Balances []StockBalanceDTO `json:"balances"`
	NotFound []int64           `json:"notFound"`
}

type ReceiptRequest struct {
	ProductVariantID int64      `json:"productVariantId"`
	WarehouseID      int64      `json:"warehouseId"`
	Quantity         int        `json:"quantity"`
	LotNumber        string     `json:"lotNumber"`
	ExpiryDate       *time.Time `json:"expiryDate,omitempty"`
	ReceivedAt       *time.Time `json:"receivedAt,omitempty"`
}

type AdjustmentRequest struct {
	ProductVariantID int64   `json:"productVariantId"`
	WarehouseID      int64   `json:"warehouseId"`
	Delta            int     `json:"delta"`
	LotID            *string `json:"lotId,omitempty"`
	Reason           string  `json:"reason"`
}

type LotDTO struct {
	ID               string     `json:"id"`
	ProductVariantID int64      `json:"productVariantId"`
	WarehouseID      int64      `json:"warehouseId"`
	LotNumber        string     `json:"lotNumber"`
	ExpiryDate       *time.Time `json:"expiryDate,omitempty"`
	QtyAvailable     int        `json:"qtyAvailable"`
	ReceivedAt       time.Time  `json:"receivedAt"`
}

type StockMutationResponse struct {
	TraceID string          `json:"traceId"`
	Balance StockBalanceDTO `json:"balance"`
	Lot     *LotDTO         `json:"lot,omitempty"`
}
