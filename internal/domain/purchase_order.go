package domain

import "time"

type PurchaseOrderLine struct {
	SuggestionID string
	VariantID    int64
	Quantity     int
}

// PurchaseOrderRequest is one supplier/warehouse group handed to the
// purchasing collaborator.
type PurchaseOrderRequest struct {
	SupplierID  int64
	WarehouseID int64
	ExpectedAt  time.Time
	Lines       []PurchaseOrderLine
}

type PurchaseOrder struct {
	ID          int64
	PONumber    string
	SupplierID  int64
	WarehouseID int64
	Status      string
	ExpectedAt  time.Time
	CreatedAt   time.Time
}

const PurchaseOrderStatusDraft = "draft"
