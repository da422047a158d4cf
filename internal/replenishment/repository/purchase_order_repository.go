package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"stockwise/internal/domain"
)

// PurchaseOrderRepository drafts purchase orders inside the caller's
// transaction.
type PurchaseOrderRepository struct {
	now func() time.Time
}

func NewPurchaseOrderRepository() *PurchaseOrderRepository {
	return &PurchaseOrderRepository{now: func() time.Time { return time.Now().UTC() }}
}

func (r *PurchaseOrderRepository) Create(ctx context.Context, tx *sqlx.Tx, req domain.PurchaseOrderRequest) (*domain.PurchaseOrder, error) {
	now := r.now()
	po := &domain.PurchaseOrder{
		PONumber:    newPONumber(now),
		SupplierID:  req.SupplierID,
		WarehouseID: req.WarehouseID,
		Status:      domain.PurchaseOrderStatusDraft,
		ExpectedAt:  req.ExpectedAt,
		CreatedAt:   now,
	}

	query := `
		INSERT INTO purchase_orders (po_number, supplier_id, warehouse_id, status, expected_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	res, err := tx.ExecContext(ctx, query, po.PONumber, po.SupplierID, po.WarehouseID, po.Status, po.ExpectedAt, po.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting purchase order: %w", err)
	}
	if po.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("reading purchase order id: %w", err)
	}

	itemQuery := `
		INSERT INTO purchase_order_items (purchase_order_id, product_variant_id, quantity, suggestion_id)
		VALUES (?, ?, ?, ?)
	`
	for _, line := range req.Lines {
		if _, err := tx.ExecContext(ctx, itemQuery, po.ID, line.VariantID, line.Quantity, line.SuggestionID); err != nil {
			return nil, fmt.Errorf("inserting purchase order item: %w", err)
		}
	}

	return po, nil
}

func newPONumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return fmt.Sprintf("PO-%s-%s", now.Format("20060102"), suffix)
}
