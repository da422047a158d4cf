package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"stockwise/internal/domain"
)

type ruleStockRow struct {
	ID                  int64         `db:"id"`
	VariantID           int64         `db:"product_variant_id"`
	WarehouseID         int64         `db:"warehouse_id"`
	MinQty              int           `db:"min_qty"`
	MaxQty              int           `db:"max_qty"`
	ReorderQty          sql.NullInt64 `db:"reorder_qty"`
	PreferredSupplierID sql.NullInt64 `db:"preferred_supplier_id"`
	LeadTimeDays        int           `db:"lead_time_days"`
	IsActive            bool          `db:"is_active"`
	CurrentQty          int           `db:"current_qty"`
}

func (r ruleStockRow) toDomain() domain.RuleStock {
	rule := domain.ReorderRule{
		ID:           r.ID,
		VariantID:    r.VariantID,
		WarehouseID:  r.WarehouseID,
		MinQty:       r.MinQty,
		MaxQty:       r.MaxQty,
		LeadTimeDays: r.LeadTimeDays,
		IsActive:     r.IsActive,
	}
	if r.ReorderQty.Valid {
		q := int(r.ReorderQty.Int64)
		rule.ReorderQty = &q
	}
	if r.PreferredSupplierID.Valid {
		s := r.PreferredSupplierID.Int64
		rule.PreferredSupplierID = &s
	}
	return domain.RuleStock{Rule: rule, CurrentQty: r.CurrentQty}
}

type RuleRepository struct {
	db *sqlx.DB
}

func NewRuleRepository(db *sqlx.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

// ActiveRuleStock reads every active rule with the available quantity of
// its key from one consistent snapshot. Keys without a balance row read
// as zero.
func (r *RuleRepository) ActiveRuleStock(ctx context.Context) ([]domain.RuleStock, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("beginning snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		SELECT r.id, r.product_variant_id, r.warehouse_id, r.min_qty, r.max_qty,
		       r.reorder_qty, r.preferred_supplier_id, r.lead_time_days, r.is_active,
		       GREATEST(COALESCE(b.qty_on_hand, 0) - COALESCE(b.qty_reserved, 0), 0) AS current_qty
		FROM reorder_rules r
		LEFT JOIN stock_balances b
		       ON b.product_variant_id = r.product_variant_id AND b.warehouse_id = r.warehouse_id
		WHERE r.is_active = 1
		ORDER BY r.warehouse_id, r.product_variant_id
	`

	var rows []ruleStockRow
	if err := tx.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("reading rule snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("closing snapshot transaction: %w", err)
	}

	out := make([]domain.RuleStock, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}
