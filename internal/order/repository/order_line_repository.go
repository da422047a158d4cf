package repository

import (
	"context"
	"database/sql"
	"fmt"

	"stockwise/internal/domain"
	"stockwise/internal/errors"
)

// MySQLSalesOrderLineRepository writes allocated_qty inside the ledger's
// transactions.
type MySQLSalesOrderLineRepository struct {
	db *sql.DB
}

func NewMySQLSalesOrderLineRepository(db *sql.DB) *MySQLSalesOrderLineRepository {
	return &MySQLSalesOrderLineRepository{db: db}
}

const lineColumns = `id, sales_order_id, product_variant_id, warehouse_id, ordered_qty, allocated_qty`

func scanLine(row interface{ Scan(...any) error }) (*domain.SalesOrderLine, error) {
	var l domain.SalesOrderLine
	if err := row.Scan(&l.ID, &l.OrderID, &l.VariantID, &l.WarehouseID, &l.OrderedQty, &l.AllocatedQty); err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *MySQLSalesOrderLineRepository) FindByIDForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*domain.SalesOrderLine, error) {
	query := `SELECT ` + lineColumns + ` FROM sales_order_lines WHERE id = ? FOR UPDATE`

	l, err := scanLine(tx.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("sales order line %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("querying sales order line for update: %w", err)
	}
	return l, nil
}

func (r *MySQLSalesOrderLineRepository) AddAllocated(ctx context.Context, tx *sql.Tx, id int64, delta int) error {
	query := `
		UPDATE sales_order_lines
		SET allocated_qty = allocated_qty + ?
		WHERE id = ? AND allocated_qty + ? BETWEEN 0 AND ordered_qty
	`

	result, err := tx.ExecContext(ctx, query, delta, id, delta)
	if err != nil {
		return fmt.Errorf("updating line allocated qty: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return errors.NewConflictError(fmt.Sprintf("line %d cannot take %d more allocated", id, delta))
	}

	return nil
}

func (r *MySQLSalesOrderLineRepository) ResetAllocated(ctx context.Context, tx *sql.Tx, id int64) error {
	query := `UPDATE sales_order_lines SET allocated_qty = 0 WHERE id = ?`

	if _, err := tx.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("resetting line allocated qty: %w", err)
	}
	return nil
}
