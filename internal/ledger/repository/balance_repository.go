package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"stockwise/internal/domain"
	"stockwise/internal/errors"
)

type MySQLBalanceRepository struct {
	db *sql.DB
}

func NewMySQLBalanceRepository(db *sql.DB) *MySQLBalanceRepository {
	return &MySQLBalanceRepository{db: db}
}

const balanceColumns = `product_variant_id, warehouse_id, qty_on_hand, qty_reserved, updated_at`

func scanBalance(row interface{ Scan(...any) error }) (*domain.StockBalance, error) {
	var b domain.StockBalance
	if err := row.Scan(&b.VariantID, &b.WarehouseID, &b.QtyOnHand, &b.QtyReserved, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *MySQLBalanceRepository) FindByKey(ctx context.Context, key domain.StockKey) (*domain.StockBalance, error) {
	query := `SELECT ` + balanceColumns + ` FROM stock_balances WHERE product_variant_id = ? AND warehouse_id = ?`

	b, err := scanBalance(r.db.QueryRowContext(ctx, query, key.VariantID, key.WarehouseID))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("stock balance %s not found", key))
	}
	if err != nil {
		return nil, fmt.Errorf("querying stock balance: %w", err)
	}
	return b, nil
}

// SumByVariant adds up the balances of a variant over every warehouse.
func (r *MySQLBalanceRepository) SumByVariant(ctx context.Context, variantID int64) (*domain.StockBalance, error) {
	query := `
		SELECT COALESCE(SUM(qty_on_hand), 0), COALESCE(SUM(qty_reserved), 0)
		FROM stock_balances
		WHERE product_variant_id = ?
	`

	b := domain.StockBalance{VariantID: variantID}
	if err := r.db.QueryRowContext(ctx, query, variantID).Scan(&b.QtyOnHand, &b.QtyReserved); err != nil {
		return nil, fmt.Errorf("summing stock balances: %w", err)
	}
	return &b, nil
}

func (r *MySQLBalanceRepository) FindByVariantIDs(ctx context.Context, ids []int64, warehouseID int64) ([]domain.StockBalance, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, 0, len(ids)+1)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}
	args = append(args, warehouseID)

	query := fmt.Sprintf(`
		SELECT %s
		FROM stock_balances
		WHERE product_variant_id IN (%s)
		  AND warehouse_id = ?
		ORDER BY product_variant_id`,
		balanceColumns, strings.Join(placeholders, ", "),
	)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying stock balances: %w", err)
	}
	defer rows.Close()

	var balances []domain.StockBalance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning stock balance row: %w", err)
		}
		balances = append(balances, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stock balance rows: %w", err)
	}

	return balances, nil
}

// FindByKeyForUpdate locks the balance row until tx ends.
func (r *MySQLBalanceRepository) FindByKeyForUpdate(ctx context.Context, tx *sql.Tx, key domain.StockKey) (*domain.StockBalance, error) {
	query := `SELECT ` + balanceColumns + ` FROM stock_balances WHERE product_variant_id = ? AND warehouse_id = ? FOR UPDATE`

	b, err := scanBalance(tx.QueryRowContext(ctx, query, key.VariantID, key.WarehouseID))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("stock balance %s not found", key))
	}
	if err != nil {
		return nil, fmt.Errorf("locking stock balance: %w", err)
	}
	return b, nil
}

// EnsureForUpdate creates an empty balance row for key if needed and locks it.
func (r *MySQLBalanceRepository) EnsureForUpdate(ctx context.Context, tx *sql.Tx, key domain.StockKey) (*domain.StockBalance, error) {
	query := `
		INSERT INTO stock_balances (product_variant_id, warehouse_id, qty_on_hand, qty_reserved, qty_available)
		VALUES (?, ?, 0, 0, 0)
		ON DUPLICATE KEY UPDATE product_variant_id = product_variant_id
	`
	if _, err := tx.ExecContext(ctx, query, key.VariantID, key.WarehouseID); err != nil {
		return nil, fmt.Errorf("ensuring stock balance: %w", err)
	}
	return r.FindByKeyForUpdate(ctx, tx, key)
}

// AddReserved moves qty_reserved by delta and rewrites qty_available in the
// same statement. MySQL evaluates single-table SET clauses left to right,
// so qty_available sees the new qty_reserved.
func (r *MySQLBalanceRepository) AddReserved(ctx context.Context, tx *sql.Tx, key domain.StockKey, delta int) error {
	query := `
		UPDATE stock_balances
		SET qty_reserved = qty_reserved + ?,
		    qty_available = qty_on_hand - qty_reserved
		WHERE product_variant_id = ? AND warehouse_id = ?
		  AND qty_reserved + ? >= 0
		  AND qty_reserved + ? <= qty_on_hand
	`

	result, err := tx.ExecContext(ctx, query, delta, key.VariantID, key.WarehouseID, delta, delta)
	if err != nil {
		return fmt.Errorf("updating reserved quantity: %w", err)
	}
	return requireOneRow(result, fmt.Sprintf("reserving %d on %s would break the balance", delta, key))
}

// AddOnHand moves qty_on_hand by delta; it refuses to drop below qty_reserved.
func (r *MySQLBalanceRepository) AddOnHand(ctx context.Context, tx *sql.Tx, key domain.StockKey, delta int) error {
	query := `
		UPDATE stock_balances
		SET qty_on_hand = qty_on_hand + ?,
		    qty_available = qty_on_hand - qty_reserved
		WHERE product_variant_id = ? AND warehouse_id = ?
		  AND qty_on_hand + ? >= qty_reserved
	`

	result, err := tx.ExecContext(ctx, query, delta, key.VariantID, key.WarehouseID, delta)
	if err != nil {
		return fmt.Errorf("updating on-hand quantity: %w", err)
	}
	return requireOneRow(result, fmt.Sprintf("on-hand change of %d on %s would leave reserved above on hand", delta, key))
}

func requireOneRow(result sql.Result, conflict string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return errors.NewConflictError(conflict)
	}
	return nil
}
