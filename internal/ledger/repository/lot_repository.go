package repository

import (
	"context"
	"database/sql"
	"fmt"

	"stockwise/internal/domain"
	"stockwise/internal/errors"
)

type MySQLLotRepository struct {
	db *sql.DB
}

func NewMySQLLotRepository(db *sql.DB) *MySQLLotRepository {
	return &MySQLLotRepository{db: db}
}

const lotColumns = `id, product_variant_id, warehouse_id, lot_number, expiry_date, qty_available, received_at`

func scanLot(row interface{ Scan(...any) error }) (*domain.Lot, error) {
	var l domain.Lot
	var expiry sql.NullTime
	if err := row.Scan(&l.ID, &l.VariantID, &l.WarehouseID, &l.LotNumber, &expiry, &l.QtyAvailable, &l.ReceivedAt); err != nil {
		return nil, err
	}
	if expiry.Valid {
		t := expiry.Time
		l.ExpiryDate = &t
	}
	return &l, nil
}

// FindAvailableForUpdate locks every lot of key that still holds stock.
// Rows are locked in id order; consumption order is decided by the caller.
func (r *MySQLLotRepository) FindAvailableForUpdate(ctx context.Context, tx *sql.Tx, key domain.StockKey) ([]domain.Lot, error) {
	query := `
		SELECT ` + lotColumns + `
		FROM stock_lots
		WHERE product_variant_id = ? AND warehouse_id = ? AND qty_available > 0
		ORDER BY id
		FOR UPDATE
	`

	rows, err := tx.QueryContext(ctx, query, key.VariantID, key.WarehouseID)
	if err != nil {
		return nil, fmt.Errorf("locking lots: %w", err)
	}
	defer rows.Close()

	var lots []domain.Lot
	for rows.Next() {
		l, err := scanLot(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning lot row: %w", err)
		}
		lots = append(lots, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating lot rows: %w", err)
	}
	return lots, nil
}

func (r *MySQLLotRepository) FindByIDForUpdate(ctx context.Context, tx *sql.Tx, id string) (*domain.Lot, error) {
	query := `SELECT ` + lotColumns + ` FROM stock_lots WHERE id = ? FOR UPDATE`

	l, err := scanLot(tx.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("lot %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("locking lot: %w", err)
	}
	return l, nil
}

func (r *MySQLLotRepository) Insert(ctx context.Context, tx *sql.Tx, lot domain.Lot) error {
	query := `
		INSERT INTO stock_lots (id, product_variant_id, warehouse_id, lot_number, expiry_date, qty_available, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	var expiry sql.NullTime
	if lot.ExpiryDate != nil {
		expiry = sql.NullTime{Time: *lot.ExpiryDate, Valid: true}
	}

	if _, err := tx.ExecContext(ctx, query, lot.ID, lot.VariantID, lot.WarehouseID, lot.LotNumber, expiry, lot.QtyAvailable, lot.ReceivedAt); err != nil {
		return fmt.Errorf("inserting lot: %w", err)
	}
	return nil
}

// AddQty moves a lot's qty_available by delta, never below zero.
func (r *MySQLLotRepository) AddQty(ctx context.Context, tx *sql.Tx, id string, delta int) error {
	query := `
		UPDATE stock_lots
		SET qty_available = qty_available + ?
		WHERE id = ? AND qty_available + ? >= 0
	`

	result, err := tx.ExecContext(ctx, query, delta, id, delta)
	if err != nil {
		return fmt.Errorf("updating lot quantity: %w", err)
	}
	return requireOneRow(result, fmt.Sprintf("lot %s cannot move by %d", id, delta))
}
