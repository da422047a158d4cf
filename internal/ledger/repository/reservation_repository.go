package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"stockwise/internal/domain"
)

type MySQLReservationRepository struct {
	db *sql.DB
}

func NewMySQLReservationRepository(db *sql.DB) *MySQLReservationRepository {
	return &MySQLReservationRepository{db: db}
}

const reservationColumns = `id, sales_order_id, sales_order_line_id, product_variant_id, warehouse_id,
	lot_id, qty_reserved, status, created_at, released_at`

type rowScanner interface {
	Next() bool
	Scan(...any) error
	Err() error
	Close() error
}

func scanReservations(rows rowScanner) ([]domain.Reservation, error) {
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		var res domain.Reservation
		var lotID sql.NullString
		var releasedAt sql.NullTime
		err := rows.Scan(
			&res.ID, &res.OrderID, &res.OrderLineID, &res.VariantID, &res.WarehouseID,
			&lotID, &res.QtyReserved, &res.Status, &res.CreatedAt, &releasedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning reservation row: %w", err)
		}
		if lotID.Valid {
			id := lotID.String
			res.LotID = &id
		}
		if releasedAt.Valid {
			t := releasedAt.Time
			res.ReleasedAt = &t
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reservation rows: %w", err)
	}
	return out, nil
}

func (r *MySQLReservationRepository) Insert(ctx context.Context, tx *sql.Tx, res domain.Reservation) error {
	query := `
		INSERT INTO stock_reservations (id, sales_order_id, sales_order_line_id, product_variant_id, warehouse_id,
		                                lot_id, qty_reserved, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var lotID sql.NullString
	if res.LotID != nil {
		lotID = sql.NullString{String: *res.LotID, Valid: true}
	}

	_, err := tx.ExecContext(ctx, query,
		res.ID, res.OrderID, res.OrderLineID, res.VariantID, res.WarehouseID,
		lotID, res.QtyReserved, res.Status, res.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting reservation: %w", err)
	}
	return nil
}

// FindActiveByOrder is a plain read used to discover which keys an order
// touches; the rows are re-read under lock before being released.
func (r *MySQLReservationRepository) FindActiveByOrder(ctx context.Context, orderID int64) ([]domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM stock_reservations WHERE sales_order_id = ? AND status = ? ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, orderID, domain.ReservationActive)
	if err != nil {
		return nil, fmt.Errorf("querying reservations: %w", err)
	}
	return scanReservations(rows)
}

func (r *MySQLReservationRepository) FindActiveByOrderAndKeyForUpdate(ctx context.Context, tx *sql.Tx, orderID int64, key domain.StockKey) ([]domain.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM stock_reservations
		WHERE sales_order_id = ? AND product_variant_id = ? AND warehouse_id = ? AND status = ?
		ORDER BY id
		FOR UPDATE
	`

	rows, err := tx.QueryContext(ctx, query, orderID, key.VariantID, key.WarehouseID, domain.ReservationActive)
	if err != nil {
		return nil, fmt.Errorf("locking reservations: %w", err)
	}
	return scanReservations(rows)
}

// MarkReleased flips an active reservation to released. It reports false
// when the row was no longer active.
func (r *MySQLReservationRepository) MarkReleased(ctx context.Context, tx *sql.Tx, id string, at time.Time) (bool, error) {
	query := `UPDATE stock_reservations SET status = ?, released_at = ? WHERE id = ? AND status = ?`

	result, err := tx.ExecContext(ctx, query, domain.ReservationReleased, at, id, domain.ReservationActive)
	if err != nil {
		return false, fmt.Errorf("releasing reservation: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}
