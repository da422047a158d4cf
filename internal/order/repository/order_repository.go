package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"stockwise/internal/domain"
	"stockwise/internal/errors"
)

type MySQLSalesOrderRepository struct {
	db *sql.DB
}

func NewMySQLSalesOrderRepository(db *sql.DB) *MySQLSalesOrderRepository {
	return &MySQLSalesOrderRepository{db: db}
}

// FindByID loads the order with its lines ordered by id.
func (r *MySQLSalesOrderRepository) FindByID(ctx context.Context, id int64) (*domain.SalesOrder, error) {
	query := `
		SELECT id, order_number, status, created_at, updated_at
		FROM sales_orders
		WHERE id = ?
	`

	var order domain.SalesOrder
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&order.ID, &order.OrderNumber, &order.Status, &order.CreatedAt, &order.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("sales order %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("querying sales order by id: %w", err)
	}

	lines, err := r.findLines(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Lines = lines

	return &order, nil
}

func (r *MySQLSalesOrderRepository) findLines(ctx context.Context, orderID int64) ([]domain.SalesOrderLine, error) {
	query := `SELECT ` + lineColumns + ` FROM sales_order_lines WHERE sales_order_id = ? ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("querying sales order lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.SalesOrderLine
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning sales order line: %w", err)
		}
		lines = append(lines, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sales order lines: %w", err)
	}

	return lines, nil
}

// SetAllocationStatus records the outcome of an allocation pass. It only
// applies while the order is still allocatable, so a concurrent cancel wins.
func (r *MySQLSalesOrderRepository) SetAllocationStatus(ctx context.Context, id int64, status string) error {
	return r.updateStatusFrom(ctx, id, status,
		domain.OrderStatusConfirmed, domain.OrderStatusPartial, domain.OrderStatusAllocated)
}

// ResetAllocationStatus returns an order whose reservations were released
// to confirmed. Cancelled and draft orders keep their status.
func (r *MySQLSalesOrderRepository) ResetAllocationStatus(ctx context.Context, id int64) error {
	err := r.updateStatusFrom(ctx, id, domain.OrderStatusConfirmed,
		domain.OrderStatusConfirmed, domain.OrderStatusPartial, domain.OrderStatusAllocated)
	if _, ok := errors.IsConflictError(err); ok {
		return nil
	}
	return err
}

func (r *MySQLSalesOrderRepository) MarkCancelled(ctx context.Context, id int64) error {
	query := `UPDATE sales_orders SET status = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, domain.OrderStatusCancelled, id)
	if err != nil {
		return fmt.Errorf("cancelling sales order: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	// Zero rows also means the status was already cancelled.
	if rowsAffected == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
	}

	return nil
}

func (r *MySQLSalesOrderRepository) updateStatusFrom(ctx context.Context, id int64, status string, from ...string) error {
	placeholders := make([]string, len(from))
	args := make([]interface{}, 0, len(from)+2)
	args = append(args, status, id)
	for i, s := range from {
		placeholders[i] = "?"
		args = append(args, s)
	}

	query := fmt.Sprintf(`UPDATE sales_orders SET status = ? WHERE id = ? AND status IN (%s)`, strings.Join(placeholders, ", "))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating sales order status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		order, err := r.FindByID(ctx, id)
		if err != nil {
			return err
		}
		// MySQL reports zero affected rows when the value is unchanged.
		if order.Status == status {
			return nil
		}
		return errors.NewConflictError(fmt.Sprintf("sales order %d is %s", id, order.Status))
	}

	return nil
}
