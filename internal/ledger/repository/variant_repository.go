package repository

import (
	"context"
	"database/sql"
	"fmt"

	"stockwise/internal/domain"
	"stockwise/internal/errors"
)

type MySQLVariantRepository struct {
	db *sql.DB
}

func NewMySQLVariantRepository(db *sql.DB) *MySQLVariantRepository {
	return &MySQLVariantRepository{db: db}
}

func (r *MySQLVariantRepository) FindByID(ctx context.Context, id int64) (*domain.ProductVariant, error) {
	query := `
		SELECT id, sku, name, is_lot_tracked, is_active, created_at, updated_at
		FROM product_variants
		WHERE id = ?
	`

	var v domain.ProductVariant
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&v.ID, &v.SKU, &v.Name, &v.LotTracked, &v.IsActive, &v.CreatedAt, &v.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("product variant %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("querying product variant by id: %w", err)
	}

	return &v, nil
}
