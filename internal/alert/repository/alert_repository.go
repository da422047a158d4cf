package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	"github.com/jmoiron/sqlx"

	"stockwise/internal/domain"
	"stockwise/internal/dto"
	"stockwise/internal/errors"
	"stockwise/internal/infrastructure/mysql"
)

var dialect = goqu.Dialect("mysql")

var alertColumns = []interface{}{
	"id", "product_variant_id", "warehouse_id", "current_qty", "min_qty", "shortage_qty",
	"severity", "is_resolved", "resolved_at", "notification_sent", "notification_sent_at",
	"created_at", "updated_at",
}

const alertSelect = `
	SELECT id, product_variant_id, warehouse_id, current_qty, min_qty, shortage_qty,
	       severity, is_resolved, resolved_at, notification_sent, notification_sent_at,
	       created_at, updated_at
	FROM low_stock_alerts`

type alertRow struct {
	ID                 string       `db:"id"`
	VariantID          int64        `db:"product_variant_id"`
	WarehouseID        int64        `db:"warehouse_id"`
	CurrentQty         int          `db:"current_qty"`
	MinQty             int          `db:"min_qty"`
	ShortageQty        int          `db:"shortage_qty"`
	Severity           string       `db:"severity"`
	IsResolved         bool         `db:"is_resolved"`
	ResolvedAt         sql.NullTime `db:"resolved_at"`
	NotificationSent   bool         `db:"notification_sent"`
	NotificationSentAt sql.NullTime `db:"notification_sent_at"`
	CreatedAt          time.Time    `db:"created_at"`
	UpdatedAt          time.Time    `db:"updated_at"`
}

func (r alertRow) toDomain() domain.LowStockAlert {
	a := domain.LowStockAlert{
		ID:               r.ID,
		VariantID:        r.VariantID,
		WarehouseID:      r.WarehouseID,
		CurrentQty:       r.CurrentQty,
		MinQty:           r.MinQty,
		ShortageQty:      r.ShortageQty,
		Severity:         domain.Severity(r.Severity),
		IsResolved:       r.IsResolved,
		NotificationSent: r.NotificationSent,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if r.ResolvedAt.Valid {
		t := r.ResolvedAt.Time
		a.ResolvedAt = &t
	}
	if r.NotificationSentAt.Valid {
		t := r.NotificationSentAt.Time
		a.NotificationSentAt = &t
	}
	return a
}

func toAlerts(rows []alertRow) []domain.LowStockAlert {
	out := make([]domain.LowStockAlert, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out
}

type AlertRepository struct {
	db *sqlx.DB
}

func NewAlertRepository(db *sqlx.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

func (r *AlertRepository) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, opts)
}

// FindOpenByKeyForUpdate locks the key's open alert. It returns nil when
// the key has none.
func (r *AlertRepository) FindOpenByKeyForUpdate(ctx context.Context, tx *sqlx.Tx, key domain.StockKey) (*domain.LowStockAlert, error) {
	var row alertRow
	query := alertSelect + ` WHERE product_variant_id = ? AND warehouse_id = ? AND is_resolved = 0 FOR UPDATE`

	err := tx.GetContext(ctx, &row, query, key.VariantID, key.WarehouseID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying open alert for update: %w", err)
	}

	a := row.toDomain()
	return &a, nil
}

func (r *AlertRepository) Insert(ctx context.Context, tx *sqlx.Tx, a domain.LowStockAlert) error {
	query := `
		INSERT INTO low_stock_alerts
			(id, product_variant_id, warehouse_id, current_qty, min_qty, shortage_qty,
			 severity, is_resolved, notification_sent, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?)
	`

	_, err := tx.ExecContext(ctx, query,
		a.ID, a.VariantID, a.WarehouseID, a.CurrentQty, a.MinQty, a.ShortageQty,
		string(a.Severity), a.CreatedAt, a.UpdatedAt,
	)
	if mysql.IsDuplicateKey(err) {
		return errors.NewConflictError(fmt.Sprintf("an open alert already exists for %s", a.Key()))
	}
	if err != nil {
		return fmt.Errorf("inserting alert: %w", err)
	}
	return nil
}

func (r *AlertRepository) Update(ctx context.Context, tx *sqlx.Tx, a domain.LowStockAlert) error {
	query := `
		UPDATE low_stock_alerts
		SET current_qty = ?, min_qty = ?, shortage_qty = ?, severity = ?, updated_at = ?
		WHERE id = ?
	`

	if _, err := tx.ExecContext(ctx, query, a.CurrentQty, a.MinQty, a.ShortageQty, string(a.Severity), a.UpdatedAt, a.ID); err != nil {
		return fmt.Errorf("updating alert: %w", err)
	}
	return nil
}

func (r *AlertRepository) Resolve(ctx context.Context, tx *sqlx.Tx, id string, at time.Time) error {
	query := `UPDATE low_stock_alerts SET is_resolved = 1, resolved_at = ?, updated_at = ? WHERE id = ? AND is_resolved = 0`

	if _, err := tx.ExecContext(ctx, query, at, at, id); err != nil {
		return fmt.Errorf("resolving alert: %w", err)
	}
	return nil
}

func (r *AlertRepository) FindByID(ctx context.Context, id string) (*domain.LowStockAlert, error) {
	var row alertRow
	err := r.db.GetContext(ctx, &row, alertSelect+` WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("alert %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("querying alert by id: %w", err)
	}

	a := row.toDomain()
	return &a, nil
}

// ResolveByID resolves an alert by hand. Resolving a resolved alert
// changes nothing.
func (r *AlertRepository) ResolveByID(ctx context.Context, id string, at time.Time) (*domain.LowStockAlert, error) {
	query := `UPDATE low_stock_alerts SET is_resolved = 1, resolved_at = ?, updated_at = ? WHERE id = ? AND is_resolved = 0`

	if _, err := r.db.ExecContext(ctx, query, at, at, id); err != nil {
		return nil, fmt.Errorf("resolving alert: %w", err)
	}
	return r.FindByID(ctx, id)
}

func (r *AlertRepository) FindUnsent(ctx context.Context) ([]domain.LowStockAlert, error) {
	var rows []alertRow
	query := alertSelect + ` WHERE is_resolved = 0 AND notification_sent = 0 ORDER BY created_at, id`

	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("querying unsent alerts: %w", err)
	}
	return toAlerts(rows), nil
}

func (r *AlertRepository) MarkSent(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE low_stock_alerts SET notification_sent = 1, notification_sent_at = ? WHERE id = ?`

	if _, err := r.db.ExecContext(ctx, query, at, id); err != nil {
		return fmt.Errorf("marking alert notified: %w", err)
	}
	return nil
}

func (r *AlertRepository) List(ctx context.Context, f dto.AlertFilter) ([]domain.LowStockAlert, error) {
	ds := dialect.From("low_stock_alerts").
		Select(alertColumns...).
		Order(goqu.C("created_at").Desc(), goqu.C("id").Asc())

	if f.Severity != nil {
		ds = ds.Where(goqu.C("severity").Eq(string(*f.Severity)))
	}
	if f.IsResolved != nil {
		ds = ds.Where(goqu.C("is_resolved").Eq(*f.IsResolved))
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building alert list query: %w", err)
	}

	var rows []alertRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("listing alerts: %w", err)
	}
	return toAlerts(rows), nil
}

func (r *AlertRepository) Summary(ctx context.Context) (*dto.AlertSummary, error) {
	query := `
		SELECT
			COALESCE(SUM(is_resolved = 0 AND severity = 'critical'), 0) AS critical,
			COALESCE(SUM(is_resolved = 0 AND severity = 'warning'), 0) AS warning,
			COALESCE(SUM(is_resolved = 0 AND severity = 'info'), 0) AS info,
			COALESCE(SUM(is_resolved = 0), 0) AS total_open,
			COALESCE(SUM(is_resolved = 1), 0) AS resolved,
			COALESCE(SUM(is_resolved = 0 AND notification_sent = 0), 0) AS unsent
		FROM low_stock_alerts
	`

	var s dto.AlertSummary
	if err := r.db.GetContext(ctx, &s, query); err != nil {
		return nil, fmt.Errorf("summarising alerts: %w", err)
	}
	return &s, nil
}
