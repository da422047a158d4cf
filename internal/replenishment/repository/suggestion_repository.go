package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"

	"stockwise/internal/domain"
	"stockwise/internal/dto"
	"stockwise/internal/errors"
	"stockwise/internal/infrastructure/mysql"
)

var dialect = goqu.Dialect("mysql")

var suggestionColumns = []interface{}{
	"id", "product_variant_id", "warehouse_id", "supplier_id", "current_qty", "min_qty",
	"suggested_qty", "lead_time_days", "priority", "status", "dismiss_reason", "dismissed_at",
	"retrigger_cleared_at", "purchase_order_id", "created_at", "updated_at",
}

const suggestionSelect = `
	SELECT id, product_variant_id, warehouse_id, supplier_id, current_qty, min_qty,
	       suggested_qty, lead_time_days, priority, status, dismiss_reason, dismissed_at,
	       retrigger_cleared_at, purchase_order_id, created_at, updated_at
	FROM replenishment_suggestions`

type suggestionRow struct {
	ID                 string         `db:"id"`
	VariantID          int64          `db:"product_variant_id"`
	WarehouseID        int64          `db:"warehouse_id"`
	SupplierID         sql.NullInt64  `db:"supplier_id"`
	CurrentQty         int            `db:"current_qty"`
	MinQty             int            `db:"min_qty"`
	SuggestedQty       int            `db:"suggested_qty"`
	LeadTimeDays       int            `db:"lead_time_days"`
	Priority           string         `db:"priority"`
	Status             string         `db:"status"`
	DismissReason      sql.NullString `db:"dismiss_reason"`
	DismissedAt        sql.NullTime   `db:"dismissed_at"`
	RetriggerClearedAt sql.NullTime   `db:"retrigger_cleared_at"`
	PurchaseOrderID    sql.NullInt64  `db:"purchase_order_id"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
}

func (r suggestionRow) toDomain() domain.ReplenishmentSuggestion {
	s := domain.ReplenishmentSuggestion{
		ID:           r.ID,
		VariantID:    r.VariantID,
		WarehouseID:  r.WarehouseID,
		CurrentQty:   r.CurrentQty,
		MinQty:       r.MinQty,
		SuggestedQty: r.SuggestedQty,
		LeadTimeDays: r.LeadTimeDays,
		Priority:     domain.Priority(r.Priority),
		Status:       domain.SuggestionStatus(r.Status),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.SupplierID.Valid {
		v := r.SupplierID.Int64
		s.SupplierID = &v
	}
	if r.DismissReason.Valid {
		v := r.DismissReason.String
		s.DismissReason = &v
	}
	if r.DismissedAt.Valid {
		v := r.DismissedAt.Time
		s.DismissedAt = &v
	}
	if r.RetriggerClearedAt.Valid {
		v := r.RetriggerClearedAt.Time
		s.RetriggerClearedAt = &v
	}
	if r.PurchaseOrderID.Valid {
		v := r.PurchaseOrderID.Int64
		s.PurchaseOrderID = &v
	}
	return s
}

func toSuggestions(rows []suggestionRow) []domain.ReplenishmentSuggestion {
	out := make([]domain.ReplenishmentSuggestion, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out
}

type SuggestionRepository struct {
	db *sqlx.DB
}

func NewSuggestionRepository(db *sqlx.DB) *SuggestionRepository {
	return &SuggestionRepository{db: db}
}

func (r *SuggestionRepository) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, opts)
}

// FindPendingByKeyForUpdate locks the key's pending suggestion, or returns
// nil when there is none.
func (r *SuggestionRepository) FindPendingByKeyForUpdate(ctx context.Context, tx *sqlx.Tx, key domain.StockKey) (*domain.ReplenishmentSuggestion, error) {
	query := suggestionSelect + ` WHERE product_variant_id = ? AND warehouse_id = ? AND status = 'pending' FOR UPDATE`
	return r.getOptional(ctx, tx, "querying pending suggestion for update", query, key.VariantID, key.WarehouseID)
}

// FindLatestDismissedByKey returns the most recent dismissal for the key,
// or nil.
func (r *SuggestionRepository) FindLatestDismissedByKey(ctx context.Context, tx *sqlx.Tx, key domain.StockKey) (*domain.ReplenishmentSuggestion, error) {
	query := suggestionSelect + `
		WHERE product_variant_id = ? AND warehouse_id = ? AND status = 'dismissed'
		ORDER BY dismissed_at DESC, id DESC
		LIMIT 1
		FOR UPDATE`
	return r.getOptional(ctx, tx, "querying latest dismissed suggestion", query, key.VariantID, key.WarehouseID)
}

func (r *SuggestionRepository) getOptional(ctx context.Context, tx *sqlx.Tx, what, query string, args ...interface{}) (*domain.ReplenishmentSuggestion, error) {
	var row suggestionRow
	err := tx.GetContext(ctx, &row, query, args...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}

	s := row.toDomain()
	return &s, nil
}

func (r *SuggestionRepository) Insert(ctx context.Context, tx *sqlx.Tx, s domain.ReplenishmentSuggestion) error {
	query := `
		INSERT INTO replenishment_suggestions
			(id, product_variant_id, warehouse_id, supplier_id, current_qty, min_qty,
			 suggested_qty, lead_time_days, priority, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := tx.ExecContext(ctx, query,
		s.ID, s.VariantID, s.WarehouseID, s.SupplierID, s.CurrentQty, s.MinQty,
		s.SuggestedQty, s.LeadTimeDays, string(s.Priority), string(s.Status), s.CreatedAt, s.UpdatedAt,
	)
	if mysql.IsDuplicateKey(err) {
		return errors.NewConflictError(fmt.Sprintf("a pending suggestion already exists for %s", s.Key()))
	}
	if err != nil {
		return fmt.Errorf("inserting suggestion: %w", err)
	}
	return nil
}

func (r *SuggestionRepository) Update(ctx context.Context, tx *sqlx.Tx, s domain.ReplenishmentSuggestion) error {
	query := `
		UPDATE replenishment_suggestions
		SET supplier_id = ?, current_qty = ?, min_qty = ?, suggested_qty = ?,
		    lead_time_days = ?, priority = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'
	`

	_, err := tx.ExecContext(ctx, query,
		s.SupplierID, s.CurrentQty, s.MinQty, s.SuggestedQty, s.LeadTimeDays, string(s.Priority), s.UpdatedAt, s.ID,
	)
	if err != nil {
		return fmt.Errorf("updating suggestion: %w", err)
	}
	return nil
}

// ClearRetrigger stamps every uncleared dismissal of a recovered key and
// reports how many rows it touched.
func (r *SuggestionRepository) ClearRetrigger(ctx context.Context, tx *sqlx.Tx, key domain.StockKey, at time.Time) (int64, error) {
	query := `
		UPDATE replenishment_suggestions
		SET retrigger_cleared_at = ?, updated_at = ?
		WHERE product_variant_id = ? AND warehouse_id = ? AND status = 'dismissed' AND retrigger_cleared_at IS NULL
	`

	res, err := tx.ExecContext(ctx, query, at, at, key.VariantID, key.WarehouseID)
	if err != nil {
		return 0, fmt.Errorf("clearing dismissed suggestions: %w", err)
	}
	return res.RowsAffected()
}

func (r *SuggestionRepository) FindByID(ctx context.Context, id string) (*domain.ReplenishmentSuggestion, error) {
	var row suggestionRow
	err := r.db.GetContext(ctx, &row, suggestionSelect+` WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("suggestion %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("querying suggestion by id: %w", err)
	}

	s := row.toDomain()
	return &s, nil
}

// Dismiss moves a pending suggestion to dismissed. A nil reason is stored
// as NULL. Unknown ids yield a NotFoundError, any other status a
// ConflictError.
func (r *SuggestionRepository) Dismiss(ctx context.Context, id string, reason *string, at time.Time) (*domain.ReplenishmentSuggestion, error) {
	query := `
		UPDATE replenishment_suggestions
		SET status = 'dismissed', dismiss_reason = ?, dismissed_at = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'
	`

	var dismissReason sql.NullString
	if reason != nil {
		dismissReason = sql.NullString{String: *reason, Valid: true}
	}

	res, err := r.db.ExecContext(ctx, query, dismissReason, at, at, id)
	if err != nil {
		return nil, fmt.Errorf("dismissing suggestion: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("dismissing suggestion: %w", err)
	}

	s, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, errors.NewConflictError(fmt.Sprintf("suggestion %s is %s, not pending", id, s.Status))
	}
	return s, nil
}

func (r *SuggestionRepository) FindByIDs(ctx context.Context, ids []string) ([]domain.ReplenishmentSuggestion, error) {
	ds := dialect.From("replenishment_suggestions").
		Select(suggestionColumns...).
		Where(goqu.C("id").In(ids))
	return r.selectDataset(ctx, r.db, ds, "querying suggestions by id")
}

// FindPendingByIDsForUpdate locks the subset of ids that is still pending.
func (r *SuggestionRepository) FindPendingByIDsForUpdate(ctx context.Context, tx *sqlx.Tx, ids []string) ([]domain.ReplenishmentSuggestion, error) {
	ds := dialect.From("replenishment_suggestions").
		Select(suggestionColumns...).
		Where(goqu.C("id").In(ids), goqu.C("status").Eq(string(domain.SuggestionPending))).
		Order(goqu.C("id").Asc()).
		ForUpdate(exp.Wait)
	return r.selectDataset(ctx, tx, ds, "locking pending suggestions")
}

func (r *SuggestionRepository) MarkOrdered(ctx context.Context, tx *sqlx.Tx, ids []string, purchaseOrderID int64, at time.Time) error {
	query, args, err := dialect.Update("replenishment_suggestions").
		Set(goqu.Record{
			"status":            string(domain.SuggestionOrdered),
			"purchase_order_id": purchaseOrderID,
			"updated_at":        at,
		}).
		Where(goqu.C("id").In(ids), goqu.C("status").Eq(string(domain.SuggestionPending))).
		Prepared(true).
		ToSQL()
	if err != nil {
		return fmt.Errorf("building mark ordered query: %w", err)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("marking suggestions ordered: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("marking suggestions ordered: %w", err)
	}
	if int(affected) != len(ids) {
		return errors.NewConflictError("suggestions changed status while ordering")
	}
	return nil
}

func (r *SuggestionRepository) List(ctx context.Context, f dto.SuggestionFilter) ([]domain.ReplenishmentSuggestion, error) {
	ds := dialect.From("replenishment_suggestions").
		Select(suggestionColumns...).
		Order(goqu.C("created_at").Desc(), goqu.C("id").Asc())

	if f.Priority != nil {
		ds = ds.Where(goqu.C("priority").Eq(string(*f.Priority)))
	}
	if f.Status != nil {
		ds = ds.Where(goqu.C("status").Eq(string(*f.Status)))
	}
	return r.selectDataset(ctx, r.db, ds, "listing suggestions")
}

func (r *SuggestionRepository) Summary(ctx context.Context) (*dto.SuggestionSummary, error) {
	query := `
		SELECT
			COALESCE(SUM(status = 'pending' AND priority = 'critical'), 0) AS critical,
			COALESCE(SUM(status = 'pending' AND priority = 'high'), 0) AS high,
			COALESCE(SUM(status = 'pending' AND priority = 'medium'), 0) AS medium,
			COALESCE(SUM(status = 'pending' AND priority = 'low'), 0) AS low,
			COALESCE(SUM(status = 'pending'), 0) AS total_pending,
			COALESCE(SUM(CASE WHEN status = 'pending' THEN suggested_qty ELSE 0 END), 0) AS pending_suggested_qty,
			COALESCE(SUM(status = 'ordered'), 0) AS ordered,
			COALESCE(SUM(status = 'dismissed'), 0) AS dismissed
		FROM replenishment_suggestions
	`

	var s dto.SuggestionSummary
	if err := r.db.GetContext(ctx, &s, query); err != nil {
		return nil, fmt.Errorf("summarising suggestions: %w", err)
	}
	return &s, nil
}

func (r *SuggestionRepository) selectDataset(ctx context.Context, q sqlx.QueryerContext, ds *goqu.SelectDataset, what string) ([]domain.ReplenishmentSuggestion, error) {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	var rows []suggestionRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	return toSuggestions(rows), nil
}
