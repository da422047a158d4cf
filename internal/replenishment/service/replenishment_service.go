package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"stockwise/internal/domain"
	"stockwise/internal/dto"
	apperrors "stockwise/internal/errors"
	"stockwise/internal/infrastructure/mysql"
)

type RuleSnapshotter interface {
	ActiveRuleStock(ctx context.Context) ([]domain.RuleStock, error)
}

type SuggestionRepository interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
	FindPendingByKeyForUpdate(ctx context.Context, tx *sqlx.Tx, key domain.StockKey) (*domain.ReplenishmentSuggestion, error)
	FindLatestDismissedByKey(ctx context.Context, tx *sqlx.Tx, key domain.StockKey) (*domain.ReplenishmentSuggestion, error)
	Insert(ctx context.Context, tx *sqlx.Tx, s domain.ReplenishmentSuggestion) error
	Update(ctx context.Context, tx *sqlx.Tx, s domain.ReplenishmentSuggestion) error
	ClearRetrigger(ctx context.Context, tx *sqlx.Tx, key domain.StockKey, at time.Time) (int64, error)
	Dismiss(ctx context.Context, id string, reason *string, at time.Time) (*domain.ReplenishmentSuggestion, error)
	FindByIDs(ctx context.Context, ids []string) ([]domain.ReplenishmentSuggestion, error)
	FindPendingByIDsForUpdate(ctx context.Context, tx *sqlx.Tx, ids []string) ([]domain.ReplenishmentSuggestion, error)
	MarkOrdered(ctx context.Context, tx *sqlx.Tx, ids []string, purchaseOrderID int64, at time.Time) error
	List(ctx context.Context, f dto.SuggestionFilter) ([]domain.ReplenishmentSuggestion, error)
	Summary(ctx context.Context) (*dto.SuggestionSummary, error)
}

// PurchaseOrderCreator drafts one purchase order in the caller's
// transaction.
type PurchaseOrderCreator interface {
	Create(ctx context.Context, tx *sqlx.Tx, req domain.PurchaseOrderRequest) (*domain.PurchaseOrder, error)
}

type ReplenishmentService struct {
	rules       RuleSnapshotter
	suggestions SuggestionRepository
	purchasing  PurchaseOrderCreator
	logger      *zap.Logger
	txSettings  mysql.TxSettings
	policy      domain.RetriggerPolicy
	cooldown    time.Duration
	now         func() time.Time
	newID       func() string
}

func NewReplenishmentService(
	rules RuleSnapshotter,
	suggestions SuggestionRepository,
	purchasing PurchaseOrderCreator,
	logger *zap.Logger,
	txSettings mysql.TxSettings,
	policy domain.RetriggerPolicy,
	cooldown time.Duration,
) *ReplenishmentService {
	if !policy.Valid() {
		logger.Warn("unknown retrigger policy, using recovery", zap.String("policy", string(policy)))
		policy = domain.RetriggerRecovery
	}
	return &ReplenishmentService{
		rules:       rules,
		suggestions: suggestions,
		purchasing:  purchasing,
		logger:      logger,
		txSettings:  txSettings,
		policy:      policy,
		cooldown:    cooldown,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       func() string { return uuid.New().String() },
	}
}

type suggestionOutcome int

const (
	suggestionUnchanged suggestionOutcome = iota
	suggestionCreated
	suggestionUpdated
	suggestionSuppressed
	suggestionCleared
)

// Generate reconciles pending suggestions with every active rule, one
// transaction per rule.
func (s *ReplenishmentService) Generate(ctx context.Context) (*dto.SuggestionSweepResult, error) {
	snapshot, err := s.rules.ActiveRuleStock(ctx)
	if err != nil {
		return nil, err
	}

	result := &dto.SuggestionSweepResult{Errors: []dto.RuleError{}}
	for _, rs := range snapshot {
		var outcome suggestionOutcome
		err := mysql.InTxx(ctx, s.suggestions, s.txSettings, s.logger, func(ctx context.Context, tx *sqlx.Tx) error {
			o, err := s.reconcile(ctx, tx, rs)
			outcome = o
			return err
		})
		if err != nil {
			s.logger.Error("suggestion reconciliation failed", zap.String("ruleKey", rs.Rule.Key().String()), zap.Error(err))
			result.Errors = append(result.Errors, dto.RuleError{RuleKey: rs.Rule.Key().String(), Message: err.Error()})
			continue
		}

		switch outcome {
		case suggestionCreated:
			result.Created++
		case suggestionUpdated:
			result.Updated++
		case suggestionSuppressed:
			result.Suppressed++
		case suggestionCleared:
			result.Cleared++
		}
	}

	s.logger.Info("suggestion sweep finished",
		zap.Int("rules", len(snapshot)),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("suppressed", result.Suppressed),
		zap.Int("cleared", result.Cleared),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

func (s *ReplenishmentService) reconcile(ctx context.Context, tx *sqlx.Tx, rs domain.RuleStock) (suggestionOutcome, error) {
	key := rs.Rule.Key()
	now := s.now()

	if !rs.Breached() {
		if s.policy != domain.RetriggerRecovery {
			return suggestionUnchanged, nil
		}
		n, err := s.suggestions.ClearRetrigger(ctx, tx, key, now)
		if err != nil {
			return suggestionUnchanged, err
		}
		if n > 0 {
			return suggestionCleared, nil
		}
		return suggestionUnchanged, nil
	}

	pending, err := s.suggestions.FindPendingByKeyForUpdate(ctx, tx, key)
	if err != nil {
		return suggestionUnchanged, err
	}
	if pending != nil {
		pending.Refresh(rs, now)
		if err := s.suggestions.Update(ctx, tx, *pending); err != nil {
			return suggestionUnchanged, err
		}
		return suggestionUpdated, nil
	}

	dismissed, err := s.suggestions.FindLatestDismissedByKey(ctx, tx, key)
	if err != nil {
		return suggestionUnchanged, err
	}
	if dismissed != nil && s.policy.Blocks(*dismissed, s.cooldown, now) {
		return suggestionSuppressed, nil
	}

	if err := s.suggestions.Insert(ctx, tx, domain.NewReplenishmentSuggestion(s.newID(), rs, now)); err != nil {
		return suggestionUnchanged, err
	}
	return suggestionCreated, nil
}

// Dismiss moves a pending suggestion to dismissed. The reason is optional;
// a blank one is stored as NULL.
func (s *ReplenishmentService) Dismiss(ctx context.Context, id, reason string) (*domain.ReplenishmentSuggestion, error) {
	var stored *string
	if trimmed := strings.TrimSpace(reason); trimmed != "" {
		stored = &trimmed
	}

	dismissed, err := s.suggestions.Dismiss(ctx, id, stored, s.now())
	if err != nil {
		return nil, err
	}

	s.logger.Info("suggestion dismissed", zap.String("suggestionId", id), zap.String("key", dismissed.Key().String()))
	return dismissed, nil
}

type poGroupKey struct {
	supplierID  int64
	warehouseID int64
}

// CreatePurchaseOrder turns pending suggestions into draft purchase orders,
// one per (supplier, warehouse). Every id must exist and be pending; after
// that each group commits or fails on its own.
func (s *ReplenishmentService) CreatePurchaseOrder(ctx context.Context, ids []string) (*dto.PurchaseOrderResult, error) {
	ids, err := normalizeIDs(ids)
	if err != nil {
		return nil, err
	}

	found, err := s.suggestions.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if err := checkOrderable(ids, found); err != nil {
		return nil, err
	}

	result := &dto.PurchaseOrderResult{Groups: []dto.PurchaseOrderGroupResult{}}

	groups := make(map[poGroupKey][]domain.ReplenishmentSuggestion)
	var withoutSupplier []string
	for _, sug := range found {
		if sug.SupplierID == nil {
			withoutSupplier = append(withoutSupplier, sug.ID)
			continue
		}
		k := poGroupKey{supplierID: *sug.SupplierID, warehouseID: sug.WarehouseID}
		groups[k] = append(groups[k], sug)
	}

	if len(withoutSupplier) > 0 {
		sort.Strings(withoutSupplier)
		missing := apperrors.NewMissingSupplierError(withoutSupplier...)
		s.logger.Warn("suggestions without supplier", zap.Strings("suggestionIds", withoutSupplier))
		result.Groups = append(result.Groups, dto.PurchaseOrderGroupResult{
			SuggestionIDs: withoutSupplier,
			Error:         missing.Error(),
		})
		result.Failed++
	}

	keys := make([]poGroupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].supplierID != keys[j].supplierID {
			return keys[i].supplierID < keys[j].supplierID
		}
		return keys[i].warehouseID < keys[j].warehouseID
	})

	for _, k := range keys {
		group := s.orderGroup(ctx, k, groups[k])
		if group.Error != "" {
			result.Failed++
		} else {
			result.Succeeded++
		}
		result.Groups = append(result.Groups, group)
	}

	s.logger.Info("purchase orders created",
		zap.Int("suggestions", len(ids)),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (s *ReplenishmentService) orderGroup(ctx context.Context, k poGroupKey, suggestions []domain.ReplenishmentSuggestion) dto.PurchaseOrderGroupResult {
	sort.Slice(suggestions, func(i, j int) bool { return suggestions[i].ID < suggestions[j].ID })

	ids := make([]string, len(suggestions))
	for i, sug := range suggestions {
		ids[i] = sug.ID
	}

	supplierID, warehouseID := k.supplierID, k.warehouseID
	group := dto.PurchaseOrderGroupResult{
		SupplierID:    &supplierID,
		WarehouseID:   &warehouseID,
		SuggestionIDs: ids,
	}
	logger := s.logger.With(zap.Int64("supplierId", supplierID), zap.Int64("warehouseId", warehouseID))

	var po *domain.PurchaseOrder
	err := mysql.InTxx(ctx, s.suggestions, s.txSettings, s.logger, func(ctx context.Context, tx *sqlx.Tx) error {
		locked, err := s.suggestions.FindPendingByIDsForUpdate(ctx, tx, ids)
		if err != nil {
			return err
		}
		if len(locked) != len(ids) {
			return apperrors.NewConflictError("some suggestions are no longer pending")
		}

		now := s.now()
		req := domain.PurchaseOrderRequest{
			SupplierID:  supplierID,
			WarehouseID: warehouseID,
			ExpectedAt:  now.AddDate(0, 0, maxLeadTime(locked)),
			Lines:       make([]domain.PurchaseOrderLine, len(locked)),
		}
		for i, sug := range locked {
			req.Lines[i] = domain.PurchaseOrderLine{SuggestionID: sug.ID, VariantID: sug.VariantID, Quantity: sug.SuggestedQty}
		}

		created, err := s.purchasing.Create(ctx, tx, req)
		if err != nil {
			return err
		}
		if err := s.suggestions.MarkOrdered(ctx, tx, ids, created.ID, now); err != nil {
			return err
		}
		po = created
		return nil
	})
	if err != nil {
		logger.Error("purchase order group failed", zap.Strings("suggestionIds", ids), zap.Error(err))
		group.Error = err.Error()
		return group
	}

	group.PONumber = po.PONumber
	group.PurchaseOrderID = &po.ID
	logger.Info("purchase order drafted", zap.String("poNumber", po.PONumber), zap.Int64("purchaseOrderId", po.ID))
	return group
}

func (s *ReplenishmentService) List(ctx context.Context, f dto.SuggestionFilter) ([]domain.ReplenishmentSuggestion, error) {
	return s.suggestions.List(ctx, f)
}

func (s *ReplenishmentService) Summary(ctx context.Context) (*dto.SuggestionSummary, error) {
	return s.suggestions.Summary(ctx)
}

// normalizeIDs trims and de-duplicates the requested ids, keeping their
// first-seen order.
func normalizeIDs(ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, apperrors.NewValidationError("invalid purchase order request", apperrors.ValidationDetail{
			Field:   "suggestionIds",
			Message: "at least one suggestion id is required",
		})
	}

	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for i, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, apperrors.NewValidationError("invalid purchase order request", apperrors.ValidationDetail{
				Field:   fmt.Sprintf("suggestionIds[%d]", i),
				Message: "suggestion id must not be empty",
			})
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, nil
}

func checkOrderable(ids []string, found []domain.ReplenishmentSuggestion) error {
	byID := make(map[string]domain.ReplenishmentSuggestion, len(found))
	for _, sug := range found {
		byID[sug.ID] = sug
	}

	var missing, notPending []string
	for _, id := range ids {
		sug, ok := byID[id]
		switch {
		case !ok:
			missing = append(missing, id)
		case sug.Status != domain.SuggestionPending:
			notPending = append(notPending, id)
		}
	}

	if len(missing) > 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("suggestions not found: %s", strings.Join(missing, ", ")))
	}
	if len(notPending) > 0 {
		return apperrors.NewConflictError(fmt.Sprintf("suggestions not pending: %s", strings.Join(notPending, ", ")))
	}
	return nil
}

func maxLeadTime(suggestions []domain.ReplenishmentSuggestion) int {
	days := 0
	for _, sug := range suggestions {
		if sug.LeadTimeDays > days {
			days = sug.LeadTimeDays
		}
	}
	return days
}
