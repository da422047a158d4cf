package domain

import "time"

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	// PriorityLow belongs to rules that are active but not breached. The
	// sweep never emits it.
	PriorityLow Priority = "low"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

func PriorityForSeverity(s Severity) Priority {
	switch s {
	case SeverityCritical:
		return PriorityCritical
	case SeverityWarning:
		return PriorityHigh
	case SeverityInfo:
		return PriorityMedium
	}
	return PriorityLow
}

// PriorityForStock is the priority a rule would carry right now.
func PriorityForStock(rs RuleStock) Priority {
	if !rs.Breached() {
		return PriorityLow
	}
	return PriorityForSeverity(ClassifySeverity(rs.CurrentQty, rs.Rule.MinQty))
}

type SuggestionStatus string

const (
	SuggestionPending   SuggestionStatus = "pending"
	SuggestionOrdered   SuggestionStatus = "ordered"
	SuggestionDismissed SuggestionStatus = "dismissed"
)

func (s SuggestionStatus) Valid() bool {
	switch s {
	case SuggestionPending, SuggestionOrdered, SuggestionDismissed:
		return true
	}
	return false
}

// SuggestedQty is the fixed reorder quantity when the rule has one, else
// the gap up to max.
func SuggestedQty(rs RuleStock) int {
	if rs.Rule.ReorderQty != nil {
		return *rs.Rule.ReorderQty
	}
	gap := rs.Rule.MaxQty - rs.CurrentQty
	if gap < 0 {
		return 0
	}
	return gap
}

type ReplenishmentSuggestion struct {
	ID                 string
	VariantID          int64
	WarehouseID        int64
	SupplierID         *int64
	CurrentQty         int
	MinQty             int
	SuggestedQty       int
	LeadTimeDays       int
	Priority           Priority
	Status             SuggestionStatus
	DismissReason      *string
	DismissedAt        *time.Time
	RetriggerClearedAt *time.Time
	PurchaseOrderID    *int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (s ReplenishmentSuggestion) Key() StockKey {
	return StockKey{VariantID: s.VariantID, WarehouseID: s.WarehouseID}
}

func NewReplenishmentSuggestion(id string, rs RuleStock, now time.Time) ReplenishmentSuggestion {
	s := ReplenishmentSuggestion{
		ID:          id,
		VariantID:   rs.Rule.VariantID,
		WarehouseID: rs.Rule.WarehouseID,
		Status:      SuggestionPending,
		CreatedAt:   now,
	}
	s.Refresh(rs, now)
	return s
}

// Refresh rewrites quantities, supplier and priority of a pending suggestion.
func (s *ReplenishmentSuggestion) Refresh(rs RuleStock, now time.Time) {
	s.SupplierID = rs.Rule.PreferredSupplierID
	s.CurrentQty = rs.CurrentQty
	s.MinQty = rs.Rule.MinQty
	s.SuggestedQty = SuggestedQty(rs)
	s.LeadTimeDays = rs.Rule.LeadTimeDays
	s.Priority = PriorityForStock(rs)
	s.UpdatedAt = now
}

type RetriggerPolicy string

const (
	// RetriggerImmediate lets the next breach create a new suggestion.
	RetriggerImmediate RetriggerPolicy = "immediate"
	// RetriggerCooldown blocks new suggestions until the latest dismissal
	// is older than the configured cooldown.
	RetriggerCooldown RetriggerPolicy = "cooldown"
	// RetriggerRecovery blocks new suggestions until stock has recovered
	// above min_qty at least once after the dismissal.
	RetriggerRecovery RetriggerPolicy = "recovery"
)

func (p RetriggerPolicy) Valid() bool {
	switch p {
	case RetriggerImmediate, RetriggerCooldown, RetriggerRecovery:
		return true
	}
	return false
}

// Blocks reports whether a dismissed suggestion still suppresses new ones
// for its key.
func (p RetriggerPolicy) Blocks(dismissed ReplenishmentSuggestion, cooldown time.Duration, now time.Time) bool {
	switch p {
	case RetriggerImmediate:
		return false
	case RetriggerCooldown:
		if dismissed.DismissedAt == nil {
			return false
		}
		return now.Sub(*dismissed.DismissedAt) < cooldown
	default:
		return dismissed.RetriggerClearedAt == nil
	}
}
