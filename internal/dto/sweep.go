package dto

import (
	"time"

	"stockwise/internal/domain"
)

// RuleError records why one rule could not be reconciled during a sweep.
type RuleError struct {
	RuleKey string `json:"ruleKey"`
	Message string `json:"message"`
}

type AlertSweepResult struct {
	Created  int         `json:"created"`
	Updated  int         `json:"updated"`
	Resolved int         `json:"resolved"`
	Errors   []RuleError `json:"errors"`
}

// Count is the number of alerts created or refreshed by the sweep.
func (r AlertSweepResult) Count() int {
	return r.Created + r.Updated
}

type SuggestionSweepResult struct {
	Created    int         `json:"created"`
	Updated    int         `json:"updated"`
	Suppressed int         `json:"suppressed"`
	Cleared    int         `json:"cleared"`
	Errors     []RuleError `json:"errors"`
}

func (r SuggestionSweepResult) Count() int {
	return r.Created + r.Updated
}

type NotificationResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

type AlertFilter struct {
	Severity   *domain.Severity
	IsResolved *bool
}

type AlertSummary struct {
	Critical  int `json:"critical" db:"critical"`
	Warning   int `json:"warning" db:"warning"`
	Info      int `json:"info" db:"info"`
	TotalOpen int `json:"totalOpen" db:"total_open"`
	Resolved  int `json:"resolved" db:"resolved"`
	Unsent    int `json:"unsent" db:"unsent"`
}

type SuggestionFilter struct {
	Priority *domain.Priority
	Status   *domain.SuggestionStatus
}

type SuggestionSummary struct {
	Critical            int `json:"critical" db:"critical"`
	High                int `json:"high" db:"high"`
	Medium              int `json:"medium" db:"medium"`
	Low                 int `json:"low" db:"low"`
	TotalPending        int `json:"totalPending" db:"total_pending"`
	PendingSuggestedQty int `json:"pendingSuggestedQty" db:"pending_suggested_qty"`
	Ordered             int `json:"ordered" db:"ordered"`
	Dismissed           int `json:"dismissed" db:"dismissed"`
}

// PurchaseOrderGroupResult is the outcome for one (supplier, warehouse)
// group. SupplierID is nil for the group of suggestions without a supplier.
type PurchaseOrderGroupResult struct {
	SupplierID      *int64   `json:"supplierId"`
	WarehouseID     *int64   `json:"warehouseId,omitempty"`
	PONumber        string   `json:"poNumber,omitempty"`
	PurchaseOrderID *int64   `json:"purchaseOrderId,omitempty"`
	SuggestionIDs   []string `json:"suggestionIds"`
	Error           string   `json:"error,omitempty"`
}

type PurchaseOrderResult struct {
	Groups    []PurchaseOrderGroupResult `json:"groups"`
	Succeeded int                        `json:"succeeded"`
	Failed    int                        `json:"failed"`
}

type LowStockAlertDTO struct {
	ID                 string     `json:"id"`
	ProductVariantID   int64      `json:"productVariantId"`
	WarehouseID        int64      `json:"warehouseId"`
	CurrentQty         int        `json:"currentQty"`
	MinQty             int        `json:"minQty"`
	ShortageQty        int        `json:"shortageQty"`
	Severity           string     `json:"severity"`
	IsResolved         bool       `json:"isResolved"`
	ResolvedAt         *time.Time `json:"resolvedAt,omitempty"`
	NotificationSent   bool       `json:"notificationSent"`
	NotificationSentAt *time.Time `json:"notificationSentAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

type ReplenishmentSuggestionDTO struct {
	ID               string     `json:"id"`
	ProductVariantID int64      `json:"productVariantId"`
	WarehouseID      int64      `json:"warehouseId"`
	SupplierID       *int64     `json:"supplierId"`
	CurrentQty       int        `json:"currentQty"`
	MinQty           int        `json:"minQty"`
	SuggestedQty     int        `json:"suggestedQty"`
	LeadTimeDays     int        `json:"leadTimeDays"`
	Priority         string     `json:"priority"`
	Status           string     `json:"status"`
	DismissReason    *string    `json:"dismissReason,omitempty"`
	DismissedAt      *time.Time `json:"dismissedAt,omitempty"`
	PurchaseOrderID  *int64     `json:"purchaseOrderId,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

type DismissRequest struct {
	Reason string `json:"reason"`
}

type CreatePurchaseOrderRequest struct {
	SuggestionIDs []string `json:"suggestionIds"`
}

// Envelope wraps any payload with the request trace id.
type Envelope struct {
	TraceID string      `json:"traceId"`
	Data    interface{} `json:"data"`
}
