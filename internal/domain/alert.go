package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityWarning, SeverityInfo:
		return true
	}
	return false
}

var (
	criticalBand = decimal.RequireFromString("0.25")
	warningBand  = decimal.RequireFromString("0.50")
)

// StockRatio is current/min, or zero when min is not positive.
func StockRatio(currentQty, minQty int) decimal.Decimal {
	if minQty <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(currentQty)).Div(decimal.NewFromInt(int64(minQty)))
}

// ClassifySeverity returns the band for a breached key. Callers check the
// breach (current <= min) first; every ratio above the warning band maps
// to info.
func ClassifySeverity(currentQty, minQty int) Severity {
	ratio := StockRatio(currentQty, minQty)
	switch {
	case ratio.LessThanOrEqual(criticalBand):
		return SeverityCritical
	case ratio.LessThanOrEqual(warningBand):
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

func Shortage(currentQty, minQty int) int {
	if currentQty >= minQty {
		return 0
	}
	return minQty - currentQty
}

type LowStockAlert struct {
	ID                 string
	VariantID          int64
	WarehouseID        int64
	CurrentQty         int
	MinQty             int
	ShortageQty        int
	Severity           Severity
	IsResolved         bool
	ResolvedAt         *time.Time
	NotificationSent   bool
	NotificationSentAt *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (a LowStockAlert) Key() StockKey {
	return StockKey{VariantID: a.VariantID, WarehouseID: a.WarehouseID}
}

// NewLowStockAlert builds the open alert for a breached rule.
func NewLowStockAlert(id string, rs RuleStock, now time.Time) LowStockAlert {
	a := LowStockAlert{
		ID:          id,
		VariantID:   rs.Rule.VariantID,
		WarehouseID: rs.Rule.WarehouseID,
		CreatedAt:   now,
	}
	a.Refresh(rs, now)
	return a
}

// Refresh rewrites the measured fields of an open alert in place.
func (a *LowStockAlert) Refresh(rs RuleStock, now time.Time) {
	a.CurrentQty = rs.CurrentQty
	a.MinQty = rs.Rule.MinQty
	a.ShortageQty = Shortage(rs.CurrentQty, rs.Rule.MinQty)
	a.Severity = ClassifySeverity(rs.CurrentQty, rs.Rule.MinQty)
	a.UpdatedAt = now
}
