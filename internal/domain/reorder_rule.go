package domain

type ReorderRule struct {
	ID                  int64
	VariantID           int64
	WarehouseID         int64
	MinQty              int
	MaxQty              int
	ReorderQty          *int
	PreferredSupplierID *int64
	LeadTimeDays        int
	IsActive            bool
}

func (r ReorderRule) Key() StockKey {
	return StockKey{VariantID: r.VariantID, WarehouseID: r.WarehouseID}
}

// RuleStock pairs an active rule with the available quantity read for its
// key in the same snapshot.
type RuleStock struct {
	Rule       ReorderRule
	CurrentQty int
}

func (rs RuleStock) Breached() bool {
	return rs.CurrentQty <= rs.Rule.MinQty
}
