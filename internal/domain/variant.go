package domain

import "time"

// ProductVariant is the sellable unit stock is kept for. LotTracked marks
// variants whose lots carry expiry dates and are consumed first-expiry-first.
type ProductVariant struct {
	ID         int64
	SKU        string
	Name       string
	LotTracked bool
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
