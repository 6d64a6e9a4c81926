package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is the artifact created by a committed checkout. It is written
// exactly once and never mutated afterwards.
type Order struct {
	ID               string
	UserID           int64
	Items            []Item
	AppliedCodes     []string
	OriginalSubtotal decimal.Decimal
	FinalPrice       decimal.Decimal
	CreatedAt        time.Time
}

// Item aggregates the requested units of a single product.
type Item struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}
