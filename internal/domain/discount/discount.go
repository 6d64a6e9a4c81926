package discount

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates the supported discount scopes.
type Type string

const (
	// TypeGeneral applies to the whole order subtotal after product-specific
	// discounts.
	TypeGeneral Type = "GENERAL"
	// TypeProductSpecific applies only to units of products in the discount's
	// applicable set, before general discounts.
	TypeProductSpecific Type = "PRODUCT_SPECIFIC"
)

// Sentinel errors for discount code validation. Each is surfaced to callers
// wrapped in a CodeError naming the offending code.
var (
	ErrNotFound    = errors.New("discount code not found")
	ErrNotYetValid = errors.New("discount is not yet valid")
	ErrExpired     = errors.New("discount has expired")
	ErrExhausted   = errors.New("discount has no remaining uses")
)

// CodeError reports a validation failure for a single discount code.
type CodeError struct {
	Code string
	Err  error
}

func (e *CodeError) Error() string {
	return fmt.Sprintf("invalid discount %q: %s", e.Code, e.Err)
}

func (e *CodeError) Unwrap() error { return e.Err }

// Discount represents a promo code with its eligibility constraints.
// RemainingUses is decremented only by the checkout commit.
type Discount struct {
	ID         int64
	Code       string
	Percentage decimal.Decimal
	Type       Type
	// ValidFrom and ValidUntil bound the validity window, inclusive on both
	// ends, compared as calendar dates.
	ValidFrom     time.Time
	ValidUntil    time.Time
	RemainingUses int
	// ApplicableProductIDs is only populated for PRODUCT_SPECIFIC discounts.
	// An empty set applies to nothing.
	ApplicableProductIDs []int64
}

// AppliesTo reports whether the discount affects the price of the given
// product: GENERAL discounts apply to everything, PRODUCT_SPECIFIC discounts
// only to products in their applicable set.
func (d *Discount) AppliesTo(productID int64) bool {
	switch d.Type {
	case TypeGeneral:
		return true
	case TypeProductSpecific:
		for _, id := range d.ApplicableProductIDs {
			if id == productID {
				return true
			}
		}
	}
	return false
}

// Repository provides lookup of discounts by code.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Discount, error)
}
