package checkout

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xenking/digigoods/internal/domain/discount"
	"github.com/xenking/digigoods/internal/domain/product"
)

var (
	hundred = decimal.NewFromInt(100)
	// maxDiscountRatio caps the fraction of the original subtotal that
	// discounting may remove across the whole cart.
	maxDiscountRatio = decimal.NewFromFloat(0.75)
)

// ExcessiveDiscountError indicates the cumulative discount exceeded the
// cart-wide cap.
type ExcessiveDiscountError struct {
	Ratio decimal.Decimal
}

func (e *ExcessiveDiscountError) Error() string {
	return fmt.Sprintf("total discount %s%% exceeds the maximum allowed 75%%",
		e.Ratio.Mul(hundred).Round(2))
}

// Quote is the outcome of pricing a cart: both totals plus the set of
// discounts that actually affected the price. GENERAL discounts always
// apply; a PRODUCT_SPECIFIC discount applies only when at least one
// requested unit is in its applicable set.
type Quote struct {
	OriginalSubtotal decimal.Decimal
	FinalPrice       decimal.Decimal
	Applied          []discount.Discount
}

// Price computes the final price for the given units under the validated
// discounts. Units are priced individually (a duplicated product id in the
// request is a separate unit). Product-specific discounts stack by summing
// their percentages per unit; general discounts then stack the same way on
// the already-discounted subtotal. The final price is rounded half-up to
// 2 decimal places only after all arithmetic.
func Price(units []product.Product, discounts []discount.Discount) (Quote, error) {
	applied := make([]bool, len(discounts))

	original := decimal.Zero
	intermediate := decimal.Zero
	for _, u := range units {
		original = original.Add(u.Price)

		pct := decimal.Zero
		for i := range discounts {
			d := &discounts[i]
			if d.Type != discount.TypeProductSpecific || !d.AppliesTo(u.ID) {
				continue
			}
			pct = pct.Add(d.Percentage)
			applied[i] = true
		}

		contribution := u.Price
		if !pct.IsZero() {
			contribution = u.Price.Mul(hundred.Sub(pct)).Div(hundred)
		}
		intermediate = intermediate.Add(contribution)
	}

	generalPct := decimal.Zero
	for i := range discounts {
		if discounts[i].Type == discount.TypeGeneral {
			generalPct = generalPct.Add(discounts[i].Percentage)
			applied[i] = true
		}
	}

	final := intermediate
	if !generalPct.IsZero() {
		final = intermediate.Mul(hundred.Sub(generalPct)).Div(hundred)
	}

	// An empty cart prices to zero with the ratio treated as 0%.
	if original.IsPositive() {
		ratio := original.Sub(final).Div(original)
		if ratio.GreaterThan(maxDiscountRatio) {
			return Quote{}, &ExcessiveDiscountError{Ratio: ratio}
		}
	}

	q := Quote{
		OriginalSubtotal: original.Round(2),
		FinalPrice:       final.Round(2),
	}
	for i, d := range discounts {
		if applied[i] {
			q.Applied = append(q.Applied, d)
		}
	}
	return q, nil
}
