package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/digigoods/internal/domain/discount"
)

const getDiscountByCodeSQL = `SELECT d.id, d.code, d.percentage, d.type,
		d.valid_from, d.valid_until, d.remaining_uses,
		COALESCE(array_agg(dp.product_id) FILTER (WHERE dp.product_id IS NOT NULL), '{}')
	FROM discounts d
	LEFT JOIN discount_products dp ON dp.discount_id = d.id
	WHERE d.code = $1
	GROUP BY d.id`

var _ discount.Repository = (*DiscountRepository)(nil)

// DiscountRepository implements discount.Repository backed by PostgreSQL.
type DiscountRepository struct {
	pool *pgxpool.Pool
}

// NewDiscountRepository returns a DiscountRepository that uses the given pool.
func NewDiscountRepository(pool *pgxpool.Pool) *DiscountRepository {
	return &DiscountRepository{pool: pool}
}

// FindByCode looks up a discount by its exact code, including the applicable
// product set for PRODUCT_SPECIFIC discounts.
// Returns discount.ErrNotFound when no discount has that code.
func (r *DiscountRepository) FindByCode(ctx context.Context, code string) (*discount.Discount, error) {
	rows, err := r.pool.Query(ctx, getDiscountByCodeSQL, code)
	if err != nil {
		return nil, errors.Wrapf(err, "finding discount by code %q", code)
	}

	d, err := pgx.CollectExactlyOneRow(rows, scanDiscount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrNotFound
		}
		return nil, errors.Wrapf(err, "finding discount by code %q", code)
	}
	return &d, nil
}

func scanDiscount(row pgx.CollectableRow) (discount.Discount, error) {
	var (
		d             discount.Discount
		typ           string
		percentage    decimal.Decimal
		remainingUses int32
		productIDs    []int64
	)
	err := row.Scan(
		&d.ID, &d.Code, &percentage, &typ,
		&d.ValidFrom, &d.ValidUntil, &remainingUses, &productIDs,
	)
	d.Type = discount.Type(typ)
	d.Percentage = percentage
	d.RemainingUses = int(remainingUses)
	d.ApplicableProductIDs = productIDs
	return d, err
}
