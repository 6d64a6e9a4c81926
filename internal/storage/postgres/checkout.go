package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/digigoods/internal/domain/checkout"
	"github.com/xenking/digigoods/internal/domain/discount"
	"github.com/xenking/digigoods/internal/domain/order"
)

const (
	// Conditional decrement: zero rows affected means the remaining stock
	// cannot cover the requested quantity.
	decrementStockSQL = `UPDATE products SET stock = stock - $2
		WHERE id = $1 AND stock >= $2`

	getStockSQL = `SELECT stock FROM products WHERE id = $1`

	decrementUsesSQL = `UPDATE discounts SET remaining_uses = remaining_uses - 1
		WHERE id = $1 AND remaining_uses > 0`

	insertOrderSQL = `INSERT INTO orders
		(id, user_id, items, applied_codes, original_subtotal, final_price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
)

var _ checkout.Store = (*CheckoutStore)(nil)

// CheckoutStore implements checkout.Store backed by PostgreSQL. The commit
// runs in a single REPEATABLE READ transaction; sufficiency is re-checked by
// the conditional decrements, so a racing checkout loses with a typed error
// instead of corrupting counters.
type CheckoutStore struct {
	pool *pgxpool.Pool
}

// NewCheckoutStore returns a CheckoutStore that uses the given pool.
func NewCheckoutStore(pool *pgxpool.Pool) *CheckoutStore {
	return &CheckoutStore{pool: pool}
}

// Commit decrements stock for every order item and remaining uses for every
// applied discount, then persists the order. Any failure rolls back the
// whole transaction.
func (s *CheckoutStore) Commit(ctx context.Context, o *order.Order, used []discount.Discount) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return errors.Wrap(err, "begin checkout tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op once committed

	for _, item := range o.Items {
		tag, err := tx.Exec(ctx, decrementStockSQL, item.ProductID, item.Quantity)
		if err != nil {
			return commitError(err)
		}
		if tag.RowsAffected() == 0 {
			var available int32
			if err := tx.QueryRow(ctx, getStockSQL, item.ProductID).Scan(&available); err != nil {
				return errors.Wrapf(err, "read stock for product %d", item.ProductID)
			}
			return &checkout.InsufficientStockError{
				ProductID: item.ProductID,
				Requested: item.Quantity,
				Available: int(available),
			}
		}
	}

	for _, d := range used {
		tag, err := tx.Exec(ctx, decrementUsesSQL, d.ID)
		if err != nil {
			return commitError(err)
		}
		if tag.RowsAffected() == 0 {
			return &discount.CodeError{Code: d.Code, Err: discount.ErrExhausted}
		}
	}

	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return errors.Wrap(err, "marshaling order items")
	}
	codesJSON, err := json.Marshal(o.AppliedCodes)
	if err != nil {
		return errors.Wrap(err, "marshaling applied codes")
	}

	_, err = tx.Exec(ctx, insertOrderSQL,
		o.ID, o.UserID, itemsJSON, codesJSON,
		o.OriginalSubtotal, o.FinalPrice, o.CreatedAt,
	)
	if err != nil {
		return commitError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return commitError(err)
	}
	return nil
}

// commitError maps a serialization abort (the losing side of a write
// conflict) to the stock failure kind; everything else surfaces as an opaque
// internal error.
func commitError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "40001" {
		return checkout.ErrInsufficientStock
	}
	return errors.Wrap(err, "commit checkout")
}
