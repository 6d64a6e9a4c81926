package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/digigoods/internal/domain/discount"
	"github.com/xenking/digigoods/internal/domain/order"
	"github.com/xenking/digigoods/internal/domain/product"
)

// Sentinel errors for checkout validation.
var (
	ErrEmptyItems = errors.New("product ids required")
	// ErrUnauthorized is returned when the requesting user id does not match
	// the authenticated identity.
	ErrUnauthorized = errors.New("user cannot place order for another user")
	// ErrInsufficientStock is the kind shared by all stock failures,
	// including commit-time races. Match with errors.Is.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

// InsufficientStockError reports a product whose requested quantity exceeds
// the available stock.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// Store commits a priced checkout as one atomic unit: decrement stock for
// every order item, decrement remaining uses for every applied discount, and
// persist the order. Implementations must re-check stock and usage counters
// inside the same transaction so concurrent checkouts cannot drive either
// negative, and must leave no partial mutation behind on failure.
type Store interface {
	Commit(ctx context.Context, o *order.Order, used []discount.Discount) error
}

// Request is a checkout submission. ProductIDs keeps duplicates: each
// occurrence is a separate unit to price. Duplicate discount codes collapse
// to the same discount.
type Request struct {
	UserID        int64
	ProductIDs    []int64
	DiscountCodes []string
}

// Result holds the created order and the resolved products.
type Result struct {
	Order    *order.Order
	Products []product.Product
}

// Service orchestrates a checkout: authorize, resolve products, validate
// discounts, price, and commit. Every rejection is terminal for the attempt;
// nothing is retried and no state mutates before the commit step.
type Service struct {
	products  product.Repository
	discounts discount.Validator
	store     Store
	now       func() time.Time
}

// NewService creates a checkout Service with the required dependencies.
func NewService(products product.Repository, discounts discount.Validator, store Store) *Service {
	return &Service{
		products:  products,
		discounts: discounts,
		store:     store,
		now:       time.Now,
	}
}

// Process runs the full checkout pipeline for an authenticated user.
func (s *Service) Process(ctx context.Context, authenticatedUserID int64, req Request) (*Result, error) {
	// Identity check comes first: no store access happens for a request
	// placed on behalf of another user.
	if req.UserID != authenticatedUserID {
		return nil, ErrUnauthorized
	}

	if len(req.ProductIDs) == 0 {
		return nil, ErrEmptyItems
	}

	// Resolve all products in a single batch, distinct ids only.
	distinct := make([]int64, 0, len(req.ProductIDs))
	quantities := make(map[int64]int, len(req.ProductIDs))
	for _, id := range req.ProductIDs {
		if _, ok := quantities[id]; !ok {
			distinct = append(distinct, id)
		}
		quantities[id]++
	}

	fetched, err := s.products.GetByIDs(ctx, distinct)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}

	byID := make(map[int64]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}
	for _, id := range distinct {
		if _, ok := byID[id]; !ok {
			return nil, &ProductNotFoundError{ProductID: id}
		}
	}

	// Validate the discount batch: all codes resolve or the checkout rejects.
	discounts, err := s.discounts.Validate(ctx, req.DiscountCodes)
	if err != nil {
		return nil, err
	}

	// Price each requested unit.
	units := make([]product.Product, len(req.ProductIDs))
	for i, id := range req.ProductIDs {
		units[i] = byID[id]
	}
	quote, err := Price(units, discounts)
	if err != nil {
		return nil, err
	}

	// Pre-commit stock check. The commit re-validates under the transaction;
	// this pass rejects obviously oversold requests without opening one.
	items := make([]order.Item, 0, len(distinct))
	for _, id := range distinct {
		p := byID[id]
		qty := quantities[id]
		if qty > p.Stock {
			return nil, &InsufficientStockError{ProductID: id, Requested: qty, Available: p.Stock}
		}
		items = append(items, order.Item{ProductID: id, Quantity: qty})
	}

	codes := make([]string, len(quote.Applied))
	for i, d := range quote.Applied {
		codes[i] = d.Code
	}

	o := &order.Order{
		ID:               uuid.New().String(),
		UserID:           req.UserID,
		Items:            items,
		AppliedCodes:     codes,
		OriginalSubtotal: quote.OriginalSubtotal,
		FinalPrice:       quote.FinalPrice,
		CreatedAt:        s.now(),
	}

	if err := s.store.Commit(ctx, o, quote.Applied); err != nil {
		return nil, err
	}

	products := make([]product.Product, len(distinct))
	for i, id := range distinct {
		products[i] = byID[id]
	}
	return &Result{Order: o, Products: products}, nil
}
