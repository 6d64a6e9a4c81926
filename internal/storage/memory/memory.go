// Package memory provides a mutex-guarded in-memory implementation of the
// checkout storage contracts. It backs unit tests and the local development
// mode, and mirrors the transactional guarantees of the PostgreSQL store:
// Commit re-validates sufficiency and applies all mutations under one lock,
// or none at all.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/xenking/digigoods/internal/domain/auth"
	"github.com/xenking/digigoods/internal/domain/checkout"
	"github.com/xenking/digigoods/internal/domain/discount"
	"github.com/xenking/digigoods/internal/domain/order"
	"github.com/xenking/digigoods/internal/domain/product"
)

var (
	_ product.Repository  = (*Store)(nil)
	_ discount.Repository = (*Store)(nil)
	_ auth.Repository     = (*Store)(nil)
	_ checkout.Store      = (*Store)(nil)
)

// Store holds products, discounts, tokens, and orders in memory.
type Store struct {
	mu        sync.RWMutex
	products  map[int64]product.Product
	discounts map[string]discount.Discount
	tokens    map[string]auth.TokenInfo
	orders    []order.Order
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		products:  make(map[int64]product.Product),
		discounts: make(map[string]discount.Discount),
		tokens:    make(map[string]auth.TokenInfo),
	}
}

// AddProduct inserts or replaces a product.
func (s *Store) AddProduct(p product.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

// AddDiscount inserts or replaces a discount, keyed by code.
func (s *Store) AddDiscount(d discount.Discount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discounts[d.Code] = d
}

// AddToken inserts or replaces a bearer token entry.
func (s *Store) AddToken(t auth.TokenInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[t.TokenHash] = t
}

// List returns all products ordered by insertion-independent ID order.
func (s *Store) List(_ context.Context) ([]product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]product.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sortProducts(out)
	return out, nil
}

// GetByIDs returns copies of the products matching the given IDs. Missing
// IDs are absent from the result.
func (s *Store) GetByIDs(_ context.Context, ids []int64) ([]product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// FindByCode returns a copy of the discount with the given code, or
// discount.ErrNotFound.
func (s *Store) FindByCode(_ context.Context, code string) (*discount.Discount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.discounts[code]
	if !ok {
		return nil, discount.ErrNotFound
	}
	return &d, nil
}

// FindByHash returns the token entry with the given hash.
func (s *Store) FindByHash(_ context.Context, hash string) (*auth.TokenInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[hash]
	if !ok {
		return nil, auth.ErrTokenNotFound
	}
	return &t, nil
}

// Commit applies the checkout mutations atomically under the store lock:
// it first re-validates every stock and usage counter, then decrements them
// and records the order. A failed validation leaves the store untouched.
func (s *Store) Commit(_ context.Context, o *order.Order, used []discount.Discount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range o.Items {
		p, ok := s.products[item.ProductID]
		if !ok || p.Stock < item.Quantity {
			return &checkout.InsufficientStockError{
				ProductID: item.ProductID,
				Requested: item.Quantity,
				Available: p.Stock,
			}
		}
	}
	for _, d := range used {
		stored, ok := s.discounts[d.Code]
		if !ok || stored.RemainingUses <= 0 {
			return &discount.CodeError{Code: d.Code, Err: discount.ErrExhausted}
		}
	}

	for _, item := range o.Items {
		p := s.products[item.ProductID]
		p.Stock -= item.Quantity
		s.products[item.ProductID] = p
	}
	for _, d := range used {
		stored := s.discounts[d.Code]
		stored.RemainingUses--
		s.discounts[d.Code] = stored
	}
	s.orders = append(s.orders, *o)
	return nil
}

// ProductStock reports the current stock of a product, for test assertions.
func (s *Store) ProductStock(id int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.products[id].Stock
}

// RemainingUses reports the current usage counter of a discount, for test
// assertions.
func (s *Store) RemainingUses(code string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.discounts[code].RemainingUses
}

// Orders returns a snapshot of all committed orders.
func (s *Store) Orders() []order.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]order.Order, len(s.orders))
	copy(out, s.orders)
	return out
}

func sortProducts(ps []product.Product) {
	slices.SortFunc(ps, func(a, b product.Product) int {
		return int(a.ID - b.ID)
	})
}
