package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/digigoods/internal/domain/discount"
	"github.com/xenking/digigoods/internal/domain/order"
	"github.com/xenking/digigoods/internal/domain/product"
)

// --- Mock implementations ---

type mockProductRepo struct {
	byID  map[int64]product.Product
	calls int
	err   error
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	return nil, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []int64) ([]product.Product, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockValidator struct {
	discounts []discount.Discount
	err       error
	calls     int
}

func (m *mockValidator) Validate(_ context.Context, _ []string) ([]discount.Discount, error) {
	m.calls++
	return m.discounts, m.err
}

type mockStore struct {
	lastOrder *order.Order
	lastUsed  []discount.Discount
	err       error
	commits   int
}

func (m *mockStore) Commit(_ context.Context, o *order.Order, used []discount.Discount) error {
	m.commits++
	if m.err != nil {
		return m.err
	}
	m.lastOrder = o
	m.lastUsed = used
	return nil
}

// --- Helpers ---

func newProductRepo(products ...product.Product) *mockProductRepo {
	byID := make(map[int64]product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return &mockProductRepo{byID: byID}
}

// --- Tests ---

func TestProcess_Unauthorized(t *testing.T) {
	products := newProductRepo(p1)
	validator := &mockValidator{}
	svc := NewService(products, validator, &mockStore{})

	_, err := svc.Process(context.Background(), 2, Request{
		UserID:     1,
		ProductIDs: []int64{1},
	})

	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Zero(t, products.calls, "no product lookup before authorization")
	assert.Zero(t, validator.calls, "no discount lookup before authorization")
}

func TestProcess_EmptyItems(t *testing.T) {
	svc := NewService(newProductRepo(), &mockValidator{}, &mockStore{})

	_, err := svc.Process(context.Background(), 1, Request{UserID: 1})
	require.ErrorIs(t, err, ErrEmptyItems)
}

func TestProcess_ProductNotFound(t *testing.T) {
	svc := NewService(newProductRepo(p1), &mockValidator{}, &mockStore{})

	_, err := svc.Process(context.Background(), 1, Request{
		UserID:     1,
		ProductIDs: []int64{1, 99},
	})

	var notFound *ProductNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, int64(99), notFound.ProductID)
}

func TestProcess_DiscountValidationFailurePropagates(t *testing.T) {
	validator := &mockValidator{
		err: &discount.CodeError{Code: "BOGUS", Err: discount.ErrNotFound},
	}
	store := &mockStore{}
	svc := NewService(newProductRepo(p1), validator, store)

	_, err := svc.Process(context.Background(), 1, Request{
		UserID:        1,
		ProductIDs:    []int64{1},
		DiscountCodes: []string{"BOGUS"},
	})

	require.ErrorIs(t, err, discount.ErrNotFound)
	assert.Zero(t, store.commits, "no commit after rejected validation")
}

func TestProcess_ExcessiveDiscountRejected(t *testing.T) {
	validator := &mockValidator{discounts: []discount.Discount{general("EXCESSIVE80", "80.00")}}
	store := &mockStore{}
	svc := NewService(newProductRepo(p1, p2), validator, store)

	_, err := svc.Process(context.Background(), 1, Request{
		UserID:        1,
		ProductIDs:    []int64{1, 2},
		DiscountCodes: []string{"EXCESSIVE80"},
	})

	var excessive *ExcessiveDiscountError
	require.ErrorAs(t, err, &excessive)
	assert.Zero(t, store.commits, "stock is never decremented on excessive discount")
}

func TestProcess_InsufficientStockBeforeCommit(t *testing.T) {
	low := product.Product{ID: 7, Name: "Low stock", Price: money("5.00"), Stock: 1}
	store := &mockStore{}
	svc := NewService(newProductRepo(low), &mockValidator{}, store)

	_, err := svc.Process(context.Background(), 1, Request{
		UserID:     1,
		ProductIDs: []int64{7, 7},
	})

	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, int64(7), insufficient.ProductID)
	assert.Equal(t, 2, insufficient.Requested)
	assert.Equal(t, 1, insufficient.Available)
	assert.Zero(t, store.commits)
}

func TestProcess_CommitFailurePropagates(t *testing.T) {
	store := &mockStore{err: errors.New("db write failed")}
	svc := NewService(newProductRepo(p1), &mockValidator{}, store)

	_, err := svc.Process(context.Background(), 1, Request{
		UserID:     1,
		ProductIDs: []int64{1},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "db write failed")
}

func TestProcess_Success(t *testing.T) {
	validator := &mockValidator{discounts: []discount.Discount{
		general("GENERAL10", "10.00"),
		productSpecific("PRODUCT20", "20.00", 1),
	}}
	store := &mockStore{}
	svc := NewService(newProductRepo(p1, p2), validator, store)
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixedNow }

	result, err := svc.Process(context.Background(), 1, Request{
		UserID:        1,
		ProductIDs:    []int64{1, 2},
		DiscountCodes: []string{"GENERAL10", "PRODUCT20"},
	})

	require.NoError(t, err)
	require.NotNil(t, result.Order)

	o := result.Order
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, int64(1), o.UserID)
	assert.True(t, money("150.00").Equal(o.OriginalSubtotal))
	assert.True(t, money("117.00").Equal(o.FinalPrice), "got %s", o.FinalPrice)
	assert.ElementsMatch(t, []string{"GENERAL10", "PRODUCT20"}, o.AppliedCodes)
	assert.Equal(t, fixedNow, o.CreatedAt)
	assert.Equal(t, []order.Item{
		{ProductID: 1, Quantity: 1},
		{ProductID: 2, Quantity: 1},
	}, o.Items)

	require.Equal(t, 1, store.commits)
	assert.Same(t, o, store.lastOrder)
	assert.Len(t, store.lastUsed, 2)
	assert.Len(t, result.Products, 2)
}

func TestProcess_DuplicateProductsAggregateIntoItems(t *testing.T) {
	store := &mockStore{}
	svc := NewService(newProductRepo(p1, p2), &mockValidator{}, store)

	result, err := svc.Process(context.Background(), 1, Request{
		UserID:     1,
		ProductIDs: []int64{1, 2, 1, 1},
	})

	require.NoError(t, err)
	assert.Equal(t, []order.Item{
		{ProductID: 1, Quantity: 3},
		{ProductID: 2, Quantity: 1},
	}, result.Order.Items)
	// Each unit is priced separately: 3*100 + 50.
	assert.True(t, money("350.00").Equal(result.Order.FinalPrice))
}

func TestProcess_NoDiscountsFinalEqualsSubtotal(t *testing.T) {
	store := &mockStore{}
	svc := NewService(newProductRepo(p1, p2), &mockValidator{}, store)

	result, err := svc.Process(context.Background(), 1, Request{
		UserID:     1,
		ProductIDs: []int64{1, 2},
	})

	require.NoError(t, err)
	assert.True(t, result.Order.FinalPrice.Equal(result.Order.OriginalSubtotal))
	assert.Empty(t, result.Order.AppliedCodes)
	assert.Empty(t, store.lastUsed)
}
