package discount

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockDiscountRepo struct {
	byCode  map[string]*Discount
	lookups []string
}

func (m *mockDiscountRepo) FindByCode(_ context.Context, code string) (*Discount, error) {
	m.lookups = append(m.lookups, code)
	d, ok := m.byCode[code]
	if !ok {
		return nil, ErrNotFound
	}
	return d, nil
}

func TestRepoValidator_Validate(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	yesterday := fixedNow.AddDate(0, 0, -1)
	tomorrow := fixedNow.AddDate(0, 0, 1)
	lastMonth := fixedNow.AddDate(0, -1, 0)
	nextMonth := fixedNow.AddDate(0, 1, 0)

	valid := &Discount{
		ID:            1,
		Code:          "GENERAL10",
		Percentage:    decimal.NewFromInt(10),
		Type:          TypeGeneral,
		ValidFrom:     lastMonth,
		ValidUntil:    nextMonth,
		RemainingUses: 10,
	}
	productSpecific := &Discount{
		ID:                   2,
		Code:                 "PRODUCT20",
		Percentage:           decimal.NewFromInt(20),
		Type:                 TypeProductSpecific,
		ValidFrom:            lastMonth,
		ValidUntil:           nextMonth,
		RemainingUses:        5,
		ApplicableProductIDs: []int64{1},
	}

	tests := []struct {
		name      string
		byCode    map[string]*Discount
		codes     []string
		wantCodes []string
		wantErr   error
		errCode   string
	}{
		{
			name:   "nil codes yields empty result",
			byCode: map[string]*Discount{},
			codes:  nil,
		},
		{
			name:   "empty codes yields empty result",
			byCode: map[string]*Discount{},
			codes:  []string{},
		},
		{
			name:      "single valid code resolves",
			byCode:    map[string]*Discount{"GENERAL10": valid},
			codes:     []string{"GENERAL10"},
			wantCodes: []string{"GENERAL10"},
		},
		{
			name:      "duplicate codes collapse to one discount",
			byCode:    map[string]*Discount{"GENERAL10": valid},
			codes:     []string{"GENERAL10", "GENERAL10", "GENERAL10"},
			wantCodes: []string{"GENERAL10"},
		},
		{
			name:      "order follows first occurrence in input",
			byCode:    map[string]*Discount{"GENERAL10": valid, "PRODUCT20": productSpecific},
			codes:     []string{"PRODUCT20", "GENERAL10", "PRODUCT20"},
			wantCodes: []string{"PRODUCT20", "GENERAL10"},
		},
		{
			name:    "unknown code fails the whole batch",
			byCode:  map[string]*Discount{"GENERAL10": valid},
			codes:   []string{"GENERAL10", "NONEXISTENT"},
			wantErr: ErrNotFound,
			errCode: "NONEXISTENT",
		},
		{
			name: "not yet valid",
			byCode: map[string]*Discount{"FUTURE10": {
				Code: "FUTURE10", Type: TypeGeneral,
				Percentage: decimal.NewFromInt(10),
				ValidFrom:  tomorrow, ValidUntil: nextMonth,
				RemainingUses: 5,
			}},
			codes:   []string{"FUTURE10"},
			wantErr: ErrNotYetValid,
			errCode: "FUTURE10",
		},
		{
			name: "expired",
			byCode: map[string]*Discount{"EXPIRED10": {
				Code: "EXPIRED10", Type: TypeGeneral,
				Percentage: decimal.NewFromInt(10),
				ValidFrom:  lastMonth, ValidUntil: yesterday,
				RemainingUses: 5,
			}},
			codes:   []string{"EXPIRED10"},
			wantErr: ErrExpired,
			errCode: "EXPIRED10",
		},
		{
			name: "no remaining uses",
			byCode: map[string]*Discount{"NOUSES10": {
				Code: "NOUSES10", Type: TypeGeneral,
				Percentage: decimal.NewFromInt(10),
				ValidFrom:  lastMonth, ValidUntil: nextMonth,
				RemainingUses: 0,
			}},
			codes:   []string{"NOUSES10"},
			wantErr: ErrExhausted,
			errCode: "NOUSES10",
		},
		{
			name: "window start is inclusive",
			byCode: map[string]*Discount{"STARTS": {
				Code: "STARTS", Type: TypeGeneral,
				Percentage: decimal.NewFromInt(10),
				ValidFrom:  fixedNow, ValidUntil: nextMonth,
				RemainingUses: 5,
			}},
			codes:     []string{"STARTS"},
			wantCodes: []string{"STARTS"},
		},
		{
			name: "window end is inclusive",
			byCode: map[string]*Discount{"ENDS": {
				Code: "ENDS", Type: TypeGeneral,
				Percentage: decimal.NewFromInt(10),
				ValidFrom:  lastMonth, ValidUntil: fixedNow,
				RemainingUses: 5,
			}},
			codes:     []string{"ENDS"},
			wantCodes: []string{"ENDS"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockDiscountRepo{byCode: tt.byCode}
			v := NewRepoValidator(repo)
			v.now = func() time.Time { return fixedNow }

			got, err := v.Validate(context.Background(), tt.codes)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				var codeErr *CodeError
				require.ErrorAs(t, err, &codeErr)
				assert.Equal(t, tt.errCode, codeErr.Code)
				assert.Nil(t, got, "no discounts returned on batch failure")
				return
			}

			require.NoError(t, err)
			gotCodes := make([]string, len(got))
			for i, d := range got {
				gotCodes[i] = d.Code
			}
			if len(tt.wantCodes) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.wantCodes, gotCodes)
		})
	}
}

func TestRepoValidator_StopsAtFirstFailure(t *testing.T) {
	repo := &mockDiscountRepo{byCode: map[string]*Discount{}}
	v := NewRepoValidator(repo)

	_, err := v.Validate(context.Background(), []string{"MISSING1", "MISSING2"})

	require.Error(t, err)
	assert.Equal(t, []string{"MISSING1"}, repo.lookups, "validation stops at first failing code")
}

func TestDiscount_AppliesTo(t *testing.T) {
	general := Discount{Type: TypeGeneral}
	assert.True(t, general.AppliesTo(42))

	specific := Discount{Type: TypeProductSpecific, ApplicableProductIDs: []int64{1, 2}}
	assert.True(t, specific.AppliesTo(1))
	assert.False(t, specific.AppliesTo(42))

	// A PRODUCT_SPECIFIC discount with an empty set applies to nothing.
	empty := Discount{Type: TypeProductSpecific}
	assert.False(t, empty.AppliesTo(1))
}
