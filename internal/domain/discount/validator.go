package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Validator resolves a batch of discount codes to Discount entities,
// rejecting the whole batch on the first invalid code.
type Validator interface {
	Validate(ctx context.Context, codes []string) ([]Discount, error)
}

// RepoValidator implements Validator by looking up discounts in a Repository
// and checking validity windows and remaining uses against the current date.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Validate resolves every distinct code in the order of first occurrence.
// A nil or empty code list yields an empty result. Validation is
// all-or-nothing: the first failing code aborts the batch and no discounts
// are returned, so a partially valid batch never applies partially.
func (v *RepoValidator) Validate(ctx context.Context, codes []string) ([]Discount, error) {
	if len(codes) == 0 {
		return nil, nil
	}

	today := dateOf(v.now())

	seen := make(map[string]struct{}, len(codes))
	discounts := make([]Discount, 0, len(codes))
	for _, code := range codes {
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}

		d, err := v.repo.FindByCode(ctx, code)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, &CodeError{Code: code, Err: ErrNotFound}
			}
			return nil, errors.Wrapf(err, "lookup discount %q", code)
		}

		if err := checkUsable(d, today); err != nil {
			return nil, &CodeError{Code: code, Err: err}
		}

		discounts = append(discounts, *d)
	}

	return discounts, nil
}

// checkUsable classifies a discount as usable on the given date.
func checkUsable(d *Discount, today time.Time) error {
	if today.Before(dateOf(d.ValidFrom)) {
		return ErrNotYetValid
	}
	if today.After(dateOf(d.ValidUntil)) {
		return ErrExpired
	}
	if d.RemainingUses <= 0 {
		return ErrExhausted
	}
	return nil
}

// dateOf truncates a timestamp to its UTC calendar date, so the validity
// window is inclusive on both ends regardless of time of day.
func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
