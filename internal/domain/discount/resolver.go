package discount

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Options tunes how discounts are evaluated.
type Options struct {
	// CapFixed limits fixed discounts to the subtotal. When false a fixed
	// discount larger than the subtotal yields a negative total.
	CapFixed bool
	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// Applied is the outcome of evaluating a discount against a subtotal.
type Applied struct {
	Discount *Discount
	Amount   decimal.Decimal
}

// Resolver validates discount codes and computes discount amounts.
type Resolver struct {
	repo     Repository
	now      func() time.Time
	capFixed bool
}

// NewResolver creates a Resolver backed by the given Repository.
func NewResolver(repo Repository, opts Options) *Resolver {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Resolver{repo: repo, now: now, capFixed: opts.CapFixed}
}

// Normalize returns the lookup form of a user-entered code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Resolve checks the code against the subtotal and records one usage of the
// discount on success.
func (r *Resolver) Resolve(ctx context.Context, code string, subtotal decimal.Decimal) (*Applied, error) {
	d, err := r.lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	if subtotal.LessThan(d.MinPurchase) {
		return nil, &MinimumPurchaseError{Minimum: d.MinPurchase}
	}

	applied := &Applied{Discount: d, Amount: r.amount(d, subtotal)}

	if err := r.repo.IncrementUsage(ctx, d.ID); err != nil {
		return nil, errors.Wrap(err, "increment discount usage")
	}
	return applied, nil
}

// Preview performs the same checks as Resolve without recording usage. When
// subtotal is not set the minimum purchase check is skipped and the amount is
// zero.
func (r *Resolver) Preview(ctx context.Context, code string, subtotal decimal.NullDecimal) (*Applied, error) {
	d, err := r.lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	if !subtotal.Valid {
		return &Applied{Discount: d, Amount: decimal.Zero}, nil
	}
	if subtotal.Decimal.LessThan(d.MinPurchase) {
		return nil, &MinimumPurchaseError{Minimum: d.MinPurchase}
	}
	return &Applied{Discount: d, Amount: r.amount(d, subtotal.Decimal)}, nil
}

func (r *Resolver) lookup(ctx context.Context, code string) (*Discount, error) {
	d, err := r.repo.FindActiveByCode(ctx, Normalize(code))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup discount")
	}

	now := r.now()
	if d.ValidFrom != nil && now.Before(*d.ValidFrom) {
		return nil, ErrNotYetValid
	}
	if d.ValidUntil != nil && now.After(*d.ValidUntil) {
		return nil, ErrExpired
	}
	return d, nil
}

func (r *Resolver) amount(d *Discount, subtotal decimal.Decimal) decimal.Decimal {
	switch d.Type {
	case Percentage:
		return subtotal.Mul(d.Value).Div(hundred).Round(2)
	default:
		if r.capFixed && d.Value.GreaterThan(subtotal) {
			return subtotal
		}
		return d.Value
	}
}
