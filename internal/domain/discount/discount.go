package discount

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates the supported discount strategies.
type Type string

const (
	// Percentage takes Value percent off the subtotal.
	Percentage Type = "percentage"
	// Fixed takes Value off the subtotal as a flat amount.
	Fixed Type = "fixed"
)

// Valid reports whether t is a known discount type.
func (t Type) Valid() bool {
	return t == Percentage || t == Fixed
}

var (
	// ErrNotFound is returned when no active discount has the given code.
	ErrNotFound = errors.New("invalid discount code")
	// ErrNotYetValid is returned before the discount's ValidFrom time.
	ErrNotYetValid = errors.New("discount code is not yet valid")
	// ErrExpired is returned after the discount's ValidUntil time.
	ErrExpired = errors.New("discount code has expired")
)

// MinimumPurchaseError indicates the subtotal is below the discount's
// minimum purchase amount.
type MinimumPurchaseError struct {
	Minimum decimal.Decimal
}

func (e *MinimumPurchaseError) Error() string {
	return fmt.Sprintf("minimum purchase of %s required", e.Minimum.String())
}

// Discount is a promotional code as stored.
type Discount struct {
	ID          string
	Code        string
	Name        string
	Type        Type
	Value       decimal.Decimal
	MinPurchase decimal.Decimal
	IsActive    bool
	ValidFrom   *time.Time
	ValidUntil  *time.Time
	UsageCount  int
}

// Repository provides lookup and usage accounting for discounts.
type Repository interface {
	// FindActiveByCode returns the active discount with the given uppercase
	// code, or ErrNotFound.
	FindActiveByCode(ctx context.Context, code string) (*Discount, error)
	IncrementUsage(ctx context.Context, id string) error
}
