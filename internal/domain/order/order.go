package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/farmtocup-pos/internal/domain/discount"
	"github.com/xenking/farmtocup-pos/internal/domain/payment"
	"github.com/xenking/farmtocup-pos/internal/domain/product"
)

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPreparing Status = "preparing"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPreparing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Order is a persisted POS transaction. Items, Subtotal, DiscountAmount and
// Total are a snapshot taken at creation and never change afterwards.
type Order struct {
	ID             string
	Number         string
	Items          []LineItem
	Subtotal       decimal.Decimal
	DiscountID     string
	DiscountCode   string
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal

	PaymentMethod   payment.Method
	PaymentStatus   payment.Status
	AmountPaid      decimal.Decimal
	Change          decimal.Decimal
	ReferenceNumber string
	CustomerName    string
	PaidAt          *time.Time

	Status    Status
	CashierID string
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LineItem is the priced snapshot of one cart line.
type LineItem struct {
	ProductID   string             `json:"productId"`
	ProductName string             `json:"productName"`
	Size        string             `json:"size,omitempty"`
	Temperature string             `json:"temperature,omitempty"`
	Quantity    int                `json:"quantity"`
	UnitPrice   decimal.Decimal    `json:"unitPrice"`
	Modifiers   []product.Modifier `json:"modifiers"`
	Subtotal    decimal.Decimal    `json:"subtotal"`
	Notes       string             `json:"notes,omitempty"`
}

// settlement extracts the payment state recorded on the order.
func (o *Order) settlement() payment.Settlement {
	return payment.Settlement{
		Status:          o.PaymentStatus,
		Method:          o.PaymentMethod,
		Total:           o.Total,
		AmountPaid:      o.AmountPaid,
		Change:          o.Change,
		CustomerName:    o.CustomerName,
		ReferenceNumber: o.ReferenceNumber,
		PaidAt:          o.PaidAt,
	}
}

func (o *Order) applySettlement(s payment.Settlement) {
	o.PaymentStatus = s.Status
	o.PaymentMethod = s.Method
	o.AmountPaid = s.AmountPaid
	o.Change = s.Change
	o.CustomerName = s.CustomerName
	o.ReferenceNumber = s.ReferenceNumber
	o.PaidAt = s.PaidAt
}

// Filter narrows an order listing. Zero values match everything.
type Filter struct {
	Status        Status
	PaymentMethod payment.Method
	PaymentStatus payment.Status
	CashierID     string
	// From and To bound CreatedAt, both inclusive.
	From *time.Time
	To   *time.Time
}

// Repository persists orders and issues per-day sequence numbers.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	// Get returns ErrNotFound when no order has the id.
	Get(ctx context.Context, id string) (*Order, error)
	// List returns matching orders, newest first.
	List(ctx context.Context, f Filter) ([]Order, error)
	// Update writes the mutable fields: status, payment fields and UpdatedAt.
	Update(ctx context.Context, o *Order) error
	// Delete returns the number of orders removed.
	Delete(ctx context.Context, ids []string) (int, error)
	// NextSequence atomically increments and returns the counter for day.
	// The first call for a day returns 1.
	NextSequence(ctx context.Context, day string) (int, error)
}

// Stores groups the repositories bound to one unit of work.
type Stores struct {
	Products  product.Repository
	Discounts discount.Repository
	Orders    Repository
}

// UnitOfWork runs groups of repository calls against one store.
type UnitOfWork interface {
	// Do runs fn atomically: either every write made through the given
	// Stores is committed, or none is. Reads inside fn see a consistent view
	// and rows touched by fn are protected from concurrent writers until it
	// returns.
	Do(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
	// View runs read-only fn without taking row locks, so it never waits on
	// or blocks a concurrent Do. fn must not write.
	View(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}
