// Package payment decides whether an order can be settled and computes the
// amounts recorded on it. Payment methods are labels; no gateway is called.
package payment

import (
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Method is how the customer pays.
type Method string

const (
	Cash  Method = "cash"
	GCash Method = "gcash"
	Card  Method = "card"
)

// Status tells whether money has been collected for an order.
type Status string

const (
	Paid   Status = "paid"
	Unpaid Status = "unpaid"
)

var (
	// ErrCustomerNameRequired is returned for unpaid orders without a name.
	ErrCustomerNameRequired = errors.New("customer name is required for unpaid orders")
	// ErrInsufficientPayment is returned when the amount paid is missing or
	// below the total.
	ErrInsufficientPayment = errors.New("insufficient payment amount")
	// ErrInvalidMethod is returned for an unknown payment method.
	ErrInvalidMethod = errors.New("invalid payment method")
	// ErrInvalidStatus is returned for an unknown payment status.
	ErrInvalidStatus = errors.New("invalid payment status")
	// ErrAlreadyPaid is returned when settling an order that is already paid.
	ErrAlreadyPaid = errors.New("order is already paid")
)

// ParseMethod validates a payment method label.
func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case Cash, GCash, Card:
		return m, nil
	default:
		return "", ErrInvalidMethod
	}
}

// ParseStatus validates a payment status. An empty value means Paid.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case "":
		return Paid, nil
	case Paid, Unpaid:
		return st, nil
	default:
		return "", ErrInvalidStatus
	}
}

// Request is the payment intent submitted with a new order.
type Request struct {
	Status          Status
	Method          Method
	AmountPaid      decimal.NullDecimal
	CustomerName    string
	ReferenceNumber string
}

// Settlement is the payment state to record on an order.
type Settlement struct {
	Status          Status
	Method          Method
	Total           decimal.Decimal
	AmountPaid      decimal.Decimal
	Change          decimal.Decimal
	CustomerName    string
	ReferenceNumber string
	PaidAt          *time.Time
}

// Settle applies the payment rules to a new order. The total is
// subtotal-discount and is not floored at zero.
func Settle(subtotal, discountAmount decimal.Decimal, req Request, now time.Time) (Settlement, error) {
	if _, err := ParseMethod(string(req.Method)); err != nil {
		return Settlement{}, err
	}
	status, err := ParseStatus(string(req.Status))
	if err != nil {
		return Settlement{}, err
	}

	s := Settlement{
		Status:          status,
		Method:          req.Method,
		Total:           subtotal.Sub(discountAmount),
		ReferenceNumber: strings.TrimSpace(req.ReferenceNumber),
	}

	if status == Unpaid {
		name := strings.TrimSpace(req.CustomerName)
		if name == "" {
			return Settlement{}, ErrCustomerNameRequired
		}
		s.CustomerName = name
		s.AmountPaid = decimal.Zero
		s.Change = decimal.Zero
		return s, nil
	}

	if !req.AmountPaid.Valid || req.AmountPaid.Decimal.LessThan(s.Total) {
		return Settlement{}, ErrInsufficientPayment
	}
	s.AmountPaid = req.AmountPaid.Decimal
	s.Change = s.AmountPaid.Sub(s.Total)
	s.PaidAt = &now
	return s, nil
}

// Collection is a later payment against an unpaid order.
type Collection struct {
	AmountPaid decimal.NullDecimal
	// Method and ReferenceNumber replace the recorded values when set.
	Method          Method
	ReferenceNumber string
}

// SettleLater collects payment for an existing order. current is the
// settlement recorded when the order was created.
func SettleLater(current Settlement, c Collection, now time.Time) (Settlement, error) {
	if current.Status == Paid {
		return Settlement{}, ErrAlreadyPaid
	}
	if !c.AmountPaid.Valid || c.AmountPaid.Decimal.LessThan(current.Total) {
		return Settlement{}, ErrInsufficientPayment
	}

	next := current
	if c.Method != "" {
		if _, err := ParseMethod(string(c.Method)); err != nil {
			return Settlement{}, err
		}
		next.Method = c.Method
	}
	if ref := strings.TrimSpace(c.ReferenceNumber); ref != "" {
		next.ReferenceNumber = ref
	}
	next.Status = Paid
	next.AmountPaid = c.AmountPaid.Decimal
	next.Change = next.AmountPaid.Sub(current.Total)
	next.PaidAt = &now
	return next, nil
}
