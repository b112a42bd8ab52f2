package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/go-faster/errors"

	"github.com/xenking/farmtocup-pos/internal/domain/order"
)

type orderRepo struct{ st *state }

func (r orderRepo) Create(_ context.Context, o *order.Order) error {
	if _, ok := r.st.orders[o.ID]; ok {
		return errors.Errorf("order %s already exists", o.ID)
	}
	for _, existing := range r.st.orders {
		if existing.Number == o.Number {
			return errors.Errorf("order number %s already issued", o.Number)
		}
	}
	r.st.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (r orderRepo) Get(_ context.Context, id string) (*order.Order, error) {
	o, ok := r.st.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	o = cloneOrder(o)
	return &o, nil
}

func (r orderRepo) List(_ context.Context, f order.Filter) ([]order.Order, error) {
	var out []order.Order
	for _, o := range r.st.orders {
		if matches(&o, f) {
			out = append(out, cloneOrder(o))
		}
	}
	slices.SortFunc(out, func(a, b order.Order) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.Number, a.Number))
	})
	return out, nil
}

func matches(o *order.Order, f order.Filter) bool {
	switch {
	case f.Status != "" && o.Status != f.Status:
		return false
	case f.PaymentMethod != "" && o.PaymentMethod != f.PaymentMethod:
		return false
	case f.PaymentStatus != "" && o.PaymentStatus != f.PaymentStatus:
		return false
	case f.CashierID != "" && o.CashierID != f.CashierID:
		return false
	case f.From != nil && o.CreatedAt.Before(*f.From):
		return false
	case f.To != nil && o.CreatedAt.After(*f.To):
		return false
	}
	return true
}

// Update copies only the mutable fields; the priced snapshot stays as stored.
func (r orderRepo) Update(_ context.Context, o *order.Order) error {
	stored, ok := r.st.orders[o.ID]
	if !ok {
		return order.ErrNotFound
	}
	stored.Status = o.Status
	stored.PaymentStatus = o.PaymentStatus
	stored.PaymentMethod = o.PaymentMethod
	stored.AmountPaid = o.AmountPaid
	stored.Change = o.Change
	stored.ReferenceNumber = o.ReferenceNumber
	stored.CustomerName = o.CustomerName
	stored.PaidAt = o.PaidAt
	stored.UpdatedAt = o.UpdatedAt
	r.st.orders[o.ID] = stored
	return nil
}

func (r orderRepo) Delete(_ context.Context, ids []string) (int, error) {
	n := 0
	for _, id := range ids {
		if _, ok := r.st.orders[id]; ok {
			delete(r.st.orders, id)
			n++
		}
	}
	return n, nil
}

func (r orderRepo) NextSequence(_ context.Context, day string) (int, error) {
	r.st.sequences[day]++
	return r.st.sequences[day], nil
}

func cloneOrder(o order.Order) order.Order {
	items := make([]order.LineItem, len(o.Items))
	for i, item := range o.Items {
		item.Modifiers = slices.Clone(item.Modifiers)
		items[i] = item
	}
	o.Items = items
	if o.PaidAt != nil {
		paidAt := *o.PaidAt
		o.PaidAt = &paidAt
	}
	return o
}
