package postgres

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/farmtocup-pos/internal/domain/order"
	"github.com/xenking/farmtocup-pos/internal/domain/payment"
)

const (
	orderColumns = `id, order_number, items, subtotal, discount_id, discount_code, discount_amount, total,
		payment_method, payment_status, amount_paid, change_due, reference_number, customer_name, paid_at,
		status, cashier_id, notes, created_at, updated_at`

	createOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	updateOrderSQL = `UPDATE orders SET
		status = $2, payment_status = $3, payment_method = $4, amount_paid = $5, change_due = $6,
		reference_number = $7, customer_name = $8, paid_at = $9, updated_at = $10
		WHERE id = $1`

	deleteOrdersSQL = `DELETE FROM orders WHERE id = ANY($1)`

	nextSequenceSQL = `INSERT INTO order_sequences (day, last_value) VALUES ($1, 1)
		ON CONFLICT (day) DO UPDATE SET last_value = order_sequences.last_value + 1
		RETURNING last_value`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	q    querier
	lock bool
}

// Create persists a new order. The line items are serialized to JSON for
// storage in the JSONB column.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	items, err := json.Marshal(nonNil(o.Items))
	if err != nil {
		return errors.Wrap(err, "marshal order items")
	}

	_, err = r.q.Exec(ctx, createOrderSQL,
		o.ID, o.Number, items, o.Subtotal, nullString(o.DiscountID), o.DiscountCode, o.DiscountAmount, o.Total,
		string(o.PaymentMethod), string(o.PaymentStatus), o.AmountPaid, o.Change, o.ReferenceNumber,
		o.CustomerName, o.PaidAt, string(o.Status), o.CashierID, o.Notes, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "create order %q", o.ID)
	}
	return nil
}

// Get returns one order. Inside a unit of work the row stays locked until
// the transaction ends.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.q.Query(ctx, forUpdate(getOrderSQL, r.lock), id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q", id)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	return &o, nil
}

// List returns matching orders, newest first.
func (r *OrderRepository) List(ctx context.Context, f order.Filter) ([]order.Order, error) {
	sql, args := listOrdersQuery(f)
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

func listOrdersQuery(f order.Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}
	if f.Status != "" {
		add("status = ?", string(f.Status))
	}
	if f.PaymentMethod != "" {
		add("payment_method = ?", string(f.PaymentMethod))
	}
	if f.PaymentStatus != "" {
		add("payment_status = ?", string(f.PaymentStatus))
	}
	if f.CashierID != "" {
		add("cashier_id = ?", f.CashierID)
	}
	if f.From != nil {
		add("created_at >= ?", *f.From)
	}
	if f.To != nil {
		add("created_at <= ?", *f.To)
	}

	var b strings.Builder
	b.WriteString("SELECT " + orderColumns + " FROM orders")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC, order_number DESC")
	return b.String(), args
}

// Update writes the mutable fields; the priced snapshot is never rewritten.
func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	tag, err := r.q.Exec(ctx, updateOrderSQL,
		o.ID, string(o.Status), string(o.PaymentStatus), string(o.PaymentMethod), o.AmountPaid, o.Change,
		o.ReferenceNumber, o.CustomerName, o.PaidAt, o.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "update order %q", o.ID)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) Delete(ctx context.Context, ids []string) (int, error) {
	tag, err := r.q.Exec(ctx, deleteOrdersSQL, ids)
	if err != nil {
		return 0, errors.Wrap(err, "delete orders")
	}
	return int(tag.RowsAffected()), nil
}

// NextSequence upserts the day's counter; concurrent callers serialize on
// the counter row.
func (r *OrderRepository) NextSequence(ctx context.Context, day string) (int, error) {
	var seq int
	if err := r.q.QueryRow(ctx, nextSequenceSQL, day).Scan(&seq); err != nil {
		return 0, errors.Wrapf(err, "next sequence for %s", day)
	}
	return seq, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o                       order.Order
		items                   []byte
		discountID              *string
		method, pStatus, status string
	)
	if err := row.Scan(
		&o.ID, &o.Number, &items, &o.Subtotal, &discountID, &o.DiscountCode, &o.DiscountAmount, &o.Total,
		&method, &pStatus, &o.AmountPaid, &o.Change, &o.ReferenceNumber, &o.CustomerName, &o.PaidAt,
		&status, &o.CashierID, &o.Notes, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return o, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return o, errors.Wrapf(err, "unmarshal items of order %q", o.ID)
	}
	if discountID != nil {
		o.DiscountID = *discountID
	}
	o.PaymentMethod = payment.Method(method)
	o.PaymentStatus = payment.Status(pStatus)
	o.Status = order.Status(status)
	return o, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
