package order

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/farmtocup-pos/internal/domain/auth"
	"github.com/xenking/farmtocup-pos/internal/domain/discount"
	"github.com/xenking/farmtocup-pos/internal/domain/payment"
	"github.com/xenking/farmtocup-pos/internal/domain/product"
)

const instrumentationName = "github.com/xenking/farmtocup-pos/internal/domain/order"

var (
	ErrEmptyCart        = errors.New("please add items to order")
	ErrCashierRequired  = errors.New("cashier is required")
	ErrNotFound         = errors.New("order not found")
	ErrForbidden        = errors.New("not authorized to view this order")
	ErrAlreadyCancelled = errors.New("order is already cancelled")
	ErrNoOrderIDs       = errors.New("please provide order IDs to delete")
)

// ProductNotFoundError indicates a cart line references a missing product.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product not found: %s", e.ProductID)
}

// InvalidQuantityError indicates a cart line has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
	Quantity  int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be at least 1 for product %s, got %d", e.ProductID, e.Quantity)
}

// CartLine is one requested item.
type CartLine struct {
	ProductID   string
	Size        string
	Temperature string
	Quantity    int
	Modifiers   []string
	Notes       string
}

// CreateRequest holds the input for creating an order.
type CreateRequest struct {
	Items        []CartLine
	DiscountCode string
	Payment      payment.Request
	CashierID    string
	Notes        string
}

// Options configures a Service.
type Options struct {
	// Location defines the business day used in order numbers. Defaults to UTC.
	Location *time.Location
	// CapFixedDiscount limits fixed discounts to the order subtotal.
	CapFixedDiscount bool

	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}

// Service implements order creation and the lifecycle operations on
// existing orders.
type Service struct {
	uow      UnitOfWork
	loc      *time.Location
	capFixed bool
	now      func() time.Time
	newID    func() string

	tracer   trace.Tracer
	created  metric.Int64Counter
	rejected metric.Int64Counter
	totals   metric.Float64Histogram
}

// NewService creates an order Service running its writes through uow.
func NewService(uow UnitOfWork, opts Options) (*Service, error) {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.MeterProvider == nil {
		opts.MeterProvider = metricnoop.NewMeterProvider()
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = tracenoop.NewTracerProvider()
	}

	s := &Service{
		uow:      uow,
		loc:      opts.Location,
		capFixed: opts.CapFixedDiscount,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
		tracer:   opts.TracerProvider.Tracer(instrumentationName),
	}

	meter := opts.MeterProvider.Meter(instrumentationName)
	var err error
	if s.created, err = meter.Int64Counter("pos.orders.created",
		metric.WithDescription("Orders committed"),
	); err != nil {
		return nil, errors.Wrap(err, "orders created counter")
	}
	if s.rejected, err = meter.Int64Counter("pos.orders.rejected",
		metric.WithDescription("Order creations that failed, by reason"),
	); err != nil {
		return nil, errors.Wrap(err, "orders rejected counter")
	}
	if s.totals, err = meter.Float64Histogram("pos.order.total",
		metric.WithDescription("Order totals"),
		metric.WithUnit("PHP"),
	); err != nil {
		return nil, errors.Wrap(err, "order total histogram")
	}
	return s, nil
}

// Create prices the cart, applies the discount and payment rules, assigns
// the next order number of the day and persists the order together with the
// product and discount side effects. Nothing is persisted on failure.
func (s *Service) Create(ctx context.Context, req CreateRequest) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Create",
		trace.WithAttributes(attribute.Int("order.lines", len(req.Items))),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
			s.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", rejectReason(rerr))))
		}
		span.End()
	}()

	if len(req.Items) == 0 {
		return nil, ErrEmptyCart
	}
	if req.CashierID == "" {
		return nil, ErrCashierRequired
	}
	for _, item := range req.Items {
		if item.Quantity < 1 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID, Quantity: item.Quantity}
		}
	}

	now := s.now()
	var o *Order
	err := s.uow.Do(ctx, func(ctx context.Context, st Stores) error {
		items, subtotal, err := priceItems(ctx, st.Products, req.Items)
		if err != nil {
			return err
		}

		var applied *discount.Applied
		discountAmount := decimal.Zero
		if strings.TrimSpace(req.DiscountCode) != "" {
			resolver := discount.NewResolver(st.Discounts, discount.Options{
				CapFixed: s.capFixed,
				Now:      func() time.Time { return now },
			})
			applied, err = resolver.Resolve(ctx, req.DiscountCode, subtotal)
			if err != nil {
				return errors.Wrap(err, "apply discount")
			}
			discountAmount = applied.Amount
		}

		settlement, err := payment.Settle(subtotal, discountAmount, req.Payment, now)
		if err != nil {
			return err
		}

		day := DayKey(now, s.loc)
		seq, err := st.Orders.NextSequence(ctx, day)
		if err != nil {
			return errors.Wrap(err, "next order sequence")
		}

		o = &Order{
			ID:             s.newID(),
			Number:         FormatNumber(day, seq),
			Items:          items,
			Subtotal:       subtotal,
			DiscountAmount: discountAmount,
			Total:          settlement.Total,
			Status:         StatusCompleted,
			CashierID:      req.CashierID,
			Notes:          strings.TrimSpace(req.Notes),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		o.applySettlement(settlement)
		if applied != nil {
			o.DiscountID = applied.Discount.ID
			o.DiscountCode = applied.Discount.Code
		}

		if err := st.Orders.Create(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}
		for _, item := range items {
			// The rows are already locked by loadProducts.
			if err := st.Products.ApplySale(ctx, item.ProductID, item.Quantity); err != nil {
				return errors.Wrapf(err, "record sale of %s", item.ProductID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	attrs := metric.WithAttributes(
		attribute.String("payment.method", string(o.PaymentMethod)),
		attribute.String("payment.status", string(o.PaymentStatus)),
	)
	s.created.Add(ctx, 1, attrs)
	s.totals.Record(ctx, o.Total.InexactFloat64(), attrs)
	span.SetAttributes(attribute.String("order.number", o.Number))

	zctx.From(ctx).Info("Order created",
		zap.String("order_id", o.ID),
		zap.String("order_number", o.Number),
		zap.String("total", o.Total.StringFixed(2)),
		zap.String("payment_status", string(o.PaymentStatus)),
		zap.String("cashier_id", o.CashierID),
	)
	return o, nil
}

func priceItems(ctx context.Context, products product.Repository, lines []CartLine) ([]LineItem, decimal.Decimal, error) {
	catalog, err := loadProducts(ctx, products, lines)
	if err != nil {
		return nil, decimal.Zero, err
	}

	items := make([]LineItem, 0, len(lines))
	subtotal := decimal.Zero
	for _, line := range lines {
		p, ok := catalog[line.ProductID]
		if !ok {
			return nil, decimal.Zero, &ProductNotFoundError{ProductID: line.ProductID}
		}

		q, err := p.Price(product.Selection{
			Size:        line.Size,
			Temperature: line.Temperature,
			Quantity:    line.Quantity,
			Modifiers:   line.Modifiers,
		})
		if err != nil {
			return nil, decimal.Zero, err
		}

		items = append(items, LineItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			Size:        line.Size,
			Temperature: line.Temperature,
			Quantity:    line.Quantity,
			UnitPrice:   q.UnitPrice,
			Modifiers:   q.Modifiers,
			Subtotal:    q.Subtotal,
			Notes:       strings.TrimSpace(line.Notes),
		})
		subtotal = subtotal.Add(q.Subtotal)
	}
	return items, subtotal, nil
}

// loadProducts reads every distinct product of the cart once, in id order.
// Inside a unit of work each read locks its row, so concurrent checkouts
// always lock shared products in the same order and cannot deadlock.
// Missing products are left out of the result.
func loadProducts(ctx context.Context, products product.Repository, lines []CartLine) (map[string]*product.Product, error) {
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	catalog := make(map[string]*product.Product, len(ids))
	for _, id := range ids {
		p, err := products.GetByID(ctx, id)
		switch {
		case errors.Is(err, product.ErrNotFound):
			continue
		case err != nil:
			return nil, errors.Wrapf(err, "get product %s", id)
		}
		catalog[id] = p
	}
	return catalog, nil
}

// Get returns an order. Cashiers may only read their own orders.
func (s *Service) Get(ctx context.Context, id string, viewer auth.Principal) (*Order, error) {
	var o *Order
	err := s.uow.View(ctx, func(ctx context.Context, st Stores) (err error) {
		o, err = st.Orders.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !viewer.IsAdmin() && o.CashierID != viewer.UserID {
		return nil, ErrForbidden
	}
	return o, nil
}

// List returns orders matching f, newest first. Cashiers only see their own
// orders regardless of f.CashierID.
func (s *Service) List(ctx context.Context, f Filter, viewer auth.Principal) ([]Order, error) {
	if !viewer.IsAdmin() {
		f.CashierID = viewer.UserID
	}
	var orders []Order
	err := s.uow.View(ctx, func(ctx context.Context, st Stores) (err error) {
		orders, err = st.Orders.List(ctx, f)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// ListUnpaid returns every unpaid order, newest first.
func (s *Service) ListUnpaid(ctx context.Context) ([]Order, error) {
	return s.List(ctx, Filter{PaymentStatus: payment.Unpaid}, auth.Principal{Role: auth.RoleAdmin})
}

// Cancel marks an order as cancelled. Stock and sales counts are left as
// recorded at creation.
func (s *Service) Cancel(ctx context.Context, id string) (*Order, error) {
	return s.update(ctx, id, func(o *Order, _ time.Time) error {
		if o.Status == StatusCancelled {
			return ErrAlreadyCancelled
		}
		o.Status = StatusCancelled
		return nil
	})
}

// MarkPaid collects payment for an unpaid order.
func (s *Service) MarkPaid(ctx context.Context, id string, c payment.Collection) (*Order, error) {
	return s.update(ctx, id, func(o *Order, now time.Time) error {
		next, err := payment.SettleLater(o.settlement(), c, now)
		if err != nil {
			return err
		}
		o.applySettlement(next)
		return nil
	})
}

func (s *Service) update(ctx context.Context, id string, mutate func(o *Order, now time.Time) error) (*Order, error) {
	now := s.now()
	var o *Order
	err := s.uow.Do(ctx, func(ctx context.Context, st Stores) (err error) {
		if o, err = st.Orders.Get(ctx, id); err != nil {
			return err
		}
		if err := mutate(o, now); err != nil {
			return err
		}
		o.UpdatedAt = now
		if err := st.Orders.Update(ctx, o); err != nil {
			return errors.Wrapf(err, "update order %s", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Delete removes one order.
func (s *Service) Delete(ctx context.Context, id string) error {
	n, err := s.BulkDelete(ctx, []string{id})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// BulkDelete removes the given orders and reports how many existed.
// Issued order numbers are never reused.
func (s *Service) BulkDelete(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, ErrNoOrderIDs
	}
	var n int
	err := s.uow.Do(ctx, func(ctx context.Context, st Stores) (err error) {
		n, err = st.Orders.Delete(ctx, ids)
		return err
	})
	if err != nil {
		return 0, errors.Wrap(err, "delete orders")
	}
	return n, nil
}

func rejectReason(err error) string {
	var (
		pnf *ProductNotFoundError
		iq  *InvalidQuantityError
		ua  *product.UnavailableError
		vnf *product.VariantNotFoundError
		mp  *discount.MinimumPurchaseError
	)
	switch {
	case errors.Is(err, ErrEmptyCart), errors.As(err, &iq), errors.Is(err, ErrCashierRequired):
		return "invalid_cart"
	case errors.As(err, &pnf):
		return "product_not_found"
	case errors.As(err, &ua):
		return "product_unavailable"
	case errors.As(err, &vnf):
		return "variant_not_found"
	case errors.Is(err, discount.ErrNotFound), errors.Is(err, discount.ErrNotYetValid),
		errors.Is(err, discount.ErrExpired), errors.As(err, &mp):
		return "discount_rejected"
	case errors.Is(err, payment.ErrCustomerNameRequired), errors.Is(err, payment.ErrInsufficientPayment),
		errors.Is(err, payment.ErrInvalidMethod), errors.Is(err, payment.ErrInvalidStatus):
		return "payment_rejected"
	default:
		return "internal"
	}
}
