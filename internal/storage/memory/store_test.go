package memory

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/farmtocup-pos/internal/domain/auth"
	"github.com/xenking/farmtocup-pos/internal/domain/discount"
	"github.com/xenking/farmtocup-pos/internal/domain/order"
	"github.com/xenking/farmtocup-pos/internal/domain/payment"
	"github.com/xenking/farmtocup-pos/internal/domain/product"
)

func seededStore() *Store {
	s := New()
	s.PutProduct(product.Product{
		ID:                "americano",
		Name:              "Americano",
		Category:          "coffee",
		IsAvailable:       true,
		TrackInventory:    true,
		StockQuantity:     100,
		LowStockThreshold: 10,
		Variants: []product.Variant{
			{Size: "12oz", Temperature: "hot", Price: decimal.NewFromInt(160), Cost: decimal.NewFromInt(50)},
			{Size: "16oz", Temperature: "iced", Price: decimal.NewFromInt(160), Cost: decimal.NewFromInt(55)},
		},
		Modifiers: []product.Modifier{{Name: "Extra Shot", Price: decimal.NewFromInt(30)}},
	})
	s.PutProduct(product.Product{
		ID:             "croissant",
		Name:           "Croissant",
		Category:       "pastry",
		IsAvailable:    true,
		TrackInventory: true,
		StockQuantity:  1,
		BasePrice:      decimal.NewFromInt(95),
	})
	s.PutDiscount(discount.Discount{
		ID:          "disc-10",
		Code:        "test10",
		Name:        "Test 10%",
		Type:        discount.Percentage,
		Value:       decimal.NewFromInt(10),
		MinPurchase: decimal.NewFromInt(100),
		IsActive:    true,
	})
	return s
}

func newService(t *testing.T, s *Store) *order.Service {
	t.Helper()
	svc, err := order.NewService(s, order.Options{})
	require.NoError(t, err)
	return svc
}

func americanoRequest(paid int64) order.CreateRequest {
	return order.CreateRequest{
		Items:     []order.CartLine{{ProductID: "americano", Size: "12oz", Temperature: "hot", Quantity: 2}},
		Payment:   payment.Request{Method: payment.Cash, AmountPaid: decimal.NewNullDecimal(decimal.NewFromInt(paid))},
		CashierID: "cashier-1",
	}
}

func TestDo_RollsBackOnError(t *testing.T) {
	s := seededStore()
	boom := errors.New("boom")

	err := s.Do(context.Background(), func(ctx context.Context, st order.Stores) error {
		require.NoError(t, st.Products.ApplySale(ctx, "americano", 5))
		require.NoError(t, st.Discounts.IncrementUsage(ctx, "disc-10"))
		_, err := st.Orders.NextSequence(ctx, "20250314")
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	p, err := s.Products().GetByID(context.Background(), "americano")
	require.NoError(t, err)
	assert.Equal(t, 100, p.StockQuantity)
	assert.Zero(t, p.SalesCount)

	d, err := s.Discounts().FindActiveByCode(context.Background(), "TEST10")
	require.NoError(t, err)
	assert.Zero(t, d.UsageCount)

	err = s.Do(context.Background(), func(ctx context.Context, st order.Stores) error {
		seq, err := st.Orders.NextSequence(ctx, "20250314")
		require.NoError(t, err)
		assert.Equal(t, 1, seq, "rolled back sequence must be reissued")
		return nil
	})
	require.NoError(t, err)
}

func TestDo_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := New().Do(ctx, func(context.Context, order.Stores) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestView(t *testing.T) {
	s := seededStore()

	var p *product.Product
	err := s.View(context.Background(), func(ctx context.Context, st order.Stores) (err error) {
		p, err = st.Products.GetByID(ctx, "americano")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "Americano", p.Name)

	boom := errors.New("boom")
	err = s.View(context.Background(), func(context.Context, order.Stores) error { return boom })
	require.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, s.View(ctx, func(context.Context, order.Stores) error { return nil }), context.Canceled)
}

func TestApplySale_StockFloorsAtZero(t *testing.T) {
	s := seededStore()

	require.NoError(t, s.Products().ApplySale(context.Background(), "croissant", 3))

	p, err := s.Products().GetByID(context.Background(), "croissant")
	require.NoError(t, err)
	assert.Zero(t, p.StockQuantity)
	assert.Equal(t, 3, p.SalesCount)
}

func TestCreateOrder_SideEffects(t *testing.T) {
	s := seededStore()
	svc := newService(t, s)

	req := americanoRequest(500)
	req.DiscountCode = "Test10"
	o, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(288).Equal(o.Total))

	p, err := s.Products().GetByID(context.Background(), "americano")
	require.NoError(t, err)
	assert.Equal(t, 98, p.StockQuantity)
	assert.Equal(t, 2, p.SalesCount)

	d, err := s.Discounts().FindActiveByCode(context.Background(), "TEST10")
	require.NoError(t, err)
	assert.Equal(t, 1, d.UsageCount)
}

func TestCreateOrder_FailureLeavesNoTrace(t *testing.T) {
	s := seededStore()
	svc := newService(t, s)

	// Discount is valid but payment is short, so the usage increment and the
	// sale must both be rolled back.
	req := americanoRequest(100)
	req.DiscountCode = "TEST10"
	_, err := svc.Create(context.Background(), req)
	require.ErrorIs(t, err, payment.ErrInsufficientPayment)

	// A valid first line followed by an unavailable one.
	s.PutProduct(product.Product{ID: "off-menu", Name: "Seasonal Latte"})
	req = americanoRequest(1000)
	req.Items = append(req.Items, order.CartLine{ProductID: "off-menu", Quantity: 1})
	_, err = svc.Create(context.Background(), req)
	var uErr *product.UnavailableError
	require.ErrorAs(t, err, &uErr)

	p, err := s.Products().GetByID(context.Background(), "americano")
	require.NoError(t, err)
	assert.Equal(t, 100, p.StockQuantity)
	assert.Zero(t, p.SalesCount)

	d, err := s.Discounts().FindActiveByCode(context.Background(), "TEST10")
	require.NoError(t, err)
	assert.Zero(t, d.UsageCount)

	orders, err := svc.List(context.Background(), order.Filter{}, auth.Principal{UserID: "admin", Role: auth.RoleAdmin})
	require.NoError(t, err)
	assert.Empty(t, orders)

	o, err := svc.Create(context.Background(), americanoRequest(500))
	require.NoError(t, err)
	assert.Contains(t, o.Number, "-0001", "failed attempts must not consume numbers")
}

func TestCreateOrder_ConcurrentNumbersAreDense(t *testing.T) {
	s := seededStore()
	svc := newService(t, s)

	const n = 40
	numbers := make([]string, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Go(func() {
			req := americanoRequest(320)
			req.Items[0].Quantity = 1
			o, err := svc.Create(context.Background(), req)
			if assert.NoError(t, err) {
				numbers[i] = o.Number
			}
		})
	}
	wg.Wait()

	sort.Strings(numbers)
	day := order.DayKey(time.Now(), time.UTC)
	for i, num := range numbers {
		assert.Equal(t, order.FormatNumber(day, i+1), num)
	}

	p, err := s.Products().GetByID(context.Background(), "americano")
	require.NoError(t, err)
	assert.Equal(t, 100-n, p.StockQuantity)
	assert.Equal(t, n, p.SalesCount)
}

func TestOrderSnapshotIsImmutable(t *testing.T) {
	s := seededStore()
	svc := newService(t, s)
	admin := auth.Principal{UserID: "admin", Role: auth.RoleAdmin}

	req := americanoRequest(500)
	req.Items[0].Modifiers = []string{"Extra Shot"}
	created, err := svc.Create(context.Background(), req)
	require.NoError(t, err)

	// Reprice the catalog after the sale.
	s.PutProduct(product.Product{
		ID: "americano", Name: "Americano v2", IsAvailable: true,
		Variants:  []product.Variant{{Size: "12oz", Temperature: "hot", Price: decimal.NewFromInt(999)}},
		Modifiers: []product.Modifier{{Name: "Extra Shot", Price: decimal.NewFromInt(99)}},
	})

	// Mutating the returned value must not leak into the store either.
	created.Items[0].Modifiers[0].Price = decimal.NewFromInt(1)

	got, err := svc.Get(context.Background(), created.ID, admin)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Americano", got.Items[0].ProductName)
	assert.True(t, decimal.NewFromInt(160).Equal(got.Items[0].UnitPrice))
	assert.True(t, decimal.NewFromInt(30).Equal(got.Items[0].Modifiers[0].Price))
	assert.True(t, decimal.NewFromInt(380).Equal(got.Subtotal))

	_, err = svc.MarkPaid(context.Background(), created.ID, payment.Collection{AmountPaid: decimal.NewNullDecimal(decimal.NewFromInt(1))})
	require.ErrorIs(t, err, payment.ErrAlreadyPaid)

	cancelled, err := svc.Cancel(context.Background(), created.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(380).Equal(cancelled.Total))
}

func TestListOrders_Filters(t *testing.T) {
	s := seededStore()
	svc := newService(t, s)
	admin := auth.Principal{UserID: "admin", Role: auth.RoleAdmin}

	paid, err := svc.Create(context.Background(), americanoRequest(500))
	require.NoError(t, err)

	unpaidReq := americanoRequest(0)
	unpaidReq.Payment = payment.Request{Status: payment.Unpaid, Method: payment.GCash, CustomerName: "Ana"}
	unpaidReq.CashierID = "cashier-2"
	unpaid, err := svc.Create(context.Background(), unpaidReq)
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter order.Filter
		want   []string
	}{
		{name: "all newest first", filter: order.Filter{}, want: []string{unpaid.ID, paid.ID}},
		{name: "by method", filter: order.Filter{PaymentMethod: payment.GCash}, want: []string{unpaid.ID}},
		{name: "by payment status", filter: order.Filter{PaymentStatus: payment.Paid}, want: []string{paid.ID}},
		{name: "by cashier", filter: order.Filter{CashierID: "cashier-1"}, want: []string{paid.ID}},
		{name: "by status", filter: order.Filter{Status: order.StatusCancelled}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders, err := svc.List(context.Background(), tt.filter, admin)
			require.NoError(t, err)

			var ids []string
			for _, o := range orders {
				ids = append(ids, o.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	unpaidOrders, err := svc.ListUnpaid(context.Background())
	require.NoError(t, err)
	require.Len(t, unpaidOrders, 1)
	assert.Equal(t, "Ana", unpaidOrders[0].CustomerName)
}

func TestListProducts(t *testing.T) {
	s := seededStore()
	s.PutProduct(product.Product{ID: "mocha", Name: "Mocha", Category: "coffee"})

	all, err := s.Products().List(context.Background(), product.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"americano", "mocha", "croissant"}, []string{all[0].ID, all[1].ID, all[2].ID})

	available, err := s.Products().List(context.Background(), product.Filter{AvailableOnly: true, Category: "coffee"})
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "americano", available[0].ID)

	_, err = s.Products().GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, product.ErrNotFound)
}
