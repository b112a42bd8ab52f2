package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/farmtocup-pos/internal/domain/auth"
	"github.com/xenking/farmtocup-pos/internal/domain/discount"
	"github.com/xenking/farmtocup-pos/internal/domain/order"
	"github.com/xenking/farmtocup-pos/internal/domain/product"
	"github.com/xenking/farmtocup-pos/internal/storage/memory"
)

var (
	admin    = auth.Principal{UserID: "admin-1", Role: auth.RoleAdmin}
	cashier  = auth.Principal{UserID: "cashier-1", Role: auth.RoleCashier}
	cashier2 = auth.Principal{UserID: "cashier-2", Role: auth.RoleCashier}
)

type testEnv struct {
	t      *testing.T
	srv    http.Handler
	tokens *auth.Tokens
	store  *memory.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.New()
	store.PutProduct(product.Product{
		ID:                "americano",
		Name:              "Americano",
		Category:          "coffee",
		IsAvailable:       true,
		TrackInventory:    true,
		StockQuantity:     50,
		LowStockThreshold: 10,
		Variants: []product.Variant{
			{Size: "12oz", Temperature: "hot", Price: decimal.NewFromInt(160), Cost: decimal.NewFromInt(50)},
			{Size: "16oz", Temperature: "iced", Price: decimal.NewFromInt(160), Cost: decimal.NewFromInt(55)},
		},
		Modifiers: []product.Modifier{
			{Name: "Extra Shot", Price: decimal.NewFromInt(30)},
			{Name: "Whipped Cream", Price: decimal.NewFromInt(20)},
		},
	})
	store.PutProduct(product.Product{
		ID:                "croissant",
		Name:              "Croissant",
		Category:          "pastry",
		BasePrice:         decimal.NewFromInt(95),
		IsAvailable:       true,
		TrackInventory:    true,
		StockQuantity:     3,
		LowStockThreshold: 5,
	})
	store.PutProduct(product.Product{ID: "seasonal", Name: "Seasonal Latte", Category: "coffee"})
	store.PutDiscount(discount.Discount{
		ID: "d-test10", Code: "TEST10", Name: "Test 10%", Type: discount.Percentage,
		Value: decimal.NewFromInt(10), MinPurchase: decimal.NewFromInt(100), IsActive: true,
	})

	svc, err := order.NewService(store, order.Options{})
	require.NoError(t, err)

	tokens := auth.NewTokens([]byte("test-secret"), time.Hour)
	h := NewHandler(svc, store.Products(), discount.NewResolver(store.Discounts(), discount.Options{}), tokens)
	mux := http.NewServeMux()
	h.Register(mux)

	return &testEnv{t: t, srv: mux, tokens: tokens, store: store}
}

func (env *testEnv) token(p auth.Principal) string {
	env.t.Helper()
	tok, err := env.tokens.Issue(p)
	require.NoError(env.t, err)
	return tok
}

// do sends a request as p. A zero principal sends no credentials.
func (env *testEnv) do(p auth.Principal, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	env.t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if p.UserID != "" {
		req.Header.Set("Authorization", "Bearer "+env.token(p))
	}
	w := httptest.NewRecorder()
	env.srv.ServeHTTP(w, req)

	var out map[string]any
	require.NoError(env.t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w, out
}

func (env *testEnv) createOrder(p auth.Principal, body string) map[string]any {
	env.t.Helper()
	w, out := env.do(p, http.MethodPost, "/api/orders", body)
	require.Equal(env.t, http.StatusCreated, w.Code, out)
	return out["order"].(map[string]any)
}

const paidAmericanos = `{
	"items": [{"product": "americano", "size": "12oz", "temperature": "hot", "quantity": 2}],
	"paymentMethod": "cash",
	"amountPaid": 500
}`

func TestCreateOrder(t *testing.T) {
	env := newTestEnv(t)

	w, out := env.do(cashier, http.MethodPost, "/api/orders", paidAmericanos)
	require.Equal(t, http.StatusCreated, w.Code, out)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "Order created successfully", out["message"])

	o := out["order"].(map[string]any)
	assert.Regexp(t, `^FTC-\d{8}-0001$`, o["orderNumber"])
	assert.Equal(t, 320.0, o["subtotal"])
	assert.Equal(t, 0.0, o["discountAmount"])
	assert.Equal(t, 320.0, o["total"])
	assert.Equal(t, 500.0, o["amountPaid"])
	assert.Equal(t, 180.0, o["change"])
	assert.Equal(t, "paid", o["paymentStatus"])
	assert.Equal(t, "completed", o["status"])
	assert.Equal(t, "cashier-1", o["cashier"])
	assert.Nil(t, o["discount"])
	assert.NotNil(t, o["paidAt"])

	items := o["items"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "americano", item["product"])
	assert.Equal(t, "Americano", item["productName"])
	assert.Equal(t, 160.0, item["unitPrice"])
	assert.Equal(t, 320.0, item["subtotal"])
}

func TestCreateOrder_WithDiscountAndModifiers(t *testing.T) {
	env := newTestEnv(t)

	o := env.createOrder(cashier, `{
		"items": [{"product": "americano", "size": "16oz", "temperature": "iced", "quantity": 1,
			"modifiers": ["Extra Shot", "Unknown"]}],
		"discountCode": " test10 ",
		"paymentMethod": "gcash",
		"amountPaid": "171",
		"referenceNumber": "GC-123"
	}`)

	assert.Equal(t, 190.0, o["subtotal"])
	assert.Equal(t, 19.0, o["discountAmount"])
	assert.Equal(t, 171.0, o["total"])
	assert.Equal(t, 0.0, o["change"])
	assert.Equal(t, "d-test10", o["discount"])
	assert.Equal(t, "TEST10", o["discountCode"])
	assert.Equal(t, "GC-123", o["referenceNumber"])

	mods := o["items"].([]any)[0].(map[string]any)["modifiers"].([]any)
	require.Len(t, mods, 1)
	assert.Equal(t, "Extra Shot", mods[0].(map[string]any)["name"])
}

func TestCreateOrder_Unpaid(t *testing.T) {
	env := newTestEnv(t)

	o := env.createOrder(cashier, `{
		"items": [{"product": "croissant", "quantity": 1}],
		"paymentMethod": "cash",
		"paymentStatus": "unpaid",
		"customerName": "  Ana  "
	}`)
	assert.Equal(t, "unpaid", o["paymentStatus"])
	assert.Equal(t, "Ana", o["customerName"])
	assert.Equal(t, 0.0, o["amountPaid"])
	assert.Nil(t, o["paidAt"])
}

func TestCreateOrder_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{
			name:    "EmptyItems",
			body:    `{"items": [], "paymentMethod": "cash", "amountPaid": 100}`,
			status:  http.StatusBadRequest,
			message: "Please add items to order",
		},
		{
			name:    "ProductNotFound",
			body:    `{"items": [{"product": "nope", "quantity": 1}], "paymentMethod": "cash", "amountPaid": 100}`,
			status:  http.StatusNotFound,
			message: "Product not found: nope",
		},
		{
			name:    "Unavailable",
			body:    `{"items": [{"product": "seasonal", "quantity": 1}], "paymentMethod": "cash", "amountPaid": 100}`,
			status:  http.StatusBadRequest,
			message: "Product Seasonal Latte is not available",
		},
		{
			name:    "VariantNotFound",
			body:    `{"items": [{"product": "americano", "size": "20oz", "temperature": "hot", "quantity": 1}], "paymentMethod": "cash", "amountPaid": 500}`,
			status:  http.StatusBadRequest,
			message: "Variant not found for Americano - 20oz hot",
		},
		{
			name:    "ZeroQuantity",
			body:    `{"items": [{"product": "croissant", "quantity": 0}], "paymentMethod": "cash", "amountPaid": 100}`,
			status:  http.StatusBadRequest,
			message: "Quantity must be at least 1 for product croissant",
		},
		{
			name:    "InvalidDiscount",
			body:    `{"items": [{"product": "croissant", "quantity": 2}], "discountCode": "NOPE", "paymentMethod": "cash", "amountPaid": 500}`,
			status:  http.StatusBadRequest,
			message: "Invalid discount code",
		},
		{
			name:    "MinimumPurchase",
			body:    `{"items": [{"product": "croissant", "quantity": 1}], "discountCode": "TEST10", "paymentMethod": "cash", "amountPaid": 500}`,
			status:  http.StatusBadRequest,
			message: "Minimum purchase of ₱100 required for this discount",
		},
		{
			name:    "CustomerNameRequired",
			body:    `{"items": [{"product": "croissant", "quantity": 1}], "paymentMethod": "cash", "paymentStatus": "unpaid"}`,
			status:  http.StatusBadRequest,
			message: "Customer name is required for unpaid orders",
		},
		{
			name:    "InsufficientPayment",
			body:    `{"items": [{"product": "croissant", "quantity": 1}], "paymentMethod": "cash", "amountPaid": 50}`,
			status:  http.StatusBadRequest,
			message: "Insufficient payment amount",
		},
		{
			name:    "MissingAmount",
			body:    `{"items": [{"product": "croissant", "quantity": 1}], "paymentMethod": "card"}`,
			status:  http.StatusBadRequest,
			message: "Insufficient payment amount",
		},
		{
			name:    "InvalidMethod",
			body:    `{"items": [{"product": "croissant", "quantity": 1}], "paymentMethod": "bitcoin", "amountPaid": 100}`,
			status:  http.StatusBadRequest,
			message: "paymentMethod must be one of: cash, gcash, card",
		},
		{
			name:    "MissingProduct",
			body:    `{"items": [{"quantity": 1}], "paymentMethod": "cash", "amountPaid": 100}`,
			status:  http.StatusBadRequest,
			message: "items[0].product is required",
		},
		{
			name:    "MalformedBody",
			body:    `{"items": [`,
			status:  http.StatusBadRequest,
			message: "Invalid request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			w, out := env.do(cashier, http.MethodPost, "/api/orders", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, false, out["success"])
			assert.Equal(t, tt.message, out["message"])

			// Nothing was recorded.
			p, err := env.store.Products().GetByID(context.Background(), "croissant")
			require.NoError(t, err)
			assert.Equal(t, 3, p.StockQuantity)
			d, err := env.store.Discounts().FindActiveByCode(context.Background(), "TEST10")
			require.NoError(t, err)
			assert.Zero(t, d.UsageCount)
		})
	}
}

func TestAuthentication(t *testing.T) {
	env := newTestEnv(t)

	t.Run("MissingToken", func(t *testing.T) {
		w, out := env.do(auth.Principal{}, http.MethodGet, "/api/orders", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Please login to access this resource", out["message"])
	})

	t.Run("InvalidToken", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		w := httptest.NewRecorder()
		env.srv.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid token")
	})

	t.Run("ForeignSecret", func(t *testing.T) {
		other, err := auth.NewTokens([]byte("other"), time.Hour).Issue(admin)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
		req.Header.Set("Authorization", "Bearer "+other)
		w := httptest.NewRecorder()
		env.srv.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
		req.AddCookie(&http.Cookie{Name: "token", Value: env.token(admin)})
		w := httptest.NewRecorder()
		env.srv.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("HeaderOverStaleCookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
		req.AddCookie(&http.Cookie{Name: "token", Value: "expired-session"})
		req.Header.Set("Authorization", "Bearer "+env.token(admin))
		w := httptest.NewRecorder()
		env.srv.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	})

	t.Run("EmptyBearerFallsBackToCookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
		req.AddCookie(&http.Cookie{Name: "token", Value: env.token(admin)})
		req.Header.Set("Authorization", "Bearer ")
		w := httptest.NewRecorder()
		env.srv.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	})

	t.Run("RoleForbidden", func(t *testing.T) {
		w, out := env.do(cashier, http.MethodGet, "/api/orders/unpaid", "")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "Role (cashier) is not allowed to access this resource", out["message"])

		w, out = env.do(admin, http.MethodGet, "/api/orders/my-orders", "")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "Role (admin) is not allowed to access this resource", out["message"])
	})
}

func TestOrderQueries(t *testing.T) {
	env := newTestEnv(t)

	mine := env.createOrder(cashier, paidAmericanos)
	theirs := env.createOrder(cashier2, `{
		"items": [{"product": "croissant", "quantity": 1}],
		"paymentMethod": "gcash", "paymentStatus": "unpaid", "customerName": "Ben"
	}`)

	t.Run("CashierSeesOwn", func(t *testing.T) {
		w, out := env.do(cashier, http.MethodGet, "/api/orders", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1.0, out["count"])
		assert.Equal(t, mine["_id"], out["orders"].([]any)[0].(map[string]any)["_id"])

		w, out = env.do(cashier, http.MethodGet, "/api/orders/my-orders", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1.0, out["count"])
	})

	t.Run("AdminSeesAll", func(t *testing.T) {
		w, out := env.do(admin, http.MethodGet, "/api/orders", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 2.0, out["count"])

		w, out = env.do(admin, http.MethodGet, "/api/orders?paymentMethod=gcash", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1.0, out["count"])

		w, out = env.do(admin, http.MethodGet, "/api/orders/unpaid", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1.0, out["count"])
		assert.Equal(t, theirs["_id"], out["orders"].([]any)[0].(map[string]any)["_id"])
	})

	t.Run("InvalidFilter", func(t *testing.T) {
		w, _ := env.do(admin, http.MethodGet, "/api/orders?status=lost", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w, _ = env.do(admin, http.MethodGet, "/api/orders?startDate=yesterday", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("DateRange", func(t *testing.T) {
		w, out := env.do(admin, http.MethodGet, "/api/orders?endDate=2000-01-01", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 0.0, out["count"])
	})

	t.Run("GetOrder", func(t *testing.T) {
		w, out := env.do(cashier, http.MethodGet, "/api/orders/"+mine["_id"].(string), "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, mine["orderNumber"], out["order"].(map[string]any)["orderNumber"])

		w, out = env.do(cashier, http.MethodGet, "/api/orders/"+theirs["_id"].(string), "")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "Not authorized to view this order", out["message"])

		w, out = env.do(admin, http.MethodGet, "/api/orders/missing", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Order not found", out["message"])
	})
}

func TestOrderLifecycle(t *testing.T) {
	env := newTestEnv(t)

	unpaid := env.createOrder(cashier, `{
		"items": [{"product": "croissant", "quantity": 2}],
		"paymentMethod": "cash", "paymentStatus": "unpaid", "customerName": "Ana"
	}`)
	id := unpaid["_id"].(string)

	w, out := env.do(admin, http.MethodPatch, "/api/orders/"+id+"/mark-paid", `{"amountPaid": 100}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Insufficient payment amount", out["message"])

	w, out = env.do(admin, http.MethodPatch, "/api/orders/"+id+"/mark-paid",
		`{"amountPaid": 200, "paymentMethod": "gcash", "referenceNumber": "GC-9"}`)
	require.Equal(t, http.StatusOK, w.Code, out)
	assert.Equal(t, "Order marked as paid successfully", out["message"])
	paid := out["order"].(map[string]any)
	assert.Equal(t, "paid", paid["paymentStatus"])
	assert.Equal(t, "gcash", paid["paymentMethod"])
	assert.Equal(t, 10.0, paid["change"])

	w, out = env.do(admin, http.MethodPatch, "/api/orders/"+id+"/mark-paid", `{"amountPaid": 200}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Order is already paid", out["message"])

	w, out = env.do(admin, http.MethodPatch, "/api/orders/"+id+"/cancel", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Order cancelled successfully", out["message"])
	assert.Equal(t, "cancelled", out["order"].(map[string]any)["status"])

	w, out = env.do(admin, http.MethodPatch, "/api/orders/"+id+"/cancel", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Order is already cancelled", out["message"])

	w, _ = env.do(cashier, http.MethodDelete, "/api/orders/"+id, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, out = env.do(admin, http.MethodDelete, "/api/orders/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Order deleted successfully", out["message"])

	w, out = env.do(admin, http.MethodDelete, "/api/orders/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Order not found", out["message"])
}

func TestBulkDelete(t *testing.T) {
	env := newTestEnv(t)
	a := env.createOrder(cashier, paidAmericanos)
	b := env.createOrder(cashier, paidAmericanos)

	w, out := env.do(admin, http.MethodPost, "/api/orders/bulk-delete", `{"orderIds": []}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Please provide order IDs to delete", out["message"])

	body := `{"orderIds": ["` + a["_id"].(string) + `", "` + b["_id"].(string) + `", "missing"]}`
	w, out = env.do(admin, http.MethodPost, "/api/orders/bulk-delete", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2 order(s) deleted successfully", out["message"])
	assert.Equal(t, 2.0, out["deletedCount"])

	c := env.createOrder(cashier, paidAmericanos)
	assert.Regexp(t, `-0003$`, c["orderNumber"], "numbers are not reused after deletion")
}

func TestProducts(t *testing.T) {
	env := newTestEnv(t)

	t.Run("ListPublic", func(t *testing.T) {
		w, out := env.do(auth.Principal{}, http.MethodGet, "/api/products", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 3.0, out["count"])
	})

	t.Run("Filters", func(t *testing.T) {
		tests := []struct {
			query string
			want  []string
		}{
			{query: "?isAvailable=true", want: []string{"americano", "croissant"}},
			{query: "?isAvailable=false", want: []string{"seasonal"}},
			{query: "?category=coffee", want: []string{"americano", "seasonal"}},
			{query: "?search=CROIS", want: []string{"croissant"}},
		}
		for _, tt := range tests {
			w, out := env.do(auth.Principal{}, http.MethodGet, "/api/products"+tt.query, "")
			require.Equal(t, http.StatusOK, w.Code)

			var ids []string
			for _, p := range out["products"].([]any) {
				ids = append(ids, p.(map[string]any)["_id"].(string))
			}
			assert.ElementsMatch(t, tt.want, ids, tt.query)
		}
	})

	t.Run("Get", func(t *testing.T) {
		w, out := env.do(auth.Principal{}, http.MethodGet, "/api/products/americano", "")
		require.Equal(t, http.StatusOK, w.Code)
		p := out["product"].(map[string]any)
		assert.Equal(t, "Americano", p["name"])
		assert.Len(t, p["variants"], 2)
		assert.Len(t, p["modifiers"], 2)

		w, out = env.do(auth.Principal{}, http.MethodGet, "/api/products/nope", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Product not found", out["message"])
	})

	t.Run("LowStock", func(t *testing.T) {
		w, _ := env.do(cashier, http.MethodGet, "/api/products/low-stock/all", "")
		assert.Equal(t, http.StatusForbidden, w.Code)

		w, out := env.do(admin, http.MethodGet, "/api/products/low-stock/all", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1.0, out["count"])
		p := out["products"].([]any)[0].(map[string]any)
		assert.Equal(t, "croissant", p["_id"])
		assert.Equal(t, true, p["isLowStock"])
	})
}

func TestValidateDiscount(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		path    string
		status  int
		message string
		amount  float64
	}{
		{name: "NoSubtotal", path: "/api/discounts/validate/test10", status: http.StatusOK, message: "Discount code is valid", amount: 0},
		{name: "WithSubtotal", path: "/api/discounts/validate/TEST10?subtotal=320", status: http.StatusOK, message: "Discount code is valid", amount: 32},
		{name: "BelowMinimum", path: "/api/discounts/validate/TEST10?subtotal=50", status: http.StatusBadRequest, message: "Minimum purchase of ₱100 required"},
		{name: "Unknown", path: "/api/discounts/validate/NOPE", status: http.StatusNotFound, message: "Invalid discount code"},
		{name: "BadSubtotal", path: "/api/discounts/validate/TEST10?subtotal=abc", status: http.StatusBadRequest, message: "Invalid subtotal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, out := env.do(cashier, http.MethodGet, tt.path, "")
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.message, out["message"])
			if tt.status == http.StatusOK {
				d := out["discount"].(map[string]any)
				assert.Equal(t, "TEST10", d["code"])
				assert.Equal(t, tt.amount, d["discountAmount"])
			}
		})
	}

	// Previews never count as usage.
	d, err := env.store.Discounts().FindActiveByCode(context.Background(), "TEST10")
	require.NoError(t, err)
	assert.Zero(t, d.UsageCount)
}

func TestRouteNotFound(t *testing.T) {
	env := newTestEnv(t)

	w, out := env.do(auth.Principal{}, http.MethodGet, "/api/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Route not found", out["message"])
}
