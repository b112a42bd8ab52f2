// Package handler exposes the POS API over HTTP.
package handler

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/xenking/farmtocup-pos/internal/domain/auth"
	"github.com/xenking/farmtocup-pos/internal/domain/discount"
	"github.com/xenking/farmtocup-pos/internal/domain/order"
	"github.com/xenking/farmtocup-pos/internal/domain/product"
)

// Handler serves the order, product and discount routes, delegating
// business logic to the order service and the catalog repositories.
type Handler struct {
	orders    *order.Service
	products  product.Repository
	discounts *discount.Resolver
	tokens    *auth.Tokens
	validate  *validator.Validate
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	orders *order.Service,
	products product.Repository,
	discounts *discount.Resolver,
	tokens *auth.Tokens,
) *Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &Handler{
		orders:    orders,
		products:  products,
		discounts: discounts,
		tokens:    tokens,
		validate:  v,
	}
}

// Register mounts every API route on mux. Literal segments such as
// /orders/unpaid take precedence over /orders/{id}.
func (h *Handler) Register(mux *http.ServeMux) {
	admin := h.requireRole(auth.RoleAdmin)
	cashier := h.requireRole(auth.RoleCashier)

	mux.Handle("POST /api/orders", h.authenticate(h.createOrder))
	mux.Handle("POST /api/orders/bulk-delete", h.authenticate(admin(h.bulkDeleteOrders)))
	mux.Handle("GET /api/orders", h.authenticate(h.listOrders))
	mux.Handle("GET /api/orders/unpaid", h.authenticate(admin(h.listUnpaidOrders)))
	mux.Handle("GET /api/orders/my-orders", h.authenticate(cashier(h.listMyOrders)))
	mux.Handle("GET /api/orders/{id}", h.authenticate(h.getOrder))
	mux.Handle("PATCH /api/orders/{id}/cancel", h.authenticate(admin(h.cancelOrder)))
	mux.Handle("PATCH /api/orders/{id}/mark-paid", h.authenticate(admin(h.markOrderPaid)))
	mux.Handle("DELETE /api/orders/{id}", h.authenticate(admin(h.deleteOrder)))

	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.Handle("GET /api/products/low-stock/all", h.authenticate(admin(h.listLowStockProducts)))
	mux.HandleFunc("GET /api/products/{id}", h.getProduct)

	mux.Handle("GET /api/discounts/validate/{code}", h.authenticate(h.validateDiscount))

	mux.HandleFunc("/api/", func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Route not found")
	})
}

func validationMessage(errs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "oneof":
			msgs = append(msgs, field+" must be one of: "+strings.ReplaceAll(fe.Param(), " ", ", "))
		case "max":
			msgs = append(msgs, field+" must be at most "+fe.Param()+" characters")
		case "gte", "min":
			msgs = append(msgs, field+" must be at least "+fe.Param())
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, ", ")
}
