package handler

import (
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/xenking/farmtocup-pos/internal/domain/auth"
	"github.com/xenking/farmtocup-pos/internal/domain/discount"
	"github.com/xenking/farmtocup-pos/internal/domain/order"
	"github.com/xenking/farmtocup-pos/internal/domain/payment"
	"github.com/xenking/farmtocup-pos/internal/domain/product"
)

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("success")
		e.Bool(false)
		e.FieldStart("code")
		e.Int(status)
		e.FieldStart("message")
		e.Str(msg)
		e.ObjEnd()
	})
}

// fail writes the response for err. Unknown errors are logged and reported
// without detail.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorResponse(err)
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeError(w, status, msg)
}

// errorResponse maps domain errors to a status and the message shown to POS
// users.
func errorResponse(err error) (int, string) {
	var (
		pnf *order.ProductNotFoundError
		iq  *order.InvalidQuantityError
		ua  *product.UnavailableError
		vnf *product.VariantNotFoundError
		mp  *discount.MinimumPurchaseError
		ve  validator.ValidationErrors
	)
	switch {
	case errors.Is(err, order.ErrEmptyCart):
		return http.StatusBadRequest, "Please add items to order"
	case errors.As(err, &iq):
		return http.StatusBadRequest, fmt.Sprintf("Quantity must be at least 1 for product %s", iq.ProductID)
	case errors.As(err, &pnf):
		return http.StatusNotFound, "Product not found: " + pnf.ProductID
	case errors.As(err, &ua):
		return http.StatusBadRequest, fmt.Sprintf("Product %s is not available", ua.Name)
	case errors.As(err, &vnf):
		return http.StatusBadRequest, fmt.Sprintf("Variant not found for %s - %s %s", vnf.Name, vnf.Size, vnf.Temperature)

	case errors.Is(err, discount.ErrNotFound):
		return http.StatusBadRequest, "Invalid discount code"
	case errors.Is(err, discount.ErrNotYetValid):
		return http.StatusBadRequest, "Discount code is not yet valid"
	case errors.Is(err, discount.ErrExpired):
		return http.StatusBadRequest, "Discount code has expired"
	case errors.As(err, &mp):
		return http.StatusBadRequest, fmt.Sprintf("Minimum purchase of ₱%s required for this discount", mp.Minimum)

	case errors.Is(err, payment.ErrCustomerNameRequired):
		return http.StatusBadRequest, "Customer name is required for unpaid orders"
	case errors.Is(err, payment.ErrInsufficientPayment):
		return http.StatusBadRequest, "Insufficient payment amount"
	case errors.Is(err, payment.ErrInvalidMethod):
		return http.StatusBadRequest, "Invalid payment method"
	case errors.Is(err, payment.ErrInvalidStatus):
		return http.StatusBadRequest, "Invalid payment status"
	case errors.Is(err, payment.ErrAlreadyPaid):
		return http.StatusBadRequest, "Order is already paid"

	case errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound, "Order not found"
	case errors.Is(err, order.ErrForbidden):
		return http.StatusForbidden, "Not authorized to view this order"
	case errors.Is(err, order.ErrAlreadyCancelled):
		return http.StatusBadRequest, "Order is already cancelled"
	case errors.Is(err, order.ErrNoOrderIDs):
		return http.StatusBadRequest, "Please provide order IDs to delete"
	case errors.Is(err, order.ErrCashierRequired), errors.Is(err, auth.ErrNoPrincipal):
		return http.StatusUnauthorized, "Please login to access this resource"
	case errors.Is(err, product.ErrNotFound):
		return http.StatusNotFound, "Product not found"

	case errors.As(err, &ve):
		return http.StatusBadRequest, validationMessage(ve)
	case errors.Is(err, errMalformedBody):
		return http.StatusBadRequest, "Invalid request body"
	default:
		return http.StatusInternalServerError, "Server Error"
	}
}
