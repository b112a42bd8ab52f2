package handler

import (
	"cmp"
	"net/http"
	"slices"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/farmtocup-pos/internal/domain/discount"
	"github.com/xenking/farmtocup-pos/internal/domain/product"
)

// listProducts serves the menu. Supported query parameters: category,
// search (case-insensitive name match) and isAvailable.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := product.Filter{
		Category:      q.Get("category"),
		AvailableOnly: q.Get("isAvailable") == "true",
	}

	products, err := h.products.List(r.Context(), f)
	if err != nil {
		fail(w, r, err)
		return
	}

	search := strings.ToLower(q.Get("search"))
	onlyUnavailable := q.Get("isAvailable") == "false"
	products = slices.DeleteFunc(products, func(p product.Product) bool {
		if onlyUnavailable && p.IsAvailable {
			return true
		}
		return search != "" && !strings.Contains(strings.ToLower(p.Name), search)
	})
	writeProducts(w, products)
}

// listLowStockProducts returns tracked products at or below their threshold,
// lowest stock first.
func (h *Handler) listLowStockProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context(), product.Filter{})
	if err != nil {
		fail(w, r, err)
		return
	}
	products = slices.DeleteFunc(products, func(p product.Product) bool { return !p.LowStock() })
	slices.SortStableFunc(products, func(a, b product.Product) int {
		return cmp.Compare(a.StockQuantity, b.StockQuantity)
	})
	writeProducts(w, products)
}

func writeProducts(w http.ResponseWriter, products []product.Product) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("success")
		e.Bool(true)
		e.FieldStart("count")
		e.Int(len(products))
		e.FieldStart("products")
		e.ArrStart()
		for i := range products {
			encodeProduct(e, &products[i])
		}
		e.ArrEnd()
		e.ObjEnd()
	})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("success")
		e.Bool(true)
		e.FieldStart("product")
		encodeProduct(e, p)
		e.ObjEnd()
	})
}

// validateDiscount previews a discount code without recording usage. The
// optional subtotal query parameter enables the minimum purchase check and
// the discount amount.
func (h *Handler) validateDiscount(w http.ResponseWriter, r *http.Request) {
	var subtotal decimal.NullDecimal
	if s := r.URL.Query().Get("subtotal"); s != "" {
		v, err := decimal.NewFromString(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid subtotal")
			return
		}
		subtotal = decimal.NewNullDecimal(v)
	}

	applied, err := h.discounts.Preview(r.Context(), r.PathValue("code"), subtotal)
	if err != nil {
		var mp *discount.MinimumPurchaseError
		switch {
		case errors.Is(err, discount.ErrNotFound):
			writeError(w, http.StatusNotFound, "Invalid discount code")
		case errors.As(err, &mp):
			writeError(w, http.StatusBadRequest, "Minimum purchase of ₱"+mp.Minimum.String()+" required")
		default:
			fail(w, r, err)
		}
		return
	}

	d := applied.Discount
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("success")
		e.Bool(true)
		e.FieldStart("message")
		e.Str("Discount code is valid")
		e.FieldStart("discount")
		e.ObjStart()
		e.FieldStart("_id")
		e.Str(d.ID)
		e.FieldStart("code")
		e.Str(d.Code)
		e.FieldStart("name")
		e.Str(d.Name)
		e.FieldStart("type")
		e.Str(string(d.Type))
		e.FieldStart("value")
		encodeMoney(e, d.Value)
		e.FieldStart("minPurchase")
		encodeMoney(e, d.MinPurchase)
		e.FieldStart("discountAmount")
		encodeMoney(e, applied.Amount)
		e.ObjEnd()
		e.ObjEnd()
	})
}
