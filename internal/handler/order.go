package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/farmtocup-pos/internal/domain/auth"
	"github.com/xenking/farmtocup-pos/internal/domain/order"
	"github.com/xenking/farmtocup-pos/internal/domain/payment"
)

type cartLineRequest struct {
	Product     string   `json:"product" validate:"required,max=64"`
	Size        string   `json:"size" validate:"max=32"`
	Temperature string   `json:"temperature" validate:"max=32"`
	Quantity    int      `json:"quantity"`
	Modifiers   []string `json:"modifiers" validate:"dive,max=64"`
	Notes       string   `json:"notes" validate:"max=200"`
}

func (l *cartLineRequest) decode(d *jx.Decoder, key string) (err error) {
	switch key {
	case "product":
		l.Product, err = decodeOptStr(d)
	case "size":
		l.Size, err = decodeOptStr(d)
	case "temperature":
		l.Temperature, err = decodeOptStr(d)
	case "quantity":
		l.Quantity, err = d.Int()
	case "modifiers":
		l.Modifiers, err = decodeStrings(d)
	case "notes":
		l.Notes, err = decodeOptStr(d)
	default:
		err = d.Skip()
	}
	return err
}

type createOrderRequest struct {
	Items           []cartLineRequest   `json:"items" validate:"dive"`
	DiscountCode    string              `json:"discountCode" validate:"max=50"`
	PaymentMethod   string              `json:"paymentMethod" validate:"required,oneof=cash gcash card"`
	PaymentStatus   string              `json:"paymentStatus" validate:"omitempty,oneof=paid unpaid"`
	AmountPaid      decimal.NullDecimal `json:"amountPaid"`
	CustomerName    string              `json:"customerName" validate:"max=100"`
	ReferenceNumber string              `json:"referenceNumber" validate:"max=100"`
	Notes           string              `json:"notes" validate:"max=500"`
}

func (req *createOrderRequest) decode(d *jx.Decoder, key string) (err error) {
	switch key {
	case "items":
		if d.Next() == jx.Null {
			return d.Null()
		}
		return d.Arr(func(d *jx.Decoder) error {
			var line cartLineRequest
			if err := d.Obj(line.decode); err != nil {
				return err
			}
			req.Items = append(req.Items, line)
			return nil
		})
	case "discountCode":
		req.DiscountCode, err = decodeOptStr(d)
	case "paymentMethod":
		req.PaymentMethod, err = decodeOptStr(d)
	case "paymentStatus":
		req.PaymentStatus, err = decodeOptStr(d)
	case "amountPaid":
		req.AmountPaid, err = decodeMoney(d)
	case "customerName":
		req.CustomerName, err = decodeOptStr(d)
	case "referenceNumber":
		req.ReferenceNumber, err = decodeOptStr(d)
	case "notes":
		req.Notes, err = decodeOptStr(d)
	default:
		err = d.Skip()
	}
	return err
}

func (req *createOrderRequest) toDomain(cashierID string) order.CreateRequest {
	lines := make([]order.CartLine, len(req.Items))
	for i, l := range req.Items {
		lines[i] = order.CartLine{
			ProductID:   l.Product,
			Size:        l.Size,
			Temperature: l.Temperature,
			Quantity:    l.Quantity,
			Modifiers:   l.Modifiers,
			Notes:       l.Notes,
		}
	}
	return order.CreateRequest{
		Items:        lines,
		DiscountCode: req.DiscountCode,
		Payment: payment.Request{
			Status:          payment.Status(req.PaymentStatus),
			Method:          payment.Method(req.PaymentMethod),
			AmountPaid:      req.AmountPaid,
			CustomerName:    req.CustomerName,
			ReferenceNumber: req.ReferenceNumber,
		},
		CashierID: cashierID,
		Notes:     req.Notes,
	}
}

func decodeOptStr(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	p, err := auth.FromContext(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}

	var req createOrderRequest
	if err := readBody(w, r, req.decode); err != nil {
		fail(w, r, err)
		return
	}
	if len(req.Items) == 0 {
		fail(w, r, order.ErrEmptyCart)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		fail(w, r, err)
		return
	}

	o, err := h.orders.Create(r.Context(), req.toDomain(p.UserID))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeOrder(w, http.StatusCreated, "Order created successfully", o)
}

func writeOrder(w http.ResponseWriter, status int, msg string, o *order.Order) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("success")
		e.Bool(true)
		if msg != "" {
			e.FieldStart("message")
			e.Str(msg)
		}
		e.FieldStart("order")
		encodeOrder(e, o)
		e.ObjEnd()
	})
}

type listOrdersQuery struct {
	Status        string `json:"status" validate:"omitempty,oneof=pending preparing completed cancelled"`
	PaymentMethod string `json:"paymentMethod" validate:"omitempty,oneof=cash gcash card"`
	PaymentStatus string `json:"paymentStatus" validate:"omitempty,oneof=paid unpaid"`
	StartDate     string `json:"startDate"`
	EndDate       string `json:"endDate"`
}

// errInvalidDate is reported for unparsable startDate/endDate values.
var errInvalidDate = errors.New("invalid date")

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, errors.Wrap(errInvalidDate, s)
}

func (q listOrdersQuery) filter() (order.Filter, error) {
	from, err := parseDate(q.StartDate)
	if err != nil {
		return order.Filter{}, err
	}
	to, err := parseDate(q.EndDate)
	if err != nil {
		return order.Filter{}, err
	}
	return order.Filter{
		Status:        order.Status(q.Status),
		PaymentMethod: payment.Method(q.PaymentMethod),
		PaymentStatus: payment.Status(q.PaymentStatus),
		From:          from,
		To:            to,
	}, nil
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	p, err := auth.FromContext(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}

	values := r.URL.Query()
	q := listOrdersQuery{
		Status:        values.Get("status"),
		PaymentMethod: values.Get("paymentMethod"),
		PaymentStatus: values.Get("paymentStatus"),
		StartDate:     values.Get("startDate"),
		EndDate:       values.Get("endDate"),
	}
	if err := h.validate.Struct(q); err != nil {
		fail(w, r, err)
		return
	}
	f, err := q.filter()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date: use YYYY-MM-DD or RFC 3339")
		return
	}

	orders, err := h.orders.List(r.Context(), f, p)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrders(e, orders) })
}

func (h *Handler) listUnpaidOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListUnpaid(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrders(e, orders) })
}

func (h *Handler) listMyOrders(w http.ResponseWriter, r *http.Request) {
	p, err := auth.FromContext(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	orders, err := h.orders.List(r.Context(), order.Filter{CashierID: p.UserID}, p)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrders(e, orders) })
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	p, err := auth.FromContext(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	o, err := h.orders.Get(r.Context(), r.PathValue("id"), p)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeOrder(w, http.StatusOK, "", o)
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeOrder(w, http.StatusOK, "Order cancelled successfully", o)
}

type markPaidRequest struct {
	AmountPaid      decimal.NullDecimal `json:"amountPaid"`
	PaymentMethod   string              `json:"paymentMethod" validate:"omitempty,oneof=cash gcash card"`
	ReferenceNumber string              `json:"referenceNumber" validate:"max=100"`
}

func (req *markPaidRequest) decode(d *jx.Decoder, key string) (err error) {
	switch key {
	case "amountPaid":
		req.AmountPaid, err = decodeMoney(d)
	case "paymentMethod":
		req.PaymentMethod, err = decodeOptStr(d)
	case "referenceNumber":
		req.ReferenceNumber, err = decodeOptStr(d)
	default:
		err = d.Skip()
	}
	return err
}

func (h *Handler) markOrderPaid(w http.ResponseWriter, r *http.Request) {
	var req markPaidRequest
	if err := readBody(w, r, req.decode); err != nil {
		fail(w, r, err)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		fail(w, r, err)
		return
	}

	o, err := h.orders.MarkPaid(r.Context(), r.PathValue("id"), payment.Collection{
		AmountPaid:      req.AmountPaid,
		Method:          payment.Method(req.PaymentMethod),
		ReferenceNumber: req.ReferenceNumber,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeOrder(w, http.StatusOK, "Order marked as paid successfully", o)
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.Delete(r.Context(), r.PathValue("id")); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("success")
		e.Bool(true)
		e.FieldStart("message")
		e.Str("Order deleted successfully")
		e.ObjEnd()
	})
}

func (h *Handler) bulkDeleteOrders(w http.ResponseWriter, r *http.Request) {
	var ids []string
	err := readBody(w, r, func(d *jx.Decoder, key string) (err error) {
		if key != "orderIds" {
			return d.Skip()
		}
		ids, err = decodeStrings(d)
		return err
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	n, err := h.orders.BulkDelete(r.Context(), ids)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("success")
		e.Bool(true)
		e.FieldStart("message")
		e.Str(fmt.Sprintf("%d order(s) deleted successfully", n))
		e.FieldStart("deletedCount")
		e.Int(n)
		e.ObjEnd()
	})
}
