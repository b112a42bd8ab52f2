package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/farmtocup-pos/internal/domain/order"
	"github.com/xenking/farmtocup-pos/internal/domain/product"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 10 << 10

// errMalformedBody is reported for bodies that are not the expected JSON.
var errMalformedBody = errors.New("malformed request body")

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	fn(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func readBody(w http.ResponseWriter, r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return errors.Wrap(errMalformedBody, err.Error())
	}
	if err := jx.DecodeBytes(data).Obj(fn); err != nil {
		return errors.Wrap(errMalformedBody, err.Error())
	}
	return nil
}

// decodeMoney accepts a JSON number, a numeric string or null.
func decodeMoney(d *jx.Decoder) (decimal.NullDecimal, error) {
	switch d.Next() {
	case jx.Null:
		return decimal.NullDecimal{}, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.NullDecimal{}, err
		}
		if s == "" {
			return decimal.NullDecimal{}, nil
		}
		v, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.NullDecimal{}, err
		}
		return decimal.NewNullDecimal(v), nil
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.NullDecimal{}, err
		}
		v, err := decimal.NewFromString(n.String())
		if err != nil {
			return decimal.NullDecimal{}, err
		}
		return decimal.NewNullDecimal(v), nil
	}
}

func decodeStrings(d *jx.Decoder) ([]string, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	var out []string
	err := d.Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

func encodeMoney(e *jx.Encoder, v decimal.Decimal) {
	e.Num(jx.Num(v.String()))
}

func encodeTime(e *jx.Encoder, t *time.Time) {
	if t == nil || t.IsZero() {
		e.Null()
		return
	}
	e.Str(t.UTC().Format(timeLayout))
}

func encodeModifiers(e *jx.Encoder, mods []product.Modifier) {
	e.ArrStart()
	for _, m := range mods {
		e.ObjStart()
		e.FieldStart("name")
		e.Str(m.Name)
		e.FieldStart("price")
		encodeMoney(e, m.Price)
		e.ObjEnd()
	}
	e.ArrEnd()
}

func encodeProduct(e *jx.Encoder, p *product.Product) {
	e.ObjStart()
	e.FieldStart("_id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("category")
	e.Str(p.Category)
	e.FieldStart("basePrice")
	encodeMoney(e, p.BasePrice)
	e.FieldStart("isAvailable")
	e.Bool(p.IsAvailable)
	e.FieldStart("trackInventory")
	e.Bool(p.TrackInventory)
	e.FieldStart("stockQuantity")
	e.Int(p.StockQuantity)
	e.FieldStart("lowStockThreshold")
	e.Int(p.LowStockThreshold)
	e.FieldStart("isLowStock")
	e.Bool(p.LowStock())
	e.FieldStart("salesCount")
	e.Int(p.SalesCount)

	e.FieldStart("variants")
	e.ArrStart()
	for _, v := range p.Variants {
		e.ObjStart()
		e.FieldStart("size")
		e.Str(v.Size)
		e.FieldStart("temperature")
		e.Str(v.Temperature)
		e.FieldStart("price")
		encodeMoney(e, v.Price)
		e.FieldStart("cost")
		encodeMoney(e, v.Cost)
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("modifiers")
	encodeModifiers(e, p.Modifiers)
	e.ObjEnd()
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("_id")
	e.Str(o.ID)
	e.FieldStart("orderNumber")
	e.Str(o.Number)

	e.FieldStart("items")
	e.ArrStart()
	for _, item := range o.Items {
		e.ObjStart()
		e.FieldStart("product")
		e.Str(item.ProductID)
		e.FieldStart("productName")
		e.Str(item.ProductName)
		if item.Size != "" {
			e.FieldStart("size")
			e.Str(item.Size)
		}
		if item.Temperature != "" {
			e.FieldStart("temperature")
			e.Str(item.Temperature)
		}
		e.FieldStart("quantity")
		e.Int(item.Quantity)
		e.FieldStart("unitPrice")
		encodeMoney(e, item.UnitPrice)
		e.FieldStart("modifiers")
		encodeModifiers(e, item.Modifiers)
		e.FieldStart("subtotal")
		encodeMoney(e, item.Subtotal)
		if item.Notes != "" {
			e.FieldStart("notes")
			e.Str(item.Notes)
		}
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("subtotal")
	encodeMoney(e, o.Subtotal)
	e.FieldStart("discount")
	if o.DiscountID == "" {
		e.Null()
	} else {
		e.Str(o.DiscountID)
	}
	if o.DiscountCode != "" {
		e.FieldStart("discountCode")
		e.Str(o.DiscountCode)
	}
	e.FieldStart("discountAmount")
	encodeMoney(e, o.DiscountAmount)
	e.FieldStart("total")
	encodeMoney(e, o.Total)

	e.FieldStart("paymentMethod")
	e.Str(string(o.PaymentMethod))
	e.FieldStart("paymentStatus")
	e.Str(string(o.PaymentStatus))
	e.FieldStart("amountPaid")
	encodeMoney(e, o.AmountPaid)
	e.FieldStart("change")
	encodeMoney(e, o.Change)
	if o.ReferenceNumber != "" {
		e.FieldStart("referenceNumber")
		e.Str(o.ReferenceNumber)
	}
	if o.CustomerName != "" {
		e.FieldStart("customerName")
		e.Str(o.CustomerName)
	}
	e.FieldStart("paidAt")
	encodeTime(e, o.PaidAt)

	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("cashier")
	e.Str(o.CashierID)
	if o.Notes != "" {
		e.FieldStart("notes")
		e.Str(o.Notes)
	}
	e.FieldStart("createdAt")
	encodeTime(e, &o.CreatedAt)
	e.FieldStart("updatedAt")
	encodeTime(e, &o.UpdatedAt)
	e.ObjEnd()
}

func encodeOrders(e *jx.Encoder, orders []order.Order) {
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(true)
	e.FieldStart("count")
	e.Int(len(orders))
	e.FieldStart("orders")
	e.ArrStart()
	for i := range orders {
		encodeOrder(e, &orders[i])
	}
	e.ArrEnd()
	e.ObjEnd()
}
