// Package seed loads the default menu and discount codes into a catalog.
package seed

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/farmtocup-pos/db"
	"github.com/xenking/farmtocup-pos/internal/domain/discount"
	"github.com/xenking/farmtocup-pos/internal/domain/product"
)

type productJSON struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	Category          string             `json:"category"`
	BasePrice         decimal.Decimal    `json:"basePrice"`
	IsAvailable       bool               `json:"isAvailable"`
	TrackInventory    bool               `json:"trackInventory"`
	StockQuantity     int                `json:"stockQuantity"`
	LowStockThreshold *int               `json:"lowStockThreshold"`
	Variants          []product.Variant  `json:"variants"`
	Modifiers         []product.Modifier `json:"modifiers"`
}

type discountJSON struct {
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Type        discount.Type   `json:"type"`
	Value       decimal.Decimal `json:"value"`
	MinPurchase decimal.Decimal `json:"minPurchase"`
	IsActive    bool            `json:"isActive"`
}

// defaultLowStockThreshold applies when a product does not set one.
const defaultLowStockThreshold = 10

// Menu is a set of catalog entries and discount codes.
type Menu struct {
	Products  []product.Product
	Discounts []discount.Discount
}

// DiscountID derives a stable discount id from its code so reseeding does
// not create duplicates.
func DiscountID(code string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("ftc-discount:"+discount.Normalize(code))).String()
}

// Parse decodes a menu document.
func Parse(data []byte) (*Menu, error) {
	var doc struct {
		Products  []productJSON  `json:"products"`
		Discounts []discountJSON `json:"discounts"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "decode menu")
	}

	m := &Menu{
		Products:  make([]product.Product, 0, len(doc.Products)),
		Discounts: make([]discount.Discount, 0, len(doc.Discounts)),
	}
	for i, p := range doc.Products {
		if p.ID == "" || p.Name == "" {
			return nil, errors.Errorf("product %d: id and name are required", i)
		}
		threshold := defaultLowStockThreshold
		if p.LowStockThreshold != nil {
			threshold = *p.LowStockThreshold
		}
		m.Products = append(m.Products, product.Product{
			ID:                p.ID,
			Name:              p.Name,
			Category:          p.Category,
			BasePrice:         p.BasePrice,
			IsAvailable:       p.IsAvailable,
			TrackInventory:    p.TrackInventory,
			StockQuantity:     p.StockQuantity,
			LowStockThreshold: threshold,
			Variants:          p.Variants,
			Modifiers:         p.Modifiers,
		})
	}
	for _, d := range doc.Discounts {
		code := discount.Normalize(d.Code)
		if code == "" {
			return nil, errors.New("discount code is required")
		}
		if !d.Type.Valid() {
			return nil, errors.Errorf("discount %s: unknown type %q", code, d.Type)
		}
		m.Discounts = append(m.Discounts, discount.Discount{
			ID:          DiscountID(code),
			Code:        code,
			Name:        d.Name,
			Type:        d.Type,
			Value:       d.Value,
			MinPurchase: d.MinPurchase,
			IsActive:    d.IsActive,
		})
	}
	return m, nil
}

// Default returns the embedded default menu.
func Default() (*Menu, error) {
	return Parse(db.Menu)
}

// Catalog stores seeded records.
type Catalog interface {
	UpsertProduct(ctx context.Context, p product.Product) error
	UpsertDiscounts(ctx context.Context, ds []discount.Discount) error
}

// Apply upserts every product and discount of m into c.
func Apply(ctx context.Context, c Catalog, m *Menu) error {
	for _, p := range m.Products {
		if err := c.UpsertProduct(ctx, p); err != nil {
			return errors.Wrapf(err, "product %s", p.ID)
		}
	}
	if len(m.Discounts) == 0 {
		return nil
	}
	if err := c.UpsertDiscounts(ctx, m.Discounts); err != nil {
		return errors.Wrap(err, "discounts")
	}
	return nil
}
