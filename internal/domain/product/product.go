package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is a menu item as stored in the catalog.
type Product struct {
	ID                string
	Name              string
	Category          string
	BasePrice         decimal.Decimal
	IsAvailable       bool
	TrackInventory    bool
	StockQuantity     int
	LowStockThreshold int
	SalesCount        int
	Variants          []Variant
	Modifiers         []Modifier
}

// Variant is a priced size and temperature combination of a product.
type Variant struct {
	Size        string          `json:"size"`
	Temperature string          `json:"temperature"`
	Price       decimal.Decimal `json:"price"`
	Cost        decimal.Decimal `json:"cost"`
}

// Modifier is a named add-on such as an extra shot.
type Modifier struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// LowStock reports whether an inventory-tracked product has fallen to its
// low stock threshold.
func (p *Product) LowStock() bool {
	return p.TrackInventory && p.StockQuantity <= p.LowStockThreshold
}

// Filter narrows a catalog listing. Zero values match everything.
type Filter struct {
	Category      string
	AvailableOnly bool
}

// Repository provides catalog reads and the sale side effect applied when an
// order commits.
type Repository interface {
	List(ctx context.Context, f Filter) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	// ApplySale adds quantity to the sales count and, for inventory-tracked
	// products, lowers stock by quantity without going below zero.
	ApplySale(ctx context.Context, id string, quantity int) error
}
