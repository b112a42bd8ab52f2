package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/farmtocup-pos/internal/domain/product"
)

const (
	productColumns = `id, name, category, base_price, is_available, track_inventory,
		stock_quantity, low_stock_threshold, sales_count, variants, modifiers`

	listProductsSQL = `SELECT ` + productColumns + ` FROM products
		WHERE ($1 = '' OR category = $1) AND (NOT $2 OR is_available)
		ORDER BY category, name`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	applySaleSQL = `UPDATE products SET
		sales_count = sales_count + $2,
		stock_quantity = CASE WHEN track_inventory THEN GREATEST(0, stock_quantity - $2) ELSE stock_quantity END,
		updated_at = NOW()
		WHERE id = $1`

	upsertProductSQL = `INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			base_price = EXCLUDED.base_price,
			is_available = EXCLUDED.is_available,
			track_inventory = EXCLUDED.track_inventory,
			stock_quantity = EXCLUDED.stock_quantity,
			low_stock_threshold = EXCLUDED.low_stock_threshold,
			variants = EXCLUDED.variants,
			modifiers = EXCLUDED.modifiers,
			updated_at = NOW()`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	q    querier
	lock bool
}

// List returns catalog entries ordered by category and name.
func (r *ProductRepository) List(ctx context.Context, f product.Filter) ([]product.Product, error) {
	rows, err := r.q.Query(ctx, listProductsSQL, f.Category, f.AvailableOnly)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return products, nil
}

// GetByID returns a single product. Inside a unit of work the row stays
// locked until the transaction ends.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.q.Query(ctx, forUpdate(getProductByIDSQL, r.lock), id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %q", id)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %q", id)
	}
	return &p, nil
}

// ApplySale records quantity sold and lowers tracked stock, floored at zero.
func (r *ProductRepository) ApplySale(ctx context.Context, id string, quantity int) error {
	tag, err := r.q.Exec(ctx, applySaleSQL, id, quantity)
	if err != nil {
		return errors.Wrapf(err, "apply sale to product %q", id)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// Upsert inserts p or replaces every catalog field of an existing row.
// The sales count is left untouched on update.
func (r *ProductRepository) Upsert(ctx context.Context, p product.Product) error {
	variants, err := json.Marshal(nonNil(p.Variants))
	if err != nil {
		return errors.Wrap(err, "marshal variants")
	}
	modifiers, err := json.Marshal(nonNil(p.Modifiers))
	if err != nil {
		return errors.Wrap(err, "marshal modifiers")
	}

	_, err = r.q.Exec(ctx, upsertProductSQL,
		p.ID, p.Name, p.Category, p.BasePrice, p.IsAvailable, p.TrackInventory,
		p.StockQuantity, p.LowStockThreshold, p.SalesCount, variants, modifiers,
	)
	if err != nil {
		return errors.Wrapf(err, "upsert product %q", p.ID)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p                   product.Product
		variants, modifiers []byte
	)
	if err := row.Scan(
		&p.ID, &p.Name, &p.Category, &p.BasePrice, &p.IsAvailable, &p.TrackInventory,
		&p.StockQuantity, &p.LowStockThreshold, &p.SalesCount, &variants, &modifiers,
	); err != nil {
		return p, err
	}
	if err := json.Unmarshal(variants, &p.Variants); err != nil {
		return p, errors.Wrapf(err, "unmarshal variants of %q", p.ID)
	}
	if err := json.Unmarshal(modifiers, &p.Modifiers); err != nil {
		return p, errors.Wrapf(err, "unmarshal modifiers of %q", p.ID)
	}
	return p, nil
}

// nonNil keeps empty JSONB arrays from being stored as null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
