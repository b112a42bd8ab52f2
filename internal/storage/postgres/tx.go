package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/farmtocup-pos/internal/domain/discount"
	"github.com/xenking/farmtocup-pos/internal/domain/order"
	"github.com/xenking/farmtocup-pos/internal/domain/product"
)

var _ order.UnitOfWork = (*Store)(nil)

// Store runs units of work as database transactions and exposes pool-level
// repositories for reads outside of them.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore returns a Store over pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Do runs fn inside a transaction. Rows read for pricing, discount
// validation or update are locked with SELECT ... FOR UPDATE until the
// transaction ends. The transaction commits only when fn returns nil.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, st order.Stores) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	// Rollback after Commit is a no-op.
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if err := fn(ctx, stores(tx, true)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	return nil
}

// View runs fn on the pool outside of a transaction. Reads take no row
// locks, so an open Do never blocks them.
func (s *Store) View(ctx context.Context, fn func(ctx context.Context, st order.Stores) error) error {
	return fn(ctx, stores(s.pool, false))
}

// Products returns a product repository bound to the pool.
func (s *Store) Products() *ProductRepository {
	return &ProductRepository{q: s.pool}
}

// Discounts returns a discount repository bound to the pool.
func (s *Store) Discounts() *DiscountRepository {
	return &DiscountRepository{q: s.pool}
}

// Orders returns an order repository bound to the pool.
func (s *Store) Orders() *OrderRepository {
	return &OrderRepository{q: s.pool}
}

func stores(q querier, lock bool) order.Stores {
	return order.Stores{
		Products:  &ProductRepository{q: q, lock: lock},
		Discounts: &DiscountRepository{q: q, lock: lock},
		Orders:    &OrderRepository{q: q, lock: lock},
	}
}

// UpsertProduct inserts or replaces a catalog entry.
func (s *Store) UpsertProduct(ctx context.Context, p product.Product) error {
	return s.Products().Upsert(ctx, p)
}

// UpsertDiscounts inserts or replaces discounts by code.
func (s *Store) UpsertDiscounts(ctx context.Context, ds []discount.Discount) error {
	return s.Discounts().UpsertBatch(ctx, ds)
}
