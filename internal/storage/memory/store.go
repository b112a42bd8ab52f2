// Package memory is an in-process implementation of the order, product and
// discount repositories for development and tests.
//
// Every unit of work runs against a private copy of the data under an
// exclusive lock and replaces the shared copy only when it succeeds, so
// writes are serialized and a failed unit of work leaves no trace.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/xenking/farmtocup-pos/internal/domain/discount"
	"github.com/xenking/farmtocup-pos/internal/domain/order"
	"github.com/xenking/farmtocup-pos/internal/domain/product"
)

var _ order.UnitOfWork = (*Store)(nil)

type state struct {
	products  map[string]product.Product
	discounts map[string]discount.Discount
	orders    map[string]order.Order
	sequences map[string]int
}

func newState() *state {
	return &state{
		products:  make(map[string]product.Product),
		discounts: make(map[string]discount.Discount),
		orders:    make(map[string]order.Order),
		sequences: make(map[string]int),
	}
}

// clone copies the maps. Stored values are replaced, never mutated in place,
// so sharing their slices between copies is safe.
func (s *state) clone() *state {
	return &state{
		products:  cloneMap(s.products),
		discounts: cloneMap(s.discounts),
		orders:    cloneMap(s.orders),
		sequences: cloneMap(s.sequences),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) stores() order.Stores {
	return order.Stores{
		Products:  productRepo{s},
		Discounts: discountRepo{s},
		Orders:    orderRepo{s},
	}
}

// Store holds all data in memory.
type Store struct {
	mu sync.RWMutex
	st *state
}

// New returns an empty Store.
func New() *Store {
	return &Store{st: newState()}
}

// Do runs fn on a private copy of the data and publishes the copy when fn
// returns nil.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, st order.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(ctx, work.stores()); err != nil {
		return err
	}
	s.st = work
	return nil
}

// View runs fn on the shared data under a read lock. fn must not write.
func (s *Store) View(ctx context.Context, fn func(ctx context.Context, st order.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var err error
	s.view(func(st *state) { err = fn(ctx, st.stores()) })
	return err
}

func (s *Store) view(fn func(st *state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.st)
}

// PutProduct inserts or replaces a catalog entry.
func (s *Store) PutProduct(p product.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.products[p.ID] = cloneProduct(p)
}

// PutDiscount inserts or replaces a discount. The code is stored uppercase.
func (s *Store) PutDiscount(d discount.Discount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.Code = discount.Normalize(d.Code)
	s.st.discounts[d.ID] = d
}

// UpsertProduct is PutProduct for seeding.
func (s *Store) UpsertProduct(_ context.Context, p product.Product) error {
	s.PutProduct(p)
	return nil
}

// UpsertDiscounts is PutDiscount for seeding. Existing discounts keep their
// usage count.
func (s *Store) UpsertDiscounts(_ context.Context, ds []discount.Discount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range ds {
		if old, ok := s.st.discounts[d.ID]; ok {
			d.UsageCount = old.UsageCount
		}
		d.Code = discount.Normalize(d.Code)
		s.st.discounts[d.ID] = d
	}
	return nil
}

// Products returns a product repository outside of any unit of work.
func (s *Store) Products() product.Repository {
	return storeProducts{s}
}

// Discounts returns a discount repository outside of any unit of work.
func (s *Store) Discounts() discount.Repository {
	return storeDiscounts{s}
}

type storeProducts struct{ s *Store }

func (r storeProducts) List(ctx context.Context, f product.Filter) (out []product.Product, err error) {
	r.s.view(func(st *state) { out, err = productRepo{st}.List(ctx, f) })
	return out, err
}

func (r storeProducts) GetByID(ctx context.Context, id string) (p *product.Product, err error) {
	r.s.view(func(st *state) { p, err = productRepo{st}.GetByID(ctx, id) })
	return p, err
}

func (r storeProducts) ApplySale(ctx context.Context, id string, quantity int) error {
	return r.s.Do(ctx, func(ctx context.Context, st order.Stores) error {
		return st.Products.ApplySale(ctx, id, quantity)
	})
}

type storeDiscounts struct{ s *Store }

func (r storeDiscounts) FindActiveByCode(ctx context.Context, code string) (d *discount.Discount, err error) {
	r.s.view(func(st *state) { d, err = discountRepo{st}.FindActiveByCode(ctx, code) })
	return d, err
}

func (r storeDiscounts) IncrementUsage(ctx context.Context, id string) error {
	return r.s.Do(ctx, func(ctx context.Context, st order.Stores) error {
		return st.Discounts.IncrementUsage(ctx, id)
	})
}

type productRepo struct{ st *state }

func (r productRepo) List(_ context.Context, f product.Filter) ([]product.Product, error) {
	out := make([]product.Product, 0, len(r.st.products))
	for _, p := range r.st.products {
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.AvailableOnly && !p.IsAvailable {
			continue
		}
		out = append(out, cloneProduct(p))
	}
	slices.SortFunc(out, func(a, b product.Product) int {
		return cmp.Or(cmp.Compare(a.Category, b.Category), cmp.Compare(a.Name, b.Name))
	})
	return out, nil
}

func (r productRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := r.st.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	p = cloneProduct(p)
	return &p, nil
}

func (r productRepo) ApplySale(_ context.Context, id string, quantity int) error {
	p, ok := r.st.products[id]
	if !ok {
		return product.ErrNotFound
	}
	p.SalesCount += quantity
	if p.TrackInventory {
		p.StockQuantity = max(0, p.StockQuantity-quantity)
	}
	r.st.products[id] = p
	return nil
}

func cloneProduct(p product.Product) product.Product {
	p.Variants = slices.Clone(p.Variants)
	p.Modifiers = slices.Clone(p.Modifiers)
	return p
}

type discountRepo struct{ st *state }

func (r discountRepo) FindActiveByCode(_ context.Context, code string) (*discount.Discount, error) {
	for _, d := range r.st.discounts {
		if d.Code == code && d.IsActive {
			return &d, nil
		}
	}
	return nil, discount.ErrNotFound
}

func (r discountRepo) IncrementUsage(_ context.Context, id string) error {
	d, ok := r.st.discounts[id]
	if !ok {
		return discount.ErrNotFound
	}
	d.UsageCount++
	r.st.discounts[id] = d
	return nil
}
