package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/farmtocup-pos/internal/domain/discount"
)

const (
	discountColumns = `id, code, name, type, value, min_purchase, is_active,
		valid_from, valid_until, usage_count`

	findActiveDiscountSQL = `SELECT ` + discountColumns + ` FROM discounts
		WHERE code = $1 AND is_active`

	incrementUsageSQL = `UPDATE discounts SET usage_count = usage_count + 1, updated_at = NOW()
		WHERE id = $1`

	upsertDiscountSQL = `INSERT INTO discounts (id, code, name, type, value, min_purchase, is_active, valid_from, valid_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			value = EXCLUDED.value,
			min_purchase = EXCLUDED.min_purchase,
			is_active = EXCLUDED.is_active,
			valid_from = EXCLUDED.valid_from,
			valid_until = EXCLUDED.valid_until,
			updated_at = NOW()`
)

var _ discount.Repository = (*DiscountRepository)(nil)

// DiscountRepository implements discount.Repository backed by PostgreSQL.
type DiscountRepository struct {
	q    querier
	lock bool
}

// FindActiveByCode looks up an active discount by its normalized code.
func (r *DiscountRepository) FindActiveByCode(ctx context.Context, code string) (*discount.Discount, error) {
	rows, err := r.q.Query(ctx, forUpdate(findActiveDiscountSQL, r.lock), code)
	if err != nil {
		return nil, errors.Wrapf(err, "find discount %q", code)
	}

	d, err := pgx.CollectExactlyOneRow(rows, scanDiscount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrNotFound
		}
		return nil, errors.Wrapf(err, "find discount %q", code)
	}
	return &d, nil
}

// IncrementUsage atomically bumps the usage counter.
func (r *DiscountRepository) IncrementUsage(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, incrementUsageSQL, id)
	if err != nil {
		return errors.Wrapf(err, "increment usage of discount %q", id)
	}
	if tag.RowsAffected() == 0 {
		return discount.ErrNotFound
	}
	return nil
}

// Upsert inserts d keyed by its code, generating an id when d has none.
// Existing rows keep their id and usage count.
func (r *DiscountRepository) Upsert(ctx context.Context, d discount.Discount) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	_, err := r.q.Exec(ctx, upsertDiscountSQL,
		d.ID, discount.Normalize(d.Code), d.Name, string(d.Type), d.Value, d.MinPurchase,
		d.IsActive, d.ValidFrom, d.ValidUntil,
	)
	if err != nil {
		return errors.Wrapf(err, "upsert discount %q", d.Code)
	}
	return nil
}

// UpsertBatch upserts all discounts in one round trip.
func (r *DiscountRepository) UpsertBatch(ctx context.Context, ds []discount.Discount) error {
	batch := &pgx.Batch{}
	for _, d := range ds {
		if d.ID == "" {
			d.ID = uuid.New().String()
		}
		batch.Queue(upsertDiscountSQL,
			d.ID, discount.Normalize(d.Code), d.Name, string(d.Type), d.Value, d.MinPurchase,
			d.IsActive, d.ValidFrom, d.ValidUntil,
		)
	}
	br := r.q.SendBatch(ctx, batch)
	for _, d := range ds {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return errors.Wrapf(err, "upsert discount %q", d.Code)
		}
	}
	if err := br.Close(); err != nil {
		return errors.Wrap(err, "close batch")
	}
	return nil
}

func scanDiscount(row pgx.CollectableRow) (discount.Discount, error) {
	var (
		d   discount.Discount
		typ string
	)
	err := row.Scan(
		&d.ID, &d.Code, &d.Name, &typ, &d.Value, &d.MinPurchase, &d.IsActive,
		&d.ValidFrom, &d.ValidUntil, &d.UsageCount,
	)
	d.Type = discount.Type(typ)
	return d, err
}
