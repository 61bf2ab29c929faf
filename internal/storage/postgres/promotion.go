package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/artelab/backoffice/internal/domain/promotion"
)

const promotionColumns = `id, name, discount, product_ids, active, valid_from, valid_until, created_at, updated_at`

const (
	listActivePromotionsSQL = `SELECT ` + promotionColumns + `
		FROM promotions
		WHERE active
			AND (valid_from IS NULL OR valid_from <= $1)
			AND (valid_until IS NULL OR valid_until >= $1)
		ORDER BY created_at, id`

	listPromotionsSQL = `SELECT ` + promotionColumns + ` FROM promotions ORDER BY created_at, id`

	getPromotionByIDSQL = `SELECT ` + promotionColumns + ` FROM promotions WHERE id = $1`

	insertPromotionSQL = `INSERT INTO promotions (` + promotionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	upsertPromotionSQL = insertPromotionSQL + `
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			discount = EXCLUDED.discount,
			product_ids = EXCLUDED.product_ids,
			active = EXCLUDED.active,
			valid_from = EXCLUDED.valid_from,
			valid_until = EXCLUDED.valid_until,
			updated_at = EXCLUDED.updated_at`

	updatePromotionSQL = `UPDATE promotions SET
			name = $2, discount = $3, product_ids = $4, active = $5,
			valid_from = $6, valid_until = $7, updated_at = $8
		WHERE id = $1`

	deletePromotionSQL = `DELETE FROM promotions WHERE id = $1`
)

var _ promotion.Repository = (*PromotionRepository)(nil)

// PromotionRepository implements promotion.Repository backed by PostgreSQL.
type PromotionRepository struct {
	pool *pgxpool.Pool
}

// NewPromotionRepository returns a PromotionRepository that uses the given pool.
func NewPromotionRepository(pool *pgxpool.Pool) *PromotionRepository {
	return &PromotionRepository{pool: pool}
}

// ListActive returns promotions in effect at now, oldest first.
func (r *PromotionRepository) ListActive(ctx context.Context, now time.Time) ([]promotion.Promotion, error) {
	rows, err := r.pool.Query(ctx, listActivePromotionsSQL, now)
	if err != nil {
		return nil, fmt.Errorf("listing active promotions: %w", err)
	}
	return pgx.CollectRows(rows, scanPromotion)
}

// List returns every promotion, oldest first.
func (r *PromotionRepository) List(ctx context.Context) ([]promotion.Promotion, error) {
	rows, err := r.pool.Query(ctx, listPromotionsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing promotions: %w", err)
	}
	return pgx.CollectRows(rows, scanPromotion)
}

// GetByID returns a promotion by id.
func (r *PromotionRepository) GetByID(ctx context.Context, id string) (*promotion.Promotion, error) {
	rows, err := r.pool.Query(ctx, getPromotionByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting promotion %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanPromotion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promotion.ErrNotFound
		}
		return nil, fmt.Errorf("getting promotion %q: %w", id, err)
	}
	return &p, nil
}

// Create inserts a promotion.
func (r *PromotionRepository) Create(ctx context.Context, p *promotion.Promotion) error {
	if _, err := r.pool.Exec(ctx, insertPromotionSQL, promotionArgs(p)...); err != nil {
		return fmt.Errorf("creating promotion %q: %w", p.ID, err)
	}
	return nil
}

// Upsert inserts a promotion or overwrites the one with the same id.
func (r *PromotionRepository) Upsert(ctx context.Context, p *promotion.Promotion) error {
	if _, err := r.pool.Exec(ctx, upsertPromotionSQL, promotionArgs(p)...); err != nil {
		return fmt.Errorf("upserting promotion %q: %w", p.ID, err)
	}
	return nil
}

// Update overwrites a promotion.
func (r *PromotionRepository) Update(ctx context.Context, p *promotion.Promotion) error {
	tag, err := r.pool.Exec(ctx, updatePromotionSQL,
		p.ID, p.Name, p.Discount, productIDs(p.ProductIDs), p.Active,
		p.ValidFrom, p.ValidUntil, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating promotion %q: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return promotion.ErrNotFound
	}
	return nil
}

// Delete removes a promotion.
func (r *PromotionRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deletePromotionSQL, id)
	if err != nil {
		return fmt.Errorf("deleting promotion %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return promotion.ErrNotFound
	}
	return nil
}

func promotionArgs(p *promotion.Promotion) []any {
	return []any{
		p.ID, p.Name, p.Discount, productIDs(p.ProductIDs), p.Active,
		p.ValidFrom, p.ValidUntil, p.CreatedAt, p.UpdatedAt,
	}
}

// productIDs avoids writing NULL into the NOT NULL array column.
func productIDs(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func scanPromotion(row pgx.CollectableRow) (promotion.Promotion, error) {
	var p promotion.Promotion
	err := row.Scan(
		&p.ID, &p.Name, &p.Discount, &p.ProductIDs, &p.Active,
		&p.ValidFrom, &p.ValidUntil, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}
