package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/canopyhq/canopy/internal/domain/coupon"
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

const findCouponSQL = `SELECT c.id, c.code, c.type, c.value, c.max_discount, c.quantity,
		c.usage_limit, c.expires_at, c.is_enabled,
		(SELECT count(*) FROM coupon_redemptions r WHERE r.coupon_id = c.id)
	FROM coupons c
	WHERE upper(c.code) = upper($1)`

// FindByCode looks up a coupon by its code (case-insensitive) together with
// its current redemption count. Returns coupon.ErrNotFound when no coupon
// matches.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Rule, error) {
	var rule coupon.Rule
	err := r.pool.QueryRow(ctx, findCouponSQL, code).Scan(
		&rule.ID, &rule.Code, &rule.Type, &rule.Value, &rule.MaxDiscount,
		&rule.Quantity, &rule.UsageLimit, &rule.ExpiresAt, &rule.Enabled,
		&rule.Redemptions,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &rule, nil
}

