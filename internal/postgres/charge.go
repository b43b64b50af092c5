package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/canopyhq/canopy/internal/domain/charge"
)

var _ charge.Repository = (*ChargeRepository)(nil)

// ChargeRepository implements charge.Repository backed by PostgreSQL.
type ChargeRepository struct {
	pool *pgxpool.Pool
}

// NewChargeRepository returns a ChargeRepository that uses the given pool.
func NewChargeRepository(pool *pgxpool.Pool) *ChargeRepository {
	return &ChargeRepository{pool: pool}
}

const listActiveChargesSQL = `SELECT id, name, type, mode, value, is_active
	FROM charges
	WHERE is_active
	ORDER BY id`

// ListActive returns all currently active charge rules.
func (r *ChargeRepository) ListActive(ctx context.Context) ([]charge.Rule, error) {
	rows, err := r.pool.Query(ctx, listActiveChargesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing active charges: %w", err)
	}
	defer rows.Close()

	var rules []charge.Rule
	for rows.Next() {
		var rule charge.Rule
		if err := rows.Scan(&rule.ID, &rule.Name, &rule.Type, &rule.Mode, &rule.Value, &rule.Active); err != nil {
			return nil, fmt.Errorf("scanning charge: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating charges: %w", err)
	}
	return rules, nil
}
