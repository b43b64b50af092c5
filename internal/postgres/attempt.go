package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/canopyhq/canopy/internal/domain/checkout"
)

var _ checkout.Repository = (*AttemptRepository)(nil)

// AttemptRepository implements checkout.Repository backed by PostgreSQL.
// Aggregate writes (header + items + charges) happen inside one transaction
// so a failed insert never leaves a partially-priced attempt behind.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository returns an AttemptRepository that uses the given pool.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

const insertAttemptSQL = `INSERT INTO payment_attempts
	(id, user_id, reference, payment_method, status, currency,
	 subtotal, discount, tax, shipping, fee, grand_total,
	 coupon_id, shipping_address, expires_at, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

const insertAttemptItemSQL = `INSERT INTO payment_attempt_items
	(id, attempt_id, item_snapshot, item_name, unit_price, quantity, total, image_url, dedication)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

const insertAttemptChargeSQL = `INSERT INTO payment_attempt_charges
	(id, attempt_id, name, type, mode, value, amount)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

// Create persists the attempt aggregate atomically. Snapshots and dedications
// are serialized to JSON for the JSONB columns.
func (r *AttemptRepository) Create(ctx context.Context, a *checkout.Attempt) error {
	addrJSON, err := marshalNullable(a.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshaling shipping address: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, insertAttemptSQL,
		a.ID, a.UserID, a.Reference, a.PaymentMethod, a.Status, a.Currency,
		a.Subtotal, a.Discount, a.Tax, a.Shipping, a.Fee, a.GrandTotal,
		a.CouponID, addrJSON, a.ExpiresAt, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating attempt %q: %w", a.ID, err)
	}

	for _, item := range a.Items {
		snapJSON, err := json.Marshal(item.Snapshot)
		if err != nil {
			return fmt.Errorf("marshaling snapshot for item %q: %w", item.ID, err)
		}
		dedJSON, err := marshalNullable(item.Dedication)
		if err != nil {
			return fmt.Errorf("marshaling dedication for item %q: %w", item.ID, err)
		}

		_, err = tx.Exec(ctx, insertAttemptItemSQL,
			item.ID, a.ID, snapJSON, item.ItemName, item.UnitPrice,
			item.Quantity, item.Total, item.ImageURL, dedJSON,
		)
		if err != nil {
			return fmt.Errorf("creating attempt item %q: %w", item.ID, err)
		}
	}

	for _, ch := range a.Charges {
		_, err = tx.Exec(ctx, insertAttemptChargeSQL,
			ch.ID, a.ID, ch.Name, ch.Type, ch.Mode, ch.Value, ch.Amount,
		)
		if err != nil {
			return fmt.Errorf("creating attempt charge %q: %w", ch.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing attempt %q: %w", a.ID, err)
	}
	return nil
}

const getAttemptSQL = `SELECT id, user_id, reference, payment_method, status, currency,
		subtotal, discount, tax, shipping, fee, grand_total,
		coupon_id, shipping_address, metadata, expires_at, created_order_id, completed_at, created_at
	FROM payment_attempts
	WHERE id = $1`

const getAttemptItemsSQL = `SELECT id, attempt_id, item_snapshot, item_name, unit_price, quantity, total, image_url, dedication
	FROM payment_attempt_items
	WHERE attempt_id = $1
	ORDER BY id`

const getAttemptChargesSQL = `SELECT id, attempt_id, name, type, mode, value, amount
	FROM payment_attempt_charges
	WHERE attempt_id = $1
	ORDER BY id`

// GetByID loads the full attempt aggregate. Returns
// checkout.ErrAttemptNotFound when the id does not resolve.
func (r *AttemptRepository) GetByID(ctx context.Context, id string) (*checkout.Attempt, error) {
	var (
		a        checkout.Attempt
		addrJSON []byte
		metaJSON []byte
	)
	err := r.pool.QueryRow(ctx, getAttemptSQL, id).Scan(
		&a.ID, &a.UserID, &a.Reference, &a.PaymentMethod, &a.Status, &a.Currency,
		&a.Subtotal, &a.Discount, &a.Tax, &a.Shipping, &a.Fee, &a.GrandTotal,
		&a.CouponID, &addrJSON, &metaJSON, &a.ExpiresAt, &a.CreatedOrderID, &a.CompletedAt, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, checkout.ErrAttemptNotFound
		}
		return nil, fmt.Errorf("getting attempt %q: %w", id, err)
	}

	if len(addrJSON) > 0 {
		if err := json.Unmarshal(addrJSON, &a.ShippingAddress); err != nil {
			return nil, fmt.Errorf("unmarshaling shipping address of attempt %q: %w", id, err)
		}
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &a.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling metadata of attempt %q: %w", id, err)
		}
	}

	if a.Items, err = r.loadItems(ctx, id); err != nil {
		return nil, err
	}
	if a.Charges, err = r.loadCharges(ctx, id); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AttemptRepository) loadItems(ctx context.Context, attemptID string) ([]checkout.AttemptItem, error) {
	rows, err := r.pool.Query(ctx, getAttemptItemsSQL, attemptID)
	if err != nil {
		return nil, fmt.Errorf("listing items of attempt %q: %w", attemptID, err)
	}
	defer rows.Close()

	var items []checkout.AttemptItem
	for rows.Next() {
		var (
			item     checkout.AttemptItem
			snapJSON []byte
			dedJSON  []byte
		)
		err := rows.Scan(&item.ID, &item.AttemptID, &snapJSON, &item.ItemName,
			&item.UnitPrice, &item.Quantity, &item.Total, &item.ImageURL, &dedJSON)
		if err != nil {
			return nil, fmt.Errorf("scanning attempt item: %w", err)
		}
		if err := json.Unmarshal(snapJSON, &item.Snapshot); err != nil {
			return nil, fmt.Errorf("unmarshaling snapshot of item %q: %w", item.ID, err)
		}
		if len(dedJSON) > 0 {
			if err := json.Unmarshal(dedJSON, &item.Dedication); err != nil {
				return nil, fmt.Errorf("unmarshaling dedication of item %q: %w", item.ID, err)
			}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *AttemptRepository) loadCharges(ctx context.Context, attemptID string) ([]checkout.AttemptCharge, error) {
	rows, err := r.pool.Query(ctx, getAttemptChargesSQL, attemptID)
	if err != nil {
		return nil, fmt.Errorf("listing charges of attempt %q: %w", attemptID, err)
	}
	defer rows.Close()

	var charges []checkout.AttemptCharge
	for rows.Next() {
		var ch checkout.AttemptCharge
		err := rows.Scan(&ch.ID, &ch.AttemptID, &ch.Name, &ch.Type, &ch.Mode, &ch.Value, &ch.Amount)
		if err != nil {
			return nil, fmt.Errorf("scanning attempt charge: %w", err)
		}
		charges = append(charges, ch)
	}
	return charges, rows.Err()
}

// markFailedSQL only touches attempts that are still in flight. A completed
// attempt already has its order; a late failure webhook must not flip it.
const markFailedSQL = `UPDATE payment_attempts
	SET status = 'failed', metadata = metadata || $2::jsonb
	WHERE id = $1 AND status IN ('initiated', 'processing')`

const attemptExistsSQL = `SELECT EXISTS (SELECT 1 FROM payment_attempts WHERE id = $1)`

// MarkFailed transitions an in-flight attempt to failed, appending the reason
// and a timestamp to its metadata document. The row is never deleted, and an
// attempt that already reached a terminal state is left untouched.
func (r *AttemptRepository) MarkFailed(ctx context.Context, id, reason string) error {
	patch, err := json.Marshal(map[string]string{
		"failure_reason": reason,
		"failed_at":      time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshaling failure metadata: %w", err)
	}

	tag, err := r.pool.Exec(ctx, markFailedSQL, id, patch)
	if err != nil {
		return fmt.Errorf("marking attempt %q failed: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, attemptExistsSQL, id).Scan(&exists); err != nil {
			return fmt.Errorf("checking attempt %q: %w", id, err)
		}
		if !exists {
			return checkout.ErrAttemptNotFound
		}
	}
	return nil
}

const deleteExpiredSQL = `DELETE FROM payment_attempts
	WHERE status = 'initiated' AND expires_at < $1`

// DeleteExpired removes initiated attempts past their expiry. Items and
// charges go with them via ON DELETE CASCADE. Concurrent sweeps are safe:
// deleting an already-deleted row is a no-op.
func (r *AttemptRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, deleteExpiredSQL, now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired attempts: %w", err)
	}
	return tag.RowsAffected(), nil
}

// marshalNullable serializes v to JSON, mapping a nil pointer to a SQL NULL.
func marshalNullable[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
