package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/canopyhq/canopy/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// claimAttemptSQL is the idempotency gate. The created_order_id predicate
// makes the claim first-writer-wins: a second transaction racing on the same
// attempt updates zero rows and backs off. The unique partial index on
// created_order_id backstops the same guarantee at the storage level.
const claimAttemptSQL = `UPDATE payment_attempts
	SET status = 'completed', created_order_id = $2, completed_at = $3
	WHERE id = $1 AND created_order_id IS NULL`

const insertOrderSQL = `INSERT INTO orders
	(id, user_id, reference_number, status, currency,
	 subtotal, discount, tax, shipping, fee, grand_total,
	 coupon_id, shipping_address, paid_at, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

const insertOrderItemSQL = `INSERT INTO order_items
	(id, order_id, item_snapshot, item_name, unit_price, quantity, total, image_url, dedication)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

const insertOrderChargeSQL = `INSERT INTO order_charges
	(id, order_id, name, type, mode, value, amount)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

const insertOrderPaymentSQL = `INSERT INTO order_payments
	(id, order_id, gateway, transaction_id, amount, currency, status, paid_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

const insertRedemptionSQL = `INSERT INTO coupon_redemptions (id, coupon_id, order_id, redeemed_at)
	VALUES ($1, $2, $3, $4)`

// Materialize converts the attempt into a permanent order. Claiming the
// attempt, writing the order aggregate, recording the coupon redemption and
// the payment row all commit or roll back together.
func (r *OrderRepository) Materialize(ctx context.Context, o *order.Order, attemptID string, payment *order.Payment) error {
	addrJSON, err := marshalNullable(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshaling shipping address: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, claimAttemptSQL, attemptID, o.ID, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("claiming attempt %q: %w", attemptID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrAlreadyMaterialized
	}

	_, err = tx.Exec(ctx, insertOrderSQL,
		o.ID, o.UserID, o.ReferenceNumber, o.Status, o.Currency,
		o.Subtotal, o.Discount, o.Tax, o.Shipping, o.Fee, o.GrandTotal,
		o.CouponID, addrJSON, o.PaidAt, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	for _, item := range o.Items {
		snapJSON, err := json.Marshal(item.Snapshot)
		if err != nil {
			return fmt.Errorf("marshaling snapshot for item %q: %w", item.ID, err)
		}
		dedJSON, err := marshalNullable(item.Dedication)
		if err != nil {
			return fmt.Errorf("marshaling dedication for item %q: %w", item.ID, err)
		}

		_, err = tx.Exec(ctx, insertOrderItemSQL,
			item.ID, o.ID, snapJSON, item.ItemName, item.UnitPrice,
			item.Quantity, item.Total, item.ImageURL, dedJSON,
		)
		if err != nil {
			return fmt.Errorf("creating order item %q: %w", item.ID, err)
		}
	}

	for _, ch := range o.Charges {
		_, err = tx.Exec(ctx, insertOrderChargeSQL,
			ch.ID, o.ID, ch.Name, ch.Type, ch.Mode, ch.Value, ch.Amount,
		)
		if err != nil {
			return fmt.Errorf("creating order charge %q: %w", ch.ID, err)
		}
	}

	if o.CouponID != nil {
		_, err = tx.Exec(ctx, insertRedemptionSQL, uuid.NewString(), *o.CouponID, o.ID, o.CreatedAt)
		if err != nil {
			return fmt.Errorf("recording redemption of coupon %q: %w", *o.CouponID, err)
		}
	}

	if payment != nil {
		_, err = tx.Exec(ctx, insertOrderPaymentSQL,
			payment.ID, o.ID, payment.Gateway, payment.TransactionID,
			payment.Amount, payment.Currency, payment.Status, payment.PaidAt,
		)
		if err != nil {
			return fmt.Errorf("creating payment %q: %w", payment.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing order %q: %w", o.ID, err)
	}
	return nil
}

const getOrderSQL = `SELECT id, user_id, reference_number, status, currency,
		subtotal, discount, tax, shipping, fee, grand_total,
		coupon_id, shipping_address, paid_at, created_at
	FROM orders
	WHERE id = $1`

const getOrderItemsSQL = `SELECT id, order_id, item_snapshot, item_name, unit_price, quantity, total, image_url, dedication
	FROM order_items
	WHERE order_id = $1
	ORDER BY id`

const getOrderChargesSQL = `SELECT id, order_id, name, type, mode, value, amount
	FROM order_charges
	WHERE order_id = $1
	ORDER BY id`

const getOrderPaymentsSQL = `SELECT id, order_id, gateway, transaction_id, amount, currency, status, paid_at
	FROM order_payments
	WHERE order_id = $1
	ORDER BY paid_at`

// GetByID loads the full order aggregate. Returns order.ErrNotFound when the
// id does not resolve.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	var (
		o        order.Order
		addrJSON []byte
	)
	err := r.pool.QueryRow(ctx, getOrderSQL, id).Scan(
		&o.ID, &o.UserID, &o.ReferenceNumber, &o.Status, &o.Currency,
		&o.Subtotal, &o.Discount, &o.Tax, &o.Shipping, &o.Fee, &o.GrandTotal,
		&o.CouponID, &addrJSON, &o.PaidAt, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	if len(addrJSON) > 0 {
		if err := json.Unmarshal(addrJSON, &o.ShippingAddress); err != nil {
			return nil, fmt.Errorf("unmarshaling shipping address of order %q: %w", id, err)
		}
	}

	if o.Items, err = r.loadItems(ctx, id); err != nil {
		return nil, err
	}
	if o.Charges, err = r.loadCharges(ctx, id); err != nil {
		return nil, err
	}
	if o.Payments, err = r.loadPayments(ctx, id); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, orderID string) ([]order.Item, error) {
	rows, err := r.pool.Query(ctx, getOrderItemsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing items of order %q: %w", orderID, err)
	}
	defer rows.Close()

	var items []order.Item
	for rows.Next() {
		var (
			item     order.Item
			snapJSON []byte
			dedJSON  []byte
		)
		err := rows.Scan(&item.ID, &item.OrderID, &snapJSON, &item.ItemName,
			&item.UnitPrice, &item.Quantity, &item.Total, &item.ImageURL, &dedJSON)
		if err != nil {
			return nil, fmt.Errorf("scanning order item: %w", err)
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

func (r *OrderRepository) loadCharges(ctx context.Context, orderID string) ([]order.Charge, error) {
	rows, err := r.pool.Query(ctx, getOrderChargesSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing charges of order %q: %w", orderID, err)
	}
	defer rows.Close()

	var charges []order.Charge
	for rows.Next() {
		var ch order.Charge
		err := rows.Scan(&ch.ID, &ch.OrderID, &ch.Name, &ch.Type, &ch.Mode, &ch.Value, &ch.Amount)
		if err != nil {
			return nil, fmt.Errorf("scanning order charge: %w", err)
		}
		charges = append(charges, ch)
	}
	return charges, rows.Err()
}

func (r *OrderRepository) loadPayments(ctx context.Context, orderID string) ([]order.Payment, error) {
	rows, err := r.pool.Query(ctx, getOrderPaymentsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing payments of order %q: %w", orderID, err)
	}
	defer rows.Close()

	var payments []order.Payment
	for rows.Next() {
		var p order.Payment
		err := rows.Scan(&p.ID, &p.OrderID, &p.Gateway, &p.TransactionID,
			&p.Amount, &p.Currency, &p.Status, &p.PaidAt)
		if err != nil {
			return nil, fmt.Errorf("scanning order payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

const updateStatusSQL = `UPDATE orders SET status = $3 WHERE id = $1 AND status = $2`

// UpdateStatus moves the order from one status to another. The from-status
// predicate keeps concurrent updates from clobbering each other.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to order.Status) error {
	if !order.CanTransition(from, to) {
		return order.ErrInvalidTransition
	}

	tag, err := r.pool.Exec(ctx, updateStatusSQL, id, from, to)
	if err != nil {
		return fmt.Errorf("updating status of order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %q is not in status %q: %w", id, from, order.ErrInvalidTransition)
	}
	return nil
}
