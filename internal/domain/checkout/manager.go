package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/canopyhq/canopy/internal/domain/catalog"
	"github.com/canopyhq/canopy/internal/domain/charge"
	"github.com/canopyhq/canopy/internal/domain/coupon"
)

// AttemptTTL is how long an initiated attempt stays valid before the expiry
// sweep may delete it.
const AttemptTTL = 24 * time.Hour

// Sentinel errors for attempt creation input validation.
var (
	ErrEmptyItems      = errors.New("items required")
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
)

// CreateAttemptRequest holds the checkout payload for attempt creation.
type CreateAttemptRequest struct {
	Items             []CartItem
	CouponCode        string
	PaymentMethod     string
	Currency          string
	ShippingAddressID string
}

// Manager orchestrates attempt creation: hydrate and snapshot items, validate
// the coupon, compute charge totals, snapshot the shipping address, and
// persist the aggregate.
type Manager struct {
	snapshots *Snapshotter
	coupons   coupon.Validator
	charges   charge.Calculator
	attempts  Repository
	addresses catalog.AddressRepository

	now func() time.Time
	ttl time.Duration
}

// NewManager creates a Manager with the required collaborators.
func NewManager(
	snapshots *Snapshotter,
	coupons coupon.Validator,
	charges charge.Calculator,
	attempts Repository,
	addresses catalog.AddressRepository,
) *Manager {
	return &Manager{
		snapshots: snapshots,
		coupons:   coupons,
		charges:   charges,
		attempts:  attempts,
		addresses: addresses,
		now:       time.Now,
		ttl:       AttemptTTL,
	}
}

// CreateAttempt prices the cart and persists a fully-loaded attempt with
// status initiated and a 24h expiry. Item snapshots, the coupon discount, the
// charge totals, and the shipping address are all resolved at this single
// point in time; every failure aborts the whole operation before anything is
// written, and the repository writes the aggregate in one transaction.
func (m *Manager) CreateAttempt(ctx context.Context, req CreateAttemptRequest, userID string) (*Attempt, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	now := m.now()
	attemptID := uuid.New().String()

	// Snapshot every item first. The snapshot carries the authoritative
	// current price, so pricing and snapshotting cannot drift apart.
	items := make([]AttemptItem, len(req.Items))
	lines := make([]charge.Line, len(req.Items))
	subtotal := decimal.Zero
	for i, raw := range req.Items {
		if raw.Quantity <= 0 {
			return nil, errors.Wrapf(ErrInvalidQuantity, "item %d", i)
		}

		snap, err := m.snapshots.Snapshot(ctx, raw)
		if err != nil {
			return nil, err
		}

		unitPrice := snap.UnitPrice()
		qty := decimal.NewFromInt(int64(raw.Quantity))
		total := unitPrice.Mul(qty)

		items[i] = AttemptItem{
			ID:         uuid.New().String(),
			AttemptID:  attemptID,
			Snapshot:   *snap,
			ItemName:   snap.ItemName(),
			UnitPrice:  unitPrice,
			Quantity:   raw.Quantity,
			Total:      total,
			ImageURL:   snap.ImageURL,
			Dedication: raw.Dedication,
		}
		lines[i] = charge.Line{Quantity: raw.Quantity, Amount: unitPrice}
		subtotal = subtotal.Add(total)
	}

	// Coupon validation degrades silently: an invalid code means no
	// discount, never a failed checkout.
	couponRes, err := m.coupons.ValidateAndCalculate(ctx, req.CouponCode, subtotal)
	if err != nil {
		return nil, errors.Wrap(err, "validate coupon")
	}
	discount := decimal.Zero
	var couponID *string
	if couponRes != nil {
		discount = couponRes.Discount
		couponID = &couponRes.Coupon.ID
	}

	totals, err := m.charges.CalculateTotals(ctx, lines, discount)
	if err != nil {
		return nil, errors.Wrap(err, "calculate totals")
	}

	addrSnap, err := m.snapshotAddress(ctx, req.ShippingAddressID, userID)
	if err != nil {
		return nil, err
	}

	charges := make([]AttemptCharge, len(totals.Applied))
	for i, ap := range totals.Applied {
		charges[i] = AttemptCharge{
			ID:        uuid.New().String(),
			AttemptID: attemptID,
			Name:      ap.Name,
			Type:      string(ap.Type),
			Mode:      string(ap.Mode),
			Value:     ap.Value,
			Amount:    ap.Amount,
		}
	}

	currency := req.Currency
	if currency == "" {
		currency = "INR"
	}

	a := &Attempt{
		ID:              attemptID,
		UserID:          userID,
		Reference:       newAttemptReference(now),
		PaymentMethod:   req.PaymentMethod,
		Status:          StatusInitiated,
		Currency:        currency,
		Subtotal:        totals.Subtotal,
		Discount:        totals.Discount,
		Tax:             totals.Tax,
		Shipping:        totals.Shipping,
		Fee:             totals.Fee,
		GrandTotal:      totals.GrandTotal,
		CouponID:        couponID,
		ShippingAddress: addrSnap,
		ExpiresAt:       now.Add(m.ttl),
		CreatedAt:       now,
		Items:           items,
		Charges:         charges,
	}

	if err := m.attempts.Create(ctx, a); err != nil {
		return nil, errors.Wrap(err, "create attempt")
	}

	return a, nil
}

// MarkFailed transitions an attempt to failed, recording the reason on its
// metadata document. The row is kept as an audit trail.
func (m *Manager) MarkFailed(ctx context.Context, attemptID, reason string) error {
	if err := m.attempts.MarkFailed(ctx, attemptID, reason); err != nil {
		return errors.Wrapf(err, "mark attempt %s failed", attemptID)
	}
	return nil
}

// CleanupExpired deletes initiated attempts whose expiry has passed and
// returns the number of rows removed. Safe to run repeatedly and
// concurrently.
func (m *Manager) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := m.attempts.DeleteExpired(ctx, m.now())
	if err != nil {
		return 0, errors.Wrap(err, "delete expired attempts")
	}
	return n, nil
}

func (m *Manager) snapshotAddress(ctx context.Context, addressID, userID string) (*AddressSnapshot, error) {
	if addressID == "" {
		return nil, nil
	}

	addr, err := m.addresses.GetAddress(ctx, addressID, userID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, &InvalidReferenceError{Field: "shipping_address_id", ID: addressID}
		}
		return nil, errors.Wrapf(err, "get address %s", addressID)
	}

	return &AddressSnapshot{
		Name:       addr.Name,
		Phone:      addr.Phone,
		Line1:      addr.Line1,
		Line2:      addr.Line2,
		City:       addr.City,
		State:      addr.State,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
	}, nil
}

// newAttemptReference produces a unique human-readable attempt reference,
// e.g. "CA-20260830-1A2B3C4D".
func newAttemptReference(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return fmt.Sprintf("CA-%s-%s", now.Format("20060102"), suffix)
}
