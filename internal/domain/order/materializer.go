package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/canopyhq/canopy/internal/domain/checkout"
)

// PaymentInfo describes a confirmed gateway transaction to record alongside
// materialization.
type PaymentInfo struct {
	Gateway       string
	TransactionID string
	Amount        decimal.Decimal
	PaidAt        time.Time
}

// Materializer converts completed payment attempts into permanent orders.
// It performs no pricing: the attempt's stored numbers are authoritative and
// copied verbatim.
type Materializer struct {
	orders Repository
	now    func() time.Time
}

// NewMaterializer creates a Materializer backed by the given order Repository.
func NewMaterializer(orders Repository) *Materializer {
	return &Materializer{orders: orders, now: time.Now}
}

// ConvertToOrder materializes the attempt into a pending order with no
// payment recorded yet. Synchronous gateways use this and record the payment
// separately.
func (m *Materializer) ConvertToOrder(ctx context.Context, a *checkout.Attempt) (*Order, error) {
	return m.convert(ctx, a, nil)
}

// ConvertToOrderPaid materializes the attempt and records the confirmed
// payment in the same transaction, producing an order already in status paid.
// Asynchronous gateway reconciliation uses this so an order can never exist
// without its payment record or vice versa.
func (m *Materializer) ConvertToOrderPaid(ctx context.Context, a *checkout.Attempt, p PaymentInfo) (*Order, error) {
	return m.convert(ctx, a, &p)
}

func (m *Materializer) convert(ctx context.Context, a *checkout.Attempt, p *PaymentInfo) (*Order, error) {
	// Fast path for the idempotency race: the attempt already carries the
	// order it was converted into. The repository re-checks under the
	// transaction, this only saves the aggregate build.
	if a.CreatedOrderID != nil {
		return nil, ErrAlreadyMaterialized
	}

	now := m.now()
	o := buildOrder(a, now)

	var payment *Payment
	if p != nil {
		paidAt := p.PaidAt
		if paidAt.IsZero() {
			paidAt = now
		}
		o.Status = StatusPaid
		o.PaidAt = &paidAt
		payment = &Payment{
			ID:            uuid.New().String(),
			OrderID:       o.ID,
			Gateway:       p.Gateway,
			TransactionID: p.TransactionID,
			Amount:        p.Amount,
			Currency:      a.Currency,
			Status:        string(StatusPaid),
			PaidAt:        paidAt,
		}
		o.Payments = []Payment{*payment}
	}

	if err := m.orders.Materialize(ctx, o, a.ID, payment); err != nil {
		if errors.Is(err, ErrAlreadyMaterialized) {
			return nil, ErrAlreadyMaterialized
		}
		return nil, errors.Wrapf(err, "materialize attempt %s", a.ID)
	}

	return o, nil
}

// buildOrder copies every monetary and reference field verbatim from the
// attempt. No recomputation happens here.
func buildOrder(a *checkout.Attempt, now time.Time) *Order {
	orderID := uuid.New().String()

	items := make([]Item, len(a.Items))
	for i, ai := range a.Items {
		items[i] = Item{
			ID:         uuid.New().String(),
			OrderID:    orderID,
			Snapshot:   ai.Snapshot,
			ItemName:   ai.ItemName,
			UnitPrice:  ai.UnitPrice,
			Quantity:   ai.Quantity,
			Total:      ai.Total,
			ImageURL:   ai.ImageURL,
			Dedication: ai.Dedication,
		}
	}

	charges := make([]Charge, len(a.Charges))
	for i, ac := range a.Charges {
		charges[i] = Charge{
			ID:      uuid.New().String(),
			OrderID: orderID,
			Name:    ac.Name,
			Type:    ac.Type,
			Mode:    ac.Mode,
			Value:   ac.Value,
			Amount:  ac.Amount,
		}
	}

	return &Order{
		ID:              orderID,
		UserID:          a.UserID,
		ReferenceNumber: newOrderReference(now),
		Status:          StatusPending,
		Currency:        a.Currency,
		Subtotal:        a.Subtotal,
		Discount:        a.Discount,
		Tax:             a.Tax,
		Shipping:        a.Shipping,
		Fee:             a.Fee,
		GrandTotal:      a.GrandTotal,
		CouponID:        a.CouponID,
		ShippingAddress: a.ShippingAddress,
		CreatedAt:       now,
		Items:           items,
		Charges:         charges,
	}
}

// newOrderReference produces a unique human-readable order number,
// e.g. "ORD-20260830-9F3A21BC".
func newOrderReference(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), suffix)
}
