package order

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopyhq/canopy/internal/domain/checkout"
)

type mockOrderRepo struct {
	materialized *Order
	attemptID    string
	payment      *Payment
	err          error
	calls        int
}

func (m *mockOrderRepo) Materialize(_ context.Context, o *Order, attemptID string, p *Payment) error {
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.materialized = o
	m.attemptID = attemptID
	m.payment = p
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, _ string) (*Order, error) {
	return nil, ErrNotFound
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, _ string, _, _ Status) error {
	return nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testAttempt() *checkout.Attempt {
	couponID := "coup-1"
	return &checkout.Attempt{
		ID:         "att-1",
		UserID:     "u1",
		Reference:  "CA-20260301-ABCD1234",
		Status:     checkout.StatusInitiated,
		Currency:   "INR",
		Subtotal:   dec("1200"),
		Discount:   dec("120"),
		Tax:        dec("194.40"),
		Shipping:   decimal.Zero,
		Fee:        dec("30"),
		GrandTotal: dec("1304.40"),
		CouponID:   &couponID,
		ShippingAddress: &checkout.AddressSnapshot{
			Name: "Asha Rao", Line1: "12 Lake Rd", City: "Pune",
			PostalCode: "411001", Country: "IN",
		},
		ExpiresAt: time.Now().Add(time.Hour),
		Items: []checkout.AttemptItem{{
			ID:        "ai-1",
			AttemptID: "att-1",
			Snapshot: checkout.ItemSnapshot{
				Type: checkout.ItemSponsor,
				Sponsorship: &checkout.SponsorshipSnapshot{
					TreeID: "t1", TreeName: "Banyan Grove 14",
					PlanID: "plan1", PlanType: "sponsor",
					Duration: 1, DurationUnit: "years", Price: dec("1200"),
				},
			},
			ItemName:   "Banyan Grove 14",
			UnitPrice:  dec("1200"),
			Quantity:   1,
			Total:      dec("1200"),
			ImageURL:   "img/banyan.jpg",
			Dedication: &checkout.Dedication{Name: "Asha"},
		}},
		Charges: []checkout.AttemptCharge{{
			ID: "ac-1", AttemptID: "att-1", Name: "GST",
			Type: "tax", Mode: "percentage", Value: dec("18"), Amount: dec("194.40"),
		}},
	}
}

func TestConvertToOrder_VerbatimCopy(t *testing.T) {
	repo := &mockOrderRepo{}
	m := NewMaterializer(repo)

	o, err := m.ConvertToOrder(context.Background(), testAttempt())
	require.NoError(t, err)

	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, "u1", o.UserID)
	assert.True(t, dec("1200").Equal(o.Subtotal))
	assert.True(t, dec("120").Equal(o.Discount))
	assert.True(t, dec("194.40").Equal(o.Tax))
	assert.True(t, dec("30").Equal(o.Fee))
	assert.True(t, dec("1304.40").Equal(o.GrandTotal))
	require.NotNil(t, o.CouponID)
	assert.Equal(t, "coup-1", *o.CouponID)
	assert.NotEmpty(t, o.ReferenceNumber)
	assert.Nil(t, o.PaidAt)
	assert.Empty(t, o.Payments)

	require.Len(t, o.Items, 1)
	item := o.Items[0]
	assert.Equal(t, "Banyan Grove 14", item.ItemName)
	assert.True(t, dec("1200").Equal(item.UnitPrice))
	assert.Equal(t, 1, item.Quantity)
	assert.Equal(t, "img/banyan.jpg", item.ImageURL)
	require.NotNil(t, item.Dedication)
	assert.Equal(t, "Asha", item.Dedication.Name)
	require.NotNil(t, item.Snapshot.Sponsorship)
	assert.Equal(t, "Banyan Grove 14", item.Snapshot.Sponsorship.TreeName)

	require.Len(t, o.Charges, 1)
	assert.Equal(t, "GST", o.Charges[0].Name)
	assert.True(t, dec("194.40").Equal(o.Charges[0].Amount))

	require.NotNil(t, o.ShippingAddress)
	assert.Equal(t, "Asha Rao", o.ShippingAddress.Name)

	assert.Equal(t, "att-1", repo.attemptID)
	assert.Nil(t, repo.payment)
}

func TestConvertToOrderPaid_RecordsPayment(t *testing.T) {
	repo := &mockOrderRepo{}
	m := NewMaterializer(repo)
	paidAt := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)

	o, err := m.ConvertToOrderPaid(context.Background(), testAttempt(), PaymentInfo{
		Gateway:       "razorpay",
		TransactionID: "pay_ABC123",
		Amount:        dec("1304.40"),
		PaidAt:        paidAt,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusPaid, o.Status)
	require.NotNil(t, o.PaidAt)
	assert.Equal(t, paidAt, *o.PaidAt)

	require.NotNil(t, repo.payment)
	assert.Equal(t, "pay_ABC123", repo.payment.TransactionID)
	assert.Equal(t, "razorpay", repo.payment.Gateway)
	assert.Equal(t, o.ID, repo.payment.OrderID)
	assert.True(t, dec("1304.40").Equal(repo.payment.Amount))
	assert.Equal(t, "INR", repo.payment.Currency)
}

func TestConvertToOrder_AlreadyMaterialized(t *testing.T) {
	repo := &mockOrderRepo{}
	m := NewMaterializer(repo)

	a := testAttempt()
	existing := "ord-42"
	a.CreatedOrderID = &existing

	_, err := m.ConvertToOrder(context.Background(), a)
	require.ErrorIs(t, err, ErrAlreadyMaterialized)
	// Short-circuits before touching the repository.
	assert.Zero(t, repo.calls)
}

func TestConvertToOrder_RepoDetectsRace(t *testing.T) {
	// The repository loses the materialization race under its transaction
	// and reports the sentinel; the caller sees a clean no-op signal.
	repo := &mockOrderRepo{err: ErrAlreadyMaterialized}
	m := NewMaterializer(repo)

	_, err := m.ConvertToOrder(context.Background(), testAttempt())
	require.ErrorIs(t, err, ErrAlreadyMaterialized)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusPaid, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusRefunded, false},
		{StatusPaid, StatusCompleted, true},
		{StatusPaid, StatusRefunded, true},
		{StatusPaid, StatusCancelled, false},
		{StatusCancelled, StatusPaid, false},
		{StatusRefunded, StatusPending, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}
