package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopyhq/canopy/internal/domain/checkout"
	"github.com/canopyhq/canopy/internal/domain/order"
)

type mockAttemptStore struct {
	attempts  map[string]*checkout.Attempt
	getErr    error
	failedID  string
	failedMsg string
}

func (m *mockAttemptStore) GetByID(_ context.Context, id string) (*checkout.Attempt, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if a, ok := m.attempts[id]; ok {
		return a, nil
	}
	return nil, checkout.ErrAttemptNotFound
}

func (m *mockAttemptStore) MarkFailed(_ context.Context, id, reason string) error {
	m.failedID = id
	m.failedMsg = reason
	return nil
}

type mockConverter struct {
	order *order.Order
	err   error
	calls int
	last  order.PaymentInfo
}

func (m *mockConverter) ConvertToOrderPaid(_ context.Context, _ *checkout.Attempt, p order.PaymentInfo) (*order.Order, error) {
	m.calls++
	m.last = p
	return m.order, m.err
}

type mockNotifier struct {
	paid []*order.Order
}

func (m *mockNotifier) OrderPaid(_ context.Context, o *order.Order) {
	m.paid = append(m.paid, o)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func successEvent(attemptID string) Event {
	return Event{
		Provider:          "razorpay",
		MerchantReference: NewMerchantReference(attemptID),
		TransactionID:     "pay_XYZ",
		Amount:            dec("590"),
		State:             "completed",
		Succeeded:         true,
	}
}

func TestHandleEvent_Success(t *testing.T) {
	attemptID := uuid.New().String()
	store := &mockAttemptStore{attempts: map[string]*checkout.Attempt{
		attemptID: {ID: attemptID, Status: checkout.StatusInitiated, Currency: "INR"},
	}}
	conv := &mockConverter{order: &order.Order{ID: "ord-1", ReferenceNumber: "ORD-X", Status: order.StatusPaid}}
	notif := &mockNotifier{}

	r := NewReconciler(store, conv, notif)
	r.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	require.NoError(t, r.HandleEvent(context.Background(), successEvent(attemptID)))

	assert.Equal(t, 1, conv.calls)
	assert.Equal(t, "razorpay", conv.last.Gateway)
	assert.Equal(t, "pay_XYZ", conv.last.TransactionID)
	require.Len(t, notif.paid, 1)
	assert.Equal(t, "ord-1", notif.paid[0].ID)
}

func TestHandleEvent_AlreadyMaterialized(t *testing.T) {
	// A webhook for an attempt already bearing a created order id performs
	// no new order creation and acknowledges cleanly.
	attemptID := uuid.New().String()
	orderID := "ord-42"
	store := &mockAttemptStore{attempts: map[string]*checkout.Attempt{
		attemptID: {ID: attemptID, Status: checkout.StatusCompleted, CreatedOrderID: &orderID},
	}}
	conv := &mockConverter{}

	r := NewReconciler(store, conv, &mockNotifier{})

	require.NoError(t, r.HandleEvent(context.Background(), successEvent(attemptID)))
	assert.Zero(t, conv.calls)
}

func TestHandleEvent_LostRace(t *testing.T) {
	// Two concurrent deliveries: the loser's conversion reports the sentinel
	// under the transaction and must exit cleanly.
	attemptID := uuid.New().String()
	store := &mockAttemptStore{attempts: map[string]*checkout.Attempt{
		attemptID: {ID: attemptID, Status: checkout.StatusInitiated},
	}}
	conv := &mockConverter{err: order.ErrAlreadyMaterialized}
	notif := &mockNotifier{}

	r := NewReconciler(store, conv, notif)

	require.NoError(t, r.HandleEvent(context.Background(), successEvent(attemptID)))
	assert.Empty(t, notif.paid)
}

func TestHandleEvent_UnparseableReference(t *testing.T) {
	store := &mockAttemptStore{}
	conv := &mockConverter{}
	r := NewReconciler(store, conv, &mockNotifier{})

	ev := successEvent(uuid.New().String())
	ev.MerchantReference = "garbage"

	require.NoError(t, r.HandleEvent(context.Background(), ev))
	assert.Zero(t, conv.calls)
}

func TestHandleEvent_AttemptNotFound(t *testing.T) {
	store := &mockAttemptStore{attempts: map[string]*checkout.Attempt{}}
	conv := &mockConverter{}
	r := NewReconciler(store, conv, &mockNotifier{})

	require.NoError(t, r.HandleEvent(context.Background(), successEvent(uuid.New().String())))
	assert.Zero(t, conv.calls)
}

func TestHandleEvent_GatewayFailure(t *testing.T) {
	attemptID := uuid.New().String()
	store := &mockAttemptStore{attempts: map[string]*checkout.Attempt{
		attemptID: {ID: attemptID, Status: checkout.StatusInitiated},
	}}
	conv := &mockConverter{}
	r := NewReconciler(store, conv, &mockNotifier{})

	ev := successEvent(attemptID)
	ev.Succeeded = false
	ev.Failed = true
	ev.State = "failed"
	ev.ErrorCode = "PAYMENT_DECLINED"

	require.NoError(t, r.HandleEvent(context.Background(), ev))
	assert.Zero(t, conv.calls)
	assert.Equal(t, attemptID, store.failedID)
	assert.Contains(t, store.failedMsg, "PAYMENT_DECLINED")
}

func TestHandleEvent_FailureAfterMaterialization(t *testing.T) {
	// A late or re-delivered failure webhook for an attempt that already has
	// its order must not touch the attempt: completed is terminal.
	attemptID := uuid.New().String()
	orderID := "ord-42"
	store := &mockAttemptStore{attempts: map[string]*checkout.Attempt{
		attemptID: {ID: attemptID, Status: checkout.StatusCompleted, CreatedOrderID: &orderID},
	}}
	conv := &mockConverter{}
	r := NewReconciler(store, conv, &mockNotifier{})

	ev := successEvent(attemptID)
	ev.Succeeded = false
	ev.Failed = true
	ev.State = "failed"
	ev.ErrorCode = "BAD_CARD"

	require.NoError(t, r.HandleEvent(context.Background(), ev))
	assert.Zero(t, conv.calls)
	assert.Empty(t, store.failedID, "completed attempt must not be marked failed")
}

func TestHandleEvent_IntermediateState(t *testing.T) {
	// Pending is neither success nor failure; the attempt stays viable.
	attemptID := uuid.New().String()
	store := &mockAttemptStore{attempts: map[string]*checkout.Attempt{
		attemptID: {ID: attemptID, Status: checkout.StatusInitiated},
	}}
	conv := &mockConverter{}
	r := NewReconciler(store, conv, &mockNotifier{})

	ev := successEvent(attemptID)
	ev.Succeeded = false
	ev.State = "pending"

	require.NoError(t, r.HandleEvent(context.Background(), ev))
	assert.Zero(t, conv.calls)
	assert.Empty(t, store.failedID)
}

func TestHandleEvent_StoreError(t *testing.T) {
	// Infrastructure failures are not skip conditions; they surface so the
	// caller can decide how to respond (the HTTP layer still acknowledges).
	store := &mockAttemptStore{getErr: errors.New("db down")}
	r := NewReconciler(store, &mockConverter{}, &mockNotifier{})

	err := r.HandleEvent(context.Background(), successEvent(uuid.New().String()))
	require.Error(t, err)
}
