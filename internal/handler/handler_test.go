package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopyhq/canopy/internal/domain/checkout"
	"github.com/canopyhq/canopy/internal/domain/order"
	"github.com/canopyhq/canopy/internal/gateway"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type mockCheckout struct {
	attempt    *checkout.Attempt
	createErr  error
	gotReq     checkout.CreateAttemptRequest
	failedID   string
	failReason string
}

func (m *mockCheckout) CreateAttempt(_ context.Context, req checkout.CreateAttemptRequest, _ string) (*checkout.Attempt, error) {
	m.gotReq = req
	if m.createErr != nil {
		return nil, m.createErr
	}
	return m.attempt, nil
}

func (m *mockCheckout) MarkFailed(_ context.Context, attemptID, reason string) error {
	m.failedID = attemptID
	m.failReason = reason
	return nil
}

type mockProvider struct {
	remote *gateway.RemoteOrder
	err    error
	gotReq gateway.CreateOrderRequest
}

func (m *mockProvider) Name() string { return "testpay" }

func (m *mockProvider) CreateOrder(_ context.Context, req gateway.CreateOrderRequest) (*gateway.RemoteOrder, error) {
	m.gotReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.remote, nil
}

type mockReconciler struct {
	got *gateway.Event
	err error
}

func (m *mockReconciler) HandleEvent(_ context.Context, ev gateway.Event) error {
	m.got = &ev
	return m.err
}

type mockOrders struct {
	order *order.Order
	err   error
}

func (m *mockOrders) GetByID(_ context.Context, _ string) (*order.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.order, nil
}

func testAttempt() *checkout.Attempt {
	return &checkout.Attempt{
		ID:         "att-1",
		UserID:     "user-1",
		Reference:  "CA-20260830-AAAA1111",
		Status:     checkout.StatusInitiated,
		Currency:   "INR",
		Subtotal:   dec("500"),
		Tax:        dec("90"),
		GrandTotal: dec("590"),
		ExpiresAt:  time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC),
		Items: []checkout.AttemptItem{
			{ItemName: "Neem Sapling - 2ft", UnitPrice: dec("250"), Quantity: 2, Total: dec("500")},
		},
	}
}

func serve(h *Handler, req *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	h.Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestCreateCheckout(t *testing.T) {
	body := `{"items":[{"type":"product","product_variant_id":"v1","quantity":2}]}`

	t.Run("success", func(t *testing.T) {
		co := &mockCheckout{attempt: testAttempt()}
		prov := &mockProvider{remote: &gateway.RemoteOrder{
			Gateway:  "testpay",
			OrderID:  "rp_order_1",
			Amount:   dec("590"),
			Currency: "INR",
		}}
		h := New(co, prov, &mockReconciler{}, &mockOrders{})

		req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(body))
		req.Header.Set("X-User-ID", "user-1")
		rec := serve(h, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp checkoutResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "att-1", resp.Attempt.ID)
		assert.True(t, resp.Attempt.GrandTotal.Equal(dec("590")))
		require.NotNil(t, resp.Payment)
		assert.Equal(t, "rp_order_1", resp.Payment.OrderID)

		assert.True(t, strings.HasPrefix(prov.gotReq.MerchantReference, "CNPY-att-1-"))
		assert.True(t, prov.gotReq.Amount.Equal(dec("590")))
	})

	t.Run("missing user header", func(t *testing.T) {
		h := New(&mockCheckout{}, &mockProvider{}, &mockReconciler{}, &mockOrders{})

		req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(body))
		rec := serve(h, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		h := New(&mockCheckout{}, &mockProvider{}, &mockReconciler{}, &mockOrders{})

		req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader("{not json"))
		req.Header.Set("X-User-ID", "user-1")
		rec := serve(h, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid reference", func(t *testing.T) {
		co := &mockCheckout{createErr: &checkout.InvalidReferenceError{
			ItemType: checkout.ItemProduct, Field: "product_variant_id", ID: "missing",
		}}
		h := New(co, &mockProvider{}, &mockReconciler{}, &mockOrders{})

		req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(body))
		req.Header.Set("X-User-ID", "user-1")
		rec := serve(h, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("empty items", func(t *testing.T) {
		co := &mockCheckout{createErr: checkout.ErrEmptyItems}
		h := New(co, &mockProvider{}, &mockReconciler{}, &mockOrders{})

		req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(`{"items":[]}`))
		req.Header.Set("X-User-ID", "user-1")
		rec := serve(h, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("unknown item type carries raw fields", func(t *testing.T) {
		co := &mockCheckout{attempt: testAttempt()}
		prov := &mockProvider{remote: &gateway.RemoteOrder{Gateway: "testpay", OrderID: "rp_order_2"}}
		h := New(co, prov, &mockReconciler{}, &mockOrders{})

		raw := `{"items":[{"type":"gift_card","quantity":1,"name":"Gift Card","value":500}]}`
		req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(raw))
		req.Header.Set("X-User-ID", "user-1")
		rec := serve(h, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, co.gotReq.Items, 1)
		assert.Equal(t, checkout.ItemType("gift_card"), co.gotReq.Items[0].Type)
		assert.Equal(t, "Gift Card", co.gotReq.Items[0].Raw["name"])
	})

	t.Run("gateway failure marks attempt failed", func(t *testing.T) {
		co := &mockCheckout{attempt: testAttempt()}
		prov := &mockProvider{err: errors.Wrap(gateway.ErrGateway, "boom")}
		h := New(co, prov, &mockReconciler{}, &mockOrders{})

		req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(body))
		req.Header.Set("X-User-ID", "user-1")
		rec := serve(h, req)

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "att-1", co.failedID)
	})
}

func TestHandleWebhook(t *testing.T) {
	t.Run("captured event reaches reconciler", func(t *testing.T) {
		rc := &mockReconciler{}
		h := New(&mockCheckout{}, &mockProvider{}, rc, &mockOrders{})

		body := `{"event":"payment.captured","transaction_id":"pay_1",
			"merchant_reference":"CNPY-att-1-AB12CD","amount":59000,
			"currency":"INR","status":"captured"}`
		req := httptest.NewRequest(http.MethodPost, "/api/webhooks/testpay", strings.NewReader(body))
		rec := serve(h, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, rc.got)
		assert.Equal(t, "testpay", rc.got.Provider)
		assert.Equal(t, "pay_1", rc.got.TransactionID)
		assert.True(t, rc.got.Succeeded)
		assert.True(t, rc.got.Amount.Equal(dec("590")), "amount converted from smallest unit, got %s", rc.got.Amount)
	})

	t.Run("failed event is not marked succeeded", func(t *testing.T) {
		rc := &mockReconciler{}
		h := New(&mockCheckout{}, &mockProvider{}, rc, &mockOrders{})

		body := `{"merchant_reference":"CNPY-att-1-AB12CD","status":"failed","error_code":"card_declined"}`
		req := httptest.NewRequest(http.MethodPost, "/api/webhooks/testpay", strings.NewReader(body))
		rec := serve(h, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, rc.got)
		assert.False(t, rc.got.Succeeded)
		assert.True(t, rc.got.Failed)
		assert.Equal(t, "card_declined", rc.got.ErrorCode)
	})

	t.Run("pending event is neither success nor failure", func(t *testing.T) {
		rc := &mockReconciler{}
		h := New(&mockCheckout{}, &mockProvider{}, rc, &mockOrders{})

		body := `{"merchant_reference":"CNPY-att-1-AB12CD","status":"pending"}`
		req := httptest.NewRequest(http.MethodPost, "/api/webhooks/testpay", strings.NewReader(body))
		rec := serve(h, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, rc.got)
		assert.False(t, rc.got.Succeeded)
		assert.False(t, rc.got.Failed)
	})

	t.Run("malformed body", func(t *testing.T) {
		h := New(&mockCheckout{}, &mockProvider{}, &mockReconciler{}, &mockOrders{})

		req := httptest.NewRequest(http.MethodPost, "/api/webhooks/testpay", strings.NewReader("not json"))
		rec := serve(h, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("reconciler infrastructure error asks for retry", func(t *testing.T) {
		rc := &mockReconciler{err: errors.New("db down")}
		h := New(&mockCheckout{}, &mockProvider{}, rc, &mockOrders{})

		body := `{"merchant_reference":"CNPY-att-1-AB12CD","status":"captured"}`
		req := httptest.NewRequest(http.MethodPost, "/api/webhooks/testpay", strings.NewReader(body))
		rec := serve(h, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestGetOrder(t *testing.T) {
	paid := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	stored := &order.Order{
		ID:              "ord-1",
		UserID:          "user-1",
		ReferenceNumber: "ORD-20260830-AB12",
		Status:          order.StatusPaid,
		Currency:        "INR",
		Subtotal:        dec("500"),
		Tax:             dec("90"),
		GrandTotal:      dec("590"),
		PaidAt:          &paid,
		Items: []order.Item{
			{ItemName: "Neem Sapling - 2ft", UnitPrice: dec("250"), Quantity: 2, Total: dec("500")},
		},
		Charges: []order.Charge{
			{Name: "GST", Type: "tax", Amount: dec("90")},
		},
	}

	t.Run("found", func(t *testing.T) {
		h := New(&mockCheckout{}, &mockProvider{}, &mockReconciler{}, &mockOrders{order: stored})

		req := httptest.NewRequest(http.MethodGet, "/api/orders/ord-1", nil)
		req.Header.Set("X-User-ID", "user-1")
		rec := serve(h, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp orderResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "ord-1", resp.ID)
		assert.Equal(t, "paid", resp.Status)
		require.Len(t, resp.Items, 1)
		assert.Equal(t, 2, resp.Items[0].Quantity)
		require.Len(t, resp.Charges, 1)
		assert.True(t, resp.Charges[0].Amount.Equal(dec("90")))
	})

	t.Run("not found", func(t *testing.T) {
		h := New(&mockCheckout{}, &mockProvider{}, &mockReconciler{}, &mockOrders{err: order.ErrNotFound})

		req := httptest.NewRequest(http.MethodGet, "/api/orders/missing", nil)
		req.Header.Set("X-User-ID", "user-1")
		rec := serve(h, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("other user's order is hidden", func(t *testing.T) {
		h := New(&mockCheckout{}, &mockProvider{}, &mockReconciler{}, &mockOrders{order: stored})

		req := httptest.NewRequest(http.MethodGet, "/api/orders/ord-1", nil)
		req.Header.Set("X-User-ID", "someone-else")
		rec := serve(h, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
