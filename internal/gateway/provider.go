// Package gateway abstracts the external payment providers and reconciles
// their asynchronous webhooks back into local orders.
package gateway

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrGateway wraps any non-success response from a remote payment provider.
var ErrGateway = errors.New("payment gateway error")

// CreateOrderRequest is the input for registering a pending payment with a
// remote provider.
type CreateOrderRequest struct {
	MerchantReference string
	Amount            decimal.Decimal
	Currency          string
	Notes             map[string]string
}

// RemoteOrder is the provider's handle for a pending payment, returned to the
// client so it can open the provider's checkout flow.
type RemoteOrder struct {
	Gateway     string          `json:"gateway"`
	OrderID     string          `json:"order_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Token       string          `json:"token,omitempty"`
	RedirectURL string          `json:"redirect_url,omitempty"`
}

// Provider is a remote payment gateway. Implementations make synchronous
// HTTP calls with a bounded timeout; confirmation arrives later via webhook.
type Provider interface {
	Name() string
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*RemoteOrder, error)
}

// Event is the provider-agnostic distillation of a webhook payload: the
// merchant reference identifying the attempt, and how the provider classified
// the payment. Succeeded and Failed are both false for intermediate states
// (pending, authorized), which the reconciler ignores.
type Event struct {
	Provider          string
	MerchantReference string
	TransactionID     string
	Amount            decimal.Decimal
	State             string
	Succeeded         bool
	Failed            bool
	ErrorCode         string
}
