// Package handler exposes the checkout API over HTTP: attempt creation,
// gateway webhooks, and order reads.
package handler

import (
	"context"
	"net/http"

	"github.com/canopyhq/canopy/internal/domain/checkout"
	"github.com/canopyhq/canopy/internal/domain/order"
	"github.com/canopyhq/canopy/internal/gateway"
)

// CheckoutService prices carts into payment attempts.
type CheckoutService interface {
	CreateAttempt(ctx context.Context, req checkout.CreateAttemptRequest, userID string) (*checkout.Attempt, error)
	MarkFailed(ctx context.Context, attemptID, reason string) error
}

// EventHandler reconciles gateway webhook events.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev gateway.Event) error
}

// OrderReader loads persisted orders for the read endpoint.
type OrderReader interface {
	GetByID(ctx context.Context, id string) (*order.Order, error)
}

// Handler holds the collaborators behind the HTTP surface.
type Handler struct {
	checkout   CheckoutService
	provider   gateway.Provider
	reconciler EventHandler
	orders     OrderReader
}

// New creates a Handler.
func New(co CheckoutService, provider gateway.Provider, rec EventHandler, orders OrderReader) *Handler {
	return &Handler{
		checkout:   co,
		provider:   provider,
		reconciler: rec,
		orders:     orders,
	}
}

// Register mounts all API routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/checkout", h.CreateCheckout)
	mux.HandleFunc("POST /api/webhooks/{provider}", h.HandleWebhook)
	mux.HandleFunc("GET /api/orders/{id}", h.GetOrder)
}
