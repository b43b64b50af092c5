package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/canopyhq/canopy/internal/domain/checkout"
	"github.com/canopyhq/canopy/internal/gateway"
)

// maxCheckoutBody bounds the request body size.
const maxCheckoutBody = 1 << 20

type checkoutRequest struct {
	Items             []checkout.CartItem `json:"items"`
	CouponCode        string              `json:"coupon_code,omitempty"`
	PaymentMethod     string              `json:"payment_method,omitempty"`
	Currency          string              `json:"currency,omitempty"`
	ShippingAddressID string              `json:"shipping_address_id,omitempty"`
}

type checkoutResponse struct {
	Attempt attemptResponse      `json:"attempt"`
	Payment *gateway.RemoteOrder `json:"payment,omitempty"`
}

type attemptResponse struct {
	ID         string          `json:"id"`
	Reference  string          `json:"reference"`
	Status     string          `json:"status"`
	Currency   string          `json:"currency"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Discount   decimal.Decimal `json:"discount"`
	Tax        decimal.Decimal `json:"tax"`
	Shipping   decimal.Decimal `json:"shipping"`
	Fee        decimal.Decimal `json:"fee"`
	GrandTotal decimal.Decimal `json:"grand_total"`
	ExpiresAt  time.Time       `json:"expires_at"`

	Items []attemptItemResponse `json:"items"`
}

type attemptItemResponse struct {
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Total     decimal.Decimal `json:"total"`
	ImageURL  string          `json:"image_url,omitempty"`
}

// CreateCheckout prices the cart, persists a payment attempt, and registers a
// pending order with the payment provider.
func (h *Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		respondError(w, r, http.StatusUnauthorized, "missing X-User-ID header")
		return
	}

	var req checkoutRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCheckoutBody))
	if err := dec.Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "malformed request body")
		return
	}

	attempt, err := h.checkout.CreateAttempt(ctx, checkout.CreateAttemptRequest{
		Items:             req.Items,
		CouponCode:        req.CouponCode,
		PaymentMethod:     req.PaymentMethod,
		Currency:          req.Currency,
		ShippingAddressID: req.ShippingAddressID,
	}, userID)
	if err != nil {
		h.respondCheckoutError(w, r, err)
		return
	}

	remote, err := h.provider.CreateOrder(ctx, gateway.CreateOrderRequest{
		MerchantReference: gateway.NewMerchantReference(attempt.ID),
		Amount:            attempt.GrandTotal,
		Currency:          attempt.Currency,
		Notes: map[string]string{
			"attempt_reference": attempt.Reference,
		},
	})
	if err != nil {
		zctx.From(ctx).Error("Create gateway order",
			zap.String("attempt_id", attempt.ID),
			zap.Error(err),
		)
		if ferr := h.checkout.MarkFailed(ctx, attempt.ID, "gateway order creation failed"); ferr != nil {
			zctx.From(ctx).Error("Mark attempt failed",
				zap.String("attempt_id", attempt.ID),
				zap.Error(ferr),
			)
		}
		respondError(w, r, http.StatusBadGateway, "payment provider unavailable")
		return
	}

	respondJSON(w, r, http.StatusOK, checkoutResponse{
		Attempt: newAttemptResponse(attempt),
		Payment: remote,
	})
}

func (h *Handler) respondCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	var invalidRef *checkout.InvalidReferenceError
	switch {
	case errors.As(err, &invalidRef):
		respondError(w, r, http.StatusUnprocessableEntity, invalidRef.Error())
	case errors.Is(err, checkout.ErrEmptyItems), errors.Is(err, checkout.ErrInvalidQuantity):
		respondError(w, r, http.StatusUnprocessableEntity, err.Error())
	default:
		zctx.From(r.Context()).Error("Create attempt", zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func newAttemptResponse(a *checkout.Attempt) attemptResponse {
	items := make([]attemptItemResponse, len(a.Items))
	for i, item := range a.Items {
		items[i] = attemptItemResponse{
			Name:      item.ItemName,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Total:     item.Total,
			ImageURL:  item.ImageURL,
		}
	}
	return attemptResponse{
		ID:         a.ID,
		Reference:  a.Reference,
		Status:     string(a.Status),
		Currency:   a.Currency,
		Subtotal:   a.Subtotal,
		Discount:   a.Discount,
		Tax:        a.Tax,
		Shipping:   a.Shipping,
		Fee:        a.Fee,
		GrandTotal: a.GrandTotal,
		ExpiresAt:  a.ExpiresAt,
		Items:      items,
	}
}
