package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/canopyhq/canopy/internal/domain/checkout"
	"github.com/canopyhq/canopy/internal/domain/order"
)

type orderResponse struct {
	ID              string                    `json:"id"`
	ReferenceNumber string                    `json:"reference_number"`
	Status          string                    `json:"status"`
	Currency        string                    `json:"currency"`
	Subtotal        decimal.Decimal           `json:"subtotal"`
	Discount        decimal.Decimal           `json:"discount"`
	Tax             decimal.Decimal           `json:"tax"`
	Shipping        decimal.Decimal           `json:"shipping"`
	Fee             decimal.Decimal           `json:"fee"`
	GrandTotal      decimal.Decimal           `json:"grand_total"`
	ShippingAddress *checkout.AddressSnapshot `json:"shipping_address,omitempty"`
	PaidAt          *time.Time                `json:"paid_at,omitempty"`
	CreatedAt       time.Time                 `json:"created_at"`

	Items   []orderItemResponse   `json:"items"`
	Charges []orderChargeResponse `json:"charges"`
}

type orderItemResponse struct {
	Name       string               `json:"name"`
	UnitPrice  decimal.Decimal      `json:"unit_price"`
	Quantity   int                  `json:"quantity"`
	Total      decimal.Decimal      `json:"total"`
	ImageURL   string               `json:"image_url,omitempty"`
	Dedication *checkout.Dedication `json:"dedication,omitempty"`
}

type orderChargeResponse struct {
	Name   string          `json:"name"`
	Type   string          `json:"type"`
	Amount decimal.Decimal `json:"amount"`
}

// GetOrder returns a persisted order with its items and charges. Orders are
// scoped to the requesting user.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		respondError(w, r, http.StatusUnauthorized, "missing X-User-ID header")
		return
	}

	o, err := h.orders.GetByID(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			respondError(w, r, http.StatusNotFound, "order not found")
			return
		}
		zctx.From(ctx).Error("Get order", zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if o.UserID != userID {
		// Do not leak existence of other users' orders.
		respondError(w, r, http.StatusNotFound, "order not found")
		return
	}

	items := make([]orderItemResponse, len(o.Items))
	for i, item := range o.Items {
		items[i] = orderItemResponse{
			Name:       item.ItemName,
			UnitPrice:  item.UnitPrice,
			Quantity:   item.Quantity,
			Total:      item.Total,
			ImageURL:   item.ImageURL,
			Dedication: item.Dedication,
		}
	}
	charges := make([]orderChargeResponse, len(o.Charges))
	for i, ch := range o.Charges {
		charges[i] = orderChargeResponse{Name: ch.Name, Type: ch.Type, Amount: ch.Amount}
	}

	respondJSON(w, r, http.StatusOK, orderResponse{
		ID:              o.ID,
		ReferenceNumber: o.ReferenceNumber,
		Status:          string(o.Status),
		Currency:        o.Currency,
		Subtotal:        o.Subtotal,
		Discount:        o.Discount,
		Tax:             o.Tax,
		Shipping:        o.Shipping,
		Fee:             o.Fee,
		GrandTotal:      o.GrandTotal,
		ShippingAddress: o.ShippingAddress,
		PaidAt:          o.PaidAt,
		CreatedAt:       o.CreatedAt,
		Items:           items,
		Charges:         charges,
	})
}
