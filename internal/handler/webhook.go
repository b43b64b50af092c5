package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/canopyhq/canopy/internal/gateway"
)

// webhookEnvelope is the provider-agnostic webhook body. Amount arrives in
// the currency's smallest unit, as providers send it.
type webhookEnvelope struct {
	Event             string `json:"event"`
	TransactionID     string `json:"transaction_id"`
	MerchantReference string `json:"merchant_reference"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	Status            string `json:"status"`
	ErrorCode         string `json:"error_code,omitempty"`
}

// successStates are the provider payment states treated as a confirmed
// payment.
var successStates = map[string]bool{
	"captured": true,
	"paid":     true,
	"success":  true,
}

// failureStates are the provider payment states treated as a definitive
// rejection. Anything in neither set (pending, authorized) is an intermediate
// state the reconciler must not act on.
var failureStates = map[string]bool{
	"failed":    true,
	"failure":   true,
	"declined":  true,
	"cancelled": true,
	"voided":    true,
	"error":     true,
}

// HandleWebhook ingests an asynchronous payment notification. Once the body
// has been read and decoded the endpoint always acknowledges with 200, even
// for events it cannot match, so the provider does not retry forever.
// Transient infrastructure failures return 500 to request a retry.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	providerName := r.PathValue("provider")

	var env webhookEnvelope
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCheckoutBody))
	if err := dec.Decode(&env); err != nil {
		respondError(w, r, http.StatusBadRequest, "malformed webhook body")
		return
	}

	state := strings.ToLower(env.Status)
	ev := gateway.Event{
		Provider:          providerName,
		MerchantReference: env.MerchantReference,
		TransactionID:     env.TransactionID,
		Amount:            decimal.NewFromInt(env.Amount).Div(decimal.NewFromInt(100)),
		State:             state,
		Succeeded:         successStates[state],
		Failed:            failureStates[state],
		ErrorCode:         env.ErrorCode,
	}

	if err := h.reconciler.HandleEvent(ctx, ev); err != nil {
		zctx.From(ctx).Error("Reconcile webhook event",
			zap.String("provider", providerName),
			zap.String("merchant_reference", env.MerchantReference),
			zap.Error(err),
		)
		respondError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
