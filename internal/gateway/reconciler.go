package gateway

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/canopyhq/canopy/internal/domain/checkout"
	"github.com/canopyhq/canopy/internal/domain/order"
)

// AttemptStore is the slice of the attempt repository the reconciler needs.
type AttemptStore interface {
	GetByID(ctx context.Context, id string) (*checkout.Attempt, error)
	MarkFailed(ctx context.Context, id, reason string) error
}

// Converter materializes a confirmed attempt together with its payment.
type Converter interface {
	ConvertToOrderPaid(ctx context.Context, a *checkout.Attempt, p order.PaymentInfo) (*order.Order, error)
}

// Notifier receives fire-and-forget notifications after reconciliation.
type Notifier interface {
	OrderPaid(ctx context.Context, o *order.Order)
}

// Reconciler matches asynchronous gateway webhooks back to their originating
// payment attempts and materializes orders exactly once.
//
// HandleEvent never propagates skip conditions as errors: gateways retry on
// non-2xx responses, and retrying an event we have decided to ignore only
// produces a retry storm. Unprocessable events are logged with enough context
// for manual investigation and swallowed.
type Reconciler struct {
	attempts AttemptStore
	convert  Converter
	notifier Notifier
	now      func() time.Time
}

// NewReconciler creates a Reconciler with the given collaborators.
func NewReconciler(attempts AttemptStore, convert Converter, notifier Notifier) *Reconciler {
	return &Reconciler{
		attempts: attempts,
		convert:  convert,
		notifier: notifier,
		now:      time.Now,
	}
}

// HandleEvent processes one webhook event. Success events materialize the
// attempt (idempotently) and record the payment in the same transaction.
// Recognized failure events transition the attempt to failed for faster user
// feedback; the expiry sweep would reclaim it either way. Intermediate states
// are ignored without side effects.
func (r *Reconciler) HandleEvent(ctx context.Context, ev Event) error {
	lg := zctx.From(ctx).With(
		zap.String("provider", ev.Provider),
		zap.String("merchant_reference", ev.MerchantReference),
	)

	attemptID, err := ParseMerchantReference(ev.MerchantReference)
	if err != nil {
		lg.Warn("Skipping webhook: unparseable merchant reference", zap.Error(err))
		return nil
	}
	lg = lg.With(zap.String("attempt_id", attemptID))

	a, err := r.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, checkout.ErrAttemptNotFound) {
			lg.Warn("Skipping webhook: attempt not found")
			return nil
		}
		return errors.Wrapf(err, "get attempt %s", attemptID)
	}

	// Gateways may deliver the same webhook more than once, and a late
	// failure event can trail a success. An attempt that already points at an
	// order is done; completed is terminal no matter what the event says.
	if a.CreatedOrderID != nil {
		lg.Info("Skipping webhook: attempt already materialized",
			zap.String("order_id", *a.CreatedOrderID),
			zap.String("state", ev.State))
		return nil
	}

	if !ev.Succeeded {
		if !ev.Failed {
			// Intermediate states like pending or authorized are neither a
			// confirmation nor a rejection; the attempt stays viable.
			lg.Info("Skipping webhook: unrecognized payment state",
				zap.String("state", ev.State))
			return nil
		}
		lg.Info("Gateway reported failure, marking attempt failed",
			zap.String("state", ev.State),
			zap.String("error_code", ev.ErrorCode),
		)
		reason := "gateway reported " + ev.State
		if ev.ErrorCode != "" {
			reason += " (" + ev.ErrorCode + ")"
		}
		if err := r.attempts.MarkFailed(ctx, attemptID, reason); err != nil {
			return errors.Wrapf(err, "mark attempt %s failed", attemptID)
		}
		return nil
	}

	o, err := r.convert.ConvertToOrderPaid(ctx, a, order.PaymentInfo{
		Gateway:       ev.Provider,
		TransactionID: ev.TransactionID,
		Amount:        ev.Amount,
		PaidAt:        r.now(),
	})
	if err != nil {
		if errors.Is(err, order.ErrAlreadyMaterialized) {
			// Lost the race against a concurrent delivery. The winner has
			// created the order; nothing left to do.
			lg.Info("Skipping webhook: lost materialization race")
			return nil
		}
		return errors.Wrapf(err, "convert attempt %s", attemptID)
	}

	lg.Info("Attempt materialized into paid order",
		zap.String("order_id", o.ID),
		zap.String("reference_number", o.ReferenceNumber),
		zap.String("transaction_id", ev.TransactionID),
	)

	if r.notifier != nil {
		r.notifier.OrderPaid(ctx, o)
	}
	return nil
}
