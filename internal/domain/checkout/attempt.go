package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a payment attempt.
type Status string

const (
	StatusInitiated  Status = "initiated"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusExpired    Status = "expired"
)

// ErrAttemptNotFound is returned when an attempt id does not resolve.
var ErrAttemptNotFound = errors.New("payment attempt not found")

// Attempt is a provisional, fully-priced checkout awaiting payment
// confirmation. Its monetary fields are frozen at creation; it transitions to
// completed exactly once when materialized into an order, and initiated rows
// past their expiry are swept away.
type Attempt struct {
	ID              string
	UserID          string
	Reference       string
	PaymentMethod   string
	Status          Status
	Currency        string
	Subtotal        decimal.Decimal
	Discount        decimal.Decimal
	Tax             decimal.Decimal
	Shipping        decimal.Decimal
	Fee             decimal.Decimal
	GrandTotal      decimal.Decimal
	CouponID        *string
	ShippingAddress *AddressSnapshot
	Metadata        map[string]any
	ExpiresAt       time.Time
	CreatedOrderID  *string
	CompletedAt     *time.Time
	CreatedAt       time.Time

	Items   []AttemptItem
	Charges []AttemptCharge
}

// AttemptItem is one priced, snapshotted line of an attempt.
type AttemptItem struct {
	ID         string
	AttemptID  string
	Snapshot   ItemSnapshot
	ItemName   string
	UnitPrice  decimal.Decimal
	Quantity   int
	Total      decimal.Decimal
	ImageURL   string
	Dedication *Dedication
}

// AttemptCharge is one applied charge rule recorded on the attempt.
type AttemptCharge struct {
	ID        string
	AttemptID string
	Name      string
	Type      string
	Mode      string
	Value     decimal.Decimal
	Amount    decimal.Decimal
}

// Repository persists payment attempt aggregates.
//
// Create must write the header, items, and charges atomically: a failure in
// any row leaves no partially-priced attempt behind. MarkFailed applies only
// to in-flight attempts; completed, failed, and expired are terminal.
type Repository interface {
	Create(ctx context.Context, a *Attempt) error
	GetByID(ctx context.Context, id string) (*Attempt, error)
	MarkFailed(ctx context.Context, id, reason string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
