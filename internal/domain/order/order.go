// Package order holds the permanent order aggregate and the materializer
// that creates it from a completed payment attempt.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/canopyhq/canopy/internal/domain/checkout"
)

// Status is the user-facing lifecycle state of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"
	StatusCompleted Status = "completed"
)

var (
	// ErrNotFound is returned when an order id does not resolve.
	ErrNotFound = errors.New("order not found")
	// ErrAlreadyMaterialized is returned when an attempt has already been
	// converted into an order. Callers racing on the same attempt must treat
	// this as a clean no-op signal, not a failure.
	ErrAlreadyMaterialized = errors.New("attempt already materialized")
	// ErrInvalidTransition is returned for a disallowed status change.
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// Order is the permanent record of a purchase. Its monetary fields are copied
// verbatim from the originating attempt and never recomputed.
type Order struct {
	ID              string
	UserID          string
	ReferenceNumber string
	Status          Status
	Currency        string
	Subtotal        decimal.Decimal
	Discount        decimal.Decimal
	Tax             decimal.Decimal
	Shipping        decimal.Decimal
	Fee             decimal.Decimal
	GrandTotal      decimal.Decimal
	CouponID        *string
	ShippingAddress *checkout.AddressSnapshot
	PaidAt          *time.Time
	CreatedAt       time.Time

	Items    []Item
	Charges  []Charge
	Payments []Payment
}

// Item is one purchased line, carrying the frozen snapshot from the attempt.
type Item struct {
	ID         string
	OrderID    string
	Snapshot   checkout.ItemSnapshot
	ItemName   string
	UnitPrice  decimal.Decimal
	Quantity   int
	Total      decimal.Decimal
	ImageURL   string
	Dedication *checkout.Dedication
}

// Charge is one applied charge copied from the attempt.
type Charge struct {
	ID      string
	OrderID string
	Name    string
	Type    string
	Mode    string
	Value   decimal.Decimal
	Amount  decimal.Decimal
}

// Payment is one confirmed gateway transaction against the order.
type Payment struct {
	ID            string
	OrderID       string
	Gateway       string
	TransactionID string
	Amount        decimal.Decimal
	Currency      string
	Status        string
	PaidAt        time.Time
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusPaid || to == StatusCancelled
	case StatusPaid:
		return to == StatusCompleted || to == StatusRefunded
	default:
		return false
	}
}

// Repository persists orders.
//
// Materialize writes the order aggregate, the optional coupon redemption and
// payment row, and flips the source attempt to completed, all in a single
// transaction guarded by the attempt's created_order_id sentinel. When the
// sentinel is already set it returns ErrAlreadyMaterialized and writes
// nothing.
type Repository interface {
	Materialize(ctx context.Context, o *Order, attemptID string, payment *Payment) error
	GetByID(ctx context.Context, id string) (*Order, error)
	UpdateStatus(ctx context.Context, id string, from, to Status) error
}
