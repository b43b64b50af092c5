package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates the supported coupon discount strategies.
type Type string

const (
	// TypePercentage applies a percentage of the subtotal.
	TypePercentage Type = "percentage"
	// TypeFixed applies a fixed monetary amount.
	TypeFixed Type = "fixed"
)

// ErrNotFound is returned by repositories when no coupon matches a code.
var ErrNotFound = errors.New("coupon not found")

// Rule defines a coupon's discount behaviour and eligibility constraints.
type Rule struct {
	ID          string
	Code        string
	Type        Type
	Value       decimal.Decimal
	MaxDiscount *decimal.Decimal
	Quantity    *int
	UsageLimit  *int
	Redemptions int
	ExpiresAt   *time.Time
	Enabled     bool
}

// Result holds the outcome of a successful coupon validation: the matched
// rule and the discount it yields against the given subtotal.
type Result struct {
	Coupon   *Rule
	Discount decimal.Decimal
}

// Repository provides lookup of coupon rules. FindByCode must report the
// rule's current redemption count so eligibility can be checked without a
// second query. Redemptions themselves are recorded inside the order
// materialization transaction, never during validation.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Rule, error)
}
