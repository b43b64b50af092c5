// Package charge applies configured tax, shipping, and fee rules to a priced
// cart and produces the order totals.
package charge

import (
	"context"

	"github.com/shopspring/decimal"
)

// Type enumerates the supported charge categories.
type Type string

const (
	TypeTax         Type = "tax"
	TypeShipping    Type = "shipping"
	TypeFee         Type = "fee"
	TypeService     Type = "service"
	TypeConvenience Type = "convenience"
)

// Mode enumerates how a charge value is interpreted.
type Mode string

const (
	// ModeFixed treats Value as an absolute amount.
	ModeFixed Mode = "fixed"
	// ModePercentage treats Value as a percentage of the charge base.
	ModePercentage Mode = "percentage"
)

// Rule is a configured charge. Rules are read-only from the pricing flow's
// perspective; they are edited only through the back office.
type Rule struct {
	ID     string
	Name   string
	Type   Type
	Mode   Mode
	Value  decimal.Decimal
	Active bool
}

// Line is a priced cart line for subtotal calculation.
type Line struct {
	Quantity int
	Amount   decimal.Decimal
}

// Applied records a single charge application for audit purposes.
type Applied struct {
	RuleID string
	Name   string
	Type   Type
	Mode   Mode
	Value  decimal.Decimal
	Amount decimal.Decimal
}

// Totals is the full pricing breakdown of an order.
type Totals struct {
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	AfterDiscount decimal.Decimal
	Tax           decimal.Decimal
	Shipping      decimal.Decimal
	Fee           decimal.Decimal
	GrandTotal    decimal.Decimal
	Applied       []Applied
}

// Repository lists the currently active charge rules.
type Repository interface {
	ListActive(ctx context.Context) ([]Rule, error)
}
