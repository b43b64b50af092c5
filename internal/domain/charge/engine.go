package charge

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Calculator computes order totals from priced lines and a discount.
type Calculator interface {
	CalculateTotals(ctx context.Context, items []Line, discount decimal.Decimal) (*Totals, error)
}

// Engine implements Calculator against the configured charge rules. Each
// invocation re-reads the rule set, so a configuration change takes effect on
// the next attempt while already-priced attempts stay frozen by their stored
// totals.
type Engine struct {
	rules Repository
}

// NewEngine creates an Engine backed by the given rule Repository.
func NewEngine(rules Repository) *Engine {
	return &Engine{rules: rules}
}

// CalculateTotals sums the lines into a subtotal, applies the discount, and
// then applies every active charge rule exactly once.
//
// Tax charges are computed on the post-discount subtotal; every other charge
// type is computed on the gross subtotal. The asymmetry is deliberate:
// shipping and fees are owed on what was shipped/processed, not on what was
// discounted.
func (e *Engine) CalculateTotals(ctx context.Context, items []Line, discount decimal.Decimal) (*Totals, error) {
	subtotal := decimal.Zero
	for _, line := range items {
		qty := decimal.NewFromInt(int64(line.Quantity))
		subtotal = subtotal.Add(line.Amount.Mul(qty))
	}

	if discount.IsNegative() {
		discount = decimal.Zero
	}
	afterDiscount := subtotal.Sub(discount)
	if afterDiscount.IsNegative() {
		afterDiscount = decimal.Zero
	}

	rules, err := e.rules.ListActive(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list active charges")
	}

	totals := &Totals{
		Subtotal:      subtotal.Round(2),
		Discount:      discount.Round(2),
		AfterDiscount: afterDiscount.Round(2),
		Tax:           decimal.Zero,
		Shipping:      decimal.Zero,
		Fee:           decimal.Zero,
		Applied:       make([]Applied, 0, len(rules)),
	}

	for _, rule := range rules {
		base := subtotal
		if rule.Type == TypeTax {
			base = afterDiscount
		}

		var amount decimal.Decimal
		switch rule.Mode {
		case ModePercentage:
			amount = base.Mul(rule.Value).Div(hundred)
		case ModeFixed:
			amount = rule.Value
		default:
			return nil, errors.Errorf("unsupported charge mode: %q", rule.Mode)
		}
		amount = amount.Round(2)

		switch rule.Type {
		case TypeTax:
			totals.Tax = totals.Tax.Add(amount)
		case TypeShipping:
			totals.Shipping = totals.Shipping.Add(amount)
		case TypeFee:
			totals.Fee = totals.Fee.Add(amount)
		}
		// Other charge types contribute to no bucket but stay on the audit
		// trail.
		totals.Applied = append(totals.Applied, Applied{
			RuleID: rule.ID,
			Name:   rule.Name,
			Type:   rule.Type,
			Mode:   rule.Mode,
			Value:  rule.Value,
			Amount: amount,
		})
	}

	totals.GrandTotal = totals.AfterDiscount.
		Add(totals.Tax).
		Add(totals.Shipping).
		Add(totals.Fee).
		Round(2)

	return totals, nil
}
