package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Validator validates a coupon code against an order subtotal and returns the
// computed discount.
//
// A rejected coupon is not an error: an expired or disabled code degrades to
// "no discount" (nil Result, nil error) so a bad code never blocks checkout.
// Only infrastructure failures surface as errors.
type Validator interface {
	ValidateAndCalculate(ctx context.Context, code string, subtotal decimal.Decimal) (*Result, error)
}

// RepoValidator implements Validator by looking up coupon rules from a
// Repository. Validation never mutates coupon state, so it is safe to call
// any number of times for the same attempt; redemption is recorded separately
// when the owning order is materialized.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// ValidateAndCalculate resolves the code, checks eligibility, and computes
// the discount against subtotal. It returns (nil, nil) for an empty code or
// any ineligible coupon.
func (v *RepoValidator) ValidateAndCalculate(ctx context.Context, code string, subtotal decimal.Decimal) (*Result, error) {
	if code == "" {
		return nil, nil
	}

	rule, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if !v.eligible(rule) {
		return nil, nil
	}

	return &Result{
		Coupon:   rule,
		Discount: Calculate(rule, subtotal),
	}, nil
}

func (v *RepoValidator) eligible(rule *Rule) bool {
	if !rule.Enabled {
		return false
	}
	if rule.ExpiresAt != nil && v.now().After(*rule.ExpiresAt) {
		return false
	}
	if rule.Quantity != nil && *rule.Quantity <= 0 {
		return false
	}
	if rule.UsageLimit != nil && rule.Redemptions >= *rule.UsageLimit {
		return false
	}
	return true
}

// Calculate computes the discount a rule yields against the subtotal:
// percentage rules take subtotal*value/100, fixed rules take the value
// verbatim. The result is clamped to MaxDiscount when set, floored at zero,
// and rounded to 2 decimal places.
func Calculate(rule *Rule, subtotal decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch rule.Type {
	case TypePercentage:
		amount = subtotal.Mul(rule.Value).Div(hundred)
	case TypeFixed:
		amount = rule.Value
	default:
		return decimal.Zero
	}

	if rule.MaxDiscount != nil {
		amount = decimal.Min(amount, *rule.MaxDiscount)
	}
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return amount.Round(2)
}
