// Package checkout implements the order pricing pipeline: hydrating cart
// items into point-in-time snapshots, validating coupons, applying charge
// rules, and persisting the result as a provisional payment attempt.
package checkout

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// ItemType discriminates the cart item union.
type ItemType string

const (
	ItemProduct  ItemType = "product"
	ItemSponsor  ItemType = "sponsor"
	ItemAdopt    ItemType = "adopt"
	ItemCampaign ItemType = "campaign"
)

// Dedication is optional free-text attached to a sponsorship or adoption.
type Dedication struct {
	Name     string `json:"name"`
	Occasion string `json:"occasion,omitempty"`
	Message  string `json:"message,omitempty"`
}

// CartItem is a transient request line: a type tag plus the foreign keys the
// type requires. It carries no prices except for campaign donations, where
// the donor chooses the amount.
type CartItem struct {
	Type     ItemType `json:"type"`
	Quantity int      `json:"quantity"`

	VariantID      string `json:"product_variant_id,omitempty"`
	PlanPriceID    string `json:"plan_price_id,omitempty"`
	TreeInstanceID string `json:"tree_instance_id,omitempty"`
	CampaignID     string `json:"campaign_id,omitempty"`

	// Amount is the donor-chosen contribution for campaign items.
	Amount decimal.Decimal `json:"amount,omitempty"`

	Dedication *Dedication `json:"dedication,omitempty"`

	// Raw preserves unrecognized payload fields for forward-compatible
	// snapshots of unknown item types. Populated by UnmarshalJSON, never
	// serialized back.
	Raw map[string]any `json:"-"`
}

// knownItemFields are the payload keys bound to typed CartItem fields; they
// are excluded from Raw.
var knownItemFields = map[string]struct{}{
	"type":               {},
	"quantity":           {},
	"product_variant_id": {},
	"plan_price_id":      {},
	"tree_instance_id":   {},
	"campaign_id":        {},
	"amount":             {},
	"dedication":         {},
}

// UnmarshalJSON decodes the typed fields and keeps any leftover keys in Raw,
// so an item type this version does not know still reaches the snapshotter
// with its payload intact.
func (c *CartItem) UnmarshalJSON(data []byte) error {
	type plain CartItem
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = CartItem(p)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	for k := range knownItemFields {
		delete(fields, k)
	}
	if len(fields) == 0 {
		return nil
	}

	c.Raw = make(map[string]any, len(fields))
	for k, v := range fields {
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return err
		}
		c.Raw[k] = val
	}
	return nil
}
