package checkout

import (
	"github.com/shopspring/decimal"
)

// ItemSnapshot is the immutable record of what the buyer saw at checkout
// time. It is serialized to JSON and stored alongside the attempt/order item;
// once written it is never re-derived from the live catalog, so historical
// orders keep displaying the product, plan, or campaign exactly as purchased.
//
// Exactly one of the typed sections is populated, matching Type. Unknown item
// types fall back to Raw.
type ItemSnapshot struct {
	Type     ItemType `json:"type"`
	ImageURL string   `json:"image_url,omitempty"`

	Product     *ProductSnapshot     `json:"product,omitempty"`
	Sponsorship *SponsorshipSnapshot `json:"sponsorship,omitempty"`
	Adoption    *AdoptionSnapshot    `json:"adoption,omitempty"`
	Campaign    *CampaignSnapshot    `json:"campaign,omitempty"`

	Raw map[string]any `json:"raw_data,omitempty"`
}

// ProductSnapshot freezes a product variant's identity and prices.
type ProductSnapshot struct {
	ProductID     string          `json:"product_id"`
	ProductName   string          `json:"product_name"`
	VariantID     string          `json:"variant_id"`
	VariantName   string          `json:"variant_name"`
	SKU           string          `json:"sku"`
	Category      string          `json:"category,omitempty"`
	OriginalPrice decimal.Decimal `json:"original_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
}

// SponsorshipSnapshot freezes the tree and plan facts of a sponsorship.
type SponsorshipSnapshot struct {
	TreeID       string          `json:"tree_id"`
	TreeName     string          `json:"tree_name"`
	TreeSpecies  string          `json:"tree_species,omitempty"`
	PlanID       string          `json:"plan_id"`
	PlanType     string          `json:"plan_type"`
	Duration     int             `json:"duration"`
	DurationUnit string          `json:"duration_unit"`
	Price        decimal.Decimal `json:"price"`
	LocationName string          `json:"location_name,omitempty"`
}

// AdoptionSnapshot freezes both the adopted tree instance and its plan.
type AdoptionSnapshot struct {
	TreeInstanceID string          `json:"tree_instance_id"`
	TreeID         string          `json:"tree_id"`
	TreeName       string          `json:"tree_name"`
	TreeSpecies    string          `json:"tree_species,omitempty"`
	AgeYears       int             `json:"age_years"`
	LocationName   string          `json:"location_name,omitempty"`
	PlanID         string          `json:"plan_id"`
	PlanType       string          `json:"plan_type"`
	Duration       int             `json:"duration"`
	DurationUnit   string          `json:"duration_unit"`
	Price          decimal.Decimal `json:"price"`
}

// CampaignSnapshot freezes a campaign's identity and the donor's amount.
type CampaignSnapshot struct {
	CampaignID   string          `json:"campaign_id"`
	Name         string          `json:"name"`
	TargetAmount decimal.Decimal `json:"target_amount"`
	LocationName string          `json:"location_name,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
}

// ItemName projects the flat display name stored alongside the snapshot, so
// listings never have to re-parse the document.
func (s *ItemSnapshot) ItemName() string {
	switch s.Type {
	case ItemProduct:
		if s.Product == nil {
			return ""
		}
		if s.Product.VariantName != "" && s.Product.VariantName != s.Product.ProductName {
			return s.Product.ProductName + " - " + s.Product.VariantName
		}
		return s.Product.ProductName
	case ItemSponsor:
		if s.Sponsorship == nil {
			return ""
		}
		return s.Sponsorship.TreeName
	case ItemAdopt:
		if s.Adoption == nil {
			return ""
		}
		return s.Adoption.TreeName
	case ItemCampaign:
		if s.Campaign == nil {
			return ""
		}
		return s.Campaign.Name
	default:
		if name, ok := s.Raw["name"].(string); ok {
			return name
		}
		return string(s.Type)
	}
}

// UnitPrice projects the authoritative unit price captured in the snapshot.
func (s *ItemSnapshot) UnitPrice() decimal.Decimal {
	switch s.Type {
	case ItemProduct:
		if s.Product == nil {
			return decimal.Zero
		}
		return s.Product.SellingPrice
	case ItemSponsor:
		if s.Sponsorship == nil {
			return decimal.Zero
		}
		return s.Sponsorship.Price
	case ItemAdopt:
		if s.Adoption == nil {
			return decimal.Zero
		}
		return s.Adoption.Price
	case ItemCampaign:
		if s.Campaign == nil {
			return decimal.Zero
		}
		return s.Campaign.Amount
	default:
		return decimal.Zero
	}
}

// AddressSnapshot freezes a shipping address as it existed at checkout, so a
// later edit or deletion of the stored address cannot change the order.
type AddressSnapshot struct {
	Name       string `json:"name"`
	Phone      string `json:"phone,omitempty"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}
