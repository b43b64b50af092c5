// Package catalog defines the read models the checkout flow resolves cart
// item references against: product variants, sponsorship plan prices,
// adoptable tree instances, donation campaigns, and shipping addresses.
package catalog

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a catalog reference does not resolve.
var ErrNotFound = errors.New("catalog entity not found")

// Variant is a purchasable product variant joined with its parent product, so
// a single lookup yields everything a snapshot needs.
type Variant struct {
	ID            string
	SKU           string
	Name          string
	ProductID     string
	ProductName   string
	Category      string
	OriginalPrice decimal.Decimal
	SellingPrice  decimal.Decimal
	ImageURL      string
}

// PlanPrice is a sponsorship plan price resolved down to the tree the plan
// belongs to.
type PlanPrice struct {
	ID           string
	PlanID       string
	PlanType     string
	Duration     int
	DurationUnit string
	Price        decimal.Decimal
	TreeID       string
	TreeName     string
	TreeSpecies  string
	LocationName string
	ImageURL     string
}

// TreeInstance is a specific adoptable tree together with its tree facts.
type TreeInstance struct {
	ID           string
	TreeID       string
	TreeName     string
	TreeSpecies  string
	PlantedAt    time.Time
	AgeYears     int
	LocationName string
	ImageURL     string
}

// Campaign is a donation campaign. Campaigns carry no catalog price; donors
// choose the contribution amount.
type Campaign struct {
	ID           string
	Name         string
	Description  string
	TargetAmount decimal.Decimal
	LocationName string
	ImageURL     string
}

// Address is a stored shipping address owned by a user.
type Address struct {
	ID         string
	UserID     string
	Name       string
	Phone      string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// Repository resolves the catalog entities cart items reference. Lookups
// return ErrNotFound for dangling references so callers can distinguish a bad
// reference from an infrastructure failure.
type Repository interface {
	GetVariant(ctx context.Context, id string) (*Variant, error)
	GetPlanPrice(ctx context.Context, id string) (*PlanPrice, error)
	GetTreeInstance(ctx context.Context, id string) (*TreeInstance, error)
	GetCampaign(ctx context.Context, id string) (*Campaign, error)
}

// AddressRepository reads shipping addresses scoped to their owning user.
type AddressRepository interface {
	GetAddress(ctx context.Context, id, userID string) (*Address, error)
}
