package checkout

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"

	"github.com/canopyhq/canopy/internal/domain/catalog"
)

// InvalidReferenceError indicates a required foreign key on a cart item is
// missing or does not resolve to a live catalog entity.
type InvalidReferenceError struct {
	ItemType ItemType
	Field    string
	ID       string
}

func (e *InvalidReferenceError) Error() string {
	prefix := ""
	if e.ItemType != "" {
		prefix = string(e.ItemType) + " item: "
	}
	if e.ID == "" {
		return fmt.Sprintf("%s%s is required", prefix, e.Field)
	}
	return fmt.Sprintf("%s%s %q not found", prefix, e.Field, e.ID)
}

// Snapshotter resolves cart item references against the catalog and produces
// immutable item snapshots.
type Snapshotter struct {
	catalog catalog.Repository
}

// NewSnapshotter creates a Snapshotter backed by the given catalog.
func NewSnapshotter(cat catalog.Repository) *Snapshotter {
	return &Snapshotter{catalog: cat}
}

// Snapshot resolves the item's references and captures the defining facts of
// the purchased entity at this instant, including the current authoritative
// price. Unknown item types produce a generic raw snapshot instead of
// failing, so a new item type never crashes checkout.
func (s *Snapshotter) Snapshot(ctx context.Context, item CartItem) (*ItemSnapshot, error) {
	switch item.Type {
	case ItemProduct:
		return s.snapshotProduct(ctx, item)
	case ItemSponsor:
		return s.snapshotSponsor(ctx, item)
	case ItemAdopt:
		return s.snapshotAdopt(ctx, item)
	case ItemCampaign:
		return s.snapshotCampaign(ctx, item)
	default:
		return &ItemSnapshot{Type: item.Type, Raw: item.Raw}, nil
	}
}

func (s *Snapshotter) snapshotProduct(ctx context.Context, item CartItem) (*ItemSnapshot, error) {
	if item.VariantID == "" {
		return nil, &InvalidReferenceError{ItemType: item.Type, Field: "product_variant_id"}
	}

	v, err := s.catalog.GetVariant(ctx, item.VariantID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, &InvalidReferenceError{ItemType: item.Type, Field: "product_variant_id", ID: item.VariantID}
		}
		return nil, errors.Wrapf(err, "get variant %s", item.VariantID)
	}

	return &ItemSnapshot{
		Type:     ItemProduct,
		ImageURL: v.ImageURL,
		Product: &ProductSnapshot{
			ProductID:     v.ProductID,
			ProductName:   v.ProductName,
			VariantID:     v.ID,
			VariantName:   v.Name,
			SKU:           v.SKU,
			Category:      v.Category,
			OriginalPrice: v.OriginalPrice,
			SellingPrice:  v.SellingPrice,
		},
	}, nil
}

func (s *Snapshotter) snapshotSponsor(ctx context.Context, item CartItem) (*ItemSnapshot, error) {
	if item.PlanPriceID == "" {
		return nil, &InvalidReferenceError{ItemType: item.Type, Field: "plan_price_id"}
	}

	pp, err := s.catalog.GetPlanPrice(ctx, item.PlanPriceID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, &InvalidReferenceError{ItemType: item.Type, Field: "plan_price_id", ID: item.PlanPriceID}
		}
		return nil, errors.Wrapf(err, "get plan price %s", item.PlanPriceID)
	}

	return &ItemSnapshot{
		Type:     ItemSponsor,
		ImageURL: pp.ImageURL,
		Sponsorship: &SponsorshipSnapshot{
			TreeID:       pp.TreeID,
			TreeName:     pp.TreeName,
			TreeSpecies:  pp.TreeSpecies,
			PlanID:       pp.PlanID,
			PlanType:     pp.PlanType,
			Duration:     pp.Duration,
			DurationUnit: pp.DurationUnit,
			Price:        pp.Price,
			LocationName: pp.LocationName,
		},
	}, nil
}

func (s *Snapshotter) snapshotAdopt(ctx context.Context, item CartItem) (*ItemSnapshot, error) {
	if item.TreeInstanceID == "" {
		return nil, &InvalidReferenceError{ItemType: item.Type, Field: "tree_instance_id"}
	}
	if item.PlanPriceID == "" {
		return nil, &InvalidReferenceError{ItemType: item.Type, Field: "plan_price_id"}
	}

	inst, err := s.catalog.GetTreeInstance(ctx, item.TreeInstanceID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, &InvalidReferenceError{ItemType: item.Type, Field: "tree_instance_id", ID: item.TreeInstanceID}
		}
		return nil, errors.Wrapf(err, "get tree instance %s", item.TreeInstanceID)
	}

	pp, err := s.catalog.GetPlanPrice(ctx, item.PlanPriceID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, &InvalidReferenceError{ItemType: item.Type, Field: "plan_price_id", ID: item.PlanPriceID}
		}
		return nil, errors.Wrapf(err, "get plan price %s", item.PlanPriceID)
	}

	return &ItemSnapshot{
		Type:     ItemAdopt,
		ImageURL: inst.ImageURL,
		Adoption: &AdoptionSnapshot{
			TreeInstanceID: inst.ID,
			TreeID:         inst.TreeID,
			TreeName:       inst.TreeName,
			TreeSpecies:    inst.TreeSpecies,
			AgeYears:       inst.AgeYears,
			LocationName:   inst.LocationName,
			PlanID:         pp.PlanID,
			PlanType:       pp.PlanType,
			Duration:       pp.Duration,
			DurationUnit:   pp.DurationUnit,
			Price:          pp.Price,
		},
	}, nil
}

func (s *Snapshotter) snapshotCampaign(ctx context.Context, item CartItem) (*ItemSnapshot, error) {
	if item.CampaignID == "" {
		return nil, &InvalidReferenceError{ItemType: item.Type, Field: "campaign_id"}
	}

	c, err := s.catalog.GetCampaign(ctx, item.CampaignID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, &InvalidReferenceError{ItemType: item.Type, Field: "campaign_id", ID: item.CampaignID}
		}
		return nil, errors.Wrapf(err, "get campaign %s", item.CampaignID)
	}

	return &ItemSnapshot{
		Type:     ItemCampaign,
		ImageURL: c.ImageURL,
		Campaign: &CampaignSnapshot{
			CampaignID:   c.ID,
			Name:         c.Name,
			TargetAmount: c.TargetAmount,
			LocationName: c.LocationName,
			// Campaign donations carry the donor-chosen amount, not a
			// catalog price.
			Amount: item.Amount,
		},
	}, nil
}
