package checkout

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopyhq/canopy/internal/domain/catalog"
)

type mockCatalog struct {
	variants  map[string]*catalog.Variant
	prices    map[string]*catalog.PlanPrice
	instances map[string]*catalog.TreeInstance
	campaigns map[string]*catalog.Campaign
}

func (m *mockCatalog) GetVariant(_ context.Context, id string) (*catalog.Variant, error) {
	if v, ok := m.variants[id]; ok {
		return v, nil
	}
	return nil, catalog.ErrNotFound
}

func (m *mockCatalog) GetPlanPrice(_ context.Context, id string) (*catalog.PlanPrice, error) {
	if p, ok := m.prices[id]; ok {
		return p, nil
	}
	return nil, catalog.ErrNotFound
}

func (m *mockCatalog) GetTreeInstance(_ context.Context, id string) (*catalog.TreeInstance, error) {
	if ti, ok := m.instances[id]; ok {
		return ti, nil
	}
	return nil, catalog.ErrNotFound
}

func (m *mockCatalog) GetCampaign(_ context.Context, id string) (*catalog.Campaign, error) {
	if c, ok := m.campaigns[id]; ok {
		return c, nil
	}
	return nil, catalog.ErrNotFound
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testCatalog() *mockCatalog {
	return &mockCatalog{
		variants: map[string]*catalog.Variant{
			"v1": {
				ID: "v1", SKU: "NEEM-2FT", Name: "2ft sapling",
				ProductID: "p1", ProductName: "Neem Sapling", Category: "saplings",
				OriginalPrice: dec("300"), SellingPrice: dec("250"),
				ImageURL: "img/neem.jpg",
			},
		},
		prices: map[string]*catalog.PlanPrice{
			"pp1": {
				ID: "pp1", PlanID: "plan1", PlanType: "sponsor",
				Duration: 1, DurationUnit: "years", Price: dec("1200"),
				TreeID: "t1", TreeName: "Banyan Grove 14", TreeSpecies: "Ficus benghalensis",
				LocationName: "Sundarpur", ImageURL: "img/banyan.jpg",
			},
		},
		instances: map[string]*catalog.TreeInstance{
			"ti1": {
				ID: "ti1", TreeID: "t1", TreeName: "Banyan Grove 14",
				TreeSpecies: "Ficus benghalensis", AgeYears: 3,
				LocationName: "Sundarpur", ImageURL: "img/banyan-14.jpg",
			},
		},
		campaigns: map[string]*catalog.Campaign{
			"c1": {
				ID: "c1", Name: "Mangrove Restoration",
				TargetAmount: dec("500000"), LocationName: "Coastal Belt",
				ImageURL: "img/mangrove.jpg",
			},
		},
	}
}

func TestSnapshot_Product(t *testing.T) {
	s := NewSnapshotter(testCatalog())

	snap, err := s.Snapshot(context.Background(), CartItem{
		Type: ItemProduct, Quantity: 2, VariantID: "v1",
	})
	require.NoError(t, err)

	require.NotNil(t, snap.Product)
	assert.Equal(t, "NEEM-2FT", snap.Product.SKU)
	assert.Equal(t, "Neem Sapling", snap.Product.ProductName)
	assert.True(t, dec("250").Equal(snap.UnitPrice()))
	assert.Equal(t, "Neem Sapling - 2ft sapling", snap.ItemName())
	assert.Equal(t, "img/neem.jpg", snap.ImageURL)
}

func TestSnapshot_Sponsor(t *testing.T) {
	s := NewSnapshotter(testCatalog())

	snap, err := s.Snapshot(context.Background(), CartItem{
		Type: ItemSponsor, Quantity: 1, PlanPriceID: "pp1",
	})
	require.NoError(t, err)

	require.NotNil(t, snap.Sponsorship)
	assert.Equal(t, "Banyan Grove 14", snap.ItemName())
	assert.Equal(t, 1, snap.Sponsorship.Duration)
	assert.Equal(t, "years", snap.Sponsorship.DurationUnit)
	assert.Equal(t, "Sundarpur", snap.Sponsorship.LocationName)
	assert.True(t, dec("1200").Equal(snap.UnitPrice()))
}

func TestSnapshot_Adopt(t *testing.T) {
	s := NewSnapshotter(testCatalog())

	snap, err := s.Snapshot(context.Background(), CartItem{
		Type: ItemAdopt, Quantity: 1, TreeInstanceID: "ti1", PlanPriceID: "pp1",
	})
	require.NoError(t, err)

	require.NotNil(t, snap.Adoption)
	assert.Equal(t, 3, snap.Adoption.AgeYears)
	assert.Equal(t, "plan1", snap.Adoption.PlanID)
	assert.True(t, dec("1200").Equal(snap.UnitPrice()))
	// Adoption uses the specific tree instance's image, not the plan's.
	assert.Equal(t, "img/banyan-14.jpg", snap.ImageURL)
}

func TestSnapshot_Campaign(t *testing.T) {
	s := NewSnapshotter(testCatalog())

	snap, err := s.Snapshot(context.Background(), CartItem{
		Type: ItemCampaign, Quantity: 1, CampaignID: "c1", Amount: dec("750"),
	})
	require.NoError(t, err)

	require.NotNil(t, snap.Campaign)
	assert.Equal(t, "Mangrove Restoration", snap.ItemName())
	// Donor-chosen amount, not a catalog price.
	assert.True(t, dec("750").Equal(snap.UnitPrice()))
	assert.True(t, dec("500000").Equal(snap.Campaign.TargetAmount))
}

func TestSnapshot_UnknownTypeFallback(t *testing.T) {
	s := NewSnapshotter(testCatalog())

	snap, err := s.Snapshot(context.Background(), CartItem{
		Type: ItemType("gift_card"), Quantity: 1,
		Raw: map[string]any{"name": "Gift Card", "value": 500},
	})
	require.NoError(t, err)

	assert.Equal(t, ItemType("gift_card"), snap.Type)
	assert.Equal(t, "Gift Card", snap.ItemName())
	assert.True(t, snap.UnitPrice().IsZero())
}

func TestSnapshot_InvalidReferences(t *testing.T) {
	s := NewSnapshotter(testCatalog())

	tests := []struct {
		name      string
		item      CartItem
		wantField string
	}{
		{"product missing variant id", CartItem{Type: ItemProduct, Quantity: 1}, "product_variant_id"},
		{"product unknown variant", CartItem{Type: ItemProduct, Quantity: 1, VariantID: "nope"}, "product_variant_id"},
		{"sponsor missing plan price id", CartItem{Type: ItemSponsor, Quantity: 1}, "plan_price_id"},
		{"sponsor unknown plan price", CartItem{Type: ItemSponsor, Quantity: 1, PlanPriceID: "nope"}, "plan_price_id"},
		{"adopt missing instance id", CartItem{Type: ItemAdopt, Quantity: 1, PlanPriceID: "pp1"}, "tree_instance_id"},
		{"adopt missing plan price id", CartItem{Type: ItemAdopt, Quantity: 1, TreeInstanceID: "ti1"}, "plan_price_id"},
		{"adopt unknown instance", CartItem{Type: ItemAdopt, Quantity: 1, TreeInstanceID: "nope", PlanPriceID: "pp1"}, "tree_instance_id"},
		{"campaign missing id", CartItem{Type: ItemCampaign, Quantity: 1}, "campaign_id"},
		{"campaign unknown id", CartItem{Type: ItemCampaign, Quantity: 1, CampaignID: "nope"}, "campaign_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Snapshot(context.Background(), tt.item)

			var refErr *InvalidReferenceError
			require.ErrorAs(t, err, &refErr)
			assert.Equal(t, tt.wantField, refErr.Field)
		})
	}
}

func TestSnapshot_Immutability(t *testing.T) {
	cat := testCatalog()
	s := NewSnapshotter(cat)

	snap, err := s.Snapshot(context.Background(), CartItem{
		Type: ItemProduct, Quantity: 1, VariantID: "v1",
	})
	require.NoError(t, err)

	// Mutate the source entity after the snapshot was taken. The stored
	// snapshot, name, and unit price must not change.
	cat.variants["v1"].SellingPrice = dec("999")
	cat.variants["v1"].ProductName = "Renamed Product"

	assert.True(t, dec("250").Equal(snap.UnitPrice()))
	assert.Equal(t, "Neem Sapling - 2ft sapling", snap.ItemName())
	assert.Equal(t, "Neem Sapling", snap.Product.ProductName)
}
