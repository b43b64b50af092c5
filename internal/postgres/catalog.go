package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/canopyhq/canopy/internal/domain/catalog"
)

var (
	_ catalog.Repository        = (*CatalogRepository)(nil)
	_ catalog.AddressRepository = (*CatalogRepository)(nil)
)

// CatalogRepository implements the catalog read models backed by PostgreSQL.
// Each lookup resolves the reference chain (variant -> product, plan price ->
// plan -> tree) in a single joined query.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

const getVariantSQL = `SELECT v.id, v.sku, v.name, v.product_id, p.name, p.category,
		v.original_price, v.selling_price, v.image_url
	FROM product_variants v
	JOIN products p ON p.id = v.product_id
	WHERE v.id = $1`

// GetVariant resolves a product variant together with its parent product.
func (r *CatalogRepository) GetVariant(ctx context.Context, id string) (*catalog.Variant, error) {
	var v catalog.Variant
	err := r.pool.QueryRow(ctx, getVariantSQL, id).Scan(
		&v.ID, &v.SKU, &v.Name, &v.ProductID, &v.ProductName, &v.Category,
		&v.OriginalPrice, &v.SellingPrice, &v.ImageURL,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting variant %q: %w", id, err)
	}
	return &v, nil
}

const getPlanPriceSQL = `SELECT pp.id, pl.id, pl.plan_type, pl.duration, pl.duration_unit, pp.price,
		t.id, t.name, t.species, t.location_name, t.image_url
	FROM plan_prices pp
	JOIN tree_plans pl ON pl.id = pp.plan_id
	JOIN trees t ON t.id = pl.tree_id
	WHERE pp.id = $1`

// GetPlanPrice resolves a plan price down to the tree the plan belongs to.
func (r *CatalogRepository) GetPlanPrice(ctx context.Context, id string) (*catalog.PlanPrice, error) {
	var pp catalog.PlanPrice
	err := r.pool.QueryRow(ctx, getPlanPriceSQL, id).Scan(
		&pp.ID, &pp.PlanID, &pp.PlanType, &pp.Duration, &pp.DurationUnit, &pp.Price,
		&pp.TreeID, &pp.TreeName, &pp.TreeSpecies, &pp.LocationName, &pp.ImageURL,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting plan price %q: %w", id, err)
	}
	return &pp, nil
}

const getTreeInstanceSQL = `SELECT ti.id, t.id, t.name, t.species, ti.planted_at, ti.age_years,
		t.location_name, ti.image_url
	FROM tree_instances ti
	JOIN trees t ON t.id = ti.tree_id
	WHERE ti.id = $1`

// GetTreeInstance resolves an adoptable tree instance and its tree facts.
func (r *CatalogRepository) GetTreeInstance(ctx context.Context, id string) (*catalog.TreeInstance, error) {
	var ti catalog.TreeInstance
	err := r.pool.QueryRow(ctx, getTreeInstanceSQL, id).Scan(
		&ti.ID, &ti.TreeID, &ti.TreeName, &ti.TreeSpecies, &ti.PlantedAt, &ti.AgeYears,
		&ti.LocationName, &ti.ImageURL,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting tree instance %q: %w", id, err)
	}
	return &ti, nil
}

const getCampaignSQL = `SELECT id, name, description, target_amount, location_name, image_url
	FROM campaigns
	WHERE id = $1`

// GetCampaign looks up a donation campaign.
func (r *CatalogRepository) GetCampaign(ctx context.Context, id string) (*catalog.Campaign, error) {
	var c catalog.Campaign
	err := r.pool.QueryRow(ctx, getCampaignSQL, id).Scan(
		&c.ID, &c.Name, &c.Description, &c.TargetAmount, &c.LocationName, &c.ImageURL,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting campaign %q: %w", id, err)
	}
	return &c, nil
}

const getAddressSQL = `SELECT id, user_id, name, phone, line1, line2, city, state, postal_code, country
	FROM addresses
	WHERE id = $1 AND user_id = $2`

// GetAddress looks up a shipping address scoped to its owning user.
func (r *CatalogRepository) GetAddress(ctx context.Context, id, userID string) (*catalog.Address, error) {
	var a catalog.Address
	err := r.pool.QueryRow(ctx, getAddressSQL, id, userID).Scan(
		&a.ID, &a.UserID, &a.Name, &a.Phone, &a.Line1, &a.Line2,
		&a.City, &a.State, &a.PostalCode, &a.Country,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting address %q: %w", id, err)
	}
	return &a, nil
}
