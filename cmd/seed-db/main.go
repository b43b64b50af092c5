// Command seed-db loads the catalog, charge rules, and starter coupons into
// the database. Safe to run repeatedly: every write is an upsert.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/canopyhq/canopy/internal/postgres"
)

type catalogJSON struct {
	Products []struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Category string `json:"category"`
		Variants []struct {
			ID            string          `json:"id"`
			SKU           string          `json:"sku"`
			Name          string          `json:"name"`
			OriginalPrice decimal.Decimal `json:"original_price"`
			SellingPrice  decimal.Decimal `json:"selling_price"`
			ImageURL      string          `json:"image_url"`
		} `json:"variants"`
	} `json:"products"`

	Trees []struct {
		ID           string `json:"id"`
		Name         string `json:"name"`
		Species      string `json:"species"`
		LocationName string `json:"location_name"`
		ImageURL     string `json:"image_url"`
		Plans        []struct {
			ID           string          `json:"id"`
			PlanType     string          `json:"plan_type"`
			Duration     int             `json:"duration"`
			DurationUnit string          `json:"duration_unit"`
			PriceID      string          `json:"price_id"`
			Price        decimal.Decimal `json:"price"`
		} `json:"plans"`
		Instances []struct {
			ID        string `json:"id"`
			PlantedAt string `json:"planted_at"`
			AgeYears  int    `json:"age_years"`
			ImageURL  string `json:"image_url"`
		} `json:"instances"`
	} `json:"trees"`

	Campaigns []struct {
		ID           string          `json:"id"`
		Name         string          `json:"name"`
		Description  string          `json:"description"`
		TargetAmount decimal.Decimal `json:"target_amount"`
		LocationName string          `json:"location_name"`
		ImageURL     string          `json:"image_url"`
	} `json:"campaigns"`
}

func main() {
	var (
		databaseURL string
		catalogFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "db/seed/catalog.json", "path to catalog JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogFile string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCatalog(ctx, pool, catalogFile); err != nil {
		return errors.Wrap(err, "seed catalog")
	}
	if err := seedCharges(ctx, pool); err != nil {
		return errors.Wrap(err, "seed charges")
	}
	if err := seedCoupons(ctx, pool); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	return nil
}

func seedCatalog(ctx context.Context, pool *pgxpool.Pool, catalogFile string) error {
	slog.Info("reading catalog file", slog.String("path", catalogFile))

	data, err := os.ReadFile(catalogFile)
	if err != nil {
		return errors.Wrap(err, "read catalog file")
	}

	var cat catalogJSON
	if err := json.Unmarshal(data, &cat); err != nil {
		return errors.Wrap(err, "parse catalog JSON")
	}

	for _, p := range cat.Products {
		_, err := pool.Exec(ctx, `INSERT INTO products (id, name, category)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET name = $2, category = $3`,
			p.ID, p.Name, p.Category)
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
		for _, v := range p.Variants {
			_, err := pool.Exec(ctx, `INSERT INTO product_variants
				(id, product_id, sku, name, original_price, selling_price, image_url)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (id) DO UPDATE SET
					sku = $3, name = $4, original_price = $5, selling_price = $6, image_url = $7`,
				v.ID, p.ID, v.SKU, v.Name, v.OriginalPrice, v.SellingPrice, v.ImageURL)
			if err != nil {
				return errors.Wrapf(err, "upsert variant %s", v.ID)
			}
		}
		slog.Info("upserted product", slog.String("id", p.ID), slog.Int("variants", len(p.Variants)))
	}

	for _, t := range cat.Trees {
		_, err := pool.Exec(ctx, `INSERT INTO trees (id, name, species, location_name, image_url)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				name = $2, species = $3, location_name = $4, image_url = $5`,
			t.ID, t.Name, t.Species, t.LocationName, t.ImageURL)
		if err != nil {
			return errors.Wrapf(err, "upsert tree %s", t.ID)
		}
		for _, pl := range t.Plans {
			_, err := pool.Exec(ctx, `INSERT INTO tree_plans (id, tree_id, plan_type, duration, duration_unit)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (id) DO UPDATE SET
					plan_type = $3, duration = $4, duration_unit = $5`,
				pl.ID, t.ID, pl.PlanType, pl.Duration, pl.DurationUnit)
			if err != nil {
				return errors.Wrapf(err, "upsert plan %s", pl.ID)
			}
			_, err = pool.Exec(ctx, `INSERT INTO plan_prices (id, plan_id, price)
				VALUES ($1, $2, $3)
				ON CONFLICT (id) DO UPDATE SET price = $3`,
				pl.PriceID, pl.ID, pl.Price)
			if err != nil {
				return errors.Wrapf(err, "upsert plan price %s", pl.PriceID)
			}
		}
		for _, in := range t.Instances {
			_, err := pool.Exec(ctx, `INSERT INTO tree_instances (id, tree_id, planted_at, age_years, image_url)
				VALUES ($1, $2, $3::timestamptz, $4, $5)
				ON CONFLICT (id) DO UPDATE SET
					planted_at = $3::timestamptz, age_years = $4, image_url = $5`,
				in.ID, t.ID, in.PlantedAt, in.AgeYears, in.ImageURL)
			if err != nil {
				return errors.Wrapf(err, "upsert tree instance %s", in.ID)
			}
		}
		slog.Info("upserted tree", slog.String("id", t.ID),
			slog.Int("plans", len(t.Plans)), slog.Int("instances", len(t.Instances)))
	}

	for _, c := range cat.Campaigns {
		_, err := pool.Exec(ctx, `INSERT INTO campaigns
			(id, name, description, target_amount, location_name, image_url)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				name = $2, description = $3, target_amount = $4, location_name = $5, image_url = $6`,
			c.ID, c.Name, c.Description, c.TargetAmount, c.LocationName, c.ImageURL)
		if err != nil {
			return errors.Wrapf(err, "upsert campaign %s", c.ID)
		}
		slog.Info("upserted campaign", slog.String("id", c.ID), slog.String("name", c.Name))
	}

	return nil
}

func seedCharges(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding charge rules")

	charges := []struct {
		id, name, typ, mode string
		value               decimal.Decimal
	}{
		{"charge-gst", "GST", "tax", "percentage", decimal.NewFromInt(18)},
		{"charge-shipping", "Standard Shipping", "shipping", "fixed", decimal.NewFromInt(50)},
		{"charge-platform", "Platform Fee", "fee", "percentage", decimal.NewFromInt(5)},
	}

	for _, c := range charges {
		_, err := pool.Exec(ctx, `INSERT INTO charges (id, name, type, mode, value, is_active)
			VALUES ($1, $2, $3, $4, $5, TRUE)
			ON CONFLICT (id) DO UPDATE SET
				name = $2, type = $3, mode = $4, value = $5, is_active = TRUE`,
			c.id, c.name, c.typ, c.mode, c.value)
		if err != nil {
			return errors.Wrapf(err, "upsert charge %s", c.id)
		}
		slog.Info("upserted charge", slog.String("id", c.id), slog.String("name", c.name))
	}

	return nil
}

func seedCoupons(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding starter coupons")

	coupons := []struct {
		id, code, typ string
		value         decimal.Decimal
		maxDiscount   *decimal.Decimal
	}{
		{"coupon-save10", "SAVE10", "percentage", decimal.NewFromInt(10), decPtr(decimal.NewFromInt(200))},
		{"coupon-plant50", "PLANT50", "fixed", decimal.NewFromInt(50), nil},
	}

	for _, c := range coupons {
		_, err := pool.Exec(ctx, `INSERT INTO coupons (id, code, type, value, max_discount, is_enabled)
			VALUES ($1, $2, $3, $4, $5, TRUE)
			ON CONFLICT (id) DO UPDATE SET
				code = $2, type = $3, value = $4, max_discount = $5, is_enabled = TRUE`,
			c.id, c.code, c.typ, c.value, c.maxDiscount)
		if err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.code)
		}
		slog.Info("upserted coupon", slog.String("code", c.code))
	}

	return nil
}

func decPtr(d decimal.Decimal) *decimal.Decimal { return &d }
