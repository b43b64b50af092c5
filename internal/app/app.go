// Package app wires the whole service together: storage, domain services,
// payment gateway, HTTP surface, and background workers.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/canopyhq/canopy/internal/domain/charge"
	"github.com/canopyhq/canopy/internal/domain/checkout"
	"github.com/canopyhq/canopy/internal/domain/coupon"
	"github.com/canopyhq/canopy/internal/domain/order"
	"github.com/canopyhq/canopy/internal/gateway"
	"github.com/canopyhq/canopy/internal/handler"
	"github.com/canopyhq/canopy/internal/notify"
	"github.com/canopyhq/canopy/internal/postgres"
	"github.com/canopyhq/canopy/pkg/health"
	"github.com/canopyhq/canopy/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server and background
// workers, and handles graceful shutdown. It is the single wiring point for
// the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.DatabasePingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	catalogRepo := postgres.NewCatalogRepository(pool)
	couponRepo := postgres.NewCouponRepository(pool)
	chargeRepo := postgres.NewChargeRepository(pool)
	attemptRepo := postgres.NewAttemptRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)

	// Domain services.
	snapshotter := checkout.NewSnapshotter(catalogRepo)
	couponValidator := coupon.NewRepoValidator(couponRepo)
	chargeEngine := charge.NewEngine(chargeRepo)
	checkoutMgr := checkout.NewManager(snapshotter, couponValidator, chargeEngine, attemptRepo, catalogRepo)
	materializer := order.NewMaterializer(orderRepo)

	// Payment gateway + webhook reconciliation.
	provider := gateway.NewRESTProvider(gateway.RESTConfig{
		Name:      cfg.Gateway.Name,
		BaseURL:   cfg.Gateway.BaseURL,
		KeyID:     cfg.Gateway.KeyID,
		KeySecret: cfg.Gateway.KeySecret,
		Timeout:   cfg.Gateway.Timeout,
	})

	var notifier gateway.Notifier = notify.Noop{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := notify.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer publisher.Close()
		notifier = publisher
	}
	reconciler := gateway.NewReconciler(attemptRepo, materializer, notifier)

	// HTTP surface: health endpoints + API routes on one server.
	h := handler.New(checkoutMgr, provider, reconciler, orderRepo)
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", "X-User-ID"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("canopy-api",
				otelOptions(m)...,
			),
			httpmiddleware.LogRequests(),
		),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})

	// Expired attempt sweep: initiated attempts past their TTL are deleted
	// periodically so abandoned checkouts do not accumulate.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.Sweep.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				n, err := checkoutMgr.CleanupExpired(ctx)
				if err != nil {
					lg.Error("Cleanup expired attempts", zap.Error(err))
					continue
				}
				if n > 0 {
					lg.Info("Deleted expired attempts", zap.Int64("count", n))
				}
			}
		}
	})

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	g.Go(func() error {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		return nil
	})

	return g.Wait()
}

func otelOptions(m *app.Telemetry) []otelhttp.Option {
	return []otelhttp.Option{
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
	}
}
