// Package app wires the POS API server.
package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	"github.com/xenking/farmtocup-pos/internal/domain/auth"
	"github.com/xenking/farmtocup-pos/internal/domain/discount"
	"github.com/xenking/farmtocup-pos/internal/domain/order"
	"github.com/xenking/farmtocup-pos/internal/domain/product"
	"github.com/xenking/farmtocup-pos/internal/handler"
	"github.com/xenking/farmtocup-pos/internal/seed"
	"github.com/xenking/farmtocup-pos/internal/storage/memory"
	"github.com/xenking/farmtocup-pos/internal/storage/postgres"
	"github.com/xenking/farmtocup-pos/pkg/health"
	"github.com/xenking/farmtocup-pos/pkg/httpmiddleware"
)

const serviceName = "farmtocup-pos"

// backend is the storage the service runs on.
type backend struct {
	uow       order.UnitOfWork
	products  product.Repository
	discounts discount.Repository
	catalog   seed.Catalog
	close     func()
}

func openBackend(ctx context.Context, lg *zap.Logger, cfg *Config, hs *health.Health) (*backend, error) {
	if cfg.Storage == StorageMemory {
		lg.Warn("Using in-memory storage, data is lost on restart")
		store := memory.New()
		return &backend{
			uow:       store,
			products:  store.Products(),
			discounts: store.Discounts(),
			catalog:   store,
			close:     func() {},
		}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}
	hs.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))

	store := postgres.NewStore(pool)
	return &backend{
		uow:       store,
		products:  store.Products(),
		discounts: store.Discounts(),
		catalog:   store,
		close:     pool.Close,
	}, nil
}

// server is the assembled HTTP stack and the resources it owns.
type server struct {
	handler http.Handler
	health  *health.Health
	close   func()
}

// newServer opens the backend, seeds it when asked, and builds the routed
// and wrapped HTTP handler.
func newServer(ctx context.Context, lg *zap.Logger, t httpmiddleware.Telemetry, cfg *Config) (_ *server, rerr error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc_pause", time.Second, health.GCMaxPauseCheck(time.Second))

	b, err := openBackend(ctx, lg, cfg, healthSvc)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr != nil {
			b.close()
		}
	}()

	if cfg.Seed || cfg.Storage == StorageMemory {
		menu, err := seed.Default()
		if err != nil {
			return nil, errors.Wrap(err, "load default menu")
		}
		if err := seed.Apply(ctx, b.catalog, menu); err != nil {
			return nil, errors.Wrap(err, "seed menu")
		}
		lg.Info("Seeded default menu",
			zap.Int("products", len(menu.Products)),
			zap.Int("discounts", len(menu.Discounts)),
		)
	}

	// Domain services.
	orderService, err := order.NewService(b.uow, order.Options{
		Location:         loc,
		CapFixedDiscount: cfg.Discount.CapFixed,
		MeterProvider:    t.MeterProvider(),
		TracerProvider:   t.TracerProvider(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "create order service")
	}
	discounts := discount.NewResolver(b.discounts, discount.Options{CapFixed: cfg.Discount.CapFixed})
	tokens := auth.NewTokens([]byte(cfg.Auth.Secret), cfg.Auth.TokenTTL)

	h := handler.NewHandler(orderService, b.products, discounts, tokens)

	// Mux: probes, the client health check and the API routes on one server.
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.HandleFunc("GET /api/health", healthSvc.APIEndpoint)
	h.Register(mux)
	routeFinder := httpmiddleware.MakeRouteFinder(mux)

	return &server{
		handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.SecureHeaders(),
			httpmiddleware.Compress(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowSubdomains:  cfg.CORS.AllowSubdomains,
				AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
				AllowHeaders:     []string{"Content-Type", "Authorization", "X-Requested-With", "Accept"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				PreflightStatus:  http.StatusOK,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:     cfg.RateLimit.Max,
				Window:  cfg.RateLimit.Window,
				KeyFunc: httpmiddleware.TrustedClientIP(cfg.RateLimit.TrustedProxies),
				Skip: func(r *http.Request) bool {
					return !strings.HasPrefix(r.URL.Path, "/api/")
				},
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.Instrument(serviceName, routeFinder, t),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
		health: healthSvc,
		close:  b.close,
	}, nil
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage),
		zap.String("timezone", cfg.Timezone),
	)

	s, err := newServer(ctx, lg, m, cfg)
	if err != nil {
		return err
	}
	defer s.close()

	s.health.Start(ctx, 10*time.Second)
	s.health.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           s.handler,
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		s.health.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		s.health.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
