package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/backend"
	"github.com/xenking/storefront/internal/cache"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/session"
	"github.com/xenking/storefront/internal/storage/postgres"
	"github.com/xenking/storefront/internal/storefront"
	"github.com/xenking/storefront/pkg/health"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("backend", cfg.Backend.URL),
		zap.String("cache", cfg.Cache.Driver),
	)

	srv, err := newServer(ctx, lg, m, cfg)
	if err != nil {
		return err
	}
	defer srv.close()

	srv.health.Start(ctx, 10*time.Second)
	srv.health.SetReady(true)

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		srv.health.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := srv.http.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		srv.health.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := srv.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// server is the assembled application: the HTTP server, its health service
// and the connections to release on exit.
type server struct {
	http    *http.Server
	health  *health.Health
	closers []func()
}

func (s *server) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// newServer wires every dependency into an HTTP server without starting it.
func newServer(ctx context.Context, lg *zap.Logger, t httpmiddleware.TelemetryProvider, cfg *Config) (_ *server, rerr error) {
	policy, err := cfg.Policy()
	if err != nil {
		return nil, errors.Wrap(err, "pricing policy")
	}

	srv := &server{health: health.New()}
	defer func() {
		if rerr != nil {
			srv.close()
		}
	}()

	healthSvc := srv.health
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc_pause", time.Second, health.GCMaxPauseCheck(time.Second))

	// Marketplace backend client, traced as an outgoing dependency.
	httpClient := &http.Client{
		Timeout: cfg.Backend.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithTracerProvider(t.TracerProvider()),
			otelhttp.WithMeterProvider(t.MeterProvider()),
		),
	}
	backendClient, err := backend.New(cfg.Backend.URL, httpClient)
	if err != nil {
		return nil, errors.Wrap(err, "create backend client")
	}
	healthSvc.AddReadinessCheck("backend", 5*time.Second, health.HTTPCheck(httpClient, cfg.Backend.URL))

	// Cart and category cache.
	var c cache.Cache
	switch cfg.Cache.Driver {
	case CacheRedis:
		opts, err := redis.ParseURL(cfg.Cache.RedisURL)
		if err != nil {
			return nil, errors.Wrap(err, "parse redis url")
		}
		client := redis.NewClient(opts)
		srv.closers = append(srv.closers, func() { _ = client.Close() })

		rc := cache.NewRedis(client, cfg.Cache.Prefix, cfg.Cache.CartTTL)
		healthSvc.AddReadinessCheck("redis", 2*time.Second, health.PingCheck(rc), health.Optional())
		c = rc
	default:
		mc := cache.NewMemory(cfg.Cache.CartTTL)
		mc.StartSweeper(ctx, cfg.Cache.SweepInterval)
		c = mc
	}

	// Optional order journal.
	var orderRepo order.Repository
	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		srv.closers = append(srv.closers, pool.Close)

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return nil, errors.Wrap(err, "run migrations")
		}
		healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool), health.Optional())
		orderRepo = postgres.NewOrderRepository(pool)
	} else {
		lg.Info("Order journal disabled: no database URL")
	}

	// Domain services.
	storefrontSvc, err := storefront.NewService(backendClient, c, storefront.Config{
		Policy:      policy,
		CartTTL:     cfg.Cache.CartTTL,
		CategoryTTL: cfg.Cache.CategoryTTL,
	}, t.MeterProvider().Meter("storefront"))
	if err != nil {
		return nil, errors.Wrap(err, "create storefront service")
	}
	orderService := order.NewService(storefrontSvc, backendClient, orderRepo, policy)

	// HTTP handlers.
	parser := session.NewParser([]byte(cfg.Auth.JWTSecret))
	if cfg.Auth.JWTSecret == "" {
		lg.Warn("No JWT secret configured: tokens are not verified locally, order history is disabled")
	}
	h := handler.NewHandler(
		handler.HandlerConfig{Policy: policy},
		storefrontSvc,
		orderService,
		handler.NewSecurityHandler(parser),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)
	routeFinder := httpmiddleware.MakeRouteFinder(mux)

	srv.http = &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.Backend.Timeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:     cfg.RateLimit.Max,
				Window:  cfg.RateLimit.Window,
				KeyFunc: httpmiddleware.IdentityKeyFunc(verifiedUser(parser)),
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.Instrument("storefront", routeFinder, t),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
	}
	return srv, nil
}

// verifiedUser vouches for requests whose bearer token was verified locally.
func verifiedUser(p *session.Parser) func(*http.Request) (string, bool) {
	return func(r *http.Request) (string, bool) {
		s, err := p.ParseHeader(r.Header.Get("Authorization"))
		if err != nil || !s.Verified {
			return "", false
		}
		return s.UserID, true
	}
}
