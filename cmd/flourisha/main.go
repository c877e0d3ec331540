// Command flourisha runs the Flourisha core service and its maintenance subcommands.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cfhttp "github.com/flourisha/brain/internal/adapter/http"
	"github.com/flourisha/brain/internal/adapter/mcp"
	cfnats "github.com/flourisha/brain/internal/adapter/nats"
	"github.com/flourisha/brain/internal/adapter/natskv"
	cfotel "github.com/flourisha/brain/internal/adapter/otel"
	"github.com/flourisha/brain/internal/adapter/postgres"
	"github.com/flourisha/brain/internal/adapter/ristretto"
	"github.com/flourisha/brain/internal/adapter/tiered"
	"github.com/flourisha/brain/internal/adapter/ws"
	"github.com/flourisha/brain/internal/config"
	"github.com/flourisha/brain/internal/domain/access"
	"github.com/flourisha/brain/internal/logger"
	"github.com/flourisha/brain/internal/middleware"
	"github.com/flourisha/brain/internal/port/cache"
	"github.com/flourisha/brain/internal/port/messagequeue"
	"github.com/flourisha/brain/internal/resilience"
	"github.com/flourisha/brain/internal/secrets"
	"github.com/flourisha/brain/internal/service"
)

const version = "0.1.0"

var (
	_ cfhttp.EnergyService     = (*service.EnergyService)(nil)
	_ cfhttp.OKRService        = (*service.OKRService)(nil)
	_ cfhttp.TagService        = (*service.TagService)(nil)
	_ cfhttp.ExtractionService = (*service.ExtractionService)(nil)
	_ mcp.EnergyService        = (*service.EnergyService)(nil)
	_ mcp.OKRService           = (*service.OKRService)(nil)
	_ mcp.ReviewQueue          = (*service.ExtractionService)(nil)
)

// Secret keys read through the vault. They override the values in config.
const (
	secretJWT    = "FLOURISHA_JWT_SECRET"
	secretMCPKey = "FLOURISHA_MCP_API_KEY"
)

func main() {
	var err error
	args := os.Args[1:]
	switch {
	case len(args) > 0 && args[0] == "migrate":
		err = runMigrate(args[1:])
	case len(args) > 0 && args[0] == "admin":
		err = runAdmin(args[1:])
	case len(args) > 0 && args[0] != "serve":
		err = fmt.Errorf("unknown command: %s (want serve, migrate or admin)", args[0])
	default:
		err = run()
	}
	if err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closeLog := logger.New(cfg.Logging)
	defer closeLog.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"pg_max_conns", cfg.Postgres.MaxConns,
		"nats_enabled", cfg.NATS.Enabled,
		"auth_enabled", cfg.Auth.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---

	shutdownOTel, err := cfotel.Init(ctx, cfg.OTel, cfg.Logging.Service)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()
	metrics, err := cfotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}

	vault, err := secrets.NewVault(secrets.Chain(
		secrets.EnvLoader(secretJWT, secretMCPKey),
		secrets.DirLoader(os.Getenv("FLOURISHA_SECRETS_DIR"), secretJWT, secretMCPKey),
	))
	if err != nil {
		return fmt.Errorf("secrets: %w", err)
	}

	// --- Infrastructure ---

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB)
	if err != nil {
		return fmt.Errorf("l1 cache: %w", err)
	}
	defer l1.Close()

	var (
		queue       messagequeue.Queue
		l2          cache.Cache
		idempotency cache.Cache
		checks      = map[string]cfhttp.HealthChecker{"postgres": pool.Ping}
	)
	if cfg.NATS.Enabled {
		q, err := cfnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = q.Close() }()
		queue = q
		checks["nats"] = func(context.Context) error {
			if !q.IsConnected() {
				return errors.New("disconnected")
			}
			return nil
		}

		kv, err := natskv.Open(ctx, q.JetStream(), cfg.Cache.L2Bucket, cfg.Cache.L2TTL)
		if err != nil {
			return fmt.Errorf("l2 cache: %w", err)
		}
		l2 = kv
		idem, err := natskv.Open(ctx, q.JetStream(), cfg.Idempotency.Bucket, cfg.Idempotency.TTL)
		if err != nil {
			return fmt.Errorf("idempotency store: %w", err)
		}
		idempotency = idem
		slog.Info("nats connected", "url", cfg.NATS.URL)
	}
	tenantCache := tiered.New(l1, l2, cfg.Cache.TenantTTL)

	// --- Services ---

	hub := ws.NewHub(cfg.Server.CORSOrigin)
	store := postgres.NewStore(pool)
	tenants := service.NewTenantService(store, tenantCache, cfg.Cache.TenantTTL)
	var breaker *resilience.Breaker
	if queue != nil {
		breaker = resilience.NewBreaker("nats", cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	}
	events := service.NewEventPublisher(queue, breaker, hub, metrics)

	deps := service.Deps{Store: store, Tenants: tenants, Events: events, Metrics: metrics}
	energySvc := service.NewEnergyService(deps)
	okrSvc := service.NewOKRService(deps, cfg.OKR.AtRiskDays)
	tagSvc := service.NewTagService(deps)
	extractionSvc := service.NewExtractionService(deps)
	authSvc := service.NewAuthService(store, tenants, cfg.Auth)
	authSvc.UseSecretSource(vault.Source(secretJWT))

	cancelRelay, err := events.StartRelay(ctx, hub.Relay)
	if err != nil {
		return fmt.Errorf("event relay: %w", err)
	}
	defer cancelRelay()

	go reloadSecretsOnHUP(ctx, vault)

	// --- MCP ---

	if cfg.MCP.Enabled {
		staticKey := cfg.MCP.APIKey
		apiKey := func() string {
			if k := vault.Get(secretMCPKey); k != "" {
				return k
			}
			return staticKey
		}
		mcpSrv := mcp.NewServer(mcp.ServerConfig{
			Addr:    cfg.MCP.Addr,
			Name:    "flourisha",
			Version: version,
			APIKey:  apiKey,
			Claims:  access.Claims{TenantID: cfg.MCP.TenantID, Subject: cfg.MCP.Subject},
		}, mcp.ServerDeps{Energy: energySvc, OKRs: okrSvc, Review: extractionSvc})
		if err := mcpSrv.Start(); err != nil {
			return fmt.Errorf("mcp: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = mcpSrv.Stop(sctx)
		}()
	}

	// --- HTTP ---

	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	stopCleanup := limiter.StartCleanup(cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)
	defer stopCleanup()

	handlers := &cfhttp.Handlers{
		Energy:     energySvc,
		OKRs:       okrSvc,
		Tags:       tagSvc,
		Extraction: extractionSvc,
		Checks:     checks,
	}
	router := cfhttp.NewRouter(handlers, cfhttp.RouterConfig{
		ServiceName:      cfg.Logging.Service,
		CORSOrigin:       cfg.Server.CORSOrigin,
		Authn:            authSvc,
		AuthEnabled:      cfg.Auth.Enabled,
		DevClaims:        access.Claims{TenantID: cfg.Auth.DevTenantID, Subject: cfg.Auth.DevSubject},
		RateLimiter:      limiter,
		IdempotencyStore: idempotency,
		IdempotencyTTL:   cfg.Idempotency.TTL,
		WebSocket:        hub.HandleWS,
	})

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// reloadSecretsOnHUP re-reads the vault every time the process receives SIGHUP.
func reloadSecretsOnHUP(ctx context.Context, vault *secrets.Vault) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := vault.Reload(); err != nil {
				slog.Error("secret reload failed", "error", err)
			}
		}
	}
}
