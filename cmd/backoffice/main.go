package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/storecraft/backoffice/cmd/backoffice/cli"
	"github.com/storecraft/backoffice/internal/access"
	"github.com/storecraft/backoffice/internal/app"
	"github.com/storecraft/backoffice/internal/auth"
	"github.com/storecraft/backoffice/internal/business"
	"github.com/storecraft/backoffice/internal/catalog"
	"github.com/storecraft/backoffice/internal/guard"
	"github.com/storecraft/backoffice/internal/observability"
	"github.com/storecraft/backoffice/internal/platform/cache"
	"github.com/storecraft/backoffice/internal/platform/db"
	"github.com/storecraft/backoffice/internal/rbac"
	"github.com/storecraft/backoffice/internal/roles"
	"github.com/storecraft/backoffice/internal/sections"
	"github.com/storecraft/backoffice/internal/shared"
	"github.com/storecraft/backoffice/internal/users"
	"github.com/storecraft/backoffice/jobs"
)

const sessionCookie = "backoffice_session"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "routes":
			os.Exit(cli.RoutesCommand(os.Args[2:], os.Stdout, os.Stderr))
		case "jobs":
			os.Exit(cli.JobsCommand(context.Background(), os.Args[2:], envOr("REDIS_ADDR", "127.0.0.1:6379"), os.Stdout, os.Stderr))
		case "serve":
		default:
			slog.Default().Error("unknown command", slog.String("command", os.Args[1]))
			os.Exit(2)
		}
	}

	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, db.WithMaxConns(cfg.PGMaxConns))
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPasswd, DB: cfg.RedisDB})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	routeCatalog, err := catalog.Load(cfg.RouteCatalogPath, cfg.MatchMode())
	if err != nil {
		logger.Error("load route catalog", slog.Any("error", err))
		os.Exit(1)
	}
	for _, o := range routeCatalog.Overlaps() {
		logger.Warn("route catalog prefix overlap",
			slog.String("shadowing", o.Shadowing.Path),
			slog.String("shadowed", o.Shadowed.Path),
			slog.String("mode", string(routeCatalog.Mode())))
	}

	metrics := observability.NewMetrics()
	sessionManager := shared.NewSessionManager(redisClient, sessionCookie, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(dbpool)

	rbacStore := rbac.NewRepository(dbpool)
	permissionCache := rbac.NewCache(redisClient, cfg.PermissionCacheTTL)
	rbacResolver := rbac.NewResolver(rbacStore, permissionCache, logger)
	rbacService := rbac.NewService(rbacStore, permissionCache, auditLogger, logger)
	if err := permissionCache.Subscribe(ctx, func(version int64) {
		metrics.ObserveCacheBump()
		logger.Debug("role permission cache bumped", slog.Int64("version", version))
	}); err != nil {
		logger.Warn("subscribe permission cache bumps", slog.Any("error", err))
	}

	businessProvider := business.NewProvider(business.NewRepository(dbpool))
	registry := access.NewRegistry(businessProvider, rbacResolver, logger)
	aggregator := access.NewAggregator(logger, metrics, access.DefaultSources(rbacResolver)...)
	routeGuard := guard.New(routeCatalog, aggregator, logger, guard.WithStaleRecorder(metrics))

	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPasswd, DB: cfg.RedisDB})
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPasswd, DB: cfg.RedisDB})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	verifier := auth.NewVerifier(cfg.AuthTokenSecret, cfg.AuthTokenIssuer, cfg.AuthTokenAudience)
	sectionService := sections.NewService(sections.NewRepository(dbpool), logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		SessionManager:  sessionManager,
		CSRFManager:     csrfManager,
		Registry:        registry,
		Guard:           routeGuard,
		AuthHandler:     auth.NewHandler(logger, verifier, registry, businessProvider, sessionManager, csrfManager),
		AccessHandler:   guard.NewHandler(logger, routeGuard, registry, guard.DefaultNavigation()),
		RolesHandler:    roles.NewHandler(logger, rbacService, routeGuard, registry, jobClient),
		UsersHandler:    users.NewHandler(logger, rbacService, routeGuard),
		SectionsHandler: sections.NewHandler(logger, sectionService, routeGuard),
		JobHandler:      jobs.NewHandler(inspector, logger),
		Metrics:         metrics,
		Health: map[string]app.HealthChecker{
			"postgres": dbpool,
			"redis":    cache.Pinger{Client: redisClient},
		},
	})

	go sweepSessions(ctx, registry, cfg.AccessIdleTTL, logger)

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// sweepSessions evicts access sessions idle for longer than maxIdle until ctx ends.
func sweepSessions(ctx context.Context, registry *access.Registry, maxIdle time.Duration, logger *slog.Logger) {
	if maxIdle <= 0 {
		return
	}
	ticker := time.NewTicker(maxIdle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := registry.Sweep(maxIdle); n > 0 {
				logger.Debug("evicted idle access sessions", slog.Int("count", n), slog.Int("live", registry.Len()))
			}
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
