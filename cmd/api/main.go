// Package main is the entry point for the Voyage Sûr API server.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
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

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/voyagesur/backend/apidoc"
	"github.com/voyagesur/backend/internal/advisor"
	"github.com/voyagesur/backend/internal/cache"
	"github.com/voyagesur/backend/internal/cleanup"
	"github.com/voyagesur/backend/internal/config"
	"github.com/voyagesur/backend/internal/handler"
	"github.com/voyagesur/backend/internal/middleware"
	"github.com/voyagesur/backend/internal/repo"
	"github.com/voyagesur/backend/internal/service"
	"github.com/voyagesur/backend/migrations"
)

func main() {
	// --- Config -----------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		// Use plain stderr before the logger is configured.
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	// JSON handler writes machine-readable output suitable for log aggregators.
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// --- Error reporting --------------------------------------------------
	// Without a DSN the sentry client is a no-op and captures are dropped.
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Env,
		}); err != nil {
			slog.Error("failed to initialise sentry", "error", err)
			os.Exit(1)
		}
		defer sentry.Flush(2 * time.Second)
	}

	// --- Database ---------------------------------------------------------
	// New() does not open connections immediately; the first query does.
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Verify the DB is reachable before accepting traffic.
	if err := pool.Ping(context.Background()); err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	slog.Info("database connection established")

	if cfg.AutoMigrate {
		if err := migrate(context.Background(), pool); err != nil {
			slog.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
	}

	// --- Cache ------------------------------------------------------------
	// advisoryCache stays a nil interface when Redis is not configured so the
	// advisor skips caching entirely.
	var advisoryCache advisor.Cache
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			slog.Warn("redis unreachable; advisory cache will be bypassed until it recovers", "error", err)
		}
		advisoryCache = cache.New(rdb, "voyagesur:advisory:", time.Now)
	} else {
		slog.Warn("REDIS_URL not set; advisory responses will not be cached")
	}

	// --- Services ---------------------------------------------------------
	partitions := repo.NewPartitionRepo(pool)
	profileRepo := repo.NewProfileRepo(pool)
	tx := repo.NewTransactor(pool)

	trips := service.NewTripStore(partitions, tx, time.Now, logger)
	references := service.NewReferenceService(repo.NewReferenceRepo(pool))
	llm := advisor.NewClient(advisor.ClientConfig{
		BaseURL:    cfg.LLMBaseURL,
		APIKey:     cfg.LLMAPIKey,
		Model:      cfg.LLMModel,
		HTTPClient: &http.Client{Timeout: cfg.UpstreamTimeout},
	})
	advisories := advisor.NewService(llm, advisoryCache, time.Now, logger)
	sessions := cleanup.NewSessions(trips, cfg.CleanupInterval, logger)

	api := handler.NewServer(handler.Deps{
		Trips:       trips,
		Planner:     service.NewPlanner(tx, time.Now, logger),
		Details:     service.NewAggregator(trips, references, advisories, cfg.UpstreamTimeout, logger),
		Ledger:      service.NewLedger(profileRepo, tx, time.Now, logger),
		Profiles:    service.NewProfileService(profileRepo, tx),
		References:  references,
		Export:      service.NewExportService(trips),
		Sessions:    sessions,
		WebhookAuth: cfg.WebhookAuth,
		Log:         logger,
	})

	// --- Background jobs --------------------------------------------------
	jobs, stopJobs := context.WithCancel(context.Background())
	defer stopJobs()
	if advisoryCache != nil {
		go sweepCache(jobs, advisories, cfg.CacheSweepInterval, logger)
	}

	// --- Router -----------------------------------------------------------
	// Middleware is applied in order: RequestID → RealIP → Logger → Metrics →
	// Recoverer → CORS → MaxBodySize.
	// RequestID generates a unique trace ID per request.
	// RealIP sets r.RemoteAddr from X-Forwarded-For / X-Real-IP (safe behind a proxy).
	// SlogLogger writes one structured JSON log line per request.
	// Recoverer catches panics and returns HTTP 500 instead of crashing.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(middleware.NewMetricsHandler())
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxBodyBytes))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		//nolint:errcheck
		w.Write(apidoc.OpenAPI)
	})
	api.Routes(r, middleware.NewAuthHandler(cfg.JWTSecret))

	// --- HTTP Server ------------------------------------------------------
	// WriteTimeout leaves room for the trip detail's upstream lookups.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.UpstreamTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown: wait for OS signal, then give in-flight requests
	// up to 15 seconds to complete before forcefully closing.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	sessions.Close()
	stopJobs()
	slog.Info("server stopped")
}

// migrate applies every pending embedded goose migration.
func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return fmt.Errorf("create goose provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	slog.Info("migrations applied", "count", len(results))
	return nil
}

// sweepCache deletes stale advisory cache entries every interval until ctx ends.
func sweepCache(ctx context.Context, advisories *advisor.Service, interval time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := advisories.Sweep(ctx)
			if err != nil {
				log.WarnContext(ctx, "advisory cache sweep failed", "error", err)
				continue
			}
			log.InfoContext(ctx, "advisory cache swept", "deleted", n)
		}
	}
}
