package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/curateio/curate/pkg/api"
	"github.com/curateio/curate/pkg/auth"
	"github.com/curateio/curate/pkg/config"
	"github.com/curateio/curate/pkg/httputil"
	"github.com/curateio/curate/pkg/identity"
	"github.com/curateio/curate/pkg/middleware"
	"github.com/curateio/curate/pkg/observability"
	"github.com/curateio/curate/pkg/workspace"
)

// version is stamped at build time via -ldflags
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "curate: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("Starting curate workspace service")

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := runMigrations(context.Background(), db, logger); err != nil {
		return err
	}

	server := api.NewServer(db, cfg.Workspace.MaxLockTime.Std(), logger.Logrus())
	server.Resolver().HideForbidden = cfg.Workspace.HideForbidden
	server.Users().InvitationTTL = cfg.Workspace.InvitationTTL.Std()

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	handler := buildHandler(cfg, server, metrics)

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
		IdleTimeout:  cfg.Server.IdleTimeout.Std(),
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux(cfg, db, registry),
	}

	jobs, err := startCleanupJobs(cfg, server.Users(), server.TokenManager(), logger)
	if err != nil {
		return err
	}

	shutdown := observability.NewShutdownManager(logger, apiServer, cfg.Server.ShutdownTimeout.Std())
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		jobs.Stop()
		return nil
	})

	var g errgroup.Group
	g.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("API server listening")
		if err := apiServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("Health server listening")
		if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(shutdown.WaitForShutdown)

	return g.Wait()
}

func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnLifetime.Std())

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database not reachable: %w", err)
	}
	return db, nil
}

// runMigrations applies the per-package migration sets. Identity first:
// workspace rows reference users, tokens reference users.
func runMigrations(ctx context.Context, db *sql.DB, logger *observability.Logger) error {
	logger.Info("Running database migrations")
	if err := identity.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("identity migrations failed: %w", err)
	}
	if err := auth.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("auth migrations failed: %w", err)
	}
	if err := workspace.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("workspace migrations failed: %w", err)
	}
	return nil
}

// buildHandler wraps the API server in the middleware chain
func buildHandler(cfg *config.Config, server *api.Server, metrics *observability.Metrics) http.Handler {
	// Invitation acceptance must pass through unauthenticated, so auth
	// runs in optional mode and handlers reject anonymous callers.
	authMW := middleware.NewAuthMiddleware(server.TokenManager(), server.Users(), true)
	rateMW := middleware.NewRateLimitMiddleware()

	chain := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware,
		httputil.RecoveryMiddleware,
		httputil.LoggingMiddleware,
	}
	if cfg.Observability.MetricsEnabled {
		chain = append(chain, observability.HTTPMetricsMiddleware(metrics))
	}
	chain = append(chain, authMW.Handler, rateMW.Handler)

	return httputil.Chain(chain...)(server)
}

// healthMux serves liveness, readiness, and metrics on the side port
func healthMux(cfg *config.Config, db *sql.DB, registry *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	checker := observability.NewHealthChecker(db, version)
	observability.RegisterHealthRoutes(mux, checker)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(mux, registry)
	}
	return mux
}

// startCleanupJobs schedules the expiry sweeps for invitations and tokens
func startCleanupJobs(cfg *config.Config, users *identity.Store, tokens *auth.TokenManager, logger *observability.Logger) (*cron.Cron, error) {
	c := cron.New()

	_, err := c.AddFunc(cfg.Cleanup.InvitationSchedule, func() {
		defer observability.RecoverPanic(logger, "invitation cleanup")
		n, err := users.CleanupExpiredInvitations(context.Background())
		if err != nil {
			logger.WithError(err).Error("Invitation cleanup failed")
			return
		}
		if n > 0 {
			logger.WithField("removed", n).Info("Removed expired invitations")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid invitation cleanup schedule: %w", err)
	}

	_, err = c.AddFunc(cfg.Cleanup.TokenSchedule, func() {
		defer observability.RecoverPanic(logger, "token cleanup")
		n, err := tokens.CleanupExpiredTokens(context.Background())
		if err != nil {
			logger.WithError(err).Error("Token cleanup failed")
			return
		}
		if n > 0 {
			logger.WithField("removed", n).Info("Removed expired tokens")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token cleanup schedule: %w", err)
	}

	c.Start()
	return c, nil
}
