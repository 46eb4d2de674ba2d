// Package observability provides structured logging, Prometheus metrics, and health checks.
//
// # Overview
//
// This package centralizes observability infrastructure including JSON logging,
// metrics collection, health probes, graceful shutdown, and panic recovery.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.Infof("Server started on %s", addr)
//
// Context-aware logging:
//
//	logger.WithField("request_id", reqID).Error("Request failed")
//
// # Prometheus Metrics
//
// Initialize metrics:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.HTTPRequestsTotal.WithLabelValues("GET", "/projects", "200").Inc()
//	metrics.LockAcquisitionsTotal.WithLabelValues("project", "acquired").Inc()
//
// Business metrics:
//
//	metrics.ProjectsTotal.Set(float64(count))
//	metrics.PendingUsersTotal.Set(float64(pending))
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, version)
//	observability.RegisterHealthRoutes(mux, checker)
//	// /health/live always answers 200; /health/ready pings the database
//
// # Graceful Shutdown
//
//	manager := observability.NewShutdownManager(logger, server, 30*time.Second)
//	manager.RegisterShutdownFunc(func(ctx context.Context) error { return db.Close() })
//	manager.WaitForShutdown()
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/httputil: Request logging middleware
package observability
