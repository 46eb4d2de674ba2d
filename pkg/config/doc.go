// Package config provides application configuration from a YAML file and environment variables.
//
// # Overview
//
// This package loads configuration with sensible defaults, optionally merges a
// YAML file named by CURATE_CONFIG_FILE, then applies CURATE_* environment
// variable overrides. Environment always wins over the file.
//
// # Configuration Structure
//
// Server settings:
//
//	CURATE_HOST="0.0.0.0"
//	CURATE_PORT="8080"
//	CURATE_HEALTH_PORT="9090"
//	CURATE_READ_TIMEOUT="15s"
//	CURATE_WRITE_TIMEOUT="15s"
//	CURATE_SHUTDOWN_TIMEOUT="30s"
//
// Database settings:
//
//	CURATE_DATABASE_URL="postgres://localhost/curate"
//	CURATE_DATABASE_MAX_CONNS="25"
//	CURATE_DATABASE_IDLE_CONNS="5"
//
// Workspace settings:
//
//	CURATE_MAX_LOCK_TIME="30m"       # advisory lock staleness cutoff
//	CURATE_INVITATION_TTL="336h"     # pending-user invitation lifetime
//	CURATE_HIDE_FORBIDDEN="true"     # report forbidden reads as not-found
//
// Cleanup settings (cron expressions):
//
//	CURATE_INVITATION_CLEANUP_SCHEDULE="@hourly"
//	CURATE_TOKEN_CLEANUP_SCHEDULE="@hourly"
//
// Observability settings:
//
//	CURATE_LOG_LEVEL="info"  # debug, info, warn, error
//	CURATE_METRICS_ENABLED="true"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Lock timeout: %v\n", cfg.Workspace.MaxLockTime.Std())
//
// # Related Packages
//
//   - pkg/observability: Uses observability configuration
//   - pkg/locks: Uses the max lock time setting
package config
