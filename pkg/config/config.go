package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/curateio/curate/pkg/observability"
)

// Duration wraps time.Duration so YAML files can use values like "30m"
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server"`

	// Database configuration
	Database DatabaseConfig `yaml:"database"`

	// Workspace behavior
	Workspace WorkspaceConfig `yaml:"workspace"`

	// Background cleanup jobs
	Cleanup CleanupConfig `yaml:"cleanup"`

	// Observability configuration
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string   `yaml:"host"`
	Port            string   `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	IdleTimeout     Duration `yaml:"idle_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL          string   `yaml:"url"`
	MaxOpenConns int      `yaml:"max_open_conns"`
	MaxIdleConns int      `yaml:"max_idle_conns"`
	ConnLifetime Duration `yaml:"conn_lifetime"`
}

// WorkspaceConfig holds workspace authorization behavior settings
type WorkspaceConfig struct {
	// MaxLockTime is how long an advisory lock stays live without a heartbeat
	MaxLockTime Duration `yaml:"max_lock_time"`
	// InvitationTTL is how long a pending-user invitation stays redeemable
	InvitationTTL Duration `yaml:"invitation_ttl"`
	// HideForbidden reports forbidden reads as not-found
	HideForbidden bool `yaml:"hide_forbidden"`
}

// CleanupConfig holds background job schedules (cron expressions)
type CleanupConfig struct {
	InvitationSchedule string `yaml:"invitation_schedule"`
	TokenSchedule      string `yaml:"token_schedule"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel     observability.LogLevel `yaml:"-"`
	LogLevelName string                 `yaml:"log_level"`

	// Metrics
	MetricsEnabled bool `yaml:"metrics_enabled"`
}

// LoadConfig loads configuration from an optional YAML file (CURATE_CONFIG_FILE)
// with environment variable overrides
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CURATE_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	cfg.Observability.LogLevel = observability.ParseLevel(cfg.Observability.LogLevelName)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(15 * time.Second),
			IdleTimeout:     Duration(60 * time.Second),
			ShutdownTimeout: Duration(30 * time.Second),
			HealthPort:      "9090",
		},
		Database: DatabaseConfig{
			MaxOpenConns: 25,
			MaxIdleConns: 5,
			ConnLifetime: Duration(5 * time.Minute),
		},
		Workspace: WorkspaceConfig{
			MaxLockTime:   Duration(30 * time.Minute),
			InvitationTTL: Duration(14 * 24 * time.Hour),
			HideForbidden: true,
		},
		Cleanup: CleanupConfig{
			InvitationSchedule: "@hourly",
			TokenSchedule:      "@hourly",
		},
		Observability: ObservabilityConfig{
			LogLevelName:   "info",
			MetricsEnabled: true,
		},
	}
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides file/default values with CURATE_* environment variables
func (c *Config) applyEnv() {
	c.Server.Host = getEnv("CURATE_HOST", c.Server.Host)
	c.Server.Port = getEnv("CURATE_PORT", c.Server.Port)
	c.Server.ReadTimeout = getEnvDuration("CURATE_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("CURATE_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvDuration("CURATE_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.ShutdownTimeout = getEnvDuration("CURATE_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.HealthPort = getEnv("CURATE_HEALTH_PORT", c.Server.HealthPort)

	c.Database.URL = getEnv("CURATE_DATABASE_URL", c.Database.URL)
	c.Database.MaxOpenConns = getEnvInt("CURATE_DATABASE_MAX_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = getEnvInt("CURATE_DATABASE_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.ConnLifetime = getEnvDuration("CURATE_DATABASE_CONN_LIFETIME", c.Database.ConnLifetime)

	c.Workspace.MaxLockTime = getEnvDuration("CURATE_MAX_LOCK_TIME", c.Workspace.MaxLockTime)
	c.Workspace.InvitationTTL = getEnvDuration("CURATE_INVITATION_TTL", c.Workspace.InvitationTTL)
	c.Workspace.HideForbidden = getEnvBool("CURATE_HIDE_FORBIDDEN", c.Workspace.HideForbidden)

	c.Cleanup.InvitationSchedule = getEnv("CURATE_INVITATION_CLEANUP_SCHEDULE", c.Cleanup.InvitationSchedule)
	c.Cleanup.TokenSchedule = getEnv("CURATE_TOKEN_CLEANUP_SCHEDULE", c.Cleanup.TokenSchedule)

	c.Observability.LogLevelName = getEnv("CURATE_LOG_LEVEL", c.Observability.LogLevelName)
	c.Observability.MetricsEnabled = getEnvBool("CURATE_METRICS_ENABLED", c.Observability.MetricsEnabled)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("database URL is required")
	}

	if c.Workspace.MaxLockTime <= 0 {
		return fmt.Errorf("max lock time must be positive")
	}
	if c.Workspace.InvitationTTL <= 0 {
		return fmt.Errorf("invitation TTL must be positive")
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue Duration) Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return Duration(duration)
		}
	}
	return defaultValue
}
