// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - New returns a Config populated with defaults.
//   - Load layers a YAML file and TIER_ environment variables on top.
//   - Errors wrap ErrLoadConfig or ErrInvalidConfig.
package config

import (
	"runtime"
	"time"

	"github.com/okian/tierd/internal/domain/model"
)

// Supported store drivers.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn warning error"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr" validate:"required"`

	// StoreDriver selects the progression store backend.
	StoreDriver string `koanf:"store_driver" validate:"oneof=memory sqlite postgres"`

	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string `koanf:"sqlite_path" validate:"required_if=StoreDriver sqlite"`

	// DatabaseURL is the connection string used by the postgres driver.
	DatabaseURL string `koanf:"database_url" validate:"required_if=StoreDriver postgres"`

	// BatchWorkers sets how many drivers a recompute pass evaluates in parallel.
	BatchWorkers int `koanf:"batch_workers" validate:"gt=0"`

	// BatchQueueSize bounds the driver IDs buffered ahead of the workers.
	BatchQueueSize int `koanf:"batch_queue_size" validate:"gt=0"`

	// BatchTimeoutMS is the deadline for one recompute pass. 0 disables it.
	BatchTimeoutMS int `koanf:"batch_timeout_ms" validate:"gte=0"`

	// RecomputeIntervalMS schedules recompute passes in-process. 0 disables it.
	RecomputeIntervalMS int `koanf:"recompute_interval_ms" validate:"gte=0"`

	// ShutdownTimeoutMS bounds graceful HTTP shutdown.
	ShutdownTimeoutMS int `koanf:"shutdown_timeout_ms" validate:"gt=0"`

	// DedupeSize sets how many evaluation submission IDs are remembered.
	DedupeSize int `koanf:"dedupe_size" validate:"gte=0"`

	// MetricsEnabled exports Prometheus collectors on /metrics.
	MetricsEnabled bool `koanf:"metrics_enabled"`

	// MetricsNamespace prefixes every metric name.
	MetricsNamespace string `koanf:"metrics_namespace" validate:"required,excludesall=-. /"`

	// MetricsRefreshMS sets how often driver gauges are refreshed.
	MetricsRefreshMS int `koanf:"metrics_refresh_ms" validate:"gt=0"`

	// MetricsLabels are constant labels attached to every metric. YAML only.
	MetricsLabels map[string]string `koanf:"metrics_labels"`

	// Ladder overrides the default tier ladder. YAML only.
	Ladder []model.Level `koanf:"ladder" validate:"dive"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		StoreDriver:         StoreMemory,
		SQLitePath:          "data/tierd.db",
		BatchWorkers:        runtime.NumCPU(),
		BatchQueueSize:      1024,
		BatchTimeoutMS:      60_000,
		RecomputeIntervalMS: 0,
		ShutdownTimeoutMS:   10_000,
		DedupeSize:          50_000,
		MetricsEnabled:      true,
		MetricsNamespace:    "tierd",
		MetricsRefreshMS:    10_000,
	}
}

// BatchTimeout returns the recompute deadline, zero when disabled.
func (c *Config) BatchTimeout() time.Duration {
	return time.Duration(c.BatchTimeoutMS) * time.Millisecond
}

// RecomputeInterval returns the scheduler period, zero when disabled.
func (c *Config) RecomputeInterval() time.Duration {
	return time.Duration(c.RecomputeIntervalMS) * time.Millisecond
}

// ShutdownTimeout returns the graceful shutdown bound.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMS) * time.Millisecond
}

// MetricsRefresh returns the gauge refresh period.
func (c *Config) MetricsRefresh() time.Duration {
	return time.Duration(c.MetricsRefreshMS) * time.Millisecond
}

// Levels returns the configured ladder, or the default one.
func (c *Config) Levels() []model.Level {
	if len(c.Ladder) == 0 {
		return model.DefaultLadder()
	}
	out := make([]model.Level, len(c.Ladder))
	copy(out, c.Ladder)
	return out
}

// StoreDSN returns the data source for the selected driver.
func (c *Config) StoreDSN() string {
	switch c.StoreDriver {
	case StoreSQLite:
		return c.SQLitePath
	case StorePostgres:
		return c.DatabaseURL
	default:
		return ""
	}
}
