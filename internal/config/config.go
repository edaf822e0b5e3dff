// Package config defines the application configuration and its resolution
// chain: CLI flags take precedence over environment variables, which take
// precedence over built-in defaults.
package config

import (
	"flag"
	"fmt"
	"io"
	"time"

	apperrors "github.com/datamon/datamon/internal/errors"
)

// EnvPrefix is prepended to every environment variable key.
const EnvPrefix = "DATAMON_"

// Default configuration values.
const (
	DefaultDBPath          = "data/usage.db"
	DefaultRetentionDays   = 90
	DefaultSampleInterval  = 1 * time.Second
	DefaultFlushInterval   = 5 * time.Second
	DefaultMaintenanceHour = 2
	DefaultFlushRetries    = 3
	DefaultTopK            = 5
	DefaultAlertRateMB     = 5.0
)

// AppConfig holds the resolved application configuration.
type AppConfig struct {
	// DBPath is the SQLite database file path.
	DBPath string
	// RetentionDays is the sample retention horizon in days.
	RetentionDays int
	// SampleInterval is the sampler tick period.
	SampleInterval time.Duration
	// FlushInterval is the store flush period.
	FlushInterval time.Duration
	// MaintenanceHour is the local hour (0-23) at which the daily rollup and
	// retention jobs run.
	MaintenanceHour int
	// BufferCap caps the in-memory write buffer; 0 derives it from the
	// flush/sample interval ratio.
	BufferCap int
	// FlushRetries bounds how many flush ticks a failed batch is retried
	// before it is dropped.
	FlushRetries int
	// TopK is the number of processes shown in live views and log lines.
	TopK int
	// TUI enables the interactive terminal dashboard.
	TUI bool
	// MetricsAddr is the listen address for the Prometheus endpoint; empty
	// disables it.
	MetricsAddr string
	// AlertRateMB is the advisory engine's high-bandwidth threshold in MB/s.
	AlertRateMB float64
	// Verbose enables debug-level logging.
	Verbose bool
	// Quiet suppresses periodic usage log lines in headless mode.
	Quiet bool
}

// ParseConfig parses command-line arguments into an AppConfig, applies
// environment variable overrides for flags not explicitly set, and validates
// the result.
func ParseConfig(programName string, args []string, errWriter io.Writer) (AppConfig, error) {
	fs := flag.NewFlagSet(programName, flag.ContinueOnError)
	fs.SetOutput(errWriter)

	cfg := AppConfig{}
	fs.StringVar(&cfg.DBPath, "db", getEnvString("DB", DefaultDBPath), "SQLite database file path")
	fs.IntVar(&cfg.RetentionDays, "retention-days", DefaultRetentionDays, "days to keep raw samples (daily summaries are kept forever)")
	fs.DurationVar(&cfg.SampleInterval, "sample-interval", DefaultSampleInterval, "process sampling period (e.g. 1s)")
	fs.DurationVar(&cfg.FlushInterval, "flush-interval", DefaultFlushInterval, "store flush period (e.g. 5s)")
	fs.IntVar(&cfg.MaintenanceHour, "maintenance-hour", DefaultMaintenanceHour, "local hour (0-23) for daily rollup and retention")
	fs.IntVar(&cfg.BufferCap, "buffer-cap", 0, "max buffered samples before oldest are dropped (0 = derived)")
	fs.IntVar(&cfg.FlushRetries, "flush-retries", DefaultFlushRetries, "flush attempts before a batch is dropped")
	fs.IntVar(&cfg.TopK, "topk", DefaultTopK, "number of processes shown per view")
	fs.BoolVar(&cfg.TUI, "tui", false, "launch interactive terminal dashboard")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "Prometheus listen address (empty disables)")
	fs.Float64Var(&cfg.AlertRateMB, "alert-rate", DefaultAlertRateMB, "advisory high-bandwidth threshold in MB/s")
	fs.BoolVar(&cfg.Verbose, "v", false, "enable debug logging")
	fs.BoolVar(&cfg.Quiet, "quiet", false, "suppress periodic usage log lines")

	if err := fs.Parse(args); err != nil {
		return AppConfig{}, err
	}
	if fs.NArg() > 0 {
		return AppConfig{}, apperrors.NewConfigError("unexpected arguments: %v", fs.Args())
	}

	applyEnvOverrides(&cfg, fs)
	cfg = applyDerivedDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// applyDerivedDefaults fills values that depend on other settings. The buffer
// cap defaults to ten flush intervals' worth of ticks times a nominal process
// count, bounding memory when the store is unavailable.
func applyDerivedDefaults(cfg AppConfig) AppConfig {
	if cfg.BufferCap == 0 {
		ticksPerFlush := int(cfg.FlushInterval / cfg.SampleInterval)
		if ticksPerFlush < 1 {
			ticksPerFlush = 1
		}
		const nominalProcs = 128
		cfg.BufferCap = 10 * ticksPerFlush * nominalProcs
	}
	return cfg
}

// Validate checks the configuration for invalid values.
func Validate(cfg AppConfig) error {
	if cfg.DBPath == "" {
		return apperrors.NewConfigError("db path must not be empty")
	}
	if cfg.RetentionDays <= 0 {
		return apperrors.NewConfigError("retention-days must be positive, got %d", cfg.RetentionDays)
	}
	if cfg.SampleInterval <= 0 {
		return apperrors.NewConfigError("sample-interval must be positive, got %v", cfg.SampleInterval)
	}
	if cfg.FlushInterval < cfg.SampleInterval {
		return apperrors.NewConfigError("flush-interval (%v) must be >= sample-interval (%v)", cfg.FlushInterval, cfg.SampleInterval)
	}
	if cfg.MaintenanceHour < 0 || cfg.MaintenanceHour > 23 {
		return apperrors.NewConfigError("maintenance-hour must be in [0,23], got %d", cfg.MaintenanceHour)
	}
	if cfg.FlushRetries < 0 {
		return apperrors.NewConfigError("flush-retries must be non-negative, got %d", cfg.FlushRetries)
	}
	if cfg.TopK <= 0 {
		return apperrors.NewConfigError("topk must be positive, got %d", cfg.TopK)
	}
	if cfg.AlertRateMB <= 0 {
		return apperrors.NewConfigError("alert-rate must be positive, got %g", cfg.AlertRateMB)
	}
	return nil
}

// AlertRateBytes returns the advisory threshold converted to bytes per second.
func (c AppConfig) AlertRateBytes() float64 {
	return c.AlertRateMB * 1024 * 1024
}

// String renders the configuration for log output.
func (c AppConfig) String() string {
	return fmt.Sprintf("db=%s retention=%dd sample=%v flush=%v maintenance=%02d:00 topk=%d",
		c.DBPath, c.RetentionDays, c.SampleInterval, c.FlushInterval, c.MaintenanceHour, c.TopK)
}
