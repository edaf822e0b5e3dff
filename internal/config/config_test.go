package config

import (
	"errors"
	"io"
	"testing"
	"time"

	apperrors "github.com/datamon/datamon/internal/errors"
)

// TestParseConfig_Defaults verifies built-in defaults survive an empty command line.
func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := ParseConfig("datamon", nil, io.Discard)
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}

	if cfg.DBPath != DefaultDBPath {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, DefaultDBPath)
	}
	if cfg.RetentionDays != DefaultRetentionDays {
		t.Errorf("RetentionDays = %d, want %d", cfg.RetentionDays, DefaultRetentionDays)
	}
	if cfg.SampleInterval != DefaultSampleInterval {
		t.Errorf("SampleInterval = %v, want %v", cfg.SampleInterval, DefaultSampleInterval)
	}
	if cfg.FlushInterval != DefaultFlushInterval {
		t.Errorf("FlushInterval = %v, want %v", cfg.FlushInterval, DefaultFlushInterval)
	}
	if cfg.BufferCap == 0 {
		t.Error("BufferCap should be derived, got 0")
	}
}

// TestParseConfig_Flags verifies explicit flags are honored.
func TestParseConfig_Flags(t *testing.T) {
	args := []string{
		"-db", "/tmp/test.db",
		"-retention-days", "30",
		"-sample-interval", "2s",
		"-flush-interval", "10s",
		"-topk", "8",
		"-tui",
	}
	cfg, err := ParseConfig("datamon", args, io.Discard)
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}

	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.RetentionDays != 30 {
		t.Errorf("RetentionDays = %d", cfg.RetentionDays)
	}
	if cfg.SampleInterval != 2*time.Second {
		t.Errorf("SampleInterval = %v", cfg.SampleInterval)
	}
	if cfg.FlushInterval != 10*time.Second {
		t.Errorf("FlushInterval = %v", cfg.FlushInterval)
	}
	if cfg.TopK != 8 {
		t.Errorf("TopK = %d", cfg.TopK)
	}
	if !cfg.TUI {
		t.Error("TUI should be enabled")
	}
}

// TestParseConfig_EnvOverrides verifies env values apply only when the flag is unset.
func TestParseConfig_EnvOverrides(t *testing.T) {
	t.Run("env applies when flag unset", func(t *testing.T) {
		t.Setenv(EnvPrefix+"RETENTION_DAYS", "14")
		t.Setenv(EnvPrefix+"FLUSH_INTERVAL", "15s")

		cfg, err := ParseConfig("datamon", nil, io.Discard)
		if err != nil {
			t.Fatalf("ParseConfig() error = %v", err)
		}
		if cfg.RetentionDays != 14 {
			t.Errorf("RetentionDays = %d, want 14", cfg.RetentionDays)
		}
		if cfg.FlushInterval != 15*time.Second {
			t.Errorf("FlushInterval = %v, want 15s", cfg.FlushInterval)
		}
	})

	t.Run("flag wins over env", func(t *testing.T) {
		t.Setenv(EnvPrefix+"RETENTION_DAYS", "14")

		cfg, err := ParseConfig("datamon", []string{"-retention-days", "60"}, io.Discard)
		if err != nil {
			t.Fatalf("ParseConfig() error = %v", err)
		}
		if cfg.RetentionDays != 60 {
			t.Errorf("RetentionDays = %d, want 60", cfg.RetentionDays)
		}
	})

	t.Run("invalid env value is ignored", func(t *testing.T) {
		t.Setenv(EnvPrefix+"RETENTION_DAYS", "not-a-number")

		cfg, err := ParseConfig("datamon", nil, io.Discard)
		if err != nil {
			t.Fatalf("ParseConfig() error = %v", err)
		}
		if cfg.RetentionDays != DefaultRetentionDays {
			t.Errorf("RetentionDays = %d, want default %d", cfg.RetentionDays, DefaultRetentionDays)
		}
	})

	t.Run("bool env accepts yes", func(t *testing.T) {
		t.Setenv(EnvPrefix+"TUI", "yes")

		cfg, err := ParseConfig("datamon", nil, io.Discard)
		if err != nil {
			t.Fatalf("ParseConfig() error = %v", err)
		}
		if !cfg.TUI {
			t.Error("TUI should be enabled via env")
		}
	})
}

// TestParseConfig_Validation verifies invalid configurations are rejected.
func TestParseConfig_Validation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"zero retention", []string{"-retention-days", "0"}},
		{"negative retention", []string{"-retention-days", "-5"}},
		{"flush shorter than sample", []string{"-sample-interval", "5s", "-flush-interval", "1s"}},
		{"bad maintenance hour", []string{"-maintenance-hour", "24"}},
		{"zero topk", []string{"-topk", "0"}},
		{"empty db path", []string{"-db", ""}},
		{"positional args", []string{"extra"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig("datamon", tt.args, io.Discard)
			if err == nil {
				t.Fatal("ParseConfig() should have failed")
			}
			var cfgErr apperrors.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Errorf("error should be a ConfigError, got %T: %v", err, err)
			}
		})
	}
}

// TestAlertRateBytes verifies MB/s to bytes/s conversion.
func TestAlertRateBytes(t *testing.T) {
	cfg := AppConfig{AlertRateMB: 5}
	if got := cfg.AlertRateBytes(); got != 5*1024*1024 {
		t.Errorf("AlertRateBytes() = %g, want %d", got, 5*1024*1024)
	}
}
