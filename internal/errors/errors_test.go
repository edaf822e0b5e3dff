package apperrors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// TestConfigError tests ConfigError construction and message formatting.
func TestConfigError(t *testing.T) {
	t.Run("Error returns message", func(t *testing.T) {
		err := ConfigError{Message: "bad flag"}
		if err.Error() != "bad flag" {
			t.Errorf("Error() = %q, want %q", err.Error(), "bad flag")
		}
	})

	t.Run("NewConfigError formats message", func(t *testing.T) {
		err := NewConfigError("invalid retention: %d", -1)
		want := "invalid retention: -1"
		if err.Error() != want {
			t.Errorf("Error() = %q, want %q", err.Error(), want)
		}
	})

	t.Run("errors.As identifies ConfigError", func(t *testing.T) {
		err := NewConfigError("oops")
		var cfgErr ConfigError
		if !errors.As(err, &cfgErr) {
			t.Error("errors.As should identify ConfigError")
		}
	})
}

// TestStorageError tests StorageError wrapping and unwrapping.
func TestStorageError(t *testing.T) {
	cause := errors.New("database is locked")

	t.Run("Error names the operation", func(t *testing.T) {
		err := NewStorageError("flush", cause)
		want := "storage flush: database is locked"
		if err.Error() != want {
			t.Errorf("Error() = %q, want %q", err.Error(), want)
		}
	})

	t.Run("Unwrap returns the cause", func(t *testing.T) {
		err := NewStorageError("rollup", cause)
		if !errors.Is(err, cause) {
			t.Error("errors.Is should find the wrapped cause")
		}
	})

	t.Run("nil cause yields nil error", func(t *testing.T) {
		if err := NewStorageError("query", nil); err != nil {
			t.Errorf("NewStorageError(nil) = %v, want nil", err)
		}
	})
}

// TestPollError tests PollError message and unwrapping.
func TestPollError(t *testing.T) {
	cause := errors.New("permission denied")
	err := PollError{Cause: cause}

	if err.Error() != "os poll: permission denied" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}

// TestTimeoutError tests the timeout error message.
func TestTimeoutError(t *testing.T) {
	err := TimeoutError{Operation: "sample", Limit: 800 * time.Millisecond}
	want := `operation "sample" timed out after 800ms`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

// TestValidationError tests the validation error message.
func TestValidationError(t *testing.T) {
	err := ValidationError{Field: "window", Message: "must be non-negative"}
	want := `validation error for "window": must be non-negative`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

// TestWrapError tests error wrapping behavior.
func TestWrapError(t *testing.T) {
	t.Run("wraps with context", func(t *testing.T) {
		cause := errors.New("disk full")
		err := WrapError(cause, "flushing %d samples", 42)
		want := "flushing 42 samples: disk full"
		if err.Error() != want {
			t.Errorf("Error() = %q, want %q", err.Error(), want)
		}
		if !errors.Is(err, cause) {
			t.Error("wrapped error should match errors.Is")
		}
	})

	t.Run("nil error returns nil", func(t *testing.T) {
		if err := WrapError(nil, "context"); err != nil {
			t.Errorf("WrapError(nil) = %v, want nil", err)
		}
	})
}

// TestIsContextError tests context error detection.
func TestIsContextError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"canceled", context.Canceled, true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"wrapped canceled", fmt.Errorf("tick: %w", context.Canceled), true},
		{"other error", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsContextError(tt.err); got != tt.want {
				t.Errorf("IsContextError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
