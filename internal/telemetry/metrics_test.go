package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/datamon/datamon/internal/logging"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
	if m.handler == nil {
		t.Error("Metrics.handler should be initialized")
	}
	// A second instance must not collide with the first; each carries its
	// own registry.
	if m2 := NewMetrics(); m2 == nil {
		t.Fatal("second NewMetrics returned nil")
	}
}

func TestMetrics_WritePrometheus(t *testing.T) {
	m := NewMetrics()
	m.AddEnqueued(12)
	m.AddPersisted(10)
	m.AddDropped(2)
	m.IncFlushError()
	m.IncRollup()
	m.SetBufferLen(7)
	m.SetDegraded(true)

	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	rec := httptest.NewRecorder()
	m.WritePrometheus(rec, req)

	body := rec.Body.String()
	for _, want := range []string{
		"datamon_samples_enqueued_total 12",
		"datamon_samples_persisted_total 10",
		"datamon_samples_dropped_total 2",
		"datamon_flush_errors_total 1",
		"datamon_rollups_total 1",
		"datamon_buffer_samples 7",
		"datamon_degraded_mode 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
	if !strings.Contains(body, "go_") {
		t.Error("metrics output should contain Go runtime metrics")
	}
}

func TestMetrics_DegradedToggle(t *testing.T) {
	m := NewMetrics()
	m.SetDegraded(true)
	m.SetDegraded(false)

	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	rec := httptest.NewRecorder()
	m.WritePrometheus(rec, req)

	if !strings.Contains(rec.Body.String(), "datamon_degraded_mode 0") {
		t.Error("degraded gauge should reset to 0")
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	s := NewServer("127.0.0.1:0", NewMetrics(), logging.NewNopLogger())

	req := httptest.NewRequest(http.MethodPost, "/metrics", http.NoBody)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestServer_RunShutsDownOnCancel(t *testing.T) {
	s := NewServer("127.0.0.1:0", NewMetrics(), logging.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, want nil on clean shutdown", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}
