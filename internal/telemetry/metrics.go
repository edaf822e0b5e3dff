// Package telemetry exposes the monitor's operational counters over
// Prometheus. Every pipeline stage reports into a Metrics instance; an
// optional HTTP server publishes them on /metrics.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the monitor's Prometheus instruments on a private registry,
// so repeated construction in tests never collides with the default one.
type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	samplesEnqueued  prometheus.Counter
	samplesPersisted prometheus.Counter
	samplesDropped   prometheus.Counter
	pollErrors       prometheus.Counter
	flushErrors      prometheus.Counter
	rollups          prometheus.Counter
	bufferLen        prometheus.Gauge
	degraded         prometheus.Gauge
}

// NewMetrics creates the instrument set on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		samplesEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "datamon_samples_enqueued_total",
			Help: "Per-process samples handed to the write buffer.",
		}),
		samplesPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "datamon_samples_persisted_total",
			Help: "Samples committed to storage.",
		}),
		samplesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "datamon_samples_dropped_total",
			Help: "Samples discarded due to buffer overflow or exhausted flush retries.",
		}),
		pollErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "datamon_poll_errors_total",
			Help: "Sampling ticks that failed to read OS state.",
		}),
		flushErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "datamon_flush_errors_total",
			Help: "Storage flushes that failed and were deferred for retry.",
		}),
		rollups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "datamon_rollups_total",
			Help: "Completed daily rollups.",
		}),
		bufferLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "datamon_buffer_samples",
			Help: "Samples currently waiting in the write buffer.",
		}),
		degraded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "datamon_degraded_mode",
			Help: "1 when per-process counters are estimated rather than measured.",
		}),
	}
	reg.MustRegister(
		m.samplesEnqueued, m.samplesPersisted, m.samplesDropped,
		m.pollErrors, m.flushErrors, m.rollups,
		m.bufferLen, m.degraded,
	)
	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return m
}

// AddEnqueued records n samples handed to the buffer.
func (m *Metrics) AddEnqueued(n int) { m.samplesEnqueued.Add(float64(n)) }

// AddPersisted records n samples committed to storage.
func (m *Metrics) AddPersisted(n int) { m.samplesPersisted.Add(float64(n)) }

// AddDropped records n samples discarded.
func (m *Metrics) AddDropped(n int) { m.samplesDropped.Add(float64(n)) }

// IncPollError records one failed sampling tick.
func (m *Metrics) IncPollError() { m.pollErrors.Inc() }

// IncFlushError records one failed flush.
func (m *Metrics) IncFlushError() { m.flushErrors.Inc() }

// IncRollup records one completed daily rollup.
func (m *Metrics) IncRollup() { m.rollups.Inc() }

// SetBufferLen tracks the write buffer depth.
func (m *Metrics) SetBufferLen(n int) { m.bufferLen.Set(float64(n)) }

// SetDegraded tracks whether the sampler is in degraded mode.
func (m *Metrics) SetDegraded(degraded bool) {
	if degraded {
		m.degraded.Set(1)
		return
	}
	m.degraded.Set(0)
}

// WritePrometheus serves the metrics in Prometheus exposition format.
func (m *Metrics) WritePrometheus(w http.ResponseWriter, r *http.Request) {
	m.handler.ServeHTTP(w, r)
}
