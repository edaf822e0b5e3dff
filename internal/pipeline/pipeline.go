// Package pipeline wires the sampler, attributor, and store into the
// monitor's three concurrent schedules: per-second sampling, periodic
// flushing, and daily maintenance. It also publishes live per-app rates for
// UI consumers.
package pipeline

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/datamon/datamon/internal/logging"
	"github.com/datamon/datamon/internal/sampler"
	"github.com/datamon/datamon/internal/store"
	"github.com/datamon/datamon/internal/telemetry"
)

// LiveRow is one application's byte rates over the latest sampling tick.
type LiveRow struct {
	PID         int32
	AppName     string
	ProcessName string
	BytesSent   uint64
	BytesRecv   uint64
}

// TotalBytes returns sent plus received.
func (r LiveRow) TotalBytes() uint64 { return r.BytesSent + r.BytesRecv }

// LiveSnapshot is the most recent tick's per-process rates, sorted by total
// volume descending. It is immutable once published.
type LiveSnapshot struct {
	TakenAt  time.Time
	Degraded bool
	Rows     []LiveRow
}

// ticker produces per-tick snapshots of cumulative counters.
type ticker interface {
	Tick(ctx context.Context) (sampler.Snapshot, error)
	Previous() sampler.Snapshot
}

// attributor derives per-tick samples from consecutive snapshots.
type attributor interface {
	Resolve(ctx context.Context, curr, prev sampler.Snapshot) []store.Sample
}

// storage is the slice of the store the pipeline drives.
type storage interface {
	Enqueue(samples []store.Sample) int
	Flush() (int, error)
	RollupDay(date string) error
	EnforceRetention(now time.Time) (int64, error)
	BufferLen() int
}

// Options configures a Pipeline.
type Options struct {
	SampleInterval  time.Duration
	FlushInterval   time.Duration
	MaintenanceHour int
	// Now substitutes the clock; nil means time.Now.
	Now func() time.Time
}

// Pipeline runs the monitor's schedules. Create with New, drive with Run.
type Pipeline struct {
	sampler    ticker
	attributor attributor
	store      storage
	metrics    *telemetry.Metrics
	logger     logging.Logger
	opts       Options
	now        func() time.Time

	latest   atomic.Pointer[LiveSnapshot]
	updates  chan *LiveSnapshot
	degraded atomic.Bool
}

// New assembles a Pipeline. metrics may not be nil; pass a fresh instance
// when telemetry is not exported.
func New(s ticker, a attributor, st storage, metrics *telemetry.Metrics, logger logging.Logger, opts Options) *Pipeline {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		sampler:    s,
		attributor: a,
		store:      st,
		metrics:    metrics,
		logger:     logger,
		opts:       opts,
		now:        now,
		updates:    make(chan *LiveSnapshot, 1),
	}
}

// Latest returns the most recently published live snapshot, or nil before
// the first tick.
func (p *Pipeline) Latest() *LiveSnapshot { return p.latest.Load() }

// Updates returns a single-slot channel carrying published snapshots. A slow
// consumer only ever sees the newest one; intermediate snapshots are
// overwritten, never queued.
func (p *Pipeline) Updates() <-chan *LiveSnapshot { return p.updates }

// DegradedMode reports whether the latest tick relied on estimated counters.
func (p *Pipeline) DegradedMode() bool { return p.degraded.Load() }

// Run drives all three schedules until ctx is canceled. On shutdown it
// performs one final best-effort flush so buffered samples are not lost.
// The returned error is nil on a clean shutdown.
func (p *Pipeline) Run(ctx context.Context) error {
	// Catch-up maintenance covers the case where the process was down at
	// the scheduled hour.
	p.runMaintenance()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.sampleLoop(ctx) })
	g.Go(func() error { return p.flushLoop(ctx) })
	g.Go(func() error { return p.maintenanceLoop(ctx) })
	err := g.Wait()

	if n, ferr := p.store.Flush(); ferr != nil {
		p.logger.Error("final flush failed", ferr, logging.Int("buffered", p.store.BufferLen()))
	} else if n > 0 {
		p.metrics.AddPersisted(n)
		p.logger.Info("final flush", logging.Int("samples", n))
	}

	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// sampleLoop takes one snapshot per interval, attributes usage, enqueues the
// samples, and publishes live rates. Poll failures are transient; the loop
// logs them and keeps its cadence.
func (p *Pipeline) sampleLoop(ctx context.Context) error {
	tick := time.NewTicker(p.opts.SampleInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}

		prev := p.sampler.Previous()
		snap, err := p.sampler.Tick(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.metrics.IncPollError()
			// Stale data counts as degraded until a poll succeeds again.
			p.degraded.Store(true)
			p.metrics.SetDegraded(true)
			p.logger.Warn("sampling tick failed", logging.Err(err))
			continue
		}

		p.degraded.Store(snap.Degraded)
		p.metrics.SetDegraded(snap.Degraded)

		samples := p.attributor.Resolve(ctx, snap, prev)
		if dropped := p.store.Enqueue(samples); dropped > 0 {
			p.metrics.AddDropped(dropped)
			p.logger.Warn("write buffer overflow", logging.Int("dropped", dropped))
		}
		p.metrics.AddEnqueued(len(samples))
		p.metrics.SetBufferLen(p.store.BufferLen())

		p.publish(buildLive(snap, samples))
	}
}

// flushLoop commits the write buffer on its own cadence, decoupling storage
// latency from sampling.
func (p *Pipeline) flushLoop(ctx context.Context) error {
	tick := time.NewTicker(p.opts.FlushInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}

		n, err := p.store.Flush()
		if err != nil {
			p.metrics.IncFlushError()
			p.logger.Warn("flush failed, samples retained for retry", logging.Err(err))
			continue
		}
		if n > 0 {
			p.metrics.AddPersisted(n)
		}
		p.metrics.SetBufferLen(p.store.BufferLen())
	}
}

// maintenanceLoop waits for the configured hour each day, then rolls up the
// previous day and enforces retention.
func (p *Pipeline) maintenanceLoop(ctx context.Context) error {
	for {
		next := nextMaintenance(p.now(), p.opts.MaintenanceHour)
		timer := time.NewTimer(next.Sub(p.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		p.runMaintenance()
	}
}

// runMaintenance rolls up yesterday's samples and prunes expired ones. Both
// operations are idempotent, so running twice for the same day is harmless.
func (p *Pipeline) runMaintenance() {
	now := p.now()
	yesterday := now.AddDate(0, 0, -1).Format(store.DateLayout)

	if err := p.store.RollupDay(yesterday); err != nil {
		p.logger.Error("daily rollup failed", err, logging.String("date", yesterday))
	} else {
		p.metrics.IncRollup()
	}

	if removed, err := p.store.EnforceRetention(now); err != nil {
		p.logger.Error("retention enforcement failed", err)
	} else if removed > 0 {
		p.logger.Info("retention enforced", logging.Int64("rows_removed", removed))
	}
}

// publish replaces the latest snapshot and refreshes the single-slot update
// channel without ever blocking the sampling loop.
func (p *Pipeline) publish(snap *LiveSnapshot) {
	p.latest.Store(snap)
	for {
		select {
		case p.updates <- snap:
			return
		default:
		}
		select {
		case <-p.updates:
		default:
		}
	}
}

// buildLive converts a tick's samples into display rows, newest rates sorted
// by total volume.
func buildLive(snap sampler.Snapshot, samples []store.Sample) *LiveSnapshot {
	rows := make([]LiveRow, 0, len(samples))
	for _, s := range samples {
		name := s.ProcessName
		if s.AppName != nil {
			name = *s.AppName
		}
		rows = append(rows, LiveRow{
			PID:         s.PID,
			AppName:     name,
			ProcessName: s.ProcessName,
			BytesSent:   s.BytesSent,
			BytesRecv:   s.BytesRecv,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		ti, tj := rows[i].TotalBytes(), rows[j].TotalBytes()
		if ti != tj {
			return ti > tj
		}
		return rows[i].AppName < rows[j].AppName
	})
	return &LiveSnapshot{
		TakenAt:  snap.TakenAt,
		Degraded: snap.Degraded,
		Rows:     rows,
	}
}

// nextMaintenance returns the next occurrence of hour in now's location.
func nextMaintenance(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
