// Package sampler polls OS process and connection state at a fixed cadence
// and produces immutable per-tick snapshots of cumulative byte counters.
//
// The OS rarely exposes true per-process network byte counters to an
// unprivileged observer. When counters cannot be read the sampler degrades to
// a connection-based estimate and marks the snapshot accordingly, so
// consumers can surface a permissions warning instead of silently mixing
// estimated and measured numbers.
package sampler

import (
	"context"
	"time"

	apperrors "github.com/datamon/datamon/internal/errors"
	"github.com/datamon/datamon/internal/logging"
)

// DefaultPollTimeout bounds a single OS poll. It must stay below the tick
// interval so a slow poll can never stack ticks.
const DefaultPollTimeout = 800 * time.Millisecond

// ProcessStat is one process's observed state within a snapshot. Byte counts
// are cumulative since the process (or the estimator) started, never per-tick
// deltas; the attributor derives deltas from consecutive snapshots.
type ProcessStat struct {
	PID         int32
	Name        string
	BytesSent   uint64
	BytesRecv   uint64
	Connections int
	Established int
}

// Snapshot is an immutable point-in-time capture of observed processes.
// It is produced once per tick, never mutated, and superseded by the next
// snapshot.
type Snapshot struct {
	TakenAt time.Time
	// Degraded reports that at least one process's counters were estimated
	// rather than read, typically due to insufficient OS privileges.
	Degraded  bool
	Processes map[int32]ProcessStat
}

// EstimatePolicy tunes the degraded-mode heuristic. The estimate apportions
// the system-wide byte delta across processes by connection weight; an
// ESTABLISHED connection counts more than one in any other state. The exact
// formula is a policy knob, not a correctness contract.
type EstimatePolicy struct {
	EstablishedWeight int
	OtherWeight       int
}

// DefaultEstimatePolicy doubles the weight of ESTABLISHED connections.
func DefaultEstimatePolicy() EstimatePolicy {
	return EstimatePolicy{EstablishedWeight: 2, OtherWeight: 1}
}

// rawProc is one process as observed by the OS probe before estimation.
type rawProc struct {
	pid         int32
	name        string
	conns       int
	established int
	sent        uint64
	recv        uint64
	// counted reports that sent/recv hold real cumulative counters. When
	// false the sampler substitutes an estimate.
	counted bool
}

// osProbe abstracts the OS surface the sampler reads from, so tests can
// substitute deterministic fakes.
type osProbe interface {
	// Processes returns every process that currently holds at least one
	// inet connection.
	Processes(ctx context.Context) ([]rawProc, error)
	// SystemCounters returns host-wide cumulative sent/received bytes.
	SystemCounters(ctx context.Context) (sent, recv uint64, err error)
}

// Sampler produces one Snapshot per Tick. It is not safe for concurrent use;
// the pipeline drives it from a single goroutine.
type Sampler struct {
	probe   osProbe
	policy  EstimatePolicy
	timeout time.Duration
	logger  logging.Logger

	prev Snapshot

	// Degraded-mode accumulators: synthetic cumulative counters per PID,
	// pruned when a PID leaves the observed set.
	estimates map[int32][2]uint64
	prevSys   [2]uint64
	prevSysOK bool
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithTimeout overrides the per-poll timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Sampler) { s.timeout = d }
}

// WithEstimatePolicy overrides the degraded-mode heuristic weights.
func WithEstimatePolicy(p EstimatePolicy) Option {
	return func(s *Sampler) { s.policy = p }
}

// WithLogger sets the sampler's logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Sampler) { s.logger = l }
}

// withProbe substitutes the OS probe; used by tests.
func withProbe(p osProbe) Option {
	return func(s *Sampler) { s.probe = p }
}

// New creates a Sampler reading live OS state.
func New(opts ...Option) *Sampler {
	s := &Sampler{
		probe:     newGopsutilProbe(),
		policy:    DefaultEstimatePolicy(),
		timeout:   DefaultPollTimeout,
		logger:    logging.NewNopLogger(),
		estimates: make(map[int32][2]uint64),
		prev:      Snapshot{Processes: map[int32]ProcessStat{}},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Previous returns the most recent successfully produced snapshot.
func (s *Sampler) Previous() Snapshot { return s.prev }

// Tick captures one snapshot of per-process network state. It never blocks
// longer than the poll timeout. On any poll failure it returns the previous
// snapshot unchanged together with a transient error; the caller retries on
// the next tick. Tick has no side effects beyond its return value and the
// sampler's own bookkeeping.
func (s *Sampler) Tick(ctx context.Context) (Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type pollResult struct {
		procs []rawProc
		err   error
	}
	resultCh := make(chan pollResult, 1)
	go func() {
		procs, err := s.probe.Processes(ctx)
		resultCh <- pollResult{procs: procs, err: err}
	}()

	var procs []rawProc
	select {
	case <-ctx.Done():
		return s.prev, apperrors.TimeoutError{Operation: "sample", Limit: s.timeout}
	case res := <-resultCh:
		if res.err != nil {
			return s.prev, apperrors.PollError{Cause: res.err}
		}
		procs = res.procs
	}

	snap := s.build(ctx, procs)
	s.prev = snap
	return snap, nil
}

// build assembles a Snapshot from raw observations, substituting estimates
// for processes whose counters were unreadable.
func (s *Sampler) build(ctx context.Context, procs []rawProc) Snapshot {
	snap := Snapshot{
		TakenAt:   time.Now(),
		Processes: make(map[int32]ProcessStat, len(procs)),
	}

	var uncounted []rawProc
	for _, rp := range procs {
		if rp.counted {
			snap.Processes[rp.pid] = ProcessStat{
				PID:         rp.pid,
				Name:        rp.name,
				BytesSent:   rp.sent,
				BytesRecv:   rp.recv,
				Connections: rp.conns,
				Established: rp.established,
			}
			continue
		}
		uncounted = append(uncounted, rp)
	}

	if len(uncounted) > 0 {
		snap.Degraded = true
		s.estimate(ctx, uncounted, &snap)
	}

	s.pruneEstimates(snap.Processes)
	return snap
}

// estimate advances the synthetic cumulative counters for processes whose
// real counters were unreadable, apportioning the system-wide byte delta by
// connection weight.
func (s *Sampler) estimate(ctx context.Context, procs []rawProc, snap *Snapshot) {
	var sysDeltaSent, sysDeltaRecv uint64
	if sent, recv, err := s.probe.SystemCounters(ctx); err == nil {
		if s.prevSysOK {
			if sent >= s.prevSys[0] {
				sysDeltaSent = sent - s.prevSys[0]
			}
			if recv >= s.prevSys[1] {
				sysDeltaRecv = recv - s.prevSys[1]
			}
		}
		s.prevSys = [2]uint64{sent, recv}
		s.prevSysOK = true
	} else {
		s.logger.Debug("system counters unavailable", logging.Err(err))
	}

	totalWeight := 0
	weights := make([]int, len(procs))
	for i, rp := range procs {
		w := rp.established*s.policy.EstablishedWeight + (rp.conns-rp.established)*s.policy.OtherWeight
		if w <= 0 {
			w = s.policy.OtherWeight
		}
		weights[i] = w
		totalWeight += w
	}

	for i, rp := range procs {
		cum := s.estimates[rp.pid]
		if totalWeight > 0 {
			cum[0] += sysDeltaSent * uint64(weights[i]) / uint64(totalWeight)
			cum[1] += sysDeltaRecv * uint64(weights[i]) / uint64(totalWeight)
		}
		s.estimates[rp.pid] = cum

		snap.Processes[rp.pid] = ProcessStat{
			PID:         rp.pid,
			Name:        rp.name,
			BytesSent:   cum[0],
			BytesRecv:   cum[1],
			Connections: rp.conns,
			Established: rp.established,
		}
	}
}

// pruneEstimates drops accumulators for PIDs no longer observed. PIDs are
// recycled by the OS, so a stale accumulator must not leak onto a new
// process.
func (s *Sampler) pruneEstimates(current map[int32]ProcessStat) {
	for pid := range s.estimates {
		if _, ok := current[pid]; !ok {
			delete(s.estimates, pid)
		}
	}
}
