// Package attributor turns pairs of consecutive sampler snapshots into
// per-process usage samples. It owns delta computation (cumulative counters
// in, per-tick deltas out) and the PID to application-name mapping.
package attributor

import (
	"context"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/datamon/datamon/internal/logging"
	"github.com/datamon/datamon/internal/sampler"
	"github.com/datamon/datamon/internal/store"
)

// nameResolver maps a PID to a friendly application name. Resolution may be
// slow (it can touch the OS), so the attributor memoizes per PID.
type nameResolver interface {
	AppName(ctx context.Context, pid int32) (string, bool)
}

// exeResolver derives the application name from the process executable path.
type exeResolver struct{}

func (exeResolver) AppName(ctx context.Context, pid int32) (string, bool) {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return "", false
	}
	exe, err := p.ExeWithContext(ctx)
	if err != nil || exe == "" {
		return "", false
	}
	name := cleanAppName(filepath.Base(exe))
	if name == "" {
		return "", false
	}
	return name, true
}

// cleanAppName normalizes an executable basename into a display name:
// the extension is stripped and the first letter upper-cased.
func cleanAppName(base string) string {
	name := strings.TrimSuffix(base, filepath.Ext(base))
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	runes := []rune(name)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// Attributor converts snapshots into store samples. It is not safe for
// concurrent use; the pipeline drives it from the sampling goroutine.
type Attributor struct {
	resolver nameResolver
	logger   logging.Logger

	// names memoizes PID to app-name resolution. An entry with nil value
	// records a failed lookup so it is not retried every tick.
	names map[int32]*string
}

// Option configures an Attributor.
type Option func(*Attributor)

// WithLogger sets the attributor's logger.
func WithLogger(l logging.Logger) Option {
	return func(a *Attributor) { a.logger = l }
}

// withResolver substitutes the name resolver; used by tests.
func withResolver(r nameResolver) Option {
	return func(a *Attributor) { a.resolver = r }
}

// New creates an Attributor resolving names from live OS state.
func New(opts ...Option) *Attributor {
	a := &Attributor{
		resolver: exeResolver{},
		logger:   logging.NewNopLogger(),
		names:    make(map[int32]*string),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Resolve computes per-process deltas between two consecutive snapshots and
// returns one sample per process in curr. A process absent from prev (new or
// freshly observed) contributes a zero-delta sample this tick; its first real
// delta arrives on the next one. A counter that moved backwards (process
// restart reusing the PID, or counter reset) is clamped to zero rather than
// poisoning aggregates with a huge unsigned wrap.
func (a *Attributor) Resolve(ctx context.Context, curr, prev sampler.Snapshot) []store.Sample {
	samples := make([]store.Sample, 0, len(curr.Processes))
	ts := curr.TakenAt.Unix()
	if curr.TakenAt.IsZero() {
		ts = time.Now().Unix()
	}

	for pid, stat := range curr.Processes {
		var deltaSent, deltaRecv uint64
		if prevStat, ok := prev.Processes[pid]; ok {
			deltaSent = clampDelta(pid, "sent", stat.BytesSent, prevStat.BytesSent, a.logger)
			deltaRecv = clampDelta(pid, "recv", stat.BytesRecv, prevStat.BytesRecv, a.logger)
		}

		samples = append(samples, store.Sample{
			Timestamp:   ts,
			PID:         pid,
			ProcessName: stat.Name,
			AppName:     a.appName(ctx, pid),
			BytesSent:   deltaSent,
			BytesRecv:   deltaRecv,
		})
	}

	a.pruneNames(curr.Processes)
	return samples
}

// clampDelta returns curr-prev, or zero when the counter moved backwards.
func clampDelta(pid int32, counter string, curr, prev uint64, logger logging.Logger) uint64 {
	if curr < prev {
		logger.Debug("counter moved backwards, clamping delta to zero",
			logging.Int("pid", int(pid)),
			logging.String("counter", counter),
			logging.Uint64("prev", prev),
			logging.Uint64("curr", curr))
		return 0
	}
	return curr - prev
}

// appName returns the memoized application name for pid, resolving it on
// first sight. Failed lookups are memoized too, as nil.
func (a *Attributor) appName(ctx context.Context, pid int32) *string {
	if name, ok := a.names[pid]; ok {
		return name
	}
	var memo *string
	if name, ok := a.resolver.AppName(ctx, pid); ok {
		memo = &name
	}
	a.names[pid] = memo
	return memo
}

// pruneNames drops memoized names for PIDs no longer observed. PIDs are
// recycled, so a stale mapping must not attach an old app's name to a new
// process.
func (a *Attributor) pruneNames(current map[int32]sampler.ProcessStat) {
	for pid := range a.names {
		if _, ok := current[pid]; !ok {
			delete(a.names, pid)
		}
	}
}
