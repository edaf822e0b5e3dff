package sampler

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeProbe is a deterministic osProbe for tests.
type fakeProbe struct {
	procs   []rawProc
	procErr error
	delay   time.Duration

	sysSent, sysRecv uint64
	sysErr           error
}

func (f *fakeProbe) Processes(ctx context.Context) ([]rawProc, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.procs, f.procErr
}

func (f *fakeProbe) SystemCounters(ctx context.Context) (uint64, uint64, error) {
	return f.sysSent, f.sysRecv, f.sysErr
}

// TestTick_MeasuredCounters verifies counted processes pass through untouched.
func TestTick_MeasuredCounters(t *testing.T) {
	probe := &fakeProbe{procs: []rawProc{
		{pid: 100, name: "chrome", conns: 3, established: 2, sent: 1000, recv: 2000, counted: true},
	}}
	s := New(withProbe(probe))

	snap, err := s.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if snap.Degraded {
		t.Error("snapshot should not be degraded when all counters are measured")
	}
	got, ok := snap.Processes[100]
	if !ok {
		t.Fatal("process 100 missing from snapshot")
	}
	if got.BytesSent != 1000 || got.BytesRecv != 2000 || got.Connections != 3 || got.Established != 2 {
		t.Errorf("ProcessStat = %+v", got)
	}
}

// TestTick_DegradedEstimate verifies the connection-weighted apportionment of
// the system-wide delta, and that estimated counters are cumulative.
func TestTick_DegradedEstimate(t *testing.T) {
	probe := &fakeProbe{
		procs: []rawProc{
			// weight 2*2 = 4 with the default policy
			{pid: 1, name: "heavy", conns: 2, established: 2},
			// weight 1
			{pid: 2, name: "light", conns: 1, established: 0},
		},
		sysSent: 1000, sysRecv: 1000,
	}
	s := New(withProbe(probe))

	// First tick establishes the system baseline: no delta to apportion yet.
	snap, err := s.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if !snap.Degraded {
		t.Error("snapshot should be degraded when counters are estimated")
	}
	if got := snap.Processes[1].BytesSent; got != 0 {
		t.Errorf("first tick estimate = %d, want 0 (baseline)", got)
	}

	// Second tick: system moved by 500/1000; heavy gets 4/5, light 1/5.
	probe.sysSent, probe.sysRecv = 1500, 2000
	snap, err = s.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if got := snap.Processes[1].BytesSent; got != 400 {
		t.Errorf("heavy BytesSent = %d, want 400", got)
	}
	if got := snap.Processes[2].BytesSent; got != 100 {
		t.Errorf("light BytesSent = %d, want 100", got)
	}
	if got := snap.Processes[1].BytesRecv; got != 800 {
		t.Errorf("heavy BytesRecv = %d, want 800", got)
	}

	// Third tick: estimates accumulate across ticks.
	probe.sysSent = 2000
	snap, err = s.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if got := snap.Processes[1].BytesSent; got != 800 {
		t.Errorf("heavy cumulative BytesSent = %d, want 800", got)
	}
}

// TestTick_PollError verifies the previous snapshot is returned unchanged on failure.
func TestTick_PollError(t *testing.T) {
	probe := &fakeProbe{procs: []rawProc{
		{pid: 7, name: "steady", conns: 1, sent: 50, recv: 50, counted: true},
	}}
	s := New(withProbe(probe))

	first, err := s.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	probe.procErr = errors.New("proc read failed")
	second, err := s.Tick(context.Background())
	if err == nil {
		t.Fatal("Tick() should return the poll error")
	}
	if !second.TakenAt.Equal(first.TakenAt) {
		t.Error("failed tick should return the previous snapshot unchanged")
	}
	if len(second.Processes) != 1 || second.Processes[7].BytesSent != 50 {
		t.Errorf("previous snapshot mutated: %+v", second.Processes)
	}
}

// TestTick_Timeout verifies a slow poll is abandoned within the bound.
func TestTick_Timeout(t *testing.T) {
	probe := &fakeProbe{delay: time.Second}
	s := New(withProbe(probe), WithTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := s.Tick(context.Background())
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("Tick() should time out")
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("Tick() blocked %v, want well under the tick interval", elapsed)
	}
}

// TestTick_EstimatorPruning verifies accumulators die with their PID, so a
// recycled PID starts from zero.
func TestTick_EstimatorPruning(t *testing.T) {
	probe := &fakeProbe{
		procs:   []rawProc{{pid: 9, name: "a", conns: 1}},
		sysSent: 100, sysRecv: 100,
	}
	s := New(withProbe(probe))

	if _, err := s.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	probe.sysSent, probe.sysRecv = 600, 600
	if _, err := s.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if s.estimates[9][0] == 0 {
		t.Fatal("accumulator should have advanced")
	}

	// PID 9 disappears for one tick.
	probe.procs = nil
	if _, err := s.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if _, ok := s.estimates[9]; ok {
		t.Error("accumulator for a vanished PID should be pruned")
	}

	// PID 9 returns (possibly a different process): estimate restarts.
	probe.procs = []rawProc{{pid: 9, name: "b", conns: 1}}
	snap, err := s.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if got := snap.Processes[9].BytesSent; got != 0 {
		t.Errorf("recycled PID estimate = %d, want fresh start at 0", got)
	}
}

// TestTick_MixedCountersMarkDegraded verifies one uncounted process degrades
// the whole snapshot.
func TestTick_MixedCountersMarkDegraded(t *testing.T) {
	probe := &fakeProbe{procs: []rawProc{
		{pid: 1, name: "measured", conns: 1, sent: 10, recv: 10, counted: true},
		{pid: 2, name: "estimated", conns: 1},
	}}
	s := New(withProbe(probe))

	snap, err := s.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if !snap.Degraded {
		t.Error("snapshot with any estimated process should be degraded")
	}
	if len(snap.Processes) != 2 {
		t.Errorf("Processes = %d, want 2", len(snap.Processes))
	}
}
