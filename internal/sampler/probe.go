package sampler

import (
	"context"

	gopsnet "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"
)

// gopsutilProbe reads live OS state through gopsutil. Only processes holding
// at least one inet connection are reported.
type gopsutilProbe struct{}

func newGopsutilProbe() *gopsutilProbe { return &gopsutilProbe{} }

// Processes enumerates processes with inet connections. Per-process I/O
// counters serve as the cumulative byte source where readable. Processes
// that vanish mid-scan or deny access are skipped or reported uncounted
// rather than failing the poll.
func (g *gopsutilProbe) Processes(ctx context.Context) ([]rawProc, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]rawProc, 0, 32)
	for _, p := range procs {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		conns, err := p.ConnectionsWithContext(ctx)
		if err != nil || len(conns) == 0 {
			// No connections, process gone, or access denied: not observed.
			continue
		}

		rp := rawProc{pid: p.Pid, conns: len(conns)}
		for _, c := range conns {
			if c.Status == "ESTABLISHED" {
				rp.established++
			}
		}

		if name, err := p.NameWithContext(ctx); err == nil {
			rp.name = name
		} else {
			rp.name = "unknown"
		}

		if io, err := p.IOCountersWithContext(ctx); err == nil && io != nil {
			rp.sent = io.WriteBytes
			rp.recv = io.ReadBytes
			rp.counted = true
		}

		out = append(out, rp)
	}
	return out, nil
}

// SystemCounters returns host-wide cumulative sent/received bytes summed
// across interfaces.
func (g *gopsutilProbe) SystemCounters(ctx context.Context) (uint64, uint64, error) {
	counters, err := gopsnet.IOCountersWithContext(ctx, false)
	if err != nil {
		return 0, 0, err
	}
	if len(counters) == 0 {
		return 0, 0, nil
	}
	return counters[0].BytesSent, counters[0].BytesRecv, nil
}
