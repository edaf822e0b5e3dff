// Package query is the read-side facade over the usage store. It translates
// raw rows into the shapes consumers want: per-app aggregates over a recent
// window, daily summaries, and percentage shares.
package query

import (
	"sort"

	"github.com/datamon/datamon/internal/store"
)

// AppUsage is one application's aggregated usage over a query window.
type AppUsage struct {
	AppName   string
	BytesSent uint64
	BytesRecv uint64
	// Share is this app's fraction of the window's total byte volume,
	// in [0, 100]. Zero total volume yields zero shares.
	Share float64
}

// TotalBytes returns sent plus received.
func (u AppUsage) TotalBytes() uint64 { return u.BytesSent + u.BytesRecv }

// reader is the slice of the store the facade needs.
type reader interface {
	QueryRecent(windowSeconds int) ([]store.Sample, error)
	QuerySummary(date string) ([]store.DailySummary, error)
	AvailableDates() ([]string, error)
}

// Facade answers read queries against a usage store. It is stateless and
// safe for concurrent use if the underlying store is.
type Facade struct {
	store reader
}

// New creates a Facade over the given store.
func New(s reader) *Facade {
	return &Facade{store: s}
}

// Recent aggregates committed samples from the last windowSeconds by
// application, highest total volume first. Samples without a resolved app
// name group under their process name.
func (f *Facade) Recent(windowSeconds int) ([]AppUsage, error) {
	samples, err := f.store.QueryRecent(windowSeconds)
	if err != nil {
		return nil, err
	}

	byApp := make(map[string]*AppUsage)
	for _, s := range samples {
		name := s.ProcessName
		if s.AppName != nil {
			name = *s.AppName
		}
		u, ok := byApp[name]
		if !ok {
			u = &AppUsage{AppName: name}
			byApp[name] = u
		}
		u.BytesSent += s.BytesSent
		u.BytesRecv += s.BytesRecv
	}

	usage := make([]AppUsage, 0, len(byApp))
	for _, u := range byApp {
		usage = append(usage, *u)
	}
	applyShares(usage)
	sortByVolume(usage)
	return usage, nil
}

// Summary returns the daily rollup for date, highest total volume first,
// with percentage shares of the day's total.
func (f *Facade) Summary(date string) ([]AppUsage, error) {
	rows, err := f.store.QuerySummary(date)
	if err != nil {
		return nil, err
	}
	usage := make([]AppUsage, 0, len(rows))
	for _, r := range rows {
		usage = append(usage, AppUsage{
			AppName:   r.AppName,
			BytesSent: r.BytesSent,
			BytesRecv: r.BytesRecv,
		})
	}
	applyShares(usage)
	sortByVolume(usage)
	return usage, nil
}

// AvailableDates returns the dates that have rollups, newest first.
func (f *Facade) AvailableDates() ([]string, error) {
	return f.store.AvailableDates()
}

// TopK returns at most k entries from usage, which must already be sorted.
func TopK(usage []AppUsage, k int) []AppUsage {
	if k < 0 || k >= len(usage) {
		return usage
	}
	return usage[:k]
}

// PercentShare returns part's percentage of total in [0, 100]. A zero total
// yields zero rather than NaN.
func PercentShare(part, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// applyShares fills in each entry's percentage of the total volume. An empty
// window has no total, so every share stays zero.
func applyShares(usage []AppUsage) {
	var total uint64
	for _, u := range usage {
		total += u.TotalBytes()
	}
	for i := range usage {
		usage[i].Share = PercentShare(usage[i].TotalBytes(), total)
	}
}

// sortByVolume orders highest total first, app name as the tie-breaker so
// output is stable.
func sortByVolume(usage []AppUsage) {
	sort.Slice(usage, func(i, j int) bool {
		ti, tj := usage[i].TotalBytes(), usage[j].TotalBytes()
		if ti != tj {
			return ti > tj
		}
		return usage[i].AppName < usage[j].AppName
	})
}
