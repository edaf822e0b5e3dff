package advisor

import (
	"strings"
	"testing"

	"github.com/datamon/datamon/internal/query"
)

// usageWithShares builds AppUsage entries with shares filled in, the way the
// query facade hands them out.
func usageWithShares(entries ...query.AppUsage) []query.AppUsage {
	var total uint64
	for _, u := range entries {
		total += u.TotalBytes()
	}
	if total == 0 {
		return entries
	}
	for i := range entries {
		entries[i].Share = float64(entries[i].TotalBytes()) / float64(total) * 100
	}
	return entries
}

func assertHint(t *testing.T, hints []string, substr string) {
	t.Helper()
	for _, h := range hints {
		if strings.Contains(h, substr) {
			return
		}
	}
	t.Errorf("no hint containing %q in %v", substr, hints)
}

func assertNoHint(t *testing.T, hints []string, substr string) {
	t.Helper()
	for _, h := range hints {
		if strings.Contains(h, substr) {
			t.Errorf("unexpected hint containing %q: %q", substr, h)
		}
	}
}

func TestAdvise_EmptyUsage(t *testing.T) {
	a := New()
	if hints := a.Advise(nil); hints != nil {
		t.Errorf("Advise(nil) = %v, want no hints", hints)
	}
	zero := []query.AppUsage{{AppName: "idle"}}
	if hints := a.Advise(zero); hints != nil {
		t.Errorf("Advise(zero volume) = %v, want no hints", hints)
	}
}

func TestAdvise_DominantApp(t *testing.T) {
	a := New(WithRateThreshold(1 << 40))

	hints := a.Advise(usageWithShares(
		query.AppUsage{AppName: "Chrome", BytesRecv: 900},
		query.AppUsage{AppName: "ssh", BytesRecv: 100},
	))
	assertHint(t, hints, "Chrome is using 90% of bandwidth")
	assertHint(t, hints, "closing unused tabs")
	assertNoHint(t, hints, "ssh is using")
}

func TestAdvise_DominantAppActions(t *testing.T) {
	cases := []struct {
		app    string
		action string
	}{
		{"Firefox", "closing unused tabs"},
		{"Steam", "game downloads"},
		{"QBittorrent", "torrent downloads"},
		{"Mysteryapp", "closing or limiting this application"},
	}
	a := New(WithRateThreshold(1 << 40))
	for _, tc := range cases {
		t.Run(tc.app, func(t *testing.T) {
			hints := a.Advise(usageWithShares(
				query.AppUsage{AppName: tc.app, BytesRecv: 1000},
			))
			assertHint(t, hints, tc.action)
		})
	}
}

func TestAdvise_SyncServices(t *testing.T) {
	a := New(WithRateThreshold(1 << 40))

	hints := a.Advise(usageWithShares(
		query.AppUsage{AppName: "Dropbox", BytesSent: 150},
		query.AppUsage{AppName: "OneDrive", BytesSent: 150},
		query.AppUsage{AppName: "Chrome", BytesRecv: 700},
	))
	assertHint(t, hints, "Background sync services")
	assertHint(t, hints, "Dropbox")
	assertHint(t, hints, "OneDrive")

	// Collectively at or below 20%: no hint.
	hints = a.Advise(usageWithShares(
		query.AppUsage{AppName: "Dropbox", BytesSent: 100},
		query.AppUsage{AppName: "Chrome", BytesRecv: 900},
	))
	assertNoHint(t, hints, "Background sync")
}

func TestAdvise_SystemProcesses(t *testing.T) {
	a := New(WithRateThreshold(1 << 40))

	hints := a.Advise(usageWithShares(
		query.AppUsage{AppName: "svchost", BytesRecv: 300},
		query.AppUsage{AppName: "Chrome", BytesRecv: 700},
	))
	assertHint(t, hints, "System process (svchost)")

	hints = a.Advise(usageWithShares(
		query.AppUsage{AppName: "svchost", BytesRecv: 100},
		query.AppUsage{AppName: "Chrome", BytesRecv: 900},
	))
	assertNoHint(t, hints, "System process")
}

func TestAdvise_TotalRateThreshold(t *testing.T) {
	a := New(WithRateThreshold(1000))

	hints := a.Advise(usageWithShares(
		query.AppUsage{AppName: "Zoom", BytesRecv: 2000},
	))
	assertHint(t, hints, "High bandwidth usage detected")

	hints = a.Advise(usageWithShares(
		query.AppUsage{AppName: "Zoom", BytesRecv: 500},
	))
	assertNoHint(t, hints, "High bandwidth")
}

func TestAdvise_MultipleModerateApps(t *testing.T) {
	a := New(WithRateThreshold(1 << 40))

	hints := a.Advise(usageWithShares(
		query.AppUsage{AppName: "Zoom", BytesRecv: 300},
		query.AppUsage{AppName: "Slack", BytesRecv: 300},
		query.AppUsage{AppName: "Teams", BytesRecv: 300},
		query.AppUsage{AppName: "ssh", BytesRecv: 100},
	))
	assertHint(t, hints, "Multiple applications are actively using bandwidth")

	// Only two moderate apps: rule stays quiet.
	hints = a.Advise(usageWithShares(
		query.AppUsage{AppName: "Zoom", BytesRecv: 480},
		query.AppUsage{AppName: "Slack", BytesRecv: 480},
		query.AppUsage{AppName: "ssh", BytesRecv: 40},
	))
	assertNoHint(t, hints, "Multiple applications")
}
