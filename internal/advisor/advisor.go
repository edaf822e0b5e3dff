// Package advisor generates rule-based hints for reducing network data
// consumption from a window of per-app usage rates.
package advisor

import (
	"fmt"
	"strings"

	"github.com/datamon/datamon/internal/format"
	"github.com/datamon/datamon/internal/query"
)

// DefaultRateThreshold is the total byte rate above which the high-usage
// hint fires: 5 MiB per second.
const DefaultRateThreshold uint64 = 5 * 1024 * 1024

// syncServices matches background cloud-sync applications by substring.
var syncServices = []string{
	"onedrive", "dropbox", "googledrivesync", "google drive",
	"icloud", "sync", "backup", "megasync", "pcloud",
}

// systemProcesses matches OS maintenance processes by substring.
var systemProcesses = []string{
	"svchost", "system", "windows update", "wuauclt",
	"trustedinstaller", "tiworker",
}

// Advisor evaluates usage against a fixed rule set. It is stateless apart
// from its threshold and safe for concurrent use.
type Advisor struct {
	rateThreshold uint64
}

// Option configures an Advisor.
type Option func(*Advisor)

// WithRateThreshold overrides the total-rate threshold in bytes per second.
func WithRateThreshold(bytesPerSec uint64) Option {
	return func(a *Advisor) { a.rateThreshold = bytesPerSec }
}

// New creates an Advisor.
func New(opts ...Option) *Advisor {
	a := &Advisor{rateThreshold: DefaultRateThreshold}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Advise returns hints for the given per-app usage rates. The usage entries
// carry byte rates over one second and precomputed percentage shares; an
// empty or all-zero window yields no hints.
func (a *Advisor) Advise(usage []query.AppUsage) []string {
	var total uint64
	for _, u := range usage {
		total += u.TotalBytes()
	}
	if total == 0 {
		return nil
	}

	var hints []string
	hints = append(hints, a.dominantApps(usage)...)
	hints = append(hints, a.syncServices(usage, total)...)
	hints = append(hints, a.systemProcesses(usage)...)
	hints = append(hints, a.totalRate(total)...)
	hints = append(hints, a.moderateApps(usage)...)
	return hints
}

// dominantApps flags any single app above half the total volume, with an
// action hint keyed on the app category.
func (a *Advisor) dominantApps(usage []query.AppUsage) []string {
	var hints []string
	for _, u := range usage {
		if u.Share <= 50 {
			continue
		}
		hint := fmt.Sprintf("%s is using %.0f%% of bandwidth (%s). %s",
			u.AppName, u.Share, format.Rate(u.TotalBytes()), actionFor(u.AppName))
		hints = append(hints, hint)
	}
	return hints
}

// actionFor picks a category-specific suggestion for a dominant app.
func actionFor(appName string) string {
	name := strings.ToLower(appName)
	switch {
	case containsAny(name, "chrome", "firefox", "edge"):
		return "Consider pausing video playback or closing unused tabs."
	case containsAny(name, "steam", "epic", "origin"):
		return "Pause game downloads or updates."
	case containsAny(name, "torrent"):
		return "Pause or limit torrent downloads."
	default:
		return "Consider closing or limiting this application."
	}
}

// syncServices flags cloud-sync apps collectively above 20% of the total.
func (a *Advisor) syncServices(usage []query.AppUsage, total uint64) []string {
	var syncTotal uint64
	var apps []string
	for _, u := range usage {
		if containsAny(strings.ToLower(u.AppName), syncServices...) {
			syncTotal += u.TotalBytes()
			apps = append(apps, u.AppName)
		}
	}
	if syncTotal == 0 {
		return nil
	}
	pct := float64(syncTotal) / float64(total) * 100
	if pct <= 20 {
		return nil
	}
	return []string{fmt.Sprintf(
		"Background sync services (%s) are using %.0f%% of bandwidth (%s). Consider pausing cloud sync temporarily.",
		strings.Join(apps, ", "), pct, format.Rate(syncTotal))}
}

// systemProcesses flags OS processes above 15% of the total.
func (a *Advisor) systemProcesses(usage []query.AppUsage) []string {
	var hints []string
	for _, u := range usage {
		if !containsAny(strings.ToLower(u.AppName), systemProcesses...) {
			continue
		}
		if u.Share <= 15 {
			continue
		}
		hints = append(hints, fmt.Sprintf(
			"System process (%s) is using %.0f%% of bandwidth (%s). This may be OS updates or maintenance; check your update settings.",
			u.AppName, u.Share, format.Rate(u.TotalBytes())))
	}
	return hints
}

// totalRate flags total usage above the configured threshold.
func (a *Advisor) totalRate(total uint64) []string {
	if total <= a.rateThreshold {
		return nil
	}
	return []string{fmt.Sprintf(
		"High bandwidth usage detected: %s (threshold: %s). Consider enabling data saver mode in browsers and streaming apps.",
		format.Rate(total), format.Rate(a.rateThreshold))}
}

// moderateApps flags three or more apps each in the 10 to 50 percent band.
func (a *Advisor) moderateApps(usage []query.AppUsage) []string {
	var moderate []query.AppUsage
	var combined uint64
	for _, u := range usage {
		if u.Share >= 10 && u.Share <= 50 {
			moderate = append(moderate, u)
			combined += u.TotalBytes()
		}
	}
	if len(moderate) < 3 {
		return nil
	}
	names := make([]string, 0, 3)
	for _, u := range moderate[:3] {
		names = append(names, fmt.Sprintf("%s (%.0f%%)", u.AppName, u.Share))
	}
	return []string{fmt.Sprintf(
		"Multiple applications are actively using bandwidth: %s. Combined usage: %s. Consider closing non-essential applications.",
		strings.Join(names, ", "), format.Rate(combined))}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
