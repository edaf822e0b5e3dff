package tui

import (
	"time"

	"github.com/datamon/datamon/internal/pipeline"
	"github.com/datamon/datamon/internal/query"
)

// LiveMsg carries a fresh live snapshot from the pipeline bridge.
type LiveMsg struct {
	Snap *pipeline.LiveSnapshot
}

// TickMsg drives the periodic UI refresh.
type TickMsg time.Time

// SysStatsMsg carries a system-wide CPU and memory reading.
type SysStatsMsg struct {
	CPUPercent float64
	MemPercent float64
}

// SummaryMsg carries the result of a daily-summary query.
type SummaryMsg struct {
	Date  string
	Rows  []query.AppUsage
	Dates []string
	Err   error
}

// PipelineStoppedMsg reports that the pipeline bridge has stopped.
type PipelineStoppedMsg struct {
	Err error
}
