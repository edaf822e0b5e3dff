package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/datamon/datamon/internal/advisor"
	apperrors "github.com/datamon/datamon/internal/errors"
	"github.com/datamon/datamon/internal/pipeline"
	"github.com/datamon/datamon/internal/query"
	"github.com/datamon/datamon/internal/sysmon"
)

// viewMode selects the main panel content.
type viewMode int

const (
	viewLive viewMode = iota
	viewDaily
)

// rateHistoryLen is the number of ticks the throughput sparkline remembers.
const rateHistoryLen = 120

// summarySource answers the daily-view queries.
type summarySource interface {
	Summary(date string) ([]query.AppUsage, error)
	AvailableDates() ([]string, error)
}

// adviser produces usage hints from a window of per-app rates.
type adviser interface {
	Advise(usage []query.AppUsage) []string
}

// Model is the root bubbletea model for the dashboard.
type Model struct {
	header HeaderModel
	keymap KeyMap

	width  int
	height int

	view   viewMode
	paused bool
	scroll int

	// Live view state.
	live     *pipeline.LiveSnapshot
	hints    []string
	history  *RateHistory
	degraded bool

	// Daily view state.
	summaryDate string
	summaryRows []query.AppUsage
	dates       []string
	dateIdx     int
	summaryErr  error

	facade  summarySource
	advisor adviser
	ref     *programRef

	done     bool
	exitCode int
}

// NewModel creates the dashboard model.
func NewModel(facade summarySource, adv adviser, version string) Model {
	return Model{
		header:   NewHeaderModel(version),
		keymap:   DefaultKeyMap(),
		history:  NewRateHistory(rateHistoryLen),
		facade:   facade,
		advisor:  adv,
		ref:      &programRef{},
		exitCode: apperrors.ExitSuccess,
	}
}

// Init returns the initial commands.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), sampleSysStatsCmd())
}

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.header.SetWidth(m.width)
		return m, nil

	case LiveMsg:
		if m.paused || msg.Snap == nil {
			return m, nil
		}
		m.live = msg.Snap
		m.degraded = msg.Snap.Degraded
		m.header.SetDegraded(m.degraded)

		var total uint64
		for _, row := range msg.Snap.Rows {
			total += row.TotalBytes()
		}
		m.history.Push(float64(total))
		m.hints = m.advisor.Advise(liveToUsage(msg.Snap.Rows))
		return m, nil

	case TickMsg:
		if m.done {
			return m, nil
		}
		return m, tea.Batch(tickCmd(), sampleSysStatsCmd())

	case SysStatsMsg:
		m.header.SetSysStats(msg.CPUPercent, msg.MemPercent)
		return m, nil

	case SummaryMsg:
		m.summaryDate = msg.Date
		m.summaryRows = msg.Rows
		m.summaryErr = msg.Err
		if msg.Dates != nil {
			m.dates = msg.Dates
		}
		return m, nil

	case PipelineStoppedMsg:
		m.done = true
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		m.done = true
		return m, tea.Quit

	case key.Matches(msg, m.keymap.Pause):
		m.paused = !m.paused
		return m, nil

	case key.Matches(msg, m.keymap.View):
		if m.view == viewLive {
			m.view = viewDaily
			m.scroll = 0
			return m, loadSummaryCmd(m.facade, "")
		}
		m.view = viewLive
		m.scroll = 0
		return m, nil

	case key.Matches(msg, m.keymap.Left):
		if m.view == viewDaily && m.dateIdx < len(m.dates)-1 {
			m.dateIdx++
			return m, loadSummaryCmd(m.facade, m.dates[m.dateIdx])
		}
		return m, nil

	case key.Matches(msg, m.keymap.Right):
		if m.view == viewDaily && m.dateIdx > 0 {
			m.dateIdx--
			return m, loadSummaryCmd(m.facade, m.dates[m.dateIdx])
		}
		return m, nil

	case key.Matches(msg, m.keymap.Up):
		if m.scroll > 0 {
			m.scroll--
		}
		return m, nil

	case key.Matches(msg, m.keymap.Down):
		if m.scroll < m.maxScroll() {
			m.scroll++
		}
		return m, nil

	case key.Matches(msg, m.keymap.PageUp):
		m.scroll -= m.tableHeight()
		if m.scroll < 0 {
			m.scroll = 0
		}
		return m, nil

	case key.Matches(msg, m.keymap.PageDown):
		m.scroll += m.tableHeight()
		if max := m.maxScroll(); m.scroll > max {
			m.scroll = max
		}
		return m, nil
	}

	return m, nil
}

func (m Model) rowCount() int {
	if m.view == viewDaily {
		return len(m.summaryRows)
	}
	if m.live == nil {
		return 0
	}
	return len(m.live.Rows)
}

func (m Model) maxScroll() int {
	max := m.rowCount() - m.tableHeight()
	if max < 0 {
		return 0
	}
	return max
}

// liveToUsage converts live rows into the advisor's input shape, with
// percentage shares of the tick's total.
func liveToUsage(rows []pipeline.LiveRow) []query.AppUsage {
	var total uint64
	for _, r := range rows {
		total += r.TotalBytes()
	}
	usage := make([]query.AppUsage, 0, len(rows))
	for _, r := range rows {
		u := query.AppUsage{
			AppName:   r.AppName,
			BytesSent: r.BytesSent,
			BytesRecv: r.BytesRecv,
		}
		if total > 0 {
			u.Share = float64(u.TotalBytes()) / float64(total) * 100
		}
		usage = append(usage, u)
	}
	return usage
}

// Run is the public entry point for the dashboard. It starts the pipeline
// bridge, runs the bubbletea program, and returns an exit code.
func Run(ctx context.Context, pl *pipeline.Pipeline, facade *query.Facade, adv *advisor.Advisor, version string) int {
	initTUIStyles()

	model := NewModel(facade, adv, version)

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	model.ref.SetProgram(p)
	go watchLive(ctx, model.ref, pl)

	finalModel, err := p.Run()
	if err != nil {
		if ctx.Err() != nil {
			return apperrors.ExitSuccess
		}
		return apperrors.ExitErrorGeneric
	}
	if m, ok := finalModel.(Model); ok {
		return m.exitCode
	}
	return apperrors.ExitSuccess
}

// tickCmd returns a command that sends a TickMsg after one second.
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// sampleSysStatsCmd reads system-wide CPU and memory stats.
func sampleSysStatsCmd() tea.Cmd {
	return func() tea.Msg {
		s := sysmon.Sample()
		return SysStatsMsg{CPUPercent: s.CPUPercent, MemPercent: s.MemPercent}
	}
}

// loadSummaryCmd fetches a daily summary. An empty date loads the newest
// available day.
func loadSummaryCmd(facade summarySource, date string) tea.Cmd {
	return func() tea.Msg {
		dates, err := facade.AvailableDates()
		if err != nil {
			return SummaryMsg{Err: err}
		}
		if date == "" {
			if len(dates) == 0 {
				return SummaryMsg{Dates: dates}
			}
			date = dates[0]
		}
		rows, err := facade.Summary(date)
		return SummaryMsg{Date: date, Rows: rows, Dates: dates, Err: err}
	}
}
