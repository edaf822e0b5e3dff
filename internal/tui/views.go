package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/datamon/datamon/internal/format"
	"github.com/datamon/datamon/internal/query"
)

const (
	headerHeight = 1
	footerHeight = 1
	// hintsHeight covers the hints panel including its border.
	hintsHeight   = 5
	minTableRows  = 3
	sparklineRows = 1
)

// tableHeight returns the number of data rows the main table can show.
func (m Model) tableHeight() int {
	h := m.height - headerHeight - footerHeight - hintsHeight - sparklineRows - 3
	if h < minTableRows {
		h = minTableRows
	}
	return h
}

// View renders the dashboard.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	header := m.header.View()

	var table string
	if m.view == viewDaily {
		table = m.renderDailyTable()
	} else {
		table = m.renderLiveTable()
	}

	spark := sparklineStyle.Render(RenderSparkline(m.history.Slice()))
	hints := m.renderHints()
	footer := m.renderFooter()

	return lipgloss.JoinVertical(lipgloss.Left, header, table, spark, hints, footer)
}

// renderLiveTable shows the current tick's per-app rates.
func (m Model) renderLiveTable() string {
	var b strings.Builder
	b.WriteString(tableHeaderStyle.Render(fmt.Sprintf("%-28s %8s %12s %12s %12s",
		"APP", "PID", "SENT/s", "RECV/s", "TOTAL/s")))
	b.WriteByte('\n')

	if m.live == nil || len(m.live.Rows) == 0 {
		b.WriteString(versionStyle.Render("waiting for samples..."))
		return m.framedTable(b.String(), "Live usage")
	}

	rows := m.live.Rows
	end := m.scroll + m.tableHeight()
	if end > len(rows) {
		end = len(rows)
	}
	for i := m.scroll; i < end; i++ {
		r := rows[i]
		line := fmt.Sprintf("%-28s %8d %12s %12s %12s",
			truncate(r.AppName, 28), r.PID,
			format.Rate(r.BytesSent), format.Rate(r.BytesRecv), format.Rate(r.TotalBytes()))
		if i == 0 {
			b.WriteString(tableTopStyle.Render(line))
		} else {
			b.WriteString(tableRowStyle.Render(line))
		}
		if i != end-1 {
			b.WriteByte('\n')
		}
	}
	return m.framedTable(b.String(), "Live usage")
}

// renderDailyTable shows one day's rollup with percentage shares.
func (m Model) renderDailyTable() string {
	title := "Daily summary"
	if m.summaryDate != "" {
		title = "Daily summary " + m.summaryDate
	}

	var b strings.Builder
	b.WriteString(tableHeaderStyle.Render(fmt.Sprintf("%-28s %12s %12s %12s %7s",
		"APP", "SENT", "RECV", "TOTAL", "SHARE")))
	b.WriteByte('\n')

	switch {
	case m.summaryErr != nil:
		b.WriteString(degradedStyle.Render("summary unavailable: " + m.summaryErr.Error()))
	case len(m.summaryRows) == 0:
		b.WriteString(versionStyle.Render("no rollups yet"))
	default:
		b.WriteString(m.renderSummaryRows())
	}
	return m.framedTable(b.String(), title)
}

func (m Model) renderSummaryRows() string {
	var b strings.Builder
	end := m.scroll + m.tableHeight()
	if end > len(m.summaryRows) {
		end = len(m.summaryRows)
	}
	for i := m.scroll; i < end; i++ {
		r := m.summaryRows[i]
		line := formatSummaryRow(r)
		if i == 0 {
			b.WriteString(tableTopStyle.Render(line))
		} else {
			b.WriteString(tableRowStyle.Render(line))
		}
		if i != end-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func formatSummaryRow(r query.AppUsage) string {
	return fmt.Sprintf("%-28s %12s %12s %12s %6.1f%%",
		truncate(r.AppName, 28),
		format.Bytes(r.BytesSent), format.Bytes(r.BytesRecv),
		format.Bytes(r.TotalBytes()), r.Share)
}

// renderHints shows the advisor's current suggestions.
func (m Model) renderHints() string {
	var b strings.Builder
	if len(m.hints) == 0 {
		b.WriteString(versionStyle.Render("no suggestions"))
	} else {
		limit := hintsHeight - 2
		for i, hint := range m.hints {
			if i >= limit {
				break
			}
			if i > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(hintStyle.Render(truncate(hint, m.width-4)))
		}
	}
	return m.framedTable(b.String(), "Suggestions")
}

// renderFooter shows the key help and run status.
func (m Model) renderFooter() string {
	status := statusRunningStyle.Render("RUNNING")
	if m.paused {
		status = statusPausedStyle.Render("PAUSED")
	}

	bindings := []struct{ k, desc string }{
		{"q", "quit"},
		{"tab", "live/daily"},
		{"p", "pause"},
		{"↑/↓", "scroll"},
	}
	if m.view == viewDaily {
		bindings = append(bindings, struct{ k, desc string }{"←/→", "day"})
	}

	parts := make([]string, 0, len(bindings)+1)
	parts = append(parts, status)
	for _, kb := range bindings {
		parts = append(parts, footerKeyStyle.Render(kb.k)+footerDescStyle.Render(":"+kb.desc))
	}
	return footerDescStyle.Render(" ") + strings.Join(parts, "  ")
}

// framedTable wraps content in the shared panel border, with the title on
// its own line above the frame.
func (m Model) framedTable(content, title string) string {
	w := m.width - 2
	if w < 10 {
		w = 10
	}
	framed := panelStyle.Width(w).Render(content)
	if title == "" {
		return framed
	}
	return titleStyle.Render(" "+title) + "\n" + framed
}

// truncate shortens s to max runes with an ellipsis.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return string(r[:max-1]) + "…"
}
