package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/datamon/datamon/internal/format"
)

// HeaderModel renders the top bar: title, version, elapsed time, system
// load, and the degraded-mode badge.
type HeaderModel struct {
	startTime  time.Time
	version    string
	width      int
	degraded   bool
	cpuPercent float64
	memPercent float64
}

// NewHeaderModel creates a new header.
func NewHeaderModel(version string) HeaderModel {
	return HeaderModel{
		startTime: time.Now(),
		version:   version,
	}
}

// SetWidth updates the available width.
func (h *HeaderModel) SetWidth(w int) {
	h.width = w
}

// SetDegraded toggles the degraded-mode badge.
func (h *HeaderModel) SetDegraded(d bool) {
	h.degraded = d
}

// SetSysStats updates the system load readings.
func (h *HeaderModel) SetSysStats(cpu, mem float64) {
	h.cpuPercent = cpu
	h.memPercent = mem
}

// View renders the header.
func (h HeaderModel) View() string {
	titleText := "datamon"
	if h.version != "" && h.version != "dev" {
		titleText += " " + h.version
	}
	title := titleStyle.Render(titleText)

	pipe := versionStyle.Render(" | ")

	elapsed := elapsedStyle.Render(fmt.Sprintf("Up: %s",
		format.FormatExecutionDuration(time.Since(h.startTime))))
	sys := versionStyle.Render(fmt.Sprintf("CPU %.0f%%  MEM %.0f%%", h.cpuPercent, h.memPercent))

	leftPart := title + pipe + elapsed + pipe + sys
	if h.degraded {
		leftPart += pipe + degradedStyle.Render("ESTIMATED (insufficient privileges)")
	}
	leftLen := lipgloss.Width(leftPart)

	innerWidth := h.width - 2
	if innerWidth < 0 {
		innerWidth = 0
	}
	gap := innerWidth - leftLen
	if gap < 0 {
		gap = 0
	}

	return headerStyle.Width(h.width).Render(leftPart + spaces(gap))
}

// spaces returns a string of n space characters.
func spaces(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}
