package ui

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"boorudl/pkg/crawler"
)

var summaryHeaders = []string{"SECTION", "ENDPOINT", "SEARCHED", "NEW", "DUPES", "FAILED", "REASON", "ELAPSED"}

// SummaryTable renders one row per worker plus a totals line
func SummaryTable(s crawler.Summary) string {
	rows := make([][]string, 0, len(s.Results))
	for _, r := range s.Results {
		reason := string(r.Reason)
		if r.Err != nil {
			reason += ": " + r.Err.Error()
		}
		rows = append(rows, []string{
			r.Section,
			r.Endpoint,
			strconv.Itoa(r.Telemetry.Searched),
			strconv.Itoa(r.Telemetry.Downloaded),
			strconv.Itoa(r.Telemetry.Duplicates),
			strconv.Itoa(r.Telemetry.Failed),
			reason,
			formatElapsed(r.Telemetry.Elapsed),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(accentStyle).
		Headers(summaryHeaders...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			cell := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return cell.Inherit(labelStyle)
			}
			if row >= 0 && row < len(s.Results) && col == 6 && s.Results[row].Failed() {
				return cell.Inherit(errorStyle)
			}
			return cell
		})

	var b strings.Builder
	b.WriteString(t.String())
	b.WriteString("\n")

	totals := s.Totals()
	status := successStyle.Render("OK")
	if !s.OK() {
		status = errorStyle.Render(fmt.Sprintf("%d worker(s) failed", s.Failed))
	}
	fmt.Fprintf(&b, "%s %s  %s %d  %s %d  %s %d  %s %s  %s\n",
		labelStyle.Render("run"), dimStyle.Render(s.RunID),
		labelStyle.Render("searched"), totals.Searched,
		labelStyle.Render("new"), totals.Downloaded,
		labelStyle.Render("dupes"), totals.Duplicates,
		labelStyle.Render("elapsed"), formatElapsed(s.Elapsed),
		status)
	return b.String()
}

// PrintSummary writes the summary table to w
func PrintSummary(w io.Writer, s crawler.Summary) {
	fmt.Fprint(w, SummaryTable(s))
}

func formatElapsed(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}
