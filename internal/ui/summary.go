package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"
	"github.com/desertthunder/userimport/internal/models"
)

func newTable(headers ...string) *ltable.Table {
	return ltable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == ltable.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

// RenderPreviewTable renders rows as a static table for non-interactive output.
func RenderPreviewTable(rows []PreviewRow) string {
	t := newTable(previewHeaders...)
	for _, r := range rows {
		t.Row(r.Cells()...)
	}
	return t.Render()
}

// RenderSummary renders the end-of-run box printed by the import command.
func RenderSummary(run *models.Run) string {
	var b strings.Builder

	heading := "Import complete"
	if run.Interrupted {
		heading = "Import interrupted"
	}
	b.WriteString(styles.title.Render(heading))
	b.WriteString("\n")

	if run.ID != "" {
		fmt.Fprintf(&b, "run      #%d %s\n", run.Sequence, run.ID)
	}
	fmt.Fprintf(&b, "source   %s\n", run.SourcePath)
	fmt.Fprintf(&b, "endpoint %s\n", run.EndpointURL)
	fmt.Fprintf(&b, "duration %s\n\n", run.Duration().Round(time.Millisecond))

	fmt.Fprintf(&b, "%d records: %s, %s, %s",
		run.Total,
		styles.ok.Render(fmt.Sprintf("%d created", run.Succeeded)),
		paint(styles.warn, run.Rejected, "rejected"),
		paint(styles.err, run.Failed, "failed"),
	)

	return styles.box.Render(b.String())
}

func paint(style lipgloss.Style, n int, label string) string {
	text := fmt.Sprintf("%d %s", n, label)
	if n == 0 {
		return text
	}
	return style.Render(text)
}

// RenderRuns renders stored runs, newest first, for `runs list`.
func RenderRuns(runs []*models.Run) string {
	if len(runs) == 0 {
		return styles.help.Render("No runs recorded yet.")
	}

	t := newTable("#", "ID", "Started", "Source", "Total", "Created", "Rejected", "Failed", "")
	for _, r := range runs {
		flag := ""
		switch {
		case r.Interrupted:
			flag = "interrupted"
		case r.FinishedAt.IsZero():
			flag = "unfinished"
		}
		t.Row(
			strconv.Itoa(r.Sequence),
			shortID(r.ID),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.SourcePath,
			strconv.Itoa(r.Total),
			strconv.Itoa(r.Succeeded),
			strconv.Itoa(r.Rejected),
			strconv.Itoa(r.Failed),
			flag,
		)
	}
	return t.Render()
}

// RenderOutcomes renders the per-record results of one run, for `runs show`.
func RenderOutcomes(results []models.RecordResult) string {
	if len(results) == 0 {
		return styles.help.Render("No record outcomes stored for this run.")
	}

	t := newTable("Row", "Email", "Outcome", "Attempts", "Kind", "Waited", "Message")
	for _, r := range results {
		t.Row(
			strconv.Itoa(r.Row),
			r.Email,
			string(r.Outcome),
			strconv.Itoa(r.Attempts),
			r.KindName(),
			r.Waited.String(),
			r.Message,
		)
	}
	return t.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
