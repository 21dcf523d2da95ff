// package formatter reads user CSV input and writes run reports (CSV, JSON, Markdown)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/userimport/internal/models"
)

// ReportFormat selects the layout of a run report.
type ReportFormat string

const (
	FormatCSV      ReportFormat = "csv"
	FormatJSON     ReportFormat = "json"
	FormatMarkdown ReportFormat = "markdown"
)

// FormatForPath picks a [ReportFormat] from the file extension, defaulting to CSV.
func FormatForPath(path string) ReportFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".md", ".markdown":
		return FormatMarkdown
	default:
		return FormatCSV
	}
}

type reportRow struct {
	Row         int    `json:"row"`
	Name        string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
	Outcome     string `json:"outcome"`
	Attempts    int    `json:"attempts"`
	FailureKind string `json:"failure_kind,omitempty"`
	WaitedMS    int64  `json:"waited_ms"`
	Message     string `json:"message,omitempty"`
}

type reportDoc struct {
	RunID       string      `json:"run_id,omitempty"`
	Sequence    int         `json:"sequence,omitempty"`
	Source      string      `json:"source"`
	Endpoint    string      `json:"endpoint"`
	StartedAt   time.Time   `json:"started_at"`
	FinishedAt  time.Time   `json:"finished_at"`
	Total       int         `json:"total"`
	Succeeded   int         `json:"succeeded"`
	Rejected    int         `json:"rejected"`
	Failed      int         `json:"failed"`
	Interrupted bool        `json:"interrupted,omitempty"`
	Results     []reportRow `json:"results"`
}

func toReportRow(r models.RecordResult) reportRow {
	return reportRow{
		Row:         r.Row,
		Name:        r.Name,
		Email:       r.Email,
		Outcome:     string(r.Outcome),
		Attempts:    r.Attempts,
		FailureKind: r.KindName(),
		WaitedMS:    r.Waited.Milliseconds(),
		Message:     r.Message,
	}
}

// ReportToCSV renders one line per record with columns: Row, Name, Email, Outcome, Attempts, FailureKind, WaitedMS, Message
func ReportToCSV(run *models.Run) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Row", "Name", "Email", "Outcome", "Attempts", "FailureKind", "WaitedMS", "Message"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, res := range run.Results {
		row := toReportRow(res)
		record := []string{
			strconv.Itoa(row.Row),
			row.Name,
			row.Email,
			row.Outcome,
			strconv.Itoa(row.Attempts),
			row.FailureKind,
			strconv.FormatInt(row.WaitedMS, 10),
			row.Message,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ReportToJSON renders the run summary and every record result as indented JSON.
func ReportToJSON(run *models.Run) ([]byte, error) {
	doc := reportDoc{
		RunID:       run.ID,
		Sequence:    run.Sequence,
		Source:      run.SourcePath,
		Endpoint:    run.EndpointURL,
		StartedAt:   run.StartedAt,
		FinishedAt:  run.FinishedAt,
		Total:       run.Total,
		Succeeded:   run.Succeeded,
		Rejected:    run.Rejected,
		Failed:      run.Failed,
		Interrupted: run.Interrupted,
		Results:     make([]reportRow, 0, len(run.Results)),
	}
	for _, res := range run.Results {
		doc.Results = append(doc.Results, toReportRow(res))
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// ReportToMarkdown renders a summary block followed by a table of records that did not succeed.
func ReportToMarkdown(run *models.Run) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# Import of %s\n\n", filepath.Base(run.SourcePath))
	if run.ID != "" {
		fmt.Fprintf(&buf, "**Run**: %s\n", run.ID)
	}
	fmt.Fprintf(&buf, "**Endpoint**: %s\n", run.EndpointURL)
	fmt.Fprintf(&buf, "**Started**: %s\n", run.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&buf, "**Duration**: %s\n\n", run.Duration().Round(time.Millisecond))
	if run.Interrupted {
		buf.WriteString("> Run was interrupted before the end of the file.\n\n")
	}

	buf.WriteString("| Total | Succeeded | Rejected | Failed |\n")
	buf.WriteString("|---|---|---|---|\n")
	fmt.Fprintf(&buf, "| %d | %d | %d | %d |\n\n", run.Total, run.Succeeded, run.Rejected, run.Failed)

	var problems []models.RecordResult
	for _, res := range run.Results {
		if res.Outcome != models.OutcomeSuccess {
			problems = append(problems, res)
		}
	}

	if len(problems) == 0 {
		buf.WriteString("All records were created.\n")
		return buf.Bytes(), nil
	}

	buf.WriteString("## Records not created\n\n")
	buf.WriteString("| Row | Email | Outcome | Attempts | Reason |\n")
	buf.WriteString("|---|---|---|---|---|\n")
	for _, res := range problems {
		fmt.Fprintf(&buf, "| %d | %s | %s | %d | %s |\n",
			res.Row, mdEscape(res.Email), res.Outcome, res.Attempts, mdEscape(res.Message))
	}

	return buf.Bytes(), nil
}

// WriteReport renders run in the format implied by path and writes it there.
func WriteReport(run *models.Run, path string) error {
	var (
		data []byte
		err  error
	)

	switch FormatForPath(path) {
	case FormatJSON:
		data, err = ReportToJSON(run)
	case FormatMarkdown:
		data, err = ReportToMarkdown(run)
	default:
		data, err = ReportToCSV(run)
	}
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
