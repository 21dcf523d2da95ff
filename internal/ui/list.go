package ui

import (
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/desertthunder/userimport/internal/formatter"
	"github.com/desertthunder/userimport/internal/models"
)

// PreviewRow is one input row with the verdict the importer would reach before calling the API.
type PreviewRow struct {
	Index   int
	Name    string
	Email   string
	Role    string
	Problem string // empty when the row is valid
}

// Valid reports whether the row would be sent to the API.
func (r PreviewRow) Valid() bool { return r.Problem == "" }

// Status is the short verdict shown in the status column.
func (r PreviewRow) Status() string {
	if r.Valid() {
		return "ok"
	}
	return "invalid"
}

// Cells renders the row for a table, in [previewHeaders] order.
func (r PreviewRow) Cells() []string {
	return []string{strconv.Itoa(r.Index), r.Name, r.Email, r.Role, r.Status(), r.Problem}
}

var previewHeaders = []string{"Row", "Name", "Email", "Role", "Status", "Problem"}

// RowSource yields raw rows until [io.EOF].
type RowSource interface {
	Next() (models.RawRow, error)
}

// LoadPreview reads every row from src and validates it. Nothing is sent anywhere.
//
// CSV row errors become invalid rows. Any other read error is returned with the rows read so far.
func LoadPreview(src RowSource) ([]PreviewRow, error) {
	var rows []PreviewRow
	for {
		raw, err := src.Next()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}

		var rowErr *formatter.RowError
		if errors.As(err, &rowErr) {
			rows = append(rows, PreviewRow{Index: rowErr.Row, Problem: rowErr.Err.Error()})
			continue
		}
		if err != nil {
			return rows, err
		}

		row := PreviewRow{Index: raw.Index}
		row.Name, _ = raw.Get("name")
		row.Email, _ = raw.Get("email")
		row.Role, _ = raw.Get("role")

		if _, err := models.ParseUserRecord(raw); err != nil {
			var vErr *models.ValidationError
			if errors.As(err, &vErr) {
				row.Problem = "missing " + strings.Join(vErr.Missing, ", ")
			} else {
				row.Problem = err.Error()
			}
		}
		rows = append(rows, row)
	}
}

// CountInvalid returns how many rows would be rejected.
func CountInvalid(rows []PreviewRow) int {
	n := 0
	for _, r := range rows {
		if !r.Valid() {
			n++
		}
	}
	return n
}

func tableRows(rows []PreviewRow, invalidOnly bool) []table.Row {
	out := make([]table.Row, 0, len(rows))
	for _, r := range rows {
		if invalidOnly && r.Valid() {
			continue
		}
		out = append(out, table.Row(r.Cells()))
	}
	return out
}
