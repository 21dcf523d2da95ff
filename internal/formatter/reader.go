package formatter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/desertthunder/userimport/internal/models"
	"github.com/desertthunder/userimport/internal/shared"
)

const utf8BOM = "\ufeff"

// RowError reports a data row that could not be parsed as CSV. It is not fatal to the read.
type RowError struct {
	Row  int
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d (line %d): %v", e.Row, e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// UserReader yields the data rows of a user CSV file one at a time.
//
// The sequence is finite and cannot be restarted.
type UserReader struct {
	r      *csv.Reader
	closer io.Closer
	header []string
	count  int

	peeked  bool
	peekRow models.RawRow
	peekErr error
}

// OpenUsers opens path and prepares a [UserReader] over it.
//
// Fails with [shared.ErrFileAccess] when the file is missing, unreadable, has no header, or has no data rows.
// The caller must Close the reader.
func OpenUsers(path string) (*UserReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrFileAccess, err)
	}

	ur, err := NewUserReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w (%s)", err, path)
	}
	ur.closer = f
	return ur, nil
}

// NewUserReader reads the header and peeks the first data row of r.
func NewUserReader(r io.Reader) (*UserReader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w: no header row", shared.ErrFileAccess, shared.ErrEmptyInput)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read header: %v", shared.ErrFileAccess, err)
	}

	ur := &UserReader{r: cr, header: normalizeHeader(header)}

	row, err := ur.read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", shared.ErrFileAccess, shared.ErrEmptyInput)
	}
	var rowErr *RowError
	if err != nil && !errors.As(err, &rowErr) {
		return nil, err
	}

	ur.peeked, ur.peekRow, ur.peekErr = true, row, err
	return ur, nil
}

// Header returns the normalized (trimmed, lower-cased) header columns.
func (u *UserReader) Header() []string {
	return u.header
}

// MissingColumns returns the required columns absent from the header.
func (u *UserReader) MissingColumns() []string {
	var missing []string
	for _, col := range models.RequiredColumns {
		found := false
		for _, h := range u.header {
			if h == col {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, col)
		}
	}
	return missing
}

// Next returns the next data row, or [io.EOF] once the input is exhausted.
//
// A *[RowError] affects only that row; any other error wraps [shared.ErrFileAccess] and ends the sequence.
func (u *UserReader) Next() (models.RawRow, error) {
	if u.peeked {
		u.peeked = false
		return u.peekRow, u.peekErr
	}
	return u.read()
}

// Close releases the underlying file, if the reader owns one.
func (u *UserReader) Close() error {
	if u.closer == nil {
		return nil
	}
	return u.closer.Close()
}

func (u *UserReader) read() (models.RawRow, error) {
	record, err := u.r.Read()
	if errors.Is(err, io.EOF) {
		return models.RawRow{}, io.EOF
	}
	if err != nil {
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			u.count++
			return models.RawRow{Index: u.count}, &RowError{Row: u.count, Line: pe.Line, Err: pe.Err}
		}
		return models.RawRow{}, fmt.Errorf("%w: %v", shared.ErrFileAccess, err)
	}

	u.count++
	fields := make(map[string]string, len(u.header))
	for i, name := range u.header {
		if name == "" || i >= len(record) {
			continue
		}
		if _, dup := fields[name]; !dup {
			fields[name] = record[i]
		}
	}

	return models.RawRow{Index: u.count, Fields: fields}, nil
}

func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		out[i] = strings.ToLower(strings.TrimSpace(h))
	}
	return out
}
