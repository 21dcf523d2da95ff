package shared

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultEventLogPath is the append-only file that receives record-level events.
const DefaultEventLogPath = "error_log.txt"

const eventTimeFormat = "2006-01-02 15:04:05"

// EventLog records per-record events (rejections, retries, abandonments) as timestamped lines.
//
// Lines are appended to a file and optionally mirrored to a console [log.Logger].
// Writing is best-effort: a failure to open or write the file is reported once on the console and never returned to the caller.
type EventLog struct {
	file    *log.Logger
	console *log.Logger
	closer  io.Closer
}

// NewEventLog opens path in append mode (creating it if absent) and returns an [EventLog] writing to it.
//
// console may be nil to disable mirroring.
// If the file cannot be opened the error is reported on console (or stderr) and events only reach the console.
func NewEventLog(path string, console *log.Logger) *EventLog {
	if path == "" {
		path = DefaultEventLogPath
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		reporter := console
		if reporter == nil {
			reporter = NewLogger(nil)
		}
		reporter.Error("cannot open event log, events go to console only", "path", path, "err", err)
		return &EventLog{console: console}
	}

	el := NewEventLogWriter(f, console)
	el.closer = f
	return el
}

// NewEventLogWriter returns an [EventLog] that appends lines to w.
func NewEventLogWriter(w io.Writer, console *log.Logger) *EventLog {
	reporter := console
	if reporter == nil {
		reporter = NewLogger(nil)
	}

	bw := &bestEffortWriter{w: w, report: func(err error) {
		reporter.Error("event log write failed", "err", err)
	}}

	fl := log.NewWithOptions(bw, log.Options{
		ReportTimestamp: true,
		TimeFormat:      eventTimeFormat,
		Formatter:       log.TextFormatter,
	})

	return &EventLog{file: fl, console: console}
}

// Rejected logs a validation rejection for the given 1-based data row.
func (e *EventLog) Rejected(row int, reason error) {
	if e.console != nil {
		e.console.Helper()
	}
	e.emit(log.ErrorLevel, fmt.Sprintf("skipping invalid record at row %d", row), "row", row, "reason", reason)
}

// Retrying logs that attempt failed with the given classification and that the next attempt follows after delay.
func (e *EventLog) Retrying(row int, email string, attempt, maxAttempts int, kind string, delay time.Duration) {
	if e.console != nil {
		e.console.Helper()
	}
	e.emit(log.WarnLevel,
		fmt.Sprintf("retrying attempt %d/%d", attempt+1, maxAttempts),
		"row", row, "email", email, "failed_attempt", attempt, "kind", kind, "delay", delay,
	)
}

// Abandoned logs the final failure for a record that will not be retried again.
func (e *EventLog) Abandoned(row int, email, outcome string, attempts int, cause error) {
	if e.console != nil {
		e.console.Helper()
	}
	e.emit(log.ErrorLevel,
		fmt.Sprintf("abandoning record after %d attempt(s)", attempts),
		"row", row, "email", email, "outcome", outcome, "err", cause,
	)
}

// Close releases the underlying file, if any.
func (e *EventLog) Close() error {
	if e.closer == nil {
		return nil
	}
	return e.closer.Close()
}

// emit writes one event. Console caller reports skip the EventLog methods.
func (e *EventLog) emit(level log.Level, msg string, kv ...any) {
	if e.file != nil {
		e.file.Log(level, msg, kv...)
	}
	if e.console != nil {
		e.console.Helper()
		e.console.Log(level, msg, kv...)
	}
}

// bestEffortWriter swallows write errors after reporting the first one.
type bestEffortWriter struct {
	w      io.Writer
	report func(error)
	once   sync.Once
}

func (b *bestEffortWriter) Write(p []byte) (int, error) {
	if _, err := b.w.Write(p); err != nil {
		b.once.Do(func() { b.report(err) })
	}
	return len(p), nil
}
