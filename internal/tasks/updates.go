package tasks

import (
	"fmt"
	"time"

	"github.com/desertthunder/userimport/internal/models"
)

// ProgressUpdate represents a progress event during an import.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Import phase
	Row     int    // 1-based data row the update is about
	Attempt int    // Attempt number, zero outside [Attempting] and [Waiting]
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data, a [models.RecordResult] for [RecordDone]
}

// Import phase enumeration
type Phase int

const (
	Attempting Phase = iota
	Waiting
	RecordDone
	Interrupted
)

func (p Phase) String() string {
	switch p {
	case Attempting:
		return "attempting"
	case Waiting:
		return "waiting"
	case RecordDone:
		return "record_done"
	case Interrupted:
		return "interrupted"
	default:
		return ""
	}
}

func attemptingUpdate(rec models.UserRecord, attempt int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Attempting,
		Row:     rec.Row,
		Attempt: attempt,
		Message: fmt.Sprintf("[row %d] creating %s (attempt %d/%d)", rec.Row, rec.Label(), attempt, MaxAttempts),
	}
}

func waitingUpdate(rec models.UserRecord, attempt int, kind models.FailureKind, delay time.Duration) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Waiting,
		Row:     rec.Row,
		Attempt: attempt,
		Message: fmt.Sprintf("[row %d] %s, waiting %s", rec.Row, kind, delay),
	}
}

func recordDoneUpdate(res models.RecordResult) ProgressUpdate {
	var msg string
	switch res.Outcome {
	case models.OutcomeSuccess:
		msg = fmt.Sprintf("[row %d] ✓ %s created (%d attempt(s))", res.Row, res.Email, res.Attempts)
	case models.OutcomeRejected:
		msg = fmt.Sprintf("[row %d] ✗ rejected: %s", res.Row, res.Message)
	default:
		msg = fmt.Sprintf("[row %d] ✗ %s %s after %d attempt(s): %s", res.Row, res.Email, res.Outcome, res.Attempts, res.Message)
	}
	return ProgressUpdate{Phase: RecordDone, Row: res.Row, Attempt: res.Attempts, Message: msg, Data: res}
}

func interruptedUpdate(row int) ProgressUpdate {
	return ProgressUpdate{Phase: Interrupted, Row: row, Message: fmt.Sprintf("interrupted at row %d", row)}
}
