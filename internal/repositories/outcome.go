package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/userimport/internal/models"
	"github.com/desertthunder/userimport/internal/shared"
)

// OutcomeRepository persists per-record results of a run.
//
// It satisfies tasks.OutcomeRecorder.
type OutcomeRepository struct {
	db *sql.DB
}

// NewOutcomeRepository creates a new OutcomeRepository with the given database connection
func NewOutcomeRepository(db *sql.DB) *OutcomeRepository {
	return &OutcomeRepository{db: db}
}

// RecordOutcome inserts res for the run with the given ID.
func (r *OutcomeRepository) RecordOutcome(ctx context.Context, runID string, res models.RecordResult) error {
	query := `
		INSERT INTO record_outcomes (
			id, run_id, row_index, email, outcome, attempts, failure_kind, message, waited_ms, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		shared.GenerateID(),
		runID,
		res.Row,
		res.Email,
		string(res.Outcome),
		res.Attempts,
		res.KindName(),
		res.Message,
		res.Waited.Milliseconds(),
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert record outcome: %w", err)
	}
	return nil
}

// ListByRun returns the outcomes of a run in row order.
func (r *OutcomeRepository) ListByRun(runID string) ([]models.RecordResult, error) {
	query := `
		SELECT row_index, email, outcome, attempts, failure_kind, message, waited_ms
		FROM record_outcomes
		WHERE run_id = ?
		ORDER BY row_index ASC
	`

	rows, err := r.db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query record outcomes: %w", err)
	}
	defer rows.Close()

	var results []models.RecordResult
	for rows.Next() {
		var (
			res      models.RecordResult
			outcome  string
			kind     string
			waitedMS int64
		)
		if err := rows.Scan(&res.Row, &res.Email, &outcome, &res.Attempts, &kind, &res.Message, &waitedMS); err != nil {
			return nil, fmt.Errorf("failed to scan record outcome: %w", err)
		}
		res.Outcome = models.Outcome(outcome)
		res.Kind = models.ParseFailureKind(kind)
		res.Waited = time.Duration(waitedMS) * time.Millisecond
		results = append(results, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating record outcomes: %w", err)
	}

	return results, nil
}

// CountByOutcome tallies the stored outcomes of a run.
func (r *OutcomeRepository) CountByOutcome(runID string) (map[models.Outcome]int, error) {
	rows, err := r.db.Query(`SELECT outcome, COUNT(*) FROM record_outcomes WHERE run_id = ? GROUP BY outcome`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count record outcomes: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Outcome]int)
	for rows.Next() {
		var (
			outcome string
			n       int
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("failed to scan outcome count: %w", err)
		}
		counts[models.Outcome(outcome)] = n
	}
	return counts, rows.Err()
}
