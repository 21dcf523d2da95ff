package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/userimport/internal/models"
	"github.com/desertthunder/userimport/internal/shared"
)

// DefaultListLimit caps [RunRepository.List] when no limit is given.
const DefaultListLimit = 20

const runColumns = `id, sequence, source_path, endpoint_url, started_at, finished_at,
	total, succeeded, rejected, failed, interrupted`

// RunRepository persists import run summaries.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts run with a generated ID (unless one is set) and the next sequence number.
func (r *RunRepository) Create(run *models.Run) error {
	sequence, err := NextSequence(r.db, "runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	if run.ID == "" {
		run.ID = shared.GenerateID()
	}
	run.Sequence = sequence

	query := `
		INSERT INTO runs (
			id, sequence, source_path, endpoint_url, started_at, finished_at,
			total, succeeded, rejected, failed, interrupted
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		run.ID,
		run.Sequence,
		run.SourcePath,
		run.EndpointURL,
		run.StartedAt,
		nullTime(run.FinishedAt),
		run.Total,
		run.Succeeded,
		run.Rejected,
		run.Failed,
		run.Interrupted,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	return nil
}

// Finish stores the end time, counters and interrupted flag of run.
func (r *RunRepository) Finish(run *models.Run) error {
	query := `
		UPDATE runs
		SET finished_at = ?, total = ?, succeeded = ?, rejected = ?, failed = ?, interrupted = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		nullTime(run.FinishedAt),
		run.Total,
		run.Succeeded,
		run.Rejected,
		run.Failed,
		run.Interrupted,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrRunNotFound, run.ID)
	}

	return nil
}

// Get retrieves a run summary by ID. Results are not loaded.
func (r *RunRepository) Get(id string) (*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ?`
	return r.scanOne(r.db.QueryRow(query, id), id)
}

// GetBySequence retrieves a run summary by its sequence number.
func (r *RunRepository) GetBySequence(sequence int) (*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE sequence = ?`
	return r.scanOne(r.db.QueryRow(query, sequence), "#"+strconv.Itoa(sequence))
}

// Find resolves ref as a run ID or a sequence number (optionally prefixed with '#').
func (r *RunRepository) Find(ref string) (*models.Run, error) {
	ref = strings.TrimSpace(ref)
	if shared.IsID(ref) {
		return r.Get(ref)
	}

	sequence, err := strconv.Atoi(strings.TrimPrefix(ref, "#"))
	if err != nil || sequence <= 0 {
		return nil, fmt.Errorf("%w: %q is neither a run ID nor a sequence number", shared.ErrInvalidArgument, ref)
	}
	return r.GetBySequence(sequence)
}

// List returns the most recent runs first. A limit of zero or less uses [DefaultListLimit].
func (r *RunRepository) List(limit int) ([]*models.Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `SELECT ` + runColumns + ` FROM runs ORDER BY sequence DESC LIMIT ?`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// Delete removes a run and, through the foreign key cascade, its record outcomes.
func (r *RunRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrRunNotFound, id)
	}
	return nil
}

func (r *RunRepository) scanOne(row *sql.Row, ref string) (*models.Run, error) {
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrRunNotFound, ref)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*models.Run, error) {
	var (
		run      models.Run
		finished sql.NullTime
	)

	err := s.Scan(
		&run.ID,
		&run.Sequence,
		&run.SourcePath,
		&run.EndpointURL,
		&run.StartedAt,
		&finished,
		&run.Total,
		&run.Succeeded,
		&run.Rejected,
		&run.Failed,
		&run.Interrupted,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	if finished.Valid {
		run.FinishedAt = finished.Time
	}
	return &run, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
