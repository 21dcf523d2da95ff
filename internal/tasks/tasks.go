// package tasks implements the import pipeline over a user CSV file.
//
// The core abstraction is Importer, which validates each row, creates the account through a [services.UserCreator]
// and retries transient failures under a [Policy].
// Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/userimport/internal/formatter"
	"github.com/desertthunder/userimport/internal/models"
	"github.com/desertthunder/userimport/internal/services"
	"github.com/desertthunder/userimport/internal/shared"
)

// RowSource yields raw data rows until [io.EOF]. [formatter.UserReader] implements it.
type RowSource interface {
	Next() (models.RawRow, error)
}

// OutcomeRecorder persists record results as they are produced.
// The repositories package provides the SQLite implementation.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, runID string, res models.RecordResult) error
}

// ImporterOpts configures [NewImporter].
type ImporterOpts struct {
	Service  services.UserCreator
	Events   *shared.EventLog
	Retrier  *Retrier
	Recorder OutcomeRecorder // optional
	Logger   *log.Logger     // optional, debug details only
}

// Importer processes rows one at a time: no record starts before the previous one reached a terminal state.
type Importer struct {
	service  services.UserCreator
	events   *shared.EventLog
	retrier  *Retrier
	recorder OutcomeRecorder
	logger   *log.Logger
}

// NewImporter creates an [Importer]. A nil Retrier uses [DefaultPolicy] with a real timer.
func NewImporter(opts ImporterOpts) *Importer {
	if opts.Retrier == nil {
		opts.Retrier = NewRetrier(DefaultPolicy(), nil)
	}
	if opts.Events == nil {
		opts.Events = shared.NewEventLogWriter(io.Discard, nil)
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &Importer{
		service:  opts.Service,
		events:   opts.Events,
		retrier:  opts.Retrier,
		recorder: opts.Recorder,
		logger:   opts.Logger,
	}
}

// sendProgress sends a progress update through the channel.
//
// Attempting and Waiting updates are dropped when the channel is full. RecordDone and Interrupted updates
// wait for the consumer until ctx ends, so every record outcome reaches a reader that keeps draining.
func (i *Importer) sendProgress(ctx context.Context, progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
		return
	default:
	}
	if update.Phase == Attempting || update.Phase == Waiting {
		return
	}
	select {
	case progress <- update:
	case <-ctx.Done():
	}
}

// Run reads every row from src and adds one [models.RecordResult] per row to run.
//
// Per-record failures never stop the run. A fatal read error is returned after the rows read so far have been added.
// When ctx is cancelled the run is marked interrupted, the record in flight is left out, and the context error is returned.
// run is finished (end time stamped) in every case.
func (i *Importer) Run(ctx context.Context, src RowSource, run *models.Run, progress chan<- ProgressUpdate) error {
	if i.service == nil {
		return fmt.Errorf("%w: no user service configured", shared.ErrInvalidConfig)
	}

	interrupted := false
	defer func() { run.Finish(interrupted) }()

	lastRow := 0
	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			interrupted = true
			i.sendProgress(ctx, progress, interruptedUpdate(lastRow+1))
			return ctxErr
		}

		row, readErr := src.Next()
		if errors.Is(readErr, io.EOF) {
			return nil
		}

		var rowErr *formatter.RowError
		switch {
		case errors.As(readErr, &rowErr):
			lastRow = rowErr.Row
			i.reject(ctx, run, progress, rowErr.Row, rowErr)
			continue
		case readErr != nil:
			return readErr
		}
		lastRow = row.Index

		rec, valErr := models.ParseUserRecord(row)
		if valErr != nil {
			i.reject(ctx, run, progress, row.Index, valErr)
			continue
		}

		res, done := i.create(ctx, rec, progress)
		if !done {
			interrupted = true
			i.sendProgress(ctx, progress, interruptedUpdate(rec.Row))
			return ctx.Err()
		}
		i.finish(ctx, run, progress, res)
	}
}

func (i *Importer) reject(ctx context.Context, run *models.Run, progress chan<- ProgressUpdate, row int, reason error) {
	i.events.Rejected(row, reason)
	i.finish(ctx, run, progress, models.RecordResult{
		Row:     row,
		Outcome: models.OutcomeRejected,
		Message: reason.Error(),
	})
}

// create drives the attempts for one record. done is false when ctx ended before a terminal state.
func (i *Importer) create(ctx context.Context, rec models.UserRecord, progress chan<- ProgressUpdate) (models.RecordResult, bool) {
	requestID := shared.GenerateID()
	logger := i.logger.With("row", rec.Row, "email", rec.Email, "request_id", requestID)
	maxAttempts := i.retrier.Policy().MaxAttempts

	attempt := func(ctx context.Context, n int) error {
		i.sendProgress(ctx, progress, attemptingUpdate(rec, n))
		started := time.Now()
		res, err := i.service.CreateUser(ctx, rec, requestID)
		if err != nil {
			logger.Debug("attempt failed", "attempt", n, "elapsed", time.Since(started), "err", err)
			return err
		}
		logger.Debug("attempt succeeded", "attempt", n, "status", res.StatusCode, "elapsed", time.Since(started))
		return nil
	}

	onRetry := func(n int, kind models.FailureKind, delay time.Duration, err error) {
		i.events.Retrying(rec.Row, rec.Email, n, maxAttempts, kind.String(), delay)
		i.sendProgress(ctx, progress, waitingUpdate(rec, n, kind, delay))
	}

	rr, err := i.retrier.Do(ctx, attempt, onRetry)

	res := models.RecordResult{
		Row:      rec.Row,
		Name:     rec.Name,
		Email:    rec.Email,
		Attempts: rr.Attempts,
		Kind:     rr.Kind,
		Waited:   rr.Waited,
	}

	switch {
	case err == nil:
		res.Outcome = models.OutcomeSuccess
		return res, true
	case ctx.Err() != nil && (rr.Kind == models.KindNone || errors.Is(err, ctx.Err())):
		logger.Debug("record interrupted", "attempts", rr.Attempts, "err", err)
		return res, false
	case errors.Is(err, shared.ErrRetryExhausted):
		res.Outcome = models.OutcomeExhausted
	default:
		res.Outcome = models.OutcomePermanentFailure
	}

	res.Message = failureMessage(err)
	i.events.Abandoned(rec.Row, rec.Email, string(res.Outcome), res.Attempts, err)
	return res, true
}

func (i *Importer) finish(ctx context.Context, run *models.Run, progress chan<- ProgressUpdate, res models.RecordResult) {
	run.Add(res)
	i.sendProgress(ctx, progress, recordDoneUpdate(res))

	if i.recorder == nil || run.ID == "" {
		return
	}
	if err := i.recorder.RecordOutcome(context.WithoutCancel(ctx), run.ID, res); err != nil {
		i.logger.Warn("failed to record outcome", "row", res.Row, "err", err)
	}
}

// failureMessage prefers the classified API error over the retry wrapping around it.
func failureMessage(err error) string {
	var apiErr *services.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}
	return err.Error()
}
