package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/desertthunder/userimport/internal/models"
	"github.com/desertthunder/userimport/internal/repositories"
	"github.com/desertthunder/userimport/internal/shared"
	"github.com/desertthunder/userimport/internal/ui"
	"github.com/urfave/cli/v3"
)

func (r *Runner) openHistory(cmd *cli.Command) (*sql.DB, error) {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return shared.OpenHistory(config.Database)
}

func runRef(cmd *cli.Command) (string, error) {
	ref := strings.TrimSpace(cmd.StringArg("run"))
	if ref == "" {
		return "", fmt.Errorf("%w: <run id or #sequence>", shared.ErrMissingArgument)
	}
	return ref, nil
}

// RunsList prints the most recent runs.
func (r *Runner) RunsList(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openHistory(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := repositories.NewRunRepository(db).List(cmd.Int("limit"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		if runs == nil {
			runs = []*models.Run{}
		}
		return r.writeJSON(runs, true)
	}
	return r.writePlain("%s\n", ui.RenderRuns(runs))
}

// RunsShow prints one run and the outcome of each of its records.
func (r *Runner) RunsShow(ctx context.Context, cmd *cli.Command) error {
	ref, err := runRef(cmd)
	if err != nil {
		return err
	}

	db, err := r.openHistory(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	run, err := repositories.NewRunRepository(db).Find(ref)
	if err != nil {
		return err
	}

	outcomes := repositories.NewOutcomeRepository(db)
	results, err := outcomes.ListByRun(run.ID)
	if err != nil {
		return err
	}
	run.Results = results

	if cmd.Bool("json") {
		return r.writeJSON(run, true)
	}

	counts, err := outcomes.CountByOutcome(run.ID)
	if err != nil {
		return err
	}

	r.writePlain("%s\n", ui.RenderRuns([]*models.Run{run}))
	r.writePlainln("%d created, %d rejected, %d permanent failures, %d exhausted",
		counts[models.OutcomeSuccess], counts[models.OutcomeRejected],
		counts[models.OutcomePermanentFailure], counts[models.OutcomeExhausted])
	return r.writePlain("%s\n", ui.RenderOutcomes(results))
}

// RunsDelete removes a run and its stored outcomes.
func (r *Runner) RunsDelete(ctx context.Context, cmd *cli.Command) error {
	ref, err := runRef(cmd)
	if err != nil {
		return err
	}

	db, err := r.openHistory(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repositories.NewRunRepository(db)
	run, err := repo.Find(ref)
	if err != nil {
		return err
	}
	if err := repo.Delete(run.ID); err != nil {
		return err
	}

	r.logger.Info("deleted run", "id", run.ID, "sequence", run.Sequence)
	return r.writePlain("✓ deleted run #%d (%s)\n", run.Sequence, run.ID)
}
