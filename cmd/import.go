package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/userimport/internal/formatter"
	"github.com/desertthunder/userimport/internal/models"
	"github.com/desertthunder/userimport/internal/repositories"
	"github.com/desertthunder/userimport/internal/services"
	"github.com/desertthunder/userimport/internal/shared"
	"github.com/desertthunder/userimport/internal/tasks"
	"github.com/desertthunder/userimport/internal/ui"
	"github.com/urfave/cli/v3"
)

const progressBuffer = 256

// Import creates one user per valid row of the input file.
//
// Setup problems (unreadable or empty file, missing token, bad config) are returned and end the process with a
// non-zero status. Record-level failures are logged and counted, and the command still succeeds.
func (r *Runner) Import(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("file_path")
	if path == "" {
		return fmt.Errorf("%w: <file_path>", shared.ErrMissingArgument)
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	token := strings.TrimSpace(cmd.String("api_token"))
	if token == "" {
		return fmt.Errorf("%w: pass --api_token or set %s", shared.ErrMissingToken, TokenEnvVar)
	}

	users, err := formatter.OpenUsers(path)
	if err != nil {
		return err
	}
	defer users.Close()

	if missing := users.MissingColumns(); len(missing) > 0 {
		r.logger.Warn("header is missing required columns, every row will be rejected",
			"missing", strings.Join(missing, ","))
	}

	svc, err := services.NewUserService(services.UserServiceOpts{
		EndpointURL:       config.API.EndpointURL,
		Token:             token,
		Timeout:           config.API.Timeout.Duration,
		RequestsPerSecond: config.API.RequestsPerSecond,
		Client:            r.httpClient,
	})
	if err != nil {
		return err
	}

	var console *log.Logger
	if config.Log.Console {
		console = r.logger
	}
	events := shared.NewEventLog(config.Log.File, console)
	defer events.Close()

	run := models.NewRun(path, svc.Endpoint())

	var recorder tasks.OutcomeRecorder
	var runs *repositories.RunRepository
	if !cmd.Bool("no-history") && config.Database.Path != "" {
		db, err := shared.OpenHistory(config.Database)
		if err != nil {
			r.logger.Warn("run history unavailable", "error", err)
		} else {
			defer db.Close()
			runs = repositories.NewRunRepository(db)
			if err := runs.Create(run); err != nil {
				r.logger.Warn("failed to record run, continuing without history", "error", err)
				runs = nil
			} else {
				recorder = repositories.NewOutcomeRepository(db)
			}
		}
	}

	importer := tasks.NewImporter(tasks.ImporterOpts{
		Service:  svc,
		Events:   events,
		Retrier:  tasks.NewRetrier(tasks.NewPolicy(config.Retry.BaseDelay.Duration), r.sleep),
		Recorder: recorder,
		Logger:   shared.WithLogger(r.logger, "source", path),
	})

	r.logger.Info("importing users", "file", path, "endpoint", svc.Endpoint())

	progress := make(chan tasks.ProgressUpdate, progressBuffer)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.showProgress(update)
		}
	}()

	runErr := importer.Run(ctx, users, run, progress)
	close(progress)
	<-done

	if runs != nil {
		if err := runs.Finish(run); err != nil {
			r.logger.Warn("failed to store run totals", "error", err)
		}
	}

	r.writePlain("%s\n", ui.RenderSummary(run))

	if report := cmd.String("report"); report != "" {
		if err := formatter.WriteReport(run, report); err != nil {
			r.logger.Error("failed to write report", "path", report, "error", err)
		} else {
			r.logger.Info("report written", "path", report)
		}
	}

	switch {
	case runErr == nil:
		return nil
	case errors.Is(runErr, context.Canceled):
		return fmt.Errorf("import interrupted after %d records: %w", run.Total, runErr)
	default:
		return runErr
	}
}

func (r *Runner) showProgress(update tasks.ProgressUpdate) {
	switch update.Phase {
	case tasks.RecordDone:
		r.writePlain("%s\n", update.Message)
	case tasks.Interrupted:
		r.logger.Warn(update.Message)
	default:
		r.logger.Debug(update.Message)
	}
}
