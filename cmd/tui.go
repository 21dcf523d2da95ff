package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/userimport/internal/formatter"
	"github.com/desertthunder/userimport/internal/shared"
	"github.com/desertthunder/userimport/internal/ui"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"
)

// Preview shows every row of a file with the verdict validation would reach, without calling the API.
//
// The interactive table needs a terminal; with --plain or redirected output a static table is printed instead.
func (r *Runner) Preview(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("file_path")
	if path == "" {
		return fmt.Errorf("%w: <file_path>", shared.ErrMissingArgument)
	}

	users, err := formatter.OpenUsers(path)
	if err != nil {
		return err
	}
	defer users.Close()

	if missing := users.MissingColumns(); len(missing) > 0 {
		r.logger.Warn("header is missing required columns", "missing", strings.Join(missing, ","))
	}

	if cmd.Bool("plain") || !r.interactive() {
		rows, err := ui.LoadPreview(users)
		if err != nil {
			return err
		}
		r.writePlain("%s\n", ui.RenderPreviewTable(rows))
		return r.writePlain("%d rows, %d invalid\n", len(rows), ui.CountInvalid(rows))
	}

	// Log lines would tear the alternate screen, so they go to a file while the program runs.
	fileLogger, logFile, err := shared.NewFileLogger(previewLogPath())
	if err != nil {
		return err
	}
	defer logFile.Close()
	previous := r.logger
	r.SetLogger(fileLogger)
	defer r.SetLogger(previous)

	model := ui.NewModel(path, func() ([]ui.PreviewRow, error) {
		r.logger.Debug("loading preview rows", "file", path)
		return ui.LoadPreview(users)
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running preview: %w", err)
	}

	return nil
}

func previewLogPath() string {
	return filepath.Join(os.TempDir(), "userimport", "preview.log")
}

// interactive reports whether output goes to a terminal.
func (r *Runner) interactive() bool {
	f, ok := r.output.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
