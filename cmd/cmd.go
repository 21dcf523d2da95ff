// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/userimport/internal/repositories"
	"github.com/desertthunder/userimport/internal/server"
	"github.com/desertthunder/userimport/internal/services"
	"github.com/desertthunder/userimport/internal/shared"
	"github.com/urfave/cli/v3"
)

// TokenEnvVar is read when --api_token is not passed.
const TokenEnvVar = "USERIMPORT_API_TOKEN"

// app builds the root command: `userimport [flags] <file_path>` imports a file, subcommands manage everything else.
func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:      "userimport",
		Usage:     "Create users from a CSV file through a REST API, retrying transient failures",
		ArgsUsage: "<file_path>",
		Version:   "0.1.0",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "file_path"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.StringFlag{
				Name:  "endpoint_url",
				Usage: "User creation endpoint",
				Value: services.DefaultEndpointURL,
			},
			&cli.StringFlag{
				Name:    "api_token",
				Usage:   "Bearer token sent with every request",
				Sources: cli.EnvVars(TokenEnvVar),
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Append-only event log",
				Value: shared.DefaultEventLogPath,
			},
			&cli.DurationFlag{
				Name:  "base-delay",
				Usage: "Backoff base delay; attempt n waits base * 2^(n-2)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Per-request timeout",
			},
			&cli.FloatFlag{
				Name:  "rate",
				Usage: "Maximum requests per second, 0 for unpaced",
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "Write an outcome report (.csv, .json or .md)",
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not record the run in the history database",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Do not mirror record events to the console",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Action:   r.Import,
		Commands: r.register(),
	}
}

// setupCommand writes the config template and prepares the history database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create config.toml (if absent) and initialize the history database",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "reset",
				Usage: "Drop and recreate every history table",
			},
			&cli.BoolFlag{
				Name:  "rollback",
				Usage: "Revert the most recent migration",
			},
		},
		Action: r.Setup,
	}
}

// runsCommand reads the run history.
func runsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "Inspect previous imports",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List recent runs, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to show",
						Value: repositories.DefaultListLimit,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output JSON",
					},
				},
				Action: r.RunsList,
			},
			{
				Name:      "show",
				Usage:     "Show the per-record outcomes of a run",
				ArgsUsage: "<run id or #sequence>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "run"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output JSON",
					},
				},
				Action: r.RunsShow,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete a run and its outcomes",
				ArgsUsage: "<run id or #sequence>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "run"},
				},
				Action: r.RunsDelete,
			},
		},
	}
}

// previewCommand shows validation results without calling the API.
func previewCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "preview",
		Aliases:   []string{"ui"},
		Usage:     "Browse the rows of a file with their validation status",
		ArgsUsage: "<file_path>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "file_path"},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "plain",
				Usage: "Print a static table instead of the interactive view",
			},
		},
		Action: r.Preview,
	}
}

// sandboxCommand serves a local stand-in for the create-user endpoint.
func sandboxCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sandbox",
		Usage: "Serve a local create-user endpoint for dry runs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Interface to listen on",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on",
			},
			&cli.StringFlag{
				Name:  "token",
				Usage: "Bearer token clients must send, empty to accept any",
			},
			&cli.StringFlag{
				Name:  "path",
				Usage: "Path of the create-user route",
				Value: server.DefaultCreatePath,
			},
			&cli.IntFlag{
				Name:  "fail-first",
				Usage: "Answer 503 to the first N requests for each email",
			},
		},
		Action: r.Sandbox,
	}
}
