package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/desertthunder/userimport/internal/shared"
	"github.com/urfave/cli/v3"
)

// configFile is the path named by --config, or the runner's ConfigPath when the flag is not set.
func (r *Runner) configFile(cmd *cli.Command) (path string, explicit bool) {
	if cmd.IsSet("config") || r.configPath == "" {
		return cmd.String("config"), cmd.IsSet("config")
	}
	return r.configPath, false
}

// loadConfig resolves the effective configuration: defaults, then the config file, then flags.
//
// A missing config file is only an error when --config was given explicitly.
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	path, explicit := r.configFile(cmd)

	var config *shared.Config
	if _, err := os.Stat(path); err == nil {
		if config, err = shared.LoadConfig(path); err != nil {
			return nil, err
		}
		r.logger.Debug("loaded config", "path", path)
	} else if explicit {
		return nil, fmt.Errorf("%w: %s", shared.ErrMissingConfig, path)
	} else {
		c := *r.config
		config = &c
	}

	if cmd.IsSet("endpoint_url") {
		config.API.EndpointURL = cmd.String("endpoint_url")
	}
	if cmd.IsSet("timeout") {
		config.API.Timeout.Duration = cmd.Duration("timeout")
	}
	if cmd.IsSet("rate") {
		config.API.RequestsPerSecond = cmd.Float("rate")
	}
	if cmd.IsSet("base-delay") {
		config.Retry.BaseDelay.Duration = cmd.Duration("base-delay")
	}
	if cmd.IsSet("log-file") {
		config.Log.File = cmd.String("log-file")
	}
	if cmd.Bool("quiet") {
		config.Log.Console = false
	}
	if cmd.Bool("debug") {
		config.Log.Level = "debug"
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	shared.SetLogLevel(r.logger, shared.ParseLogLevel(config.Log.Level))
	return config, nil
}

// Setup writes the config template when absent, then initializes the history database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath, _ := r.configFile(cmd)

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else {
			r.writePlain("✓ wrote %s\n", configPath)
		}
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	if config.Database.Path == "" {
		return fmt.Errorf("%w: database.path is empty, history is disabled", shared.ErrMissingConfig)
	}

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	switch {
	case cmd.Bool("reset"):
		r.logger.Warn("resetting database, stored runs are discarded")
		if err := shared.RunMigrations(db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		if err := shared.ResetDatabase(db); err != nil {
			return fmt.Errorf("failed to reset database: %w", err)
		}
	case cmd.Bool("rollback"):
		if err := shared.RollbackMigration(db); err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
		return r.writePlain("✓ rolled back the latest migration of %s\n", config.Database.Path)
	default:
		r.logger.Info("running database migrations")
		if err := shared.RunMigrations(db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return r.writePlain("✓ database ready: %s\n", config.Database.Path)
}
