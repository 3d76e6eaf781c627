package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/duet/internal/shared"
)

// SetupDatabase initializes the database and runs migrations.
//
// A missing config file is created from the template first so the database path it names can be edited later.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	if r.configPath != "" {
		if _, err := os.Stat(r.configPath); os.IsNotExist(err) {
			r.logger.Info("config file not found, creating from template", "path", r.configPath)
			if err := shared.CreateConfigFile(r.configPath); err != nil {
				r.logger.Warn("failed to create config file, using defaults", "error", err)
			}
		}
	}

	config := r.cfg()
	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := r.openDB()
	if err != nil {
		return err
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&count); err != nil {
		return fmt.Errorf("failed to read migration state: %w", err)
	}

	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	return r.writePlain("✓ Database ready at %s (%d migrations applied)\n", config.Database.Path, count)
}

// SetupConfig writes the config template to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	if path == "" {
		path = cmd.String("config")
	}
	if path == "" {
		return fmt.Errorf("%w: --config", shared.ErrMissingArgument)
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("✓ Wrote %s\n", path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Fill in [credentials.spotify] with your client and tokens\n")
	r.writePlain("2. Fill in [credentials.assistant] with the assistant proxy key\n")
	r.writePlain("3. Run 'duet setup database', then 'duet session ui'\n")
	return nil
}

// SetupRollback reverts the most recently applied migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	config := r.cfg()

	db := r.db
	if db == nil {
		var err error
		if db, err = shared.NewDatabase(config.Database.Path); err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
	}

	if err := shared.RollbackMigration(db); err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}

	r.logger.Info("rolled back latest migration", "path", config.Database.Path)
	return r.writePlain("✓ Rolled back the latest migration\n")
}
