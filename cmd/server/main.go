// Package main implements the entry point for the task tracking API server,
// which manages assigned tasks through their lifecycle and runs the
// deadline reminder and overdue sweeps in the background.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/phrazzld/tasktrack-api/internal/platform/postgres"
)

func main() {
	migrate := flag.String("migrate", "",
		fmt.Sprintf("run a database migration command and exit (one of %v)", postgres.MigrationCommands))
	flag.Parse()

	if err := run(context.Background(), *migrate); err != nil {
		log.Printf("tasktrack-api: %v", err)
		os.Exit(1)
	}
}

// run loads configuration, then either executes a migration command or
// serves the API until shutdown.
func run(ctx context.Context, migrateCommand string) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}

	logger, err := setupAppLogger(cfg)
	if err != nil {
		return err
	}

	if migrateCommand != "" {
		return runMigrations(ctx, cfg, logger, migrateCommand)
	}

	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return app.Run(ctx)
}
