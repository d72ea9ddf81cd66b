package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/annnsvm/contactsd/internal/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	Long: `Migrate waits for Postgres to answer its readiness poll, applies the
embedded schema migrations, prints a JSON result to stdout, and exits 0 on
success or non-zero on failure.

Typical deployment runs it before the server:

  contactsd migrate && contactsd server`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slog.Info("waiting for database", "host", cfg.Postgres.Host)
	if err := app.pg.WaitReady(ctx); err != nil {
		printMigrateError(err)
		return fmt.Errorf("database not ready: %w", err)
	}
	defer app.pg.Close()

	result, err := migrations.Up(cfg.Postgres.DSN())
	if err != nil {
		printMigrateError(err)
		return fmt.Errorf("migrations failed: %w", err)
	}

	printMigrateResult(result)
	if result.Changed {
		slog.Info("migrations applied", "version", result.Version)
	} else {
		slog.Info("schema already up to date", "version", result.Version)
	}
	return nil
}

func printMigrateResult(result migrations.Result) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintf(os.Stdout, `{"version":%d}`+"\n", result.Version)
	}
}

func printMigrateError(err error) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(map[string]string{"error": err.Error()}); encErr != nil {
		fmt.Fprintln(os.Stdout, `{"error":"migration failed"}`)
	}
}
