// Package migrations applies the embedded schema migrations.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sql/*.sql
var files embed.FS

// Result reports the schema state after a migration run.
type Result struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
	Changed bool `json:"changed"`
}

// Up applies all pending migrations against the database at dsn.
// Running against an up-to-date schema is not an error.
func Up(dsn string) (Result, error) {
	src, err := iofs.New(files, "sql")
	if err != nil {
		return Result{}, fmt.Errorf("loading embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, pgxURL(dsn))
	if err != nil {
		return Result{}, fmt.Errorf("opening migration target: %w", err)
	}
	defer m.Close()

	changed := true
	if err := m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return Result{}, fmt.Errorf("applying migrations: %w", err)
		}
		changed = false
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return Result{}, fmt.Errorf("reading schema version: %w", err)
	}

	return Result{Version: version, Dirty: dirty, Changed: changed}, nil
}

// pgxURL rewrites a postgres:// DSN to the pgx5:// scheme the migrate
// driver registers under.
func pgxURL(dsn string) string {
	if rest, ok := strings.CutPrefix(dsn, "postgres://"); ok {
		return "pgx5://" + rest
	}
	if rest, ok := strings.CutPrefix(dsn, "postgresql://"); ok {
		return "pgx5://" + rest
	}
	return dsn
}
