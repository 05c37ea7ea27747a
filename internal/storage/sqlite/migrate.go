package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunMigrations brings the ledger schema at dsn up to date. It uses its own
// connection, closed before returning, so the pool opened afterwards never
// sees a half-migrated schema. A schema left dirty by an interrupted run is
// reported rather than retried.
func RunMigrations(dsn string) error {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open ledger database for migration: %w", err)
	}
	defer db.Close()

	target, err := migratesqlite.WithInstance(db, &migratesqlite.Config{MigrationsTable: "fintrack_schema_migrations"})
	if err != nil {
		return fmt.Errorf("prepare sqlite migration target: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded ledger migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", target)
	if err != nil {
		return fmt.Errorf("create ledger migrator: %w", err)
	}
	defer m.Close()

	if _, dirty, err := m.Version(); err == nil && dirty {
		return errors.New("ledger schema is dirty after an interrupted migration")
	}

	switch err := m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
	case err != nil:
		return fmt.Errorf("apply ledger migrations: %w", err)
	}

	if version, _, err := m.Version(); err == nil {
		slog.Debug("Ledger schema ready", "backend", "sqlite", "schema_version", version)
	}
	return nil
}
