package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrateSessionSchema applies the embedded session_kv migrations to the
// database at dbPath and returns the resulting schema version.
func MigrateSessionSchema(dbPath string) (uint, error) {
	// own handle: migrate closes it with the instance
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return 0, fmt.Errorf("open migration database: %w", err)
	}
	defer conn.Close()

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("load session migrations: %w", err)
	}
	target, err := sqlite.WithInstance(conn, &sqlite.Config{MigrationsTable: "session_schema_migrations"})
	if err != nil {
		return 0, fmt.Errorf("sqlite migration target: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", target)
	if err != nil {
		return 0, fmt.Errorf("prepare session migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migrate session schema: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read session schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("session schema version %d is dirty", version)
	}
	return version, nil
}
