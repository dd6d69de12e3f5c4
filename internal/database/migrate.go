package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	mdb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// Migrate applies every pending migration for the dialect of db. It is a
// no-op when the schema is already current.
// Closing the migrator would close db, so it is left open.
func Migrate(db *bun.DB) error {
	name, driver, err := migrationDriver(db)
	if err != nil {
		return err
	}

	source, err := iofs.New(migrationsFS, "migrations/"+name)
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, name, driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func migrationDriver(db *bun.DB) (string, mdb.Driver, error) {
	switch db.Dialect().Name() {
	case dialect.PG:
		driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
		if err != nil {
			return "", nil, fmt.Errorf("failed to create postgres migration driver: %w", err)
		}
		return "postgres", driver, nil
	case dialect.SQLite:
		driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
		if err != nil {
			return "", nil, fmt.Errorf("failed to create sqlite migration driver: %w", err)
		}
		return "sqlite", driver, nil
	default:
		return "", nil, fmt.Errorf("unsupported dialect %s", db.Dialect().Name())
	}
}
