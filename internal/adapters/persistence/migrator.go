package persistence

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

type migrator struct {
	db *sqlx.DB

	logger *slog.Logger
}

func newMigrator(db *sqlx.DB, logger *slog.Logger) *migrator {
	return &migrator{
		db:     db,
		logger: logger,
	}
}

func (m *migrator) migrate() error {
	migrationSource, err := iofs.New(embeddedMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("migrate: failed to create driver from embedded migrations: %w", err)
	}
	defer migrationSource.Close()

	dbDriver, err := migratesqlite.WithInstance(m.db.DB, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("migrate: failed to create sqlite driver: %w", err)
	}

	migratorInstance, err := migrate.NewWithInstance("iofs", migrationSource, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("migrate: failed to create migration instance: %w", err)
	}

	m.logger.Info("Starting migrations...")
	if err := migratorInstance.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info("No migrations to run.")
			return nil
		}
		return fmt.Errorf("migrate: failed to run migrations: %w", err)
	}
	m.logger.Info("Migrations complete.")

	return nil
}
