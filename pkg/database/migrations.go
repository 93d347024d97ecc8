package database

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdata/migrations"
)

// MigrationsTable records applied versions. It is namespaced so the session
// table can live in a database shared with other applications.
const MigrationsTable = "ekaya_askdata_schema_migrations"

// RunMigrations applies pending migrations from dir, or from the migrations
// compiled into the binary when dir is empty.
func RunMigrations(db *sql.DB, dir string, logger *zap.Logger) error {
	var fsys fs.FS = migrations.FS
	if dir != "" {
		fsys = os.DirFS(dir)
	}

	src, err := iofs.New(fsys, ".")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: MigrationsTable})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			logger.Warn("Failed to close migration source", zap.Error(srcErr))
		}
		if dbErr != nil {
			logger.Warn("Failed to close migration database", zap.Error(dbErr))
		}
	}()

	err = m.Up()
	var dirty migrate.ErrDirty
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Debug("Session schema up to date")
		return nil
	case errors.As(err, &dirty):
		return fmt.Errorf("session schema is dirty at version %d, repair it and force the version: %w", dirty.Version, err)
	case err != nil:
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, _, _ := m.Version()
	logger.Info("Applied session migrations", zap.Uint("version", version))
	return nil
}

// MigrateURL opens url with the pgx database/sql driver and runs RunMigrations.
func MigrateURL(url, dir string, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", url)
	if err != nil {
		return fmt.Errorf("failed to open sql connection: %w", err)
	}
	defer sqlDB.Close()

	return RunMigrations(sqlDB, dir, logger)
}

// Migrate runs RunMigrations over the pool. Call it after NewConnection so the
// migrations wait for the same readiness check as the pool.
func (db *DB) Migrate(dir string, logger *zap.Logger) error {
	return RunMigrations(stdlib.OpenDBFromPool(db.Pool), dir, logger)
}
