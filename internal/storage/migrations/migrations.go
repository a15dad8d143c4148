// Package migrations runs goose schema migrations against the DMS
// database, grounded on the teacher's internal/database/migrations.go.
package migrations

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/sam-dm/deployment-manager/internal/database/postgres"
)

const dir = "migrations"

// Up applies all pending migrations.
func Up(pool postgres.DatabaseConnection, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("running database migrations")

	db, err := sqlDBFromPool(pool)
	if err != nil {
		return fmt.Errorf("opening sql db: %w", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("database migrations complete")
	return nil
}

// DownTo rolls back to the given migration version (0 rolls back everything).
func DownTo(pool postgres.DatabaseConnection, version int64, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("rolling back database migrations", "target_version", version)

	db, err := sqlDBFromPool(pool)
	if err != nil {
		return fmt.Errorf("opening sql db: %w", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.DownTo(db, dir, version); err != nil {
		return fmt.Errorf("rolling back migrations: %w", err)
	}

	logger.Info("migration rollback complete", "target_version", version)
	return nil
}

// Status prints the current migration status to stdout via goose.
func Status(pool postgres.DatabaseConnection, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sqlDBFromPool(pool)
	if err != nil {
		return fmt.Errorf("opening sql db: %w", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	return goose.Status(db, dir)
}

// sqlDBFromPool opens a database/sql connection alongside the pgx pool,
// since goose needs a *sql.DB rather than a pgxpool.Pool.
func sqlDBFromPool(pool postgres.DatabaseConnection) (*sql.DB, error) {
	pgPool, ok := pool.(*postgres.PostgresPool)
	if !ok {
		return nil, fmt.Errorf("unsupported pool type %T", pool)
	}
	config := pgPool.GetConfig()

	db, err := sql.Open("pgx", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening sql db: %w", err)
	}
	db.SetMaxOpenConns(int(config.MaxConns))
	db.SetMaxIdleConns(int(config.MinConns))
	db.SetConnMaxLifetime(config.MaxConnLifetime)
	db.SetConnMaxIdleTime(config.MaxConnIdleTime)

	return db, nil
}
