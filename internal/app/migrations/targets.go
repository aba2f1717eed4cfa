package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// postgresTarget tracks migrations in PostgreSQL
type postgresTarget struct {
	db *pgxpool.Pool
}

// PostgresTarget returns a Target over a pgx pool
func PostgresTarget(db *pgxpool.Pool) Target {
	return &postgresTarget{db: db}
}

func (t *postgresTarget) EnsureMigrationTable(ctx context.Context) error {
	_, err := t.db.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version VARCHAR(255) PRIMARY KEY,
		applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`)
	if err != nil {
		return fmt.Errorf("failed to create migration tracking table: %w", err)
	}
	return nil
}

func (t *postgresTarget) IsApplied(ctx context.Context, version string) (bool, error) {
	var exists bool
	err := t.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1);`, version).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check migration status: %w", err)
	}
	return exists, nil
}

func (t *postgresTarget) Apply(ctx context.Context, version, statements string) error {
	tx, err := t.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, statements); err != nil {
		return fmt.Errorf("error occurred during SQL migration execution: %w", err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, applied_at) VALUES ($1, $2)`,
		version, time.Now()); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit(ctx)
}

// sqlTarget tracks migrations through database/sql (SQLite)
type sqlTarget struct {
	db *sql.DB
}

// SQLTarget returns a Target over a database/sql handle using ? placeholders
func SQLTarget(db *sql.DB) Target {
	return &sqlTarget{db: db}
}

func (t *sqlTarget) EnsureMigrationTable(ctx context.Context) error {
	_, err := t.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at INTEGER NOT NULL
	);`)
	if err != nil {
		return fmt.Errorf("failed to create migration tracking table: %w", err)
	}
	return nil
}

func (t *sqlTarget) IsApplied(ctx context.Context, version string) (bool, error) {
	var exists bool
	err := t.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?);`, version).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check migration status: %w", err)
	}
	return exists, nil
}

func (t *sqlTarget) Apply(ctx context.Context, version, statements string) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, statements); err != nil {
		return fmt.Errorf("error occurred during SQL migration execution: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
		version, time.Now().UTC().UnixMilli()); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit()
}
