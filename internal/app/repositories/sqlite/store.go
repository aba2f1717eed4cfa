// Package sqlite provides a SQLite-backed implementation of services.Store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/yigit/eventsignup/internal/app/migrations"
	"github.com/yigit/eventsignup/internal/app/services"
	"github.com/yigit/eventsignup/internal/pkg/apperrors"
	"github.com/yigit/eventsignup/internal/pkg/dberrors"

	schema "github.com/yigit/eventsignup/internal/app/repositories/sqlite/migrations"
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

type queries struct {
	q  querier
	sb squirrel.StatementBuilderType
}

func newQueries(q querier) queries {
	return queries{
		q:  q,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}
}

// Store persists events and rsvps in SQLite. All access goes through a
// single connection, which serializes writers.
type Store struct {
	queries
	sqlDB *sql.DB
}

var _ services.Store = (*Store)(nil)

type eventTx struct {
	queries
}

var _ services.EventTx = (*eventTx)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite store and applies the embedded migrations
func Open(path string, logger zerolog.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := migrations.NewMigrator(migrations.SQLTarget(sqlDB), logger).Migrate(context.Background(), schema.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{queries: newQueries(sqlDB), sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// WithEventLock runs fn in a transaction holding the only connection.
// SQLITE_BUSY from another process is reported as apperrors.ErrCapacityRaceLost.
func (s *Store) WithEventLock(ctx context.Context, eventID int64, fn services.LockedFunc) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		locked := &eventTx{queries: newQueries(tx)}
		event, err := locked.loadEvent(ctx, eventID)
		if err != nil {
			return err
		}
		return fn(ctx, event, locked)
	})
	if err != nil && dberrors.IsSQLiteBusy(err) {
		return fmt.Errorf("%w: %v", apperrors.ErrCapacityRaceLost, err)
	}
	return err
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
