package repositories

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/yigit/eventsignup/internal/app/services"
	"github.com/yigit/eventsignup/internal/db"
	"github.com/yigit/eventsignup/internal/pkg/apperrors"
	"github.com/yigit/eventsignup/internal/pkg/dberrors"
)

// Constraint names from migrations/001_init.sql
const (
	constraintEventAttendee = "rsvps_event_attendee_key"
	constraintWaitlistSlot  = "rsvps_event_waitlist_key"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// queries holds the reads shared by the pool and by a locked transaction
type queries struct {
	q  querier
	sb squirrel.StatementBuilderType
}

func newQueries(q querier) queries {
	return queries{
		q:  q,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Store is the PostgreSQL implementation of services.Store
type Store struct {
	queries
	db *db.PostgresDB
}

var _ services.Store = (*Store)(nil)

// NewStore creates a new Store over an open connection pool
func NewStore(database *db.PostgresDB) *Store {
	return &Store{
		queries: newQueries(database.Pool),
		db:      database,
	}
}

// eventTx is the view of the store handed to a LockedFunc
type eventTx struct {
	queries
}

var _ services.EventTx = (*eventTx)(nil)

// WithEventLock locks the event row for the duration of one transaction and
// runs fn against it. Serialization failures, deadlocks and waitlist slot
// collisions are reported as apperrors.ErrCapacityRaceLost.
func (s *Store) WithEventLock(ctx context.Context, eventID int64, fn services.LockedFunc) error {
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		locked := &eventTx{queries: newQueries(tx)}
		event, err := locked.loadEvent(ctx, eventID, true)
		if err != nil {
			return err
		}
		return fn(ctx, event, locked)
	})
	if err == nil {
		return nil
	}
	if dberrors.IsRetryable(err) || dberrors.IsDuplicateConstraintError(err, constraintWaitlistSlot) {
		return fmt.Errorf("%w: %v", apperrors.ErrCapacityRaceLost, err)
	}
	return err
}
