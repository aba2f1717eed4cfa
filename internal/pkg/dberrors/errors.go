package dberrors

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn" // Import pgconn for PgError
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// PostgreSQL error codes the stores react to
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// IsDuplicateConstraintError checks if the error is a PostgreSQL unique violation error
// for a specific constraint.
func IsDuplicateConstraintError(err error, constraintName string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation && pgErr.ConstraintName == constraintName
}

// IsDuplicateKeyError checks if the error is any PostgreSQL unique violation
func IsDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

// IsRetryable reports whether PostgreSQL aborted the transaction because of
// concurrent access (serialization failure or deadlock)
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
}

// IsSQLiteBusy reports whether SQLite refused a statement because the database was locked
func IsSQLiteBusy(err error) bool {
	var liteErr *sqlite.Error
	if !errors.As(err, &liteErr) {
		return false
	}
	primary := liteErr.Code() & 0xff
	return primary == sqlite3.SQLITE_BUSY || primary == sqlite3.SQLITE_LOCKED
}

// IsSQLiteUniqueViolation reports whether SQLite rejected a write on a unique constraint
// on the given column list (as SQLite reports it, e.g. "rsvps.event_id, rsvps.attendee_id")
func IsSQLiteUniqueViolation(err error, columns string) bool {
	var liteErr *sqlite.Error
	if !errors.As(err, &liteErr) {
		return false
	}
	if liteErr.Code()&0xff != sqlite3.SQLITE_CONSTRAINT {
		return false
	}
	return strings.Contains(liteErr.Error(), columns)
}
