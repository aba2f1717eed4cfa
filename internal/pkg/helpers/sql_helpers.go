package helpers

import (
	"database/sql"
	"time"
)

// NullIntFromPtr converts an int pointer to sql.NullInt64.
// A nil pointer becomes NULL; zero stays a valid value.
func NullIntFromPtr(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

// IntPtrFromNull converts sql.NullInt64 back to an int pointer
func IntPtrFromNull(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

// NullMillisFromTime stores an optional time as unix milliseconds
func NullMillisFromTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UTC().UnixMilli(), Valid: true}
}

// TimeFromNullMillis is the inverse of NullMillisFromTime
func TimeFromNullMillis(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.UnixMilli(n.Int64).UTC()
	return &t
}
