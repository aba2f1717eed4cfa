package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/yigit/eventsignup/internal/app/models"
	"github.com/yigit/eventsignup/internal/pkg/helpers"
)

// ListUnremindedSessionRsvps returns the attendances of a session that were never reminded
func (s *Store) ListUnremindedSessionRsvps(ctx context.Context, sessionID int64) ([]*models.RsvpSession, error) {
	query, args, err := s.sb.Select("rs.id", "rs.rsvp_id", "rs.event_session_id", "rs.reminded_at",
		"r.attendee_id", "r.attendee_email").
		From("rsvp_sessions rs").
		Join("rsvps r ON r.id = rs.rsvp_id").
		Where(squirrel.Eq{"rs.event_session_id": sessionID, "rs.reminded_at": nil}).
		OrderBy("rs.id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build session attendance query: %w", err)
	}
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list session attendances: %w", err)
	}
	defer rows.Close()

	attendances := []*models.RsvpSession{}
	for rows.Next() {
		a := &models.RsvpSession{}
		var remindedAt sql.NullInt64
		if err := rows.Scan(&a.ID, &a.RsvpID, &a.EventSessionID, &remindedAt, &a.AttendeeID, &a.AttendeeEmail); err != nil {
			return nil, fmt.Errorf("scan session attendance: %w", err)
		}
		a.RemindedAt = helpers.TimeFromNullMillis(remindedAt)
		attendances = append(attendances, a)
	}
	return attendances, rows.Err()
}

// ClaimRsvpSessionReminder stamps reminded_at on one session attendance unless already set
func (s *Store) ClaimRsvpSessionReminder(ctx context.Context, rsvpSessionID int64, at time.Time) (bool, error) {
	query, args, err := s.sb.Update("rsvp_sessions").
		Set("reminded_at", toMillis(at)).
		Where(squirrel.Eq{"id": rsvpSessionID, "reminded_at": nil}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build claim session reminder query: %w", err)
	}
	res, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("claim session reminder: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim session reminder: %w", err)
	}
	return n == 1, nil
}
