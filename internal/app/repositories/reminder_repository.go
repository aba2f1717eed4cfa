package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/yigit/eventsignup/internal/app/models"
	"github.com/yigit/eventsignup/internal/app/window"
)

// ListUpcomingEvents returns non-spam events whose first session starts inside w
func (s *Store) ListUpcomingEvents(ctx context.Context, w window.Window) ([]*models.Event, error) {
	return s.queryEvents(ctx, s.sb.Select(eventColumns...).
		From("events").
		Where(squirrel.Eq{"is_spam": false}).
		Where(firstSessionStart+" > ?", w.From).
		Where(firstSessionStart+" < ?", w.To).
		OrderBy(firstSessionStart+" ASC", "id ASC"))
}

// ListUnremindedSessionRsvps returns the attendances of a session that were never reminded
func (s *Store) ListUnremindedSessionRsvps(ctx context.Context, sessionID int64) ([]*models.RsvpSession, error) {
	sql, args, err := s.sb.Select("rs.id", "rs.rsvp_id", "rs.event_session_id", "rs.reminded_at",
		"r.attendee_id", "r.attendee_email").
		From("rsvp_sessions rs").
		Join("rsvps r ON r.id = rs.rsvp_id").
		Where(squirrel.Eq{"rs.event_session_id": sessionID, "rs.reminded_at": nil}).
		OrderBy("rs.id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build session attendance query: %w", err)
	}
	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying session attendances: %w", err)
	}
	defer rows.Close()

	attendances := []*models.RsvpSession{}
	for rows.Next() {
		a := &models.RsvpSession{}
		if err := rows.Scan(&a.ID, &a.RsvpID, &a.EventSessionID, &a.RemindedAt, &a.AttendeeID, &a.AttendeeEmail); err != nil {
			return nil, fmt.Errorf("error scanning session attendance row: %w", err)
		}
		attendances = append(attendances, a)
	}
	return attendances, rows.Err()
}

// ListUnremindedRsvps returns confirmed rsvps of the event that were never reminded
func (s *Store) ListUnremindedRsvps(ctx context.Context, eventID int64) ([]*models.Rsvp, error) {
	return s.queryRsvps(ctx, s.sb.Select(rsvpColumns...).
		From("rsvps").
		Where(squirrel.Eq{"event_id": eventID, "waitlist_position": nil, "reminded_at": nil}).
		OrderBy("id ASC"), true)
}

// ClaimRsvpReminder stamps reminded_at unless another tick already did
func (s *Store) ClaimRsvpReminder(ctx context.Context, rsvpID int64, at time.Time) (bool, error) {
	sql, args, err := s.sb.Update("rsvps").
		Set("reminded_at", at).
		Where(squirrel.Eq{"id": rsvpID, "reminded_at": nil, "waitlist_position": nil}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build claim reminder query: %w", err)
	}
	tag, err := s.q.Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("error claiming rsvp reminder: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ClaimRsvpSessionReminder stamps reminded_at on one session attendance unless already set
func (s *Store) ClaimRsvpSessionReminder(ctx context.Context, rsvpSessionID int64, at time.Time) (bool, error) {
	sql, args, err := s.sb.Update("rsvp_sessions").
		Set("reminded_at", at).
		Where(squirrel.Eq{"id": rsvpSessionID, "reminded_at": nil}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build claim session reminder query: %w", err)
	}
	tag, err := s.q.Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("error claiming session reminder: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
