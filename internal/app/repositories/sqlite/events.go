package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/yigit/eventsignup/internal/app/models"
	"github.com/yigit/eventsignup/internal/app/window"
	"github.com/yigit/eventsignup/internal/pkg/apperrors"
	"github.com/yigit/eventsignup/internal/pkg/helpers"
)

var eventColumns = []string{
	"id", "title", "time_zone", "creator_id", "creator_email", "current_state",
	"is_spam", "student_rsvp_limit", "allow_student_rsvp", "created_at", "updated_at",
}

const (
	firstSessionStart = "(SELECT MIN(s.starts_at) FROM event_sessions s WHERE s.event_id = events.id)"
	lastSessionEnd    = "(SELECT MAX(s.ends_at) FROM event_sessions s WHERE s.event_id = events.id)"
)

// CreateEvent inserts the event and its sessions and fills in their IDs
func (s *Store) CreateEvent(ctx context.Context, event *models.Event) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		q := newQueries(tx)
		query, args, err := q.sb.Insert("events").
			Columns("title", "time_zone", "creator_id", "creator_email", "current_state",
				"is_spam", "student_rsvp_limit", "allow_student_rsvp", "created_at", "updated_at").
			Values(event.Title, event.TimeZone, event.CreatorID, event.CreatorEmail, string(event.CurrentState),
				event.IsSpam, helpers.NullIntFromPtr(event.StudentRsvpLimit), event.AllowStudentRsvp,
				toMillis(event.CreatedAt), toMillis(event.UpdatedAt)).
			ToSql()
		if err != nil {
			return fmt.Errorf("build create event query: %w", err)
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("create event: %w", err)
		}
		if event.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("read event id: %w", err)
		}

		for _, session := range event.Sessions {
			session.EventID = event.ID
			query, args, err := q.sb.Insert("event_sessions").
				Columns("event_id", "name", "starts_at", "ends_at", "volunteers_only", "required_for_students").
				Values(session.EventID, session.Name, toMillis(session.StartsAt), toMillis(session.EndsAt),
					session.VolunteersOnly, session.RequiredForStudents).
				ToSql()
			if err != nil {
				return fmt.Errorf("build create session query: %w", err)
			}
			res, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return fmt.Errorf("create session: %w", err)
			}
			if session.ID, err = res.LastInsertId(); err != nil {
				return fmt.Errorf("read session id: %w", err)
			}
		}
		return nil
	})
}

// GetEvent retrieves an event with its sessions
func (s *Store) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	return s.loadEvent(ctx, id)
}

// ListEvents lists published events, ordered by their first session
func (s *Store) ListEvents(ctx context.Context, filter models.EventFilter) ([]*models.Event, error) {
	builder := s.sb.Select(eventColumns...).
		From("events").
		Where(squirrel.Eq{"current_state": string(models.StatePublished)})

	now := toMillis(filter.Now)
	switch filter.Type {
	case models.EventListUpcoming:
		builder = builder.Where(lastSessionEnd+" > ?", now).OrderBy(firstSessionStart+" ASC", "id ASC")
	case models.EventListPast:
		builder = builder.Where(lastSessionEnd+" <= ?", now).OrderBy(firstSessionStart+" DESC", "id DESC")
	default:
		builder = builder.OrderBy(firstSessionStart+" ASC", "id ASC")
	}
	return s.queryEvents(ctx, builder)
}

// ListUpcomingEvents returns non-spam events whose first session starts inside w
func (s *Store) ListUpcomingEvents(ctx context.Context, w window.Window) ([]*models.Event, error) {
	return s.queryEvents(ctx, s.sb.Select(eventColumns...).
		From("events").
		Where(squirrel.Eq{"is_spam": false}).
		Where(firstSessionStart+" > ?", toMillis(w.From)).
		Where(firstSessionStart+" < ?", toMillis(w.To)).
		OrderBy(firstSessionStart+" ASC", "id ASC"))
}

// UpdateEvent writes the event columns and the session times
func (t *eventTx) UpdateEvent(ctx context.Context, event *models.Event) error {
	query, args, err := t.sb.Update("events").
		SetMap(map[string]interface{}{
			"title":              event.Title,
			"time_zone":          event.TimeZone,
			"current_state":      string(event.CurrentState),
			"is_spam":            event.IsSpam,
			"student_rsvp_limit": helpers.NullIntFromPtr(event.StudentRsvpLimit),
			"allow_student_rsvp": event.AllowStudentRsvp,
			"updated_at":         toMillis(event.UpdatedAt),
		}).
		Where(squirrel.Eq{"id": event.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update event query: %w", err)
	}
	res, err := t.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrEventNotFound
	}

	for _, session := range event.Sessions {
		query, args, err := t.sb.Update("event_sessions").
			Set("starts_at", toMillis(session.StartsAt)).
			Set("ends_at", toMillis(session.EndsAt)).
			Where(squirrel.Eq{"id": session.ID, "event_id": event.ID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build update session query: %w", err)
		}
		if _, err := t.q.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("update session %d: %w", session.ID, err)
		}
	}
	return nil
}

func (q *queries) loadEvent(ctx context.Context, id int64) (*models.Event, error) {
	query, args, err := q.sb.Select(eventColumns...).
		From("events").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get event query: %w", err)
	}
	event, err := scanEvent(q.q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	if err := q.attachSessions(ctx, []*models.Event{event}); err != nil {
		return nil, err
	}
	return event, nil
}

func (q *queries) queryEvents(ctx context.Context, builder squirrel.SelectBuilder) ([]*models.Event, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list events query: %w", err)
	}
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := []*models.Event{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	// Release the connection before the session query
	rows.Close()

	if err := q.attachSessions(ctx, events); err != nil {
		return nil, err
	}
	return events, nil
}

func (q *queries) attachSessions(ctx context.Context, events []*models.Event) error {
	if len(events) == 0 {
		return nil
	}
	byID := make(map[int64]*models.Event, len(events))
	ids := make([]int64, 0, len(events))
	for _, event := range events {
		byID[event.ID] = event
		ids = append(ids, event.ID)
	}

	query, args, err := q.sb.Select("id", "event_id", "name", "starts_at", "ends_at", "volunteers_only", "required_for_students").
		From("event_sessions").
		Where(squirrel.Eq{"event_id": ids}).
		OrderBy("starts_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return fmt.Errorf("build list sessions query: %w", err)
	}
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		session := &models.EventSession{}
		var startsAt, endsAt int64
		if err := rows.Scan(&session.ID, &session.EventID, &session.Name, &startsAt, &endsAt,
			&session.VolunteersOnly, &session.RequiredForStudents); err != nil {
			return fmt.Errorf("scan session: %w", err)
		}
		session.StartsAt = fromMillis(startsAt)
		session.EndsAt = fromMillis(endsAt)
		if event, ok := byID[session.EventID]; ok {
			event.Sessions = append(event.Sessions, session)
		}
	}
	return rows.Err()
}

func scanEvent(row scanner) (*models.Event, error) {
	event := &models.Event{}
	var (
		state                string
		limit                sql.NullInt64
		createdAt, updatedAt int64
	)
	if err := row.Scan(&event.ID, &event.Title, &event.TimeZone, &event.CreatorID, &event.CreatorEmail,
		&state, &event.IsSpam, &limit, &event.AllowStudentRsvp, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	parsed, err := models.ParseState(state)
	if err != nil {
		return nil, err
	}
	event.CurrentState = parsed
	event.StudentRsvpLimit = helpers.IntPtrFromNull(limit)
	event.CreatedAt = fromMillis(createdAt)
	event.UpdatedAt = fromMillis(updatedAt)
	return event, nil
}
