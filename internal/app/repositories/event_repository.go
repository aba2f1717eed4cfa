package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/yigit/eventsignup/internal/app/models"
	"github.com/yigit/eventsignup/internal/pkg/apperrors"
	"github.com/yigit/eventsignup/internal/pkg/logger"
)

var eventColumns = []string{
	"id", "title", "time_zone", "creator_id", "creator_email", "current_state",
	"is_spam", "student_rsvp_limit", "allow_student_rsvp", "created_at", "updated_at",
}

var sessionColumns = []string{
	"id", "event_id", "name", "starts_at", "ends_at", "volunteers_only", "required_for_students",
}

const (
	firstSessionStart = "(SELECT MIN(s.starts_at) FROM event_sessions s WHERE s.event_id = events.id)"
	lastSessionEnd    = "(SELECT MAX(s.ends_at) FROM event_sessions s WHERE s.event_id = events.id)"
)

// CreateEvent inserts the event and its sessions and fills in their IDs
func (s *Store) CreateEvent(ctx context.Context, event *models.Event) error {
	return s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		q := newQueries(tx)
		sql, args, err := q.sb.Insert("events").
			Columns("title", "time_zone", "creator_id", "creator_email", "current_state",
				"is_spam", "student_rsvp_limit", "allow_student_rsvp", "created_at", "updated_at").
			Values(event.Title, event.TimeZone, event.CreatorID, event.CreatorEmail, string(event.CurrentState),
				event.IsSpam, event.StudentRsvpLimit, event.AllowStudentRsvp, event.CreatedAt, event.UpdatedAt).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build create event query: %w", err)
		}
		if err := tx.QueryRow(ctx, sql, args...).Scan(&event.ID); err != nil {
			logger.Error().Err(err).Msg("Error executing create event query")
			return fmt.Errorf("error creating event: %w", err)
		}

		for _, session := range event.Sessions {
			session.EventID = event.ID
			sql, args, err := q.sb.Insert("event_sessions").
				Columns("event_id", "name", "starts_at", "ends_at", "volunteers_only", "required_for_students").
				Values(session.EventID, session.Name, session.StartsAt, session.EndsAt,
					session.VolunteersOnly, session.RequiredForStudents).
				Suffix("RETURNING id").
				ToSql()
			if err != nil {
				return fmt.Errorf("failed to build create session query: %w", err)
			}
			if err := tx.QueryRow(ctx, sql, args...).Scan(&session.ID); err != nil {
				logger.Error().Err(err).Int64("eventID", event.ID).Msg("Error executing create session query")
				return fmt.Errorf("error creating session: %w", err)
			}
		}
		return nil
	})
}

// GetEvent retrieves an event with its sessions
func (s *Store) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	return s.loadEvent(ctx, id, false)
}

// ListEvents lists published events, ordered by their first session
func (s *Store) ListEvents(ctx context.Context, filter models.EventFilter) ([]*models.Event, error) {
	builder := s.sb.Select(eventColumns...).
		From("events").
		Where(squirrel.Eq{"current_state": string(models.StatePublished)})

	switch filter.Type {
	case models.EventListUpcoming:
		builder = builder.Where(lastSessionEnd+" > ?", filter.Now).OrderBy(firstSessionStart+" ASC", "id ASC")
	case models.EventListPast:
		builder = builder.Where(lastSessionEnd+" <= ?", filter.Now).OrderBy(firstSessionStart+" DESC", "id DESC")
	default:
		builder = builder.OrderBy(firstSessionStart+" ASC", "id ASC")
	}
	return s.queryEvents(ctx, builder)
}

// UpdateEvent writes the event columns and the session times
func (t *eventTx) UpdateEvent(ctx context.Context, event *models.Event) error {
	sql, args, err := t.sb.Update("events").
		SetMap(map[string]interface{}{
			"title":              event.Title,
			"time_zone":          event.TimeZone,
			"current_state":      string(event.CurrentState),
			"is_spam":            event.IsSpam,
			"student_rsvp_limit": event.StudentRsvpLimit,
			"allow_student_rsvp": event.AllowStudentRsvp,
			"updated_at":         event.UpdatedAt,
		}).
		Where(squirrel.Eq{"id": event.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update event query: %w", err)
	}
	tag, err := t.q.Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("eventID", event.ID).Msg("Error executing update event query")
		return fmt.Errorf("error updating event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrEventNotFound
	}

	for _, session := range event.Sessions {
		sql, args, err := t.sb.Update("event_sessions").
			Set("starts_at", session.StartsAt).
			Set("ends_at", session.EndsAt).
			Where(squirrel.Eq{"id": session.ID, "event_id": event.ID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build update session query: %w", err)
		}
		if _, err := t.q.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("error updating session %d: %w", session.ID, err)
		}
	}
	return nil
}

// loadEvent reads one event and its sessions, optionally locking the event row
func (q *queries) loadEvent(ctx context.Context, id int64, forUpdate bool) (*models.Event, error) {
	builder := q.sb.Select(eventColumns...).
		From("events").
		Where(squirrel.Eq{"id": id})
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}
	sql, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get event query: %w", err)
	}

	event, err := scanEvent(q.q.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrEventNotFound
		}
		return nil, fmt.Errorf("error getting event by ID: %w", err)
	}
	if err := q.attachSessions(ctx, []*models.Event{event}); err != nil {
		return nil, err
	}
	return event, nil
}

func (q *queries) queryEvents(ctx context.Context, builder squirrel.SelectBuilder) ([]*models.Event, error) {
	sql, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list events query: %w", err)
	}
	rows, err := q.q.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing list events query")
		return nil, fmt.Errorf("error querying events: %w", err)
	}
	defer rows.Close()

	events := []*models.Event{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning event row: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}
	rows.Close()

	if err := q.attachSessions(ctx, events); err != nil {
		return nil, err
	}
	return events, nil
}

// attachSessions loads the sessions of every event in schedule order
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

	sql, args, err := q.sb.Select(sessionColumns...).
		From("event_sessions").
		Where(squirrel.Eq{"event_id": ids}).
		OrderBy("starts_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build list sessions query: %w", err)
	}
	rows, err := q.q.Query(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("error querying sessions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		session := &models.EventSession{}
		if err := rows.Scan(&session.ID, &session.EventID, &session.Name, &session.StartsAt,
			&session.EndsAt, &session.VolunteersOnly, &session.RequiredForStudents); err != nil {
			return fmt.Errorf("error scanning session row: %w", err)
		}
		session.StartsAt = session.StartsAt.UTC()
		session.EndsAt = session.EndsAt.UTC()
		if event, ok := byID[session.EventID]; ok {
			event.Sessions = append(event.Sessions, session)
		}
	}
	return rows.Err()
}

func scanEvent(row scanner) (*models.Event, error) {
	event := &models.Event{}
	var state string
	if err := row.Scan(&event.ID, &event.Title, &event.TimeZone, &event.CreatorID, &event.CreatorEmail,
		&state, &event.IsSpam, &event.StudentRsvpLimit, &event.AllowStudentRsvp,
		&event.CreatedAt, &event.UpdatedAt); err != nil {
		return nil, err
	}
	parsed, err := models.ParseState(state)
	if err != nil {
		return nil, err
	}
	event.CurrentState = parsed
	event.CreatedAt = event.CreatedAt.UTC()
	event.UpdatedAt = event.UpdatedAt.UTC()
	return event, nil
}
