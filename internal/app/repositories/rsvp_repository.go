package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/yigit/eventsignup/internal/app/models"
	"github.com/yigit/eventsignup/internal/pkg/apperrors"
	"github.com/yigit/eventsignup/internal/pkg/dberrors"
	"github.com/yigit/eventsignup/internal/pkg/logger"
)

var rsvpColumns = []string{
	"id", "event_id", "attendee_id", "attendee_email", "role", "waitlist_position", "reminded_at", "created_at",
}

// GetRsvp retrieves an rsvp with the IDs of the sessions it attends
func (q *queries) GetRsvp(ctx context.Context, id int64) (*models.Rsvp, error) {
	sql, args, err := q.sb.Select(rsvpColumns...).
		From("rsvps").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get rsvp query: %w", err)
	}

	rsvp, err := scanRsvp(q.q.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrRsvpNotFound
		}
		return nil, fmt.Errorf("error getting rsvp by ID: %w", err)
	}
	if err := q.attachSessionIDs(ctx, []*models.Rsvp{rsvp}); err != nil {
		return nil, err
	}
	return rsvp, nil
}

// ListRsvps lists confirmed rsvps in signup order followed by the waitlist
func (q *queries) ListRsvps(ctx context.Context, eventID int64) ([]*models.Rsvp, error) {
	return q.queryRsvps(ctx, q.sb.Select(rsvpColumns...).
		From("rsvps").
		Where(squirrel.Eq{"event_id": eventID}).
		OrderBy("waitlist_position ASC NULLS FIRST", "created_at ASC", "id ASC"), true)
}

// CountConfirmed counts rsvps of role that hold a slot
func (q *queries) CountConfirmed(ctx context.Context, eventID int64, role models.Role) (int, error) {
	sql, args, err := q.sb.Select("COUNT(*)").
		From("rsvps").
		Where(squirrel.Eq{"event_id": eventID, "role": string(role), "waitlist_position": nil}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}
	var count int
	if err := q.q.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting confirmed rsvps: %w", err)
	}
	return count, nil
}

// MaxWaitlistPosition returns the tail position, 0 when nobody is waiting
func (q *queries) MaxWaitlistPosition(ctx context.Context, eventID int64) (int, error) {
	sql, args, err := q.sb.Select("COALESCE(MAX(waitlist_position), 0)").
		From("rsvps").
		Where(squirrel.Eq{"event_id": eventID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build waitlist tail query: %w", err)
	}
	var tail int
	if err := q.q.QueryRow(ctx, sql, args...).Scan(&tail); err != nil {
		return 0, fmt.Errorf("error reading waitlist tail: %w", err)
	}
	return tail, nil
}

// WaitlistHead returns the first waitlisted rsvp or nil
func (q *queries) WaitlistHead(ctx context.Context, eventID int64) (*models.Rsvp, error) {
	sql, args, err := q.sb.Select(rsvpColumns...).
		From("rsvps").
		Where(squirrel.Eq{"event_id": eventID}).
		Where(squirrel.NotEq{"waitlist_position": nil}).
		OrderBy("waitlist_position ASC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build waitlist head query: %w", err)
	}
	rsvp, err := scanRsvp(q.q.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error reading waitlist head: %w", err)
	}
	return rsvp, nil
}

// CreateRsvp inserts the rsvp and one rsvp_sessions row per session
func (t *eventTx) CreateRsvp(ctx context.Context, rsvp *models.Rsvp) error {
	sql, args, err := t.sb.Insert("rsvps").
		Columns("event_id", "attendee_id", "attendee_email", "role", "waitlist_position", "created_at").
		Values(rsvp.EventID, rsvp.AttendeeID, rsvp.AttendeeEmail, string(rsvp.Role), rsvp.WaitlistPosition, rsvp.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build create rsvp query: %w", err)
	}
	if err := t.q.QueryRow(ctx, sql, args...).Scan(&rsvp.ID); err != nil {
		if dberrors.IsDuplicateConstraintError(err, constraintEventAttendee) {
			return apperrors.ErrAlreadyRegistered
		}
		logger.Error().Err(err).Int64("eventID", rsvp.EventID).Msg("Error executing create rsvp query")
		return fmt.Errorf("error creating rsvp: %w", err)
	}
	return t.insertRsvpSessions(ctx, rsvp.ID, rsvp.SessionIDs)
}

// UpdateRsvpPlacement writes role and waitlist position
func (t *eventTx) UpdateRsvpPlacement(ctx context.Context, rsvp *models.Rsvp) error {
	sql, args, err := t.sb.Update("rsvps").
		Set("role", string(rsvp.Role)).
		Set("waitlist_position", rsvp.WaitlistPosition).
		Where(squirrel.Eq{"id": rsvp.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update rsvp query: %w", err)
	}
	tag, err := t.q.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("error updating rsvp: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrRsvpNotFound
	}
	return nil
}

// ReplaceRsvpSessions keeps rows for sessions that stay selected, so their
// reminded_at survives, and adds the new ones
func (t *eventTx) ReplaceRsvpSessions(ctx context.Context, rsvpID int64, sessionIDs []int64) error {
	del := t.sb.Delete("rsvp_sessions").Where(squirrel.Eq{"rsvp_id": rsvpID})
	if len(sessionIDs) > 0 {
		del = del.Where(squirrel.NotEq{"event_session_id": sessionIDs})
	}
	sql, args, err := del.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build detach sessions query: %w", err)
	}
	if _, err := t.q.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("error detaching sessions: %w", err)
	}
	return t.insertRsvpSessions(ctx, rsvpID, sessionIDs)
}

// DeleteRsvp detaches the rsvp from its sessions and deletes it
func (t *eventTx) DeleteRsvp(ctx context.Context, id int64) error {
	sql, args, err := t.sb.Delete("rsvp_sessions").Where(squirrel.Eq{"rsvp_id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build detach sessions query: %w", err)
	}
	if _, err := t.q.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("error detaching sessions: %w", err)
	}

	sql, args, err = t.sb.Delete("rsvps").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete rsvp query: %w", err)
	}
	tag, err := t.q.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("error deleting rsvp: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrRsvpNotFound
	}
	return nil
}

// ShiftWaitlist moves every rsvp behind position one place forward
func (t *eventTx) ShiftWaitlist(ctx context.Context, eventID int64, position int) error {
	sql, args, err := t.sb.Update("rsvps").
		Set("waitlist_position", squirrel.Expr("waitlist_position - 1")).
		Where(squirrel.Eq{"event_id": eventID}).
		Where(squirrel.Gt{"waitlist_position": position}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build shift waitlist query: %w", err)
	}
	if _, err := t.q.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("error shifting waitlist: %w", err)
	}
	return nil
}

func (t *eventTx) insertRsvpSessions(ctx context.Context, rsvpID int64, sessionIDs []int64) error {
	for _, sessionID := range sessionIDs {
		sql, args, err := t.sb.Insert("rsvp_sessions").
			Columns("rsvp_id", "event_session_id").
			Values(rsvpID, sessionID).
			Suffix("ON CONFLICT (rsvp_id, event_session_id) DO NOTHING").
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build attach session query: %w", err)
		}
		if _, err := t.q.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("error attaching session %d: %w", sessionID, err)
		}
	}
	return nil
}

func (q *queries) queryRsvps(ctx context.Context, builder squirrel.SelectBuilder, withSessions bool) ([]*models.Rsvp, error) {
	sql, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list rsvps query: %w", err)
	}
	rows, err := q.q.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing list rsvps query")
		return nil, fmt.Errorf("error querying rsvps: %w", err)
	}
	defer rows.Close()

	rsvps := []*models.Rsvp{}
	for rows.Next() {
		rsvp, err := scanRsvp(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning rsvp row: %w", err)
		}
		rsvps = append(rsvps, rsvp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rsvp rows: %w", err)
	}
	rows.Close()

	if withSessions {
		if err := q.attachSessionIDs(ctx, rsvps); err != nil {
			return nil, err
		}
	}
	return rsvps, nil
}

func (q *queries) attachSessionIDs(ctx context.Context, rsvps []*models.Rsvp) error {
	if len(rsvps) == 0 {
		return nil
	}
	byID := make(map[int64]*models.Rsvp, len(rsvps))
	ids := make([]int64, 0, len(rsvps))
	for _, rsvp := range rsvps {
		rsvp.SessionIDs = []int64{}
		byID[rsvp.ID] = rsvp
		ids = append(ids, rsvp.ID)
	}

	sql, args, err := q.sb.Select("rsvp_id", "event_session_id").
		From("rsvp_sessions").
		Where(squirrel.Eq{"rsvp_id": ids}).
		OrderBy("event_session_id ASC").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build rsvp sessions query: %w", err)
	}
	rows, err := q.q.Query(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("error querying rsvp sessions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rsvpID, sessionID int64
		if err := rows.Scan(&rsvpID, &sessionID); err != nil {
			return fmt.Errorf("error scanning rsvp session row: %w", err)
		}
		if rsvp, ok := byID[rsvpID]; ok {
			rsvp.SessionIDs = append(rsvp.SessionIDs, sessionID)
		}
	}
	return rows.Err()
}

func scanRsvp(row scanner) (*models.Rsvp, error) {
	rsvp := &models.Rsvp{}
	var role string
	if err := row.Scan(&rsvp.ID, &rsvp.EventID, &rsvp.AttendeeID, &rsvp.AttendeeEmail, &role,
		&rsvp.WaitlistPosition, &rsvp.RemindedAt, &rsvp.CreatedAt); err != nil {
		return nil, err
	}
	parsed, err := models.ParseRole(role)
	if err != nil {
		return nil, err
	}
	rsvp.Role = parsed
	rsvp.CreatedAt = rsvp.CreatedAt.UTC()
	if rsvp.RemindedAt != nil {
		at := rsvp.RemindedAt.UTC()
		rsvp.RemindedAt = &at
	}
	return rsvp, nil
}
