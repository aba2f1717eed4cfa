package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/yigit/eventsignup/internal/app/models"
	"github.com/yigit/eventsignup/internal/pkg/apperrors"
	"github.com/yigit/eventsignup/internal/pkg/dberrors"
	"github.com/yigit/eventsignup/internal/pkg/helpers"
)

var rsvpColumns = []string{
	"id", "event_id", "attendee_id", "attendee_email", "role", "waitlist_position", "reminded_at", "created_at",
}

// GetRsvp retrieves an rsvp with the IDs of the sessions it attends
func (q *queries) GetRsvp(ctx context.Context, id int64) (*models.Rsvp, error) {
	query, args, err := q.sb.Select(rsvpColumns...).
		From("rsvps").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get rsvp query: %w", err)
	}
	rsvp, err := scanRsvp(q.q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrRsvpNotFound
		}
		return nil, fmt.Errorf("get rsvp: %w", err)
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

func (q *queries) CountConfirmed(ctx context.Context, eventID int64, role models.Role) (int, error) {
	query, args, err := q.sb.Select("COUNT(*)").
		From("rsvps").
		Where(squirrel.Eq{"event_id": eventID, "role": string(role), "waitlist_position": nil}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}
	var count int
	if err := q.q.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count confirmed rsvps: %w", err)
	}
	return count, nil
}

func (q *queries) MaxWaitlistPosition(ctx context.Context, eventID int64) (int, error) {
	query, args, err := q.sb.Select("COALESCE(MAX(waitlist_position), 0)").
		From("rsvps").
		Where(squirrel.Eq{"event_id": eventID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build waitlist tail query: %w", err)
	}
	var tail int
	if err := q.q.QueryRowContext(ctx, query, args...).Scan(&tail); err != nil {
		return 0, fmt.Errorf("read waitlist tail: %w", err)
	}
	return tail, nil
}

func (q *queries) WaitlistHead(ctx context.Context, eventID int64) (*models.Rsvp, error) {
	query, args, err := q.sb.Select(rsvpColumns...).
		From("rsvps").
		Where(squirrel.Eq{"event_id": eventID}).
		Where(squirrel.NotEq{"waitlist_position": nil}).
		OrderBy("waitlist_position ASC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build waitlist head query: %w", err)
	}
	rsvp, err := scanRsvp(q.q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("read waitlist head: %w", err)
	}
	return rsvp, nil
}

// CreateRsvp inserts the rsvp and one rsvp_sessions row per session
func (t *eventTx) CreateRsvp(ctx context.Context, rsvp *models.Rsvp) error {
	query, args, err := t.sb.Insert("rsvps").
		Columns("event_id", "attendee_id", "attendee_email", "role", "waitlist_position", "created_at").
		Values(rsvp.EventID, rsvp.AttendeeID, rsvp.AttendeeEmail, string(rsvp.Role),
			helpers.NullIntFromPtr(rsvp.WaitlistPosition), toMillis(rsvp.CreatedAt)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build create rsvp query: %w", err)
	}
	res, err := t.q.ExecContext(ctx, query, args...)
	if err != nil {
		if dberrors.IsSQLiteUniqueViolation(err, "rsvps.event_id, rsvps.attendee_id") {
			return apperrors.ErrAlreadyRegistered
		}
		return fmt.Errorf("create rsvp: %w", err)
	}
	if rsvp.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("read rsvp id: %w", err)
	}
	return t.insertRsvpSessions(ctx, rsvp.ID, rsvp.SessionIDs)
}

func (t *eventTx) UpdateRsvpPlacement(ctx context.Context, rsvp *models.Rsvp) error {
	query, args, err := t.sb.Update("rsvps").
		Set("role", string(rsvp.Role)).
		Set("waitlist_position", helpers.NullIntFromPtr(rsvp.WaitlistPosition)).
		Where(squirrel.Eq{"id": rsvp.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update rsvp query: %w", err)
	}
	res, err := t.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update rsvp: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrRsvpNotFound
	}
	return nil
}

// ReplaceRsvpSessions keeps rows for sessions that stay selected and adds the new ones
func (t *eventTx) ReplaceRsvpSessions(ctx context.Context, rsvpID int64, sessionIDs []int64) error {
	del := t.sb.Delete("rsvp_sessions").Where(squirrel.Eq{"rsvp_id": rsvpID})
	if len(sessionIDs) > 0 {
		del = del.Where(squirrel.NotEq{"event_session_id": sessionIDs})
	}
	query, args, err := del.ToSql()
	if err != nil {
		return fmt.Errorf("build detach sessions query: %w", err)
	}
	if _, err := t.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("detach sessions: %w", err)
	}
	return t.insertRsvpSessions(ctx, rsvpID, sessionIDs)
}

func (t *eventTx) DeleteRsvp(ctx context.Context, id int64) error {
	query, args, err := t.sb.Delete("rsvp_sessions").Where(squirrel.Eq{"rsvp_id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build detach sessions query: %w", err)
	}
	if _, err := t.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("detach sessions: %w", err)
	}

	query, args, err = t.sb.Delete("rsvps").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete rsvp query: %w", err)
	}
	res, err := t.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete rsvp: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrRsvpNotFound
	}
	return nil
}

func (t *eventTx) ShiftWaitlist(ctx context.Context, eventID int64, position int) error {
	query, args, err := t.sb.Update("rsvps").
		Set("waitlist_position", squirrel.Expr("waitlist_position - 1")).
		Where(squirrel.Eq{"event_id": eventID}).
		Where(squirrel.Gt{"waitlist_position": position}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build shift waitlist query: %w", err)
	}
	if _, err := t.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("shift waitlist: %w", err)
	}
	return nil
}

func (t *eventTx) insertRsvpSessions(ctx context.Context, rsvpID int64, sessionIDs []int64) error {
	for _, sessionID := range sessionIDs {
		query, args, err := t.sb.Insert("rsvp_sessions").
			Columns("rsvp_id", "event_session_id").
			Values(rsvpID, sessionID).
			Suffix("ON CONFLICT (rsvp_id, event_session_id) DO NOTHING").
			ToSql()
		if err != nil {
			return fmt.Errorf("build attach session query: %w", err)
		}
		if _, err := t.q.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("attach session %d: %w", sessionID, err)
		}
	}
	return nil
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
	query, args, err := s.sb.Update("rsvps").
		Set("reminded_at", toMillis(at)).
		Where(squirrel.Eq{"id": rsvpID, "reminded_at": nil, "waitlist_position": nil}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build claim reminder query: %w", err)
	}
	res, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("claim rsvp reminder: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim rsvp reminder: %w", err)
	}
	return n == 1, nil
}

func (q *queries) queryRsvps(ctx context.Context, builder squirrel.SelectBuilder, withSessions bool) ([]*models.Rsvp, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list rsvps query: %w", err)
	}
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rsvps: %w", err)
	}
	defer rows.Close()

	rsvps := []*models.Rsvp{}
	for rows.Next() {
		rsvp, err := scanRsvp(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rsvp: %w", err)
		}
		rsvps = append(rsvps, rsvp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rsvps: %w", err)
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

	query, args, err := q.sb.Select("rsvp_id", "event_session_id").
		From("rsvp_sessions").
		Where(squirrel.Eq{"rsvp_id": ids}).
		OrderBy("event_session_id ASC").
		ToSql()
	if err != nil {
		return fmt.Errorf("build rsvp sessions query: %w", err)
	}
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("list rsvp sessions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rsvpID, sessionID int64
		if err := rows.Scan(&rsvpID, &sessionID); err != nil {
			return fmt.Errorf("scan rsvp session: %w", err)
		}
		if rsvp, ok := byID[rsvpID]; ok {
			rsvp.SessionIDs = append(rsvp.SessionIDs, sessionID)
		}
	}
	return rows.Err()
}

func scanRsvp(row scanner) (*models.Rsvp, error) {
	rsvp := &models.Rsvp{}
	var (
		role                 string
		position, remindedAt sql.NullInt64
		createdAt            int64
	)
	if err := row.Scan(&rsvp.ID, &rsvp.EventID, &rsvp.AttendeeID, &rsvp.AttendeeEmail, &role,
		&position, &remindedAt, &createdAt); err != nil {
		return nil, err
	}
	parsed, err := models.ParseRole(role)
	if err != nil {
		return nil, err
	}
	rsvp.Role = parsed
	rsvp.WaitlistPosition = helpers.IntPtrFromNull(position)
	rsvp.RemindedAt = helpers.TimeFromNullMillis(remindedAt)
	rsvp.CreatedAt = fromMillis(createdAt)
	return rsvp, nil
}
