package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/yigit/eventsignup/internal/app/models"
	"github.com/yigit/eventsignup/internal/app/window"
	"github.com/yigit/eventsignup/internal/pkg/apperrors"
)

// DefaultMaxAttempts bounds how often a lost capacity race is retried
const DefaultMaxAttempts = 3

// RsvpService defines the interface for signup and waitlist operations
type RsvpService interface {
	Signup(ctx context.Context, input SignupInput) (*models.Rsvp, error)
	Cancel(ctx context.Context, rsvpID int64) error
	EditSessions(ctx context.Context, rsvpID int64, sessionIDs []int64) error
	ChangeRole(ctx context.Context, rsvpID int64, role models.Role) (*models.Rsvp, error)
	GetRsvp(ctx context.Context, rsvpID int64) (*models.Rsvp, error)
	ListRsvps(ctx context.Context, eventID int64) ([]*models.Rsvp, error)
}

// SignupInput is a request to attend some sessions of an event
type SignupInput struct {
	EventID       int64
	AttendeeID    string
	AttendeeEmail string
	Role          models.Role
	SessionIDs    []int64
}

// rsvpServiceImpl implements RsvpService
type rsvpServiceImpl struct {
	store       RsvpStore
	clock       window.Clock
	maxAttempts int
	logger      zerolog.Logger
}

// NewRsvpService creates a new RsvpService
func NewRsvpService(store RsvpStore, clock window.Clock, maxAttempts int, logger zerolog.Logger) RsvpService {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if clock == nil {
		clock = window.SystemClock{}
	}
	return &rsvpServiceImpl{
		store:       store,
		clock:       clock,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Signup creates a confirmed or waitlisted rsvp for the attendee
func (s *rsvpServiceImpl) Signup(ctx context.Context, input SignupInput) (*models.Rsvp, error) {
	input.AttendeeID = strings.TrimSpace(input.AttendeeID)
	if input.AttendeeID == "" {
		return nil, fmt.Errorf("%w: attendee id is required", apperrors.ErrValidationFailed)
	}
	if _, err := models.ParseRole(string(input.Role)); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidationFailed, err)
	}
	sessionIDs := uniqueIDs(input.SessionIDs)

	var created *models.Rsvp
	err := retryEventLock(ctx, s.store, s.maxAttempts, s.logger, input.EventID, func(ctx context.Context, event *models.Event, tx EventTx) error {
		if err := checkSessions(event, sessionIDs); err != nil {
			return err
		}
		if input.Role.CapacityLimited() && !event.AllowStudentRsvp {
			return apperrors.ErrStudentRsvpClosed
		}

		rsvp := &models.Rsvp{
			EventID:       event.ID,
			AttendeeID:    input.AttendeeID,
			AttendeeEmail: strings.TrimSpace(input.AttendeeEmail),
			Role:          input.Role,
			CreatedAt:     s.clock.Now(),
			SessionIDs:    sessionIDs,
		}
		if err := placeRsvp(ctx, tx, event, rsvp); err != nil {
			return err
		}
		if err := tx.CreateRsvp(ctx, rsvp); err != nil {
			return err
		}
		if err := verifyCapacity(ctx, tx, event); err != nil {
			return err
		}
		created = rsvp
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("eventId", created.EventID).
		Int64("rsvpId", created.ID).
		Str("role", string(created.Role)).
		Bool("confirmed", created.Confirmed()).
		Msg("Rsvp created")
	return created, nil
}

// Cancel removes the rsvp and hands a freed student slot to the head of the waitlist
func (s *rsvpServiceImpl) Cancel(ctx context.Context, rsvpID int64) error {
	existing, err := s.store.GetRsvp(ctx, rsvpID)
	if err != nil {
		return err
	}

	var promoted []*models.Rsvp
	err = retryEventLock(ctx, s.store, s.maxAttempts, s.logger, existing.EventID, func(ctx context.Context, event *models.Event, tx EventTx) error {
		rsvp, err := lockedRsvp(ctx, tx, event, rsvpID)
		if err != nil {
			return err
		}
		if err := tx.DeleteRsvp(ctx, rsvp.ID); err != nil {
			return err
		}

		if !rsvp.Confirmed() {
			return newWaitlist(tx, event.ID).removeAndCompact(ctx, *rsvp.WaitlistPosition)
		}
		if rsvp.Role.CapacityLimited() {
			promoted, err = fillOpenSlots(ctx, tx, event, s.logger)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info().
		Int64("eventId", existing.EventID).
		Int64("rsvpId", rsvpID).
		Int("promoted", len(promoted)).
		Msg("Rsvp cancelled")
	return nil
}

// EditSessions replaces the sessions an rsvp attends. Placement is untouched.
func (s *rsvpServiceImpl) EditSessions(ctx context.Context, rsvpID int64, sessionIDs []int64) error {
	existing, err := s.store.GetRsvp(ctx, rsvpID)
	if err != nil {
		return err
	}
	sessionIDs = uniqueIDs(sessionIDs)

	return retryEventLock(ctx, s.store, s.maxAttempts, s.logger, existing.EventID, func(ctx context.Context, event *models.Event, tx EventTx) error {
		if err := checkSessions(event, sessionIDs); err != nil {
			return err
		}
		rsvp, err := lockedRsvp(ctx, tx, event, rsvpID)
		if err != nil {
			return err
		}
		return tx.ReplaceRsvpSessions(ctx, rsvp.ID, sessionIDs)
	})
}

// ChangeRole moves the rsvp to a new role and places it again as a fresh signup would be
func (s *rsvpServiceImpl) ChangeRole(ctx context.Context, rsvpID int64, role models.Role) (*models.Rsvp, error) {
	if _, err := models.ParseRole(string(role)); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidationFailed, err)
	}
	existing, err := s.store.GetRsvp(ctx, rsvpID)
	if err != nil {
		return nil, err
	}

	var updated *models.Rsvp
	err = retryEventLock(ctx, s.store, s.maxAttempts, s.logger, existing.EventID, func(ctx context.Context, event *models.Event, tx EventTx) error {
		rsvp, err := lockedRsvp(ctx, tx, event, rsvpID)
		if err != nil {
			return err
		}
		if rsvp.Role == role {
			updated = rsvp
			return nil
		}
		if role.CapacityLimited() && !event.AllowStudentRsvp {
			return apperrors.ErrStudentRsvpClosed
		}

		oldPosition := rsvp.WaitlistPosition
		freedSlot := rsvp.Confirmed() && rsvp.Role.CapacityLimited()

		rsvp.Role = role
		if err := placeRsvp(ctx, tx, event, rsvp); err != nil {
			return err
		}
		if err := tx.UpdateRsvpPlacement(ctx, rsvp); err != nil {
			return err
		}
		if oldPosition != nil {
			if err := newWaitlist(tx, event.ID).removeAndCompact(ctx, *oldPosition); err != nil {
				return err
			}
		}
		if freedSlot {
			if _, err := fillOpenSlots(ctx, tx, event, s.logger); err != nil {
				return err
			}
		}
		if err := verifyCapacity(ctx, tx, event); err != nil {
			return err
		}
		updated = rsvp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetRsvp retrieves an rsvp by ID
func (s *rsvpServiceImpl) GetRsvp(ctx context.Context, rsvpID int64) (*models.Rsvp, error) {
	return s.store.GetRsvp(ctx, rsvpID)
}

// ListRsvps lists confirmed rsvps followed by the waitlist in order
func (s *rsvpServiceImpl) ListRsvps(ctx context.Context, eventID int64) ([]*models.Rsvp, error) {
	return s.store.ListRsvps(ctx, eventID)
}

// verifyCapacity detects a confirm that slipped past the event lock
func verifyCapacity(ctx context.Context, tx EventTx, event *models.Event) error {
	if event.StudentRsvpLimit == nil {
		return nil
	}
	confirmed, err := tx.CountConfirmed(ctx, event.ID, models.RoleStudent)
	if err != nil {
		return fmt.Errorf("error counting confirmed students: %w", err)
	}
	if confirmed > *event.StudentRsvpLimit {
		return fmt.Errorf("%w: %d confirmed students for a limit of %d", apperrors.ErrCapacityRaceLost, confirmed, *event.StudentRsvpLimit)
	}
	return nil
}

func lockedRsvp(ctx context.Context, tx EventTx, event *models.Event, rsvpID int64) (*models.Rsvp, error) {
	rsvp, err := tx.GetRsvp(ctx, rsvpID)
	if err != nil {
		return nil, err
	}
	if rsvp.EventID != event.ID {
		return nil, apperrors.ErrRsvpNotFound
	}
	return rsvp, nil
}

func checkSessions(event *models.Event, sessionIDs []int64) error {
	for _, id := range sessionIDs {
		if !event.HasSession(id) {
			return fmt.Errorf("%w: session %d is not part of event %d", apperrors.ErrUnknownSession, id, event.ID)
		}
	}
	return nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
