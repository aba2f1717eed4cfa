package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/yigit/eventsignup/internal/app/models"
	"github.com/yigit/eventsignup/internal/app/window"
	"github.com/yigit/eventsignup/internal/pkg/apperrors"
	"github.com/yigit/eventsignup/internal/pkg/helpers"
)

// EventService defines the interface for the event publication workflow
type EventService interface {
	SubmitEvent(ctx context.Context, draft EventDraft, trust models.CreatorTrust) (*models.Event, error)
	ApproveEvent(ctx context.Context, id int64) (*models.Event, error)
	EditEvent(ctx context.Context, id int64, changes EventChanges, trust models.CreatorTrust) (*models.Event, error)
	GetEvent(ctx context.Context, id int64) (*models.Event, error)
	ListEvents(ctx context.Context, listType models.EventListType) ([]*models.Event, error)
}

// EventDraft carries a new event as submitted by its creator
type EventDraft struct {
	Title            string
	TimeZone         string
	CreatorID        string
	CreatorEmail     string
	StudentRsvpLimit *int
	AllowStudentRsvp *bool
	Sessions         []SessionDraft
}

// SessionDraft is one session of an EventDraft
type SessionDraft struct {
	Name                string
	StartsAt            time.Time
	EndsAt              time.Time
	VolunteersOnly      bool
	RequiredForStudents bool
}

// EventChanges lists the fields an edit may touch; nil means unchanged
type EventChanges struct {
	Title                 *string
	TimeZone              *string
	StudentRsvpLimit      *int
	ClearStudentRsvpLimit bool
	AllowStudentRsvp      *bool
}

// eventServiceImpl implements EventService
type eventServiceImpl struct {
	store       EventStore
	notifier    Notifier
	publishers  []string
	clock       window.Clock
	maxAttempts int
	logger      zerolog.Logger
}

// NewEventService creates a new EventService
func NewEventService(store EventStore, notifier Notifier, publishers []string, clock window.Clock, maxAttempts int, logger zerolog.Logger) EventService {
	if clock == nil {
		clock = window.SystemClock{}
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &eventServiceImpl{
		store:       store,
		notifier:    notifier,
		publishers:  publishers,
		clock:       clock,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// SubmitEvent validates and stores a new event, then asks for approval unless it is spam
func (s *eventServiceImpl) SubmitEvent(ctx context.Context, draft EventDraft, trust models.CreatorTrust) (*models.Event, error) {
	event, err := s.buildEvent(draft)
	if err != nil {
		return nil, err
	}

	decision := decideSubmit(event, trust)
	decision.apply(event)

	if err := s.store.CreateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("error creating event: %w", err)
	}

	s.logger.Info().
		Int64("eventId", event.ID).
		Str("state", string(event.CurrentState)).
		Bool("spam", event.IsSpam).
		Msg("Event submitted")

	if decision.RequestApproval {
		s.notifyPublication(ctx, event)
	}
	return event, nil
}

// ApproveEvent publishes an event that is pending approval
func (s *eventServiceImpl) ApproveEvent(ctx context.Context, id int64) (*models.Event, error) {
	var approved *models.Event
	err := retryEventLock(ctx, s.store, s.maxAttempts, s.logger, id, func(ctx context.Context, event *models.Event, tx EventTx) error {
		state, err := decideApprove(event)
		if err != nil {
			return err
		}
		event.CurrentState = state
		event.UpdatedAt = s.clock.Now()
		if err := tx.UpdateEvent(ctx, event); err != nil {
			return err
		}
		approved = event
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("eventId", id).Msg("Event approved")
	return approved, nil
}

// EditEvent applies changes and re-runs the publication rules.
// Raising the student limit promotes waitlisted students into the new slots.
func (s *eventServiceImpl) EditEvent(ctx context.Context, id int64, changes EventChanges, trust models.CreatorTrust) (*models.Event, error) {
	var (
		edited        *models.Event
		notify        bool
		promotedCount int
	)
	err := retryEventLock(ctx, s.store, s.maxAttempts, s.logger, id, func(ctx context.Context, event *models.Event, tx EventTx) error {
		if err := applyChanges(event, changes); err != nil {
			return err
		}
		if event.StudentRsvpLimit != nil {
			confirmed, err := tx.CountConfirmed(ctx, event.ID, models.RoleStudent)
			if err != nil {
				return fmt.Errorf("error counting confirmed students: %w", err)
			}
			if *event.StudentRsvpLimit < confirmed {
				return fmt.Errorf("%w: student rsvp limit %d is below the %d confirmed students",
					apperrors.ErrValidationFailed, *event.StudentRsvpLimit, confirmed)
			}
		}

		decision := decideEdit(event, trust)
		decision.apply(event)
		event.UpdatedAt = s.clock.Now()
		if err := tx.UpdateEvent(ctx, event); err != nil {
			return err
		}

		promoted, err := fillOpenSlots(ctx, tx, event, s.logger)
		if err != nil {
			return err
		}
		promotedCount = len(promoted)
		edited = event
		notify = decision.RequestApproval
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("eventId", id).
		Str("state", string(edited.CurrentState)).
		Int("promoted", promotedCount).
		Msg("Event edited")

	if notify {
		s.notifyPublication(ctx, edited)
	}
	return edited, nil
}

// GetEvent retrieves an event with its sessions
func (s *eventServiceImpl) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	return s.store.GetEvent(ctx, id)
}

// ListEvents lists published events relative to the current time
func (s *eventServiceImpl) ListEvents(ctx context.Context, listType models.EventListType) ([]*models.Event, error) {
	switch listType {
	case models.EventListUpcoming, models.EventListPast, models.EventListAll:
	case "":
		listType = models.EventListUpcoming
	default:
		return nil, fmt.Errorf("%w: unknown event list type %q", apperrors.ErrValidationFailed, listType)
	}
	return s.store.ListEvents(ctx, models.EventFilter{Type: listType, Now: s.clock.Now()})
}

// notifyPublication asks publishers to approve the event and tells the creator it is pending.
// Delivery errors are logged only.
func (s *eventServiceImpl) notifyPublication(ctx context.Context, event *models.Event) {
	if event.IsSpam {
		return
	}
	if len(s.publishers) > 0 {
		if err := s.notifier.SendApprovalRequest(ctx, event, s.publishers); err != nil {
			s.logger.Error().Err(err).Int64("eventId", event.ID).Msg("Failed to send approval request")
		}
	}
	if event.CreatorEmail != "" {
		if err := s.notifier.SendSubmissionAck(ctx, event, event.CreatorEmail); err != nil {
			s.logger.Error().Err(err).Int64("eventId", event.ID).Msg("Failed to send submission acknowledgment")
		}
	}
}

// buildEvent validates a draft and turns it into an unsaved event
func (s *eventServiceImpl) buildEvent(draft EventDraft) (*models.Event, error) {
	title := strings.TrimSpace(draft.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title cannot be empty", apperrors.ErrValidationFailed)
	}
	tz := strings.TrimSpace(draft.TimeZone)
	if tz == "" {
		tz = "UTC"
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("%w: unknown time zone %q", apperrors.ErrValidationFailed, tz)
	}
	if draft.StudentRsvpLimit != nil && *draft.StudentRsvpLimit < 0 {
		return nil, fmt.Errorf("%w: student rsvp limit cannot be negative", apperrors.ErrValidationFailed)
	}
	if len(draft.Sessions) == 0 {
		return nil, fmt.Errorf("%w: an event needs at least one session", apperrors.ErrValidationFailed)
	}

	now := s.clock.Now()
	event := &models.Event{
		Title:            title,
		TimeZone:         tz,
		CreatorID:        strings.TrimSpace(draft.CreatorID),
		CreatorEmail:     strings.TrimSpace(draft.CreatorEmail),
		CurrentState:     models.StateDraft,
		StudentRsvpLimit: draft.StudentRsvpLimit,
		AllowStudentRsvp: true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if draft.AllowStudentRsvp != nil {
		event.AllowStudentRsvp = *draft.AllowStudentRsvp
	}

	for i, sd := range draft.Sessions {
		if !sd.EndsAt.After(sd.StartsAt) {
			return nil, fmt.Errorf("%w: session %d must end after it starts", apperrors.ErrValidationFailed, i+1)
		}
		name := strings.TrimSpace(sd.Name)
		if name == "" {
			name = fmt.Sprintf("Session %d", i+1)
		}
		event.Sessions = append(event.Sessions, &models.EventSession{
			Name:                name,
			StartsAt:            sd.StartsAt.UTC(),
			EndsAt:              sd.EndsAt.UTC(),
			VolunteersOnly:      sd.VolunteersOnly,
			RequiredForStudents: sd.RequiredForStudents,
		})
	}
	sort.SliceStable(event.Sessions, func(i, j int) bool {
		return event.Sessions[i].StartsAt.Before(event.Sessions[j].StartsAt)
	})
	if event.PrimarySession() == nil {
		return nil, fmt.Errorf("%w: at least one session must be open to everybody", apperrors.ErrValidationFailed)
	}
	return event, nil
}

// applyChanges edits the loaded event in place. A time zone change keeps each
// session's wall-clock times and anchors them in the new zone.
func applyChanges(event *models.Event, changes EventChanges) error {
	if changes.Title != nil {
		title := strings.TrimSpace(*changes.Title)
		if title == "" {
			return fmt.Errorf("%w: title cannot be empty", apperrors.ErrValidationFailed)
		}
		event.Title = title
	}
	if changes.TimeZone != nil && *changes.TimeZone != event.TimeZone {
		newLoc, err := time.LoadLocation(*changes.TimeZone)
		if err != nil {
			return fmt.Errorf("%w: unknown time zone %q", apperrors.ErrValidationFailed, *changes.TimeZone)
		}
		oldLoc, err := event.Location()
		if err != nil {
			oldLoc = time.UTC
		}
		for _, session := range event.Sessions {
			session.StartsAt = helpers.Reanchor(session.StartsAt, oldLoc, newLoc).UTC()
			session.EndsAt = helpers.Reanchor(session.EndsAt, oldLoc, newLoc).UTC()
		}
		event.TimeZone = *changes.TimeZone
	}
	if changes.ClearStudentRsvpLimit {
		event.StudentRsvpLimit = nil
	} else if changes.StudentRsvpLimit != nil {
		if *changes.StudentRsvpLimit < 0 {
			return fmt.Errorf("%w: student rsvp limit cannot be negative", apperrors.ErrValidationFailed)
		}
		limit := *changes.StudentRsvpLimit
		event.StudentRsvpLimit = &limit
	}
	if changes.AllowStudentRsvp != nil {
		event.AllowStudentRsvp = *changes.AllowStudentRsvp
	}
	return nil
}

