package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yigit/eventsignup/internal/app/models"
	"github.com/yigit/eventsignup/internal/app/window"
)

// ReminderService defines the interface for a single reminder pass
type ReminderService interface {
	RunTick(ctx context.Context, now time.Time) (TickResult, error)
}

// TickResult counts what one reminder pass delivered
type TickResult struct {
	EventRemindersSent   int `json:"eventRemindersSent"`
	SessionRemindersSent int `json:"sessionRemindersSent"`
	Failures             int `json:"failures"`
}

// reminderServiceImpl implements ReminderService
type reminderServiceImpl struct {
	store    ReminderStore
	notifier Notifier
	lead     time.Duration
	logger   zerolog.Logger
}

// NewReminderService creates a new ReminderService. A non-positive lead uses window.ReminderLead.
func NewReminderService(store ReminderStore, notifier Notifier, lead time.Duration, logger zerolog.Logger) ReminderService {
	if lead <= 0 {
		lead = window.ReminderLead
	}
	return &reminderServiceImpl{
		store:    store,
		notifier: notifier,
		lead:     lead,
		logger:   logger,
	}
}

// RunTick sends every reminder that is due at now and was never sent.
// Each recipient is claimed with a conditional update before the send, so
// repeated or overlapping ticks never deliver twice.
func (s *reminderServiceImpl) RunTick(ctx context.Context, now time.Time) (TickResult, error) {
	var result TickResult
	lgr := s.logger.With().Str("runId", uuid.NewString()).Time("now", now).Logger()

	due := window.LeadWindow(now, s.lead)
	events, err := s.store.ListUpcomingEvents(ctx, due)
	if err != nil {
		return result, fmt.Errorf("error listing upcoming events: %w", err)
	}

	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if event.IsSpam {
			continue
		}
		s.remindEvent(ctx, lgr, event, now, due, &result)
	}

	lgr.Info().
		Int("events", len(events)).
		Int("eventReminders", result.EventRemindersSent).
		Int("sessionReminders", result.SessionRemindersSent).
		Int("failures", result.Failures).
		Msg("Reminder tick finished")
	return result, nil
}

func (s *reminderServiceImpl) remindEvent(ctx context.Context, lgr zerolog.Logger, event *models.Event, now time.Time, due window.Window, result *TickResult) {
	for _, session := range event.VolunteerSessions() {
		s.remindSession(ctx, lgr, event, session, now, result)
	}

	// The event is due by its earliest session; the attendee reminder waits
	// for the session everybody attends.
	primary := event.PrimarySession()
	if primary == nil {
		lgr.Debug().Int64("eventId", event.ID).Msg("Event has no everybody session, skipping attendee reminders")
		return
	}
	if !due.Contains(primary.StartsAt) {
		return
	}

	rsvps, err := s.store.ListUnremindedRsvps(ctx, event.ID)
	if err != nil {
		lgr.Error().Err(err).Int64("eventId", event.ID).Msg("Failed to list rsvps due for a reminder")
		result.Failures++
		return
	}
	if len(rsvps) > 0 {
		lgr.Info().Int64("eventId", event.ID).Str("title", event.Title).Int("count", len(rsvps)).Msg("Sending event reminders")
	}

	for _, rsvp := range rsvps {
		if !rsvp.Confirmed() {
			continue
		}
		claimed, err := s.store.ClaimRsvpReminder(ctx, rsvp.ID, now)
		if err != nil {
			lgr.Error().Err(err).Int64("rsvpId", rsvp.ID).Msg("Failed to mark rsvp reminded")
			result.Failures++
			continue
		}
		if !claimed {
			continue
		}
		if err := s.notifier.SendEventReminder(ctx, event, rsvp); err != nil {
			lgr.Error().Err(err).Int64("rsvpId", rsvp.ID).Msg("Failed to send event reminder")
			result.Failures++
			continue
		}
		result.EventRemindersSent++
	}
}

func (s *reminderServiceImpl) remindSession(ctx context.Context, lgr zerolog.Logger, event *models.Event, session *models.EventSession, now time.Time, result *TickResult) {
	attendances, err := s.store.ListUnremindedSessionRsvps(ctx, session.ID)
	if err != nil {
		lgr.Error().Err(err).Int64("sessionId", session.ID).Msg("Failed to list session attendances due for a reminder")
		result.Failures++
		return
	}
	if len(attendances) > 0 {
		lgr.Info().
			Int64("eventId", event.ID).
			Str("title", event.Title).
			Str("session", session.Name).
			Int("count", len(attendances)).
			Msg("Sending session reminders")
	}

	for _, attendance := range attendances {
		claimed, err := s.store.ClaimRsvpSessionReminder(ctx, attendance.ID, now)
		if err != nil {
			lgr.Error().Err(err).Int64("rsvpSessionId", attendance.ID).Msg("Failed to mark session attendance reminded")
			result.Failures++
			continue
		}
		if !claimed {
			continue
		}
		if err := s.notifier.SendSessionReminder(ctx, event, session, attendance); err != nil {
			lgr.Error().Err(err).Int64("rsvpSessionId", attendance.ID).Msg("Failed to send session reminder")
			result.Failures++
			continue
		}
		result.SessionRemindersSent++
	}
}
