package services

import (
	"context"
	"time"

	"github.com/yigit/eventsignup/internal/app/models"
	"github.com/yigit/eventsignup/internal/app/window"
)

// Services defined in this package:
// - EventService: submission, approval and editing of events (publication workflow)
// - RsvpService: signups, cancellations and waitlist bookkeeping
// - ReminderService: one reminder pass over upcoming events
// - Scheduler: periodic driver for ReminderService

// LockedFunc runs while the event row is locked. The event passed in is the
// locked, freshly loaded copy and tx only sees the same transaction.
type LockedFunc func(ctx context.Context, event *models.Event, tx EventTx) error

// EventTx is the part of the store usable while an event lock is held
type EventTx interface {
	GetRsvp(ctx context.Context, id int64) (*models.Rsvp, error)
	CountConfirmed(ctx context.Context, eventID int64, role models.Role) (int, error)
	MaxWaitlistPosition(ctx context.Context, eventID int64) (int, error)
	// WaitlistHead returns the rsvp at position 1, or nil when nobody is waiting
	WaitlistHead(ctx context.Context, eventID int64) (*models.Rsvp, error)
	CreateRsvp(ctx context.Context, rsvp *models.Rsvp) error
	UpdateRsvpPlacement(ctx context.Context, rsvp *models.Rsvp) error
	ReplaceRsvpSessions(ctx context.Context, rsvpID int64, sessionIDs []int64) error
	DeleteRsvp(ctx context.Context, id int64) error
	// ShiftWaitlist moves every waitlisted rsvp behind position up by one
	ShiftWaitlist(ctx context.Context, eventID int64, position int) error
	UpdateEvent(ctx context.Context, event *models.Event) error
}

// EventStore persists events and serializes work per event
type EventStore interface {
	CreateEvent(ctx context.Context, event *models.Event) error
	GetEvent(ctx context.Context, id int64) (*models.Event, error)
	ListEvents(ctx context.Context, filter models.EventFilter) ([]*models.Event, error)
	WithEventLock(ctx context.Context, eventID int64, fn LockedFunc) error
}

// RsvpStore reads rsvps outside of a lock
type RsvpStore interface {
	GetRsvp(ctx context.Context, id int64) (*models.Rsvp, error)
	ListRsvps(ctx context.Context, eventID int64) ([]*models.Rsvp, error)
	WithEventLock(ctx context.Context, eventID int64, fn LockedFunc) error
}

// ReminderStore finds due reminders and marks them sent
type ReminderStore interface {
	// ListUpcomingEvents returns non-spam events whose earliest session starts inside w
	ListUpcomingEvents(ctx context.Context, w window.Window) ([]*models.Event, error)
	ListUnremindedSessionRsvps(ctx context.Context, sessionID int64) ([]*models.RsvpSession, error)
	// ListUnremindedRsvps returns confirmed rsvps of any role that were never reminded
	ListUnremindedRsvps(ctx context.Context, eventID int64) ([]*models.Rsvp, error)
	// ClaimRsvpReminder sets reminded_at only if it is still unset and reports whether it did
	ClaimRsvpReminder(ctx context.Context, rsvpID int64, at time.Time) (bool, error)
	ClaimRsvpSessionReminder(ctx context.Context, rsvpSessionID int64, at time.Time) (bool, error)
}

// Store is everything the core needs from persistence
type Store interface {
	EventStore
	RsvpStore
	ReminderStore
}

// Notifier delivers outbound messages. Implementations report their own
// failures; callers only log the returned error.
type Notifier interface {
	SendEventReminder(ctx context.Context, event *models.Event, rsvp *models.Rsvp) error
	SendSessionReminder(ctx context.Context, event *models.Event, session *models.EventSession, attendance *models.RsvpSession) error
	SendApprovalRequest(ctx context.Context, event *models.Event, recipients []string) error
	SendSubmissionAck(ctx context.Context, event *models.Event, creator string) error
}
