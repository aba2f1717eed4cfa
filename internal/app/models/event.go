package models

import (
	"fmt"
	"time"
)

// State is the publication state of an event
type State string

const (
	StateDraft           State = "draft"
	StatePendingApproval State = "pending_approval"
	StatePublished       State = "published"
)

// ParseState converts a persisted current_state value into a State
func ParseState(s string) (State, error) {
	switch State(s) {
	case StateDraft, StatePendingApproval, StatePublished:
		return State(s), nil
	default:
		return "", fmt.Errorf("unknown event state %q", s)
	}
}

// CreatorTrust tells the publication workflow whether the creator is flagged as a spammer
type CreatorTrust bool

const (
	Trusted   CreatorTrust = true
	Untrusted CreatorTrust = false
)

// Event represents a multi-session community event
type Event struct {
	ID               int64           `json:"id" db:"id"`
	Title            string          `json:"title" db:"title"`
	TimeZone         string          `json:"timeZone" db:"time_zone"`
	CreatorID        string          `json:"creatorId" db:"creator_id"`
	CreatorEmail     string          `json:"creatorEmail,omitempty" db:"creator_email"`
	CurrentState     State           `json:"currentState" db:"current_state"`
	IsSpam           bool            `json:"isSpam" db:"is_spam"`
	StudentRsvpLimit *int            `json:"studentRsvpLimit,omitempty" db:"student_rsvp_limit"`
	AllowStudentRsvp bool            `json:"allowStudentRsvp" db:"allow_student_rsvp"`
	CreatedAt        time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time       `json:"updatedAt" db:"updated_at"`
	Sessions         []*EventSession `json:"sessions"`
}

// EventSession is one scheduled block of an event
type EventSession struct {
	ID                  int64     `json:"id" db:"id"`
	EventID             int64     `json:"eventId" db:"event_id"`
	Name                string    `json:"name" db:"name"`
	StartsAt            time.Time `json:"startsAt" db:"starts_at"`
	EndsAt              time.Time `json:"endsAt" db:"ends_at"`
	VolunteersOnly      bool      `json:"volunteersOnly" db:"volunteers_only"`
	RequiredForStudents bool      `json:"requiredForStudents" db:"required_for_students"`
}

// StartsAt returns the start of the earliest session, or the zero time for an event without sessions
func (e *Event) StartsAt() time.Time {
	var first time.Time
	for _, s := range e.Sessions {
		if first.IsZero() || s.StartsAt.Before(first) {
			first = s.StartsAt
		}
	}
	return first
}

// PrimarySession returns the earliest session open to everybody.
// It returns nil when every session is volunteers-only.
func (e *Event) PrimarySession() *EventSession {
	var primary *EventSession
	for _, s := range e.Sessions {
		if s.VolunteersOnly {
			continue
		}
		if primary == nil || s.StartsAt.Before(primary.StartsAt) {
			primary = s
		}
	}
	return primary
}

// VolunteerSessions returns the volunteers-only sessions in schedule order
func (e *Event) VolunteerSessions() []*EventSession {
	var sessions []*EventSession
	for _, s := range e.Sessions {
		if s.VolunteersOnly {
			sessions = append(sessions, s)
		}
	}
	return sessions
}

// HasSession reports whether the session id belongs to this event
func (e *Event) HasSession(id int64) bool {
	for _, s := range e.Sessions {
		if s.ID == id {
			return true
		}
	}
	return false
}

// Location loads the event's display time zone
func (e *Event) Location() (*time.Location, error) {
	return time.LoadLocation(e.TimeZone)
}

// EventListType selects which published events a listing returns
type EventListType string

const (
	EventListUpcoming EventListType = "upcoming"
	EventListPast     EventListType = "past"
	EventListAll      EventListType = "all"
)

// EventFilter narrows event listings
type EventFilter struct {
	Type EventListType
	// Now is the reference point for upcoming/past
	Now time.Time
}
