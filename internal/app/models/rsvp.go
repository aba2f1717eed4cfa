package models

import (
	"fmt"
	"time"
)

// Role is the part an attendee plays at an event
type Role string

const (
	RoleStudent   Role = "student"
	RoleVolunteer Role = "volunteer"
	RoleTeacher   Role = "teacher"
	RoleTA        Role = "ta"
)

// ParseRole converts a persisted or requested role into a Role
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleStudent, RoleVolunteer, RoleTeacher, RoleTA:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// CapacityLimited reports whether confirmed rsvps of this role count against the event limit
func (r Role) CapacityLimited() bool {
	switch r {
	case RoleStudent:
		return true
	case RoleVolunteer, RoleTeacher, RoleTA:
		return false
	default:
		return false
	}
}

// Rsvp is an attendee's signup for an event
type Rsvp struct {
	ID               int64      `json:"id" db:"id"`
	EventID          int64      `json:"eventId" db:"event_id"`
	AttendeeID       string     `json:"attendeeId" db:"attendee_id"`
	AttendeeEmail    string     `json:"attendeeEmail,omitempty" db:"attendee_email"`
	Role             Role       `json:"role" db:"role"`
	WaitlistPosition *int       `json:"waitlistPosition,omitempty" db:"waitlist_position"`
	RemindedAt       *time.Time `json:"remindedAt,omitempty" db:"reminded_at"`
	CreatedAt        time.Time  `json:"createdAt" db:"created_at"`
	SessionIDs       []int64    `json:"sessionIds"`
}

// Confirmed reports whether the rsvp holds a real slot
func (r *Rsvp) Confirmed() bool {
	return r.WaitlistPosition == nil
}

// RsvpSession records that an rsvp committed to attend one session
type RsvpSession struct {
	ID             int64      `json:"id" db:"id"`
	RsvpID         int64      `json:"rsvpId" db:"rsvp_id"`
	EventSessionID int64      `json:"eventSessionId" db:"event_session_id"`
	RemindedAt     *time.Time `json:"remindedAt,omitempty" db:"reminded_at"`

	// Joined from the owning rsvp for delivery
	AttendeeID    string `json:"attendeeId,omitempty"`
	AttendeeEmail string `json:"attendeeEmail,omitempty"`
}
