package dto

import (
	"time"

	"github.com/yigit/eventsignup/internal/app/models"
)

// SignupRequest represents an rsvp for an event
type SignupRequest struct {
	AttendeeID    string  `json:"attendeeId" binding:"required" example:"user-7"`
	AttendeeEmail string  `json:"attendeeEmail" binding:"omitempty,email" example:"ada@example.org"`
	Role          string  `json:"role" binding:"required,oneof=student volunteer teacher ta" example:"student"`
	SessionIDs    []int64 `json:"sessionIds"`
}

// EditSessionsRequest replaces the sessions an rsvp attends
type EditSessionsRequest struct {
	SessionIDs []int64 `json:"sessionIds"`
}

// ChangeRoleRequest moves an rsvp to another role
type ChangeRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=student volunteer teacher ta" example:"volunteer"`
}

// Rsvp statuses as reported to clients
const (
	RsvpStatusConfirmed  = "confirmed"
	RsvpStatusWaitlisted = "waitlisted"
)

// RsvpResponse represents an rsvp in API responses
type RsvpResponse struct {
	ID               int64       `json:"id"`
	EventID          int64       `json:"eventId"`
	AttendeeID       string      `json:"attendeeId"`
	Role             models.Role `json:"role"`
	Status           string      `json:"status" example:"waitlisted"`
	WaitlistPosition *int        `json:"waitlistPosition,omitempty" example:"2"`
	SessionIDs       []int64     `json:"sessionIds"`
	RemindedAt       *time.Time  `json:"remindedAt,omitempty"`
	CreatedAt        time.Time   `json:"createdAt"`
}

// NewRsvpResponse converts an rsvp model to its API shape
func NewRsvpResponse(rsvp *models.Rsvp) RsvpResponse {
	status := RsvpStatusConfirmed
	if !rsvp.Confirmed() {
		status = RsvpStatusWaitlisted
	}
	sessionIDs := rsvp.SessionIDs
	if sessionIDs == nil {
		sessionIDs = []int64{}
	}
	return RsvpResponse{
		ID:               rsvp.ID,
		EventID:          rsvp.EventID,
		AttendeeID:       rsvp.AttendeeID,
		Role:             rsvp.Role,
		Status:           status,
		WaitlistPosition: rsvp.WaitlistPosition,
		SessionIDs:       sessionIDs,
		RemindedAt:       rsvp.RemindedAt,
		CreatedAt:        rsvp.CreatedAt,
	}
}

// NewRsvpListResponse converts a list of rsvps
func NewRsvpListResponse(rsvps []*models.Rsvp) []RsvpResponse {
	out := make([]RsvpResponse, 0, len(rsvps))
	for _, r := range rsvps {
		out = append(out, NewRsvpResponse(r))
	}
	return out
}

// ReminderTickRequest optionally pins the instant a manual tick runs at
type ReminderTickRequest struct {
	Now *time.Time `json:"now" example:"2026-04-01T09:00:00Z"`
}
