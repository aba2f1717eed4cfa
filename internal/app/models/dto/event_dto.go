package dto

import (
	"time"

	"github.com/yigit/eventsignup/internal/app/models"
)

// SessionRequest is one session of an event submission. Times are RFC 3339
// instants or wall-clock times ("2026-04-04T17:00") in the event's time zone.
type SessionRequest struct {
	Name                string `json:"name" example:"Workshop"`
	StartsAt            string `json:"startsAt" binding:"required" example:"2026-04-04T17:00"`
	EndsAt              string `json:"endsAt" binding:"required" example:"2026-04-04T19:00"`
	VolunteersOnly      bool   `json:"volunteersOnly"`
	RequiredForStudents bool   `json:"requiredForStudents"`
}

// SubmitEventRequest represents event submission data
type SubmitEventRequest struct {
	Title            string           `json:"title" binding:"required" example:"Robotics night"`
	TimeZone         string           `json:"timeZone" example:"America/Los_Angeles"`
	CreatorID        string           `json:"creatorId" example:"user-42"`
	CreatorEmail     string           `json:"creatorEmail" binding:"omitempty,email" example:"organizer@example.org"`
	StudentRsvpLimit *int             `json:"studentRsvpLimit" binding:"omitempty,gte=0" example:"20"`
	AllowStudentRsvp *bool            `json:"allowStudentRsvp"`
	Trusted          *bool            `json:"trusted" binding:"required"`
	Sessions         []SessionRequest `json:"sessions" binding:"required,min=1,dive"`
}

// UpdateEventRequest represents an edit of an existing event; omitted fields stay unchanged
type UpdateEventRequest struct {
	Title                 *string `json:"title"`
	TimeZone              *string `json:"timeZone"`
	StudentRsvpLimit      *int    `json:"studentRsvpLimit" binding:"omitempty,gte=0"`
	ClearStudentRsvpLimit bool    `json:"clearStudentRsvpLimit"`
	AllowStudentRsvp      *bool   `json:"allowStudentRsvp"`
	Trusted               *bool   `json:"trusted" binding:"required"`
}

// SessionResponse represents a session in API responses
type SessionResponse struct {
	ID                  int64     `json:"id"`
	Name                string    `json:"name"`
	StartsAt            time.Time `json:"startsAt"`
	EndsAt              time.Time `json:"endsAt"`
	LocalStartsAt       string    `json:"localStartsAt" example:"2026-04-04T17:00:00-07:00"`
	VolunteersOnly      bool      `json:"volunteersOnly"`
	RequiredForStudents bool      `json:"requiredForStudents"`
}

// EventResponse represents an event in API responses
type EventResponse struct {
	ID               int64             `json:"id"`
	Title            string            `json:"title"`
	TimeZone         string            `json:"timeZone"`
	CreatorID        string            `json:"creatorId,omitempty"`
	CurrentState     models.State      `json:"currentState" example:"published"`
	IsSpam           bool              `json:"isSpam"`
	StudentRsvpLimit *int              `json:"studentRsvpLimit"`
	AllowStudentRsvp bool              `json:"allowStudentRsvp"`
	StartsAt         time.Time         `json:"startsAt"`
	PrimarySessionID *int64            `json:"primarySessionId,omitempty"`
	Sessions         []SessionResponse `json:"sessions"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// NewEventResponse converts an event model to its API shape
func NewEventResponse(event *models.Event) EventResponse {
	loc, err := event.Location()
	if err != nil {
		loc = time.UTC
	}

	resp := EventResponse{
		ID:               event.ID,
		Title:            event.Title,
		TimeZone:         event.TimeZone,
		CreatorID:        event.CreatorID,
		CurrentState:     event.CurrentState,
		IsSpam:           event.IsSpam,
		StudentRsvpLimit: event.StudentRsvpLimit,
		AllowStudentRsvp: event.AllowStudentRsvp,
		StartsAt:         event.StartsAt(),
		Sessions:         make([]SessionResponse, 0, len(event.Sessions)),
		CreatedAt:        event.CreatedAt,
		UpdatedAt:        event.UpdatedAt,
	}
	if primary := event.PrimarySession(); primary != nil {
		id := primary.ID
		resp.PrimarySessionID = &id
	}
	for _, s := range event.Sessions {
		resp.Sessions = append(resp.Sessions, SessionResponse{
			ID:                  s.ID,
			Name:                s.Name,
			StartsAt:            s.StartsAt,
			EndsAt:              s.EndsAt,
			LocalStartsAt:       s.StartsAt.In(loc).Format(time.RFC3339),
			VolunteersOnly:      s.VolunteersOnly,
			RequiredForStudents: s.RequiredForStudents,
		})
	}
	return resp
}

// NewEventListResponse converts a list of events
func NewEventListResponse(events []*models.Event) []EventResponse {
	out := make([]EventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, NewEventResponse(e))
	}
	return out
}
