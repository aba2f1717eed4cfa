package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/yigit/eventsignup/internal/app/models"
	"github.com/yigit/eventsignup/internal/app/services"
)

// CreateDemoData submits and publishes a sample event with a volunteer
// setup session when the store has no events yet. It is meant for local
// development against an empty database.
func CreateDemoData(ctx context.Context, events services.EventService, now time.Time, lgr zerolog.Logger) error {
	existing, err := events.ListEvents(ctx, models.EventListAll)
	if err != nil {
		return fmt.Errorf("error checking for existing events: %w", err)
	}
	if len(existing) > 0 {
		lgr.Debug().Int("events", len(existing)).Msg("Events already present, skipping demo data")
		return nil
	}

	lgr.Info().Msg("Creating demo data (sample events)...")
	var finalErr error

	day := now.UTC().Truncate(24 * time.Hour)
	samples := []services.EventDraft{
		{
			Title:            "Intro to Robotics Workshop",
			TimeZone:         "UTC",
			CreatorID:        "demo",
			StudentRsvpLimit: intPtr(2),
			Sessions: []services.SessionDraft{
				{Name: "Setup", StartsAt: day.Add(2*24*time.Hour + 16*time.Hour), EndsAt: day.Add(2*24*time.Hour + 17*time.Hour), VolunteersOnly: true},
				{Name: "Workshop", StartsAt: day.Add(2*24*time.Hour + 17*time.Hour), EndsAt: day.Add(2*24*time.Hour + 19*time.Hour), RequiredForStudents: true},
			},
		},
		{
			Title:     "Community Code Night",
			TimeZone:  "UTC",
			CreatorID: "demo",
			Sessions: []services.SessionDraft{
				{Name: "Main", StartsAt: day.Add(10*24*time.Hour + 18*time.Hour), EndsAt: day.Add(10*24*time.Hour + 21*time.Hour)},
			},
		},
	}

	for _, draft := range samples {
		event, err := events.SubmitEvent(ctx, draft, models.Trusted)
		if err != nil {
			lgr.Error().Err(err).Str("title", draft.Title).Msg("Error creating demo event")
			finalErr = errors.Join(finalErr, err)
			continue
		}
		if _, err := events.ApproveEvent(ctx, event.ID); err != nil {
			lgr.Error().Err(err).Int64("eventId", event.ID).Msg("Error publishing demo event")
			finalErr = errors.Join(finalErr, err)
			continue
		}
		lgr.Info().Int64("eventId", event.ID).Str("title", event.Title).Msg("Demo event published")
	}
	return finalErr
}

func intPtr(v int) *int {
	return &v
}
