package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/yigit/eventsignup/internal/app/models"
)

// waitlist is the dense 1..k sequence of waitlisted rsvps for one event.
// Positions are only ever changed through these methods.
type waitlist struct {
	tx      EventTx
	eventID int64
}

func newWaitlist(tx EventTx, eventID int64) *waitlist {
	return &waitlist{tx: tx, eventID: eventID}
}

// insertAtEnd gives rsvp the position after the current tail. The caller
// persists the rsvp.
func (w *waitlist) insertAtEnd(ctx context.Context, rsvp *models.Rsvp) error {
	tail, err := w.tx.MaxWaitlistPosition(ctx, w.eventID)
	if err != nil {
		return fmt.Errorf("error reading waitlist tail: %w", err)
	}
	position := tail + 1
	rsvp.WaitlistPosition = &position
	return nil
}

// removeAndCompact closes the gap left at position. The rsvp that held it
// must already be deleted or moved off the waitlist.
func (w *waitlist) removeAndCompact(ctx context.Context, position int) error {
	if err := w.tx.ShiftWaitlist(ctx, w.eventID, position); err != nil {
		return fmt.Errorf("error compacting waitlist after position %d: %w", position, err)
	}
	return nil
}

// promoteHead confirms the rsvp at position 1 and compacts the rest.
// It returns nil when the waitlist is empty.
func (w *waitlist) promoteHead(ctx context.Context) (*models.Rsvp, error) {
	head, err := w.tx.WaitlistHead(ctx, w.eventID)
	if err != nil {
		return nil, fmt.Errorf("error reading waitlist head: %w", err)
	}
	if head == nil || head.WaitlistPosition == nil {
		return nil, nil
	}

	position := *head.WaitlistPosition
	head.WaitlistPosition = nil
	if err := w.tx.UpdateRsvpPlacement(ctx, head); err != nil {
		return nil, fmt.Errorf("error confirming rsvp %d: %w", head.ID, err)
	}
	if err := w.removeAndCompact(ctx, position); err != nil {
		return nil, err
	}
	return head, nil
}

// fillOpenSlots promotes waitlisted students while the event has room for them
func fillOpenSlots(ctx context.Context, tx EventTx, event *models.Event, logger zerolog.Logger) ([]*models.Rsvp, error) {
	wl := newWaitlist(tx, event.ID)
	var promoted []*models.Rsvp
	for {
		if event.StudentRsvpLimit != nil {
			confirmed, err := tx.CountConfirmed(ctx, event.ID, models.RoleStudent)
			if err != nil {
				return promoted, fmt.Errorf("error counting confirmed students: %w", err)
			}
			if confirmed >= *event.StudentRsvpLimit {
				return promoted, nil
			}
		}

		rsvp, err := wl.promoteHead(ctx)
		if err != nil {
			return promoted, err
		}
		if rsvp == nil {
			return promoted, nil
		}
		logger.Info().
			Int64("eventId", event.ID).
			Int64("rsvpId", rsvp.ID).
			Msg("Promoted rsvp from waitlist")
		promoted = append(promoted, rsvp)
	}
}

// placeRsvp decides between confirmed and waitlisted for an rsvp that is not
// yet counted as a confirmed student in the store
func placeRsvp(ctx context.Context, tx EventTx, event *models.Event, rsvp *models.Rsvp) error {
	rsvp.WaitlistPosition = nil
	if !rsvp.Role.CapacityLimited() || event.StudentRsvpLimit == nil {
		return nil
	}

	confirmed, err := tx.CountConfirmed(ctx, event.ID, rsvp.Role)
	if err != nil {
		return fmt.Errorf("error counting confirmed rsvps: %w", err)
	}
	if confirmed < *event.StudentRsvpLimit {
		return nil
	}
	return newWaitlist(tx, event.ID).insertAtEnd(ctx, rsvp)
}
