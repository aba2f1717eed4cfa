package services

import (
	"fmt"

	"github.com/yigit/eventsignup/internal/app/models"
	"github.com/yigit/eventsignup/internal/pkg/apperrors"
)

// publicationDecision is the outcome of running the publication rules on an event
type publicationDecision struct {
	State           models.State
	MarkSpam        bool
	RequestApproval bool
}

// decideSubmit: trusted creators go to pending approval, spam stays a silent draft
func decideSubmit(event *models.Event, trust models.CreatorTrust) publicationDecision {
	if event.IsSpam || trust == models.Untrusted {
		return publicationDecision{State: models.StateDraft, MarkSpam: true}
	}
	return publicationDecision{State: models.StatePendingApproval, RequestApproval: true}
}

// decideEdit never unpublishes; anything not yet published is submitted again
func decideEdit(event *models.Event, trust models.CreatorTrust) publicationDecision {
	if event.CurrentState == models.StatePublished {
		return publicationDecision{State: models.StatePublished}
	}
	return decideSubmit(event, trust)
}

func decideApprove(event *models.Event) (models.State, error) {
	switch event.CurrentState {
	case models.StatePendingApproval:
		return models.StatePublished, nil
	case models.StateDraft, models.StatePublished:
		return event.CurrentState, fmt.Errorf("%w: cannot approve a %s event", apperrors.ErrInvalidTransition, event.CurrentState)
	default:
		return event.CurrentState, fmt.Errorf("%w: unknown state %q", apperrors.ErrInvalidTransition, event.CurrentState)
	}
}

func (d publicationDecision) apply(event *models.Event) {
	event.CurrentState = d.State
	if d.MarkSpam {
		event.IsSpam = true
	}
}
