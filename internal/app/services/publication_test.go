package services

import (
	"errors"
	"testing"

	"github.com/yigit/eventsignup/internal/app/models"
	"github.com/yigit/eventsignup/internal/pkg/apperrors"
)

func TestDecideSubmit(t *testing.T) {
	tests := []struct {
		name     string
		spam     bool
		trust    models.CreatorTrust
		want     models.State
		markSpam bool
		request  bool
	}{
		{name: "trusted creator", trust: models.Trusted, want: models.StatePendingApproval, request: true},
		{name: "spammer", trust: models.Untrusted, want: models.StateDraft, markSpam: true},
		{name: "already spam stays spam", spam: true, trust: models.Trusted, want: models.StateDraft, markSpam: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := &models.Event{CurrentState: models.StateDraft, IsSpam: tt.spam}
			got := decideSubmit(event, tt.trust)
			if got.State != tt.want || got.MarkSpam != tt.markSpam || got.RequestApproval != tt.request {
				t.Fatalf("decideSubmit = %+v, want state=%s spam=%v request=%v", got, tt.want, tt.markSpam, tt.request)
			}
		})
	}
}

func TestDecideEdit(t *testing.T) {
	tests := []struct {
		name    string
		state   models.State
		trust   models.CreatorTrust
		want    models.State
		request bool
	}{
		{name: "published stays published", state: models.StatePublished, trust: models.Trusted, want: models.StatePublished},
		{name: "published spammer edit stays published", state: models.StatePublished, trust: models.Untrusted, want: models.StatePublished},
		{name: "draft is resubmitted", state: models.StateDraft, trust: models.Trusted, want: models.StatePendingApproval, request: true},
		{name: "pending asks again", state: models.StatePendingApproval, trust: models.Trusted, want: models.StatePendingApproval, request: true},
		{name: "pending spammer edit becomes draft", state: models.StatePendingApproval, trust: models.Untrusted, want: models.StateDraft},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decideEdit(&models.Event{CurrentState: tt.state}, tt.trust)
			if got.State != tt.want || got.RequestApproval != tt.request {
				t.Fatalf("decideEdit = %+v, want state=%s request=%v", got, tt.want, tt.request)
			}
		})
	}
}

func TestDecideApprove(t *testing.T) {
	state, err := decideApprove(&models.Event{CurrentState: models.StatePendingApproval})
	if err != nil || state != models.StatePublished {
		t.Fatalf("approve pending = %s, %v; want published, nil", state, err)
	}

	for _, from := range []models.State{models.StateDraft, models.StatePublished} {
		state, err := decideApprove(&models.Event{CurrentState: from})
		if !errors.Is(err, apperrors.ErrInvalidTransition) {
			t.Fatalf("approve %s error = %v, want %v", from, err, apperrors.ErrInvalidTransition)
		}
		if state != from {
			t.Fatalf("approve %s changed state to %s", from, state)
		}
	}
}

func TestPublicationDecisionNeverClearsSpam(t *testing.T) {
	event := &models.Event{CurrentState: models.StatePublished, IsSpam: true}
	decideEdit(event, models.Trusted).apply(event)
	if !event.IsSpam {
		t.Fatal("spam flag was cleared")
	}
}
