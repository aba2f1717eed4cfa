package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yigit/eventsignup/internal/app/models"
	"github.com/yigit/eventsignup/internal/app/services"
	"github.com/yigit/eventsignup/internal/pkg/apperrors"
)

func draft(sessions ...services.SessionDraft) services.EventDraft {
	if len(sessions) == 0 {
		sessions = []services.SessionDraft{sessionAt("Main", testNow.Add(5*24*time.Hour), false)}
	}
	return services.EventDraft{
		Title:        "Robotics night",
		TimeZone:     "America/Los_Angeles",
		CreatorID:    "creator-1",
		CreatorEmail: "creator@example.org",
		Sessions:     sessions,
	}
}

func TestTrustedSubmitApproveEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	event, err := f.events.SubmitEvent(ctx, draft(), models.Trusted)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if event.CurrentState != models.StatePendingApproval || event.IsSpam {
		t.Fatalf("submitted event = %s spam=%v, want pending_approval", event.CurrentState, event.IsSpam)
	}
	approvals := f.notifier.messages(kindApproval)
	if len(approvals) != 1 || approvals[0].To != publisherEmail {
		t.Fatalf("approval requests = %+v, want one to %s", approvals, publisherEmail)
	}
	if acks := f.notifier.messages(kindAck); len(acks) != 1 || acks[0].To != "creator@example.org" {
		t.Fatalf("acks = %+v, want one to the creator", acks)
	}

	event, err = f.events.ApproveEvent(ctx, event.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if event.CurrentState != models.StatePublished {
		t.Fatalf("approved state = %s, want published", event.CurrentState)
	}

	sent := f.notifier.total()
	title := "Robotics night (rescheduled)"
	event, err = f.events.EditEvent(ctx, event.ID, services.EventChanges{Title: &title}, models.Trusted)
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if event.CurrentState != models.StatePublished || event.Title != title {
		t.Fatalf("edited event = %s %q, want published with new title", event.CurrentState, event.Title)
	}
	if f.notifier.total() != sent {
		t.Fatal("editing a published event sent messages")
	}

	if _, err := f.events.ApproveEvent(ctx, event.ID); !errors.Is(err, apperrors.ErrInvalidTransition) {
		t.Fatalf("approve published error = %v, want %v", err, apperrors.ErrInvalidTransition)
	}
}

func TestSpammerSubmitIsSilentDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	event, err := f.events.SubmitEvent(ctx, draft(), models.Untrusted)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if event.CurrentState != models.StateDraft || !event.IsSpam {
		t.Fatalf("spam event = %s spam=%v, want draft spam", event.CurrentState, event.IsSpam)
	}
	if f.notifier.total() != 0 {
		t.Fatalf("spam submission sent %d messages", f.notifier.total())
	}

	if _, err := f.events.ApproveEvent(ctx, event.ID); !errors.Is(err, apperrors.ErrInvalidTransition) {
		t.Fatalf("approve draft error = %v, want %v", err, apperrors.ErrInvalidTransition)
	}

	// A trusted edit does not launder a spam event
	edited, err := f.events.EditEvent(ctx, event.ID, services.EventChanges{}, models.Trusted)
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if edited.CurrentState != models.StateDraft || !edited.IsSpam {
		t.Fatalf("edited spam event = %s spam=%v, want draft spam", edited.CurrentState, edited.IsSpam)
	}
	if f.notifier.total() != 0 {
		t.Fatal("editing a spam event sent messages")
	}
}

func TestEditPendingEventAsksAgain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	event, err := f.events.SubmitEvent(ctx, draft(), models.Trusted)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.events.EditEvent(ctx, event.ID, services.EventChanges{}, models.Trusted); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if got := len(f.notifier.messages(kindApproval)); got != 2 {
		t.Fatalf("approval requests = %d, want 2", got)
	}
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t)
	start := testNow.Add(24 * time.Hour)

	bad := func(mutate func(*services.EventDraft)) services.EventDraft {
		d := draft()
		mutate(&d)
		return d
	}
	tests := []struct {
		name  string
		draft services.EventDraft
	}{
		{"empty title", bad(func(d *services.EventDraft) { d.Title = "  " })},
		{"unknown time zone", bad(func(d *services.EventDraft) { d.TimeZone = "Mars/Olympus_Mons" })},
		{"no sessions", bad(func(d *services.EventDraft) { d.Sessions = nil })},
		{"negative limit", bad(func(d *services.EventDraft) { d.StudentRsvpLimit = intPtr(-1) })},
		{"ends before start", bad(func(d *services.EventDraft) {
			d.Sessions = []services.SessionDraft{{Name: "Backwards", StartsAt: start, EndsAt: start.Add(-time.Hour)}}
		})},
		{"volunteers only", bad(func(d *services.EventDraft) {
			d.Sessions = []services.SessionDraft{sessionAt("Setup", start, true)}
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.events.SubmitEvent(context.Background(), tt.draft, models.Trusted)
			if !errors.Is(err, apperrors.ErrValidationFailed) {
				t.Fatalf("submit error = %v, want %v", err, apperrors.ErrValidationFailed)
			}
		})
	}
}

func TestSubmitOrdersSessionsAndDefaults(t *testing.T) {
	f := newFixture(t)
	start := testNow.Add(48 * time.Hour)

	d := draft(
		sessionAt("", start.Add(2*time.Hour), false),
		sessionAt("Setup", start, true),
	)
	d.TimeZone = ""
	event, err := f.events.SubmitEvent(context.Background(), d, models.Trusted)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if event.TimeZone != "UTC" {
		t.Fatalf("time zone = %q, want UTC", event.TimeZone)
	}
	if !event.AllowStudentRsvp {
		t.Fatal("student rsvps closed by default")
	}
	if event.Sessions[0].Name != "Setup" || event.Sessions[1].Name != "Session 1" {
		t.Fatalf("sessions = %q, %q; want Setup then Session 1", event.Sessions[0].Name, event.Sessions[1].Name)
	}
	if !event.StartsAt().Equal(start) {
		t.Fatalf("event start = %v, want %v", event.StartsAt(), start)
	}
}

func TestEditLimitPromotesAndRejectsOverbooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.publishedEvent(t, intPtr(1))
	for _, id := range []string{"s1", "w1", "w2", "w3"} {
		f.signup(t, event.ID, id, models.RoleStudent)
	}

	if _, err := f.events.EditEvent(ctx, event.ID, services.EventChanges{StudentRsvpLimit: intPtr(3)}, models.Trusted); err != nil {
		t.Fatalf("raise limit: %v", err)
	}
	assertPlacement(t, f.placement(t, event.ID), map[string]int{"s1": 0, "w1": 0, "w2": 0, "w3": 1})

	_, err := f.events.EditEvent(ctx, event.ID, services.EventChanges{StudentRsvpLimit: intPtr(2)}, models.Trusted)
	if !errors.Is(err, apperrors.ErrValidationFailed) {
		t.Fatalf("lower limit error = %v, want %v", err, apperrors.ErrValidationFailed)
	}

	if _, err := f.events.EditEvent(ctx, event.ID, services.EventChanges{ClearStudentRsvpLimit: true}, models.Trusted); err != nil {
		t.Fatalf("clear limit: %v", err)
	}
	assertPlacement(t, f.placement(t, event.ID), map[string]int{"s1": 0, "w1": 0, "w2": 0, "w3": 0})
}

func TestEditTimeZoneKeepsWallClock(t *testing.T) {
	f := newFixture(t)
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	london, err := time.LoadLocation("Europe/London")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	local := time.Date(2026, time.June, 10, 18, 30, 0, 0, ny)
	d := draft(sessionAt("Main", local, false))
	d.TimeZone = "America/New_York"
	event, err := f.events.SubmitEvent(context.Background(), d, models.Trusted)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	zone := "Europe/London"
	event, err = f.events.EditEvent(context.Background(), event.ID, services.EventChanges{TimeZone: &zone}, models.Trusted)
	if err != nil {
		t.Fatalf("edit time zone: %v", err)
	}
	want := time.Date(2026, time.June, 10, 18, 30, 0, 0, london)
	if !event.Sessions[0].StartsAt.Equal(want) {
		t.Fatalf("session start = %v, want %v", event.Sessions[0].StartsAt, want)
	}

	stored, err := f.events.GetEvent(context.Background(), event.ID)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if stored.TimeZone != zone || !stored.Sessions[0].StartsAt.Equal(want) {
		t.Fatalf("stored event = %s %v, want %s %v", stored.TimeZone, stored.Sessions[0].StartsAt, zone, want)
	}
}

func TestListEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	upcoming := f.publishedEvent(t, nil, sessionAt("Main", testNow.Add(24*time.Hour), false))
	past := f.publishedEvent(t, nil, sessionAt("Main", testNow.Add(-48*time.Hour), false))
	if _, err := f.events.SubmitEvent(ctx, draft(), models.Trusted); err != nil {
		t.Fatalf("submit unpublished: %v", err)
	}

	tests := []struct {
		listType models.EventListType
		want     []int64
	}{
		{"", []int64{upcoming.ID}},
		{models.EventListUpcoming, []int64{upcoming.ID}},
		{models.EventListPast, []int64{past.ID}},
		{models.EventListAll, []int64{past.ID, upcoming.ID}},
	}
	for _, tt := range tests {
		events, err := f.events.ListEvents(ctx, tt.listType)
		if err != nil {
			t.Fatalf("list %q: %v", tt.listType, err)
		}
		if len(events) != len(tt.want) {
			t.Fatalf("list %q returned %d events, want %d", tt.listType, len(events), len(tt.want))
		}
		for i, e := range events {
			if e.ID != tt.want[i] {
				t.Fatalf("list %q[%d] = %d, want %d", tt.listType, i, e.ID, tt.want[i])
			}
		}
	}

	if _, err := f.events.ListEvents(ctx, "someday"); !errors.Is(err, apperrors.ErrValidationFailed) {
		t.Fatalf("unknown list type error = %v, want %v", err, apperrors.ErrValidationFailed)
	}
}
