package services_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/yigit/eventsignup/internal/app/models"
	"github.com/yigit/eventsignup/internal/app/repositories/sqlite"
	"github.com/yigit/eventsignup/internal/app/services"
	"github.com/yigit/eventsignup/internal/app/window"
)

var testNow = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

const publisherEmail = "publisher@example.org"

type sentMessage struct {
	Kind       string
	EventID    int64
	SessionID  int64
	SessionIDs []int64
	To         string
}

const (
	kindEventReminder   = "event_reminder"
	kindSessionReminder = "session_reminder"
	kindApproval        = "approval_request"
	kindAck             = "submission_ack"
)

// recordingNotifier records every message and fails for addresses in failTo
type recordingNotifier struct {
	mu     sync.Mutex
	sent   []sentMessage
	failTo map[string]bool
}

func (n *recordingNotifier) record(msg sentMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failTo[msg.To] {
		return errors.New("smtp: mailbox unavailable")
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) SendEventReminder(_ context.Context, event *models.Event, rsvp *models.Rsvp) error {
	return n.record(sentMessage{Kind: kindEventReminder, EventID: event.ID, SessionIDs: rsvp.SessionIDs, To: rsvp.AttendeeID})
}

func (n *recordingNotifier) SendSessionReminder(_ context.Context, event *models.Event, session *models.EventSession, attendance *models.RsvpSession) error {
	return n.record(sentMessage{Kind: kindSessionReminder, EventID: event.ID, SessionID: session.ID, To: attendance.AttendeeID})
}

func (n *recordingNotifier) SendApprovalRequest(_ context.Context, event *models.Event, recipients []string) error {
	for _, to := range recipients {
		if err := n.record(sentMessage{Kind: kindApproval, EventID: event.ID, To: to}); err != nil {
			return err
		}
	}
	return nil
}

func (n *recordingNotifier) SendSubmissionAck(_ context.Context, event *models.Event, creator string) error {
	return n.record(sentMessage{Kind: kindAck, EventID: event.ID, To: creator})
}

func (n *recordingNotifier) messages(kind string) []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentMessage
	for _, m := range n.sent {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

func (n *recordingNotifier) total() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type fixture struct {
	store     *sqlite.Store
	notifier  *recordingNotifier
	events    services.EventService
	rsvps     services.RsvpService
	reminders services.ReminderService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "events.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	notifier := &recordingNotifier{failTo: map[string]bool{}}
	clock := window.FixedClock{At: testNow}
	return &fixture{
		store:     store,
		notifier:  notifier,
		events:    services.NewEventService(store, notifier, []string{publisherEmail}, clock, services.DefaultMaxAttempts, zerolog.Nop()),
		rsvps:     services.NewRsvpService(store, clock, services.DefaultMaxAttempts, zerolog.Nop()),
		reminders: services.NewReminderService(store, notifier, window.ReminderLead, zerolog.Nop()),
	}
}

func sessionAt(name string, startsAt time.Time, volunteersOnly bool) services.SessionDraft {
	return services.SessionDraft{
		Name:           name,
		StartsAt:       startsAt,
		EndsAt:         startsAt.Add(time.Hour),
		VolunteersOnly: volunteersOnly,
	}
}

// publishedEvent submits and approves an event with one everybody session starting at startsAt
func (f *fixture) publishedEvent(t *testing.T, limit *int, sessions ...services.SessionDraft) *models.Event {
	t.Helper()

	if len(sessions) == 0 {
		sessions = []services.SessionDraft{sessionAt("Main", testNow.Add(7*24*time.Hour), false)}
	}
	event, err := f.events.SubmitEvent(context.Background(), services.EventDraft{
		Title:            "Community workshop",
		TimeZone:         "UTC",
		CreatorID:        "creator-1",
		CreatorEmail:     "creator@example.org",
		StudentRsvpLimit: limit,
		Sessions:         sessions,
	}, models.Trusted)
	if err != nil {
		t.Fatalf("submit event: %v", err)
	}
	event, err = f.events.ApproveEvent(context.Background(), event.ID)
	if err != nil {
		t.Fatalf("approve event: %v", err)
	}
	return event
}

func (f *fixture) signup(t *testing.T, eventID int64, attendee string, role models.Role, sessionIDs ...int64) *models.Rsvp {
	t.Helper()

	rsvp, err := f.rsvps.Signup(context.Background(), services.SignupInput{
		EventID:    eventID,
		AttendeeID: attendee,
		Role:       role,
		SessionIDs: sessionIDs,
	})
	if err != nil {
		t.Fatalf("signup %q: %v", attendee, err)
	}
	return rsvp
}

// placement maps attendee to waitlist position, 0 meaning confirmed
func (f *fixture) placement(t *testing.T, eventID int64) map[string]int {
	t.Helper()

	rsvps, err := f.rsvps.ListRsvps(context.Background(), eventID)
	if err != nil {
		t.Fatalf("list rsvps: %v", err)
	}
	out := make(map[string]int, len(rsvps))
	for _, r := range rsvps {
		if r.WaitlistPosition == nil {
			out[r.AttendeeID] = 0
		} else {
			out[r.AttendeeID] = *r.WaitlistPosition
		}
	}
	return out
}

func assertPlacement(t *testing.T, got, want map[string]int) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("placement = %v, want %v", got, want)
	}
	for attendee, pos := range want {
		if p, ok := got[attendee]; !ok || p != pos {
			t.Fatalf("placement = %v, want %v", got, want)
		}
	}
}

func intPtr(v int) *int {
	return &v
}
