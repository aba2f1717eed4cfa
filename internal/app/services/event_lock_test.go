package services_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/yigit/eventsignup/internal/app/models"
	"github.com/yigit/eventsignup/internal/app/services"
	"github.com/yigit/eventsignup/internal/app/window"
	"github.com/yigit/eventsignup/internal/pkg/apperrors"
)

// contendedStore loses the event lock race a fixed number of times before
// letting the call through to the real store
type contendedStore struct {
	services.Store

	mu       sync.Mutex
	failures int
	calls    int
}

func (s *contendedStore) WithEventLock(ctx context.Context, eventID int64, fn services.LockedFunc) error {
	s.mu.Lock()
	s.calls++
	fail := s.failures > 0
	if fail {
		s.failures--
	}
	s.mu.Unlock()

	if fail {
		return fmt.Errorf("%w: serialization failure", apperrors.ErrCapacityRaceLost)
	}
	return s.Store.WithEventLock(ctx, eventID, fn)
}

func (s *contendedStore) failNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = n
	s.calls = 0
}

func (s *contendedStore) lockCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestLostCapacityRaceIsRetried(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	store := &contendedStore{Store: f.store}
	clock := window.FixedClock{At: testNow}
	events := services.NewEventService(store, f.notifier, []string{publisherEmail}, clock, services.DefaultMaxAttempts, zerolog.Nop())
	rsvps := services.NewRsvpService(store, clock, services.DefaultMaxAttempts, zerolog.Nop())

	limit := 1
	event, err := events.SubmitEvent(ctx, services.EventDraft{
		Title:            "Garden day",
		TimeZone:         "UTC",
		StudentRsvpLimit: &limit,
		Sessions:         []services.SessionDraft{sessionAt("Main", testNow.Add(96*time.Hour), false)},
	}, models.Trusted)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	store.failNext(1)
	approved, err := events.ApproveEvent(ctx, event.ID)
	if err != nil {
		t.Fatalf("approve after a lost race: %v", err)
	}
	if approved.CurrentState != models.StatePublished || store.lockCalls() != 2 {
		t.Fatalf("approve = %s after %d lock calls, want published after 2", approved.CurrentState, store.lockCalls())
	}

	for _, id := range []string{"s1", "s2"} {
		store.failNext(1)
		if _, err := rsvps.Signup(ctx, services.SignupInput{EventID: event.ID, AttendeeID: id, Role: models.RoleStudent}); err != nil {
			t.Fatalf("signup %s after a lost race: %v", id, err)
		}
	}
	assertPlacement(t, f.placement(t, event.ID), map[string]int{"s1": 0, "s2": 1})

	store.failNext(1)
	if _, err := events.EditEvent(ctx, event.ID, services.EventChanges{StudentRsvpLimit: intPtr(2)}, models.Trusted); err != nil {
		t.Fatalf("raise limit after a lost race: %v", err)
	}
	assertPlacement(t, f.placement(t, event.ID), map[string]int{"s1": 0, "s2": 0})
}

func TestLostCapacityRaceNeverSurfaces(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.publishedEvent(t, nil)
	store := &contendedStore{Store: f.store}
	events := services.NewEventService(store, f.notifier, nil, window.FixedClock{At: testNow}, 2, zerolog.Nop())

	store.failNext(5)
	_, err := events.EditEvent(ctx, event.ID, services.EventChanges{StudentRsvpLimit: intPtr(4)}, models.Trusted)
	if err == nil {
		t.Fatal("edit succeeded although every attempt lost the race")
	}
	if errors.Is(err, apperrors.ErrCapacityRaceLost) {
		t.Fatalf("edit error = %v, must not wrap %v", err, apperrors.ErrCapacityRaceLost)
	}
	if got := store.lockCalls(); got != 2 {
		t.Fatalf("lock calls = %d, want 2", got)
	}
}
