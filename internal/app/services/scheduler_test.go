package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/yigit/eventsignup/internal/app/window"
)

// blockingReminders holds every tick until release is closed
type blockingReminders struct {
	started chan time.Time
	release chan struct{}
	calls   atomic.Int32
}

func (b *blockingReminders) RunTick(ctx context.Context, now time.Time) (TickResult, error) {
	b.calls.Add(1)
	b.started <- now
	select {
	case <-b.release:
	case <-ctx.Done():
		return TickResult{}, ctx.Err()
	}
	return TickResult{EventRemindersSent: 1}, nil
}

func TestSchedulerSkipsOverlappingTick(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	reminders := &blockingReminders{started: make(chan time.Time, 1), release: make(chan struct{})}
	s := NewScheduler(reminders, window.FixedClock{At: at}, time.Hour, zerolog.Nop())

	done := make(chan TickResult, 1)
	go func() {
		result, _ := s.Tick(context.Background())
		done <- result
	}()

	if got := <-reminders.started; !got.Equal(at) {
		t.Fatalf("tick ran at %v, want %v", got, at)
	}
	if _, ran := s.Tick(context.Background()); ran {
		t.Fatal("second tick ran while the first was in flight")
	}

	close(reminders.release)
	if result := <-done; result.EventRemindersSent != 1 {
		t.Fatalf("first tick result = %+v, want one reminder", result)
	}
	if _, ran := s.Tick(context.Background()); !ran {
		t.Fatal("tick after the first finished did not run")
	}
	<-reminders.started
	if got := reminders.calls.Load(); got != 2 {
		t.Fatalf("RunTick calls = %d, want 2", got)
	}
}

func TestSchedulerRunStopsOnCancel(t *testing.T) {
	reminders := &blockingReminders{started: make(chan time.Time, 1), release: make(chan struct{})}
	close(reminders.release)
	s := NewScheduler(reminders, window.FixedClock{At: time.Now()}, time.Hour, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(stopped)
	}()

	select {
	case <-reminders.started:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not tick immediately")
	}
	cancel()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewSchedulerDefaults(t *testing.T) {
	s := NewScheduler(&blockingReminders{}, nil, 0, zerolog.Nop())
	if s.interval != DefaultReminderInterval {
		t.Fatalf("interval = %v, want %v", s.interval, DefaultReminderInterval)
	}
	if _, ok := s.clock.(window.SystemClock); !ok {
		t.Fatalf("clock = %T, want window.SystemClock", s.clock)
	}
}
