package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/yigit/eventsignup/internal/app/window"
)

// DefaultReminderInterval is how often the scheduler runs a reminder tick
const DefaultReminderInterval = time.Hour

// Scheduler runs reminder ticks periodically, one at a time
type Scheduler struct {
	reminders ReminderService
	clock     window.Clock
	interval  time.Duration
	logger    zerolog.Logger

	running sync.Mutex
}

// NewScheduler creates a new Scheduler
func NewScheduler(reminders ReminderService, clock window.Clock, interval time.Duration, logger zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultReminderInterval
	}
	if clock == nil {
		clock = window.SystemClock{}
	}
	return &Scheduler{
		reminders: reminders,
		clock:     clock,
		interval:  interval,
		logger:    logger,
	}
}

// Run ticks immediately and then on every interval until ctx is cancelled
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Msg("Reminder scheduler started")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Reminder scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one reminder pass. It returns false without running when the
// previous pass is still in flight.
func (s *Scheduler) Tick(ctx context.Context) (TickResult, bool) {
	if !s.running.TryLock() {
		s.logger.Warn().Msg("Previous reminder tick still running, skipping")
		return TickResult{}, false
	}
	defer s.running.Unlock()

	result, err := s.reminders.RunTick(ctx, s.clock.Now())
	if err != nil {
		s.logger.Error().Err(err).Msg("Reminder tick failed")
	}
	return result, true
}
