package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/yigit/eventsignup/internal/pkg/apperrors"
)

// eventLocker serializes work on one event
type eventLocker interface {
	WithEventLock(ctx context.Context, eventID int64, fn LockedFunc) error
}

// retryEventLock runs fn under the event lock and retries it when it loses a
// capacity race. ErrCapacityRaceLost never leaves this function.
func retryEventLock(ctx context.Context, locker eventLocker, maxAttempts int, logger zerolog.Logger, eventID int64, fn LockedFunc) error {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = locker.WithEventLock(ctx, eventID, fn)
		if !errors.Is(err, apperrors.ErrCapacityRaceLost) {
			return err
		}
		logger.Warn().
			Err(err).
			Int64("eventId", eventID).
			Int("attempt", attempt).
			Msg("Capacity race lost, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 10 * time.Millisecond):
		}
	}
	return fmt.Errorf("event %d: change not applied after %d attempts: %s", eventID, maxAttempts, err.Error())
}
