package app

import (
	"context"
	"errors"
	"time"

	"github.com/okian/sailtrack/pkg/logger"
)

// Schedule runs the pipeline immediately and then every interval until ctx
// ends. Ticks that find a run in progress are skipped. clock supplies now.
func (s *Service) Schedule(ctx context.Context, interval time.Duration, clock func() time.Time) {
	tick := func() {
		_, err := s.TryRun(ctx, clock())
		switch {
		case errors.Is(err, ErrRunInProgress):
			s.logger.Debug(ctx, "scheduled run skipped, previous run still active")
		case err != nil && ctx.Err() == nil:
			s.logger.Warn(ctx, "scheduled run failed", logger.Error(err))
		}
	}

	tick()
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			tick()
		}
	}
}

// Trigger starts a run in the background and returns at once. It fails with
// ErrRunInProgress when a run already holds the lock. The run outlives ctx's
// cancellation but keeps its values.
func (s *Service) Trigger(ctx context.Context, now time.Time) error {
	if !s.runMu.TryLock() {
		return ErrRunInProgress
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		defer s.runMu.Unlock()
		_, _ = s.run(ctx, now)
	}()
	return nil
}
