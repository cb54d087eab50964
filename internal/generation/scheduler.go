package generation

import (
	"context"
	"time"
)

// Scheduler suspends a workflow run between status checks. Implementations
// must return early with the context error when ctx is cancelled.
type Scheduler interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerScheduler waits on a real timer.
type TimerScheduler struct{}

func (TimerScheduler) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
