package poll

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrTimeout = errors.New("poll: attempts exhausted")

// Func is one attempt. done reports a terminal value; a non-nil error aborts polling.
type Func[T any] func(ctx context.Context) (value T, done bool, err error)

// SleepFunc waits d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

type Config struct {
	Interval    time.Duration
	MaxAttempts int
	Sleep       SleepFunc
}

// Until calls fn up to MaxAttempts times, waiting Interval between attempts
// (the first attempt runs immediately). It returns the last value seen together
// with ErrTimeout when no attempt was terminal.
func Until[T any](ctx context.Context, cfg Config, fn Func[T]) (T, int, error) {
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var last T
	if cfg.MaxAttempts <= 0 {
		return last, 0, ErrTimeout
	}

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, cfg.Interval); err != nil {
				return last, attempt - 1, err
			}
		}

		value, done, err := fn(ctx)
		last = value
		if err != nil {
			return last, attempt, fmt.Errorf("poll attempt %d: %w", attempt, err)
		}
		if done {
			return value, attempt, nil
		}
	}

	return last, cfg.MaxAttempts, ErrTimeout
}

func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
