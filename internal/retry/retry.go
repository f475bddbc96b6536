package retry

import (
	"context"
	"time"
)

// Policy controls how often and how fast a failed call is repeated.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	// Retryable reports whether err is worth another attempt. Nil retries every error.
	Retryable func(error) bool
}

// Do runs fn until it succeeds, the error is not retryable, or retries are
// exhausted. The delay doubles after each failed attempt.
func Do(ctx context.Context, p Policy, fn func(context.Context) error) error {
	maxRetries := p.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	delay := p.BaseDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries || (p.Retryable != nil && !p.Retryable(err)) {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}
