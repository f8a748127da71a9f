package bigsi

import (
	"context"
	"time"
)

// Dispatch retry tuning. The aggregation gateway sheds load with 503s
// while its index segments refresh, so dispatch backs off longer than
// a typical API client would.
const (
	dispatchAttempts      = 4
	dispatchBaseBackoff   = 100 * time.Millisecond
	dispatchMaxBackoff    = 2 * time.Second
	dispatchBackoffGrowth = 2.0
)

type retryConfig struct {
	attempts int
	base     time.Duration
	max      time.Duration
	growth   float64
}

func dispatchRetryConfig() retryConfig {
	return retryConfig{
		attempts: dispatchAttempts,
		base:     dispatchBaseBackoff,
		max:      dispatchMaxBackoff,
		growth:   dispatchBackoffGrowth,
	}
}

// retryWithBackoff runs fn until it succeeds or the attempt budget is
// spent, sleeping an exponentially growing interval between failures.
// Context cancellation ends the loop immediately.
func retryWithBackoff[T any](ctx context.Context, cfg retryConfig, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	delay := cfg.base
	for attempt := 1; attempt <= cfg.attempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == cfg.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * cfg.growth)
		if delay > cfg.max {
			delay = cfg.max
		}
	}

	return zero, lastErr
}
