package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Policy inspects the value produced by attempt (1-based) and reports
// whether another attempt should follow and after what delay.
type Policy[T any] func(attempt int, v T) (delay time.Duration, retry bool)

// Retry runs fn up to maxAttempts times. Attempt results are plain values:
// the policy, not a returned error, decides whether to go again. The last
// value is always returned; the error is non-nil only when ctx ends between
// attempts.
func Retry[T any](ctx context.Context, name string, maxAttempts int, fn func(ctx context.Context, attempt int) T, policy Policy[T]) (T, error) {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	logger := slog.Default().With("component", "retry", "operation", name)
	var last T
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		last = fn(ctx, attempt)
		if attempt == maxAttempts {
			break
		}
		delay, again := policy(attempt, last)
		if !again {
			return last, nil
		}
		if ctx.Err() != nil {
			return last, fmt.Errorf("retry aborted: %w", ctx.Err())
		}
		logger.Debug("attempt did not succeed, retrying", "attempt", attempt, "max_attempts", maxAttempts, "next_delay", delay)
		if err := Sleep(ctx, delay); err != nil {
			return last, fmt.Errorf("retry aborted during backoff: %w", err)
		}
	}
	return last, nil
}

// Exponential returns unit·base^attempt.
func Exponential(unit time.Duration, base float64, attempt int) time.Duration {
	return time.Duration(float64(unit) * math.Pow(base, float64(attempt)))
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
