package checkin

import (
	"context"
	"math/rand"
	"time"
)

// ShouldRetry reports whether another attempt fits in the budget.
// attemptsUsed counts retries already spent, not the initial attempt.
func ShouldRetry(attemptsUsed, attemptsMax int) bool {
	return attemptsUsed < attemptsMax
}

// jitter returns a random pause in [min, max]. The pause is applied before
// captcha submission as a courtesy delay; it is not part of the retry
// budget.
func jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min+1)))
}

// sleep waits for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
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
