package mysql

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	apperrors "stockwise/internal/errors"
)

// Backoff before attempt n+1 is backoffBase*n plus up to 20% jitter.
var backoffBase = 100 * time.Millisecond

// Retry runs fn up to maxAttempts times while it fails with a retryable
// lock error. Exhausting the attempts yields a DeadlockError; any other
// error is returned as is.
func Retry(ctx context.Context, maxAttempts int, logger *zap.Logger, fn func(ctx context.Context) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		if attempt == maxAttempts {
			break
		}

		wait := backoffBase * time.Duration(attempt)
		wait += time.Duration(rand.Int63n(int64(wait)/5 + 1))
		logger.Warn("lock contention, retrying",
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", maxAttempts),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	return apperrors.NewDeadlockError("max retries exceeded")
}
