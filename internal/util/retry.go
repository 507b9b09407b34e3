package util

import (
	"context"
	"fmt"
	"time"
)

// Retry runs fn until it succeeds, giving up after maxAttempts. The
// pause between attempts starts at baseDelay and doubles each round;
// cancelling the context cuts the pause short. The final error is
// wrapped with the attempt count.
func Retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if attempt == maxAttempts {
			return fmt.Errorf("after %d attempts: %w", attempt, lastErr)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(baseDelay << (attempt - 1)):
		}
	}
}
