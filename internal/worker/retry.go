package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dreamware/primeturn/internal/protocol"
)

// retryPolicy bounds how often a failing call is repeated. Attempts is
// 1 + retry count; Delay is the fixed pause between attempts.
type retryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// withRetry calls fn until it succeeds, the attempts are spent, or the worker
// stops. Only transport failures reach here: protocol rejections come back as
// successful responses. Malformed requests are not repeated.
func withRetry[T any](ctx context.Context, w *Worker, what string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	attempts := w.retry.Attempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if errors.Is(err, protocol.ErrInvalidRequest) {
			return zero, err
		}
		if attempt == attempts {
			break
		}

		w.log.WithFields(logrus.Fields{
			"attempt": attempt,
			"op":      what,
		}).WithError(err).Errorf("Error occurred during %s. Retry count: %d", what, attempt)

		if !w.pause(ctx, w.retry.Delay) {
			if ctx.Err() != nil {
				return zero, ctx.Err()
			}
			return zero, ErrStopped
		}
	}
	return zero, fmt.Errorf("%s: %w after %d attempts: %w", what, ErrRetriesExhausted, attempts, lastErr)
}
