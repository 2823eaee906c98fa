package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"airoi.app/assessor/common/llm"
	"airoi.app/assessor/internal/extract"
)

// withRetry repeats fn while the error is a retryable transport failure, up
// to MaxAttempts calls, backing off BaseBackoff * 2^attempt between calls.
func withRetry[T any](ctx context.Context, o *Orchestrator, operation string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < o.cfg.MaxAttempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if attempt == o.cfg.MaxAttempts-1 || !llm.IsRetryable(ctx, err) {
			break
		}

		delay := o.cfg.BaseBackoff * time.Duration(1<<attempt)
		slog.WarnContext(ctx, "agent call failed, retrying",
			"operation", operation,
			"attempt", attempt+1,
			"max_attempts", o.cfg.MaxAttempts,
			"backoff", delay,
			"error", err)

		if err := o.sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	return zero, lastErr
}

// withExtractionRetry gives a call whose reply failed extraction a further
// chance, up to ExtractionAttempts in total. Each attempt has its own
// transport retry budget.
func withExtractionRetry[T any](ctx context.Context, o *Orchestrator, operation string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < o.cfg.ExtractionAttempts; attempt++ {
		v, err := withRetry(ctx, o, operation, fn)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if !errors.Is(err, extract.ErrExtraction) || ctx.Err() != nil {
			break
		}
		slog.WarnContext(ctx, "structured output not extractable, asking again",
			"operation", operation,
			"attempt", attempt+1,
			"max_attempts", o.cfg.ExtractionAttempts,
			"error", err)
	}

	return zero, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
