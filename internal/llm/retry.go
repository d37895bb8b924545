package llm

import (
	"context"
	"log/slog"
	"time"
)

// RetryPolicy bounds the retry loop around a generation call.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
}

// DefaultRetryPolicy retries up to 4 attempts with exponential backoff
// starting at one second.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 4, InitialBackoff: time.Second}

// GenerateWithRetry calls c.Generate, retrying rate-limit and transient
// network failures with exponential backoff. All other failures, including
// ErrInputTooLarge and ErrAuth, are returned to the caller immediately.
func GenerateWithRetry(ctx context.Context, c Client, req Request, policy RetryPolicy) (*Result, error) {
	if policy.MaxAttempts < 1 {
		policy = DefaultRetryPolicy
	}
	backoff := policy.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		res, err := c.Generate(ctx, req)
		if err == nil {
			return res, nil
		}
		if !Retryable(err) {
			return nil, err
		}
		lastErr = err

		if attempt == policy.MaxAttempts {
			break
		}
		slog.Warn(
			"Model call failed, will retry.",
			"attempt", attempt,
			"maxAttempts", policy.MaxAttempts,
			"backoff", backoff.String(),
			"error", err,
		)
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			slog.Error("Context cancelled during backoff. Aborting retries.", "error", ctx.Err())
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}
