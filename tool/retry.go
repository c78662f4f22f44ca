package tool

import (
	"context"
	"errors"
	"net"
	"time"
)

// RetryPolicy defines bounded retry with linear backoff.
type RetryPolicy struct {
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts,omitempty"`
	BackoffMS   int `yaml:"backoff_ms" json:"backoff_ms,omitempty"`
}

// RetryMeta labels retry observations.
type RetryMeta struct {
	ToolName  string
	Component string
}

// Retry calls fn until it succeeds, returns a non-retryable error, or the
// policy runs out of attempts. It returns the number of attempts made.
func Retry[T any](ctx context.Context, policy RetryPolicy, meta RetryMeta, fn func(ctx context.Context, attempt int) (T, error)) (T, int, error) {
	normalized := normalizeRetryPolicy(policy)
	var (
		zero    T
		lastErr error
		value   T
	)

	for attempt := 1; attempt <= normalized.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, attempt, err
		}

		value, lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return value, attempt, nil
		}
		if attempt == normalized.MaxAttempts || !IsRetryable(lastErr) {
			return zero, attempt, lastErr
		}
		emitRetryObservation(RetryObservation{
			ToolName:  meta.ToolName,
			Component: meta.Component,
			Attempt:   attempt,
			ErrorKind: KindOf(lastErr, KindToolExecution),
		})

		wait := retryBackoffDuration(normalized, attempt)
		if wait <= 0 {
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, attempt, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, normalized.MaxAttempts, lastErr
}

func normalizeRetryPolicy(policy RetryPolicy) RetryPolicy {
	out := policy
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = 1
	}
	if out.BackoffMS < 0 {
		out.BackoffMS = 0
	}
	return out
}

func retryBackoffDuration(policy RetryPolicy, attempt int) time.Duration {
	if policy.BackoffMS <= 0 || attempt <= 0 {
		return 0
	}
	return time.Duration(policy.BackoffMS*attempt) * time.Millisecond
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if toolErr, ok := AsToolError(err); ok {
		return toolErr.Retryable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
