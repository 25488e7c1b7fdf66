// Package retry provides an exponential-backoff wrapper for idempotent
// external calls. It is a pure retry layer: on exhausting retries or hitting
// a non-retryable error, the original failure is returned unchanged.
package retry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/agentflux/flowcore/types"
)

// Policy configures retry behavior.
type Policy struct {
	// MaxRetries is the maximum number of retry attempts after the initial
	// call (0 means no retries).
	MaxRetries int
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration
	// MaxDelay caps the backoff delay.
	MaxDelay time.Duration
	// Retryable classifies whether a failure is worth retrying. Defaults to
	// the shared transient-error classifier types.IsRetryable.
	Retryable func(error) bool
	// OnRetry is invoked before each retry attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultPolicy returns the default retry policy for external API calls.
func DefaultPolicy() *Policy {
	return &Policy{
		MaxRetries: 3,
		BaseDelay:  2 * time.Second,
		MaxDelay:   30 * time.Second,
		Retryable:  types.IsRetryable,
	}
}

// Backoff returns the delay before retry number attempt (zero-based):
// min(base * 2^attempt, max). No jitter is applied; callers needing
// herd protection should add it at the connector level.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// Retryer executes functions with retry on transient failure.
type Retryer struct {
	policy *Policy
	logger *zap.Logger
}

// New creates a Retryer. A nil policy selects DefaultPolicy; a nil logger
// selects a no-op logger.
func New(policy *Policy, logger *zap.Logger) *Retryer {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = 2 * time.Second
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = 30 * time.Second
	}
	if policy.Retryable == nil {
		policy.Retryable = types.IsRetryable
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retryer{
		policy: policy,
		logger: logger.With(zap.String("component", "retry")),
	}
}

// Do executes fn, retrying transient failures per the policy.
func (r *Retryer) Do(ctx context.Context, fn func() error) error {
	_, err := r.DoWithResult(ctx, func() (any, error) {
		return nil, fn()
	})
	return err
}

// DoWithResult executes fn and returns its result, retrying transient
// failures per the policy. The first failure that is classified as not
// retryable, and the last failure after retries are exhausted, are returned
// exactly as fn produced them.
func (r *Retryer) DoWithResult(ctx context.Context, fn func() (any, error)) (any, error) {
	var lastErr error

	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := Backoff(attempt-1, r.policy.BaseDelay, r.policy.MaxDelay)

			r.logger.Debug("retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", r.policy.MaxRetries),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			if r.policy.OnRetry != nil {
				r.policy.OnRetry(attempt, lastErr, delay)
			}

			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("retry canceled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		result, err := fn()
		if err == nil {
			if attempt > 0 {
				r.logger.Info("retry succeeded", zap.Int("attempt", attempt))
			}
			return result, nil
		}
		lastErr = err

		if !r.policy.Retryable(err) {
			r.logger.Debug("error not retryable", zap.Error(err))
			return nil, err
		}
	}

	r.logger.Warn("retries exhausted",
		zap.Int("attempts", r.policy.MaxRetries+1),
		zap.Error(lastErr),
	)
	return nil, lastErr
}
