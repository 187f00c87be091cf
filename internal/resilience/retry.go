// Package resilience provides retry-with-backoff and circuit-breaker guards
// for calls to external systems (hosting service, git, dvc, file downloads).
package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/quarry-io/quarry/internal/qerrors"
)

// Observer receives resilience events for monitoring. Attempt counts and
// breaker transitions are reported here and never leak into error payloads.
type Observer interface {
	RetryAttempt(operation string, attempt int)
	RetriesExhausted(operation string, attempts int)
	BreakerTransition(name, from, to string)
	BreakerRejection(name string)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) RetryAttempt(string, int)                 {}
func (NopObserver) RetriesExhausted(string, int)             {}
func (NopObserver) BreakerTransition(string, string, string) {}
func (NopObserver) BreakerRejection(string)                  {}

// Policy configures retry behavior. A Policy is immutable once constructed
// and safe to share across concurrent calls.
type Policy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	Jitter         bool
	RetryableKinds map[qerrors.Kind]bool
}

// HTTPPolicy returns the retry profile for hosting-service calls: transient
// network failures are retried, application rejections are not.
func HTTPPolicy() Policy {
	return Policy{
		MaxAttempts: 4,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
		Jitter:      true,
		RetryableKinds: map[qerrors.Kind]bool{
			qerrors.KindTransient: true,
		},
	}
}

// GitPolicy returns the retry profile for git and dvc pushes, which can fail
// for many transient reasons; everything except conflicts and security
// rejections is retried, with a longer base delay.
func GitPolicy() Policy {
	return Policy{
		MaxAttempts: 4,
		BaseDelay:   2 * time.Second,
		MaxDelay:    60 * time.Second,
		Multiplier:  2.0,
		Jitter:      true,
		RetryableKinds: map[qerrors.Kind]bool{
			qerrors.KindTransient: true,
			qerrors.KindInternal:  true,
		},
	}
}

// retryable reports whether a failure of this kind should be retried.
func (p Policy) retryable(err error) bool {
	return p.RetryableKinds[qerrors.KindOf(err)]
}

// delayFor computes the backoff before attempt k (1-indexed, k >= 2):
// min(base * multiplier^(k-2), max), scaled by a jitter factor drawn
// uniformly from [0.5, 1.0] when jitter is enabled.
func (p Policy) delayFor(attempt int) time.Duration {
	d := time.Duration(float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-2)))
	if d > p.MaxDelay || d < 0 {
		d = p.MaxDelay
	}
	if p.Jitter {
		d = time.Duration(float64(d) * (0.5 + 0.5*rand.Float64()))
	}
	return d
}

// Retryer executes operations under a Policy. Retryers hold no mutable state
// and are safe for concurrent use; each invocation blocks only its caller.
type Retryer struct {
	policy   Policy
	logger   *zap.Logger
	observer Observer
}

// NewRetryer creates a retryer. A nil observer disables event reporting.
func NewRetryer(policy Policy, logger *zap.Logger, observer Observer) *Retryer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if observer == nil {
		observer = NopObserver{}
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Retryer{policy: policy, logger: logger, observer: observer}
}

// Do invokes fn up to MaxAttempts times. Failures whose kind is not in the
// policy's retryable set propagate immediately. After exhausting all attempts
// the last failure is wrapped with the attempt count.
func (r *Retryer) Do(ctx context.Context, operation string, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := r.policy.delayFor(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		r.observer.RetryAttempt(operation, attempt)

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !r.policy.retryable(err) {
			return err
		}

		r.logger.Warn("operation failed, will retry",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.policy.MaxAttempts),
			zap.Error(err),
		)
	}

	r.observer.RetriesExhausted(operation, r.policy.MaxAttempts)
	r.logger.Error("retries exhausted",
		zap.String("operation", operation),
		zap.Int("attempts", r.policy.MaxAttempts),
		zap.Error(lastErr),
	)
	return qerrors.Wrapf(operation, qerrors.KindOf(lastErr), lastErr,
		"retries exhausted after %d attempts", r.policy.MaxAttempts)
}
