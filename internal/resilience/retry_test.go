package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quarry-io/quarry/internal/qerrors"
)

func testPolicy(maxAttempts int) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Multiplier:  2.0,
		Jitter:      false,
		RetryableKinds: map[qerrors.Kind]bool{
			qerrors.KindTransient: true,
		},
	}
}

func TestRetryer_ExhaustsAllAttempts(t *testing.T) {
	r := NewRetryer(testPolicy(4), zap.NewNop(), nil)

	calls := 0
	permanent := qerrors.New("hosting.get_org", qerrors.KindTransient, "connection refused")
	err := r.Do(context.Background(), "hosting.get_org", func(context.Context) error {
		calls++
		return permanent
	})

	require.Error(t, err)
	assert.Equal(t, 4, calls)
	assert.Contains(t, err.Error(), "retries exhausted after 4 attempts")
	assert.True(t, errors.Is(err, permanent))
}

func TestRetryer_NonRetryableFailsImmediately(t *testing.T) {
	r := NewRetryer(testPolicy(4), zap.NewNop(), nil)

	calls := 0
	rejected := qerrors.New("hosting.create_repo", qerrors.KindRejected, "status 422")
	err := r.Do(context.Background(), "hosting.create_repo", func(context.Context) error {
		calls++
		return rejected
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, qerrors.KindRejected, qerrors.KindOf(err))
	assert.NotContains(t, err.Error(), "retries exhausted")
}

func TestRetryer_SucceedsAfterTransientFailures(t *testing.T) {
	r := NewRetryer(testPolicy(4), zap.NewNop(), nil)

	calls := 0
	err := r.Do(context.Background(), "hosting.get_repo", func(context.Context) error {
		calls++
		if calls < 3 {
			return qerrors.New("hosting.get_repo", qerrors.KindTransient, "timeout")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryer_ContextCancelledBetweenAttempts(t *testing.T) {
	p := testPolicy(3)
	p.BaseDelay = time.Second
	p.MaxDelay = time.Second
	r := NewRetryer(p, zap.NewNop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := r.Do(ctx, "hosting.get_org", func(context.Context) error {
		calls++
		return qerrors.New("hosting.get_org", qerrors.KindTransient, "timeout")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestPolicy_DelayMonotonicUntilClamped(t *testing.T) {
	p := Policy{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   time.Second,
		Multiplier: 2.0,
	}

	var prev time.Duration
	for attempt := 2; attempt <= 10; attempt++ {
		d := p.delayFor(attempt)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.GreaterOrEqual(t, d, prev, "delay must not decrease at attempt %d", attempt)
		assert.LessOrEqual(t, d, p.MaxDelay)
		prev = d
	}

	// 100ms, 200ms, 400ms, 800ms, then clamped at 1s.
	assert.Equal(t, 100*time.Millisecond, p.delayFor(2))
	assert.Equal(t, 400*time.Millisecond, p.delayFor(4))
	assert.Equal(t, time.Second, p.delayFor(6))
	assert.Equal(t, time.Second, p.delayFor(9))
}

func TestPolicy_JitterStaysInRange(t *testing.T) {
	p := Policy{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}

	for i := 0; i < 200; i++ {
		d := p.delayFor(3) // 200ms before jitter
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.LessOrEqual(t, d, 200*time.Millisecond)
	}
}

func TestHTTPPolicy_RetriesTransientOnly(t *testing.T) {
	p := HTTPPolicy()

	assert.True(t, p.retryable(qerrors.New("op", qerrors.KindTransient, "timeout")))
	assert.False(t, p.retryable(qerrors.New("op", qerrors.KindRejected, "status 500")))
	assert.False(t, p.retryable(qerrors.New("op", qerrors.KindConflict, "tag exists")))
	assert.False(t, p.retryable(errors.New("unclassified")))
}
