package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quarry-io/quarry/internal/qerrors"
)

func testBreaker(threshold int, recovery time.Duration) (*CircuitBreaker, *time.Time) {
	cb := NewCircuitBreaker("hosting", BreakerConfig{
		FailureThreshold: threshold,
		RecoveryTimeout:  recovery,
	}, zap.NewNop(), nil)

	now := time.Now()
	cb.now = func() time.Time { return now }
	return cb, &now
}

func failing(context.Context) error {
	return qerrors.New("hosting.get_org", qerrors.KindTransient, "connection refused")
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := testBreaker(3, time.Minute)

	for i := 0; i < 2; i++ {
		_ = cb.Execute(context.Background(), failing)
		assert.Equal(t, StateClosed, cb.State())
	}
	_ = cb.Execute(context.Background(), failing)
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_FailsFastWhileOpen(t *testing.T) {
	cb, _ := testBreaker(1, time.Minute)
	_ = cb.Execute(context.Background(), failing)
	require.Equal(t, StateOpen, cb.State())

	calls := 0
	err := cb.Execute(context.Background(), func(context.Context) error {
		calls++
		return nil
	})

	require.Error(t, err)
	assert.Equal(t, 0, calls, "wrapped operation must not run while open")
	assert.Contains(t, err.Error(), "circuit breaker is open")
}

func TestCircuitBreaker_RecoversThroughHalfOpen(t *testing.T) {
	cb, now := testBreaker(1, time.Minute)
	_ = cb.Execute(context.Background(), failing)
	require.Equal(t, StateOpen, cb.State())

	*now = now.Add(61 * time.Second)

	calls := 0
	err := cb.Execute(context.Background(), func(context.Context) error {
		calls++
		assert.Equal(t, StateHalfOpen, cb.State())
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls, "trial call must be invoked after recovery timeout")
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.failureCount)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, now := testBreaker(1, time.Minute)
	_ = cb.Execute(context.Background(), failing)
	require.Equal(t, StateOpen, cb.State())

	*now = now.Add(2 * time.Minute)
	_ = cb.Execute(context.Background(), failing)
	assert.Equal(t, StateOpen, cb.State())

	// Still within the refreshed recovery window: fail fast again.
	calls := 0
	err := cb.Execute(context.Background(), func(context.Context) error {
		calls++
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, 0, calls)
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb, _ := testBreaker(3, time.Minute)

	_ = cb.Execute(context.Background(), failing)
	_ = cb.Execute(context.Background(), failing)
	require.NoError(t, cb.Execute(context.Background(), func(context.Context) error { return nil }))

	// Two more failures must not trip the threshold of three.
	_ = cb.Execute(context.Background(), failing)
	_ = cb.Execute(context.Background(), failing)
	assert.Equal(t, StateClosed, cb.State())
}
