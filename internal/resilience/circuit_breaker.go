package resilience

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quarry-io/quarry/internal/qerrors"
)

// State is the circuit breaker state.
type State int

const (
	// StateClosed passes calls through.
	StateClosed State = iota
	// StateOpen fails calls fast without invoking the wrapped operation.
	StateOpen
	// StateHalfOpen admits trial calls after the recovery timeout.
	StateHalfOpen
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
}

// DefaultBreakerConfig returns the default breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
	}
}

// CircuitBreaker guards one logical class of external calls (one per remote
// service endpoint type, never shared between unrelated operations).
//
// The half-open window is gated by time, not by a single-flight token:
// concurrent callers observing half_open during a trial are all admitted, and
// the first observed success closes the breaker. This relaxation keeps the
// lock out of the wrapped call entirely.
type CircuitBreaker struct {
	name     string
	cfg      BreakerConfig
	logger   *zap.Logger
	observer Observer

	mu              sync.Mutex
	state           State
	failureCount    int
	lastFailureTime time.Time

	// now is replaceable for tests.
	now func() time.Time
}

// NewCircuitBreaker creates a breaker in the closed state.
func NewCircuitBreaker(name string, cfg BreakerConfig, logger *zap.Logger, observer Observer) *CircuitBreaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if observer == nil {
		observer = NopObserver{}
	}
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = 1
	}
	return &CircuitBreaker{
		name:     name,
		cfg:      cfg,
		logger:   logger,
		observer: observer,
		state:    StateClosed,
		now:      time.Now,
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Execute runs fn under breaker protection. When the breaker is open and the
// recovery timeout has not elapsed, fn is not invoked and a rejected error is
// returned immediately.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.allow(); err != nil {
		return err
	}

	err := fn(ctx)
	cb.record(err)
	return err
}

// allow decides whether a call may proceed, transitioning open -> half_open
// once the recovery timeout has elapsed.
func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateOpen {
		return nil
	}

	if cb.now().Sub(cb.lastFailureTime) > cb.cfg.RecoveryTimeout {
		cb.transition(StateHalfOpen)
		return nil
	}

	cb.observer.BreakerRejection(cb.name)
	return qerrors.New(cb.name, qerrors.KindTransient, "circuit breaker is open")
}

// record applies the call outcome to the state machine.
func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		if cb.state != StateClosed {
			cb.transition(StateClosed)
		}
		cb.failureCount = 0
		return
	}

	cb.failureCount++
	cb.lastFailureTime = cb.now()

	if cb.state == StateHalfOpen || cb.failureCount >= cb.cfg.FailureThreshold {
		if cb.state != StateOpen {
			cb.transition(StateOpen)
		}
	}
}

// transition must be called with the lock held.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to
	cb.observer.BreakerTransition(cb.name, from.String(), to.String())
	cb.logger.Info("circuit breaker state change",
		zap.String("breaker", cb.name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.Int("failure_count", cb.failureCount),
	)
}
