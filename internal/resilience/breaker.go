package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/logger"
	"github.com/custodia-labs/ledgersync/internal/metrics"
)

const (
	// DefaultFailureThreshold is the number of consecutive failures that opens the circuit.
	DefaultFailureThreshold = 3

	// DefaultCoolDown is how long an open circuit rejects calls.
	DefaultCoolDown = 2 * time.Minute
)

// CircuitState represents the circuit breaker state.
// Half-open is not tracked: once the cool-down passes the circuit is closed
// and the next call goes through.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig defines circuit breaker behaviour.
type CircuitBreakerConfig struct {
	// Threshold is the consecutive failure count that opens the circuit.
	Threshold int
	// CoolDown is how long the circuit stays open.
	CoolDown time.Duration
	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// CircuitOpenError is returned when a call is rejected by an open circuit.
type CircuitOpenError struct {
	Identity  string
	OpenUntil time.Time
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("%s: %s unavailable until %s",
		domain.ErrCircuitOpen, e.Identity, e.OpenUntil.UTC().Format(time.RFC3339))
}

// Unwrap allows errors.Is(err, domain.ErrCircuitOpen).
func (e *CircuitOpenError) Unwrap() error {
	return domain.ErrCircuitOpen
}

// CircuitBreaker counts consecutive failures for one remote service identity.
// State lives in atomics; openUntil holds Unix nanoseconds, zero meaning closed.
type CircuitBreaker struct {
	identity  string
	threshold int32
	coolDown  time.Duration
	now       func() time.Time

	failures  atomic.Int32
	openUntil atomic.Int64
}

// NewCircuitBreaker creates a closed breaker for identity.
func NewCircuitBreaker(identity string, cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultFailureThreshold
	}
	if cfg.CoolDown <= 0 {
		cfg.CoolDown = DefaultCoolDown
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CircuitBreaker{
		identity:  identity,
		threshold: int32(cfg.Threshold),
		coolDown:  cfg.CoolDown,
		now:       cfg.Now,
	}
}

// Identity returns the remote service identity this breaker guards.
func (b *CircuitBreaker) Identity() string {
	return b.identity
}

// IsOpen reports whether calls should be rejected. An expired open window is
// closed here, resetting the failure count.
func (b *CircuitBreaker) IsOpen() bool {
	until := b.openUntil.Load()
	if until == 0 {
		return false
	}
	if b.now().UnixNano() < until {
		return true
	}
	if b.openUntil.CompareAndSwap(until, 0) {
		b.failures.Store(0)
		metrics.CircuitOpen.WithLabelValues(b.identity).Set(0)
		logger.Info("Circuit for %s closed after cool-down", b.identity)
	}
	return false
}

// RecordFailure counts a failed call and opens the circuit at the threshold.
func (b *CircuitBreaker) RecordFailure(err error) {
	n := b.failures.Add(1)
	if n < b.threshold {
		logger.Debug("Circuit %s failure %d/%d: %v", b.identity, n, b.threshold, err)
		return
	}
	until := b.now().Add(b.coolDown)
	if b.openUntil.CompareAndSwap(0, until.UnixNano()) {
		metrics.CircuitOpen.WithLabelValues(b.identity).Set(1)
		logger.Warn("Circuit for %s opened after %d failures (last: %v), retry after %s",
			b.identity, n, err, until.UTC().Format(time.RFC3339))
	}
}

// RecordSuccess resets the failure count while the circuit is closed.
func (b *CircuitBreaker) RecordSuccess() {
	if !b.IsOpen() {
		b.failures.Store(0)
	}
}

// State returns the current state, closing an expired open window first.
func (b *CircuitBreaker) State() CircuitState {
	if b.IsOpen() {
		return StateOpen
	}
	return StateClosed
}

// Failures returns the current consecutive failure count.
func (b *CircuitBreaker) Failures() int {
	return int(b.failures.Load())
}

// OpenUntil returns when an open circuit closes, or the zero time when closed.
func (b *CircuitBreaker) OpenUntil() time.Time {
	until := b.openUntil.Load()
	if until == 0 {
		return time.Time{}
	}
	return time.Unix(0, until)
}

// Execute runs fn through the breaker. An open circuit returns a
// *CircuitOpenError without calling fn. A positive timeout bounds fn through
// its context. Any error from fn, including a timeout, is recorded as a
// failure and returned; cancellation by the caller is returned unrecorded.
func Execute[T any](
	ctx context.Context,
	b *CircuitBreaker,
	timeout time.Duration,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	var zero T
	if b.IsOpen() {
		return zero, &CircuitOpenError{Identity: b.identity, OpenUntil: b.OpenUntil()}
	}

	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, err := fn(callCtx)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			return result, err
		}
		if callCtx.Err() != nil && errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("call timed out after %s: %w", timeout, err)
		}
		b.RecordFailure(err)
		return result, err
	}

	b.RecordSuccess()
	return result, nil
}
