package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/metrics"
)

const (
	// DefaultCapacity is the bucket size. The remote service allows more;
	// this keeps a margin below its ceiling.
	DefaultCapacity = 10

	// DefaultRefillInterval is the interval over which a full bucket refills.
	DefaultRefillInterval = time.Second

	// DefaultQueueLimit is the maximum number of callers waiting for a permit.
	DefaultQueueLimit = 100
)

// RateLimitConfig holds token bucket configuration.
type RateLimitConfig struct {
	// Capacity is the maximum burst size.
	Capacity int
	// Interval is the time over which Capacity tokens are replenished.
	Interval time.Duration
	// QueueLimit bounds the number of waiting callers. Zero uses
	// DefaultQueueLimit; a negative value disables waiting.
	QueueLimit int
}

// Permit is proof that a call was admitted. It is single-use and needs no release.
type Permit struct {
	// Waited is how long the caller queued before admission.
	Waited time.Duration
}

// RateLimitError is returned when a permit cannot be granted.
type RateLimitError struct {
	// Reason is "queue_full" or "timeout".
	Reason string
	// Wait is the delay the caller would have needed, when known.
	Wait time.Duration
}

func (e *RateLimitError) Error() string {
	if e.Wait > 0 {
		return fmt.Sprintf("%s: %s (needed %s)", domain.ErrRateLimitExceeded, e.Reason, e.Wait)
	}
	return fmt.Sprintf("%s: %s", domain.ErrRateLimitExceeded, e.Reason)
}

// Unwrap allows errors.Is(err, domain.ErrRateLimitExceeded).
func (e *RateLimitError) Unwrap() error {
	return domain.ErrRateLimitExceeded
}

// RateLimiter is a token bucket admission gate with a bounded wait queue.
// Waiters are served in reservation order, which is oldest-first.
type RateLimiter struct {
	bucket     *rate.Limiter
	queueLimit int64
	queued     atomic.Int64
}

// NewRateLimiter creates a limiter from cfg, filling zero fields with defaults.
// A negative QueueLimit rejects every caller that would have to wait.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultRefillInterval
	}
	switch {
	case cfg.QueueLimit == 0:
		cfg.QueueLimit = DefaultQueueLimit
	case cfg.QueueLimit < 0:
		cfg.QueueLimit = 0
	}

	// Capacity tokens per Interval, replenished continuously.
	every := cfg.Interval / time.Duration(cfg.Capacity)
	return &RateLimiter{
		bucket:     rate.NewLimiter(rate.Every(every), cfg.Capacity),
		queueLimit: int64(cfg.QueueLimit),
	}
}

// Acquire blocks until a permit is available. A positive timeout bounds the
// wait; so does any deadline on ctx. Returns a *RateLimitError when the queue
// is full or the wait would exceed the deadline, and ctx.Err() if the caller
// cancels while queued.
func (r *RateLimiter) Acquire(ctx context.Context, timeout time.Duration) (Permit, error) {
	if err := ctx.Err(); err != nil {
		return Permit{}, err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	now := time.Now()
	reservation := r.bucket.ReserveN(now, 1)
	if !reservation.OK() {
		return Permit{}, r.reject("queue_full", 0)
	}

	delay := reservation.DelayFrom(now)
	if delay == 0 {
		return Permit{}, nil
	}

	if n := r.queued.Add(1); n > r.queueLimit {
		r.queued.Add(-1)
		reservation.CancelAt(now)
		return Permit{}, r.reject("queue_full", delay)
	}
	defer r.queued.Add(-1)

	if deadline, ok := ctx.Deadline(); ok && now.Add(delay).After(deadline) {
		reservation.CancelAt(now)
		return Permit{}, r.reject("timeout", delay)
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		metrics.RateLimitWaitSeconds.Observe(delay.Seconds())
		return Permit{Waited: delay}, nil
	case <-ctx.Done():
		reservation.Cancel()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Permit{}, r.reject("timeout", delay)
		}
		return Permit{}, ctx.Err()
	}
}

func (r *RateLimiter) reject(reason string, wait time.Duration) error {
	metrics.RateLimitRejected.WithLabelValues(reason).Inc()
	return &RateLimitError{Reason: reason, Wait: wait}
}
