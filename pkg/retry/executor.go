// Package retry provides retry executor implementation
package retry

import (
	"context"
	"sync"
	"time"

	"github.com/jzx17/httpipe/pkg/types"
)

// RetryExecutor drives the bounded attempt loop for one descriptor.
// It is safe for concurrent use; each call keeps its own attempt counter.
type RetryExecutor struct {
	name         string
	policy       Policy
	eventHandler EventHandler
	stats        RetryStats
	clock        types.Clock
}

// AttemptFunc performs one transport attempt. attempt is zero-based. A returned
// error means no response arrived; otherwise status is the response status.
type AttemptFunc[T any] func(ctx context.Context, attempt int) (value T, status int, err error)

// RetryStats contains retry statistics
type RetryStats struct {
	TotalAttempts   int64         // total attempt count
	TotalRetries    int64         // total retry count
	TotalSuccesses  int64         // total success count
	TotalFailures   int64         // total failure count
	AverageAttempts float64       // average attempt count
	LastRetryTime   time.Time     // last retry time
	TotalRetryDelay time.Duration // total retry delay time
	mu              sync.RWMutex
}

// Event describes one step of the attempt loop
type Event struct {
	// Name identifies the descriptor
	Name string

	// Attempt is the one-based attempt the event refers to
	Attempt int

	// Delay is the wait scheduled before the next attempt
	Delay time.Duration

	// Duration is the time spent since the first attempt started
	Duration time.Duration

	// Outcome is the result of the attempt
	Outcome Outcome
}

// EventHandler handles retry events
type EventHandler interface {
	// OnRetryAttempt fires when another attempt has been scheduled
	OnRetryAttempt(ctx context.Context, ev Event)
	// OnRetrySuccess fires when an attempt after the first produced a final response
	OnRetrySuccess(ctx context.Context, ev Event)
	// OnRetryFailure fires when a retryable outcome was not eligible for another attempt
	OnRetryFailure(ctx context.Context, ev Event)
	// OnMaxAttemptsReached fires when the policy ran out of attempts
	OnMaxAttemptsReached(ctx context.Context, ev Event)
}

// NewRetryExecutor creates a retry executor
func NewRetryExecutor(policy Policy, opts ...ExecutorOption) *RetryExecutor {
	executor := &RetryExecutor{
		policy: policy,
		clock:  types.NewRealClock(),
	}

	for _, opt := range opts {
		opt(executor)
	}

	return executor
}

// Policy returns the executor's policy
func (r *RetryExecutor) Policy() Policy {
	return r.policy
}

// Execute runs fn until it yields a final outcome or the policy is exhausted.
//
// A non-retryable status, or a retryable status that may not be retried, is a
// final outcome and returned with a nil error; interpreting it is the caller's
// job. Transport failures that cannot be retried are wrapped in
// *types.TransportError. A done call context is returned as ctx.Err(), and a
// non-replayable body error is returned as it is.
func Execute[T any](r *RetryExecutor, ctx context.Context, idempotent bool, fn AttemptFunc[T]) (types.Result[T], error) {
	start := r.clock.Now()

	for attempt := 0; ; attempt++ {
		// check if context is cancelled
		if err := ctx.Err(); err != nil {
			return types.Result[T]{Attempts: attempt, Duration: r.clock.Since(start)}, err
		}

		r.updateStats(func(stats *RetryStats) {
			stats.TotalAttempts++
		})

		value, status, err := fn(ctx, attempt)
		outcome := Outcome{StatusCode: status, Err: err}
		ev := Event{Name: r.name, Attempt: attempt + 1, Outcome: outcome}

		// final response
		if err == nil && !ShouldRetryStatus(status) {
			r.finish(attempt, true)
			if r.eventHandler != nil && attempt > 0 {
				ev.Duration = r.clock.Since(start)
				r.eventHandler.OnRetrySuccess(ctx, ev)
			}
			return types.Result[T]{Value: value, Attempts: attempt + 1, Duration: r.clock.Since(start)}, nil
		}

		// the caller gave up; a client timeout alone leaves ctx intact
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				r.finish(attempt, false)
				return types.Result[T]{Attempts: attempt + 1, Duration: r.clock.Since(start)}, ctxErr
			}
		}

		// terminal errors never reach the policy
		if err != nil && !outcome.Retryable() {
			r.finish(attempt, false)
			return types.Result[T]{Attempts: attempt + 1, Duration: r.clock.Since(start)}, err
		}

		if !r.policy.ShouldRetry(outcome, attempt, idempotent) {
			r.finish(attempt, false)
			ev.Duration = r.clock.Since(start)
			if r.eventHandler != nil {
				if attempt+1 >= r.policy.MaxAttempts {
					r.eventHandler.OnMaxAttemptsReached(ctx, ev)
				} else {
					r.eventHandler.OnRetryFailure(ctx, ev)
				}
			}
			if err != nil {
				return types.Result[T]{Attempts: attempt + 1, Duration: ev.Duration}, &types.TransportError{Attempts: attempt + 1, Cause: err}
			}
			return types.Result[T]{Value: value, Attempts: attempt + 1, Duration: ev.Duration}, nil
		}

		// calculate delay time
		delay := r.policy.CalculateDelay(attempt + 1)

		r.updateStats(func(stats *RetryStats) {
			stats.LastRetryTime = r.clock.Now()
			stats.TotalRetryDelay += delay
		})

		if r.eventHandler != nil {
			ev.Delay = delay
			ev.Duration = r.clock.Since(start)
			r.eventHandler.OnRetryAttempt(ctx, ev)
		}

		if err := r.wait(ctx, delay); err != nil {
			r.finish(attempt, false)
			return types.Result[T]{Attempts: attempt + 1, Duration: r.clock.Since(start)}, err
		}
	}
}

// wait blocks for d or until ctx is done. The timer is always stopped so a
// cancelled call leaves nothing pending.
func (r *RetryExecutor) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := r.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C():
		return nil
	}
}

// finish records the end of one Execute call
func (r *RetryExecutor) finish(attempt int, success bool) {
	r.updateStats(func(stats *RetryStats) {
		if success {
			stats.TotalSuccesses++
		} else {
			stats.TotalFailures++
		}
		if attempt > 0 {
			stats.TotalRetries++
		}
		stats.updateAverageAttempts()
	})
}

// GetStats gets retry statistics
func (r *RetryExecutor) GetStats() RetryStats {
	r.stats.mu.RLock()
	defer r.stats.mu.RUnlock()
	return RetryStats{
		TotalAttempts:   r.stats.TotalAttempts,
		TotalRetries:    r.stats.TotalRetries,
		TotalSuccesses:  r.stats.TotalSuccesses,
		TotalFailures:   r.stats.TotalFailures,
		AverageAttempts: r.stats.AverageAttempts,
		LastRetryTime:   r.stats.LastRetryTime,
		TotalRetryDelay: r.stats.TotalRetryDelay,
	}
}

// ResetStats resets statistics
func (r *RetryExecutor) ResetStats() {
	r.stats.mu.Lock()
	defer r.stats.mu.Unlock()

	r.stats.TotalAttempts = 0
	r.stats.TotalRetries = 0
	r.stats.TotalSuccesses = 0
	r.stats.TotalFailures = 0
	r.stats.AverageAttempts = 0
	r.stats.LastRetryTime = time.Time{}
	r.stats.TotalRetryDelay = 0
}

// updateStats updates statistics (thread-safe)
func (r *RetryExecutor) updateStats(fn func(*RetryStats)) {
	r.stats.mu.Lock()
	defer r.stats.mu.Unlock()
	fn(&r.stats)
}

// updateAverageAttempts updates average attempt count
func (s *RetryStats) updateAverageAttempts() {
	totalOperations := s.TotalSuccesses + s.TotalFailures
	if totalOperations > 0 {
		s.AverageAttempts = float64(s.TotalAttempts) / float64(totalOperations)
	}
}

// ExecutorOption is a configuration option for retry executor
type ExecutorOption func(*RetryExecutor)

// WithEventHandler sets the event handler
func WithEventHandler(handler EventHandler) ExecutorOption {
	return func(r *RetryExecutor) {
		r.eventHandler = handler
	}
}

// WithClock sets the clock for time operations
func WithClock(clock types.Clock) ExecutorOption {
	return func(r *RetryExecutor) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithName labels events emitted by the executor
func WithName(name string) ExecutorOption {
	return func(r *RetryExecutor) {
		r.name = name
	}
}
