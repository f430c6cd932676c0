// Package retry provides the retry policy engine used by every outbound call.
//
// Key Features:
//
// 1. Immutable policies:
//   - Exponential: base * exponential_base^(n-1), capped at max_delay
//   - Fixed: constant delay, no jitter
//   - Additive jitter in [0, delay*jitter_ratio)
//
// 2. Eligibility:
//   - Retryable statuses are 408, 429 and 5xx
//   - Transport failures are retryable, cancellation is not
//   - idempotent_only restricts retries to read, replace and delete
//
// 3. Retry executor:
//   - Bounded attempt loop with cancellable waits
//   - Retry statistics and event notification
//   - Injectable clock for deterministic tests
//
// Basic usage example:
//
//	policy := retry.MustParse("exponential(max_attempts=3, base_delay=100ms)")
//	executor := retry.NewRetryExecutor(policy,
//		retry.WithEventHandler(retry.NewLogEventHandler(logger)))
//
//	res, err := retry.Execute(executor, ctx, true, func(ctx context.Context, attempt int) (string, int, error) {
//		return doRequest(ctx)
//	})
//
// Thread safety:
//
// Policies are values and executors guard their statistics, so both can be
// shared by concurrent calls.
package retry
