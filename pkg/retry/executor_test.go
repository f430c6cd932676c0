package retry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jzx17/httpipe/internal/testutils"
	"github.com/jzx17/httpipe/pkg/types"
)

func TestRetryExecutor_Execute_Success(t *testing.T) {
	executor := NewRetryExecutor(Fixed(3, 10*time.Millisecond))

	result, err := Execute(executor, context.Background(), true, func(ctx context.Context, attempt int) (string, int, error) {
		return "success", 200, nil
	})

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Value != "success" {
		t.Errorf("Expected 'success', got %v", result.Value)
	}
	if result.Attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", result.Attempts)
	}

	stats := executor.GetStats()
	if stats.TotalAttempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", stats.TotalAttempts)
	}
	if stats.TotalSuccesses != 1 {
		t.Errorf("Expected 1 success, got %d", stats.TotalSuccesses)
	}
	if stats.TotalRetries != 0 {
		t.Errorf("Expected 0 retries, got %d", stats.TotalRetries)
	}
}

func TestRetryExecutor_Execute_TerminalStatusNotRetried(t *testing.T) {
	executor := NewRetryExecutor(Fixed(3, 10*time.Millisecond))

	var attempts int32
	result, err := Execute(executor, context.Background(), true, func(ctx context.Context, attempt int) (string, int, error) {
		atomic.AddInt32(&attempts, 1)
		return "missing", 404, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "missing", result.Value)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestRetryExecutor_Execute_RetriesWithMockClock(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mock := testutils.NewMockClock(t)
	policy := Exponential(3, 100*time.Millisecond).WithJitter(0)
	executor := NewRetryExecutor(policy, WithClock(testutils.NewClockWrapper(mock)))

	var attempts int32
	done := make(chan types.Result[string], 1)
	go func() {
		res, err := Execute(executor, ctx, true, func(ctx context.Context, attempt int) (string, int, error) {
			n := atomic.AddInt32(&attempts, 1)
			if n < 3 {
				return "", 503, nil
			}
			return "ok", 200, nil
		})
		assert.NoError(t, err)
		done <- res
	}()

	first := testutils.AdvanceToNextTimer(t, ctx, mock)
	second := testutils.AdvanceToNextTimer(t, ctx, mock)

	res := <-done
	assert.Equal(t, 100*time.Millisecond, first)
	assert.Equal(t, 200*time.Millisecond, second)
	assert.Equal(t, "ok", res.Value)
	assert.Equal(t, 3, res.Attempts)

	stats := executor.GetStats()
	assert.Equal(t, int64(3), stats.TotalAttempts)
	assert.Equal(t, int64(1), stats.TotalRetries)
	assert.Equal(t, 300*time.Millisecond, stats.TotalRetryDelay)
}

func TestRetryExecutor_Execute_ExhaustedStatusReturnsLastResponse(t *testing.T) {
	executor := NewRetryExecutor(Fixed(3, time.Millisecond))

	var attempts int32
	result, err := Execute(executor, context.Background(), true, func(ctx context.Context, attempt int) (string, int, error) {
		atomic.AddInt32(&attempts, 1)
		return "unavailable", 503, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "unavailable", result.Value)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	assert.Equal(t, int64(1), executor.GetStats().TotalFailures)
}

func TestRetryExecutor_Execute_NonIdempotentSingleAttempt(t *testing.T) {
	tests := []struct {
		name     string
		policy   Policy
		expected int32
	}{
		{"idempotent only", Fixed(3, time.Millisecond), 1},
		{"any verb", Fixed(3, time.Millisecond).WithIdempotentOnly(false), 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			executor := NewRetryExecutor(tt.policy)

			var attempts int32
			_, err := Execute(executor, context.Background(), false, func(ctx context.Context, attempt int) (struct{}, int, error) {
				atomic.AddInt32(&attempts, 1)
				return struct{}{}, 500, nil
			})

			require.NoError(t, err)
			assert.Equal(t, tt.expected, atomic.LoadInt32(&attempts))
		})
	}
}

func TestRetryExecutor_Execute_TransportFailure(t *testing.T) {
	executor := NewRetryExecutor(Fixed(2, time.Millisecond))
	refused := errors.New("connection refused")

	var attempts int32
	result, err := Execute(executor, context.Background(), true, func(ctx context.Context, attempt int) (string, int, error) {
		atomic.AddInt32(&attempts, 1)
		return "", 0, refused
	})

	var transportErr *types.TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, 2, transportErr.Attempts)
	assert.ErrorIs(t, err, refused)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestRetryExecutor_Execute_AttemptTimeoutRetried(t *testing.T) {
	executor := NewRetryExecutor(Fixed(3, time.Millisecond))
	timeout := fmt.Errorf("Get \"/users\": %w (Client.Timeout exceeded while awaiting headers)", context.DeadlineExceeded)

	var attempts int32
	result, err := Execute(executor, context.Background(), true, func(ctx context.Context, attempt int) (string, int, error) {
		atomic.AddInt32(&attempts, 1)
		if attempt == 0 {
			return "", 0, timeout
		}
		return "ok", 200, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result.Value)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestRetryExecutor_Execute_AttemptTimeoutExhausted(t *testing.T) {
	executor := NewRetryExecutor(Fixed(2, time.Millisecond))

	_, err := Execute(executor, context.Background(), true, func(ctx context.Context, attempt int) (string, int, error) {
		return "", 0, fmt.Errorf("attempt: %w", context.DeadlineExceeded)
	})

	var transportErr *types.TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, 2, transportErr.Attempts)
}

func TestRetryExecutor_Execute_CallerCancelledDuringAttempt(t *testing.T) {
	executor := NewRetryExecutor(Fixed(3, time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())

	var attempts int32
	_, err := Execute(executor, ctx, true, func(ctx context.Context, attempt int) (string, int, error) {
		atomic.AddInt32(&attempts, 1)
		cancel()
		return "", 0, fmt.Errorf("Get \"/users\": %w", ctx.Err())
	})

	assert.Equal(t, context.Canceled, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestRetryExecutor_Execute_NonReplayableBodyStops(t *testing.T) {
	executor := NewRetryExecutor(Fixed(3, time.Millisecond))

	var attempts int32
	_, err := Execute(executor, context.Background(), true, func(ctx context.Context, attempt int) (string, int, error) {
		atomic.AddInt32(&attempts, 1)
		if attempt == 0 {
			return "", 503, nil
		}
		return "", 0, &types.NonRetryableBodyError{Attempt: attempt + 1}
	})

	var bodyErr *types.NonRetryableBodyError
	require.True(t, errors.As(err, &bodyErr))
	assert.Equal(t, 2, bodyErr.Attempt)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestRetryExecutor_Execute_ContextCanceledDuringDelay(t *testing.T) {
	mock := testutils.NewMockClock(t)
	executor := NewRetryExecutor(Fixed(3, time.Hour), WithClock(testutils.NewClockWrapper(mock)))

	ctx, cancel := context.WithCancel(context.Background())

	var attempts int32
	errCh := make(chan error, 1)
	go func() {
		_, err := Execute(executor, ctx, true, func(ctx context.Context, attempt int) (string, int, error) {
			atomic.AddInt32(&attempts, 1)
			return "", 503, nil
		})
		errCh <- err
	}()

	require.Eventually(t, func() bool {
		_, ok := mock.Peek()
		return ok
	}, 5*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Execute did not return after cancellation")
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
	// the pending delay timer was stopped
	_, pending := mock.Peek()
	assert.False(t, pending)
}

func TestRetryExecutor_Execute_AlreadyCanceled(t *testing.T) {
	executor := NewRetryExecutor(DefaultPolicy())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	result, err := Execute(executor, ctx, true, func(ctx context.Context, attempt int) (string, int, error) {
		called = true
		return "", 200, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
	assert.Equal(t, 0, result.Attempts)
}

func TestRetryExecutor_Execute_Concurrent(t *testing.T) {
	executor := NewRetryExecutor(Fixed(2, time.Millisecond))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := Execute(executor, context.Background(), true, func(ctx context.Context, attempt int) (int, int, error) {
				if attempt == 0 {
					return 0, 502, nil
				}
				return attempt, 200, nil
			})
			assert.NoError(t, err)
			assert.Equal(t, 2, res.Attempts)
		}()
	}
	wg.Wait()

	stats := executor.GetStats()
	assert.Equal(t, int64(40), stats.TotalAttempts)
	assert.Equal(t, int64(20), stats.TotalSuccesses)
	assert.InDelta(t, 2.0, stats.AverageAttempts, 0.0001)

	executor.ResetStats()
	assert.Equal(t, int64(0), executor.GetStats().TotalAttempts)
}

type recordingHandler struct {
	mu     sync.Mutex
	events []string
}

func (h *recordingHandler) add(kind string, ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, kind)
}

func (h *recordingHandler) OnRetryAttempt(ctx context.Context, ev Event) {
	h.add("attempt", ev)
}

func (h *recordingHandler) OnRetrySuccess(ctx context.Context, ev Event) {
	h.add("success", ev)
}

func (h *recordingHandler) OnRetryFailure(ctx context.Context, ev Event) {
	h.add("failure", ev)
}

func (h *recordingHandler) OnMaxAttemptsReached(ctx context.Context, ev Event) {
	h.add("exhausted", ev)
}

func TestRetryExecutor_EventHandler(t *testing.T) {
	tests := []struct {
		name       string
		statuses   []int
		idempotent bool
		expected   []string
	}{
		{"first try", []int{200}, true, nil},
		{"retry then success", []int{503, 200}, true, []string{"attempt", "success"}},
		{"exhausted", []int{503, 503}, true, []string{"attempt", "exhausted"}},
		{"ineligible", []int{503}, false, []string{"failure"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := &recordingHandler{}
			executor := NewRetryExecutor(Fixed(2, time.Millisecond), WithEventHandler(handler), WithName("get-user"))

			_, err := Execute(executor, context.Background(), tt.idempotent, func(ctx context.Context, attempt int) (string, int, error) {
				return "", tt.statuses[min(attempt, len(tt.statuses)-1)], nil
			})

			require.NoError(t, err)
			assert.Equal(t, tt.expected, handler.events)
		})
	}
}
