package client

import (
	"context"
	"sync"

	"github.com/jzx17/httpipe/pkg/types"
)

// DefaultConcurrency bounds Batch when no positive concurrency is given
const DefaultConcurrency = 10

// Async executes a single call in the background. The channel yields exactly
// one result and is then closed.
func (e *Endpoint[T, S]) Async(ctx context.Context, args ...any) <-chan types.Result[T] {
	resultChan := make(chan types.Result[T], 1)

	go func() {
		defer close(resultChan)

		start := e.client.clock.Now()
		value, attempts, err := e.call(ctx, args)

		resultChan <- types.Result[T]{
			Value:    value,
			Error:    err,
			Attempts: attempts,
			Duration: e.client.clock.Since(start),
		}
	}()

	return resultChan
}

// Batch executes one call per argument set with at most concurrency calls in
// flight. Results arrive in completion order; Index refers to the argument
// set. Calls not yet started when ctx is done report ctx.Err().
func (e *Endpoint[T, S]) Batch(ctx context.Context, concurrency int, argSets [][]any) <-chan types.BatchResult[T] {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	resultChan := make(chan types.BatchResult[T], len(argSets))

	go func() {
		defer close(resultChan)

		var wg sync.WaitGroup
		semaphore := make(chan struct{}, concurrency)

		for i, args := range argSets {
			wg.Add(1)
			go func(index int, args []any) {
				defer wg.Done()

				// control concurrency level
				select {
				case semaphore <- struct{}{}:
				case <-ctx.Done():
					resultChan <- types.BatchResult[T]{Index: index, Error: ctx.Err()}
					return
				}
				defer func() { <-semaphore }()

				start := e.client.clock.Now()
				value, _, err := e.call(ctx, args)

				resultChan <- types.BatchResult[T]{
					Index:    index,
					Value:    value,
					Error:    err,
					Duration: e.client.clock.Since(start),
				}
			}(i, args)
		}

		wg.Wait()
	}()

	return resultChan
}
