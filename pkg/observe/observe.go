// Package observe provides metrics and tracing hooks for outbound calls.
//
// Every recorder in this package also implements retry.EventHandler so the
// same value can be handed to the client for per-call and per-retry signals.
package observe

import (
	"context"
	"errors"
	"time"

	"github.com/jzx17/httpipe/pkg/retry"
	"github.com/jzx17/httpipe/pkg/types"
)

// Call summarizes one finished endpoint call
type Call struct {
	Endpoint   string
	Method     string
	StatusCode int
	Attempts   int
	Duration   time.Duration
	Err        error
}

// CallRecorder receives finished calls
type CallRecorder interface {
	RecordCall(ctx context.Context, call Call)
}

// Recorder is a CallRecorder that also observes retries
type Recorder interface {
	CallRecorder
	retry.EventHandler
}

// ErrorKind classifies an error for use as a low-cardinality label
func ErrorKind(err error) string {
	var (
		pipelineErr  *types.PipelineError
		transportErr *types.TransportError
		statusErr    *types.HTTPStatusError
		decodeErr    *types.DecodeError
		encodeErr    *types.EncodeError
	)

	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, types.ErrBodyNotReplayable):
		return "body"
	case errors.As(err, &pipelineErr):
		return "interceptor"
	case errors.As(err, &transportErr):
		return "transport"
	case errors.As(err, &statusErr):
		return "status"
	case errors.As(err, &decodeErr):
		return "decode"
	case errors.As(err, &encodeErr):
		return "encode"
	default:
		return "other"
	}
}

// Multi fans calls and retry events out to several recorders
type Multi []Recorder

// RecordCall implements CallRecorder
func (m Multi) RecordCall(ctx context.Context, call Call) {
	for _, r := range m {
		r.RecordCall(ctx, call)
	}
}

// OnRetryAttempt implements retry.EventHandler
func (m Multi) OnRetryAttempt(ctx context.Context, ev retry.Event) {
	for _, r := range m {
		r.OnRetryAttempt(ctx, ev)
	}
}

// OnRetrySuccess implements retry.EventHandler
func (m Multi) OnRetrySuccess(ctx context.Context, ev retry.Event) {
	for _, r := range m {
		r.OnRetrySuccess(ctx, ev)
	}
}

// OnRetryFailure implements retry.EventHandler
func (m Multi) OnRetryFailure(ctx context.Context, ev retry.Event) {
	for _, r := range m {
		r.OnRetryFailure(ctx, ev)
	}
}

// OnMaxAttemptsReached implements retry.EventHandler
func (m Multi) OnMaxAttemptsReached(ctx context.Context, ev retry.Event) {
	for _, r := range m {
		r.OnMaxAttemptsReached(ctx, ev)
	}
}
