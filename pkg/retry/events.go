// Package retry provides retry event handlers
package retry

import (
	"context"

	"github.com/rs/zerolog"
)

// LogEventHandler writes retry events to a zerolog logger
type LogEventHandler struct {
	logger zerolog.Logger
}

// NewLogEventHandler creates a logging event handler
func NewLogEventHandler(logger zerolog.Logger) *LogEventHandler {
	return &LogEventHandler{logger: logger}
}

func (h *LogEventHandler) event(e *zerolog.Event, ev Event) *zerolog.Event {
	e = e.Str("endpoint", ev.Name).Int("attempt", ev.Attempt)
	if ev.Outcome.Err != nil {
		e = e.Err(ev.Outcome.Err)
	} else {
		e = e.Int("status", ev.Outcome.StatusCode)
	}
	return e
}

// OnRetryAttempt handles retry attempt events
func (h *LogEventHandler) OnRetryAttempt(ctx context.Context, ev Event) {
	h.event(h.logger.Warn(), ev).Dur("delay", ev.Delay).Msg("retrying request")
}

// OnRetrySuccess handles retry success events
func (h *LogEventHandler) OnRetrySuccess(ctx context.Context, ev Event) {
	h.event(h.logger.Info(), ev).Dur("elapsed", ev.Duration).Msg("request succeeded after retry")
}

// OnRetryFailure handles ineligible retry events
func (h *LogEventHandler) OnRetryFailure(ctx context.Context, ev Event) {
	h.event(h.logger.Warn(), ev).Msg("retryable outcome not eligible for retry")
}

// OnMaxAttemptsReached handles max attempts reached events
func (h *LogEventHandler) OnMaxAttemptsReached(ctx context.Context, ev Event) {
	h.event(h.logger.Error(), ev).Dur("elapsed", ev.Duration).Msg("retry attempts exhausted")
}

// MultiEventHandler fans events out to several handlers in order
type MultiEventHandler []EventHandler

// OnRetryAttempt handles retry attempt events
func (m MultiEventHandler) OnRetryAttempt(ctx context.Context, ev Event) {
	for _, h := range m {
		h.OnRetryAttempt(ctx, ev)
	}
}

// OnRetrySuccess handles retry success events
func (m MultiEventHandler) OnRetrySuccess(ctx context.Context, ev Event) {
	for _, h := range m {
		h.OnRetrySuccess(ctx, ev)
	}
}

// OnRetryFailure handles ineligible retry events
func (m MultiEventHandler) OnRetryFailure(ctx context.Context, ev Event) {
	for _, h := range m {
		h.OnRetryFailure(ctx, ev)
	}
}

// OnMaxAttemptsReached handles max attempts reached events
func (m MultiEventHandler) OnMaxAttemptsReached(ctx context.Context, ev Event) {
	for _, h := range m {
		h.OnMaxAttemptsReached(ctx, ev)
	}
}
