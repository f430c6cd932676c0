package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/jzx17/httpipe/pkg/retry"
)

// Tracer opens one client span per endpoint call and annotates it with
// retry events.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracer from provider. A nil provider yields a no-op tracer.
func NewTracer(provider trace.TracerProvider) *Tracer {
	if provider == nil {
		provider = tracenoop.NewTracerProvider()
	}
	return &Tracer{tracer: provider.Tracer("github.com/jzx17/httpipe")}
}

// SpanName returns the span name for an endpoint
func SpanName(endpoint string) string {
	return "httpipe.call." + endpoint
}

// StartCall starts the span for one call
func (t *Tracer) StartCall(ctx context.Context, endpoint, method string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanName(endpoint),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("httpipe.endpoint", endpoint),
			attribute.String("http.request.method", method),
		),
	)
}

// EndCall records the call outcome and ends the span
func (t *Tracer) EndCall(span trace.Span, call Call) {
	span.SetAttributes(attribute.Int("httpipe.attempts", call.Attempts))
	if call.StatusCode > 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", call.StatusCode))
	}
	if call.Err != nil {
		span.SetStatus(codes.Error, call.Err.Error())
		span.SetAttributes(attribute.String("error.type", ErrorKind(call.Err)))
		span.RecordError(call.Err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// OnRetryAttempt implements retry.EventHandler
func (t *Tracer) OnRetryAttempt(ctx context.Context, ev retry.Event) {
	attrs := []attribute.KeyValue{
		attribute.Int("httpipe.attempt", ev.Attempt),
		attribute.Int64("httpipe.delay_ms", ev.Delay.Milliseconds()),
	}
	if ev.Outcome.Err != nil {
		attrs = append(attrs, attribute.String("error.message", ev.Outcome.Err.Error()))
	} else {
		attrs = append(attrs, attribute.Int("http.response.status_code", ev.Outcome.StatusCode))
	}
	trace.SpanFromContext(ctx).AddEvent("retry", trace.WithAttributes(attrs...))
}

// OnRetrySuccess implements retry.EventHandler
func (t *Tracer) OnRetrySuccess(ctx context.Context, ev retry.Event) {}

// OnRetryFailure implements retry.EventHandler
func (t *Tracer) OnRetryFailure(ctx context.Context, ev retry.Event) {
	trace.SpanFromContext(ctx).AddEvent("retry.ineligible",
		trace.WithAttributes(attribute.Int("httpipe.attempt", ev.Attempt)))
}

// OnMaxAttemptsReached implements retry.EventHandler
func (t *Tracer) OnMaxAttemptsReached(ctx context.Context, ev retry.Event) {
	trace.SpanFromContext(ctx).AddEvent("retry.exhausted",
		trace.WithAttributes(attribute.Int("httpipe.attempt", ev.Attempt)))
}
