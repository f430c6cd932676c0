package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jzx17/httpipe/pkg/retry"
)

// MeterMetrics records calls and retries through an OpenTelemetry meter
type MeterMetrics struct {
	calls     metric.Int64Counter
	errors    metric.Int64Counter
	retries   metric.Int64Counter
	exhausted metric.Int64Counter
	duration  metric.Float64Histogram
}

// NewMeterMetrics creates the instruments on meter
func NewMeterMetrics(meter metric.Meter) (*MeterMetrics, error) {
	calls, err := meter.Int64Counter(
		"httpipe.call.total",
		metric.WithDescription("Total number of endpoint calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errs, err := meter.Int64Counter(
		"httpipe.call.errors",
		metric.WithDescription("Total number of failed endpoint calls"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	retries, err := meter.Int64Counter(
		"httpipe.retry.scheduled",
		metric.WithDescription("Total number of scheduled retries"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return nil, err
	}

	exhausted, err := meter.Int64Counter(
		"httpipe.retry.exhausted",
		metric.WithDescription("Total number of calls that ran out of attempts"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"httpipe.call.duration",
		metric.WithDescription("Endpoint call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &MeterMetrics{
		calls:     calls,
		errors:    errs,
		retries:   retries,
		exhausted: exhausted,
		duration:  duration,
	}, nil
}

// RecordCall implements CallRecorder
func (m *MeterMetrics) RecordCall(ctx context.Context, call Call) {
	attrs := []attribute.KeyValue{
		attribute.String("endpoint", call.Endpoint),
		attribute.String("http.method", call.Method),
		attribute.Int("http.status_code", call.StatusCode),
	}
	opt := metric.WithAttributes(attrs...)

	m.calls.Add(ctx, 1, opt)
	m.duration.Record(ctx, float64(call.Duration.Microseconds())/1000.0, opt)
	if call.Err != nil {
		m.errors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("endpoint", call.Endpoint),
			attribute.String("error.kind", ErrorKind(call.Err)),
		))
	}
}

// OnRetryAttempt implements retry.EventHandler
func (m *MeterMetrics) OnRetryAttempt(ctx context.Context, ev retry.Event) {
	m.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("endpoint", ev.Name)))
}

// OnRetrySuccess implements retry.EventHandler
func (m *MeterMetrics) OnRetrySuccess(ctx context.Context, ev retry.Event) {}

// OnRetryFailure implements retry.EventHandler
func (m *MeterMetrics) OnRetryFailure(ctx context.Context, ev retry.Event) {}

// OnMaxAttemptsReached implements retry.EventHandler
func (m *MeterMetrics) OnMaxAttemptsReached(ctx context.Context, ev retry.Event) {
	m.exhausted.Add(ctx, 1, metric.WithAttributes(attribute.String("endpoint", ev.Name)))
}
