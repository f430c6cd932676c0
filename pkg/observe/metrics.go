package observe

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jzx17/httpipe/pkg/retry"
)

// Metrics records calls and retries as Prometheus series. It is safe for
// concurrent use.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	attempts        *prometheus.HistogramVec
	retriesTotal    *prometheus.CounterVec
	exhaustedTotal  *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
}

// NewMetrics creates a metrics collector on the default registerer
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates a metrics collector using the supplied registerer
func NewMetricsWithRegistry(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "httpipe_requests_total",
				Help: "Total number of endpoint calls by final status",
			},
			[]string{"endpoint", "method", "status_code"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "httpipe_request_duration_seconds",
				Help:    "Duration of endpoint calls including retries",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint", "method"},
		),
		attempts: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "httpipe_request_attempts",
				Help:    "Transport attempts per endpoint call",
				Buckets: []float64{1, 2, 3, 5, 8},
			},
			[]string{"endpoint"},
		),
		retriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "httpipe_retries_total",
				Help: "Total number of scheduled retries",
			},
			[]string{"endpoint"},
		),
		exhaustedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "httpipe_retries_exhausted_total",
				Help: "Total number of calls that ran out of attempts",
			},
			[]string{"endpoint"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "httpipe_errors_total",
				Help: "Total number of failed endpoint calls by error kind",
			},
			[]string{"endpoint", "kind"},
		),
	}
}

// RecordCall implements CallRecorder
func (m *Metrics) RecordCall(ctx context.Context, call Call) {
	status := "none"
	if call.StatusCode > 0 {
		status = strconv.Itoa(call.StatusCode)
	}
	m.requestsTotal.WithLabelValues(call.Endpoint, call.Method, status).Inc()
	m.requestDuration.WithLabelValues(call.Endpoint, call.Method).Observe(call.Duration.Seconds())
	if call.Attempts > 0 {
		m.attempts.WithLabelValues(call.Endpoint).Observe(float64(call.Attempts))
	}
	if call.Err != nil {
		m.errorsTotal.WithLabelValues(call.Endpoint, ErrorKind(call.Err)).Inc()
	}
}

// OnRetryAttempt implements retry.EventHandler
func (m *Metrics) OnRetryAttempt(ctx context.Context, ev retry.Event) {
	m.retriesTotal.WithLabelValues(ev.Name).Inc()
}

// OnRetrySuccess implements retry.EventHandler
func (m *Metrics) OnRetrySuccess(ctx context.Context, ev retry.Event) {}

// OnRetryFailure implements retry.EventHandler
func (m *Metrics) OnRetryFailure(ctx context.Context, ev retry.Event) {}

// OnMaxAttemptsReached implements retry.EventHandler
func (m *Metrics) OnMaxAttemptsReached(ctx context.Context, ev retry.Event) {
	m.exhaustedTotal.WithLabelValues(ev.Name).Inc()
}
