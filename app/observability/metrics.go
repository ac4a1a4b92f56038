package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RankingMetrics records ranking pipeline measurements. Label values are
// bounded: operation names, outcomes and fixed reasons, never ids.
type RankingMetrics interface {
	RecordOperationAttempt(ctx context.Context, operation string)
	RecordOperationSuccess(ctx context.Context, operation string)
	RecordOperationFailure(ctx context.Context, operation string)
	RecordOperationDuration(ctx context.Context, operation string, duration time.Duration)

	RecordFinish(ctx context.Context, outcome string)
	RecordPersistenceFailure(ctx context.Context, operation string)
	RecordRebuild(ctx context.Context, reason string)
	RecordDelivery(ctx context.Context, result string)
	SetObservers(n int)
}

// Finish outcomes.
const (
	FinishImproved    = "improved"
	FinishNotImproved = "not_improved"
	FinishRejected    = "rejected"
	FinishFailed      = "failed"
)

// Delivery results.
const (
	DeliveryOK       = "ok"
	DeliveryFailed   = "failed"
	DeliveryReplaced = "replaced"
	DeliveryStale    = "stale"
)

type prometheusMetrics struct {
	attempts     *prometheus.CounterVec
	successes    *prometheus.CounterVec
	failures     *prometheus.CounterVec
	durations    *prometheus.HistogramVec
	finishes     *prometheus.CounterVec
	persistFails *prometheus.CounterVec
	rebuilds     *prometheus.CounterVec
	deliveries   *prometheus.CounterVec
	observers    prometheus.Gauge
}

// NewPrometheusMetrics registers the ranking collectors on reg.
func NewPrometheusMetrics(reg prometheus.Registerer) RankingMetrics {
	m := &prometheusMetrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maprank_operation_attempts_total",
			Help: "Service operations started",
		}, []string{"operation"}),
		successes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maprank_operation_success_total",
			Help: "Service operations that returned a success result",
		}, []string{"operation"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maprank_operation_failures_total",
			Help: "Service operations that returned an error or panicked",
		}, []string{"operation"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "maprank_operation_duration_seconds",
			Help:    "Service operation latency",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		}, []string{"operation"}),
		finishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maprank_finishes_total",
			Help: "Finish events by outcome",
		}, []string{"outcome"}),
		persistFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maprank_persistence_failures_total",
			Help: "Repository writes that failed",
		}, []string{"operation"}),
		rebuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maprank_rebuilds_total",
			Help: "Full rank rebuilds by reason",
		}, []string{"reason"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maprank_window_deliveries_total",
			Help: "Observer window deliveries by result",
		}, []string{"result"}),
		observers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "maprank_observers",
			Help: "Currently connected observers",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.attempts, m.successes, m.failures, m.durations,
			m.finishes, m.persistFails, m.rebuilds, m.deliveries, m.observers)
	}
	return m
}

func (m *prometheusMetrics) RecordOperationAttempt(_ context.Context, operation string) {
	m.attempts.WithLabelValues(operation).Inc()
}

func (m *prometheusMetrics) RecordOperationSuccess(_ context.Context, operation string) {
	m.successes.WithLabelValues(operation).Inc()
}

func (m *prometheusMetrics) RecordOperationFailure(_ context.Context, operation string) {
	m.failures.WithLabelValues(operation).Inc()
}

func (m *prometheusMetrics) RecordOperationDuration(_ context.Context, operation string, duration time.Duration) {
	m.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *prometheusMetrics) RecordFinish(_ context.Context, outcome string) {
	m.finishes.WithLabelValues(outcome).Inc()
}

func (m *prometheusMetrics) RecordPersistenceFailure(_ context.Context, operation string) {
	m.persistFails.WithLabelValues(operation).Inc()
}

func (m *prometheusMetrics) RecordRebuild(_ context.Context, reason string) {
	m.rebuilds.WithLabelValues(reason).Inc()
}

func (m *prometheusMetrics) RecordDelivery(_ context.Context, result string) {
	m.deliveries.WithLabelValues(result).Inc()
}

func (m *prometheusMetrics) SetObservers(n int) {
	m.observers.Set(float64(n))
}

// NoOpMetrics discards everything.
type NoOpMetrics struct{}

var _ RankingMetrics = NoOpMetrics{}

func (NoOpMetrics) RecordOperationAttempt(context.Context, string)                 {}
func (NoOpMetrics) RecordOperationSuccess(context.Context, string)                 {}
func (NoOpMetrics) RecordOperationFailure(context.Context, string)                 {}
func (NoOpMetrics) RecordOperationDuration(context.Context, string, time.Duration) {}
func (NoOpMetrics) RecordFinish(context.Context, string)                           {}
func (NoOpMetrics) RecordPersistenceFailure(context.Context, string)               {}
func (NoOpMetrics) RecordRebuild(context.Context, string)                          {}
func (NoOpMetrics) RecordDelivery(context.Context, string)                         {}
func (NoOpMetrics) SetObservers(int)                                               {}
