// Package metrics exposes Prometheus metrics for the reconciler.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Order outcome labels.
const (
	OutcomeFilled      = "filled"
	OutcomeCancelled   = "cancelled"
	OutcomeResubmitted = "resubmitted"
	OutcomeUnchanged   = "unchanged"
)

// Reconcile stage labels for error counting.
const (
	StageStatus  = "status"
	StageCancel  = "cancel"
	StageCreate  = "create"
	StagePersist = "persist"
)

// Metrics wraps Prometheus metrics for the reconciler service.
type Metrics struct {
	registry *prometheus.Registry

	ordersChecked   prometheus.Counter
	orderOutcomes   *prometheus.CounterVec
	reconcileErrors *prometheus.CounterVec
	passDuration    prometheus.Histogram
	lastRun         prometheus.Gauge
}

// New creates a metrics registry and registers reconciler metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	ordersChecked := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_orders_checked_total",
		Help: "Total number of non-terminal orders queried against the exchange.",
	})

	orderOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_orders_total",
		Help: "Total number of reconciled orders by outcome.",
	}, []string{"outcome"})

	reconcileErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_errors_total",
		Help: "Total number of reconciliation errors by stage.",
	}, []string{"stage"})

	passDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "reconcile_pass_duration_seconds",
		Help:    "Duration of a full reconciliation pass in seconds.",
		Buckets: prometheus.DefBuckets,
	})

	lastRun := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "reconcile_last_run_timestamp_seconds",
		Help: "Unix timestamp of the last completed reconciliation pass.",
	})

	registry.MustRegister(ordersChecked, orderOutcomes, reconcileErrors, passDuration, lastRun)

	return &Metrics{
		registry:        registry,
		ordersChecked:   ordersChecked,
		orderOutcomes:   orderOutcomes,
		reconcileErrors: reconcileErrors,
		passDuration:    passDuration,
		lastRun:         lastRun,
	}
}

// Handler exposes the metrics registry via HTTP.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// IncChecked increments the checked order counter.
func (m *Metrics) IncChecked() {
	if m == nil {
		return
	}
	m.ordersChecked.Inc()
}

// IncOutcome increments the outcome counter for one order.
func (m *Metrics) IncOutcome(outcome string) {
	if m == nil {
		return
	}
	m.orderOutcomes.WithLabelValues(outcome).Inc()
}

// IncError increments the error counter for a reconcile stage.
func (m *Metrics) IncError(stage string) {
	if m == nil {
		return
	}
	m.reconcileErrors.WithLabelValues(stage).Inc()
}

// ObservePassDuration records the duration of a reconciliation pass.
func (m *Metrics) ObservePassDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.passDuration.Observe(d.Seconds())
}

// SetLastRun records the completion time of a pass.
func (m *Metrics) SetLastRun(t time.Time) {
	if m == nil {
		return
	}
	m.lastRun.Set(float64(t.Unix()))
}
