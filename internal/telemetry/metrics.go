package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments the recorder emits against on
// every completed operation and range-scan/observe-loop iteration.
type Metrics struct {
	OperationDuration *prometheus.HistogramVec
	OperationTotal    *prometheus.CounterVec
	RetryTotal        *prometheus.CounterVec

	RangeScanPendingVBuckets prometheus.Gauge
	RangeScanActiveStreams   *prometheus.GaugeVec

	ObserveLoopPolls    *prometheus.CounterVec
	ObserveLoopDuration prometheus.Histogram
}

// NewMetrics registers one instance of each instrument under namespace,
// following the promauto registration pattern: instruments are created
// already wired to the default registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "couchkit"
	}

	return &Metrics{
		OperationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of a dispatched operation, from enqueue to callback.",
				Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"operation", "outcome"},
		),

		OperationTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of dispatched operations by outcome.",
			},
			[]string{"operation", "outcome"},
		),

		RetryTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retries_total",
				Help:      "Total number of retry attempts by reason.",
			},
			[]string{"operation", "reason"},
		),

		RangeScanPendingVBuckets: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "range_scan_pending_vbuckets",
				Help:      "Number of vbuckets queued across all nodes in the scan load balancer.",
			},
		),

		RangeScanActiveStreams: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "range_scan_active_streams",
				Help:      "Number of active range-scan streams per node.",
			},
			[]string{"node"},
		),

		ObserveLoopPolls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "observe_loop_polls_total",
				Help:      "Total number of durability-observe polls by outcome.",
			},
			[]string{"outcome"},
		),

		ObserveLoopDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "observe_loop_duration_seconds",
				Help:      "Total wall time spent polling for durability on one mutation.",
				Buckets:   []float64{.01, .05, .1, .5, 1, 2, 5, 10, 30},
			},
		),
	}
}

// RecordOperation records one dispatched operation's duration and outcome.
func (m *Metrics) RecordOperation(operation, outcome string, duration time.Duration) {
	m.OperationDuration.WithLabelValues(operation, outcome).Observe(duration.Seconds())
	m.OperationTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordRetry records one retry attempt against operation for reason.
func (m *Metrics) RecordRetry(operation, reason string) {
	m.RetryTotal.WithLabelValues(operation, reason).Inc()
}

// SetRangeScanPending updates the queued-vbucket gauge.
func (m *Metrics) SetRangeScanPending(count int) {
	m.RangeScanPendingVBuckets.Set(float64(count))
}

// SetRangeScanActiveStreams updates the per-node active-stream gauge.
func (m *Metrics) SetRangeScanActiveStreams(node string, count int) {
	m.RangeScanActiveStreams.WithLabelValues(node).Set(float64(count))
}

// RecordObserveLoopPoll records one durability poll and, when done is
// true, the total loop duration.
func (m *Metrics) RecordObserveLoopPoll(outcome string, done bool, total time.Duration) {
	m.ObserveLoopPolls.WithLabelValues(outcome).Inc()
	if done {
		m.ObserveLoopDuration.Observe(total.Seconds())
	}
}
