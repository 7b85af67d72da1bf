// Package metrics exports queue events as Prometheus metrics
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jzx17/syncqueue/pkg/classify"
	"github.com/jzx17/syncqueue/pkg/queue"
)

const namespace = "syncqueue"

// Recorder implements queue.MetricsRecorder on Prometheus collectors
type Recorder struct {
	batches    prometheus.Counter
	batchSize  prometheus.Histogram
	started    *prometheus.CounterVec
	completed  *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	retries    *prometheus.CounterVec
	retryDelay prometheus.Histogram
	failed     *prometheus.CounterVec
	cancelled  prometheus.Counter
	inFlight   prometheus.Gauge
}

var _ queue.MetricsRecorder = (*Recorder)(nil)

// NewRecorder registers the queue collectors on reg. A nil reg uses the
// default registerer.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Recorder{
		batches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Total number of batches dispatched",
		}),
		batchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of items per dispatched batch",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
		started: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_started_total",
			Help:      "Total number of processing attempts started",
		}, []string{"priority"}),
		completed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_completed_total",
			Help:      "Total number of items completed",
		}, []string{"priority"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "item_duration_seconds",
			Help:      "Processing time of completed items in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"priority"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Total number of retries scheduled",
		}, []string{"error_type"}),
		retryDelay: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retry_delay_seconds",
			Help:      "Backoff delay applied before a retry in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		failed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_failed_total",
			Help:      "Total number of items that ended FAILED",
		}, []string{"error_type"}),
		cancelled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_cancelled_total",
			Help:      "Total number of in-flight items cancelled by Stop",
		}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "items_in_flight",
			Help:      "Number of items currently PROCESSING",
		}),
	}
}

// BatchDispatched records a dispatched batch
func (r *Recorder) BatchDispatched(size int) {
	r.batches.Inc()
	r.batchSize.Observe(float64(size))
}

// ItemStarted records an item entering PROCESSING
func (r *Recorder) ItemStarted(priority queue.Priority) {
	r.started.WithLabelValues(priority.String()).Inc()
	r.inFlight.Inc()
}

// ItemCompleted records a successful attempt
func (r *Recorder) ItemCompleted(priority queue.Priority, elapsed time.Duration) {
	r.completed.WithLabelValues(priority.String()).Inc()
	r.duration.WithLabelValues(priority.String()).Observe(elapsed.Seconds())
	r.inFlight.Dec()
}

// ItemRetried records a failed attempt that will be retried
func (r *Recorder) ItemRetried(errorType classify.ErrorType, delay time.Duration) {
	r.retries.WithLabelValues(errorType.String()).Inc()
	r.retryDelay.Observe(delay.Seconds())
	r.inFlight.Dec()
}

// ItemFailed records an item reaching FAILED
func (r *Recorder) ItemFailed(errorType classify.ErrorType) {
	r.failed.WithLabelValues(errorType.String()).Inc()
	r.inFlight.Dec()
}

// ItemCancelled records an in-flight item cancelled by Stop
func (r *Recorder) ItemCancelled() {
	r.cancelled.Inc()
	r.inFlight.Dec()
}
