package queue

import (
	"time"

	"github.com/jzx17/syncqueue/pkg/classify"
)

// MetricsRecorder receives queue events. Implementations must be safe for
// concurrent use; see pkg/metrics for a Prometheus implementation.
type MetricsRecorder interface {
	BatchDispatched(size int)
	ItemStarted(priority Priority)
	ItemCompleted(priority Priority, elapsed time.Duration)
	ItemRetried(errorType classify.ErrorType, delay time.Duration)
	ItemFailed(errorType classify.ErrorType)
	ItemCancelled()
}

type noopMetrics struct{}

func (noopMetrics) BatchDispatched(int)                           {}
func (noopMetrics) ItemStarted(Priority)                          {}
func (noopMetrics) ItemCompleted(Priority, time.Duration)         {}
func (noopMetrics) ItemRetried(classify.ErrorType, time.Duration) {}
func (noopMetrics) ItemFailed(classify.ErrorType)                 {}
func (noopMetrics) ItemCancelled()                                {}
