package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jzx17/syncqueue/pkg/classify"
	"github.com/jzx17/syncqueue/pkg/retry"
	"github.com/jzx17/syncqueue/pkg/types"
)

// Processor performs the work for one item. It receives a snapshot of the
// item; ctx is cancelled on timeout or when the run is stopped.
type Processor[P, R any] func(ctx context.Context, item WorkItem[P, R]) (R, error)

// Config contains configuration for a Queue
type Config[P, R any] struct {
	// MaxConcurrency bounds the number of PROCESSING items
	MaxConcurrency int

	// MaxRetries is the default attempt budget for items that do not set one
	MaxRetries int

	// RetryDelay is the base delay of the exponential backoff
	RetryDelay time.Duration

	// BackoffFactor is the growth multiplier of the exponential backoff
	BackoffFactor float64

	// MaxRetryDelay caps a single backoff delay
	MaxRetryDelay time.Duration

	// Timeout bounds a single processor invocation; zero disables it
	Timeout time.Duration

	// BatchDelay is the pause inserted between batches
	BatchDelay time.Duration

	// Backoff overrides the exponential backoff built from the fields above
	Backoff retry.BackoffStrategy

	// RetryCondition decides whether a failure may be retried (default retry.AlwaysRetry)
	RetryCondition retry.RetryCondition

	// Resolver, when set, gets a chance to fix a failure before the retry
	// decision; a resolved failure bypasses RetryCondition
	Resolver *classify.Resolver

	// Clock for time operations (optional, defaults to real clock)
	Clock types.Clock

	// Logger receives structured run events (optional, defaults to slog.Default())
	Logger *slog.Logger

	// Metrics receives counters and timings (optional)
	Metrics MetricsRecorder

	// OnProgress is called after every successful item with the number of
	// items completed in the current run and the registry size
	OnProgress func(completed, total int, item WorkItem[P, R])

	// OnError is called when an item reaches FAILED
	OnError func(err error, item WorkItem[P, R])

	// OnComplete is called once when a run ends
	OnComplete func(items []WorkItem[P, R], stats Stats)
}

// DefaultConfig returns default configuration
func DefaultConfig[P, R any]() *Config[P, R] {
	return &Config[P, R]{
		MaxConcurrency: 5,
		MaxRetries:     3,
		RetryDelay:     time.Second,
		BackoffFactor:  2.0,
		MaxRetryDelay:  30 * time.Second,
		Timeout:        5 * time.Minute,
		BatchDelay:     100 * time.Millisecond,
		Clock:          types.NewRealClock(),
	}
}

// validate checks the configuration and fills optional fields
func (c *Config[P, R]) validate() error {
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("max concurrency must be positive, got %d", c.MaxConcurrency)
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("max retries must be positive, got %d", c.MaxRetries)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay cannot be negative, got %v", c.RetryDelay)
	}
	if c.BackoffFactor < 0 {
		return fmt.Errorf("backoff factor cannot be negative, got %v", c.BackoffFactor)
	}
	if c.MaxRetryDelay < 0 {
		return fmt.Errorf("max retry delay cannot be negative, got %v", c.MaxRetryDelay)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative, got %v", c.Timeout)
	}
	if c.BatchDelay < 0 {
		return fmt.Errorf("batch delay cannot be negative, got %v", c.BatchDelay)
	}

	if c.Clock == nil {
		c.Clock = types.NewRealClock()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Metrics == nil {
		c.Metrics = noopMetrics{}
	}
	if c.Backoff == nil {
		c.Backoff = retry.NewExponentialBackoff(c.RetryDelay,
			retry.WithBackoffFactor(c.BackoffFactor),
			retry.WithBackoffMaxDelay(c.MaxRetryDelay))
	}

	return nil
}
