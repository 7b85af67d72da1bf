// Package retry provides retry policies and conditions
package retry

import (
	"time"

	"github.com/jzx17/syncqueue/pkg/classify"
	"github.com/jzx17/syncqueue/pkg/types"
)

// RetryCondition decides whether a classified failure may be retried.
// It is only consulted while attempts remain.
type RetryCondition func(err error, c classify.Classification) bool

// AlwaysRetry is the default retry condition: every failure consumes an attempt
func AlwaysRetry(err error, c classify.Classification) bool {
	return err != nil
}

// RetryableOnly retries transient classes and errors explicitly marked retryable
func RetryableOnly(err error, c classify.Classification) bool {
	if err == nil {
		return false
	}
	if types.IsRetryable(err) {
		return true
	}
	return c.Retryable
}

// Decision reasons
const (
	ReasonRetry        = "retry"
	ReasonExhausted    = "retries_exhausted"
	ReasonNotRetryable = "not_retryable"
)

// Decision is the outcome of consulting a Policy after a failure
type Decision struct {
	Retry  bool
	Delay  time.Duration
	Reason string
}

// Policy combines an attempt budget, a retry condition and a backoff strategy
type Policy struct {
	maxRetries int
	backoff    BackoffStrategy
	condition  RetryCondition
}

// NewPolicy creates a retry policy
func NewPolicy(maxRetries int, backoff BackoffStrategy, opts ...PolicyOption) *Policy {
	if backoff == nil {
		backoff = NewExponentialBackoff(DefaultBackoffConfig().BaseDelay)
	}

	p := &Policy{
		maxRetries: maxRetries,
		backoff:    backoff,
		condition:  AlwaysRetry,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// MaxRetries returns the policy's default attempt budget
func (p *Policy) MaxRetries() int {
	return p.maxRetries
}

// Decide evaluates a failure. retryCount is the item's count after this
// failure was recorded and maxRetries the item's own budget.
func (p *Policy) Decide(err error, c classify.Classification, retryCount, maxRetries int) Decision {
	if retryCount >= maxRetries {
		return Decision{Reason: ReasonExhausted}
	}
	if !p.condition(err, c) {
		return Decision{Reason: ReasonNotRetryable}
	}

	delay := p.backoff.NextDelay(retryCount)
	if hint := types.GetRetryDelay(err); hint > delay {
		delay = hint
	}

	return Decision{Retry: true, Delay: delay, Reason: ReasonRetry}
}

// PolicyOption is a configuration option for retry policies
type PolicyOption func(*Policy)

// WithRetryCondition sets the retry condition
func WithRetryCondition(condition RetryCondition) PolicyOption {
	return func(p *Policy) {
		if condition != nil {
			p.condition = condition
		}
	}
}
