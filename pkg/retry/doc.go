// Package retry provides the backoff calculator and retry policies used by the
// work queue when an item fails.
//
// Backoff:
//
// ExponentialBackoff computes
//
//	delay = min(base * factor^(attempt-1) * jitter, maxDelay)
//
// with jitter drawn uniformly from [0.5, 1.0] so that items failing together
// do not retry together. WithBackoffSeed makes the sequence reproducible.
//
//	backoff := retry.NewExponentialBackoff(time.Second,
//		retry.WithBackoffFactor(2),
//		retry.WithBackoffMaxDelay(30*time.Second))
//
// Policies:
//
// A Policy pairs an attempt budget with a RetryCondition. The default
// condition, AlwaysRetry, lets every failure consume an attempt; RetryableOnly
// fails non-transient classes (authentication, authorization, validation,
// unknown) immediately.
//
//	policy := retry.NewPolicy(3, backoff, retry.WithRetryCondition(retry.RetryableOnly))
//	decision := policy.Decide(err, classify.Classify(err), item.RetryCount, item.MaxRetries)
//
// A *types.RetryableError with a RetryAfter hint longer than the computed
// backoff wins over the backoff.
package retry
