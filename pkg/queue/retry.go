package queue

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/jzx17/syncqueue/pkg/classify"
	"github.com/jzx17/syncqueue/pkg/retry"
	"github.com/jzx17/syncqueue/pkg/types"
)

// fail records a failed attempt and either schedules a retry or marks the
// item FAILED
func (q *Queue[P, R]) fail(ctx context.Context, id string, err error, logger *slog.Logger) {
	c := classify.Classify(err)

	resolved := false
	if q.config.Resolver != nil && ctx.Err() == nil {
		resolved = q.resolve(ctx, id, err, logger)
	}

	q.mu.Lock()
	delete(q.inflight, id)

	item, ok := q.items[id]
	if !ok || item.Status != StatusProcessing {
		// cancelled by Stop; the attempt does not count
		q.mu.Unlock()
		return
	}

	item.RetryCount++
	item.Error = err.Error()
	item.ErrorType = c.Type

	decision := q.decide(err, c, item, resolved)
	now := q.clock.Now()

	if decision.Retry {
		if tErr := item.transition(StatusPending); tErr != nil {
			q.mu.Unlock()
			logger.Error("invalid transition", "error", tErr)
			return
		}
		item.NotBefore = now.Add(decision.Delay)
		retryCount, maxRetries := item.RetryCount, item.MaxRetries
		q.mu.Unlock()

		q.config.Metrics.ItemRetried(c.Type, decision.Delay)
		logger.Warn("item retry scheduled",
			"error", err,
			"error_type", c.Type,
			"retry_count", retryCount,
			"max_retries", maxRetries,
			"delay", decision.Delay)
		return
	}

	if tErr := item.transition(StatusFailed); tErr != nil {
		q.mu.Unlock()
		logger.Error("invalid transition", "error", tErr)
		return
	}
	item.CompletedAt = &now
	snapshot := item.clone()
	q.mu.Unlock()

	q.config.Metrics.ItemFailed(c.Type)
	logger.Error("item failed",
		"error", err,
		"error_type", c.Type,
		"retry_count", snapshot.RetryCount,
		"reason", decision.Reason)

	if q.config.OnError != nil {
		q.config.OnError(err, snapshot)
	}
}

// decide consults the retry policy; a failure fixed by the resolver skips
// the retry condition and only needs attempts left
func (q *Queue[P, R]) decide(err error, c classify.Classification, item *WorkItem[P, R], resolved bool) retry.Decision {
	if resolved {
		return q.resolvedPolicy.Decide(err, c, item.RetryCount, item.MaxRetries)
	}
	return q.policy.Decide(err, c, item.RetryCount, item.MaxRetries)
}

// resolve runs the resolver for a failure. A panicking rule leaves the
// failure unresolved.
func (q *Queue[P, R]) resolve(ctx context.Context, id string, err error, logger *slog.Logger) (resolved bool) {
	defer func() {
		if r := recover(); r != nil {
			perr := types.NewQueueError("resolve", id, fmt.Errorf("resolver panic: %v", r)).
				WithContext("stack_trace", string(debug.Stack()))
			logger.Error("resolver failed", "error", perr)
			resolved = false
		}
	}()

	res := q.config.Resolver.Resolve(ctx, err)
	if res.Rule != "" {
		logger.Debug("resolver matched", "rule", res.Rule, "resolved", res.Resolved())
	}
	return res.Resolved()
}
