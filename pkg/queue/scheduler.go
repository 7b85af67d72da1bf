package queue

import (
	"context"
	"log/slog"
	"sort"
	"time"
)

// run is the main loop: select a batch, execute it, pause, repeat
func (q *Queue[P, R]) run(ctx context.Context, processor Processor[P, R], logger *slog.Logger) {
	for {
		if q.isStopped() {
			return
		}
		if ctx.Err() != nil {
			q.haltOnContext(logger)
			return
		}

		batch, wait := q.nextBatch(q.clock.Now())
		if len(batch) == 0 {
			if wait <= 0 {
				return
			}
			logger.Debug("waiting for retry backoff", "wait", wait)
			if !q.sleep(ctx, wait) {
				q.haltOnContext(logger)
				return
			}
			continue
		}

		q.config.Metrics.BatchDispatched(len(batch))
		logger.Debug("batch dispatched", "size", len(batch))
		q.executeBatch(ctx, batch, processor, logger)

		if !q.hasPending() {
			return
		}
		if !q.sleep(ctx, q.config.BatchDelay) {
			q.haltOnContext(logger)
			return
		}
	}
}

// haltOnContext handles cancellation of the caller's context like Stop
func (q *Queue[P, R]) haltOnContext(logger *slog.Logger) {
	q.mu.Lock()
	cancelled := q.haltLocked()
	q.mu.Unlock()

	if len(cancelled) > 0 {
		logger.Warn("run context cancelled", "cancelled", len(cancelled))
	}
	q.reportCancelled(cancelled)
}

// sleep waits for d on the queue clock; false means the run was cancelled
func (q *Queue[P, R]) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := q.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C():
		return ctx.Err() == nil
	case <-ctx.Done():
		return false
	}
}

// nextBatch returns up to MaxConcurrency eligible item ids in scheduling
// order. When nothing is eligible yet but an item is waiting out a retry
// backoff, wait is the time until the earliest one becomes eligible.
func (q *Queue[P, R]) nextBatch(now time.Time) (batch []string, wait time.Duration) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	slots := q.config.MaxConcurrency - len(q.inflight)
	if slots <= 0 {
		return nil, 0
	}

	var (
		candidates []*WorkItem[P, R]
		earliest   time.Time
	)
	for id, item := range q.items {
		if item.Status != StatusPending {
			continue
		}
		if _, busy := q.inflight[id]; busy {
			continue
		}
		if !q.canRunLocked(item) {
			continue
		}
		if item.NotBefore.After(now) {
			if earliest.IsZero() || item.NotBefore.Before(earliest) {
				earliest = item.NotBefore
			}
			continue
		}
		candidates = append(candidates, item)
	}

	if len(candidates) == 0 {
		if earliest.IsZero() {
			return nil, 0
		}
		return nil, earliest.Sub(now)
	}

	sortForScheduling(candidates)
	if len(candidates) > slots {
		candidates = candidates[:slots]
	}

	batch = make([]string, len(candidates))
	for i, item := range candidates {
		batch[i] = item.ID
	}
	return batch, 0
}

// canRunLocked reports whether every dependency of item is COMPLETED.
// A dependency missing from the registry is never satisfied.
func (q *Queue[P, R]) canRunLocked(item *WorkItem[P, R]) bool {
	for _, dep := range item.Dependencies {
		d, ok := q.items[dep]
		if !ok || d.Status != StatusCompleted {
			return false
		}
	}
	return true
}

// sortForScheduling orders by priority desc, then CreatedAt asc, then insertion order
func sortForScheduling[P, R any](items []*WorkItem[P, R]) {
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]

		// higher priority first
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}

		// same priority, FIFO by creation time
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}

		return a.seq < b.seq
	})
}

// hasPending reports whether any PENDING item remains
func (q *Queue[P, R]) hasPending() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	for _, item := range q.items {
		if item.Status == StatusPending {
			return true
		}
	}
	return false
}
