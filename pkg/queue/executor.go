package queue

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jzx17/syncqueue/pkg/types"
)

type outcome[R any] struct {
	value R
	err   error
}

// executeBatch runs every item of the batch concurrently and returns once
// all of them have settled
func (q *Queue[P, R]) executeBatch(ctx context.Context, batch []string, processor Processor[P, R], logger *slog.Logger) {
	var g errgroup.Group
	g.SetLimit(q.config.MaxConcurrency)

	for _, id := range batch {
		item, ok := q.begin(id)
		if !ok {
			continue
		}

		g.Go(func() error {
			q.process(ctx, item, processor, logger)
			return nil
		})
	}

	// per-item failures are recorded on the items, never returned
	_ = g.Wait()
}

// begin moves a PENDING item to PROCESSING and returns its snapshot
func (q *Queue[P, R]) begin(id string) (WorkItem[P, R], bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return WorkItem[P, R]{}, false
	}
	item, ok := q.items[id]
	if !ok || item.Status != StatusPending {
		return WorkItem[P, R]{}, false
	}
	if err := item.transition(StatusProcessing); err != nil {
		return WorkItem[P, R]{}, false
	}

	now := q.clock.Now()
	item.StartedAt = &now
	item.CompletedAt = nil
	item.Attempts++
	q.inflight[id] = struct{}{}

	q.config.Metrics.ItemStarted(item.Priority)
	return item.clone(), true
}

// process invokes the processor for one item and records the outcome
func (q *Queue[P, R]) process(ctx context.Context, item WorkItem[P, R], processor Processor[P, R], logger *slog.Logger) {
	itemLogger := logger.With("item_id", item.ID)
	itemLogger.Debug("item started", "attempt", item.Attempts, "priority", item.Priority.String())

	result, err := q.processWithTimeout(ctx, item, processor)
	if err == nil {
		q.complete(item.ID, result, itemLogger)
		return
	}

	if ctx.Err() != nil {
		// the run was cancelled; the failure is not the item's fault
		q.abort(item.ID)
		return
	}

	q.fail(ctx, item.ID, err, itemLogger)
}

// abort moves an in-flight item to CANCELLED after the run context ended
func (q *Queue[P, R]) abort(id string) {
	q.mu.Lock()
	delete(q.inflight, id)

	item, ok := q.items[id]
	if !ok || item.Status != StatusProcessing {
		q.mu.Unlock()
		return
	}
	if err := item.transition(StatusCancelled); err != nil {
		q.mu.Unlock()
		return
	}
	now := q.clock.Now()
	item.CompletedAt = &now
	item.Error = types.ErrCancelled.Error()
	q.mu.Unlock()

	q.reportCancelled([]string{id})
}

// processWithTimeout races the processor against the item timeout and the
// run context. A losing processor keeps running in the background with a
// cancelled context; its late result is discarded.
func (q *Queue[P, R]) processWithTimeout(ctx context.Context, item WorkItem[P, R], processor Processor[P, R]) (R, error) {
	var zero R

	itemCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan outcome[R], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome[R]{err: types.NewQueueError("process", item.ID, fmt.Errorf("processor panic: %v", r)).
					WithContext("stack_trace", string(debug.Stack()))}
			}
		}()

		value, err := processor(itemCtx, item)
		done <- outcome[R]{value: value, err: err}
	}()

	var expired <-chan time.Time
	if q.config.Timeout > 0 {
		timer := q.clock.NewTimer(q.config.Timeout)
		defer timer.Stop()
		expired = timer.C()
	}

	select {
	case out := <-done:
		return out.value, out.err
	case <-expired:
		return zero, &types.TimeoutError{ItemID: item.ID, Timeout: q.config.Timeout}
	case <-ctx.Done():
		return zero, types.NewQueueError("process", item.ID, types.ErrCancelled).
			WithContext("cause", ctx.Err().Error())
	}
}

// complete records a successful attempt
func (q *Queue[P, R]) complete(id string, result R, logger *slog.Logger) {
	q.mu.Lock()
	delete(q.inflight, id)

	item, ok := q.items[id]
	if !ok || item.Status != StatusProcessing {
		// cancelled by Stop; discard the late result
		q.mu.Unlock()
		return
	}
	if err := item.transition(StatusCompleted); err != nil {
		q.mu.Unlock()
		logger.Error("invalid transition", "error", err)
		return
	}

	now := q.clock.Now()
	item.CompletedAt = &now
	item.Result = result
	item.Error = ""
	item.ErrorType = ""
	q.completed++

	completed, total := q.completed, len(q.items)
	snapshot := item.clone()
	q.mu.Unlock()

	elapsed := snapshot.ProcessingTime()
	q.config.Metrics.ItemCompleted(snapshot.Priority, elapsed)
	logger.Info("item completed", "attempt", snapshot.Attempts, "duration", elapsed)

	if q.config.OnProgress != nil {
		q.config.OnProgress(completed, total, snapshot)
	}
}
