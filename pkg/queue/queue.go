package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jzx17/syncqueue/pkg/retry"
	"github.com/jzx17/syncqueue/pkg/types"
)

// queue states
const (
	stateIdle int32 = iota
	stateRunning
)

// Queue is a priority batch execution engine. Items are registered with Add,
// then processed by Start in batches of at most MaxConcurrency eligible items.
type Queue[P, R any] struct {
	config         *Config[P, R]
	policy         *retry.Policy
	resolvedPolicy *retry.Policy
	clock          types.Clock
	logger         *slog.Logger

	mu       sync.RWMutex
	items    map[string]*WorkItem[P, R]
	inflight map[string]struct{}
	seq      uint64

	// run state, guarded by mu; state is also read atomically
	state      int32
	stopped    bool
	cancel     context.CancelFunc
	runID      string
	startedAt  time.Time
	finishedAt time.Time
	completed  int
}

// New creates a new queue
func New[P, R any](config *Config[P, R]) (*Queue[P, R], error) {
	if config == nil {
		config = DefaultConfig[P, R]()
	}

	cfg := *config
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid queue config: %w", err)
	}

	return &Queue[P, R]{
		config:         &cfg,
		policy:         retry.NewPolicy(cfg.MaxRetries, cfg.Backoff, retry.WithRetryCondition(cfg.RetryCondition)),
		resolvedPolicy: retry.NewPolicy(cfg.MaxRetries, cfg.Backoff),
		clock:          cfg.Clock,
		logger:         cfg.Logger,
		items:          make(map[string]*WorkItem[P, R]),
		inflight:       make(map[string]struct{}),
	}, nil
}

// Add registers items atomically: either all are added or none
func (q *Queue[P, R]) Add(items ...WorkItem[P, R]) error {
	for i := range items {
		if err := validateItem(&items[i]); err != nil {
			return types.NewQueueError("add", items[i].ID, err)
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range items {
		if _, busy := q.inflight[items[i].ID]; busy {
			return types.NewQueueError("add", items[i].ID,
				fmt.Errorf("%w: item is processing", types.ErrInvalidItem))
		}
	}

	now := q.clock.Now()
	for i := range items {
		q.insertLocked(items[i], now)
	}

	return nil
}

// AddItem registers a single item
func (q *Queue[P, R]) AddItem(item WorkItem[P, R]) error {
	return q.Add(item)
}

// insertLocked stores a fresh PENDING copy of item; caller holds mu
func (q *Queue[P, R]) insertLocked(item WorkItem[P, R], now time.Time) {
	stored := item.clone()
	stored.Status = StatusPending
	stored.StartedAt = nil
	stored.CompletedAt = nil
	stored.RetryCount = 0
	stored.Attempts = 0
	stored.Error = ""
	stored.ErrorType = ""
	stored.NotBefore = time.Time{}
	if stored.MaxRetries == 0 {
		stored.MaxRetries = q.config.MaxRetries
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}

	q.seq++
	stored.seq = q.seq
	q.items[stored.ID] = &stored
}

// Remove deletes an item from the registry; not allowed during a run
func (q *Queue[P, R]) Remove(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if atomic.LoadInt32(&q.state) == stateRunning {
		return types.NewQueueError("remove", id, types.ErrQueueRunning)
	}
	if _, ok := q.items[id]; !ok {
		return types.NewQueueError("remove", id, types.ErrItemNotFound)
	}

	delete(q.items, id)
	return nil
}

// Clear removes every item; not allowed during a run
func (q *Queue[P, R]) Clear() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if atomic.LoadInt32(&q.state) == stateRunning {
		return types.NewQueueError("clear", "", types.ErrQueueRunning)
	}

	q.items = make(map[string]*WorkItem[P, R])
	q.completed = 0
	return nil
}

// ClearCompleted removes COMPLETED items and returns how many were removed
func (q *Queue[P, R]) ClearCompleted() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if atomic.LoadInt32(&q.state) == stateRunning {
		return 0, types.NewQueueError("clear_completed", "", types.ErrQueueRunning)
	}

	removed := 0
	for id, item := range q.items {
		if item.Status == StatusCompleted {
			delete(q.items, id)
			removed++
		}
	}
	return removed, nil
}

// Items returns snapshots of all items in insertion order
func (q *Queue[P, R]) Items() []WorkItem[P, R] {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return q.snapshotLocked()
}

func (q *Queue[P, R]) snapshotLocked() []WorkItem[P, R] {
	out := make([]WorkItem[P, R], 0, len(q.items))
	for _, item := range q.items {
		out = append(out, item.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// Item returns a snapshot of one item
func (q *Queue[P, R]) Item(id string) (WorkItem[P, R], bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	item, ok := q.items[id]
	if !ok {
		return WorkItem[P, R]{}, false
	}
	return item.clone(), true
}

// Len returns the number of registered items
func (q *Queue[P, R]) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.items)
}

// IsRunning reports whether a run is in progress
func (q *Queue[P, R]) IsRunning() bool {
	return atomic.LoadInt32(&q.state) == stateRunning
}

// Start runs the queue until no item can make further progress, Stop is
// called, or ctx is cancelled. It returns snapshots of every item.
func (q *Queue[P, R]) Start(ctx context.Context, processor Processor[P, R]) ([]WorkItem[P, R], error) {
	if processor == nil {
		return nil, types.NewQueueError("start", "", errors.New("processor cannot be nil"))
	}
	if ctx == nil {
		ctx = context.Background()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	q.mu.Lock()
	if !atomic.CompareAndSwapInt32(&q.state, stateIdle, stateRunning) {
		q.mu.Unlock()
		return nil, types.NewQueueError("start", "", types.ErrQueueRunning)
	}
	q.stopped = false
	q.cancel = cancel
	q.runID = uuid.NewString()
	q.startedAt = q.clock.Now()
	q.finishedAt = time.Time{}
	q.completed = 0
	runID := q.runID
	total := len(q.items)
	q.mu.Unlock()

	logger := q.logger.With("run_id", runID)
	logger.Info("run started", "items", total, "max_concurrency", q.config.MaxConcurrency)

	q.run(runCtx, processor, logger)

	q.mu.Lock()
	q.finishedAt = q.clock.Now()
	q.cancel = nil
	atomic.StoreInt32(&q.state, stateIdle)
	q.mu.Unlock()

	items := q.Items()
	stats := q.Stats()
	q.logBlocked(logger)
	logger.Info("run finished",
		"completed", stats.Completed,
		"failed", stats.Failed,
		"cancelled", stats.Cancelled,
		"pending", stats.Pending,
		"retries", stats.Retries,
		"duration", stats.FinishedAt.Sub(stats.StartedAt))

	if q.config.OnComplete != nil {
		q.config.OnComplete(items, stats)
	}

	return items, nil
}

// Stop cancels the current run. PROCESSING items become CANCELLED and their
// contexts are cancelled; PENDING items stay PENDING.
func (q *Queue[P, R]) Stop() error {
	q.mu.Lock()
	if atomic.LoadInt32(&q.state) != stateRunning {
		q.mu.Unlock()
		return types.NewQueueError("stop", "", types.ErrQueueNotRunning)
	}
	cancelled := q.haltLocked()
	cancel := q.cancel
	q.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	q.reportCancelled(cancelled)
	return nil
}

// haltLocked marks the run stopped and cancels in-flight items; caller holds mu
func (q *Queue[P, R]) haltLocked() []string {
	if q.stopped {
		return nil
	}
	q.stopped = true

	now := q.clock.Now()
	var cancelled []string
	for id := range q.inflight {
		item, ok := q.items[id]
		if !ok || item.Status != StatusProcessing {
			continue
		}
		if err := item.transition(StatusCancelled); err != nil {
			continue
		}
		item.CompletedAt = &now
		item.Error = types.ErrCancelled.Error()
		cancelled = append(cancelled, id)
	}
	return cancelled
}

func (q *Queue[P, R]) reportCancelled(ids []string) {
	for _, id := range ids {
		q.config.Metrics.ItemCancelled()
		q.logger.Info("item cancelled", "item_id", id)
	}
}

func (q *Queue[P, R]) isStopped() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.stopped
}
