package queue

import (
	"log/slog"
	"sort"
	"sync/atomic"
	"time"
)

// Stats is a point-in-time snapshot of the queue
type Stats struct {
	RunID string

	Total      int
	Pending    int
	Processing int
	Completed  int
	Failed     int
	Cancelled  int

	// Blocked counts PENDING items that can never become eligible
	Blocked int

	// Retries is the sum of RetryCount over all items
	Retries int

	// AverageProcessingTime is the mean CompletedAt - StartedAt over COMPLETED items
	AverageProcessingTime time.Duration

	// Throughput is COMPLETED items per minute of run time
	Throughput float64

	StartedAt  time.Time
	FinishedAt time.Time
	Running    bool
}

// Stats returns queue statistics; safe to call during a run
func (q *Queue[P, R]) Stats() Stats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	stats := Stats{
		RunID:      q.runID,
		Total:      len(q.items),
		StartedAt:  q.startedAt,
		FinishedAt: q.finishedAt,
		Running:    atomic.LoadInt32(&q.state) == stateRunning,
	}

	var totalProcessing time.Duration
	for _, item := range q.items {
		stats.Retries += item.RetryCount

		switch item.Status {
		case StatusPending:
			stats.Pending++
		case StatusProcessing:
			stats.Processing++
		case StatusCompleted:
			stats.Completed++
			totalProcessing += item.ProcessingTime()
		case StatusFailed:
			stats.Failed++
		case StatusCancelled:
			stats.Cancelled++
		}
	}

	if stats.Completed > 0 {
		stats.AverageProcessingTime = totalProcessing / time.Duration(stats.Completed)
	}

	if !q.startedAt.IsZero() {
		end := q.finishedAt
		if end.IsZero() {
			end = q.clock.Now()
		}
		if elapsed := end.Sub(q.startedAt); elapsed > 0 {
			stats.Throughput = float64(stats.Completed) / elapsed.Minutes()
		}
	}

	stats.Blocked = len(q.blockedLocked())
	return stats
}

// Reasons reported by Diagnose
const (
	ReasonMissingDependency   = "missing_dependency"
	ReasonDependencyFailed    = "dependency_failed"
	ReasonDependencyCancelled = "dependency_cancelled"
	ReasonDependencyBlocked   = "dependency_blocked"
	ReasonDependencyCycle     = "dependency_cycle"
)

// BlockedItem describes a PENDING item that can never run
type BlockedItem struct {
	ID         string `json:"id"`
	Reason     string `json:"reason"`
	Dependency string `json:"dependency,omitempty"`
}

// Diagnose returns the PENDING items whose dependencies can never be
// satisfied, sorted by id
func (q *Queue[P, R]) Diagnose() []BlockedItem {
	q.mu.RLock()
	blocked := q.blockedLocked()
	q.mu.RUnlock()

	out := make([]BlockedItem, 0, len(blocked))
	for _, b := range blocked {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// blockedLocked walks the dependency graph of PENDING items; caller holds mu
func (q *Queue[P, R]) blockedLocked() map[string]BlockedItem {
	const (
		unvisited = iota
		visiting
		visited
	)

	state := make(map[string]int)
	blocked := make(map[string]BlockedItem)

	var visit func(id string) (BlockedItem, bool)
	visit = func(id string) (BlockedItem, bool) {
		switch state[id] {
		case visited:
			b, ok := blocked[id]
			return b, ok
		case visiting:
			return BlockedItem{ID: id, Reason: ReasonDependencyCycle}, true
		}
		state[id] = visiting

		item := q.items[id]
		var (
			found  bool
			result BlockedItem
		)
		for _, dep := range item.Dependencies {
			d, ok := q.items[dep]
			switch {
			case !ok:
				result, found = BlockedItem{ID: id, Reason: ReasonMissingDependency, Dependency: dep}, true
			case d.Status == StatusFailed:
				result, found = BlockedItem{ID: id, Reason: ReasonDependencyFailed, Dependency: dep}, true
			case d.Status == StatusCancelled:
				result, found = BlockedItem{ID: id, Reason: ReasonDependencyCancelled, Dependency: dep}, true
			case d.Status == StatusPending:
				if b, ok := visit(dep); ok {
					reason := ReasonDependencyBlocked
					if b.Reason == ReasonDependencyCycle {
						reason = ReasonDependencyCycle
					}
					result, found = BlockedItem{ID: id, Reason: reason, Dependency: dep}, true
				}
			}
			if found {
				break
			}
		}

		state[id] = visited
		if found {
			blocked[id] = result
		}
		return result, found
	}

	for id, item := range q.items {
		if item.Status == StatusPending {
			visit(id)
		}
	}
	return blocked
}

// logBlocked warns about items left PENDING because they can never run
func (q *Queue[P, R]) logBlocked(logger *slog.Logger) {
	for _, b := range q.Diagnose() {
		logger.Warn("item blocked",
			"item_id", b.ID,
			"reason", b.Reason,
			"dependency", b.Dependency)
	}
}
