package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/jzx17/syncqueue/pkg/classify"
	"github.com/jzx17/syncqueue/pkg/types"
)

// Priority orders items for scheduling, higher value first
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// String returns the string representation of Priority
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "LOW"
	case PriorityNormal:
		return "NORMAL"
	case PriorityHigh:
		return "HIGH"
	case PriorityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether p is one of the defined levels
func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityCritical
}

// ParsePriority parses a case-insensitive priority name
func ParsePriority(s string) (Priority, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return PriorityLow, nil
	case "", "NORMAL":
		return PriorityNormal, nil
	case "HIGH":
		return PriorityHigh, nil
	case "CRITICAL":
		return PriorityCritical, nil
	default:
		return PriorityNormal, fmt.Errorf("unknown priority %q", s)
	}
}

// Status is the lifecycle state of a work item.
//
//	PENDING → PROCESSING → COMPLETED
//	                     ↘ PENDING (retry)
//	                     ↘ FAILED
//	PENDING, PROCESSING → CANCELLED (only via Stop)
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
)

// IsTerminal returns true if no further transitions can occur
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

var validTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusProcessing: true,
		StatusCancelled:  true,
	},
	StatusProcessing: {
		StatusCompleted: true,
		StatusPending:   true, // retry after backoff
		StatusFailed:    true,
		StatusCancelled: true,
	},
}

// ValidateTransition checks a status change against the state machine
func ValidateTransition(from, to Status) error {
	if validTransitions[from][to] {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", types.ErrInvalidTransition, from, to)
}

// WorkItem is one unit of work tracked by a Queue
type WorkItem[P, R any] struct {
	ID       string
	Payload  P
	Priority Priority
	Status   Status

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	// RetryCount counts failed attempts; MaxRetries is the attempt budget.
	// Zero MaxRetries on submission means the queue default.
	RetryCount int
	MaxRetries int

	// Attempts counts entries into PROCESSING
	Attempts int

	// Dependencies lists item ids that must be COMPLETED first
	Dependencies []string

	Error     string
	ErrorType classify.ErrorType
	Result    R

	// Metadata is never interpreted by the queue
	Metadata map[string]any

	// NotBefore is the earliest time the item may be selected again after a retry
	NotBefore time.Time

	seq uint64
}

// ProcessingTime returns CompletedAt - StartedAt, or 0 if either is unset
func (w WorkItem[P, R]) ProcessingTime() time.Duration {
	if w.StartedAt == nil || w.CompletedAt == nil {
		return 0
	}
	return w.CompletedAt.Sub(*w.StartedAt)
}

// clone returns a copy that shares no mutable state with w
func (w *WorkItem[P, R]) clone() WorkItem[P, R] {
	c := *w
	if w.StartedAt != nil {
		t := *w.StartedAt
		c.StartedAt = &t
	}
	if w.CompletedAt != nil {
		t := *w.CompletedAt
		c.CompletedAt = &t
	}
	if w.Dependencies != nil {
		c.Dependencies = append([]string(nil), w.Dependencies...)
	}
	if w.Metadata != nil {
		c.Metadata = make(map[string]any, len(w.Metadata))
		for k, v := range w.Metadata {
			c.Metadata[k] = v
		}
	}
	return c
}

// transition moves the item to status to, enforcing the state machine
func (w *WorkItem[P, R]) transition(to Status) error {
	if err := ValidateTransition(w.Status, to); err != nil {
		return types.NewQueueError("transition", w.ID, err)
	}
	w.Status = to
	return nil
}

func validateItem[P, R any](item *WorkItem[P, R]) error {
	if strings.TrimSpace(item.ID) == "" {
		return fmt.Errorf("%w: id cannot be empty", types.ErrInvalidItem)
	}
	if !item.Priority.Valid() {
		return fmt.Errorf("%w: item %s has unknown priority %d", types.ErrInvalidItem, item.ID, item.Priority)
	}
	if item.MaxRetries < 0 {
		return fmt.Errorf("%w: item %s has negative max retries", types.ErrInvalidItem, item.ID)
	}
	for _, dep := range item.Dependencies {
		if dep == item.ID {
			return fmt.Errorf("%w: item %s depends on itself", types.ErrInvalidItem, item.ID)
		}
	}
	return nil
}
