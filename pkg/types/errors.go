// Package types defines error types shared by the queue, retry and classify packages
package types

import (
	"errors"
	"fmt"
	"time"
)

// Predefined errors
var (
	// ErrQueueRunning indicates a conflicting operation on a running queue
	ErrQueueRunning = errors.New("queue is already running")

	// ErrQueueNotRunning indicates the queue has no active run
	ErrQueueNotRunning = errors.New("queue is not running")

	// ErrInvalidItem indicates a work item failed validation
	ErrInvalidItem = errors.New("invalid work item")

	// ErrItemNotFound indicates the item id is not registered
	ErrItemNotFound = errors.New("work item not found")

	// ErrInvalidTransition indicates a status change the state machine forbids
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrTimeout indicates an item exceeded its processing timeout
	ErrTimeout = errors.New("processing timeout")

	// ErrCancelled indicates the run was stopped while the item was in flight
	ErrCancelled = errors.New("processing cancelled")
)

// QueueError represents an error raised by a queue operation
type QueueError struct {
	// Operation is the name of the operation where the error occurred
	Operation string

	// ItemID is the work item involved, if any
	ItemID string

	// Cause is the underlying error
	Cause error

	// Context contains error context information
	Context map[string]interface{}
}

// Error implements the error interface
func (e *QueueError) Error() string {
	if e.ItemID == "" {
		return fmt.Sprintf("queue error in operation %s: %v", e.Operation, e.Cause)
	}
	return fmt.Sprintf("queue error in operation %s (item %s): %v", e.Operation, e.ItemID, e.Cause)
}

// Unwrap returns the underlying error
func (e *QueueError) Unwrap() error {
	return e.Cause
}

// NewQueueError creates a new queue error
func NewQueueError(operation, itemID string, cause error) *QueueError {
	return &QueueError{
		Operation: operation,
		ItemID:    itemID,
		Cause:     cause,
		Context:   make(map[string]interface{}),
	}
}

// WithContext adds error context
func (e *QueueError) WithContext(key string, value interface{}) *QueueError {
	e.Context[key] = value
	return e
}

// TimeoutError is returned when a processor does not settle within the configured timeout
type TimeoutError struct {
	ItemID  string
	Timeout time.Duration
}

// Error implements the error interface
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("item %s: processing timeout after %v", e.ItemID, e.Timeout)
}

// Is reports whether target is ErrTimeout
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// HTTPError carries a status code and optional error code from a remote endpoint
type HTTPError struct {
	Status  int
	ErrCode string
	Message string
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http status %d", e.Status)
	}
	return fmt.Sprintf("http status %d: %s", e.Status, e.Message)
}

// StatusCode returns the HTTP status code
func (e *HTTPError) StatusCode() int {
	return e.Status
}

// Code returns the remote error code
func (e *HTTPError) Code() string {
	return e.ErrCode
}

// NetworkError marks a failure that happened before any response was received
type NetworkError struct {
	Err error
}

// Error implements the error interface
func (e *NetworkError) Error() string {
	if e.Err == nil {
		return "network error"
	}
	return "network error: " + e.Err.Error()
}

// Unwrap returns the underlying error
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// RetryableError represents an error carrying an explicit retry hint
type RetryableError struct {
	// Err is the underlying error
	Err error

	// Retryable indicates whether the error is retryable
	Retryable bool

	// RetryAfter is the suggested retry delay
	RetryAfter time.Duration
}

// Error implements the error interface
func (e *RetryableError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error
func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable checks if an error carries an explicit retryable hint
func IsRetryable(err error) bool {
	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}
	return false
}

// GetRetryDelay returns the suggested retry delay
func GetRetryDelay(err error) time.Duration {
	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.RetryAfter
	}
	return 0
}
