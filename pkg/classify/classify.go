// Package classify maps arbitrary failures onto a fixed error taxonomy
package classify

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jzx17/syncqueue/pkg/types"
)

// ErrorType is the taxonomy bucket of a failure
type ErrorType string

const (
	Network        ErrorType = "NETWORK"
	Authentication ErrorType = "AUTHENTICATION"
	Authorization  ErrorType = "AUTHORIZATION"
	RateLimit      ErrorType = "RATE_LIMIT"
	Validation     ErrorType = "VALIDATION"
	ServerError    ErrorType = "SERVER_ERROR"
	Timeout        ErrorType = "TIMEOUT"
	Unknown        ErrorType = "UNKNOWN"
)

// NetworkErrorCode is the error code that explicitly marks a network failure
const NetworkErrorCode = "NETWORK_ERROR"

// String returns the string representation of ErrorType
func (t ErrorType) String() string {
	return string(t)
}

// Retryable reports whether failures of this type are transient
func (t ErrorType) Retryable() bool {
	switch t {
	case Network, RateLimit, Timeout, ServerError:
		return true
	default:
		return false
	}
}

// Classification is the result of classifying a failure
type Classification struct {
	Type        ErrorType
	Message     string
	Retryable   bool
	UserMessage string

	// StatusCode is the HTTP status found in the error chain, or 0
	StatusCode int
}

var userMessages = map[ErrorType]string{
	Network:        "Could not reach the remote service. Check the connection and try again.",
	Authentication: "Authentication failed. Please reconnect the integration credentials.",
	Authorization:  "The integration is not allowed to perform this operation.",
	RateLimit:      "The remote service is rate limiting requests. The operation will be retried.",
	Validation:     "The remote service rejected the data as invalid.",
	ServerError:    "The remote service reported an internal error. The operation will be retried.",
	Timeout:        "The operation took too long to complete.",
	Unknown:        "An unexpected error occurred.",
}

// UserMessage returns the user-facing message for an error type
func UserMessage(t ErrorType) string {
	if msg, ok := userMessages[t]; ok {
		return msg
	}
	return userMessages[Unknown]
}

type statusCoder interface {
	StatusCode() int
}

type errorCoder interface {
	Code() string
}

// Classify maps err onto the taxonomy. Precedence, first match wins:
// explicit network marker, HTTP status code, "timeout" in the message, UNKNOWN.
func Classify(err error) Classification {
	if err == nil {
		return newClassification(Unknown, "", 0)
	}

	msg := err.Error()
	status := statusCode(err)

	if isNetwork(err) {
		return newClassification(Network, msg, status)
	}

	if t, ok := typeForStatus(status); ok {
		return newClassification(t, msg, status)
	}

	if isTimeout(err, msg) {
		return newClassification(Timeout, msg, status)
	}

	return newClassification(Unknown, msg, status)
}

func newClassification(t ErrorType, msg string, status int) Classification {
	return Classification{
		Type:        t,
		Message:     msg,
		Retryable:   t.Retryable(),
		UserMessage: UserMessage(t),
		StatusCode:  status,
	}
}

func isNetwork(err error) bool {
	var netMarker *types.NetworkError
	if errors.As(err, &netMarker) {
		return true
	}

	var coder errorCoder
	if errors.As(err, &coder) && coder.Code() == NetworkErrorCode {
		return true
	}

	// context.DeadlineExceeded satisfies net.Error but is not a network failure
	if errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func isTimeout(err error, msg string) bool {
	if errors.Is(err, types.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return strings.Contains(strings.ToLower(msg), "timeout")
}

func statusCode(err error) int {
	var coder statusCoder
	if errors.As(err, &coder) {
		return coder.StatusCode()
	}
	return 0
}

func typeForStatus(status int) (ErrorType, bool) {
	switch {
	case status == 401:
		return Authentication, true
	case status == 403:
		return Authorization, true
	case status == 429:
		return RateLimit, true
	case status == 408 || status == 504:
		return Timeout, true
	case status == 422:
		return Validation, true
	case status >= 500:
		return ServerError, true
	default:
		return "", false
	}
}
