// Package simulate provides a processor that imitates remote sync calls
package simulate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jzx17/syncqueue/pkg/queue"
	"github.com/jzx17/syncqueue/pkg/types"
)

// AlwaysFail as FailTimes makes every attempt fail
const AlwaysFail = -1

// Behavior describes how a simulated sync behaves
type Behavior struct {
	// Duration of each attempt
	Duration time.Duration `yaml:"duration"`

	// FailTimes is the number of leading attempts that fail; AlwaysFail fails all
	FailTimes int `yaml:"fail_times"`

	// Status is the HTTP status of a failure; 0 gives a plain error
	Status int `yaml:"status"`

	// Network makes failures network errors
	Network bool `yaml:"network"`

	// RetryAfter is attached as a retry hint to failures
	RetryAfter time.Duration `yaml:"retry_after"`

	// Message overrides the failure message
	Message string `yaml:"message"`

	// Panic makes failing attempts panic instead of returning an error
	Panic bool `yaml:"panic"`
}

// fails reports whether the given 1-based attempt fails
func (b Behavior) fails(attempt int) bool {
	return b.FailTimes == AlwaysFail || attempt <= b.FailTimes
}

// Simulator runs Behaviors on a clock
type Simulator struct {
	clock types.Clock
}

// New creates a simulator; a nil clock uses the real clock
func New(clock types.Clock) *Simulator {
	if clock == nil {
		clock = types.NewRealClock()
	}
	return &Simulator{clock: clock}
}

// Processor returns the simulator as a queue processor
func (s *Simulator) Processor() queue.Processor[Behavior, string] {
	return s.Process
}

// Process waits for the item's Duration, then succeeds or fails according
// to its Behavior and attempt number
func (s *Simulator) Process(ctx context.Context, item queue.WorkItem[Behavior, string]) (string, error) {
	b := item.Payload

	if b.Duration > 0 {
		timer := s.clock.NewTimer(b.Duration)
		defer timer.Stop()

		select {
		case <-timer.C():
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if !b.fails(item.Attempts) {
		return fmt.Sprintf("%s synced after %d attempt(s)", item.ID, item.Attempts), nil
	}

	err := b.failure(item.ID)
	if b.Panic {
		panic(err.Error())
	}
	return "", err
}

func (b Behavior) failure(id string) error {
	msg := b.Message
	if msg == "" {
		msg = fmt.Sprintf("simulated failure for %s", id)
	}

	var err error
	switch {
	case b.Network:
		err = &types.NetworkError{Err: errors.New(msg)}
	case b.Status > 0:
		err = &types.HTTPError{Status: b.Status, Message: msg}
	default:
		err = errors.New(msg)
	}

	if b.RetryAfter > 0 {
		err = &types.RetryableError{Err: err, Retryable: true, RetryAfter: b.RetryAfter}
	}
	return err
}
