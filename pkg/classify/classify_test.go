package classify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/jzx17/syncqueue/pkg/types"
)

type codedError struct {
	code string
}

func (e codedError) Error() string { return "failed with " + e.code }
func (e codedError) Code() string  { return e.code }

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantType  ErrorType
		retryable bool
	}{
		{"network marker", &types.NetworkError{Err: errors.New("connection reset")}, Network, true},
		{"network code", codedError{code: NetworkErrorCode}, Network, true},
		{"net.Error", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}, Network, true},
		{"network beats status", &types.NetworkError{Err: &types.HTTPError{Status: 401}}, Network, true},
		{"401", &types.HTTPError{Status: 401}, Authentication, false},
		{"403", &types.HTTPError{Status: 403}, Authorization, false},
		{"429", &types.HTTPError{Status: 429}, RateLimit, true},
		{"408", &types.HTTPError{Status: 408}, Timeout, true},
		{"504", &types.HTTPError{Status: 504}, Timeout, true},
		{"422", &types.HTTPError{Status: 422}, Validation, false},
		{"500", &types.HTTPError{Status: 500}, ServerError, true},
		{"503", &types.HTTPError{Status: 503}, ServerError, true},
		{"status beats message", &types.HTTPError{Status: 401, Message: "token timeout"}, Authentication, false},
		{"404 falls through", &types.HTTPError{Status: 404}, Unknown, false},
		{"wrapped status", fmt.Errorf("push products: %w", &types.HTTPError{Status: 429}), RateLimit, true},
		{"timeout message", errors.New("upstream Timeout while reading"), Timeout, true},
		{"timeout error", &types.TimeoutError{ItemID: "a"}, Timeout, true},
		{"deadline exceeded", fmt.Errorf("fetch: %w", context.DeadlineExceeded), Timeout, true},
		{"unknown", errors.New("something odd"), Unknown, false},
		{"other code", codedError{code: "E42"}, Unknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(tt.err)
			if c.Type != tt.wantType {
				t.Errorf("Type = %s, want %s", c.Type, tt.wantType)
			}
			if c.Retryable != tt.retryable {
				t.Errorf("Retryable = %v, want %v", c.Retryable, tt.retryable)
			}
			if c.Message != tt.err.Error() {
				t.Errorf("Message = %q, want %q", c.Message, tt.err.Error())
			}
			if c.UserMessage == "" {
				t.Errorf("expected a user message")
			}
		})
	}
}

func TestClassify_Nil(t *testing.T) {
	c := Classify(nil)
	if c.Type != Unknown || c.Retryable || c.Message != "" {
		t.Errorf("unexpected classification for nil: %+v", c)
	}
}

func TestClassify_StatusCode(t *testing.T) {
	c := Classify(fmt.Errorf("wrap: %w", &types.HTTPError{Status: 502}))
	if c.StatusCode != 502 {
		t.Errorf("StatusCode = %d, want 502", c.StatusCode)
	}
}

func TestErrorType_Retryable(t *testing.T) {
	retryable := map[ErrorType]bool{
		Network:        true,
		Authentication: false,
		Authorization:  false,
		RateLimit:      true,
		Validation:     false,
		ServerError:    true,
		Timeout:        true,
		Unknown:        false,
	}

	for typ, want := range retryable {
		if typ.Retryable() != want {
			t.Errorf("%s.Retryable() = %v, want %v", typ, typ.Retryable(), want)
		}
	}
}

func TestUserMessage_Fallback(t *testing.T) {
	if UserMessage(ErrorType("BOGUS")) != UserMessage(Unknown) {
		t.Errorf("unknown type should fall back to the UNKNOWN message")
	}
}
