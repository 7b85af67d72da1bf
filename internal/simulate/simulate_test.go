package simulate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jzx17/syncqueue/internal/testutils"
	"github.com/jzx17/syncqueue/pkg/classify"
	"github.com/jzx17/syncqueue/pkg/queue"
	"github.com/jzx17/syncqueue/pkg/types"
)

type item = queue.WorkItem[Behavior, string]

func TestProcess_Outcomes(t *testing.T) {
	sim := New(nil)

	tests := []struct {
		name     string
		behavior Behavior
		attempt  int
		wantErr  bool
		wantType classify.ErrorType
	}{
		{"success", Behavior{}, 1, false, ""},
		{"fails first attempt", Behavior{FailTimes: 1, Status: 503}, 1, true, classify.ServerError},
		{"recovers on second attempt", Behavior{FailTimes: 1, Status: 503}, 2, false, ""},
		{"always fails", Behavior{FailTimes: AlwaysFail, Status: 401}, 9, true, classify.Authentication},
		{"network failure", Behavior{FailTimes: 1, Network: true}, 1, true, classify.Network},
		{"plain failure", Behavior{FailTimes: 1}, 1, true, classify.Unknown},
		{"timeout message", Behavior{FailTimes: 1, Message: "gateway timeout"}, 1, true, classify.Timeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := sim.Process(context.Background(), item{ID: "orders", Payload: tt.behavior, Attempts: tt.attempt})
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Contains(t, result, "orders synced")
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantType, classify.Classify(err).Type)
		})
	}
}

func TestProcess_RetryAfter(t *testing.T) {
	sim := New(nil)
	_, err := sim.Process(context.Background(), item{
		ID:       "a",
		Attempts: 1,
		Payload:  Behavior{FailTimes: 1, Status: 429, RetryAfter: 2 * time.Second},
	})

	require.Error(t, err)
	assert.Equal(t, 2*time.Second, types.GetRetryDelay(err))
	assert.Equal(t, classify.RateLimit, classify.Classify(err).Type)
}

func TestProcess_Panic(t *testing.T) {
	sim := New(nil)
	assert.Panics(t, func() {
		_, _ = sim.Process(context.Background(), item{ID: "a", Attempts: 1, Payload: Behavior{FailTimes: 1, Panic: true}})
	})
}

func TestProcess_Duration(t *testing.T) {
	sim := New(nil)

	started := time.Now()
	_, err := sim.Process(context.Background(), item{ID: "a", Attempts: 1, Payload: Behavior{Duration: 20 * time.Millisecond}})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(started), 20*time.Millisecond)
}

func TestProcess_ContextCancel(t *testing.T) {
	sim := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sim.Process(ctx, item{ID: "a", Attempts: 1, Payload: Behavior{Duration: time.Hour}})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSimulator_WithQueue(t *testing.T) {
	config := queue.DefaultConfig[Behavior, string]()
	config.RetryDelay = time.Millisecond
	config.BatchDelay = 0
	config.Logger = testutils.DiscardLogger()

	q, err := queue.New(config)
	require.NoError(t, err)
	require.NoError(t, q.Add(
		item{ID: "customers", Priority: queue.PriorityHigh},
		item{ID: "orders", Dependencies: []string{"customers"}, Payload: Behavior{FailTimes: 2, Status: 429}},
	))

	items, err := q.Start(context.Background(), New(nil).Processor())
	require.NoError(t, err)

	for _, w := range items {
		assert.Equal(t, queue.StatusCompleted, w.Status, w.ID)
	}
	orders, _ := q.Item("orders")
	assert.Equal(t, 3, orders.Attempts)
	assert.Equal(t, "orders synced after 3 attempt(s)", orders.Result)
}
