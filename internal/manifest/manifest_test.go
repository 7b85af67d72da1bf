package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jzx17/syncqueue/internal/simulate"
	"github.com/jzx17/syncqueue/pkg/queue"
)

const sample = `
queue:
  max_concurrency: 3
  max_retries: 4
  retry_delay: 250ms
  timeout: 10s
  batch_delay: 50ms
  retry_condition: retryable
items:
  - id: customers
    priority: critical
  - id: orders
    priority: high
    max_retries: 2
    depends_on: [customers]
    metadata:
      endpoint: ${SYNC_ENDPOINT}/orders
    simulate:
      duration: 100ms
      fail_times: 1
      status: 429
  - id: invoices
    depends_on: [orders, customers]
`

func TestLoad(t *testing.T) {
	t.Setenv("SYNC_ENDPOINT", "https://api.example.com")

	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	m, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, m.Queue.MaxConcurrency)
	assert.Equal(t, 250*time.Millisecond, m.Queue.RetryDelay)
	require.Len(t, m.Items, 3)
	assert.Equal(t, "https://api.example.com/orders", m.Items[1].Metadata["endpoint"])
	assert.Equal(t, simulate.Behavior{Duration: 100 * time.Millisecond, FailTimes: 1, Status: 429}, m.Items[1].Simulate)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("items:\n  - id: a\n    priorty: high\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{"no items", "queue:\n  max_concurrency: 2\n", ErrNoItems},
		{"duplicate id", "items:\n  - id: a\n  - id: a\n", ErrDuplicateID},
		{"empty id", "items:\n  - id: ''\n", ErrInvalidItem},
		{"bad priority", "items:\n  - id: a\n    priority: urgent\n", ErrInvalidItem},
		{"negative retries", "items:\n  - id: a\n    max_retries: -1\n", ErrInvalidItem},
		{"unknown dependency", "items:\n  - id: a\n    depends_on: [ghost]\n", ErrUnknownDependency},
		{"self cycle", "items:\n  - id: a\n    depends_on: [a]\n", ErrDependencyCycle},
		{"cycle", "items:\n  - id: a\n    depends_on: [c]\n  - id: b\n    depends_on: [a]\n  - id: c\n    depends_on: [b]\n", ErrDependencyCycle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValidate_PaddedID(t *testing.T) {
	_, err := Parse([]byte("items:\n  - id: \"a \"\n  - id: b\n    depends_on: [\"a \"]\n"))
	require.ErrorIs(t, err, ErrInvalidItem)
	assert.Contains(t, err.Error(), "surrounding whitespace")
	assert.NotErrorIs(t, err, ErrUnknownDependency, "dependencies resolve against the ids as written")
}

func TestValidate_QueueSettings(t *testing.T) {
	_, err := Parse([]byte("queue:\n  retry_condition: sometimes\n  max_retries: -2\n  backoff_factor: -1\nitems:\n  - id: a\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry_condition")
	assert.Contains(t, err.Error(), "max_retries")
	assert.Contains(t, err.Error(), "backoff_factor")
}

func TestValidate_ReportsCyclePath(t *testing.T) {
	m := &Manifest{Items: []Item{
		{ID: "a", DependsOn: []string{"b"}},
		{ID: "b", DependsOn: []string{"a"}},
	}}

	err := m.Validate()
	require.ErrorIs(t, err, ErrDependencyCycle)
	assert.Contains(t, err.Error(), "a -> b -> a")
}

func TestLevels(t *testing.T) {
	m, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"customers"}, {"orders"}, {"invoices"}}, m.Levels())

	m = &Manifest{Items: []Item{{ID: "b"}, {ID: "a"}, {ID: "c", DependsOn: []string{"a", "b"}}}}
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, m.Levels())
}

func TestApply(t *testing.T) {
	m, err := Parse([]byte(sample))
	require.NoError(t, err)

	config := queue.DefaultConfig[simulate.Behavior, string]()
	Apply(m.Queue, config)

	assert.Equal(t, 3, config.MaxConcurrency)
	assert.Equal(t, 4, config.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, config.RetryDelay)
	assert.Equal(t, 10*time.Second, config.Timeout)
	assert.Equal(t, 50*time.Millisecond, config.BatchDelay)
	assert.Equal(t, 2.0, config.BackoffFactor, "unset values keep the defaults")
	assert.NotNil(t, config.RetryCondition)
}

func TestWorkItems(t *testing.T) {
	t.Setenv("SYNC_ENDPOINT", "http://localhost")
	m, err := Parse([]byte(sample))
	require.NoError(t, err)

	items := m.WorkItems()
	require.Len(t, items, 3)

	assert.Equal(t, queue.PriorityCritical, items[0].Priority)
	assert.Equal(t, queue.PriorityNormal, items[2].Priority)
	assert.Equal(t, 2, items[1].MaxRetries)
	assert.Equal(t, []string{"customers"}, items[1].Dependencies)
	assert.Equal(t, "http://localhost/orders", items[1].Metadata["endpoint"])
	assert.Equal(t, 429, items[1].Payload.Status)

	q, err := queue.New(queue.DefaultConfig[simulate.Behavior, string]())
	require.NoError(t, err)
	require.NoError(t, q.Add(items...))
	assert.Empty(t, q.Diagnose())
}
