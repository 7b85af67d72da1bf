package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jzx17/syncqueue/internal/manifest"
	"github.com/jzx17/syncqueue/pkg/queue"
)

const healthyManifest = `
queue:
  max_concurrency: 2
  retry_delay: 1ms
  batch_delay: 1ms
items:
  - id: customers
    priority: critical
  - id: orders
    depends_on: [customers]
    simulate:
      fail_times: 1
      status: 503
  - id: invoices
    depends_on: [orders]
`

const brokenManifest = `
queue:
  max_retries: 2
  retry_delay: 1ms
  batch_delay: 1ms
items:
  - id: customers
    simulate:
      fail_times: -1
      status: 401
  - id: orders
    depends_on: [customers]
  - id: products
`

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd("test")
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "none.env")))

	err := cmd.Execute()
	return stdout.String(), err
}

func TestValidateCommand(t *testing.T) {
	path := writeManifest(t, healthyManifest)

	out, err := execute(t, "validate", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "LEVEL")
	assert.Contains(t, out, "customers")
	assert.Contains(t, out, "3 items in 3 levels")
}

func TestValidateCommand_JSON(t *testing.T) {
	path := writeManifest(t, healthyManifest)

	out, err := execute(t, "validate", "-f", path, "--json")
	require.NoError(t, err)

	var got struct {
		Items  int        `json:"items"`
		Levels [][]string `json:"levels"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 3, got.Items)
	assert.Equal(t, [][]string{{"customers"}, {"orders"}, {"invoices"}}, got.Levels)
}

func TestValidateCommand_Cycle(t *testing.T) {
	path := writeManifest(t, `
items:
  - id: a
    depends_on: [b]
  - id: b
    depends_on: [a]
`)

	_, err := execute(t, "validate", "-f", path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, manifest.ErrDependencyCycle), err)
}

func TestRunCommand_Success(t *testing.T) {
	path := writeManifest(t, healthyManifest)

	out, err := execute(t, "run", "-f", path, "--json")
	require.NoError(t, err)

	var summary runSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 3, summary.Completed)
	assert.Equal(t, 1, summary.Retries)
	assert.Empty(t, summary.Blocked)

	order := make([]string, 0, len(summary.Items))
	for _, it := range summary.Items {
		order = append(order, it.ID)
		assert.Equal(t, string(queue.StatusCompleted), it.Status, it.ID)
	}
	assert.Equal(t, []string{"customers", "orders", "invoices"}, order)
}

func TestRunCommand_Incomplete(t *testing.T) {
	path := writeManifest(t, brokenManifest)

	out, err := execute(t, "run", "-f", path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRunIncomplete))
	assert.Contains(t, err.Error(), "1 failed")
	assert.Contains(t, err.Error(), "1 blocked")

	assert.Contains(t, out, "AUTHENTICATION")
	assert.Contains(t, out, queue.ReasonDependencyFailed)
	assert.Contains(t, out, "1 completed, 1 failed")
}

func TestRunCommand_MissingManifest(t *testing.T) {
	_, err := execute(t, "run", "-f", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestOutput_Table(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutput(&buf, false)

	out.Table([]string{"ID", "STATUS"}, [][]string{
		{"customers", "COMPLETED"},
		{"orders", "FAILED"},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.True(t, strings.HasPrefix(lines[1], "--"))
	assert.Contains(t, lines[3], "FAILED")
}

func TestOutput_JSONSkipsLines(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutput(&buf, true)

	out.Line("ignored %d", 1)
	out.Print([]string{"ID"}, [][]string{{"a"}}, map[string]int{"a": 1})

	assert.JSONEq(t, `{"a": 1}`, buf.String())
}
