// Package manifest loads batch manifests: queue settings plus the items to run
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jzx17/syncqueue/internal/simulate"
	"github.com/jzx17/syncqueue/pkg/queue"
	"github.com/jzx17/syncqueue/pkg/retry"
)

var (
	// ErrNoItems indicates a manifest without items
	ErrNoItems = errors.New("manifest has no items")

	// ErrDuplicateID indicates two items share an id
	ErrDuplicateID = errors.New("duplicate item id")

	// ErrUnknownDependency indicates a dependency on an id not in the manifest
	ErrUnknownDependency = errors.New("unknown dependency")

	// ErrDependencyCycle indicates items that depend on each other
	ErrDependencyCycle = errors.New("dependency cycle")

	// ErrInvalidItem indicates a malformed item entry
	ErrInvalidItem = errors.New("invalid item")
)

// Retry condition names
const (
	RetryAlways    = "always"
	RetryRetryable = "retryable"
)

// Manifest is the root of a manifest file
type Manifest struct {
	Queue QueueSettings `yaml:"queue"`
	Items []Item        `yaml:"items"`
}

// QueueSettings mirrors queue.Config; zero values keep the queue defaults
type QueueSettings struct {
	MaxConcurrency int           `yaml:"max_concurrency"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	BackoffFactor  float64       `yaml:"backoff_factor"`
	MaxRetryDelay  time.Duration `yaml:"max_retry_delay"`
	Timeout        time.Duration `yaml:"timeout"`
	BatchDelay     time.Duration `yaml:"batch_delay"`
	RetryCondition string        `yaml:"retry_condition"`
}

// Item is one manifest entry
type Item struct {
	ID         string            `yaml:"id"`
	Priority   string            `yaml:"priority"`
	MaxRetries int               `yaml:"max_retries"`
	DependsOn  []string          `yaml:"depends_on"`
	Metadata   map[string]string `yaml:"metadata"`
	Simulate   simulate.Behavior `yaml:"simulate"`
}

// Load reads, expands and validates a manifest file
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return Parse(data)
}

// Parse expands environment variables in data, decodes it strictly and validates it
func Parse(data []byte) (*Manifest, error) {
	expanded := os.ExpandEnv(string(data))

	decoder := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	decoder.KnownFields(true)

	var m Manifest
	if err := decoder.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return &m, nil
}

// Validate checks the settings and the dependency graph. All problems are
// reported together.
func (m *Manifest) Validate() error {
	var errs []error

	errs = append(errs, m.Queue.validate()...)

	if len(m.Items) == 0 {
		return errors.Join(append(errs, ErrNoItems)...)
	}

	ids := make(map[string]bool, len(m.Items))
	for i, it := range m.Items {
		id := it.ID
		if strings.TrimSpace(id) == "" {
			errs = append(errs, fmt.Errorf("%w: item %d has no id", ErrInvalidItem, i))
			continue
		}
		if strings.TrimSpace(id) != id {
			errs = append(errs, fmt.Errorf("%w: item %d id %q has surrounding whitespace", ErrInvalidItem, i, id))
		}
		if ids[id] {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateID, id))
		}
		ids[id] = true

		if _, err := queue.ParsePriority(it.Priority); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %v", ErrInvalidItem, id, err))
		}
		if it.MaxRetries < 0 {
			errs = append(errs, fmt.Errorf("%w: %s: max_retries cannot be negative", ErrInvalidItem, id))
		}
	}

	for _, it := range m.Items {
		for _, dep := range it.DependsOn {
			if !ids[dep] {
				errs = append(errs, fmt.Errorf("%w: %s depends on %s", ErrUnknownDependency, it.ID, dep))
			}
		}
	}

	if cycle := m.findCycle(); cycle != nil {
		errs = append(errs, fmt.Errorf("%w: %s", ErrDependencyCycle, strings.Join(cycle, " -> ")))
	}

	return errors.Join(errs...)
}

func (s QueueSettings) validate() []error {
	var errs []error
	if s.MaxConcurrency < 0 {
		errs = append(errs, errors.New("queue.max_concurrency cannot be negative"))
	}
	if s.MaxRetries < 0 {
		errs = append(errs, errors.New("queue.max_retries cannot be negative"))
	}
	if s.BackoffFactor < 0 {
		errs = append(errs, errors.New("queue.backoff_factor cannot be negative"))
	}
	if s.RetryDelay < 0 || s.MaxRetryDelay < 0 || s.Timeout < 0 || s.BatchDelay < 0 {
		errs = append(errs, errors.New("queue durations cannot be negative"))
	}
	switch s.RetryCondition {
	case "", RetryAlways, RetryRetryable:
	default:
		errs = append(errs, fmt.Errorf("queue.retry_condition must be %q or %q, got %q", RetryAlways, RetryRetryable, s.RetryCondition))
	}
	return errs
}

// findCycle returns one dependency cycle as a closed path, or nil
func (m *Manifest) findCycle() []string {
	deps := make(map[string][]string, len(m.Items))
	for _, it := range m.Items {
		deps[it.ID] = it.DependsOn
	}

	const (
		unvisited = iota
		visiting
		visited
	)
	state := make(map[string]int, len(deps))
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		state[id] = visiting
		stack = append(stack, id)

		for _, dep := range deps[id] {
			if _, known := deps[dep]; !known {
				continue
			}
			switch state[dep] {
			case visiting:
				for i, s := range stack {
					if s == dep {
						return append(append([]string(nil), stack[i:]...), dep)
					}
				}
			case unvisited:
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[id] = visited
		return nil
	}

	for _, it := range m.Items {
		if state[it.ID] == unvisited {
			if cycle := visit(it.ID); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// Levels groups item ids into dependency levels: level 0 has no
// dependencies, level n depends only on earlier levels. Ids within a level
// are sorted. The manifest must be valid.
func (m *Manifest) Levels() [][]string {
	remaining := make(map[string][]string, len(m.Items))
	for _, it := range m.Items {
		remaining[it.ID] = it.DependsOn
	}

	done := make(map[string]bool, len(remaining))
	var levels [][]string
	for len(remaining) > 0 {
		var level []string
		for id, deps := range remaining {
			ready := true
			for _, dep := range deps {
				if !done[dep] {
					ready = false
					break
				}
			}
			if ready {
				level = append(level, id)
			}
		}
		if len(level) == 0 {
			break
		}

		sort.Strings(level)
		for _, id := range level {
			done[id] = true
			delete(remaining, id)
		}
		levels = append(levels, level)
	}
	return levels
}

// Apply copies non-zero settings onto config
func Apply[P, R any](s QueueSettings, config *queue.Config[P, R]) {
	if s.MaxConcurrency > 0 {
		config.MaxConcurrency = s.MaxConcurrency
	}
	if s.MaxRetries > 0 {
		config.MaxRetries = s.MaxRetries
	}
	if s.RetryDelay > 0 {
		config.RetryDelay = s.RetryDelay
	}
	if s.BackoffFactor > 0 {
		config.BackoffFactor = s.BackoffFactor
	}
	if s.MaxRetryDelay > 0 {
		config.MaxRetryDelay = s.MaxRetryDelay
	}
	if s.Timeout > 0 {
		config.Timeout = s.Timeout
	}
	if s.BatchDelay > 0 {
		config.BatchDelay = s.BatchDelay
	}
	if s.RetryCondition == RetryRetryable {
		config.RetryCondition = retry.RetryableOnly
	}
}

// WorkItems converts the manifest entries into queue items
func (m *Manifest) WorkItems() []queue.WorkItem[simulate.Behavior, string] {
	items := make([]queue.WorkItem[simulate.Behavior, string], 0, len(m.Items))
	for _, it := range m.Items {
		priority, _ := queue.ParsePriority(it.Priority)

		var metadata map[string]any
		if len(it.Metadata) > 0 {
			metadata = make(map[string]any, len(it.Metadata))
			for k, v := range it.Metadata {
				metadata[k] = v
			}
		}

		items = append(items, queue.WorkItem[simulate.Behavior, string]{
			ID:           it.ID,
			Payload:      it.Simulate,
			Priority:     priority,
			MaxRetries:   it.MaxRetries,
			Dependencies: it.DependsOn,
			Metadata:     metadata,
		})
	}
	return items
}
