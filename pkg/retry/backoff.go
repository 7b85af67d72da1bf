// Package retry provides backoff algorithm implementations
package retry

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Jitter bounds applied to every exponential delay
const (
	MinJitter = 0.5
	MaxJitter = 1.0
)

// BackoffStrategy defines the backoff strategy interface
type BackoffStrategy interface {
	// NextDelay calculates the delay before retry number attempt (1-based)
	NextDelay(attempt int) time.Duration
}

// BackoffFunc adapts a plain function to BackoffStrategy
type BackoffFunc func(attempt int) time.Duration

// NextDelay calls f(attempt)
func (f BackoffFunc) NextDelay(attempt int) time.Duration {
	return f(attempt)
}

// BackoffConfig holds the inputs of the exponential delay formula
type BackoffConfig struct {
	// BaseDelay is the delay before the first retry, before jitter
	BaseDelay time.Duration

	// Factor is the growth multiplier per attempt
	Factor float64

	// MaxDelay caps the jittered delay; zero or negative means uncapped
	MaxDelay time.Duration
}

// DefaultBackoffConfig returns the default backoff configuration
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		BaseDelay: time.Second,
		Factor:    2.0,
		MaxDelay:  30 * time.Second,
	}
}

// Delay computes min(BaseDelay * Factor^(attempt-1) * jitter, MaxDelay).
// jitter is clamped to [MinJitter, MaxJitter] and attempt below 1 counts as 1.
func Delay(attempt int, cfg BackoffConfig, jitter float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if cfg.BaseDelay <= 0 {
		return 0
	}
	factor := cfg.Factor
	if factor <= 0 {
		factor = 1
	}
	jitter = math.Max(MinJitter, math.Min(MaxJitter, jitter))

	raw := float64(cfg.BaseDelay) * math.Pow(factor, float64(attempt-1)) * jitter

	limit := float64(math.MaxInt64)
	if cfg.MaxDelay > 0 {
		limit = float64(cfg.MaxDelay)
	}
	if raw >= limit || math.IsInf(raw, 1) || math.IsNaN(raw) {
		if cfg.MaxDelay > 0 {
			return cfg.MaxDelay
		}
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(raw)
}

// ExponentialBackoff implements jittered exponential backoff
type ExponentialBackoff struct {
	config BackoffConfig

	// rnd is nil when the global source is used
	rnd *rand.Rand
	mu  sync.Mutex
}

// NewExponentialBackoff creates an exponential backoff strategy
func NewExponentialBackoff(baseDelay time.Duration, opts ...BackoffOption) *ExponentialBackoff {
	cfg := DefaultBackoffConfig()
	cfg.BaseDelay = baseDelay

	b := &ExponentialBackoff{config: cfg}
	for _, opt := range opts {
		opt(b)
	}

	return b
}

// NextDelay calculates the delay for the next retry
func (b *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	return Delay(attempt, b.config, b.jitter())
}

// Config returns the backoff configuration
func (b *ExponentialBackoff) Config() BackoffConfig {
	return b.config
}

// jitter draws a factor uniformly from [MinJitter, MaxJitter]
func (b *ExponentialBackoff) jitter() float64 {
	var f float64
	if b.rnd != nil {
		b.mu.Lock()
		f = b.rnd.Float64()
		b.mu.Unlock()
	} else {
		f = rand.Float64()
	}
	return MinJitter + f*(MaxJitter-MinJitter)
}

// FixedBackoff returns the same delay for every attempt
type FixedBackoff struct {
	delay time.Duration
}

// NewFixedBackoff creates a fixed backoff strategy
func NewFixedBackoff(delay time.Duration) *FixedBackoff {
	return &FixedBackoff{delay: delay}
}

// NextDelay returns the fixed delay
func (b *FixedBackoff) NextDelay(attempt int) time.Duration {
	if b.delay < 0 {
		return 0
	}
	return b.delay
}

// BackoffOption configures an ExponentialBackoff
type BackoffOption func(*ExponentialBackoff)

// WithBackoffFactor sets the growth multiplier
func WithBackoffFactor(factor float64) BackoffOption {
	return func(b *ExponentialBackoff) {
		if factor > 0 {
			b.config.Factor = factor
		}
	}
}

// WithBackoffMaxDelay sets maximum delay time
func WithBackoffMaxDelay(maxDelay time.Duration) BackoffOption {
	return func(b *ExponentialBackoff) {
		b.config.MaxDelay = maxDelay
	}
}

// WithBackoffSeed makes the jitter sequence deterministic
func WithBackoffSeed(seed int64) BackoffOption {
	return func(b *ExponentialBackoff) {
		b.rnd = rand.New(rand.NewSource(seed))
	}
}
