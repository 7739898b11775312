// Package circuitbreaker stops calling a failing collaborator for a while
// after repeated errors, then probes it again before fully reopening traffic.
// Guards notification delivery and the asset store.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State of the breaker.
type State int

const (
	// StateClosed lets every call through.
	StateClosed State = iota
	// StateOpen rejects calls until the cool-down passes.
	StateOpen
	// StateHalfOpen lets a few probe calls through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var (
	// ErrCircuitOpen is returned while the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests is returned when all half-open probe slots are taken.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// Config holds breaker settings.
type Config struct {
	Name string

	// FailureThreshold consecutive failures open the breaker. Default: 5.
	FailureThreshold int

	// SuccessThreshold consecutive half-open successes close it. Default: 2.
	SuccessThreshold int

	// Timeout is the open-state cool-down. Default: 30s.
	Timeout time.Duration

	// MaxHalfOpenRequests limits concurrent probes. Default: 1.
	MaxHalfOpenRequests int

	OnStateChange func(name string, from, to State)

	// IsFailure decides which errors count. Nil counts every error.
	IsFailure func(error) bool

	// Now is the time source. Nil means time.Now.
	Now func() time.Time
}

// DefaultConfig returns default settings for a named breaker.
func DefaultConfig(name string) Config {
	return Config{
		Name:                name,
		FailureThreshold:    5,
		SuccessThreshold:    2,
		Timeout:             30 * time.Second,
		MaxHalfOpenRequests: 1,
		Now:                 time.Now,
	}
}

// Option configures a breaker.
type Option func(*Config)

// WithFailureThreshold sets the failures needed to open.
func WithFailureThreshold(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.FailureThreshold = n
		}
	}
}

// WithSuccessThreshold sets the probe successes needed to close.
func WithSuccessThreshold(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.SuccessThreshold = n
		}
	}
}

// WithTimeout sets the open-state cool-down.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.Timeout = d
		}
	}
}

// WithMaxHalfOpenRequests sets the probe limit.
func WithMaxHalfOpenRequests(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxHalfOpenRequests = n
		}
	}
}

// WithOnStateChange registers a transition hook.
func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(c *Config) {
		c.OnStateChange = fn
	}
}

// WithIsFailure sets the failure predicate.
func WithIsFailure(fn func(error) bool) Option {
	return func(c *Config) {
		c.IsFailure = fn
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Config) {
		if now != nil {
			c.Now = now
		}
	}
}

// Counts are the breaker statistics.
type Counts struct {
	Requests             int
	TotalSuccesses       int
	TotalFailures        int
	ConsecutiveSuccesses int
	ConsecutiveFailures  int
}

// CircuitBreaker is safe for concurrent use.
type CircuitBreaker struct {
	config Config

	mu          sync.Mutex
	state       State
	counts      Counts
	openedAt    time.Time
	probesInUse int
}

// New creates a closed breaker.
func New(name string, opts ...Option) *CircuitBreaker {
	config := DefaultConfig(name)
	for _, opt := range opts {
		opt(&config)
	}
	return &CircuitBreaker{config: config, state: StateClosed}
}

// Execute calls fn unless the breaker rejects it, and records the result.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if cb.config.Now().Sub(cb.openedAt) < cb.config.Timeout {
			return ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
		cb.probesInUse = 1
		return nil
	case StateHalfOpen:
		if cb.probesInUse >= cb.config.MaxHalfOpenRequests {
			return ErrTooManyRequests
		}
		cb.probesInUse++
		return nil
	default:
		return ErrCircuitOpen
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.counts.Requests++

	failed := err != nil
	if failed && cb.config.IsFailure != nil {
		failed = cb.config.IsFailure(err)
	}

	if !failed {
		cb.counts.TotalSuccesses++
		cb.counts.ConsecutiveSuccesses++
		cb.counts.ConsecutiveFailures = 0
		if cb.state == StateHalfOpen {
			if cb.probesInUse > 0 {
				cb.probesInUse--
			}
			if cb.counts.ConsecutiveSuccesses >= cb.config.SuccessThreshold {
				cb.transition(StateClosed)
			}
		}
		return
	}

	cb.counts.TotalFailures++
	cb.counts.ConsecutiveFailures++
	cb.counts.ConsecutiveSuccesses = 0

	switch cb.state {
	case StateClosed:
		if cb.counts.ConsecutiveFailures >= cb.config.FailureThreshold {
			cb.transition(StateOpen)
		}
	case StateHalfOpen:
		// A failed probe reopens immediately.
		cb.transition(StateOpen)
	}
}

// transition must be called with mu held.
func (cb *CircuitBreaker) transition(to State) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	cb.counts.ConsecutiveSuccesses = 0
	cb.counts.ConsecutiveFailures = 0
	cb.probesInUse = 0
	if to == StateOpen {
		cb.openedAt = cb.config.Now()
	}
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, from, to)
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// NotificationBreaker guards the delivery provider.
func NotificationBreaker(failures int, cooldown time.Duration, onStateChange func(name string, from, to State)) *CircuitBreaker {
	return New(
		"notification-sender",
		WithFailureThreshold(failures),
		WithSuccessThreshold(1),
		WithTimeout(cooldown),
		WithMaxHalfOpenRequests(1),
		WithOnStateChange(onStateChange),
	)
}

// AssetStoreBreaker guards presigned URL generation.
func AssetStoreBreaker(onStateChange func(name string, from, to State)) *CircuitBreaker {
	return New(
		"asset-store",
		WithFailureThreshold(3),
		WithSuccessThreshold(2),
		WithTimeout(20*time.Second),
		WithMaxHalfOpenRequests(1),
		WithOnStateChange(onStateChange),
	)
}
