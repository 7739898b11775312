// Package http serves the worker's liveness and readiness probes.
// The engine has no public HTTP API; this server only reports whether the
// process and its datastores are usable and how event delivery is doing.
package http

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH CHECKS
// ══════════════════════════════════════════════════════════════════════════════

// CheckFunc performs a single check. A non-nil error marks it unhealthy.
type CheckFunc func(ctx context.Context) error

// Pinger is implemented by the pgx connection and the Redis cache.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck adapts a Pinger.
func PingCheck(p Pinger) CheckFunc {
	return p.Ping
}

// Status is the aggregated probe result.
type Status struct {
	Healthy   bool                   `json:"healthy"`
	Message   string                 `json:"message,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Uptime    string                 `json:"uptime,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
}

// CheckResult is the outcome of one check.
type CheckResult struct {
	Healthy  bool   `json:"healthy"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// HealthChecker runs named checks concurrently, each under its own timeout.
type HealthChecker struct {
	mu        sync.RWMutex
	checks    map[string]CheckFunc
	startTime time.Time
	version   string
	timeout   time.Duration
}

// NewHealthChecker creates a checker with no checks.
func NewHealthChecker(version string, timeout time.Duration) *HealthChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthChecker{
		checks:    make(map[string]CheckFunc),
		startTime: time.Now(),
		version:   version,
		timeout:   timeout,
	}
}

// AddCheck registers or replaces a named check.
func (c *HealthChecker) AddCheck(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Check runs every check and aggregates the results.
func (c *HealthChecker) Check(ctx context.Context) Status {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	status := Status{
		Healthy:   true,
		Checks:    make(map[string]CheckResult, len(checks)),
		Uptime:    time.Since(c.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
		Version:   c.version,
	}
	if len(checks) == 0 {
		status.Message = "no checks registered"
		return status
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for name, check := range checks {
		wg.Add(1)
		go func(name string, check CheckFunc) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			start := time.Now()
			err := check(checkCtx)
			result := CheckResult{
				Healthy:  err == nil,
				Message:  "OK",
				Duration: time.Since(start).Round(time.Millisecond).String(),
			}
			if err != nil {
				result.Message = err.Error()
			}

			mu.Lock()
			status.Checks[name] = result
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()

	var failed []string
	for name, r := range status.Checks {
		if !r.Healthy {
			failed = append(failed, name)
		}
	}
	if len(failed) == 0 {
		status.Message = "all checks passed"
		return status
	}
	sort.Strings(failed)
	status.Healthy = false
	status.Message = "failed: " + strings.Join(failed, ", ")
	return status
}
