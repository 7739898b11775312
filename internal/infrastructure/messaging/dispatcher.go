package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/shared"
	"github.com/RecyclifyApp/Backend-sub000/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCHER
// ══════════════════════════════════════════════════════════════════════════════

// Dispatcher routes events from a bus to named handlers. A failing handler is
// retried with backoff; once its attempts run out the event is parked in the
// dead letter queue so it can be inspected or replayed.
type Dispatcher struct {
	bus         shared.EventSubscriber
	routes      map[shared.EventType][]Route
	middlewares []Middleware
	retryConfig RetryConfig
	deadLetters *DeadLetterQueue
	logger      *slog.Logger
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

// Route is one handler registered for an event type.
type Route struct {
	Name    string
	Handler shared.EventHandler

	// MaxAttempts counts the first call. 1 disables retries.
	// Zero means RetryConfig.MaxAttempts.
	MaxAttempts int

	// Timeout bounds a single attempt. Zero means RetryConfig.AttemptTimeout.
	Timeout time.Duration
}

// RetryConfig contains the handler retry policy.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	AttemptTimeout time.Duration
}

// DefaultRetryConfig returns the default handler retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		AttemptTimeout: 30 * time.Second,
	}
}

// DispatcherConfig contains configuration for the Dispatcher.
type DispatcherConfig struct {
	// Bus delivers the events.
	Bus shared.EventSubscriber

	RetryConfig RetryConfig

	// DeadLetterQueueSize caps parked events. Zero disables the queue.
	DeadLetterQueueSize int

	Logger *slog.Logger
}

// NewDispatcher creates a new event dispatcher.
func NewDispatcher(config DispatcherConfig) *Dispatcher {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	defaults := DefaultRetryConfig()
	if config.RetryConfig.MaxAttempts <= 0 {
		config.RetryConfig.MaxAttempts = defaults.MaxAttempts
	}
	if config.RetryConfig.InitialBackoff <= 0 {
		config.RetryConfig.InitialBackoff = defaults.InitialBackoff
	}
	if config.RetryConfig.MaxBackoff <= 0 {
		config.RetryConfig.MaxBackoff = defaults.MaxBackoff
	}
	if config.RetryConfig.AttemptTimeout <= 0 {
		config.RetryConfig.AttemptTimeout = defaults.AttemptTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Dispatcher{
		bus:         config.Bus,
		routes:      make(map[shared.EventType][]Route),
		retryConfig: config.RetryConfig,
		logger:      config.Logger.With("component", "dispatcher"),
		ctx:         ctx,
		cancel:      cancel,
	}
	if config.DeadLetterQueueSize > 0 {
		d.deadLetters = NewDeadLetterQueue(config.DeadLetterQueueSize)
	}
	return d
}

// Route registers a handler for an event type.
func (d *Dispatcher) Route(eventType shared.EventType, route Route) error {
	if route.Handler == nil {
		return errors.New("handler cannot be nil")
	}
	if route.Name == "" {
		return errors.New("handler name is required")
	}
	if route.MaxAttempts <= 0 {
		route.MaxAttempts = d.retryConfig.MaxAttempts
	}
	if route.Timeout <= 0 {
		route.Timeout = d.retryConfig.AttemptTimeout
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.routes[eventType] = append(d.routes[eventType], route)
	d.logger.Debug("registered handler",
		"event_type", eventType,
		"handler_name", route.Name,
		"max_attempts", route.MaxAttempts,
	)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// Middleware wraps handler execution.
type Middleware func(shared.EventHandler) shared.EventHandler

// Use adds middleware to the dispatcher. The first added runs outermost.
func (d *Dispatcher) Use(middleware Middleware) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.middlewares = append(d.middlewares, middleware)
}

// RecoveryMiddleware turns a handler panic into an error, so the attempt
// is retried and dead-lettered like any other failure.
func RecoveryMiddleware(logger *slog.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("handler panic recovered",
						"event_type", event.EventType(),
						"panic", r,
						"stack", string(debug.Stack()),
					)
					err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
				}
			}()
			return next(event)
		}
	}
}

// LoggingMiddleware logs handler execution.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) error {
			start := time.Now()
			err := next(event)
			duration := time.Since(start)

			if err != nil {
				logger.Warn("handler attempt failed",
					"event_type", event.EventType(),
					"aggregate_id", event.AggregateID(),
					"duration", duration,
					"error", err,
				)
			} else {
				logger.Debug("handler completed",
					"event_type", event.EventType(),
					"aggregate_id", event.AggregateID(),
					"duration", duration,
				)
			}
			return err
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENT DISPATCHING
// ══════════════════════════════════════════════════════════════════════════════

// Start subscribes the dispatcher to every event on the bus.
func (d *Dispatcher) Start() error {
	if d.bus == nil {
		return errors.New("dispatcher has no bus")
	}
	return d.bus.SubscribeAll(d.Dispatch)
}

// Dispatch runs every route of the event type in registration order.
// It returns the joined errors of routes that exhausted their attempts.
func (d *Dispatcher) Dispatch(event shared.Event) error {
	d.mu.RLock()
	routes := d.routes[event.EventType()]
	middlewares := d.middlewares
	d.mu.RUnlock()

	var errs []error
	for _, route := range routes {
		if err := d.execute(event, route, middlewares); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) execute(event shared.Event, route Route, middlewares []Middleware) error {
	handler := route.Handler
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}

	attempts := 0
	err := retry.New(
		retry.WithMaxAttempts(route.MaxAttempts),
		retry.WithInitialDelay(d.retryConfig.InitialBackoff),
		retry.WithMaxDelay(d.retryConfig.MaxBackoff),
		retry.WithRetryIf(func(error) bool { return true }),
	).Do(d.ctx, func(ctx context.Context) error {
		attempts++
		return d.attempt(ctx, handler, event, route.Timeout)
	})
	if err == nil {
		return nil
	}

	if d.deadLetters != nil {
		d.deadLetters.Add(DeadLetterEntry{
			Event:       event,
			HandlerName: route.Name,
			Error:       err,
			Attempts:    attempts,
			FailedAt:    time.Now(),
		})
	}
	d.logger.Error("handler gave up",
		"handler", route.Name,
		"event_type", event.EventType(),
		"attempts", attempts,
		"error", err,
	)
	return fmt.Errorf("handler %s failed after %d attempts: %w", route.Name, attempts, err)
}

func (d *Dispatcher) attempt(ctx context.Context, handler shared.EventHandler, event shared.Event, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- handler(event)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("handler timeout after %v", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop cancels pending retries. Handlers that are running finish on their own.
func (d *Dispatcher) Stop() {
	d.cancel()
	d.logger.Info("dispatcher stopped")
}

// DeadLetterQueue returns the dead letter queue, nil when disabled.
func (d *Dispatcher) DeadLetterQueue() *DeadLetterQueue {
	return d.deadLetters
}

// ══════════════════════════════════════════════════════════════════════════════
// DEAD LETTER QUEUE
// ══════════════════════════════════════════════════════════════════════════════

// DeadLetterEntry is an event a handler could not process.
type DeadLetterEntry struct {
	Event       shared.Event
	HandlerName string
	Error       error
	Attempts    int
	FailedAt    time.Time
}

// DeadLetterQueue is a bounded FIFO. When full, the oldest entry is dropped.
type DeadLetterQueue struct {
	mu      sync.Mutex
	entries []DeadLetterEntry
	maxSize int
}

// NewDeadLetterQueue creates a queue holding up to maxSize entries.
func NewDeadLetterQueue(maxSize int) *DeadLetterQueue {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &DeadLetterQueue{
		entries: make([]DeadLetterEntry, 0, min(maxSize, 64)),
		maxSize: maxSize,
	}
}

// Add appends an entry.
func (q *DeadLetterQueue) Add(entry DeadLetterEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.maxSize {
		q.entries = q.entries[1:]
	}
	q.entries = append(q.entries, entry)
}

// Entries returns a copy of the queue.
func (q *DeadLetterQueue) Entries() []DeadLetterEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]DeadLetterEntry, len(q.entries))
	copy(out, q.entries)
	return out
}

// Size returns the number of parked entries.
func (q *DeadLetterQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Pop removes and returns the oldest entry.
func (q *DeadLetterQueue) Pop() (DeadLetterEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return DeadLetterEntry{}, false
	}
	entry := q.entries[0]
	q.entries = q.entries[1:]
	return entry, true
}
