package messaging

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/shared"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func syncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{Logger: discard, EnableMetrics: true})
}

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		AttemptTimeout: time.Second,
	}
}

func TestInMemoryEventBus_Sync(t *testing.T) {
	bus := syncBus()

	var typed, all []shared.EventType
	require.NoError(t, bus.Subscribe(shared.EventTaskVerified, func(e shared.Event) error {
		typed = append(typed, e.EventType())
		return errors.New("ignored")
	}))
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		all = append(all, e.EventType())
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewTaskVerifiedEvent("s1", "t1", "teacher")))
	require.NoError(t, bus.Publish(shared.NewTaskRejectedEvent("s1", "t1", "teacher", "")))

	assert.Equal(t, []shared.EventType{shared.EventTaskVerified}, typed)
	assert.Equal(t, []shared.EventType{shared.EventTaskVerified, shared.EventTaskRejected}, all)

	snap := bus.Metrics().Snapshot()
	assert.EqualValues(t, 2, snap.TotalPublished)
	assert.EqualValues(t, 3, snap.TotalHandlerExecs)
	assert.EqualValues(t, 1, snap.HandlerFailures)
}

func TestInMemoryEventBus_PanicIsContained(t *testing.T) {
	bus := syncBus()
	require.NoError(t, bus.Subscribe(shared.EventTaskVerified, func(shared.Event) error {
		panic("boom")
	}))

	assert.NotPanics(t, func() {
		require.NoError(t, bus.Publish(shared.NewTaskVerifiedEvent("s1", "t1", "teacher")))
	})
	assert.EqualValues(t, 1, bus.Metrics().Snapshot().HandlerFailures)
}

func TestInMemoryEventBus_AsyncDrain(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 2, Logger: discard})

	var handled atomic.Int32
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		time.Sleep(5 * time.Millisecond)
		handled.Add(1)
		return nil
	}))

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(shared.NewTaskVerifiedEvent("s1", "t1", "teacher")))
	}
	bus.Drain()
	assert.EqualValues(t, 5, handled.Load())

	require.NoError(t, bus.Close())
	assert.ErrorIs(t, bus.Publish(shared.NewTaskVerifiedEvent("s1", "t1", "teacher")), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventTaskVerified, func(shared.Event) error { return nil }), ErrEventBusClosed)
	assert.NoError(t, bus.Close())
}

func TestInMemoryEventBus_RejectsNil(t *testing.T) {
	bus := syncBus()
	assert.Error(t, bus.Subscribe(shared.EventTaskVerified, nil))
	assert.Error(t, bus.SubscribeAll(nil))
	assert.Error(t, bus.Publish(nil))
}

func TestDispatcher_RoutesByType(t *testing.T) {
	bus := syncBus()
	d := NewDispatcher(DispatcherConfig{Bus: bus, RetryConfig: fastRetry(), Logger: discard})

	var mu sync.Mutex
	var calls []string
	record := func(name string) shared.EventHandler {
		return func(shared.Event) error {
			mu.Lock()
			defer mu.Unlock()
			calls = append(calls, name)
			return nil
		}
	}

	require.NoError(t, d.Route(shared.EventTaskVerified, Route{Name: "first", Handler: record("first")}))
	require.NoError(t, d.Route(shared.EventTaskVerified, Route{Name: "second", Handler: record("second")}))
	require.NoError(t, d.Route(shared.EventQuestCompleted, Route{Name: "quest", Handler: record("quest")}))
	require.NoError(t, d.Start())

	require.NoError(t, bus.Publish(shared.NewTaskVerifiedEvent("s1", "t1", "teacher")))
	assert.Equal(t, []string{"first", "second"}, calls)

	require.NoError(t, bus.Publish(shared.NewTaskRejectedEvent("s1", "t1", "teacher", "")))
	assert.Len(t, calls, 2, "no route for rejected tasks")
}

func TestDispatcher_RouteValidation(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{Logger: discard})

	assert.Error(t, d.Route(shared.EventTaskVerified, Route{Name: "x"}))
	assert.Error(t, d.Route(shared.EventTaskVerified, Route{Handler: func(shared.Event) error { return nil }}))
	assert.Error(t, d.Start(), "no bus")
	assert.Nil(t, d.DeadLetterQueue())
}

func TestDispatcher_RetriesThenSucceeds(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{RetryConfig: fastRetry(), DeadLetterQueueSize: 10, Logger: discard})

	attempts := 0
	require.NoError(t, d.Route(shared.EventTaskVerified, Route{
		Name: "flaky",
		Handler: func(shared.Event) error {
			attempts++
			if attempts < 3 {
				return errors.New("redis blip")
			}
			return nil
		},
	}))

	require.NoError(t, d.Dispatch(shared.NewTaskVerifiedEvent("s1", "t1", "teacher")))
	assert.Equal(t, 3, attempts)
	assert.Zero(t, d.DeadLetterQueue().Size())
}

func TestDispatcher_DeadLettersExhaustedHandler(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{RetryConfig: fastRetry(), DeadLetterQueueSize: 10, Logger: discard})

	boom := errors.New("leaderboard down")
	attempts := 0
	require.NoError(t, d.Route(shared.EventStudentPointsAwarded, Route{
		Name:        "class_leaderboard",
		MaxAttempts: 2,
		Handler: func(shared.Event) error {
			attempts++
			return boom
		},
	}))
	okCalls := 0
	require.NoError(t, d.Route(shared.EventStudentPointsAwarded, Route{
		Name:    "audit",
		Handler: func(shared.Event) error { okCalls++; return nil },
	}))

	event := shared.NewStudentPointsAwardedEvent("s1", "c1", "t-bottles", 10, 10, 10)
	err := d.Dispatch(event)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 1, okCalls, "other routes still run")

	entries := d.DeadLetterQueue().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "class_leaderboard", entries[0].HandlerName)
	assert.Equal(t, 2, entries[0].Attempts)
	assert.ErrorIs(t, entries[0].Error, boom)
	assert.Equal(t, event, entries[0].Event)
}

func TestDispatcher_RecoveryMiddleware(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{RetryConfig: fastRetry(), DeadLetterQueueSize: 10, Logger: discard})
	d.Use(RecoveryMiddleware(discard))
	d.Use(LoggingMiddleware(discard))

	require.NoError(t, d.Route(shared.EventQuestCompleted, Route{
		Name:        "panicky",
		MaxAttempts: 1,
		Handler:     func(shared.Event) error { panic("nil map") },
	}))

	err := d.Dispatch(shared.NewQuestCompletedEvent("c1", "q1", "Quest", "t1", "s1", 10))
	require.ErrorIs(t, err, ErrHandlerPanic)
	assert.Equal(t, 1, d.DeadLetterQueue().Size())
}

func TestDispatcher_AttemptTimeout(t *testing.T) {
	cfg := fastRetry()
	cfg.AttemptTimeout = 10 * time.Millisecond
	d := NewDispatcher(DispatcherConfig{RetryConfig: cfg, Logger: discard})

	release := make(chan struct{})
	defer close(release)
	require.NoError(t, d.Route(shared.EventTaskVerified, Route{
		Name:        "slow",
		MaxAttempts: 1,
		Handler: func(shared.Event) error {
			<-release
			return nil
		},
	}))

	err := d.Dispatch(shared.NewTaskVerifiedEvent("s1", "t1", "teacher"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestDispatcher_StopCancelsRetries(t *testing.T) {
	cfg := fastRetry()
	cfg.MaxAttempts = 5
	cfg.InitialBackoff = time.Hour
	cfg.MaxBackoff = time.Hour
	d := NewDispatcher(DispatcherConfig{RetryConfig: cfg, Logger: discard})

	attempts := 0
	require.NoError(t, d.Route(shared.EventTaskVerified, Route{
		Name:    "failing",
		Handler: func(shared.Event) error { attempts++; return errors.New("down") },
	}))

	d.Stop()
	err := d.Dispatch(shared.NewTaskVerifiedEvent("s1", "t1", "teacher"))
	require.Error(t, err)
	assert.Zero(t, attempts, "a stopped dispatcher does not start new attempts")
}

func TestDeadLetterQueue_Bounded(t *testing.T) {
	q := NewDeadLetterQueue(2)
	q.Add(DeadLetterEntry{HandlerName: "a"})
	q.Add(DeadLetterEntry{HandlerName: "b"})
	q.Add(DeadLetterEntry{HandlerName: "c"})

	assert.Equal(t, 2, q.Size())

	first, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "b", first.HandlerName)

	second, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "c", second.HandlerName)

	_, ok = q.Pop()
	assert.False(t, ok)
}
