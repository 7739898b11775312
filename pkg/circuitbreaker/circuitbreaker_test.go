package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

var errDown = errors.New("down")

func fail(context.Context) error { return errDown }

func ok(context.Context) error { return nil }

func TestCircuitBreaker_Lifecycle(t *testing.T) {
	c := &clock{now: time.Date(2024, time.May, 20, 9, 0, 0, 0, time.UTC)}
	var transitions []string
	cb := New("sender",
		WithFailureThreshold(2),
		WithSuccessThreshold(2),
		WithTimeout(time.Minute),
		WithMaxHalfOpenRequests(2),
		WithClock(c.Now),
		WithOnStateChange(func(_ string, from, to State) {
			transitions = append(transitions, from.String()+">"+to.String())
		}),
	)
	ctx := context.Background()

	assert.ErrorIs(t, cb.Execute(ctx, fail), errDown)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, fail), errDown)
	assert.Equal(t, StateOpen, cb.State())

	calls := 0
	err := cb.Execute(ctx, func(context.Context) error { calls++; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Zero(t, calls)

	c.now = c.now.Add(time.Minute)
	require.NoError(t, cb.Execute(ctx, ok))
	assert.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Execute(ctx, ok))
	assert.Equal(t, StateClosed, cb.State())

	assert.Equal(t, []string{"closed>open", "open>half-open", "half-open>closed"}, transitions)
	assert.Equal(t, 4, cb.counts.Requests)
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	c := &clock{now: time.Date(2024, time.May, 20, 9, 0, 0, 0, time.UTC)}
	cb := New("assets", WithFailureThreshold(1), WithTimeout(time.Second), WithClock(c.Now))
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	c.now = c.now.Add(2 * time.Second)

	assert.ErrorIs(t, cb.Execute(ctx, fail), errDown)
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, ok), ErrCircuitOpen)
}

func TestCircuitBreaker_IsFailure(t *testing.T) {
	ignored := errors.New("not found")
	cb := New("sender", WithFailureThreshold(1), WithIsFailure(func(err error) bool {
		return !errors.Is(err, ignored)
	}))

	assert.ErrorIs(t, cb.Execute(context.Background(), func(context.Context) error { return ignored }), ignored)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 1, cb.counts.TotalSuccesses)
}

func TestPresets(t *testing.T) {
	n := NotificationBreaker(3, time.Minute, nil)
	assert.Equal(t, "notification-sender", n.config.Name)
	assert.Equal(t, 3, n.config.FailureThreshold)
	assert.Equal(t, time.Minute, n.config.Timeout)

	a := AssetStoreBreaker(nil)
	assert.Equal(t, "asset-store", a.config.Name)
	assert.Equal(t, 3, a.config.FailureThreshold)
}
