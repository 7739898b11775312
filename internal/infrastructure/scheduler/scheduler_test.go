package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name  string
	err   error
	calls atomic.Int32
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "test job " + j.name }

func (j *countingJob) Run(_ context.Context) error {
	j.calls.Add(1)
	return j.err
}

func TestScheduler_Register(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())

	assert.ErrorIs(t, s.Register(nil, "@daily"), ErrNilJob)
	assert.ErrorIs(t, s.Register(&countingJob{name: "a"}, ""), ErrNilSchedule)
	assert.ErrorIs(t, s.Register(&countingJob{name: "a"}, "not a cron"), ErrInvalidSchedule)

	require.NoError(t, s.Register(&countingJob{name: "a"}, "0 6 * * MON"))
	assert.ErrorIs(t, s.Register(&countingJob{name: "a"}, "@hourly"), ErrJobAlreadyExists)

	require.NoError(t, s.Register(&countingJob{name: "b"}, "@every 1h"))
	jobs := s.ListJobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "a", jobs[0].Name)
	assert.Equal(t, "0 6 * * MON", jobs[0].Schedule)

	require.NoError(t, s.Unregister("b"))
	assert.ErrorIs(t, s.Unregister("b"), ErrJobNotFound)
	assert.Len(t, s.ListJobs(), 1)
}

func TestScheduler_RunNow(t *testing.T) {
	s := NewScheduler(SchedulerConfig{MaxHistorySize: 2})

	ok := &countingJob{name: "ok"}
	bad := &countingJob{name: "bad", err: errors.New("boom")}
	require.NoError(t, s.Register(ok, "@daily"))
	require.NoError(t, s.Register(bad, "@daily"))

	var failed []string
	s.OnJobError(func(name string, _ error) { failed = append(failed, name) })

	res, err := s.RunNow(context.Background(), "ok")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.Manual)

	_, err = s.RunNow(context.Background(), "bad")
	assert.EqualError(t, err, "boom")
	_, err = s.RunNow(context.Background(), "ok")
	require.NoError(t, err)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	assert.Equal(t, int32(2), ok.calls.Load())
	assert.Equal(t, []string{"bad"}, failed)

	history := s.GetHistory(0)
	require.Len(t, history, 2)
	assert.Equal(t, "bad", history[0].JobName)
	assert.Equal(t, "ok", history[1].JobName)

	snap := s.GetMetrics().Snapshot()
	assert.Equal(t, int64(3), snap.TotalExecutions)
	assert.Equal(t, int64(1), snap.TotalFailures)
	assert.InDelta(t, 2.0/3.0, snap.SuccessRate, 0.001)

	for _, info := range s.ListJobs() {
		if info.Name == "bad" {
			assert.Equal(t, int64(1), info.FailCount)
			require.NotNil(t, info.LastResult)
			assert.False(t, info.LastResult.Success)
		}
	}
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())
	require.NoError(t, s.Register(&countingJob{name: "a"}, "@daily"))

	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.False(t, jobs[0].NextRun.IsZero())

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
}
