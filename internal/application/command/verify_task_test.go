package command

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/quest"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/shared"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/task"
)

func verifyCmd(studentID, taskID string) VerifyTaskCommand {
	return VerifyTaskCommand{TeacherID: "t1", StudentID: studentID, TaskID: taskID, CorrelationID: "corr-1"}
}

func TestVerifyTaskHandler_CompletesQuest(t *testing.T) {
	e := newEnv()
	e.pendingTask("s1", "t-bottles", daysAgo(1))
	e.questRow("q-bottles", daysAgo(2), 5, false)

	res, err := NewVerifyTaskHandler(e.deps).Handle(context.Background(), verifyCmd("s1", "t-bottles"))
	require.NoError(t, err)

	assert.Equal(t, "c1", res.ClassID)
	assert.Equal(t, today, res.DateCompleted)
	assert.False(t, res.AlreadyAwarded)
	require.NotNil(t, res.StudentPoints)
	assert.Equal(t, 10, res.StudentPoints.CurrentPoints)
	assert.Equal(t, 10, res.StudentPoints.TotalPoints)
	require.NotNil(t, res.Quest)
	assert.Equal(t, quest.CaseCompleted, res.Quest.Case)
	assert.True(t, res.Quest.ClassPointsAwarded)

	assert.Equal(t, []shared.EventType{
		shared.EventTaskVerified,
		shared.EventStudentPointsAwarded,
		shared.EventQuestCompleted,
		shared.EventClassPointsAwarded,
	}, e.publisher.types())

	verified, ok := e.publisher.events[0].(shared.TaskVerifiedEvent)
	require.True(t, ok)
	assert.Equal(t, "corr-1", verified.CorrelationID)

	sp, _ := e.store.Student("s1")
	assert.Equal(t, 10, sp.TotalPoints)
	require.Len(t, e.store.StudentEntries(), 1)
	assert.Equal(t, today, e.store.StudentEntries()[0].DateCompleted)
	require.Len(t, e.store.ClassEntries(), 1)
	assert.Equal(t, 100, e.store.ClassEntries()[0].PointsAwarded)
	assert.True(t, e.questRowFor("q-bottles").Completed)
}

func TestVerifyTaskHandler_PartialContribution(t *testing.T) {
	e := newEnv()
	e.pendingTask("s1", "t-peels", today)
	e.questRow("q-peels", daysAgo(3), 0, false)

	res, err := NewVerifyTaskHandler(e.deps).Handle(context.Background(), verifyCmd("s1", "t-peels"))
	require.NoError(t, err)

	assert.Equal(t, quest.CasePartial, res.Quest.Case)
	assert.Equal(t, 2, e.questRowFor("q-peels").AmountCompleted)
	assert.Empty(t, e.store.ClassEntries())
	assert.Equal(t, []shared.EventType{shared.EventTaskVerified, shared.EventStudentPointsAwarded}, e.publisher.types())
}

func TestVerifyTaskHandler_SecondVerifyIsRejected(t *testing.T) {
	e := newEnv()
	e.pendingTask("s1", "t-peels", today)
	e.questRow("q-peels", daysAgo(3), 0, false)
	h := NewVerifyTaskHandler(e.deps)

	_, err := h.Handle(context.Background(), verifyCmd("s1", "t-peels"))
	require.NoError(t, err)
	e.publisher.reset()

	_, err = h.Handle(context.Background(), verifyCmd("s1", "t-peels"))
	require.ErrorIs(t, err, shared.ErrAlreadyProcessed)

	assert.Empty(t, e.publisher.types())
	assert.Len(t, e.store.StudentEntries(), 1)
	assert.Equal(t, 2, e.questRowFor("q-peels").AmountCompleted)
}

func TestVerifyTaskHandler_ConcurrentVerifyAwardsOnce(t *testing.T) {
	e := newEnv()
	e.pendingTask("s1", "t-bottles", today)
	e.questRow("q-bottles", daysAgo(1), 0, false)
	h := NewVerifyTaskHandler(e.deps)

	const workers = 2
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.Handle(context.Background(), verifyCmd("s1", "t-bottles"))
		}(i)
	}
	wg.Wait()

	succeeded, processed := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, shared.ErrAlreadyProcessed):
			processed++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, processed)

	sp, _ := e.store.Student("s1")
	assert.Equal(t, 10, sp.TotalPoints)
	assert.Equal(t, 5, e.questRowFor("q-bottles").AmountCompleted)
}

func TestVerifyTaskHandler_TwoStudentsCompleteOnce(t *testing.T) {
	e := newEnv()
	e.pendingTask("s1", "t-bottles", today)
	e.pendingTask("s2", "t-bottles", today)
	e.questRow("q-bottles", daysAgo(1), 5, false)
	h := NewVerifyTaskHandler(e.deps)

	first, err := h.Handle(context.Background(), verifyCmd("s1", "t-bottles"))
	require.NoError(t, err)
	assert.Equal(t, quest.CaseCompleted, first.Quest.Case)

	second, err := h.Handle(context.Background(), verifyCmd("s2", "t-bottles"))
	require.NoError(t, err)
	assert.Equal(t, quest.CaseAlreadyCompleted, second.Quest.Case)
	assert.False(t, second.Quest.ClassPointsAwarded)

	assert.Len(t, e.store.ClassEntries(), 1, "a quest completes exactly once")
	assert.Equal(t, 10, e.questRowFor("q-bottles").AmountCompleted)

	sp, _ := e.store.Student("s2")
	assert.Equal(t, 10, sp.TotalPoints, "the student is still paid for the task")
}

func TestVerifyTaskHandler_ReissuedTaskSameDayIsNotPaidTwice(t *testing.T) {
	e := newEnv()
	e.pendingTask("s1", "t-bottles", daysAgo(1))
	e.questRow("q-bottles", daysAgo(1), 0, false)
	h := NewVerifyTaskHandler(e.deps)

	_, err := h.Handle(context.Background(), verifyCmd("s1", "t-bottles"))
	require.NoError(t, err)

	e.pendingTask("s1", "t-bottles", today)
	e.publisher.reset()

	res, err := h.Handle(context.Background(), verifyCmd("s1", "t-bottles"))
	require.NoError(t, err)

	assert.True(t, res.AlreadyAwarded)
	assert.Nil(t, res.StudentPoints)
	assert.Nil(t, res.Quest)
	assert.Equal(t, task.StatusVerified, res.Progress.Status())
	assert.Equal(t, []shared.EventType{shared.EventTaskVerified}, e.publisher.types())

	sp, _ := e.store.Student("s1")
	assert.Equal(t, 10, sp.TotalPoints)
	assert.Equal(t, 5, e.questRowFor("q-bottles").AmountCompleted, "quest effects are skipped")
}

func TestVerifyTaskHandler_OlderPendingRowIsReachable(t *testing.T) {
	e := newEnv()
	e.pendingTask("s1", "t-peels", daysAgo(2))
	e.pendingTask("s1", "t-peels", daysAgo(1))
	e.questRow("q-peels", daysAgo(3), 0, false)
	h := NewVerifyTaskHandler(e.deps)

	first, err := h.Handle(context.Background(), verifyCmd("s1", "t-peels"))
	require.NoError(t, err)
	assert.Equal(t, daysAgo(1), first.Progress.DateAssigned)

	second, err := h.Handle(context.Background(), verifyCmd("s1", "t-peels"))
	require.NoError(t, err)
	assert.Equal(t, daysAgo(2), second.Progress.DateAssigned)
	assert.True(t, second.AlreadyAwarded, "same completion day")

	for _, row := range e.store.TaskProgressRows() {
		assert.Equal(t, task.StatusVerified, row.Status(), row.DateAssigned)
	}

	_, err = h.Handle(context.Background(), verifyCmd("s1", "t-peels"))
	require.ErrorIs(t, err, shared.ErrAlreadyProcessed)
}

func TestRejectTaskHandler_OlderPendingRowIsReachable(t *testing.T) {
	e := newEnv()
	e.pendingTask("s1", "t-cans", daysAgo(2))
	e.pendingTask("s1", "t-cans", daysAgo(1))
	e.questRow("q-cans", daysAgo(1), 0, false)

	_, err := NewVerifyTaskHandler(e.deps).Handle(context.Background(), verifyCmd("s1", "t-cans"))
	require.NoError(t, err)

	res, err := NewRejectTaskHandler(e.deps).Handle(context.Background(), RejectTaskCommand{
		TeacherID: "t1",
		StudentID: "s1",
		TaskID:    "t-cans",
	})
	require.NoError(t, err)
	assert.Equal(t, daysAgo(2), res.Progress.DateAssigned)
	assert.Equal(t, task.StatusRejected, res.Progress.Status())
}

func TestVerifyTaskHandler_MissingQuestRowRollsBack(t *testing.T) {
	e := newEnv()
	e.pendingTask("s1", "t-bottles", today)

	_, err := NewVerifyTaskHandler(e.deps).Handle(context.Background(), verifyCmd("s1", "t-bottles"))
	require.ErrorIs(t, err, shared.ErrQuestProgressNotFound)

	rows := e.store.TaskProgressRows()
	require.Len(t, rows, 1)
	assert.Equal(t, task.StatusAssigned, rows[0].Status())
	assert.Empty(t, e.store.StudentEntries())
	sp, _ := e.store.Student("s1")
	assert.Zero(t, sp.TotalPoints)
	assert.Empty(t, e.publisher.types())
}

func TestVerifyTaskHandler_StaleQuestIsRegenerated(t *testing.T) {
	e := newEnv()
	e.pendingTask("s1", "t-cans", today)
	e.questRow("q-cans", daysAgo(10), 4, false)
	e.questRow("q-bottles", daysAgo(1), 0, false)

	res, err := NewVerifyTaskHandler(e.deps).Handle(context.Background(), verifyCmd("s1", "t-cans"))
	require.NoError(t, err)

	assert.Equal(t, quest.CaseRegenerated, res.Quest.Case)
	assert.Equal(t, "q-peels", res.Quest.ReplacementQuestID)
	assert.False(t, res.Quest.ContributionSeeded)
	assert.Nil(t, e.questRowFor("q-cans"))
	assert.Contains(t, e.publisher.types(), shared.EventQuestRegenerated)
}

func TestVerifyTaskHandler_Errors(t *testing.T) {
	tests := []struct {
		name    string
		cmd     VerifyTaskCommand
		check   func(error) bool
		setupFn func(e *env)
	}{
		{
			name:  "missing teacher",
			cmd:   VerifyTaskCommand{StudentID: "s1", TaskID: "t-bottles"},
			check: shared.IsValidation,
		},
		{
			name:    "wrong teacher",
			cmd:     VerifyTaskCommand{TeacherID: "t2", StudentID: "s1", TaskID: "t-bottles"},
			check:   func(err error) bool { return errors.Is(err, shared.ErrTaskTeacherMismatch) },
			setupFn: func(e *env) { e.pendingTask("s1", "t-bottles", today) },
		},
		{
			name:  "no progress row",
			cmd:   verifyCmd("s1", "t-bottles"),
			check: shared.IsNotFound,
		},
		{
			name: "unknown student",
			cmd:  verifyCmd("ghost", "t-bottles"),
			check: func(err error) bool {
				return errors.Is(err, shared.ErrStudentNotFound)
			},
			setupFn: func(e *env) { e.pendingTask("ghost", "t-bottles", today) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv()
			if tt.setupFn != nil {
				tt.setupFn(e)
			}

			_, err := NewVerifyTaskHandler(e.deps).Handle(context.Background(), tt.cmd)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
			assert.Empty(t, e.publisher.types())
		})
	}
}

func TestVerifyTaskHandler_CanceledContextIsRetryable(t *testing.T) {
	e := newEnv()
	e.pendingTask("s1", "t-bottles", today)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewVerifyTaskHandler(e.deps).Handle(ctx, verifyCmd("s1", "t-bottles"))
	require.Error(t, err)
	assert.True(t, shared.IsRetryable(err))
}

func TestVerifyTaskHandler_PublishFailureDoesNotFailCommand(t *testing.T) {
	e := newEnv()
	e.pendingTask("s1", "t-peels", today)
	e.questRow("q-peels", today, 0, false)
	e.publisher.err = errors.New("bus closed")

	_, err := NewVerifyTaskHandler(e.deps).Handle(context.Background(), verifyCmd("s1", "t-peels"))
	require.NoError(t, err)
	assert.Len(t, e.store.StudentEntries(), 1)
}
