package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RecyclifyApp/Backend-sub000/internal/application/command"
	"github.com/RecyclifyApp/Backend-sub000/internal/application/progress"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/quest"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/shared"
	"github.com/RecyclifyApp/Backend-sub000/internal/infrastructure/persistence/memory"
	"github.com/RecyclifyApp/Backend-sub000/pkg/timeutil"
)

var today = timeutil.Date(2024, time.May, 20, time.UTC)

func testCatalog() *memory.Catalog {
	return memory.NewCatalog([]quest.Quest{
		{ID: "q1", Title: "Bottles", Type: "recycling", TotalAmountToComplete: 10, Points: 50},
		{ID: "q2", Title: "Cans", Type: "recycling", TotalAmountToComplete: 10, Points: 50},
		{ID: "q3", Title: "Peels", Type: "composting", TotalAmountToComplete: 5, Points: 30},
		{ID: "q4", Title: "Lights", Type: "energy", TotalAmountToComplete: 7, Points: 40},
	}, nil)
}

func TestRegenerateStaleQuestsJob_RefreshesStaleClasses(t *testing.T) {
	st := memory.NewStore()
	catalog := testCatalog()
	clock := timeutil.NewFixedClock(today.Add(9 * time.Hour))

	// c1: window expired ten days ago. c2: still fresh.
	st.PutQuestProgress(*quest.NewProgress("q1", "c1", "teacher-1", today.AddDate(0, 0, -10)))
	st.PutQuestProgress(*quest.NewProgress("q2", "c2", "teacher-2", today.AddDate(0, 0, -2)))

	engine := progress.NewEngine(catalog, catalog, progress.DefaultConfig(), nil)
	refresher := command.NewRefreshClassQuestsHandler(command.Dependencies{
		UnitOfWork: st,
		Engine:     engine,
		Clock:      clock,
	}, nil)

	job := NewRegenerateStaleQuestsJob(st, refresher, clock, nil, DefaultRegenerateStaleQuestsConfig())
	require.NoError(t, job.Run(context.Background()))

	stats := job.LastStats()
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.ClassesFound)
	assert.Equal(t, 1, stats.ClassesChanged)

	rows := st.QuestProgressRows("c1")
	require.Len(t, rows, 3)
	for _, r := range rows {
		assert.True(t, timeutil.IsSameDay(today, r.DateAssigned))
		assert.Equal(t, "teacher-1", r.TeacherID)
		assert.Zero(t, r.AmountCompleted)
	}

	fresh := st.QuestProgressRows("c2")
	require.Len(t, fresh, 1)
	assert.Equal(t, "q2", fresh[0].QuestID)

	// Second run finds nothing.
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 0, job.LastStats().ClassesFound)
}

type fakeRefresher struct {
	err   error
	calls []command.RefreshClassQuestsCommand
}

func (f *fakeRefresher) Handle(_ context.Context, cmd command.RefreshClassQuestsCommand) (*command.RefreshClassQuestsResult, error) {
	f.calls = append(f.calls, cmd)
	if f.err != nil {
		return nil, f.err
	}
	return &command.RefreshClassQuestsResult{Changed: true}, nil
}

func TestRegenerateStaleQuestsJob_SkipsLockedClasses(t *testing.T) {
	st := memory.NewStore()
	clock := timeutil.NewFixedClock(today)
	st.PutQuestProgress(*quest.NewProgress("q1", "c1", "teacher-1", today.AddDate(0, 0, -8)))

	refresher := &fakeRefresher{err: shared.ErrRegenerationLocked}
	job := NewRegenerateStaleQuestsJob(st, refresher, clock, nil, DefaultRegenerateStaleQuestsConfig())

	require.NoError(t, job.Run(context.Background()))
	assert.Len(t, refresher.calls, 1)
	assert.Equal(t, 1, job.LastStats().ClassesSkipped)
}

func TestRegenerateStaleQuestsJob_ReportsFailures(t *testing.T) {
	st := memory.NewStore()
	clock := timeutil.NewFixedClock(today)
	st.PutQuestProgress(*quest.NewProgress("q1", "c1", "teacher-1", today.AddDate(0, 0, -8)))
	st.PutQuestProgress(*quest.NewProgress("q1", "c2", "teacher-2", today.AddDate(0, 0, -9)))

	boom := errors.New("boom")
	refresher := &fakeRefresher{err: boom}
	job := NewRegenerateStaleQuestsJob(st, refresher, clock, nil, DefaultRegenerateStaleQuestsConfig())

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	// Non-retryable: one call per class.
	assert.Len(t, refresher.calls, 2)
	assert.Equal(t, "c1", refresher.calls[0].ClassID)
	assert.Equal(t, "teacher-2", refresher.calls[1].TeacherID)
}

func TestRegenerateStaleQuestsJob_RetriesUnavailableStorage(t *testing.T) {
	st := memory.NewStore()
	clock := timeutil.NewFixedClock(today)
	st.PutQuestProgress(*quest.NewProgress("q1", "c1", "teacher-1", today.AddDate(0, 0, -8)))

	refresher := &fakeRefresher{err: shared.WrapError("memory", "Do", shared.ErrStorageUnavailable, "down", context.DeadlineExceeded)}
	job := NewRegenerateStaleQuestsJob(st, refresher, clock, nil, DefaultRegenerateStaleQuestsConfig())

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.True(t, shared.IsStorageUnavailable(err))
	assert.Len(t, refresher.calls, 3)
}

func TestRegenerateStaleQuestsJob_Metadata(t *testing.T) {
	job := NewRegenerateStaleQuestsJob(memory.NewStore(), &fakeRefresher{}, nil, nil, RegenerateStaleQuestsConfig{})
	assert.Equal(t, "regenerate_stale_quests", job.Name())
	assert.NotEmpty(t, job.Description())
	assert.Nil(t, job.LastStats())
}
