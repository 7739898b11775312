package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/quest"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/shared"
)

func activeIDs(view *quest.ClassQuestsView) []string {
	ids := make([]string, 0, len(view.Active))
	for _, a := range view.Active {
		ids = append(ids, a.Quest.ID)
	}
	return ids
}

func TestRegenerateClassQuestsHandler_ReplacesUncompleted(t *testing.T) {
	e := newEnv()
	e.questRow("q-bottles", daysAgo(2), 10, true)
	e.questRow("q-cans", daysAgo(2), 3, false)
	locker := &stubLocker{}

	res, err := NewRegenerateClassQuestsHandler(e.deps, locker).Handle(context.Background(), RegenerateClassQuestsCommand{
		ClassID:   "c1",
		TeacherID: "t1",
	})
	require.NoError(t, err)

	require.Len(t, res.View.Completed, 1)
	assert.Equal(t, []string{"q-peels"}, activeIDs(res.View))
	assert.Equal(t, 1, locker.acquired)
	assert.Equal(t, 1, locker.released)

	require.Len(t, res.Events, 1)
	event := res.Events[0].(shared.QuestRegeneratedEvent)
	assert.Equal(t, shared.RegenerationManual, event.Reason)
	assert.Equal(t, []shared.EventType{shared.EventQuestRegenerated}, e.publisher.types())
}

func TestRegenerateClassQuestsHandler_NothingToRegenerate(t *testing.T) {
	e := newEnv()
	e.questRow("q-bottles", daysAgo(2), 10, true)
	locker := &stubLocker{}

	_, err := NewRegenerateClassQuestsHandler(e.deps, locker).Handle(context.Background(), RegenerateClassQuestsCommand{
		ClassID:   "c1",
		TeacherID: "t1",
	})
	require.ErrorIs(t, err, shared.ErrNothingToRegenerate)
	assert.Equal(t, 1, locker.released, "lock is released on failure")
	assert.Empty(t, e.publisher.types())
}

func TestRegenerateClassQuestsHandler_Locked(t *testing.T) {
	e := newEnv()
	e.questRow("q-cans", daysAgo(2), 3, false)

	_, err := NewRegenerateClassQuestsHandler(e.deps, &stubLocker{err: shared.ErrRegenerationLocked}).Handle(
		context.Background(),
		RegenerateClassQuestsCommand{ClassID: "c1", TeacherID: "t1"},
	)
	require.ErrorIs(t, err, shared.ErrRegenerationLocked)
	assert.True(t, shared.IsRetryable(err))
	assert.NotNil(t, e.questRowFor("q-cans"))
}

func TestRegenerateClassQuestsHandler_Validation(t *testing.T) {
	e := newEnv()

	_, err := NewRegenerateClassQuestsHandler(e.deps, nil).Handle(context.Background(), RegenerateClassQuestsCommand{
		ClassID:   "c1",
		TeacherID: "t1",
		Count:     -1,
	})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestSeedClassQuestsHandler(t *testing.T) {
	e := newEnv()
	h := NewSeedClassQuestsHandler(e.deps)

	res, err := h.Handle(context.Background(), SeedClassQuestsCommand{ClassID: "c1", TeacherID: "t1"})
	require.NoError(t, err)

	assert.Equal(t, []string{"q-peels", "q-bottles", "q-cans"}, activeIDs(res.View))
	for _, a := range res.View.Active {
		assert.Equal(t, today, a.Progress.DateAssigned)
		assert.Zero(t, a.Progress.AmountCompleted)
	}
	assert.Equal(t, shared.RegenerationSeeded, res.Events[0].(shared.QuestRegeneratedEvent).Reason)

	_, err = h.Handle(context.Background(), SeedClassQuestsCommand{ClassID: "c1", TeacherID: "t1"})
	require.ErrorIs(t, err, shared.ErrClassQuestsExist)
	assert.True(t, shared.IsAlreadyExists(err))
	assert.Len(t, e.store.QuestProgressRows("c1"), 3)
}

func TestSeedClassQuestsHandler_Count(t *testing.T) {
	e := newEnv()

	res, err := NewSeedClassQuestsHandler(e.deps).Handle(context.Background(), SeedClassQuestsCommand{
		ClassID:   "c2",
		TeacherID: "t1",
		Count:     1,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"q-peels"}, activeIDs(res.View))
	assert.Empty(t, e.store.QuestProgressRows("c1"))
}

func TestRefreshClassQuestsHandler(t *testing.T) {
	e := newEnv()
	e.questRow("q-cans", daysAgo(9), 1, false)
	locker := &stubLocker{}
	h := NewRefreshClassQuestsHandler(e.deps, locker)

	res, err := h.Handle(context.Background(), RefreshClassQuestsCommand{ClassID: "c1", TeacherID: "t1"})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, []string{"q-peels", "q-bottles", "q-cans"}, activeIDs(res.View))
	assert.Equal(t, shared.RegenerationScheduled, res.Events[0].(shared.QuestRegeneratedEvent).Reason)

	res, err = h.Handle(context.Background(), RefreshClassQuestsCommand{ClassID: "c1", TeacherID: "t1"})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Len(t, res.View.Active, 3)
	assert.Equal(t, 2, locker.released)
	assert.Len(t, e.publisher.types(), 1)
}
