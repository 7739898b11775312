package progress

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/notification"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/quest"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/recommendation"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/store"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/task"
	"github.com/RecyclifyApp/Backend-sub000/internal/infrastructure/persistence/memory"
	"github.com/RecyclifyApp/Backend-sub000/pkg/timeutil"
)

var today = timeutil.Date(2024, time.May, 20, time.UTC)

func daysAgo(n int) time.Time {
	return today.AddDate(0, 0, -n)
}

func testQuests() []quest.Quest {
	return []quest.Quest{
		{ID: "q-bottles", Title: "Bottle drive", Description: "Collect plastic bottles", Points: 100, Type: "recycling", TotalAmountToComplete: 10},
		{ID: "q-cans", Title: "Can crusher", Description: "Collect aluminium cans", Points: 50, Type: "recycling", TotalAmountToComplete: 5},
		{ID: "q-peels", Title: "Peel patrol", Description: "Compost fruit peels", Points: 80, Type: "composting", TotalAmountToComplete: 8},
	}
}

func testTasks() []task.Task {
	return []task.Task{
		{ID: "t-bottles", Title: "Bring five bottles", Points: 10, QuestContribution: 5, QuestID: "q-bottles"},
		{ID: "t-cans", Title: "Crush a bag of cans", Points: 15, QuestContribution: 20, QuestID: "q-cans"},
		{ID: "t-peels", Title: "Compost lunch peels", Points: 5, QuestContribution: 2, QuestID: "q-peels"},
	}
}

type fixture struct {
	store   *memory.Store
	catalog *memory.Catalog
	engine  *Engine
}

func newFixture() *fixture {
	st := memory.NewStore()
	st.AddStudent(notification.StudentContact{StudentID: "s1", DisplayName: "Aru"}, "c1")
	catalog := memory.NewCatalog(testQuests(), testTasks())
	return &fixture{
		store:   st,
		catalog: catalog,
		engine:  NewEngine(catalog, catalog, DefaultConfig(), nil),
	}
}

func (f *fixture) do(t *testing.T, fn store.TxFunc) error {
	t.Helper()
	return f.store.Do(context.Background(), fn)
}

func (f *fixture) questRow(questID string, day time.Time, amount int, completed bool) {
	f.store.PutQuestProgress(quest.Progress{
		QuestID:         questID,
		ClassID:         "c1",
		DateAssigned:    day,
		AmountCompleted: amount,
		Completed:       completed,
		TeacherID:       "t1",
	})
}

func TestNewEngine_DefaultsZeroConfig(t *testing.T) {
	catalog := memory.NewCatalog(nil, nil)
	engine := NewEngine(catalog, catalog, Config{}, nil)

	assert.Equal(t, quest.WindowDays, engine.Config.WindowDays)
	assert.Equal(t, recommendation.DefaultCount, engine.Config.DefaultRecommendations)
	require.NotNil(t, engine.Ledger)
	require.NotNil(t, engine.Tasks)
	require.NotNil(t, engine.Quests)
	require.NotNil(t, engine.Recommender)
}

func TestQuestTracker_WindowStart(t *testing.T) {
	f := newFixture()
	assert.Equal(t, daysAgo(7), f.engine.Quests.WindowStart(today))
}
