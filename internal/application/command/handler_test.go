package command

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/RecyclifyApp/Backend-sub000/internal/application/progress"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/notification"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/quest"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/shared"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/task"
	"github.com/RecyclifyApp/Backend-sub000/internal/infrastructure/persistence/memory"
	"github.com/RecyclifyApp/Backend-sub000/pkg/timeutil"
)

var today = timeutil.Date(2024, time.May, 20, time.UTC)

func daysAgo(n int) time.Time {
	return today.AddDate(0, 0, -n)
}

// capturePublisher records published events.
type capturePublisher struct {
	mu     sync.Mutex
	events []shared.Event
	err    error
}

func (p *capturePublisher) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *capturePublisher) types() []shared.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]shared.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

func (p *capturePublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

type env struct {
	store     *memory.Store
	catalog   *memory.Catalog
	publisher *capturePublisher
	deps      Dependencies
}

func newEnv() *env {
	st := memory.NewStore()
	st.AddStudent(notification.StudentContact{StudentID: "s1", DisplayName: "Aru"}, "c1")
	st.AddStudent(notification.StudentContact{StudentID: "s2", DisplayName: "Dana"}, "c1")

	catalog := memory.NewCatalog(
		[]quest.Quest{
			{ID: "q-bottles", Title: "Bottle drive", Description: "Collect plastic bottles", Points: 100, Type: "recycling", TotalAmountToComplete: 10},
			{ID: "q-cans", Title: "Can crusher", Description: "Collect aluminium cans", Points: 50, Type: "recycling", TotalAmountToComplete: 5},
			{ID: "q-peels", Title: "Peel patrol", Description: "Compost fruit peels", Points: 80, Type: "composting", TotalAmountToComplete: 8},
		},
		[]task.Task{
			{ID: "t-bottles", Title: "Bring five bottles", Points: 10, QuestContribution: 5, QuestID: "q-bottles"},
			{ID: "t-cans", Title: "Crush a bag of cans", Points: 15, QuestContribution: 20, QuestID: "q-cans"},
			{ID: "t-peels", Title: "Compost lunch peels", Points: 5, QuestContribution: 2, QuestID: "q-peels"},
		},
	)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	publisher := &capturePublisher{}

	return &env{
		store:     st,
		catalog:   catalog,
		publisher: publisher,
		deps: Dependencies{
			UnitOfWork: st,
			Engine:     progress.NewEngine(catalog, catalog, progress.DefaultConfig(), logger),
			Publisher:  publisher,
			Clock:      timeutil.NewFixedClock(today.Add(10 * time.Hour)),
			Logger:     logger,
		},
	}
}

func (e *env) pendingTask(studentID, taskID string, assigned time.Time) {
	e.store.PutTaskProgress(*task.NewProgress(taskID, studentID, "t1", assigned))
}

func (e *env) questRow(questID string, day time.Time, amount int, completed bool) {
	e.store.PutQuestProgress(quest.Progress{
		QuestID:         questID,
		ClassID:         "c1",
		DateAssigned:    day,
		AmountCompleted: amount,
		Completed:       completed,
		TeacherID:       "t1",
	})
}

func (e *env) questRowFor(questID string) *quest.Progress {
	for _, p := range e.store.QuestProgressRows("c1") {
		if p.QuestID == questID {
			p := p
			return &p
		}
	}
	return nil
}

// stubLocker returns err from Acquire and counts releases.
type stubLocker struct {
	err      error
	acquired int
	released int
}

func (l *stubLocker) Acquire(context.Context, string) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.acquired++
	return func() { l.released++ }, nil
}

// stubAssets maps file names to URLs.
type stubAssets struct {
	err error
}

func (a stubAssets) GetFileURL(_ context.Context, name string) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	if name == "" {
		return "", errors.New("empty name")
	}
	return "https://assets.example.com/" + name, nil
}
