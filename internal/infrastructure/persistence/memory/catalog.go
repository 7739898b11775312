package memory

import (
	"context"
	"sync"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/quest"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/shared"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/task"
)

// Catalog is an in-memory quest and task catalog.
type Catalog struct {
	mu     sync.RWMutex
	quests map[string]quest.Quest
	tasks  map[string]task.Task
}

// NewCatalog creates a catalog preloaded with the given records.
func NewCatalog(quests []quest.Quest, tasks []task.Task) *Catalog {
	c := &Catalog{
		quests: make(map[string]quest.Quest, len(quests)),
		tasks:  make(map[string]task.Task, len(tasks)),
	}
	for _, q := range quests {
		c.quests[q.ID] = q
	}
	for _, t := range tasks {
		c.tasks[t.ID] = t
	}
	return c
}

// PutQuest adds or replaces a quest.
func (c *Catalog) PutQuest(q quest.Quest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quests[q.ID] = q
}

// PutTask adds or replaces a task.
func (c *Catalog) PutTask(t task.Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks[t.ID] = t
}

// GetQuest implements quest.Catalog.
func (c *Catalog) GetQuest(_ context.Context, questID string) (*quest.Quest, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.quests[questID]
	if !ok {
		return nil, shared.ErrQuestNotFound
	}
	return &q, nil
}

// ListQuests implements quest.Catalog.
func (c *Catalog) ListQuests(_ context.Context, filter quest.Filter) ([]quest.Quest, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]quest.Quest, 0, len(c.quests))
	for _, q := range c.quests {
		if filter.Matches(q) {
			out = append(out, q)
		}
	}
	quest.SortByID(out)
	return out, nil
}

// GetTask implements task.Catalog.
func (c *Catalog) GetTask(_ context.Context, taskID string) (*task.Task, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tasks[taskID]
	if !ok {
		return nil, shared.ErrTaskNotFound
	}
	return &t, nil
}

var (
	_ quest.Catalog = (*Catalog)(nil)
	_ task.Catalog  = (*Catalog)(nil)
)
