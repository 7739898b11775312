package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/quest"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/task"
)

// Seed is the catalog file format.
type Seed struct {
	Quests []quest.Quest `json:"quests"`
	Tasks  []task.Task   `json:"tasks"`
}

// Writer stores catalog records.
type Writer interface {
	UpsertQuest(ctx context.Context, q quest.Quest) error
	UpsertTask(ctx context.Context, t task.Task) error
}

// LoadSeed reads a catalog file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog seed: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse catalog seed %s: %w", path, err)
	}
	return &seed, nil
}

// Apply upserts quests before tasks, so every task's quest exists.
// Tasks pointing at a quest missing from the file are rejected.
func (s *Seed) Apply(ctx context.Context, w Writer) error {
	known := make(map[string]struct{}, len(s.Quests))
	for _, q := range s.Quests {
		if err := w.UpsertQuest(ctx, q); err != nil {
			return fmt.Errorf("quest %s: %w", q.ID, err)
		}
		known[q.ID] = struct{}{}
	}
	for _, t := range s.Tasks {
		if _, ok := known[t.QuestID]; !ok {
			return fmt.Errorf("task %s: unknown quest %q", t.ID, t.QuestID)
		}
		if err := w.UpsertTask(ctx, t); err != nil {
			return fmt.Errorf("task %s: %w", t.ID, err)
		}
	}
	return nil
}
