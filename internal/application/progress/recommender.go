package progress

import (
	"context"
	"fmt"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/ledger"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/quest"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/recommendation"
)

// Recommender feeds a class's completion history and the catalog into the
// pure recommendation algorithm.
type Recommender struct {
	catalog quest.Catalog
}

// NewRecommender creates a Recommender over the quest catalog.
func NewRecommender(catalog quest.Catalog) *Recommender {
	return &Recommender{catalog: catalog}
}

// ForClass recommends up to count quests for the class.
// Quests listed in exclude (currently assigned to the class) are never returned.
func (r *Recommender) ForClass(
	ctx context.Context,
	repo ledger.Repository,
	classID string,
	count int,
	exclude []string,
) ([]quest.Quest, error) {
	completedIDs, err := repo.CompletedQuestIDs(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("load completed quests: %w", err)
	}

	catalog, err := r.catalog.ListQuests(ctx, quest.Filter{})
	if err != nil {
		return nil, fmt.Errorf("load quest catalog: %w", err)
	}

	byID := make(map[string]quest.Quest, len(catalog))
	for _, q := range catalog {
		byID[q.ID] = q
	}

	completed := make([]quest.Quest, 0, len(completedIDs))
	for _, id := range completedIDs {
		// A quest dropped from the catalog no longer shapes recommendations.
		if q, ok := byID[id]; ok {
			completed = append(completed, q)
		}
	}

	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	pool := make([]quest.Quest, 0, len(catalog))
	for _, q := range catalog {
		if _, ok := skip[q.ID]; !ok {
			pool = append(pool, q)
		}
	}

	return recommendation.Recommend(completed, pool, count), nil
}
