// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/RecyclifyApp/Backend-sub000/internal/application/progress"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/quest"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/store"
	"github.com/RecyclifyApp/Backend-sub000/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOMMEND QUESTS QUERY
// Подбирает квесты для класса по истории завершённых квестов.
// Сначала самый редкий тип, затем квесты с общими словами в описании.
// ══════════════════════════════════════════════════════════════════════════════

// RecommendQuestsQuery содержит параметры запроса рекомендаций.
type RecommendQuestsQuery struct {
	// ClassID - класс, для которого подбираются квесты.
	ClassID string `validate:"required"`

	// Count - сколько квестов вернуть (по умолчанию 3, максимум 50).
	Count int `validate:"min=0"`

	// ExcludeActive - не предлагать квесты, уже назначенные классу в текущем окне.
	ExcludeActive bool
}

// Validate проверяет корректность параметров запроса.
func (q *RecommendQuestsQuery) Validate(defaultCount int) error {
	if err := validateQuery("RecommendQuests", q); err != nil {
		return err
	}
	if q.Count == 0 {
		q.Count = defaultCount
	}
	if q.Count > 50 {
		q.Count = 50
	}
	return nil
}

// RecommendQuestsResult - упорядоченный список рекомендаций.
// Пустой список - нормальный результат (каталог исчерпан).
type RecommendQuestsResult struct {
	ClassID string        `json:"class_id"`
	Quests  []quest.Quest `json:"quests"`
}

// RecommendQuestsHandler обрабатывает запрос рекомендаций.
type RecommendQuestsHandler struct {
	uow    store.UnitOfWork
	engine *progress.Engine
	clock  timeutil.Clock
}

// NewRecommendQuestsHandler создаёт обработчик.
func NewRecommendQuestsHandler(uow store.UnitOfWork, engine *progress.Engine, clock timeutil.Clock) *RecommendQuestsHandler {
	if clock == nil {
		clock = timeutil.NewSystemClock(time.UTC)
	}
	return &RecommendQuestsHandler{uow: uow, engine: engine, clock: clock}
}

// Handle выполняет запрос.
func (h *RecommendQuestsHandler) Handle(ctx context.Context, q RecommendQuestsQuery) (*RecommendQuestsResult, error) {
	if err := q.Validate(h.engine.Config.DefaultRecommendations); err != nil {
		return nil, fmt.Errorf("recommend_quests: %w", err)
	}

	result := &RecommendQuestsResult{ClassID: q.ClassID}
	err := h.uow.Do(ctx, func(ctx context.Context, repos store.Repositories) error {
		var exclude []string
		if q.ExcludeActive {
			view, err := h.engine.Quests.View(ctx, repos, q.ClassID, timeutil.Today(h.clock))
			if err != nil {
				return err
			}
			for _, aq := range view.All() {
				exclude = append(exclude, aq.Quest.ID)
			}
		}

		quests, err := h.engine.Recommender.ForClass(ctx, repos.Ledger, q.ClassID, q.Count, exclude)
		if err != nil {
			return err
		}
		result.Quests = quests
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("recommend_quests: %w", err)
	}
	return result, nil
}
