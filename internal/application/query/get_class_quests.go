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
// GET CLASS QUESTS QUERY
// Текущие квесты класса в недельном окне вместе с данными каталога.
// ══════════════════════════════════════════════════════════════════════════════

// GetClassQuestsQuery содержит параметры запроса.
type GetClassQuestsQuery struct {
	ClassID string `validate:"required"`
}

// ClassQuestDTO - квест класса для отображения.
type ClassQuestDTO struct {
	QuestID         string    `json:"quest_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Type            string    `json:"type"`
	Points          int       `json:"points"`
	AmountCompleted int       `json:"amount_completed"`
	TotalAmount     int       `json:"total_amount_to_complete"`
	Completed       bool      `json:"completed"`
	DateAssigned    time.Time `json:"date_assigned"`

	// DaysLeft - сколько дней осталось до конца окна (0 для завершённых).
	DaysLeft int `json:"days_left"`
}

// GetClassQuestsResult - ответ на запрос.
type GetClassQuestsResult struct {
	ClassID   string          `json:"class_id"`
	Completed []ClassQuestDTO `json:"completed"`
	Active    []ClassQuestDTO `json:"active"`
}

// GetClassQuestsHandler обрабатывает запрос.
type GetClassQuestsHandler struct {
	uow    store.UnitOfWork
	engine *progress.Engine
	clock  timeutil.Clock
}

// NewGetClassQuestsHandler создаёт обработчик.
func NewGetClassQuestsHandler(uow store.UnitOfWork, engine *progress.Engine, clock timeutil.Clock) *GetClassQuestsHandler {
	if clock == nil {
		clock = timeutil.NewSystemClock(time.UTC)
	}
	return &GetClassQuestsHandler{uow: uow, engine: engine, clock: clock}
}

// Handle выполняет запрос.
func (h *GetClassQuestsHandler) Handle(ctx context.Context, q GetClassQuestsQuery) (*GetClassQuestsResult, error) {
	if err := validateQuery("GetClassQuests", q); err != nil {
		return nil, fmt.Errorf("get_class_quests: %w", err)
	}

	today := timeutil.Today(h.clock)
	var view *quest.ClassQuestsView
	err := h.uow.Do(ctx, func(ctx context.Context, repos store.Repositories) error {
		var err error
		view, err = h.engine.Quests.View(ctx, repos, q.ClassID, today)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get_class_quests: %w", err)
	}

	window := h.engine.Config.WindowDays
	result := &GetClassQuestsResult{
		ClassID:   q.ClassID,
		Completed: make([]ClassQuestDTO, 0, len(view.Completed)),
		Active:    make([]ClassQuestDTO, 0, len(view.Active)),
	}
	for _, aq := range view.Completed {
		result.Completed = append(result.Completed, toClassQuestDTO(aq, today, window))
	}
	for _, aq := range view.Active {
		result.Active = append(result.Active, toClassQuestDTO(aq, today, window))
	}
	return result, nil
}

func toClassQuestDTO(aq quest.AssignedQuest, today time.Time, window int) ClassQuestDTO {
	dto := ClassQuestDTO{
		QuestID:         aq.Quest.ID,
		Title:           aq.Quest.Title,
		Description:     aq.Quest.Description,
		Type:            aq.Quest.Type.String(),
		Points:          aq.Quest.Points,
		AmountCompleted: aq.Progress.AmountCompleted,
		TotalAmount:     aq.Quest.TotalAmountToComplete,
		Completed:       aq.Progress.Completed,
		DateAssigned:    aq.Progress.DateAssigned,
	}
	if !aq.Progress.Completed {
		if left := window - timeutil.DaysBetween(aq.Progress.DateAssigned, today); left > 0 {
			dto.DaysLeft = left
		}
	}
	return dto
}
