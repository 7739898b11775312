package query

import (
	"context"
	"fmt"
	"time"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/shared"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/store"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/task"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET VERIFICATION QUEUE QUERY
// Задания, ожидающие проверки учителем, от старых к новым.
// ══════════════════════════════════════════════════════════════════════════════

// GetVerificationQueueQuery содержит параметры запроса.
type GetVerificationQueueQuery struct {
	TeacherID string `validate:"required"`

	// Limit - максимум записей (по умолчанию 50, максимум 200).
	Limit int `validate:"min=0"`
}

// Validate проверяет корректность параметров запроса.
func (q *GetVerificationQueueQuery) Validate() error {
	if err := validateQuery("GetVerificationQueue", q); err != nil {
		return err
	}
	if q.Limit == 0 {
		q.Limit = 50
	}
	if q.Limit > 200 {
		q.Limit = 200
	}
	return nil
}

// PendingTaskDTO - строка очереди проверки.
type PendingTaskDTO struct {
	TaskID       string    `json:"task_id"`
	TaskTitle    string    `json:"task_title"`
	StudentID    string    `json:"student_id"`
	DateAssigned time.Time `json:"date_assigned"`
	Points       int       `json:"points"`
	ImageURLs    []string  `json:"image_urls"`
}

// GetVerificationQueueResult - ответ на запрос.
type GetVerificationQueueResult struct {
	TeacherID string           `json:"teacher_id"`
	Items     []PendingTaskDTO `json:"items"`
	Total     int              `json:"total"`
}

// GetVerificationQueueHandler обрабатывает запрос.
type GetVerificationQueueHandler struct {
	uow     store.UnitOfWork
	catalog task.Catalog
	links   task.EvidenceLinker
}

// NewGetVerificationQueueHandler создаёт обработчик.
// links подписывает ссылки на фото при каждом чтении; nil отдаёт их как есть.
func NewGetVerificationQueueHandler(uow store.UnitOfWork, catalog task.Catalog, links task.EvidenceLinker) *GetVerificationQueueHandler {
	return &GetVerificationQueueHandler{uow: uow, catalog: catalog, links: links}
}

// Handle выполняет запрос.
func (h *GetVerificationQueueHandler) Handle(ctx context.Context, q GetVerificationQueueQuery) (*GetVerificationQueueResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_verification_queue: %w", err)
	}

	var rows []*task.Progress
	err := h.uow.Do(ctx, func(ctx context.Context, repos store.Repositories) error {
		var err error
		rows, err = repos.Tasks.ListPendingByTeacher(ctx, q.TeacherID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get_verification_queue: %w", err)
	}

	result := &GetVerificationQueueResult{
		TeacherID: q.TeacherID,
		Items:     make([]PendingTaskDTO, 0, min(len(rows), q.Limit)),
		Total:     len(rows),
	}

	titles := make(map[string]*task.Task)
	for _, p := range rows {
		if len(result.Items) >= q.Limit {
			break
		}
		t, ok := titles[p.TaskID]
		if !ok {
			t, err = h.catalog.GetTask(ctx, p.TaskID)
			// Задание могли убрать из каталога, строку всё равно показываем.
			if err != nil && !shared.IsNotFound(err) {
				return nil, fmt.Errorf("get_verification_queue: %w", err)
			}
			titles[p.TaskID] = t
		}

		urls, err := h.viewURLs(ctx, p.ImageURLs)
		if err != nil {
			return nil, fmt.Errorf("get_verification_queue: %w", err)
		}

		dto := PendingTaskDTO{
			TaskID:       p.TaskID,
			StudentID:    p.StudentID,
			DateAssigned: p.DateAssigned,
			ImageURLs:    urls,
		}
		if t != nil {
			dto.TaskTitle = t.Title
			dto.Points = t.Points
		}
		result.Items = append(result.Items, dto)
	}
	return result, nil
}

func (h *GetVerificationQueueHandler) viewURLs(ctx context.Context, stored []string) ([]string, error) {
	if h.links == nil {
		return stored, nil
	}
	out := make([]string, 0, len(stored))
	for _, ref := range stored {
		u, err := h.links.SignURL(ctx, ref)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}
