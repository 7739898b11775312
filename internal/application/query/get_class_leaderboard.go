package query

import (
	"context"
	"fmt"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/ledger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CLASS LEADERBOARD QUERY
// Рейтинг учеников класса. Читается из кэша рейтинга, а не из журнала.
// ══════════════════════════════════════════════════════════════════════════════

// GetClassLeaderboardQuery содержит параметры запроса.
type GetClassLeaderboardQuery struct {
	ClassID string `validate:"required"`

	// Limit - количество записей (по умолчанию 10, максимум 100).
	Limit int `validate:"min=0"`
}

// Validate проверяет корректность параметров запроса.
func (q *GetClassLeaderboardQuery) Validate() error {
	if err := validateQuery("GetClassLeaderboard", q); err != nil {
		return err
	}
	if q.Limit == 0 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	return nil
}

// GetClassLeaderboardResult - ответ на запрос.
type GetClassLeaderboardResult struct {
	ClassID string                 `json:"class_id"`
	Entries []ledger.RankedStudent `json:"entries"`
}

// GetClassLeaderboardHandler обрабатывает запрос.
type GetClassLeaderboardHandler struct {
	board ledger.Leaderboard
}

// NewGetClassLeaderboardHandler создаёт обработчик.
func NewGetClassLeaderboardHandler(board ledger.Leaderboard) *GetClassLeaderboardHandler {
	return &GetClassLeaderboardHandler{board: board}
}

// Handle выполняет запрос.
func (h *GetClassLeaderboardHandler) Handle(ctx context.Context, q GetClassLeaderboardQuery) (*GetClassLeaderboardResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_class_leaderboard: %w", err)
	}

	entries, err := h.board.Top(ctx, q.ClassID, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("get_class_leaderboard: %w", err)
	}
	return &GetClassLeaderboardResult{ClassID: q.ClassID, Entries: entries}, nil
}
