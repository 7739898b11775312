package eventhandler

import (
	"context"
	"log/slog"
	"time"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/ledger"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/shared"
)

// OnPointsAwardedHandler поддерживает рейтинг класса.
// Рейтинг - производные данные: при сбое запись теряется до пересборки,
// журнал очков остаётся источником истины.
type OnPointsAwardedHandler struct {
	board   ledger.Leaderboard
	timeout time.Duration
	logger  *slog.Logger
}

// NewOnPointsAwardedHandler создаёт обработчик.
func NewOnPointsAwardedHandler(board ledger.Leaderboard, logger *slog.Logger) *OnPointsAwardedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnPointsAwardedHandler{
		board:   board,
		timeout: 2 * time.Second,
		logger:  logger.With("handler", "on_points_awarded"),
	}
}

// Handle реализует shared.EventHandler.
func (h *OnPointsAwardedHandler) Handle(event shared.Event) error {
	e, ok := event.(shared.StudentPointsAwardedEvent)
	if !ok {
		return nil
	}
	if e.ClassID == "" || e.Points == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if err := h.board.Increment(ctx, e.ClassID, e.StudentID, e.Points); err != nil {
		h.logger.Warn("leaderboard update failed",
			"class_id", e.ClassID,
			"student_id", e.StudentID,
			"error", err,
		)
		return err
	}
	return nil
}
