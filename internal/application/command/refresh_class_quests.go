package command

import (
	"context"
	"fmt"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/quest"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/shared"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/store"
)

// RefreshClassQuestsCommand retires stale quests of a class and tops it up.
// Issued by the scheduler, never by a teacher.
type RefreshClassQuestsCommand struct {
	ClassID   string `validate:"required"`
	TeacherID string `validate:"required"`

	// Target is how many quests the class should have in the window.
	// Zero means the engine's recommendation count.
	Target int `validate:"gte=0,lte=50"`
}

// RefreshClassQuestsResult contains the class view after the refresh.
type RefreshClassQuestsResult struct {
	View *quest.ClassQuestsView

	// Changed is false when nothing was retired or assigned.
	Changed bool
	Events  []shared.Event
}

// RefreshClassQuestsHandler handles RefreshClassQuestsCommand.
type RefreshClassQuestsHandler struct {
	handlerBase
	locker Locker
}

// NewRefreshClassQuestsHandler creates a new RefreshClassQuestsHandler.
func NewRefreshClassQuestsHandler(deps Dependencies, locker Locker) *RefreshClassQuestsHandler {
	if locker == nil {
		locker = NoopLocker{}
	}
	return &RefreshClassQuestsHandler{
		handlerBase: newHandlerBase(deps, "refresh_class_quests"),
		locker:      locker,
	}
}

// Handle executes the refresh command.
func (h *RefreshClassQuestsHandler) Handle(ctx context.Context, cmd RefreshClassQuestsCommand) (*RefreshClassQuestsResult, error) {
	if err := validateCommand("RefreshClassQuests", cmd); err != nil {
		return nil, fmt.Errorf("refresh_class_quests: %w", err)
	}

	target := cmd.Target
	if target == 0 {
		target = h.engine.Config.DefaultRecommendations
	}

	release, err := h.locker.Acquire(ctx, cmd.ClassID)
	if err != nil {
		return nil, fmt.Errorf("refresh_class_quests: %w", err)
	}
	defer release()

	today := h.today()
	var result *RefreshClassQuestsResult

	err = h.inTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		view, events, err := h.engine.Quests.Refresh(ctx, repos, cmd.ClassID, cmd.TeacherID, target, today)
		if err != nil {
			return err
		}
		result = &RefreshClassQuestsResult{View: view, Changed: len(events) > 0, Events: events}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("refresh_class_quests: %w", err)
	}

	if result.Changed {
		h.logger.Info("class quests refreshed",
			"class_id", cmd.ClassID,
			"active", len(result.View.Active),
		)
	}

	h.publish(result.Events)
	return result, nil
}
