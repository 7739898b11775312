package command

import (
	"context"
	"fmt"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/quest"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/shared"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/store"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGENERATE CLASS QUESTS COMMAND
// Replaces every uncompleted quest of the class that is inside the weekly
// window with fresh recommendations. Completed quests stay.
// ══════════════════════════════════════════════════════════════════════════════

// Locker serializes quest regeneration per class across processes.
type Locker interface {
	// Acquire takes the lock for classID. Returns shared.ErrRegenerationLocked
	// when another holder has it.
	Acquire(ctx context.Context, classID string) (release func(), err error)
}

// NoopLocker never blocks. Used when Redis is disabled.
type NoopLocker struct{}

// Acquire implements Locker.
func (NoopLocker) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}

// RegenerateClassQuestsCommand contains the data to regenerate class quests.
type RegenerateClassQuestsCommand struct {
	ClassID   string `validate:"required"`
	TeacherID string `validate:"required"`

	// Count of replacements. Zero means one per retired quest.
	Count int `validate:"gte=0,lte=50"`

	CorrelationID string
}

// RegenerateClassQuestsResult contains the merged view after regeneration.
type RegenerateClassQuestsResult struct {
	View   *quest.ClassQuestsView
	Events []shared.Event
}

// RegenerateClassQuestsHandler handles RegenerateClassQuestsCommand.
type RegenerateClassQuestsHandler struct {
	handlerBase
	locker Locker
}

// NewRegenerateClassQuestsHandler creates a new RegenerateClassQuestsHandler.
func NewRegenerateClassQuestsHandler(deps Dependencies, locker Locker) *RegenerateClassQuestsHandler {
	if locker == nil {
		locker = NoopLocker{}
	}
	return &RegenerateClassQuestsHandler{
		handlerBase: newHandlerBase(deps, "regenerate_class_quests"),
		locker:      locker,
	}
}

// Handle executes the regenerate command.
// Returns shared.ErrNothingToRegenerate when every quest in the window is completed.
func (h *RegenerateClassQuestsHandler) Handle(ctx context.Context, cmd RegenerateClassQuestsCommand) (*RegenerateClassQuestsResult, error) {
	if err := validateCommand("RegenerateClassQuests", cmd); err != nil {
		return nil, fmt.Errorf("regenerate_class_quests: %w", err)
	}

	release, err := h.locker.Acquire(ctx, cmd.ClassID)
	if err != nil {
		return nil, fmt.Errorf("regenerate_class_quests: %w", err)
	}
	defer release()

	today := h.today()
	var result *RegenerateClassQuestsResult

	err = h.inTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		view, events, err := h.engine.Quests.Regenerate(ctx, repos, cmd.ClassID, cmd.TeacherID, cmd.Count, today, shared.RegenerationManual)
		if err != nil {
			return err
		}
		result = &RegenerateClassQuestsResult{View: view, Events: events}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("regenerate_class_quests: %w", err)
	}

	h.logger.Info("class quests regenerated",
		"class_id", cmd.ClassID,
		"teacher_id", cmd.TeacherID,
		"active", len(result.View.Active),
		"completed", len(result.View.Completed),
	)

	h.publish(result.Events)
	return result, nil
}
