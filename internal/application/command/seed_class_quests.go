package command

import (
	"context"
	"fmt"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/quest"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/shared"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/store"
)

// SeedClassQuestsCommand provisions the first quests of a new class.
type SeedClassQuestsCommand struct {
	ClassID   string `validate:"required"`
	TeacherID string `validate:"required"`

	// Count defaults to the engine's recommendation count.
	Count int `validate:"gte=0,lte=50"`
}

// SeedClassQuestsResult contains the assigned quests.
type SeedClassQuestsResult struct {
	View   *quest.ClassQuestsView
	Events []shared.Event
}

// SeedClassQuestsHandler handles SeedClassQuestsCommand.
type SeedClassQuestsHandler struct {
	handlerBase
}

// NewSeedClassQuestsHandler creates a new SeedClassQuestsHandler.
func NewSeedClassQuestsHandler(deps Dependencies) *SeedClassQuestsHandler {
	return &SeedClassQuestsHandler{handlerBase: newHandlerBase(deps, "seed_class_quests")}
}

// Handle executes the seed command.
// Returns shared.ErrClassQuestsExist when the class already has quests in the window.
func (h *SeedClassQuestsHandler) Handle(ctx context.Context, cmd SeedClassQuestsCommand) (*SeedClassQuestsResult, error) {
	if err := validateCommand("SeedClassQuests", cmd); err != nil {
		return nil, fmt.Errorf("seed_class_quests: %w", err)
	}

	count := cmd.Count
	if count == 0 {
		count = h.engine.Config.DefaultRecommendations
	}

	today := h.today()
	var result *SeedClassQuestsResult

	err := h.inTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		view, events, err := h.engine.Quests.Seed(ctx, repos, cmd.ClassID, cmd.TeacherID, count, today)
		if err != nil {
			return err
		}
		result = &SeedClassQuestsResult{View: view, Events: events}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("seed_class_quests: %w", err)
	}

	h.logger.Info("class quests seeded",
		"class_id", cmd.ClassID,
		"assigned", len(result.View.Active),
	)

	h.publish(result.Events)
	return result, nil
}
