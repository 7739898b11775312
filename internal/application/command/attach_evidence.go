package command

import (
	"context"
	"fmt"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/shared"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/store"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/task"
)

// AttachTaskEvidenceCommand links uploaded photos to a pending task.
type AttachTaskEvidenceCommand struct {
	StudentID string   `validate:"required"`
	TaskID    string   `validate:"required"`
	FileNames []string `validate:"required,min=1,max=10,dive,required"`
}

// AttachTaskEvidenceResult contains the updated progress row.
type AttachTaskEvidenceResult struct {
	Progress *task.Progress
	URLs     []string
}

// AttachTaskEvidenceHandler handles AttachTaskEvidenceCommand.
type AttachTaskEvidenceHandler struct {
	handlerBase
	assets task.AssetStore
}

// NewAttachTaskEvidenceHandler creates a new AttachTaskEvidenceHandler.
func NewAttachTaskEvidenceHandler(deps Dependencies, assets task.AssetStore) *AttachTaskEvidenceHandler {
	return &AttachTaskEvidenceHandler{
		handlerBase: newHandlerBase(deps, "attach_task_evidence"),
		assets:      assets,
	}
}

// Handle resolves file URLs outside the transaction, then stores them on the row.
func (h *AttachTaskEvidenceHandler) Handle(ctx context.Context, cmd AttachTaskEvidenceCommand) (*AttachTaskEvidenceResult, error) {
	if err := validateCommand("AttachTaskEvidence", cmd); err != nil {
		return nil, fmt.Errorf("attach_task_evidence: %w", err)
	}

	urls := make([]string, 0, len(cmd.FileNames))
	for _, name := range cmd.FileNames {
		url, err := h.assets.GetFileURL(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("attach_task_evidence: resolve %q: %w", name, err)
		}
		urls = append(urls, url)
	}

	var result *AttachTaskEvidenceResult
	err := h.inTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		p, err := h.engine.Tasks.AttachEvidence(ctx, repos.Tasks, cmd.StudentID, cmd.TaskID, urls)
		if err != nil {
			return err
		}
		result = &AttachTaskEvidenceResult{Progress: p, URLs: urls}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("attach_task_evidence: %w", err)
	}

	h.publish([]shared.Event{
		shared.NewTaskEvidenceAttachedEvent(cmd.StudentID, cmd.TaskID, result.Progress.TeacherID, urls),
	})
	return result, nil
}
