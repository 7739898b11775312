package command

import (
	"context"
	"fmt"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/shared"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/store"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/task"
)

// RejectTaskCommand contains the data to reject a task.
type RejectTaskCommand struct {
	TeacherID string `validate:"required"`
	StudentID string `validate:"required"`
	TaskID    string `validate:"required"`
	Reason    string `validate:"max=1000"`

	CorrelationID string
}

// RejectTaskResult contains the result of a rejection.
type RejectTaskResult struct {
	Progress *task.Progress
	Task     task.Task
	Event    shared.TaskRejectedEvent
}

// RejectTaskHandler handles RejectTaskCommand.
// Rejection has no ledger or quest effects; its event only drives notifications.
type RejectTaskHandler struct {
	handlerBase
}

// NewRejectTaskHandler creates a new RejectTaskHandler.
func NewRejectTaskHandler(deps Dependencies) *RejectTaskHandler {
	return &RejectTaskHandler{handlerBase: newHandlerBase(deps, "reject_task")}
}

// Handle executes the reject task command.
func (h *RejectTaskHandler) Handle(ctx context.Context, cmd RejectTaskCommand) (*RejectTaskResult, error) {
	if err := validateCommand("RejectTask", cmd); err != nil {
		return nil, fmt.Errorf("reject_task: %w", err)
	}

	var result *RejectTaskResult
	err := h.inTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		rejection, err := h.engine.Tasks.Reject(ctx, repos.Tasks, cmd.TeacherID, cmd.StudentID, cmd.TaskID, cmd.Reason)
		if err != nil {
			return err
		}
		event := rejection.Event
		if cmd.CorrelationID != "" {
			event.BaseEvent = event.WithCorrelationID(cmd.CorrelationID)
		}
		result = &RejectTaskResult{Progress: rejection.Progress, Task: rejection.Task, Event: event}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reject_task: %w", err)
	}

	h.logger.Info("task rejected",
		"student_id", cmd.StudentID,
		"task_id", cmd.TaskID,
	)

	h.publish([]shared.Event{result.Event})
	return result, nil
}
