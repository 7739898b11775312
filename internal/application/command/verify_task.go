package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/ledger"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/quest"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/shared"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/store"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/task"
)

// ══════════════════════════════════════════════════════════════════════════════
// VERIFY TASK COMMAND
// A teacher confirms a student's task. In one transaction the progress row
// becomes Verified, the student is awarded points once, and the task's
// contribution rolls up into the class quest.
// ══════════════════════════════════════════════════════════════════════════════

// VerifyTaskCommand contains the data to verify a task.
type VerifyTaskCommand struct {
	TeacherID string `validate:"required"`
	StudentID string `validate:"required"`
	TaskID    string `validate:"required"`

	// CorrelationID for tracing.
	CorrelationID string
}

// VerifyTaskResult contains the result of a verification.
type VerifyTaskResult struct {
	Progress *task.Progress
	Task     task.Task
	ClassID  string

	// StudentPoints is the aggregate after the award. Nil when AlreadyAwarded.
	StudentPoints *ledger.StudentPoints

	// AlreadyAwarded is set when today's ledger entry already existed.
	// Downstream effects were skipped.
	AlreadyAwarded bool

	// Quest is the contribution outcome. Nil when AlreadyAwarded.
	Quest *quest.ContributionOutcome

	// Events were published after commit.
	Events []shared.Event

	DateCompleted time.Time
}

// VerifyTaskHandler handles VerifyTaskCommand.
type VerifyTaskHandler struct {
	handlerBase
}

// NewVerifyTaskHandler creates a new VerifyTaskHandler.
func NewVerifyTaskHandler(deps Dependencies) *VerifyTaskHandler {
	return &VerifyTaskHandler{handlerBase: newHandlerBase(deps, "verify_task")}
}

// Handle executes the verify task command.
func (h *VerifyTaskHandler) Handle(ctx context.Context, cmd VerifyTaskCommand) (*VerifyTaskResult, error) {
	if err := validateCommand("VerifyTask", cmd); err != nil {
		return nil, fmt.Errorf("verify_task: %w", err)
	}

	today := h.today()
	var result *VerifyTaskResult

	err := h.inTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		res := &VerifyTaskResult{DateCompleted: today, Events: make([]shared.Event, 0, 4)}

		verification, err := h.engine.Tasks.Verify(ctx, repos.Tasks, cmd.TeacherID, cmd.StudentID, cmd.TaskID, today)
		if err != nil {
			return err
		}
		res.Progress = verification.Progress
		res.Task = verification.Task

		student, err := repos.Ledger.GetStudent(ctx, cmd.StudentID)
		if err != nil {
			return err
		}
		res.ClassID = student.ClassID

		verified := verification.Event
		if cmd.CorrelationID != "" {
			verified.BaseEvent = verified.WithCorrelationID(cmd.CorrelationID)
		}
		res.Events = append(res.Events, verified)

		totals, err := h.engine.Ledger.AwardStudentPoints(ctx, repos.Ledger, cmd.StudentID, cmd.TaskID, today, verification.Task.Points)
		if errors.Is(err, shared.ErrAlreadyAwarded) {
			res.AlreadyAwarded = true
			result = res
			return nil
		}
		if err != nil {
			return err
		}
		res.StudentPoints = totals
		res.Events = append(res.Events, shared.NewStudentPointsAwardedEvent(
			cmd.StudentID, student.ClassID, cmd.TaskID,
			verification.Task.Points, totals.CurrentPoints, totals.TotalPoints,
		))

		outcome, questEvents, err := h.engine.Quests.ApplyContribution(
			ctx, repos, student.ClassID, cmd.StudentID,
			verification.Task, verification.Task.QuestContribution, today,
		)
		if err != nil {
			return err
		}
		res.Quest = outcome
		res.Events = append(res.Events, questEvents...)

		result = res
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("verify_task: %w", err)
	}

	if result.AlreadyAwarded {
		h.logger.Warn("points already awarded today, skipped ledger and quest effects",
			"student_id", cmd.StudentID,
			"task_id", cmd.TaskID,
		)
	} else {
		h.logger.Info("task verified",
			"student_id", cmd.StudentID,
			"task_id", cmd.TaskID,
			"class_id", result.ClassID,
			"quest_case", result.Quest.Case,
		)
	}

	h.publish(result.Events)
	return result, nil
}
