package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/shared"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/task"
)

// TaskTracker runs the verification state machine on TaskProgress rows.
type TaskTracker struct {
	catalog task.Catalog
}

// NewTaskTracker creates a TaskTracker.
func NewTaskTracker(catalog task.Catalog) *TaskTracker {
	return &TaskTracker{catalog: catalog}
}

// Verification is the outcome of a successful Verify.
type Verification struct {
	Progress *task.Progress
	Task     task.Task
	Event    shared.TaskVerifiedEvent
}

// Verify marks the newest pending progress row for (studentID, taskID) as verified.
// Errors: ErrTaskProgressNotFound, ErrTaskTeacherMismatch, AlreadyProcessed kinds,
// ErrTaskNotFound when the catalog no longer has the task.
func (t *TaskTracker) Verify(
	ctx context.Context,
	repo task.ProgressRepository,
	teacherID, studentID, taskID string,
	today time.Time,
) (*Verification, error) {
	p, err := repo.GetReviewableForUpdate(ctx, studentID, taskID)
	if err != nil {
		return nil, err
	}
	if err := p.Verify(teacherID); err != nil {
		return nil, err
	}

	tk, err := t.catalog.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if err := repo.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save task progress: %w", err)
	}

	event := shared.NewTaskVerifiedEvent(studentID, taskID, teacherID)
	event.TaskTitle = tk.Title
	event.Points = tk.Points
	event.QuestID = tk.QuestID
	event.ContributionAmount = tk.QuestContribution
	event.DateCompleted = today

	return &Verification{Progress: p, Task: *tk, Event: event}, nil
}

// Rejection is the outcome of a successful Reject.
type Rejection struct {
	Progress *task.Progress
	Task     task.Task
	Event    shared.TaskRejectedEvent
}

// Reject marks the newest pending progress row for (studentID, taskID) as rejected.
// It has no ledger or quest effects.
func (t *TaskTracker) Reject(
	ctx context.Context,
	repo task.ProgressRepository,
	teacherID, studentID, taskID, reason string,
) (*Rejection, error) {
	p, err := repo.GetReviewableForUpdate(ctx, studentID, taskID)
	if err != nil {
		return nil, err
	}
	if err := p.Reject(teacherID); err != nil {
		return nil, err
	}

	tk, err := t.catalog.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if err := repo.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save task progress: %w", err)
	}

	event := shared.NewTaskRejectedEvent(studentID, taskID, teacherID, reason)
	event.TaskTitle = tk.Title

	return &Rejection{Progress: p, Task: *tk, Event: event}, nil
}

// AttachEvidence appends image URLs to the newest pending row.
func (t *TaskTracker) AttachEvidence(
	ctx context.Context,
	repo task.ProgressRepository,
	studentID, taskID string,
	urls []string,
) (*task.Progress, error) {
	p, err := repo.GetReviewableForUpdate(ctx, studentID, taskID)
	if err != nil {
		return nil, err
	}
	if err := p.AttachEvidence(urls); err != nil {
		return nil, err
	}
	if err := repo.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save task progress: %w", err)
	}
	return p, nil
}
