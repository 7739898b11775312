package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/shared"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/task"
)

// ══════════════════════════════════════════════════════════════════════════════
// TASK PROGRESS REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// TaskProgressRepository implements task.ProgressRepository inside a transaction.
type TaskProgressRepository struct {
	q Querier
}

// NewTaskProgressRepository binds the repository to a querier, usually a pgx.Tx.
func NewTaskProgressRepository(q Querier) *TaskProgressRepository {
	return &TaskProgressRepository{q: q}
}

const taskProgressColumns = `
	task_id, student_id, date_assigned, task_verified, task_rejected,
	verification_pending, assigned_teacher_id, image_urls
`

// GetReviewableForUpdate locks every row for (student, task) and returns the
// one task.PickReviewable selects. Locked rows are read at their committed
// state, so a verifier that waited on the lock sees the other's result.
func (r *TaskProgressRepository) GetReviewableForUpdate(ctx context.Context, studentID, taskID string) (*task.Progress, error) {
	query := `SELECT ` + taskProgressColumns + `
		FROM task_progress
		WHERE student_id = $1 AND task_id = $2
		ORDER BY date_assigned DESC
		FOR UPDATE
	`

	rows, err := r.q.Query(ctx, query, studentID, taskID)
	if err != nil {
		return nil, storageError("GetReviewableTaskProgress", err)
	}
	defer rows.Close()

	candidates := make([]*task.Progress, 0, 2)
	for rows.Next() {
		p, err := scanTaskProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task progress: %w", err)
		}
		candidates = append(candidates, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("GetReviewableTaskProgress", err)
	}

	picked := task.PickReviewable(candidates)
	if picked == nil {
		return nil, shared.ErrTaskProgressNotFound
	}
	return picked, nil
}

// Save writes the flags and image urls of an existing row.
func (r *TaskProgressRepository) Save(ctx context.Context, p *task.Progress) error {
	query := `
		UPDATE task_progress SET
			task_verified = $4,
			task_rejected = $5,
			verification_pending = $6,
			image_urls = $7
		WHERE task_id = $1 AND student_id = $2 AND date_assigned = $3
	`

	urls := p.ImageURLs
	if urls == nil {
		urls = []string{}
	}

	tag, err := r.q.Exec(ctx, query,
		p.TaskID,
		p.StudentID,
		pgDate(p.DateAssigned),
		p.Verified,
		p.Rejected,
		p.VerificationPending,
		urls,
	)
	if err != nil {
		if IsCheckViolation(err) {
			return shared.WrapError("task", "Save", shared.ErrConsistencyViolation, "task both verified and rejected", err)
		}
		return storageError("SaveTaskProgress", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrTaskProgressNotFound
	}
	return nil
}

// ListPendingByTeacher returns rows awaiting review, oldest first.
func (r *TaskProgressRepository) ListPendingByTeacher(ctx context.Context, teacherID string) ([]*task.Progress, error) {
	query := `SELECT ` + taskProgressColumns + `
		FROM task_progress
		WHERE assigned_teacher_id = $1
		  AND verification_pending
		  AND NOT task_verified
		  AND NOT task_rejected
		ORDER BY date_assigned ASC, task_id ASC, student_id ASC
	`

	rows, err := r.q.Query(ctx, query, teacherID)
	if err != nil {
		return nil, storageError("ListPendingTaskProgress", err)
	}
	defer rows.Close()

	out := make([]*task.Progress, 0)
	for rows.Next() {
		p, err := scanTaskProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task progress: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("ListPendingTaskProgress", err)
	}
	return out, nil
}

// Insert creates a row. Used by seed tooling and integration tests.
func (r *TaskProgressRepository) Insert(ctx context.Context, p *task.Progress) error {
	query := `INSERT INTO task_progress (` + taskProgressColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	urls := p.ImageURLs
	if urls == nil {
		urls = []string{}
	}
	_, err := r.q.Exec(ctx, query,
		p.TaskID, p.StudentID, pgDate(p.DateAssigned),
		p.Verified, p.Rejected, p.VerificationPending,
		p.TeacherID, urls,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("task", "Insert", shared.ErrAlreadyExists, "task progress already exists")
		}
		return storageError("InsertTaskProgress", err)
	}
	return nil
}

func scanTaskProgress(row pgx.Row) (*task.Progress, error) {
	var p task.Progress
	if err := row.Scan(
		&p.TaskID,
		&p.StudentID,
		&p.DateAssigned,
		&p.Verified,
		&p.Rejected,
		&p.VerificationPending,
		&p.TeacherID,
		&p.ImageURLs,
	); err != nil {
		return nil, err
	}
	if p.ImageURLs == nil {
		p.ImageURLs = []string{}
	}
	return &p, nil
}

var _ task.ProgressRepository = (*TaskProgressRepository)(nil)
