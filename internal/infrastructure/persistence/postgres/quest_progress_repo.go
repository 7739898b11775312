package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/quest"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// QUEST PROGRESS REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// QuestProgressRepository implements quest.ProgressRepository inside a transaction.
type QuestProgressRepository struct {
	q Querier
}

// NewQuestProgressRepository binds the repository to a querier.
func NewQuestProgressRepository(q Querier) *QuestProgressRepository {
	return &QuestProgressRepository{q: q}
}

const questProgressColumns = `
	quest_id, class_id, date_assigned, amount_completed, completed, assigned_teacher_id
`

// GetLatestForUpdate locks and returns the newest row for (class, quest).
// Contributions from concurrent verifications queue up on this lock.
func (r *QuestProgressRepository) GetLatestForUpdate(ctx context.Context, classID, questID string) (*quest.Progress, error) {
	query := `SELECT ` + questProgressColumns + `
		FROM quest_progress
		WHERE class_id = $1 AND quest_id = $2
		ORDER BY date_assigned DESC
		LIMIT 1
		FOR UPDATE
	`

	p, err := scanQuestProgress(r.q.QueryRow(ctx, query, classID, questID))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrQuestProgressNotFound
		}
		return nil, storageError("GetLatestQuestProgress", err)
	}
	return p, nil
}

// ListByClassSince locks and returns class rows assigned on or after since.
// A zero since returns every row of the class.
func (r *QuestProgressRepository) ListByClassSince(ctx context.Context, classID string, since time.Time) ([]*quest.Progress, error) {
	query := `SELECT ` + questProgressColumns + `
		FROM quest_progress
		WHERE class_id = $1 AND ($2::date IS NULL OR date_assigned >= $2::date)
		ORDER BY date_assigned ASC, quest_id ASC
		FOR UPDATE
	`

	var sinceArg any
	if !since.IsZero() {
		sinceArg = pgDate(since)
	}

	rows, err := r.q.Query(ctx, query, classID, sinceArg)
	if err != nil {
		return nil, storageError("ListQuestProgress", err)
	}
	defer rows.Close()

	out := make([]*quest.Progress, 0)
	for rows.Next() {
		p, err := scanQuestProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quest progress: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("ListQuestProgress", err)
	}
	return out, nil
}

// Insert creates a row.
func (r *QuestProgressRepository) Insert(ctx context.Context, p *quest.Progress) error {
	query := `INSERT INTO quest_progress (` + questProgressColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.q.Exec(ctx, query,
		p.QuestID, p.ClassID, pgDate(p.DateAssigned),
		p.AmountCompleted, p.Completed, p.TeacherID,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.WrapError("quest", "Insert", shared.ErrAlreadyExists, "quest progress already exists", err)
		}
		return storageError("InsertQuestProgress", err)
	}
	return nil
}

// Update writes amount_completed and completed.
func (r *QuestProgressRepository) Update(ctx context.Context, p *quest.Progress) error {
	query := `
		UPDATE quest_progress SET amount_completed = $4, completed = $5
		WHERE quest_id = $1 AND class_id = $2 AND date_assigned = $3
	`
	tag, err := r.q.Exec(ctx, query, p.QuestID, p.ClassID, pgDate(p.DateAssigned), p.AmountCompleted, p.Completed)
	if err != nil {
		return storageError("UpdateQuestProgress", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrQuestProgressNotFound
	}
	return nil
}

// Delete removes a row.
func (r *QuestProgressRepository) Delete(ctx context.Context, p *quest.Progress) error {
	query := `DELETE FROM quest_progress WHERE quest_id = $1 AND class_id = $2 AND date_assigned = $3`
	tag, err := r.q.Exec(ctx, query, p.QuestID, p.ClassID, pgDate(p.DateAssigned))
	if err != nil {
		return storageError("DeleteQuestProgress", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrQuestProgressNotFound
	}
	return nil
}

// ListStaleClasses returns classes with an unfinished row assigned before
// the cutoff, or whose newest row is older than the cutoff. The teacher is
// taken from the newest row.
func (r *QuestProgressRepository) ListStaleClasses(ctx context.Context, before time.Time) ([]quest.ClassAssignment, error) {
	query := `
		SELECT class_id, (array_agg(assigned_teacher_id ORDER BY date_assigned DESC))[1]
		FROM quest_progress
		GROUP BY class_id
		HAVING bool_or(NOT completed AND date_assigned < $1::date) OR max(date_assigned) < $1::date
		ORDER BY class_id
	`

	rows, err := r.q.Query(ctx, query, pgDate(before))
	if err != nil {
		return nil, storageError("ListStaleClasses", err)
	}
	defer rows.Close()

	out := make([]quest.ClassAssignment, 0)
	for rows.Next() {
		var a quest.ClassAssignment
		if err := rows.Scan(&a.ClassID, &a.TeacherID); err != nil {
			return nil, fmt.Errorf("failed to scan class assignment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("ListStaleClasses", err)
	}
	return out, nil
}

func scanQuestProgress(row pgx.Row) (*quest.Progress, error) {
	var p quest.Progress
	if err := row.Scan(
		&p.QuestID,
		&p.ClassID,
		&p.DateAssigned,
		&p.AmountCompleted,
		&p.Completed,
		&p.TeacherID,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

var _ quest.ProgressRepository = (*QuestProgressRepository)(nil)
