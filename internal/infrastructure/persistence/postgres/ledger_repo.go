package postgres

import (
	"context"
	"fmt"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/ledger"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// LedgerRepository implements ledger.Repository inside a transaction.
// Entries are inserted with ON CONFLICT DO NOTHING: zero affected rows means
// the award already happened.
type LedgerRepository struct {
	q Querier
}

// NewLedgerRepository binds the repository to a querier.
func NewLedgerRepository(q Querier) *LedgerRepository {
	return &LedgerRepository{q: q}
}

// InsertStudentPoints appends a student entry once per (student, task, day).
func (r *LedgerRepository) InsertStudentPoints(ctx context.Context, e ledger.StudentPointsEntry) error {
	query := `
		INSERT INTO student_points (id, student_id, task_id, date_completed, points_awarded)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (student_id, task_id, date_completed) DO NOTHING
	`
	tag, err := r.q.Exec(ctx, query, e.ID, e.StudentID, e.TaskID, pgDate(e.DateCompleted), e.PointsAwarded)
	if err != nil {
		return storageError("InsertStudentPoints", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrAlreadyAwarded
	}
	return nil
}

// InsertClassPoints appends a class entry once per (class, quest, day, student).
func (r *LedgerRepository) InsertClassPoints(ctx context.Context, e ledger.ClassPointsEntry) error {
	query := `
		INSERT INTO class_points (id, class_id, quest_id, date_completed, contributing_student_id, points_awarded)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (class_id, quest_id, date_completed, contributing_student_id) DO NOTHING
	`
	tag, err := r.q.Exec(ctx, query, e.ID, e.ClassID, e.QuestID, pgDate(e.DateCompleted), e.StudentID, e.PointsAwarded)
	if err != nil {
		return storageError("InsertClassPoints", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrAlreadyAwarded
	}
	return nil
}

// IncrementStudentPoints adds points to both counters atomically.
func (r *LedgerRepository) IncrementStudentPoints(ctx context.Context, studentID string, points int) (*ledger.StudentPoints, error) {
	query := `
		UPDATE students
		SET current_points = current_points + $2,
			total_points = total_points + $2
		WHERE student_id = $1
		RETURNING student_id, class_id, current_points, total_points
	`
	var sp ledger.StudentPoints
	err := r.q.QueryRow(ctx, query, studentID, points).Scan(&sp.StudentID, &sp.ClassID, &sp.CurrentPoints, &sp.TotalPoints)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrStudentNotFound
		}
		return nil, storageError("IncrementStudentPoints", err)
	}
	return &sp, nil
}

// GetStudent returns the student aggregate with its class.
func (r *LedgerRepository) GetStudent(ctx context.Context, studentID string) (*ledger.StudentPoints, error) {
	query := `SELECT student_id, class_id, current_points, total_points FROM students WHERE student_id = $1`
	var sp ledger.StudentPoints
	err := r.q.QueryRow(ctx, query, studentID).Scan(&sp.StudentID, &sp.ClassID, &sp.CurrentPoints, &sp.TotalPoints)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrStudentNotFound
		}
		return nil, storageError("GetStudent", err)
	}
	return &sp, nil
}

// CompletedQuestIDs returns distinct quests the class has ever completed.
func (r *LedgerRepository) CompletedQuestIDs(ctx context.Context, classID string) ([]string, error) {
	rows, err := r.q.Query(ctx, `SELECT DISTINCT quest_id FROM class_points WHERE class_id = $1 ORDER BY quest_id`, classID)
	if err != nil {
		return nil, storageError("CompletedQuestIDs", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan quest id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("CompletedQuestIDs", err)
	}
	return ids, nil
}

// ListStudentEntries returns the student's entries by date.
func (r *LedgerRepository) ListStudentEntries(ctx context.Context, studentID string) ([]ledger.StudentPointsEntry, error) {
	query := `
		SELECT id, student_id, task_id, date_completed, points_awarded
		FROM student_points
		WHERE student_id = $1
		ORDER BY date_completed, task_id
	`
	rows, err := r.q.Query(ctx, query, studentID)
	if err != nil {
		return nil, storageError("ListStudentEntries", err)
	}
	defer rows.Close()

	out := make([]ledger.StudentPointsEntry, 0)
	for rows.Next() {
		var e ledger.StudentPointsEntry
		if err := rows.Scan(&e.ID, &e.StudentID, &e.TaskID, &e.DateCompleted, &e.PointsAwarded); err != nil {
			return nil, fmt.Errorf("failed to scan student entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("ListStudentEntries", err)
	}
	return out, nil
}

// ListClassEntries returns the class's entries by date.
func (r *LedgerRepository) ListClassEntries(ctx context.Context, classID string) ([]ledger.ClassPointsEntry, error) {
	query := `
		SELECT id, class_id, quest_id, date_completed, contributing_student_id, points_awarded
		FROM class_points
		WHERE class_id = $1
		ORDER BY date_completed, quest_id, contributing_student_id
	`
	rows, err := r.q.Query(ctx, query, classID)
	if err != nil {
		return nil, storageError("ListClassEntries", err)
	}
	defer rows.Close()

	out := make([]ledger.ClassPointsEntry, 0)
	for rows.Next() {
		var e ledger.ClassPointsEntry
		if err := rows.Scan(&e.ID, &e.ClassID, &e.QuestID, &e.DateCompleted, &e.StudentID, &e.PointsAwarded); err != nil {
			return nil, fmt.Errorf("failed to scan class entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("ListClassEntries", err)
	}
	return out, nil
}

var _ ledger.Repository = (*LedgerRepository)(nil)
