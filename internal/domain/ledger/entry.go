// Package ledger содержит журнал начисления очков.
// Записи только добавляются. Ключ записи - гарантия идемпотентности:
// если запись есть, начисление уже произошло.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/shared"
	"github.com/RecyclifyApp/Backend-sub000/pkg/timeutil"
)

// StudentPointsEntry - начисление ученику за задание в конкретный день.
type StudentPointsEntry struct {
	ID            string    `json:"id"`
	StudentID     string    `json:"student_id"`
	TaskID        string    `json:"task_id"`
	DateCompleted time.Time `json:"date_completed"`
	PointsAwarded int       `json:"points_awarded"`
}

// Key - ключ идемпотентности (ученик, задание, день).
func (e StudentPointsEntry) Key() string {
	return fmt.Sprintf("%s|%s|%s", e.StudentID, e.TaskID, timeutil.FormatDate(e.DateCompleted))
}

// Validate проверяет запись перед вставкой.
func (e StudentPointsEntry) Validate() error {
	if e.StudentID == "" || e.TaskID == "" {
		return shared.NewDomainError("ledger", "Validate", shared.ErrInvalidID, "student and task ids are required")
	}
	if e.PointsAwarded < 0 {
		return shared.ErrNegativePoints
	}
	return nil
}

// ClassPointsEntry - начисление классу за завершение квеста,
// вызванное вкладом конкретного ученика в конкретный день.
type ClassPointsEntry struct {
	ID            string    `json:"id"`
	ClassID       string    `json:"class_id"`
	QuestID       string    `json:"quest_id"`
	DateCompleted time.Time `json:"date_completed"`
	StudentID     string    `json:"contributing_student_id"`
	PointsAwarded int       `json:"points_awarded"`
}

// Key - ключ идемпотентности (класс, квест, день, ученик).
func (e ClassPointsEntry) Key() string {
	return fmt.Sprintf("%s|%s|%s|%s", e.ClassID, e.QuestID, timeutil.FormatDate(e.DateCompleted), e.StudentID)
}

// Validate проверяет запись перед вставкой.
func (e ClassPointsEntry) Validate() error {
	if e.ClassID == "" || e.QuestID == "" || e.StudentID == "" {
		return shared.NewDomainError("ledger", "Validate", shared.ErrInvalidID, "class, quest and student ids are required")
	}
	if e.PointsAwarded < 0 {
		return shared.ErrNegativePoints
	}
	return nil
}

// StudentPoints - агрегат очков ученика.
// CurrentPoints может обнуляться снаружи, движок только прибавляет.
type StudentPoints struct {
	StudentID     string `json:"student_id"`
	ClassID       string `json:"class_id"`
	CurrentPoints int    `json:"current_points"`
	TotalPoints   int    `json:"total_points"`
}

// Add прибавляет очки к обоим счётчикам.
func (s *StudentPoints) Add(points int) {
	s.CurrentPoints += points
	s.TotalPoints += points
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// Repository - журнал и агрегаты очков внутри транзакции.
type Repository interface {
	// InsertStudentPoints добавляет запись.
	// Возвращает ErrAlreadyAwarded, если запись с таким ключом уже есть.
	InsertStudentPoints(ctx context.Context, entry StudentPointsEntry) error

	// InsertClassPoints добавляет запись.
	// Возвращает ErrAlreadyAwarded, если запись с таким ключом уже есть.
	InsertClassPoints(ctx context.Context, entry ClassPointsEntry) error

	// IncrementStudentPoints прибавляет очки к агрегату и возвращает новое значение.
	// Возвращает ErrStudentNotFound, если ученика нет в ростере.
	IncrementStudentPoints(ctx context.Context, studentID string, points int) (*StudentPoints, error)

	// GetStudent возвращает агрегат ученика вместе с его классом.
	// Возвращает ErrStudentNotFound, если ученика нет.
	GetStudent(ctx context.Context, studentID string) (*StudentPoints, error)

	// CompletedQuestIDs возвращает различные ID квестов, завершённых классом,
	// по возрастанию.
	CompletedQuestIDs(ctx context.Context, classID string) ([]string, error)

	// ListStudentEntries возвращает записи ученика по дате.
	ListStudentEntries(ctx context.Context, studentID string) ([]StudentPointsEntry, error)

	// ListClassEntries возвращает записи класса по дате.
	ListClassEntries(ctx context.Context, classID string) ([]ClassPointsEntry, error)
}
