// Package task содержит доменную модель задания и прогресса его выполнения учеником.
// Здесь живёт машина состояний проверки: Assigned -> Verified | Rejected.
// Внешних зависимостей нет.
package task

import (
	"strings"
	"time"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TASK (каталог)
// ══════════════════════════════════════════════════════════════════════════════

// Task - неизменяемая запись каталога заданий.
// Каждое задание при подтверждении вносит фиксированный вклад ровно в один квест.
type Task struct {
	ID          string `json:"task_id"`
	Title       string `json:"title"`
	Description string `json:"description"`

	// Points - очки ученику за подтверждённое задание.
	Points int `json:"points"`

	// QuestContribution - на сколько задание продвигает связанный квест.
	QuestContribution int `json:"quest_contribution_amount_on_complete"`

	// QuestID - квест, к которому привязано задание.
	QuestID string `json:"associated_quest_id"`
}

// Validate проверяет инварианты записи каталога.
func (t Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return shared.NewDomainError("task", "Validate", shared.ErrInvalidID, "task id is empty")
	}
	if t.Points < 0 {
		return shared.ErrNegativePoints
	}
	if t.QuestContribution < 0 {
		return shared.ErrInvalidContribution
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status - производное состояние строки прогресса.
type Status string

const (
	// StatusAssigned - задание выдано и ждёт проверки учителем.
	StatusAssigned Status = "assigned"
	// StatusVerified - учитель подтвердил выполнение.
	StatusVerified Status = "verified"
	// StatusRejected - учитель отклонил выполнение.
	StatusRejected Status = "rejected"
	// StatusInvalid - флаги противоречат друг другу. Такого быть не должно.
	StatusInvalid Status = "invalid"
)

// IsTerminal возвращает true для финальных состояний.
func (s Status) IsTerminal() bool {
	return s == StatusVerified || s == StatusRejected
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// Progress - попытка ученика выполнить задание.
// Одна строка на (задание, ученик, дата выдачи): повторная выдача в другой день
// создаёт новую строку.
type Progress struct {
	TaskID       string    `json:"task_id"`
	StudentID    string    `json:"student_id"`
	DateAssigned time.Time `json:"date_assigned"`

	Verified            bool `json:"task_verified"`
	Rejected            bool `json:"task_rejected"`
	VerificationPending bool `json:"verification_pending"`

	TeacherID string   `json:"assigned_teacher_id"`
	ImageURLs []string `json:"image_urls"`
}

// NewProgress создаёт строку в состоянии Assigned.
func NewProgress(taskID, studentID, teacherID string, dateAssigned time.Time) *Progress {
	return &Progress{
		TaskID:              taskID,
		StudentID:           studentID,
		DateAssigned:        dateAssigned,
		VerificationPending: true,
		TeacherID:           teacherID,
		ImageURLs:           []string{},
	}
}

// Status вычисляет состояние по флагам.
func (p *Progress) Status() Status {
	switch {
	case p.Verified && p.Rejected:
		return StatusInvalid
	case p.Verified && !p.VerificationPending:
		return StatusVerified
	case p.Rejected && !p.VerificationPending:
		return StatusRejected
	case !p.Verified && !p.Rejected && p.VerificationPending:
		return StatusAssigned
	default:
		return StatusInvalid
	}
}

// IsTerminal возвращает true, если переходы больше невозможны.
func (p *Progress) IsTerminal() bool {
	return p.Verified || p.Rejected
}

// Verify переводит строку в Verified.
// Порядок проверок: владелец, затем идемпотентность.
func (p *Progress) Verify(teacherID string) error {
	if err := p.checkOwner(teacherID); err != nil {
		return err
	}
	if p.Verified {
		return shared.ErrTaskAlreadyVerified
	}
	if p.Rejected {
		return shared.ErrTaskAlreadyRejected
	}
	if !p.VerificationPending {
		return shared.ErrTaskNotPending
	}

	p.Verified = true
	p.VerificationPending = false
	return nil
}

// Reject переводит строку в Rejected.
func (p *Progress) Reject(teacherID string) error {
	if err := p.checkOwner(teacherID); err != nil {
		return err
	}
	if p.Rejected {
		return shared.ErrTaskAlreadyRejected
	}
	if p.Verified {
		return shared.ErrTaskAlreadyVerified
	}
	if !p.VerificationPending {
		return shared.ErrTaskNotPending
	}

	p.Rejected = true
	p.VerificationPending = false
	return nil
}

// AttachEvidence добавляет ссылки на фотографии к незавершённой строке.
func (p *Progress) AttachEvidence(urls []string) error {
	if len(urls) == 0 {
		return shared.ErrNoEvidenceFiles
	}
	if p.IsTerminal() {
		return shared.ErrTaskNotPending
	}
	p.ImageURLs = append(p.ImageURLs, urls...)
	return nil
}

// PickReviewable выбирает строку, над которой работает проверка:
// самую свежую ожидающую проверки, а если таких нет, самую свежую вообще,
// чтобы повторный вызов получил ошибку AlreadyProcessed.
func PickReviewable(rows []*Progress) *Progress {
	var latest, pending *Progress
	for _, p := range rows {
		if latest == nil || p.DateAssigned.After(latest.DateAssigned) {
			latest = p
		}
		if p.Status() == StatusAssigned && (pending == nil || p.DateAssigned.After(pending.DateAssigned)) {
			pending = p
		}
	}
	if pending != nil {
		return pending
	}
	return latest
}

func (p *Progress) checkOwner(teacherID string) error {
	if p.TeacherID != teacherID {
		return shared.ErrTaskTeacherMismatch
	}
	return nil
}
