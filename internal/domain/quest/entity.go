// Package quest содержит доменную модель квеста класса и его прогресса.
// Квест - общая цель класса: задания учеников вносят в него вклад,
// пока сумма не достигнет порога. Окно активности - 7 дней.
package quest

import (
	"sort"
	"strings"
	"time"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/shared"
	"github.com/RecyclifyApp/Backend-sub000/pkg/timeutil"
)

// WindowDays - длина недельного окна. Седьмой день ещё внутри окна.
const WindowDays = 7

// ══════════════════════════════════════════════════════════════════════════════
// QUEST (каталог)
// ══════════════════════════════════════════════════════════════════════════════

// Type - категория квеста ("recycling", "composting", ...).
type Type string

// String возвращает строковое представление категории.
func (t Type) String() string {
	return string(t)
}

// Quest - неизменяемая запись каталога квестов.
type Quest struct {
	ID          string `json:"quest_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Points      int    `json:"points"`
	Type        Type   `json:"type"`

	// TotalAmountToComplete - порог завершения.
	TotalAmountToComplete int `json:"total_amount_to_complete"`
}

// Validate проверяет инварианты записи каталога.
func (q Quest) Validate() error {
	if strings.TrimSpace(q.ID) == "" {
		return shared.NewDomainError("quest", "Validate", shared.ErrInvalidID, "quest id is empty")
	}
	if q.TotalAmountToComplete <= 0 {
		return shared.ErrInvalidQuestTarget
	}
	if q.Points < 0 {
		return shared.ErrNegativePoints
	}
	return nil
}

// SortByID упорядочивает квесты по ID. Так порядок каталога не зависит от хранилища.
func SortByID(quests []Quest) {
	sort.SliceStable(quests, func(i, j int) bool {
		return quests[i].ID < quests[j].ID
	})
}

// IDs возвращает ID квестов в исходном порядке.
func IDs(quests []Quest) []string {
	ids := make([]string, 0, len(quests))
	for _, q := range quests {
		ids = append(ids, q.ID)
	}
	return ids
}

// ══════════════════════════════════════════════════════════════════════════════
// FILTER
// ══════════════════════════════════════════════════════════════════════════════

// Filter - выборка из каталога. Пустые поля не ограничивают выборку.
type Filter struct {
	Type                Type
	DescriptionContains string
	IDs                 []string
}

// Matches проверяет квест на соответствие фильтру.
func (f Filter) Matches(q Quest) bool {
	if f.Type != "" && q.Type != f.Type {
		return false
	}
	if f.DescriptionContains != "" && !strings.Contains(q.Description, f.DescriptionContains) {
		return false
	}
	if len(f.IDs) > 0 {
		found := false
		for _, id := range f.IDs {
			if id == q.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// Progress - активное назначение квеста классу.
// Ключ (квест, класс, дата назначения): после регенерации создаётся новая строка.
type Progress struct {
	QuestID         string    `json:"quest_id"`
	ClassID         string    `json:"class_id"`
	DateAssigned    time.Time `json:"date_assigned"`
	AmountCompleted int       `json:"amount_completed"`
	Completed       bool      `json:"completed"`
	TeacherID       string    `json:"assigned_teacher_id"`
}

// NewProgress создаёт пустое назначение на дату day.
func NewProgress(questID, classID, teacherID string, day time.Time) *Progress {
	return &Progress{
		QuestID:      questID,
		ClassID:      classID,
		DateAssigned: timeutil.StartOfDay(day),
		TeacherID:    teacherID,
	}
}

// InWindow возвращает true, если назначение не старше окна.
func (p *Progress) InWindow(today time.Time, windowDays int) bool {
	return timeutil.WithinDays(p.DateAssigned, today, windowDays)
}

// IsStale - окно истекло, а квест не завершён.
func (p *Progress) IsStale(today time.Time, windowDays int) bool {
	return !p.Completed && !p.InWindow(today, windowDays)
}

// Remaining возвращает, сколько осталось до порога.
func (p *Progress) Remaining(target int) int {
	if p.Completed || p.AmountCompleted >= target {
		return 0
	}
	return target - p.AmountCompleted
}

// Contribute добавляет вклад и сообщает, завершился ли квест именно сейчас.
// Перелёт через порог обрезается до порога, квест завершается один раз.
func (p *Progress) Contribute(amount, target int) (bool, error) {
	if amount < 0 {
		return false, shared.ErrInvalidContribution
	}
	if target <= 0 {
		return false, shared.ErrInvalidQuestTarget
	}
	if p.Completed {
		return false, nil
	}

	if p.AmountCompleted+amount >= target {
		p.AmountCompleted = target
		p.Completed = true
		return true, nil
	}

	p.AmountCompleted += amount
	return false, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RESULTS
// ══════════════════════════════════════════════════════════════════════════════

// ContributionCase - ветка, по которой прошёл вклад.
type ContributionCase string

const (
	// CaseCompleted - вклад довёл квест до порога (с обрезкой перелёта).
	CaseCompleted ContributionCase = "completed"
	// CasePartial - квест продвинулся, но не завершён.
	CasePartial ContributionCase = "partial"
	// CaseRegenerated - окно истекло, квест заменён рекомендацией.
	CaseRegenerated ContributionCase = "regenerated"
	// CaseAlreadyCompleted - квест уже завершён, вклад ничего не меняет.
	CaseAlreadyCompleted ContributionCase = "already_completed"
)

// ContributionOutcome - типизированный результат ApplyContribution.
type ContributionOutcome struct {
	Case     ContributionCase `json:"case"`
	ClassID  string           `json:"class_id"`
	QuestID  string           `json:"quest_id"`
	Progress *Progress        `json:"progress,omitempty"`

	// ClassPointsAwarded - создана ли запись ClassPoints.
	ClassPointsAwarded bool `json:"class_points_awarded"`

	// Для CaseRegenerated.
	RetiredQuestID     string `json:"retired_quest_id,omitempty"`
	ReplacementQuestID string `json:"replacement_quest_id,omitempty"`
	ContributionSeeded bool   `json:"contribution_seeded"`
}

// AssignedQuest - строка прогресса вместе с данными каталога.
type AssignedQuest struct {
	Quest    Quest    `json:"quest"`
	Progress Progress `json:"progress"`
}

// ClassQuestsView - текущие квесты класса для отображения.
type ClassQuestsView struct {
	ClassID   string          `json:"class_id"`
	Completed []AssignedQuest `json:"completed"`
	Active    []AssignedQuest `json:"active"`
}

// All возвращает завершённые и активные квесты одним списком.
func (v ClassQuestsView) All() []AssignedQuest {
	all := make([]AssignedQuest, 0, len(v.Completed)+len(v.Active))
	all = append(all, v.Completed...)
	return append(all, v.Active...)
}

// ClassAssignment - класс и учитель, за которым закреплены его квесты.
type ClassAssignment struct {
	ClassID   string `json:"class_id"`
	TeacherID string `json:"teacher_id"`
}
