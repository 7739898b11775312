// Package notification содержит контракты уведомлений ученикам, родителям и учителям.
// Доставка (email, SMS) находится вне движка: здесь только интерфейсы и шаблоны.
package notification

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// TEMPLATES
// ══════════════════════════════════════════════════════════════════════════════

// TemplateKey - ключ шаблона сообщения у провайдера доставки.
type TemplateKey string

const (
	// TemplateTaskVerified - задание подтверждено, очки начислены.
	TemplateTaskVerified TemplateKey = "task_verified"
	// TemplateTaskRejected - задание отклонено, с причиной.
	TemplateTaskRejected TemplateKey = "task_rejected"
	// TemplateQuestCompleted - класс завершил квест.
	TemplateQuestCompleted TemplateKey = "quest_completed"
)

// String возвращает строковое представление ключа.
func (k TemplateKey) String() string {
	return string(k)
}

// ══════════════════════════════════════════════════════════════════════════════
// DELIVERY RESULT
// ══════════════════════════════════════════════════════════════════════════════

// Result - результат одной отправки.
type Result struct {
	// Success - принял ли провайдер сообщение.
	Success bool

	// MessageID - ID сообщения у провайдера.
	MessageID string

	// SentAt - время отправки.
	SentAt time.Time
}

// NewSuccessResult создаёт успешный результат.
func NewSuccessResult(messageID string) Result {
	return Result{Success: true, MessageID: messageID, SentAt: time.Now()}
}

// ══════════════════════════════════════════════════════════════════════════════
// INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// Sender отправляет сообщение по шаблону. Best-effort: ошибки не влияют
// на транзакции журнала очков.
type Sender interface {
	SendNotification(ctx context.Context, recipient string, template TemplateKey, vars map[string]string) (Result, error)
}

// StudentContact - адреса ученика для уведомлений.
type StudentContact struct {
	StudentID   string
	DisplayName string
	Email       string
	ParentEmail string
}

// Recipients возвращает непустые адреса: сначала ученик, затем родитель.
func (c StudentContact) Recipients() []string {
	out := make([]string, 0, 2)
	if c.Email != "" {
		out = append(out, c.Email)
	}
	if c.ParentEmail != "" && c.ParentEmail != c.Email {
		out = append(out, c.ParentEmail)
	}
	return out
}

// TeacherContact - адрес учителя.
type TeacherContact struct {
	TeacherID   string
	DisplayName string
	Email       string
}

// ContactDirectory - адресная книга ростера. Данные доверенные.
type ContactDirectory interface {
	// StudentContact возвращает контакты ученика.
	StudentContact(ctx context.Context, studentID string) (StudentContact, error)

	// TeacherContact возвращает контакты учителя.
	TeacherContact(ctx context.Context, teacherID string) (TeacherContact, error)
}
