package eventhandler

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/notification"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/shared"
)

// OnQuestCompletedHandler сообщает учителю, что класс завершил квест.
type OnQuestCompletedHandler struct {
	contacts notification.ContactDirectory
	notifier *Notifier
	logger   *slog.Logger
}

// NewOnQuestCompletedHandler создаёт обработчик.
func NewOnQuestCompletedHandler(
	contacts notification.ContactDirectory,
	notifier *Notifier,
	logger *slog.Logger,
) *OnQuestCompletedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnQuestCompletedHandler{
		contacts: contacts,
		notifier: notifier,
		logger:   logger.With("handler", "on_quest_completed"),
	}
}

// Handle реализует shared.EventHandler.
func (h *OnQuestCompletedHandler) Handle(event shared.Event) error {
	e, ok := event.(shared.QuestCompletedEvent)
	if !ok {
		h.logger.Warn("received non-QuestCompletedEvent", "event_type", event.EventType())
		return nil
	}

	ctx := context.Background()
	teacher, err := h.contacts.TeacherContact(ctx, e.TeacherID)
	if err != nil {
		h.logger.Warn("teacher contact lookup failed",
			"teacher_id", e.TeacherID,
			"error", err,
		)
		return nil
	}
	if teacher.Email == "" {
		return nil
	}

	h.notifier.Send(ctx, []string{teacher.Email}, notification.TemplateQuestCompleted, map[string]string{
		"teacher_name": teacher.DisplayName,
		"class_id":     e.ClassID,
		"quest_title":  e.QuestTitle,
		"points":       strconv.Itoa(e.Points),
	})

	h.logger.Info("quest completion reported",
		"class_id", e.ClassID,
		"quest_id", e.QuestID,
		"completed_by", e.StudentID,
	)
	return nil
}
