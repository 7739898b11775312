package eventhandler

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/notification"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/shared"
	"github.com/RecyclifyApp/Backend-sub000/pkg/timeutil"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON TASK REVIEWED HANDLER
// Сообщает ученику и родителю о решении учителя:
// - task.verified: задание засчитано, сколько очков начислено
// - task.rejected: задание отклонено и почему
// ═══════════════════════════════════════════════════════════════════════════

// OnTaskReviewedHandler обрабатывает события проверки задания.
type OnTaskReviewedHandler struct {
	contacts notification.ContactDirectory
	notifier *Notifier
	logger   *slog.Logger
}

// NewOnTaskReviewedHandler создаёт обработчик.
func NewOnTaskReviewedHandler(
	contacts notification.ContactDirectory,
	notifier *Notifier,
	logger *slog.Logger,
) *OnTaskReviewedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnTaskReviewedHandler{
		contacts: contacts,
		notifier: notifier,
		logger:   logger.With("handler", "on_task_reviewed"),
	}
}

// Handle реализует shared.EventHandler.
// Всегда возвращает nil: уведомления не должны влиять на шину событий.
func (h *OnTaskReviewedHandler) Handle(event shared.Event) error {
	ctx := context.Background()

	switch e := event.(type) {
	case shared.TaskVerifiedEvent:
		h.notify(ctx, e.StudentID, notification.TemplateTaskVerified, map[string]string{
			"task_title":     e.TaskTitle,
			"points":         strconv.Itoa(e.Points),
			"date_completed": timeutil.FormatDate(e.DateCompleted),
		})
	case shared.TaskRejectedEvent:
		h.notify(ctx, e.StudentID, notification.TemplateTaskRejected, map[string]string{
			"task_title": e.TaskTitle,
			"reason":     e.Reason,
		})
	default:
		h.logger.Warn("unexpected event", "event_type", event.EventType())
	}
	return nil
}

func (h *OnTaskReviewedHandler) notify(ctx context.Context, studentID string, template notification.TemplateKey, vars map[string]string) {
	contact, err := h.contacts.StudentContact(ctx, studentID)
	if err != nil {
		h.logger.Warn("student contact lookup failed",
			"student_id", studentID,
			"error", err,
		)
		return
	}

	recipients := contact.Recipients()
	if len(recipients) == 0 {
		h.logger.Debug("student has no contact address", "student_id", studentID)
		return
	}

	vars["student_name"] = contact.DisplayName
	sent := h.notifier.Send(ctx, recipients, template, vars)

	h.logger.Info("review notification dispatched",
		"student_id", studentID,
		"template", template.String(),
		"sent", sent,
		"recipients", len(recipients),
	)
}
