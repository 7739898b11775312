// Package service holds small infrastructure services shared by the
// worker wiring: ID generation and the log-backed notification sender.
package service

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/notification"
)

// IDGeneratorImpl generates UUID v4 identifiers.
type IDGeneratorImpl struct{}

func NewIDGenerator() *IDGeneratorImpl {
	return &IDGeneratorImpl{}
}

func (g *IDGeneratorImpl) GenerateID() string {
	return uuid.New().String()
}

// LogNotificationSender implements notification.Sender by logging each message.
// It stands in for the delivery provider, which lives outside this service.
type LogNotificationSender struct {
	logger *slog.Logger
	ids    *IDGeneratorImpl
	now    func() time.Time
}

func NewLogNotificationSender(logger *slog.Logger) *LogNotificationSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotificationSender{
		logger: logger.With("component", "notification_sender"),
		ids:    NewIDGenerator(),
		now:    time.Now,
	}
}

// SendNotification logs the message and reports it as accepted.
func (s *LogNotificationSender) SendNotification(ctx context.Context, recipient string, template notification.TemplateKey, vars map[string]string) (notification.Result, error) {
	if err := ctx.Err(); err != nil {
		return notification.Result{}, err
	}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]any, 0, 2*len(keys)+4)
	attrs = append(attrs, "recipient", recipient, "template", template.String())
	for _, k := range keys {
		attrs = append(attrs, "var_"+k, vars[k])
	}

	id := s.ids.GenerateID()
	s.logger.InfoContext(ctx, "notification sent", append(attrs, "message_id", id)...)

	return notification.Result{Success: true, MessageID: id, SentAt: s.now()}, nil
}

var _ notification.Sender = (*LogNotificationSender)(nil)
