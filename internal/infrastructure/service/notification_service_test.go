package service

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/notification"
)

func TestLogNotificationSender(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	sender := NewLogNotificationSender(logger)

	res, err := sender.SendNotification(context.Background(), "kid@example.com", notification.TemplateTaskVerified, map[string]string{
		"task_title": "Bottles",
		"points":     "10",
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.MessageID)

	out := buf.String()
	assert.Contains(t, out, "recipient=kid@example.com")
	assert.Contains(t, out, "template=task_verified")
	assert.Contains(t, out, "var_points=10")
}

func TestLogNotificationSender_CancelledContext(t *testing.T) {
	sender := NewLogNotificationSender(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sender.SendNotification(ctx, "x@example.com", notification.TemplateQuestCompleted, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
