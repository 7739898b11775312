package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(" WARNING "))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: "warn", Format: FormatJSON, Output: &buf, Service: "quest-engine"})

	log.Info("dropped")
	log.Warn("kept", Component("scheduler"), ClassID("c1"), Err(errors.New("boom")))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var record map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &record))
	assert.Equal(t, "kept", record["msg"])
	assert.Equal(t, "quest-engine", record["service"])
	assert.Equal(t, "scheduler", record["component"])
	assert.Equal(t, "c1", record["class_id"])
	assert.Equal(t, "boom", record["error"])
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: "debug", Format: FormatText, Output: &buf})
	log.Debug("hello", Err(nil))
	assert.Contains(t, buf.String(), "msg=hello")
	assert.NotContains(t, buf.String(), "error=")
}

func TestContext(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Format: FormatText, Output: &buf})

	ctx := WithContext(context.Background(), log)
	assert.Same(t, log, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}
