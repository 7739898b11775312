package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestHealthChecker(t *testing.T) {
	c := NewHealthChecker("1.0.0", 20*time.Millisecond)

	empty := c.Check(context.Background())
	assert.True(t, empty.Healthy)

	c.AddCheck("postgres", PingCheck(pinger{}))
	c.AddCheck("redis", PingCheck(pinger{err: errors.New("connection refused")}))
	c.AddCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	status := c.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.Equal(t, "failed: redis, slow", status.Message)
	assert.True(t, status.Checks["postgres"].Healthy)
	assert.Equal(t, "connection refused", status.Checks["redis"].Message)
	assert.Equal(t, "1.0.0", status.Version)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_Probes(t *testing.T) {
	checker := NewHealthChecker("1.0.0", time.Second)
	checker.AddCheck("postgres", PingCheck(pinger{}))

	stats := func() DeliveryReport {
		return DeliveryReport{Published: 4, HandlerRuns: 6, HandlerFailures: 1, DeadLetters: 1}
	}
	h := NewServer(DefaultConfig(), checker, stats, discard).Handler()

	rec := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, h, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
	var status Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Healthy)

	checker.AddCheck("redis", PingCheck(pinger{err: errors.New("down")}))
	rec = get(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = get(t, h, "/debug/events")
	assert.Equal(t, http.StatusOK, rec.Code)
	var report DeliveryReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 1, report.DeadLetters)
	assert.EqualValues(t, 4, report.Published)

	rec = get(t, h, "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_NoStatsAndPanics(t *testing.T) {
	checker := NewHealthChecker("", time.Second)
	h := NewServer(DefaultConfig(), checker, nil, discard).Handler()
	assert.Equal(t, http.StatusNotFound, get(t, h, "/debug/events").Code)

	boom := NewServer(DefaultConfig(), checker, func() DeliveryReport { panic("stats") }, discard).Handler()
	assert.Equal(t, http.StatusInternalServerError, get(t, boom, "/debug/events").Code)
}
