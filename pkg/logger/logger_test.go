package logger

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(NewMaskingHandler(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
}

func TestMaskingHandler_MasksSensitiveKeys(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferLogger(&buf)

	log.Info("register", slog.String("username", "alice"), slog.String("password", "p1"))

	out := buf.String()
	assert.Contains(t, out, "username=alice")
	assert.Contains(t, out, "password=***")
	assert.NotContains(t, out, "p1")
}

func TestMaskingHandler_MasksWithAttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferLogger(&buf).With(slog.String("Authorization", "Bearer abc"))

	log.Info("request", slog.Group("body", slog.String("password_hash", "deadbeef"), slog.Int("score", 10)))

	out := buf.String()
	assert.Contains(t, out, "Authorization=***")
	assert.Contains(t, out, "body.password_hash=***")
	assert.Contains(t, out, "body.score=10")
	assert.NotContains(t, out, "deadbeef")
}

func TestMaskingHandler_MasksDerivedKeysAndHashValues(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferLogger(&buf)

	log.Info("config",
		slog.String("db_password", "hunter2"),
		slog.String("X-Api-Key", "k-123"),
		slog.String("stored", "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$a2V5"),
		slog.String("username", "alice"),
	)

	out := buf.String()
	assert.Contains(t, out, "db_password=***")
	assert.Contains(t, out, "X-Api-Key=***")
	assert.Contains(t, out, "stored=***")
	assert.Contains(t, out, "username=alice")
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "k-123")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(" WARN "))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("whatever"))
}

func TestFanoutHandler_DispatchesByLevel(t *testing.T) {
	var all, errorsOnly bytes.Buffer
	h := newFanoutHandler(
		slog.NewTextHandler(&all, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&errorsOnly, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	log := slog.New(h)

	log.Info("info message")
	log.Error("error message")

	assert.Contains(t, all.String(), "info message")
	assert.Contains(t, all.String(), "error message")
	assert.NotContains(t, errorsOnly.String(), "info message")
	assert.Contains(t, errorsOnly.String(), "error message")
}

func TestReportFilter_PassesOnlyMarkedRecords(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(newReportFilter(slog.NewTextHandler(&buf, nil)))

	log.Error("local only")
	log.Error("reported", Report())
	log.With(Report()).Error("reported via with")
	log.WithGroup("req").Error("grouped", Report())
	log.Error("explicitly off", slog.Bool(ReportKey, false))

	out := buf.String()
	assert.NotContains(t, out, "local only")
	assert.Contains(t, out, "msg=reported")
	assert.Contains(t, out, "reported via with")
	assert.Contains(t, out, "msg=grouped")
	assert.NotContains(t, out, "explicitly off")
}

func TestMiddleware_InjectsCorrelationID(t *testing.T) {
	var seen string
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CorrelationIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ranking", nil))

	_, err := uuid.Parse(seen)
	require.NoError(t, err)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
}

func TestMiddleware_ReusesIncomingRequestID(t *testing.T) {
	incoming := uuid.NewString()

	var seen string
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CorrelationIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/ranking", nil)
	req.Header.Set(RequestIDHeader, incoming)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, incoming, seen)
}

func TestCorrelationIDFromContext_Empty(t *testing.T) {
	assert.Equal(t, "", CorrelationIDFromContext(context.Background()))
}
