package errors

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Proton-105/scoreboard/pkg/logger"
	"github.com/Proton-105/scoreboard/pkg/metrics"
)

type Handler struct {
	log           *slog.Logger
	sentryEnabled bool
}

func NewHandler(log *slog.Logger, sentryEnabled bool) *Handler {
	return &Handler{
		log:           log,
		sentryEnabled: sentryEnabled,
	}
}

// Handle logs err and returns it as an AppError. High and critical errors are
// marked for Sentry, so each failure produces one event.
// Errors that are not AppErrors are treated as critical internal failures.
func (h *Handler) Handle(ctx context.Context, err error) *AppError {
	if err == nil {
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}

	log := slog.Default()
	if h != nil && h.log != nil {
		log = h.log
	}

	var appErr *AppError
	if !errors.As(err, &appErr) || appErr == nil {
		appErr = NewInternalError(err)
	}

	attrs := []slog.Attr{
		slog.String("code", appErr.Code),
		slog.String("kind", string(appErr.Kind)),
		slog.String("message", appErr.Message),
		slog.String("severity", string(appErr.Severity)),
	}

	if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
		attrs = append(attrs, slog.String("correlation_id", correlationID))
	}

	metrics.RecordError(string(appErr.Kind), string(appErr.Severity))

	switch appErr.Severity {
	case SeverityHigh, SeverityCritical:
		attrs = append(attrs, slog.Any("error", err))
		if h != nil && h.sentryEnabled {
			attrs = append(attrs, logger.Report())
		}
		log.LogAttrs(ctx, slog.LevelError, "application error", attrs...)
	default:
		log.LogAttrs(ctx, slog.LevelInfo, "request rejected", attrs...)
	}

	return appErr
}
