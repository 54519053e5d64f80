// Package logger builds the application slog.Logger.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	slogsentry "github.com/samber/slog-sentry/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Proton-105/scoreboard/pkg/config"
)

var level = new(slog.LevelVar)

// ReportKey marks a record for Sentry. Error records without it stay local.
const ReportKey = "report"

// Report is the attribute that sends an error record to Sentry.
func Report() slog.Attr {
	return slog.Bool(ReportKey, true)
}

// New creates a structured logger configured from cfg.
// Records are masked for sensitive keys and, when Sentry is enabled, error
// records carrying Report are also sent to Sentry.
func New(cfg config.Config) *slog.Logger {
	level.Set(ParseLevel(cfg.Logger.Level))

	opts := &slog.HandlerOptions{Level: level}

	var base slog.Handler
	out := output(cfg.Logger)
	if strings.EqualFold(cfg.Logger.Format, "text") {
		base = slog.NewTextHandler(out, opts)
	} else {
		base = slog.NewJSONHandler(out, opts)
	}

	var handler slog.Handler = NewMaskingHandler(base)
	if cfg.Sentry.Enabled {
		sentryHandler := slogsentry.Option{Level: slog.LevelError, AddSource: true}.NewSentryHandler()
		handler = newFanoutHandler(handler, newReportFilter(NewMaskingHandler(sentryHandler)))
	}

	return slog.New(handler).With(slog.String("env", cfg.AppEnv))
}

// SetLevel changes the level of every logger created by New.
func SetLevel(name string) {
	level.Set(ParseLevel(name))
}

// ParseLevel maps a config level name to slog.Level, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func output(cfg config.LoggerConfig) io.Writer {
	if cfg.File == "" {
		return os.Stdout
	}

	rotating := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}

	return io.MultiWriter(os.Stdout, rotating)
}

// fanoutHandler dispatches each record to every enabled handler.
type fanoutHandler struct {
	handlers []slog.Handler
}

func newFanoutHandler(handlers ...slog.Handler) *fanoutHandler {
	return &fanoutHandler{handlers: handlers}
}

func (h *fanoutHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	for _, next := range h.handlers {
		if next.Enabled(ctx, lvl) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, next := range h.handlers {
		if !next.Enabled(ctx, record.Level) {
			continue
		}
		if err := next.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, 0, len(h.handlers))
	for _, next := range h.handlers {
		handlers = append(handlers, next.WithAttrs(attrs))
	}
	return &fanoutHandler{handlers: handlers}
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, 0, len(h.handlers))
	for _, next := range h.handlers {
		handlers = append(handlers, next.WithGroup(name))
	}
	return &fanoutHandler{handlers: handlers}
}

// reportFilter passes on only the records marked with Report.
type reportFilter struct {
	next   slog.Handler
	marked bool
}

func newReportFilter(next slog.Handler) *reportFilter {
	return &reportFilter{next: next}
}

func (h *reportFilter) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.next.Enabled(ctx, lvl)
}

func (h *reportFilter) Handle(ctx context.Context, record slog.Record) error {
	marked := h.marked
	record.Attrs(func(a slog.Attr) bool {
		if isReport(a) {
			marked = true
			return false
		}
		return true
	})
	if !marked {
		return nil
	}
	return h.next.Handle(ctx, record)
}

func (h *reportFilter) WithAttrs(attrs []slog.Attr) slog.Handler {
	marked := h.marked
	for _, a := range attrs {
		if isReport(a) {
			marked = true
		}
	}
	return &reportFilter{next: h.next.WithAttrs(attrs), marked: marked}
}

func (h *reportFilter) WithGroup(name string) slog.Handler {
	return &reportFilter{next: h.next.WithGroup(name), marked: h.marked}
}

func isReport(a slog.Attr) bool {
	return a.Key == ReportKey && a.Value.Kind() == slog.KindBool && a.Value.Bool()
}
