package logger

import (
	"context"
	"log/slog"
	"strings"
)

const redacted = "***"

// Attribute keys are normalised to lower snake case and redacted when they
// contain any of these fragments, so "db_password" and "X-Api-Key" match too.
var sensitiveFragments = []string{
	"password",
	"token",
	"secret",
	"api_key",
	"authorization",
	"idempotency_key",
}

// Values that look like stored credential hashes are redacted whatever their key.
var sensitiveValuePrefixes = []string{"$argon2"}

// MaskingHandler redacts credentials from records before delegating to next.
type MaskingHandler struct {
	next slog.Handler
}

func NewMaskingHandler(next slog.Handler) *MaskingHandler {
	return &MaskingHandler{next: next}
}

func (h *MaskingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *MaskingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &MaskingHandler{next: h.next.WithAttrs(maskAll(attrs))}
}

func (h *MaskingHandler) WithGroup(name string) slog.Handler {
	return &MaskingHandler{next: h.next.WithGroup(name)}
}

func (h *MaskingHandler) Handle(ctx context.Context, record slog.Record) error {
	out := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)

	attrs := make([]slog.Attr, 0, record.NumAttrs())
	record.Attrs(func(attr slog.Attr) bool {
		attrs = append(attrs, attr)
		return true
	})
	out.AddAttrs(maskAll(attrs)...)

	return h.next.Handle(ctx, out)
}

func maskAll(attrs []slog.Attr) []slog.Attr {
	masked := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		masked[i] = maskAttr(attr)
	}
	return masked
}

func maskAttr(attr slog.Attr) slog.Attr {
	if isSensitiveKey(attr.Key) {
		return slog.String(attr.Key, redacted)
	}

	value := attr.Value.Resolve()
	switch value.Kind() {
	case slog.KindGroup:
		return slog.Attr{Key: attr.Key, Value: slog.GroupValue(maskAll(value.Group())...)}
	case slog.KindString:
		for _, prefix := range sensitiveValuePrefixes {
			if strings.HasPrefix(value.String(), prefix) {
				return slog.String(attr.Key, redacted)
			}
		}
	}

	return attr
}

func isSensitiveKey(key string) bool {
	norm := strings.ToLower(strings.ReplaceAll(key, "-", "_"))
	for _, fragment := range sensitiveFragments {
		if strings.Contains(norm, fragment) {
			return true
		}
	}
	return false
}
