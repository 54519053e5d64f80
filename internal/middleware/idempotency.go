package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Proton-105/scoreboard/internal/idempotency"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"

	maxIdempotencyKeyLen = 255
)

// ErrKeyTooLong is passed to the renderer for oversized Idempotency-Key headers.
var ErrKeyTooLong = errors.New("idempotency key too long")

// Idempotency executes the rest of the chain at most once per Idempotency-Key
// header. Retries receive the first response with Idempotent-Replayed: true.
// Requests without the header, or with a nil manager, pass through untouched.
func Idempotency(manager idempotency.Manager, render ErrorRenderer, log *slog.Logger) gin.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}

	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if manager == nil || key == "" {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLen {
			render(c, ErrKeyTooLong)
			c.Abort()
			return
		}

		scoped := idempotency.GenerateKey(c.Request.Method, c.FullPath(), key)
		executed := false

		result, err := manager.Execute(c.Request.Context(), scoped, func(context.Context) (*idempotency.Response, error) {
			executed = true

			rec := &bodyRecorder{ResponseWriter: c.Writer}
			c.Writer = rec
			c.Next()

			return &idempotency.Response{
				StatusCode:  rec.Status(),
				ContentType: rec.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
			}, nil
		})

		switch {
		case err == nil:
			if result.FromCache {
				log.Info("replaying idempotent response", slog.String("key", key), slog.Int("status", result.Response.StatusCode))
				c.Header(HeaderReplayed, "true")
				c.Data(result.Response.StatusCode, result.Response.ContentType, result.Response.Body)
				c.Abort()
			}
		case errors.Is(err, idempotency.ErrRequestInProgress):
			render(c, err)
			c.Abort()
		case executed:
			log.Warn("idempotent request completed without a stored response", slog.String("key", key), slog.Any("error", err))
		default:
			// the store is unreachable; serve the request without replay protection
			log.Warn("idempotency store unavailable", slog.String("key", key), slog.Any("error", err))
			c.Next()
		}
	}
}

type bodyRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *bodyRecorder) WriteString(s string) (int, error) {
	r.body.WriteString(s)
	return r.ResponseWriter.WriteString(s)
}
