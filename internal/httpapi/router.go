package httpapi

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Proton-105/scoreboard/internal/middleware"
	"github.com/Proton-105/scoreboard/pkg/config"
	"github.com/Proton-105/scoreboard/pkg/logger"
	"github.com/Proton-105/scoreboard/pkg/metrics"
)

// NewRouter assembles the gin engine and wraps it with the correlation-id middleware.
func NewRouter(cfg config.ServerConfig, h *Handler, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	engine.Use(
		middleware.Logging(log),
		middleware.Metrics(),
		cors.New(corsConfig(cfg.CORSOrigins)),
		middleware.Recovery(h.fail),
	)

	h.RegisterRoutes(engine)
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.StaticDir != "" {
		mountStatic(engine, cfg.StaticDir, log)
	}

	return logger.Middleware(engine)
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Accept-Language", middleware.HeaderIdempotencyKey, logger.RequestIDHeader},
		ExposeHeaders: []string{logger.RequestIDHeader, middleware.HeaderReplayed},
		MaxAge:        12 * time.Hour,
	}

	if len(origins) == 0 || slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}

	return c
}

// mountStatic serves the browser game: index.html at / and assets under /static.
func mountStatic(engine *gin.Engine, dir string, log *slog.Logger) {
	if _, err := os.Stat(dir); err != nil {
		log.Warn("static directory unavailable, not serving the game page", slog.String("dir", dir), slog.Any("error", err))
		return
	}

	engine.Static("/static", dir)

	index := filepath.Join(dir, "index.html")
	if _, err := os.Stat(index); err == nil {
		engine.StaticFile("/", index)
	}
}
