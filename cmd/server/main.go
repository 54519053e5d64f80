package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Proton-105/scoreboard/internal/errors"
	"github.com/Proton-105/scoreboard/internal/health"
	"github.com/Proton-105/scoreboard/internal/httpapi"
	"github.com/Proton-105/scoreboard/internal/i18n"
	"github.com/Proton-105/scoreboard/internal/idempotency"
	"github.com/Proton-105/scoreboard/internal/lifecycle"
	"github.com/Proton-105/scoreboard/internal/password"
	"github.com/Proton-105/scoreboard/internal/ranking"
	"github.com/Proton-105/scoreboard/internal/repository"
	"github.com/Proton-105/scoreboard/internal/score"
	"github.com/Proton-105/scoreboard/internal/user"
	"github.com/Proton-105/scoreboard/pkg/config"
	"github.com/Proton-105/scoreboard/pkg/graceful"
	"github.com/Proton-105/scoreboard/pkg/logger"
	appredis "github.com/Proton-105/scoreboard/pkg/redis"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "scoreboard: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(*cfg)
	slog.SetDefault(log)

	log.Info("starting scoreboard",
		slog.String("env", cfg.AppEnv),
		slog.String("addr", cfg.Addr()),
		slog.String("database_driver", cfg.Database.Driver),
		slog.Bool("redis_enabled", cfg.Redis.Enabled),
	)

	shutdown := lifecycle.NewShutdown(log)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdown.Execute(shutdownCtx); err != nil {
			log.Error("shutdown finished with errors", slog.Any("error", err))
		}
	}()

	flushSentry, err := logger.InitSentry(*cfg)
	if err != nil {
		return fmt.Errorf("init sentry: %w", err)
	}
	shutdown.Register("sentry", func(context.Context) error {
		flushSentry(2 * time.Second)
		return nil
	})

	config.Watch(v, func(updated *config.Config) {
		logger.SetLevel(updated.Logger.Level)
		log.Info("configuration reloaded", slog.String("log_level", updated.Logger.Level))
	}, func(err error) {
		log.Warn("ignoring invalid configuration update", slog.Any("error", err))
	})

	store, err := repository.Open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	shutdown.Register("store", func(context.Context) error { return store.Close() })

	checker := health.NewChecker(log, 0)
	checker.AddCheck("database", store)

	var idem idempotency.Manager
	if cfg.Redis.Enabled {
		rdb, err := appredis.New(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		shutdown.Register("redis", func(context.Context) error { return rdb.Close() })

		checker.AddCheck("redis", rdb)
		idem = idempotency.NewManager(
			idempotency.NewRedisStore(rdb.Client, log),
			cfg.Idempotency.TTL,
			cfg.Idempotency.LockTTL,
			log,
		)
	} else {
		log.Info("redis disabled; Idempotency-Key headers are ignored")
	}

	translations, err := i18n.Load(cfg.I18n.DefaultLang)
	if err != nil {
		return fmt.Errorf("load translations: %w", err)
	}

	handler := httpapi.NewHandler(httpapi.Deps{
		Users:       user.NewService(store, password.NewHasher(cfg.Password), log),
		Scores:      score.NewService(store, cfg.Ranking.Size, log),
		Ranking:     ranking.NewService(store.Users(), cfg.Ranking.Size, log),
		Errors:      apperrors.NewHandler(log, cfg.Sentry.Enabled),
		I18n:        translations,
		Health:      checker,
		Idempotency: idem,
		Log:         log,
	})

	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := graceful.NewServer(log, cfg.Server, httpapi.NewRouter(cfg.Server, handler, log))
	if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("serve http: %w", err)
	}

	log.Info("scoreboard stopped")
	return nil
}
