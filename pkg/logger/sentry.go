package logger

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/Proton-105/scoreboard/pkg/config"
)

// InitSentry configures the global Sentry client and returns a flush function for shutdown.
// It is a no-op when Sentry is disabled.
func InitSentry(cfg config.Config) (func(time.Duration) bool, error) {
	if !cfg.Sentry.Enabled {
		return func(time.Duration) bool { return true }, nil
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.Sentry.DSN,
		Environment:      cfg.AppEnv,
		SampleRate:       cfg.Sentry.SampleRate,
		AttachStacktrace: true,
	}); err != nil {
		return nil, fmt.Errorf("init sentry: %w", err)
	}

	return sentry.Flush, nil
}
