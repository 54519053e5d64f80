package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Proton-105/scoreboard/internal/database"
	"github.com/Proton-105/scoreboard/pkg/config"
)

// Open builds the Store selected by cfg.Database.Driver. For PostgreSQL the
// embedded migrations are applied before the store is returned.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger) (Store, error) {
	switch cfg.Database.Driver {
	case "memory":
		log.Warn("using in-memory store; data is lost on restart")
		return NewMemoryStore(), nil
	case "postgres":
		db, err := database.OpenPostgres(ctx, cfg)
		if err != nil {
			return nil, err
		}

		if err := database.NewMigrator(db, log).Up(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}

		log.Info("database connection established", slog.String("host", cfg.Database.Host), slog.String("name", cfg.Database.Name))
		return NewPostgresStore(db, log), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}
