// Package ranking serves the global leaderboard.
package ranking

import (
	"context"
	"log/slog"

	"github.com/Proton-105/scoreboard/internal/domain"
	"github.com/Proton-105/scoreboard/internal/errors"
	"github.com/Proton-105/scoreboard/internal/repository"
)

// Service reads the leaderboard straight from storage on every call.
type Service struct {
	users repository.UserRepository
	size  int
	log   *slog.Logger
}

func NewService(users repository.UserRepository, size int, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{users: users, size: size, log: log}
}

// Top returns up to the configured number of users ordered by best score.
// The slice is empty, never nil, when nobody has registered.
func (s *Service) Top(ctx context.Context) ([]domain.RankingEntry, error) {
	entries, err := s.users.Top(ctx, s.size)
	if err != nil {
		s.log.Error("failed to load ranking", slog.Any("error", err))
		return nil, errors.NewDatabaseError(err)
	}

	if entries == nil {
		entries = []domain.RankingEntry{}
	}
	return entries, nil
}
