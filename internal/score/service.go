// Package score records play sessions and keeps the per-user aggregates in step
// with the ledger.
package score

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Proton-105/scoreboard/internal/domain"
	"github.com/Proton-105/scoreboard/internal/errors"
	"github.com/Proton-105/scoreboard/internal/repository"
	"github.com/Proton-105/scoreboard/pkg/metrics"
)

// Submission is one finished play session reported by a client.
type Submission struct {
	UserID int64
	Level  int
	Score  int64
}

// Service applies score submissions.
type Service struct {
	store       repository.Store
	rankingSize int
	log         *slog.Logger
}

// NewService constructs a Service whose responses embed the top rankingSize users.
func NewService(store repository.Store, rankingSize int, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, rankingSize: rankingSize, log: log}
}

// Submit appends the entry, folds it into the user's aggregates and returns the
// post-commit view. Everything happens in one transaction; on any failure
// nothing is written.
func (s *Service) Submit(ctx context.Context, sub Submission) (*domain.ScoreResult, error) {
	if err := validate(sub); err != nil {
		return nil, err
	}

	var result *domain.ScoreResult
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		prior, err := tx.Users().LockAggregates(ctx, sub.UserID)
		if err != nil {
			return err
		}

		entry := &domain.ScoreEntry{UserID: sub.UserID, Level: sub.Level, Score: sub.Score}
		if err := tx.Scores().Append(ctx, entry); err != nil {
			return err
		}

		agg, err := tx.Users().AddScore(ctx, sub.UserID, sub.Score)
		if err != nil {
			return err
		}

		best, err := tx.Scores().BestPerLevel(ctx, sub.UserID)
		if err != nil {
			return err
		}

		top, err := tx.Users().Top(ctx, s.rankingSize)
		if err != nil {
			return err
		}

		result = &domain.ScoreResult{
			Entry:        entry,
			Updated:      sub.Score > prior.BestScore,
			BestScore:    agg.BestScore,
			TotalScore:   agg.TotalScore,
			PerLevelBest: best,
			Ranking:      top,
		}
		return nil
	})
	if err != nil {
		if stdErrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NewUserNotFoundError(strconv.FormatInt(sub.UserID, 10), err)
		}
		if stdErrors.Is(err, repository.ErrOutOfRange) {
			return nil, errors.NewValidationError(fmt.Sprintf("score %d does not fit the totals of user %d: %v", sub.Score, sub.UserID, err), "")
		}

		s.log.Error("score submission failed",
			slog.Int64("user_id", sub.UserID),
			slog.Int("level", sub.Level),
			slog.Any("error", err),
		)
		return nil, errors.NewDatabaseError(err)
	}

	metrics.RecordScoreSubmission(result.Updated)
	s.log.Debug("score recorded",
		slog.Int64("user_id", sub.UserID),
		slog.Int("level", sub.Level),
		slog.Int64("score", sub.Score),
		slog.Bool("new_best", result.Updated),
	)

	return result, nil
}

func validate(sub Submission) error {
	switch {
	case sub.UserID <= 0:
		return errors.NewValidationError(fmt.Sprintf("invalid user id %d", sub.UserID), "")
	case sub.Score < 0:
		return errors.NewValidationError(fmt.Sprintf("negative score %d", sub.Score), "")
	case sub.Score > domain.MaxScore:
		return errors.NewValidationError(fmt.Sprintf("score %d exceeds %d", sub.Score, domain.MaxScore), "")
	case sub.Level < domain.DefaultLevel || sub.Level > domain.MaxLevel:
		return errors.NewValidationError(fmt.Sprintf("invalid level %d", sub.Level), "")
	}
	return nil
}
