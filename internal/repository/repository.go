// Package repository defines persistence contracts for users and their score
// ledger, with PostgreSQL and in-memory implementations.
package repository

import (
	"context"
	"errors"

	"github.com/Proton-105/scoreboard/internal/domain"
)

var (
	// ErrNotFound is returned when the referenced user does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicate is returned when a username is already taken.
	ErrDuplicate = errors.New("repository: duplicate")
	// ErrOutOfRange is returned when a value or an aggregate does not fit its column.
	ErrOutOfRange = errors.New("repository: value out of range")
)

// UserRepository persists accounts and their score aggregates.
type UserRepository interface {
	// Create inserts user and fills its ID, aggregates and CreatedAt.
	Create(ctx context.Context, user *domain.User) error
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
	// LockAggregates reads the aggregates of id and holds them until the
	// surrounding transaction ends.
	LockAggregates(ctx context.Context, id int64) (domain.Aggregates, error)
	// AddScore folds score into best_score and total_score and returns the result.
	// It fails with ErrOutOfRange instead of overflowing total_score.
	AddScore(ctx context.Context, id int64, score int64) (domain.Aggregates, error)
	// Top returns at most n users ordered by best score descending, ties by id.
	Top(ctx context.Context, n int) ([]domain.RankingEntry, error)
}

// ScoreRepository persists the append-only score ledger.
type ScoreRepository interface {
	// Append inserts entry and fills its ID and RecordedAt.
	Append(ctx context.Context, entry *domain.ScoreEntry) error
	BestPerLevel(ctx context.Context, userID int64) (map[int]int64, error)
}

// Tx exposes repositories bound to one unit of work.
type Tx interface {
	Users() UserRepository
	Scores() ScoreRepository
}

// Store is the storage root used by services.
type Store interface {
	Tx
	// WithTx runs fn atomically. Any error returned by fn discards its writes.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	HealthCheck(ctx context.Context) error
	Close() error
}
