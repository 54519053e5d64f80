package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/Proton-105/scoreboard/internal/database"
	"github.com/Proton-105/scoreboard/internal/domain"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgNumericOutOfRange   = "22003"
)

// PostgresStore implements Store on top of database/sql and lib/pq.
type PostgresStore struct {
	db     *sql.DB
	log    *slog.Logger
	users  *userRepository
	scores *scoreRepository
}

// NewPostgresStore wraps an open connection pool.
func NewPostgresStore(db *sql.DB, log *slog.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		log:    log,
		users:  &userRepository{db: db, log: log},
		scores: &scoreRepository{db: db, log: log},
	}
}

func (s *PostgresStore) Users() UserRepository   { return s.users }
func (s *PostgresStore) Scores() ScoreRepository { return s.scores }

// WithTx runs fn inside a database transaction.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return database.WithTx(ctx, s.db, nil, func(ctx context.Context, dbtx database.DBTX) error {
		return fn(ctx, &pgTx{
			users:  &userRepository{db: dbtx, log: s.log},
			scores: &scoreRepository{db: dbtx, log: s.log},
		})
	})
}

// HealthCheck pings the database.
func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type pgTx struct {
	users  *userRepository
	scores *scoreRepository
}

func (t *pgTx) Users() UserRepository   { return t.users }
func (t *pgTx) Scores() ScoreRepository { return t.scores }

type userRepository struct {
	db  database.DBTX
	log *slog.Logger
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
		INSERT INTO users (username, password_hash)
		VALUES ($1, $2)
		RETURNING id, best_score, total_score, level_unlocked, created_at
	`

	err := r.db.QueryRowContext(ctx, query, user.Username, user.PasswordHash).Scan(
		&user.ID,
		&user.BestScore,
		&user.TotalScore,
		&user.LevelUnlocked,
		&user.CreatedAt,
	)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return fmt.Errorf("insert user %q: %w", user.Username, ErrDuplicate)
		}

		r.logError("failed to create user", err, slog.String("username", user.Username))
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	const query = `
		SELECT id, username, password_hash, best_score, total_score, level_unlocked, created_at
		FROM users
		WHERE username = $1
	`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		r.logError("failed to fetch user by username", err, slog.String("username", username))
		return nil, fmt.Errorf("select user by username: %w", err)
	}

	return user, nil
}

func (r *userRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	const query = `
		SELECT id, username, password_hash, best_score, total_score, level_unlocked, created_at
		FROM users
		WHERE id = $1
	`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		r.logError("failed to fetch user by id", err, slog.Int64("user_id", id))
		return nil, fmt.Errorf("select user by id: %w", err)
	}

	return user, nil
}

func (r *userRepository) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, hash)
	if err != nil {
		r.logError("failed to update password hash", err, slog.Int64("user_id", id))
		return fmt.Errorf("update password hash: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update password hash rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *userRepository) LockAggregates(ctx context.Context, id int64) (domain.Aggregates, error) {
	const query = `SELECT best_score, total_score FROM users WHERE id = $1 FOR UPDATE`

	var agg domain.Aggregates
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&agg.BestScore, &agg.TotalScore); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Aggregates{}, ErrNotFound
		}

		r.logError("failed to lock user aggregates", err, slog.Int64("user_id", id))
		return domain.Aggregates{}, fmt.Errorf("lock aggregates: %w", err)
	}

	return agg, nil
}

func (r *userRepository) AddScore(ctx context.Context, id int64, score int64) (domain.Aggregates, error) {
	const query = `
		UPDATE users
		SET best_score = GREATEST(best_score, $2),
		    total_score = total_score + $2
		WHERE id = $1
		RETURNING best_score, total_score
	`

	var agg domain.Aggregates
	if err := r.db.QueryRowContext(ctx, query, id, score).Scan(&agg.BestScore, &agg.TotalScore); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Aggregates{}, ErrNotFound
		}
		if pgCode(err) == pgNumericOutOfRange {
			return domain.Aggregates{}, fmt.Errorf("update aggregates for user %d: %w", id, ErrOutOfRange)
		}

		r.logError("failed to update user aggregates", err, slog.Int64("user_id", id))
		return domain.Aggregates{}, fmt.Errorf("update aggregates: %w", err)
	}

	return agg, nil
}

func (r *userRepository) Top(ctx context.Context, n int) ([]domain.RankingEntry, error) {
	const query = `
		SELECT username, best_score
		FROM users
		ORDER BY best_score DESC, id ASC
		LIMIT $1
	`

	if n < 0 {
		n = 0
	}

	rows, err := r.db.QueryContext(ctx, query, n)
	if err != nil {
		r.logError("failed to query ranking", err)
		return nil, fmt.Errorf("select ranking: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.RankingEntry, 0, n)
	for rows.Next() {
		var e domain.RankingEntry
		if err := rows.Scan(&e.Username, &e.BestScore); err != nil {
			return nil, fmt.Errorf("scan ranking row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ranking: %w", err)
	}

	return entries, nil
}

func (r *userRepository) logError(msg string, err error, attrs ...any) {
	if r.log == nil {
		return
	}

	r.log.Error(msg, append(attrs, slog.Any("error", err))...)
}

type scoreRepository struct {
	db  database.DBTX
	log *slog.Logger
}

func (r *scoreRepository) Append(ctx context.Context, entry *domain.ScoreEntry) error {
	const query = `
		INSERT INTO scores (user_id, level, score)
		VALUES ($1, $2, $3)
		RETURNING id, recorded_at
	`

	if err := r.db.QueryRowContext(ctx, query, entry.UserID, entry.Level, entry.Score).Scan(&entry.ID, &entry.RecordedAt); err != nil {
		switch pgCode(err) {
		case pgForeignKeyViolation:
			return fmt.Errorf("insert score for user %d: %w", entry.UserID, ErrNotFound)
		case pgNumericOutOfRange:
			return fmt.Errorf("insert score for user %d: %w", entry.UserID, ErrOutOfRange)
		}

		if r.log != nil {
			r.log.Error("failed to append score", slog.Int64("user_id", entry.UserID), slog.Any("error", err))
		}
		return fmt.Errorf("insert score: %w", err)
	}

	return nil
}

func (r *scoreRepository) BestPerLevel(ctx context.Context, userID int64) (map[int]int64, error) {
	const query = `
		SELECT level, MAX(score)
		FROM scores
		WHERE user_id = $1
		GROUP BY level
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("select best per level: %w", err)
	}
	defer rows.Close()

	best := make(map[int]int64)
	for rows.Next() {
		var (
			level int
			score int64
		)
		if err := rows.Scan(&level, &score); err != nil {
			return nil, fmt.Errorf("scan best per level: %w", err)
		}
		best[level] = score
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate best per level: %w", err)
	}

	return best, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.BestScore,
		&user.TotalScore,
		&user.LevelUnlocked,
		&user.CreatedAt,
	); err != nil {
		return nil, err
	}

	return &user, nil
}

func pgCode(err error) pq.ErrorCode {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code
	}
	return ""
}
