package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
)

// Record is the persisted state of one idempotency key.
type Record struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response,omitempty"`
}

// Store persists records and the per-key execution lock. Lock returns an
// ownership token that must be presented to ReleaseLock.
type Store interface {
	Lock(ctx context.Context, key string, lockTTL time.Duration) (token string, acquired bool, err error)
	ReleaseLock(ctx context.Context, key, token string) error
	Get(ctx context.Context, key string) (*Record, error)
	Set(ctx context.Context, key string, record *Record, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// releaseScript deletes the lock only while it still belongs to the caller,
// so an expired holder cannot release a lock taken over by someone else.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore keeps each record as a JSON string under idempotency:<key> and
// the lock under idempotency:<key>:lock.
type RedisStore struct {
	client redis.UniversalClient
	log    *slog.Logger
}

func NewRedisStore(client redis.UniversalClient, log *slog.Logger) *RedisStore {
	if log == nil {
		log = slog.Default()
	}

	return &RedisStore{client: client, log: log}
}

func (s *RedisStore) Lock(ctx context.Context, key string, lockTTL time.Duration) (string, bool, error) {
	token := uuid.NewString()

	acquired, err := s.client.SetNX(ctx, lockKey(key), token, lockTTL).Result()
	if err != nil {
		s.log.Error("failed to acquire idempotency lock", slog.String("key", key), slog.Any("error", err))
		return "", false, err
	}
	if !acquired {
		return "", false, nil
	}

	return token, true, nil
}

func (s *RedisStore) ReleaseLock(ctx context.Context, key, token string) error {
	released, err := releaseScript.Run(ctx, s.client, []string{lockKey(key)}, token).Int()
	if err != nil {
		s.log.Error("failed to release idempotency lock", slog.String("key", key), slog.Any("error", err))
		return err
	}
	if released == 0 {
		s.log.Warn("idempotency lock expired before release", slog.String("key", key))
	}

	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Record, error) {
	raw, err := s.client.Get(ctx, recordKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		s.log.Error("failed to fetch idempotency record", slog.String("key", key), slog.Any("error", err))
		return nil, err
	}

	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode idempotency record %s: %w", key, err)
	}

	return &record, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, record *Record, ttl time.Duration) error {
	if record == nil {
		return nil
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode idempotency record %s: %w", key, err)
	}

	if err := s.client.Set(ctx, recordKey(key), raw, ttl).Err(); err != nil {
		s.log.Error("failed to store idempotency record", slog.String("key", key), slog.Any("error", err))
		return err
	}

	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, recordKey(key)).Err(); err != nil {
		s.log.Error("failed to delete idempotency record", slog.String("key", key), slog.Any("error", err))
		return err
	}

	return nil
}

func recordKey(key string) string {
	return "idempotency:" + key
}

func lockKey(key string) string {
	return "idempotency:" + key + ":lock"
}
