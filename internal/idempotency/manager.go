// Package idempotency lets a request run at most once per client-supplied key
// and replays the stored response to retries.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

var ErrRequestInProgress = errors.New("request with this key is already in progress")

// Response is the replayable outcome of an operation.
type Response struct {
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

type Operation func(ctx context.Context) (*Response, error)

type Result struct {
	Response  *Response
	FromCache bool
}

type Manager interface {
	Execute(ctx context.Context, key string, fn Operation) (*Result, error)
}

type manager struct {
	store   Store
	ttl     time.Duration
	lockTTL time.Duration
	log     *slog.Logger
}

// NewManager builds a Manager that keeps completed responses for ttl and
// holds the per-key lock for at most lockTTL.
func NewManager(store Store, ttl, lockTTL time.Duration, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}

	return &manager{
		store:   store,
		ttl:     ttl,
		lockTTL: lockTTL,
		log:     log,
	}
}

// Execute runs fn unless key already has a completed response, in which case
// that response is returned with FromCache set. A concurrent call for the same
// key fails with ErrRequestInProgress. Errors and 5xx responses are not stored.
func (m *manager) Execute(ctx context.Context, key string, fn Operation) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if fn == nil {
		return nil, errors.New("operation fn cannot be nil")
	}

	if cached, err := m.completed(ctx, key); err != nil || cached != nil {
		return cached, err
	}

	token, locked, err := m.store.Lock(ctx, key, m.lockTTL)
	if err != nil {
		return nil, err
	}
	if !locked {
		if cached, err := m.completed(ctx, key); err != nil || cached != nil {
			return cached, err
		}
		return nil, ErrRequestInProgress
	}

	defer func() {
		if err := m.store.ReleaseLock(context.WithoutCancel(ctx), key, token); err != nil {
			m.log.Warn("failed to release idempotency lock", slog.String("key", key), slog.Any("error", err))
		}
	}()

	// another holder may have finished between the first lookup and the lock
	if cached, err := m.completed(ctx, key); err != nil || cached != nil {
		return cached, err
	}

	if err := m.store.Set(ctx, key, &Record{Status: StatusProcessing}, m.lockTTL); err != nil {
		return nil, err
	}

	resp, err := fn(ctx)
	if err != nil || resp == nil || resp.StatusCode >= http.StatusInternalServerError {
		if delErr := m.store.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			m.log.Warn("failed to drop idempotency record", slog.String("key", key), slog.Any("error", delErr))
		}
		if err != nil {
			return nil, err
		}
		return &Result{Response: resp}, nil
	}

	encoded, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("encode idempotent response: %w", err)
	}

	if err := m.store.Set(context.WithoutCancel(ctx), key, &Record{
		Status:   StatusCompleted,
		Response: encoded,
	}, m.ttl); err != nil {
		m.log.Error("failed to store idempotent response", slog.String("key", key), slog.Any("error", err))
	}

	return &Result{Response: resp}, nil
}

func (m *manager) completed(ctx context.Context, key string) (*Result, error) {
	record, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if record == nil || record.Status != StatusCompleted {
		return nil, nil
	}

	var resp Response
	if err := json.Unmarshal(record.Response, &resp); err != nil {
		return nil, fmt.Errorf("decode idempotent response: %w", err)
	}

	return &Result{Response: &resp, FromCache: true}, nil
}
