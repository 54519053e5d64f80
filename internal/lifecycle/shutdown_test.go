package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShutdown_ReverseOrderAndErrors(t *testing.T) {
	s := NewShutdown(slog.New(slog.NewTextHandler(io.Discard, nil)))

	var order []string
	boom := errors.New("boom")

	s.Register("store", func(context.Context) error {
		order = append(order, "store")
		return nil
	})
	s.Register("redis", func(context.Context) error {
		order = append(order, "redis")
		return boom
	})
	s.Register("nil", nil)
	s.Register("http", func(context.Context) error {
		order = append(order, "http")
		return nil
	})

	err := s.Execute(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "redis: boom")
	assert.Equal(t, []string{"http", "redis", "store"}, order)

	// hooks run only once
	assert.NoError(t, s.Execute(context.Background()))
	assert.Len(t, order, 3)
}
