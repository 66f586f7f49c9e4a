package cache

import (
	"context"
	"errors"
	"time"

	"github.com/weiawesome/cycredit-chat/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

// MessageCache holds the newest messages of a room. Entries are versioned
// per room: Invalidate bumps the version, so a read that started before a
// write can never repopulate the cache with stale data.
type MessageCache interface {
	Version(ctx context.Context, roomKey string) (int64, error)
	Get(ctx context.Context, roomKey string, version int64) ([]domain.ChatMessage, error)
	Set(ctx context.Context, roomKey string, version int64, messages []domain.ChatMessage, ttl time.Duration) error
	Invalidate(ctx context.Context, roomKey string) error
	Close() error
}

// NoopCache is used when caching is disabled; every read misses.
type NoopCache struct{}

func (NoopCache) Version(context.Context, string) (int64, error) { return 0, nil }

func (NoopCache) Get(context.Context, string, int64) ([]domain.ChatMessage, error) {
	return nil, ErrCacheMiss
}

func (NoopCache) Set(context.Context, string, int64, []domain.ChatMessage, time.Duration) error {
	return nil
}

func (NoopCache) Invalidate(context.Context, string) error { return nil }

func (NoopCache) Close() error { return nil }
