package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/weiawesome/cycredit-chat/internal/cache"
	"github.com/weiawesome/cycredit-chat/internal/domain"
	"github.com/weiawesome/cycredit-chat/internal/repository"
	"github.com/weiawesome/cycredit-chat/pkg/log"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// ClampLimit bounds a requested history size to [1, max].
func ClampLimit(limit, max int) int {
	if limit < 1 {
		return 1
	}
	if limit > max {
		return max
	}
	return limit
}

type historyService struct {
	repo     repository.MessageRepository
	cache    cache.MessageCache
	cacheTTL time.Duration
	maxLimit int
	sf       singleflight.Group
}

// NewHistoryService builds the history reader. With a nil or no-op cache
// every call goes to the repository. maxLimit can lower the cap but never
// raise it past MaxHistoryLimit.
func NewHistoryService(
	repo repository.MessageRepository,
	msgCache cache.MessageCache,
	cacheTTL time.Duration,
	maxLimit int,
) HistoryService {
	if maxLimit <= 0 || maxLimit > MaxHistoryLimit {
		maxLimit = MaxHistoryLimit
	}
	return &historyService{
		repo:     repo,
		cache:    msgCache,
		cacheTTL: cacheTTL,
		maxLimit: maxLimit,
	}
}

// GetHistory returns at most limit messages, newest first.
func (s *historyService) GetHistory(ctx context.Context, scope, channel string, limit int) ([]domain.ChatMessage, error) {
	limit = ClampLimit(limit, s.maxLimit)

	if _, disabled := s.cache.(cache.NoopCache); s.cache == nil || disabled {
		messages, err := s.repo.Recent(ctx, scope, channel, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to get messages from repository: %w", err)
		}
		return nonNil(messages), nil
	}

	roomKey := domain.RoomKey(scope, channel)
	version, err := s.cache.Version(ctx, roomKey)
	if err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldRoom, roomKey).Msg("cache version error")
		messages, err := s.repo.Recent(ctx, scope, channel, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to get messages from repository: %w", err)
		}
		return nonNil(messages), nil
	}

	sfKey := roomKey + "#" + strconv.FormatInt(version, 10)
	result, err, _ := s.sf.Do(sfKey, func() (interface{}, error) {
		return s.fetchWithCache(ctx, scope, channel, roomKey, version)
	})
	if err != nil {
		return nil, err
	}

	window, ok := result.([]domain.ChatMessage)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from singleflight")
	}
	if len(window) > limit {
		window = window[:limit]
	}
	// Callers may share the singleflight result; hand out a copy.
	out := make([]domain.ChatMessage, len(window))
	copy(out, window)
	return out, nil
}

// fetchWithCache loads the room's newest maxLimit messages, from the cache
// when possible.
func (s *historyService) fetchWithCache(ctx context.Context, scope, channel, roomKey string, version int64) ([]domain.ChatMessage, error) {
	cached, err := s.cache.Get(ctx, roomKey, version)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldRoom, roomKey).Msg("cache get error")
	}

	messages, err := s.repo.Recent(ctx, scope, channel, s.maxLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages from repository: %w", err)
	}
	messages = nonNil(messages)

	go func() {
		cacheCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.cache.Set(cacheCtx, roomKey, version, messages, s.cacheTTL); err != nil {
			l := log.L()
			l.Warn().Err(err).Str(log.FieldRoom, roomKey).Msg("cache set error")
		}
	}()

	return messages, nil
}

func nonNil(messages []domain.ChatMessage) []domain.ChatMessage {
	if messages == nil {
		return []domain.ChatMessage{}
	}
	return messages
}
