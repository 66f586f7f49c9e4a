package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/weiawesome/cycredit-chat/internal/config"
	"github.com/weiawesome/cycredit-chat/internal/domain"
)

type RedisMessageCache struct {
	client *redis.Client
	prefix string
}

func NewRedisMessageCache(cfg config.RedisConfig, prefix string) (*RedisMessageCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisMessageCache{client: client, prefix: prefix}, nil
}

func (c *RedisMessageCache) versionKey(roomKey string) string {
	return fmt.Sprintf("%s:%s:ver", c.prefix, roomKey)
}

func (c *RedisMessageCache) dataKey(roomKey string, version int64) string {
	return fmt.Sprintf("%s:%s:v%d", c.prefix, roomKey, version)
}

func (c *RedisMessageCache) Version(ctx context.Context, roomKey string) (int64, error) {
	v, err := c.client.Get(ctx, c.versionKey(roomKey)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get cache version: %w", err)
	}
	return v, nil
}

func (c *RedisMessageCache) Get(ctx context.Context, roomKey string, version int64) ([]domain.ChatMessage, error) {
	data, err := c.client.Get(ctx, c.dataKey(roomKey, version)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var messages []domain.ChatMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache data: %w", err)
	}
	return messages, nil
}

func (c *RedisMessageCache) Set(ctx context.Context, roomKey string, version int64, messages []domain.ChatMessage, ttl time.Duration) error {
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}
	if err := c.client.Set(ctx, c.dataKey(roomKey, version), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}
	return nil
}

func (c *RedisMessageCache) Invalidate(ctx context.Context, roomKey string) error {
	if err := c.client.Incr(ctx, c.versionKey(roomKey)).Err(); err != nil {
		return fmt.Errorf("failed to bump cache version: %w", err)
	}
	return nil
}

func (c *RedisMessageCache) Close() error {
	return c.client.Close()
}
