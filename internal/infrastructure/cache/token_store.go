package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultTokenKey is the Redis key holding the gateway access token.
const DefaultTokenKey = "payment:gateway:access_token"

// RedisTokenStore shares the gateway access token between service instances.
type RedisTokenStore struct {
	client redis.UniversalClient
	key    string
	logger *zap.Logger
}

func NewRedisTokenStore(client redis.UniversalClient, key string, logger *zap.Logger) *RedisTokenStore {
	if key == "" {
		key = DefaultTokenKey
	}
	return &RedisTokenStore{
		client: client,
		key:    key,
		logger: logger,
	}
}

func (s *RedisTokenStore) Get(ctx context.Context) (string, bool, error) {
	token, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read token: %w", err)
	}
	return token, token != "", nil
}

func (s *RedisTokenStore) Set(ctx context.Context, token string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key, token, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

func (s *RedisTokenStore) Invalidate(ctx context.Context) {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		s.logger.Warn("Failed to invalidate cached gateway token", zap.Error(err))
	}
}
