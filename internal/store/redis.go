package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const plansCacheKey = "plans:cache"

// RedisStore caches responses from the upstream app API.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// CachedPlans returns the cached plans response body, or nil on a cache miss.
func (s *RedisStore) CachedPlans(ctx context.Context) ([]byte, error) {
	body, err := s.client.Get(ctx, plansCacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading plans cache: %w", err)
	}
	return body, nil
}

// CachePlans stores the plans response body with the given TTL.
func (s *RedisStore) CachePlans(ctx context.Context, body []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, plansCacheKey, body, ttl).Err(); err != nil {
		return fmt.Errorf("writing plans cache: %w", err)
	}
	return nil
}
