package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps items as plain string keys. Items never expire.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) GetItem(ctx context.Context, key string) (string, bool, error) {
	if strings.TrimSpace(key) == "" {
		return "", false, errors.New("get kv item: key must not be empty")
	}

	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get kv item key=%q: %w", key, err)
	}
	return v, true, nil
}

func (s *RedisStore) SetItem(ctx context.Context, key string, value string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("insert kv item: key must not be empty")
	}

	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("insert kv item key=%q: %w", key, err)
	}
	return nil
}
