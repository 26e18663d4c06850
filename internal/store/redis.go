package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisStore implements FeatureStore on a single Redis instance. Each
// (namespace, key) pair maps to one Redis key holding a JSON blob with an
// expiry, so per-key operations inherit Redis atomicity.
type RedisStore struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewRedisStore(client *redis.Client, logger *logrus.Logger) *RedisStore {
	return &RedisStore{client: client, logger: logger}
}

func (s *RedisStore) redisKey(namespace, key string) string {
	return namespace + ":" + key
}

func (s *RedisStore) Get(ctx context.Context, namespace, key string) (map[string]interface{}, error) {
	data, err := s.client.Get(ctx, s.redisKey(namespace, key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s/%s: %w", namespace, key, err)
	}

	var value map[string]interface{}
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("unmarshal %s/%s: %w", namespace, key, err)
	}
	return value, nil
}

func (s *RedisStore) Set(ctx context.Context, namespace, key string, value map[string]interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", namespace, key, err)
	}

	if err := s.client.Set(ctx, s.redisKey(namespace, key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, namespace, key string) error {
	if err := s.client.Del(ctx, s.redisKey(namespace, key)).Err(); err != nil {
		return fmt.Errorf("redis del %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
