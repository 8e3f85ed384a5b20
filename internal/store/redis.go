package store

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

func (s *RedisStore) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.redisKey(namespace, key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "redis get %s/%s", namespace, key)
	}
	return data, nil
}

func (s *RedisStore) Set(ctx context.Context, namespace, key string, doc []byte) error {
	if err := s.client.Set(ctx, s.redisKey(namespace, key), doc, 0).Err(); err != nil {
		return errors.Wrapf(err, "redis set %s/%s", namespace, key)
	}
	return nil
}

func (s *RedisStore) redisKey(namespace, key string) string {
	if s.prefix == "" {
		return fmt.Sprintf("%s:%s", namespace, key)
	}
	return fmt.Sprintf("%s:%s:%s", s.prefix, namespace, key)
}
