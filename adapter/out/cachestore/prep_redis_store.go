package cachestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"prep_server/core/domain"
	"prep_server/core/port/out"
	"prep_server/pkg/apperr"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares feature entries between hosts. SET replaces a value
// atomically, so readers never observe a partial entry.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ out.CacheStore = (*RedisStore)(nil)

// NewRedisStore creates a store. ttl <= 0 keeps entries until deleted.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

// Key renders the redis key for a feature key.
func (s *RedisStore) Key(key domain.FeatureKey) string {
	return fmt.Sprintf("%s%s:%d:%s", s.prefix, escapeName(key.Tokenizer), key.BlockSize, escapeName(key.Split))
}

func (s *RedisStore) Get(ctx context.Context, key domain.FeatureKey) ([]byte, bool, error) {
	if err := key.Validate(); err != nil {
		return nil, false, err
	}
	data, err := s.client.Get(ctx, s.Key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperr.UpstreamFailure("redis", err)
	}
	return data, true, nil
}

func (s *RedisStore) Put(ctx context.Context, key domain.FeatureKey, data []byte) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.Key(key), data, s.ttl).Err(); err != nil {
		return apperr.UpstreamFailure("redis", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key domain.FeatureKey) error {
	if err := s.client.Del(ctx, s.Key(key)).Err(); err != nil {
		return apperr.UpstreamFailure("redis", err)
	}
	return nil
}
