package infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCacheStore implementa domain.CacheStore com GET e SET EX.
// As chaves são gravadas sem prefixo, exatamente como compostas pelo cache.
type RedisCacheStore struct {
	rdb redis.Cmdable
}

func NewRedisCacheStore(rdb redis.Cmdable) *RedisCacheStore {
	return &RedisCacheStore{rdb: rdb}
}

func (s *RedisCacheStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get %q: %w", key, err)
	}
	return val, true, nil
}

func (s *RedisCacheStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, key, val, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %q: %w", key, err)
	}
	return nil
}
