package infra

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "http://query:8000/query/financials-post"

func TestRedisCacheStore_TTLBoundary(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	s := NewRedisCacheStore(rdb)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, testKey)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, testKey, []byte(`{"a":1}`), 60*time.Second))
	assert.Equal(t, 60*time.Second, mr.TTL(testKey))

	mr.FastForward(59 * time.Second)
	val, ok, err := s.Get(ctx, testKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"a":1}`, string(val))

	mr.FastForward(2 * time.Second)
	_, ok, err = s.Get(ctx, testKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCacheStore_ErrorsWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	s := NewRedisCacheStore(rdb)
	_, _, err := s.Get(context.Background(), testKey)
	require.Error(t, err)
	require.Error(t, s.Set(context.Background(), testKey, []byte("x"), time.Second))
}

func TestMemoryCacheStore_TTLBoundary(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s, err := NewMemoryCacheStore(100, time.Hour, WithCacheClock(func() time.Time { return now }))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, testKey, []byte(`{"a":1}`), 60*time.Second))

	now = now.Add(59 * time.Second)
	val, ok, err := s.Get(ctx, testKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"a":1}`, string(val))

	now = now.Add(2 * time.Second)
	_, ok, err = s.Get(ctx, testKey)
	require.NoError(t, err)
	assert.False(t, ok)
}
