//go:build integration

package cache_test

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authbroker/pkg/cache"
	"github.com/dmitrymomot/authbroker/pkg/redis"
)

func newTestRedisClient(t *testing.T) goredis.UniversalClient {
	t.Helper()

	url := os.Getenv("REDIS_URL")
	if url == "" {
		url = "redis://localhost:6379/0"
	}

	ctx := context.Background()
	client, err := redis.Open(ctx, redis.Config{URL: url})
	require.NoError(t, err, "failed to connect to Redis")

	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestRedis_SetGetDelete(t *testing.T) {
	t.Parallel()

	client := newTestRedisClient(t)
	c := cache.NewRedis[string](client, nil, cache.WithPrefix("test-cache-"+t.Name()))
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	require.ErrorIs(t, err, cache.ErrNotFound)

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	val, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", val)

	require.NoError(t, c.Delete(ctx, "k"))
	has, err := c.Has(ctx, "k")
	require.NoError(t, err)
	require.False(t, has)
}

func TestRedis_Add(t *testing.T) {
	t.Parallel()

	client := newTestRedisClient(t)
	c := cache.NewRedis[string](client, nil, cache.WithPrefix("test-add-"+t.Name()))
	ctx := context.Background()

	require.NoError(t, c.Add(ctx, "k", "first", time.Minute))
	require.ErrorIs(t, c.Add(ctx, "k", "second", time.Minute), cache.ErrExists)
}

func TestRedis_Take(t *testing.T) {
	t.Parallel()

	client := newTestRedisClient(t)
	c := cache.NewRedis[string](client, nil, cache.WithPrefix("test-take-"+t.Name()))
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Take(ctx, "k"); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), wins.Load())
}
