// Package cache provides a generic key-value Cache with in-memory and Redis
// implementations.
//
// Both backends also implement [Atomic], which adds the two primitives the
// broker's shared state relies on:
//
//   - Add: set-if-absent (Redis SET NX)
//   - Take: read-and-delete in one step (Redis GETDEL)
//
// TTL semantics: positive expires after the duration, zero uses the cache
// default, negative never expires.
//
// Use [NewMemory] for a single process and [NewRedis] when several broker
// instances share state:
//
//	client, err := redis.Open(ctx, redis.Config{URL: os.Getenv("REDIS_URL")})
//	states := cache.NewRedis[state.Record](client, nil, cache.WithPrefix("state"))
//
// [GetOrSet] deduplicates concurrent misses with singleflight:
//
//	tok, err := cache.GetOrSet(ctx, c, "app_token:feishu", func(ctx context.Context) (string, time.Duration, error) {
//	    return fetchAppToken(ctx)
//	})
package cache
