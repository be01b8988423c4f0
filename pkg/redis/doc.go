// Package redis opens go-redis clients for the broker's shared state
// backends (state store, blacklist, refresh ledger).
//
//	client, err := redis.Open(ctx, redis.Config{URL: "redis://localhost:6379/0"})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
// [Healthcheck] adapts the client into a readiness probe.
package redis
