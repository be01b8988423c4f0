package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache is a generic key-value store with TTL support.
//
// TTL semantics for Set and Add:
//   - Positive duration: item expires after this duration
//   - Zero: use the cache's configured default TTL
//   - Negative: item never expires
type Cache[V any] interface {
	// Get retrieves a value by key.
	// Returns ErrNotFound if the key does not exist or has expired.
	Get(ctx context.Context, key string) (V, error)

	// Set stores a value with the given TTL, replacing any previous value.
	Set(ctx context.Context, key string, value V, ttl time.Duration) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Has checks whether a key exists and has not expired.
	Has(ctx context.Context, key string) (bool, error)

	// Close releases resources (stops background goroutines, etc.).
	Close() error
}

// Atomic is a Cache that also supports single-step conditional writes and
// destructive reads. Both operations are linearizable with respect to each
// other and to Set/Delete on the same key.
type Atomic[V any] interface {
	Cache[V]

	// Add stores a value only when the key is absent or expired.
	// Returns ErrExists when a live value is already stored under key.
	Add(ctx context.Context, key string, value V, ttl time.Duration) error

	// Take returns the value stored under key and removes it.
	// When several callers race on the same key exactly one receives the
	// value; the rest get ErrNotFound.
	Take(ctx context.Context, key string) (V, error)
}

// Marshaler serializes and deserializes values for backends that store
// bytes (e.g., Redis).
type Marshaler[V any] interface {
	Marshal(v V) ([]byte, error)
	Unmarshal(data []byte) (V, error)
}

type jsonMarshaler[V any] struct{}

func (jsonMarshaler[V]) Marshal(v V) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Join(ErrMarshal, err)
	}
	return data, nil
}

func (jsonMarshaler[V]) Unmarshal(data []byte) (V, error) {
	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		return v, errors.Join(ErrUnmarshal, err)
	}
	return v, nil
}

var sfGroup singleflight.Group

// flightTimeout bounds a shared fn call once it is detached from the
// caller that started it.
const flightTimeout = 30 * time.Second

type computed[V any] struct {
	val V
	ttl time.Duration
}

// GetOrSet returns the cached value for key, or computes it with fn on a miss.
// Concurrent misses on the same key share a single fn call.
//
// fn returns the value and the TTL to cache it with. When fn fails nothing
// is cached and the error is returned to every waiter. fn runs on a context
// detached from the caller that started the flight, so one waiter giving up
// never fails the others; each waiter still returns early when its own ctx
// is done.
func GetOrSet[V any](ctx context.Context, c Cache[V], key string, fn func(ctx context.Context) (V, time.Duration, error)) (V, error) {
	var zero V
	if v, err := c.Get(ctx, key); err == nil {
		return v, nil
	}

	// Flights are scoped to the cache instance so two caches of different
	// value types never share a result.
	ch := sfGroup.DoChan(fmt.Sprintf("%p:%s", c, key), func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flightTimeout)
		defer cancel()

		val, ttl, err := fn(fctx)
		if err != nil {
			return nil, err
		}
		// Cache before releasing the waiters so a caller arriving right
		// after the flight hits the stored value.
		_ = c.Set(fctx, key, val, ttl)
		return computed[V]{val: val, ttl: ttl}, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(computed[V]).val, nil
	}
}
