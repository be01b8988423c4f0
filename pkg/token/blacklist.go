package token

import (
	"context"
	"time"

	"github.com/dmitrymomot/authbroker/pkg/cache"
)

// Blacklist holds revoked access token ids until they expire.
type Blacklist interface {
	Add(ctx context.Context, jti string, ttl time.Duration) error
	Contains(ctx context.Context, jti string) (bool, error)
}

const blacklistPrefix = "blacklist:"

// CacheBlacklist stores blacklist entries in any cache.Cache.
type CacheBlacklist struct {
	store cache.Cache[bool]
}

// NewCacheBlacklist wraps store as a Blacklist.
func NewCacheBlacklist(store cache.Cache[bool]) *CacheBlacklist {
	return &CacheBlacklist{store: store}
}

// Add blocks jti for ttl.
func (b *CacheBlacklist) Add(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" || ttl <= 0 {
		return nil
	}
	return b.store.Set(ctx, blacklistPrefix+jti, true, ttl)
}

// Contains reports whether jti is blocked.
func (b *CacheBlacklist) Contains(ctx context.Context, jti string) (bool, error) {
	return b.store.Has(ctx, blacklistPrefix+jti)
}
