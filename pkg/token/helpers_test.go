package token_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authbroker/pkg/cache"
	"github.com/dmitrymomot/authbroker/pkg/db"
	"github.com/dmitrymomot/authbroker/pkg/token"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func hmacKey(t *testing.T, id string) token.Key {
	t.Helper()
	k, err := token.NewHMACKey(id, testSecret)
	require.NoError(t, err)
	return k
}

type fixture struct {
	manager   *token.Manager
	ledger    token.Ledger
	blacklist *token.CacheBlacklist
	clock     *fakeClock
}

func newFixture(t *testing.T, ledger token.Ledger, opts ...token.Option) *fixture {
	t.Helper()

	clock := newClock()
	store := cache.NewMemory[bool](cache.WithClock(clock.Now), cache.WithCleanupInterval(0))
	t.Cleanup(func() { _ = store.Close() })
	bl := token.NewCacheBlacklist(store)

	base := []token.Option{
		token.WithSigningKey(hmacKey(t, "k1")),
		token.WithClock(clock.Now),
		token.WithAccessTTL(time.Hour),
		token.WithRefreshTTL(24 * time.Hour),
	}
	m, err := token.NewManager(ledger, bl, append(base, opts...)...)
	require.NoError(t, err)

	return &fixture{manager: m, ledger: ledger, blacklist: bl, clock: clock}
}

func newSQLLedger(t *testing.T) *token.SQLLedger {
	t.Helper()

	conn, dialect, err := db.Open(context.Background(), db.Config{
		Driver: "sqlite",
		URL:    filepath.Join(t.TempDir(), "ledger.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	l := token.NewSQLLedger(conn, dialect)
	require.NoError(t, l.Migrate(context.Background(), nil))
	return l
}
