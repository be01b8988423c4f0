package state_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authbroker/pkg/cache"
	"github.com/dmitrymomot/authbroker/pkg/state"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newStore(t *testing.T, opts ...state.Option) *state.Store {
	t.Helper()

	backend := cache.NewMemory[state.Record]()
	t.Cleanup(func() { _ = backend.Close() })

	return state.NewStore(backend, opts...)
}

func TestStore_CreateConsume(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		s := newStore(t)
		ctx := context.Background()

		token, err := s.Create(ctx, "github", state.CreateOptions{RedirectHint: "/dashboard", CodeVerifier: "v"})
		require.NoError(t, err)
		require.Len(t, token, 43)

		rec, err := s.Consume(ctx, token)
		require.NoError(t, err)
		require.Equal(t, "github", rec.Provider)
		require.Equal(t, "/dashboard", rec.RedirectHint)
		require.Equal(t, "v", rec.CodeVerifier)
		require.False(t, rec.CreatedAt.IsZero())
	})

	t.Run("tokens are unique", func(t *testing.T) {
		t.Parallel()

		s := newStore(t)
		seen := make(map[string]struct{})
		for range 100 {
			token, err := s.Create(context.Background(), "github", state.CreateOptions{})
			require.NoError(t, err)
			_, dup := seen[token]
			require.False(t, dup)
			seen[token] = struct{}{}
		}
	})

	t.Run("second consume is rejected", func(t *testing.T) {
		t.Parallel()

		s := newStore(t)
		ctx := context.Background()

		token, err := s.Create(ctx, "github", state.CreateOptions{})
		require.NoError(t, err)

		_, err = s.Consume(ctx, token)
		require.NoError(t, err)

		_, err = s.Consume(ctx, token)
		require.ErrorIs(t, err, state.ErrInvalidState)
		require.ErrorIs(t, err, state.ErrAlreadyConsumed)
	})

	t.Run("unknown token is rejected", func(t *testing.T) {
		t.Parallel()

		s := newStore(t)
		for _, token := range []string{"", "short", "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"} {
			_, err := s.Consume(context.Background(), token)
			require.ErrorIs(t, err, state.ErrInvalidState)
			require.ErrorIs(t, err, state.ErrNotFound)
		}
	})

	t.Run("expired state is rejected", func(t *testing.T) {
		t.Parallel()

		c := &clock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
		s := newStore(t, state.WithClock(c.Now), state.WithTTL(10*time.Minute))
		ctx := context.Background()

		token, err := s.Create(ctx, "github", state.CreateOptions{})
		require.NoError(t, err)

		c.Advance(11 * time.Minute)

		_, err = s.Consume(ctx, token)
		require.ErrorIs(t, err, state.ErrInvalidState)
		require.ErrorIs(t, err, state.ErrExpired)

		var rej *state.RejectError
		require.True(t, errors.As(err, &rej))
	})

	t.Run("state inside the window is accepted", func(t *testing.T) {
		t.Parallel()

		c := &clock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
		s := newStore(t, state.WithClock(c.Now))
		ctx := context.Background()

		token, err := s.Create(ctx, "github", state.CreateOptions{})
		require.NoError(t, err)

		c.Advance(9 * time.Minute)

		_, err = s.Consume(ctx, token)
		require.NoError(t, err)
	})
}

func TestStore_ConcurrentConsume(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	ctx := context.Background()

	token, err := s.Create(ctx, "github", state.CreateOptions{})
	require.NoError(t, err)

	var wins, rejects atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := s.Consume(ctx, token)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, state.ErrInvalidState):
				rejects.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Equal(t, int32(1), wins.Load())
	require.Equal(t, int32(49), rejects.Load())
}

func TestStore_RedirectHint(t *testing.T) {
	t.Parallel()

	s := newStore(t, state.WithRedirectAllowlist("app.example.com"))
	ctx := context.Background()

	allowed := []string{"/", "/dashboard?tab=1", "https://app.example.com/welcome", "https://APP.example.com"}
	for _, hint := range allowed {
		_, err := s.Create(ctx, "github", state.CreateOptions{RedirectHint: hint})
		require.NoError(t, err, hint)
	}

	denied := []string{"//evil.example.com", "/\\evil.example.com", "https://evil.example.com/", "javascript:alert(1)", "dashboard"}
	for _, hint := range denied {
		_, err := s.Create(ctx, "github", state.CreateOptions{RedirectHint: hint})
		require.ErrorIs(t, err, state.ErrRedirectNotAllowed, hint)
	}
}
