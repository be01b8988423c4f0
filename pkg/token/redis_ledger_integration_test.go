//go:build integration

package token_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authbroker/pkg/redis"
	"github.com/dmitrymomot/authbroker/pkg/token"
)

func TestRedisLedger(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		url = "redis://localhost:6379/0"
	}

	client, err := redis.Open(context.Background(), redis.Config{URL: url})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	testLedger(t, func(t *testing.T) token.Ledger { return token.NewRedisLedger(client) })
}
