package broker_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authbroker/pkg/broker"
	"github.com/dmitrymomot/authbroker/pkg/oauth"
)

func TestMemoryResolver(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := broker.NewMemoryResolver()

	web, err := r.FindOrCreate(ctx, oauth.Identity{Provider: "wechat", Subject: "openid-web", UnionID: "union-1"})
	require.NoError(t, err)

	again, err := r.FindOrCreate(ctx, oauth.Identity{Provider: "wechat", Subject: "openid-web"})
	require.NoError(t, err)
	require.Equal(t, web, again)

	mobile, err := r.FindOrCreate(ctx, oauth.Identity{Provider: "wechat_mobile", Subject: "openid-app", UnionID: "union-1"})
	require.NoError(t, err)
	require.Equal(t, web, mobile, "union id links accounts")

	other, err := r.FindOrCreate(ctx, oauth.Identity{Provider: "github", Subject: "openid-web"})
	require.NoError(t, err)
	require.NotEqual(t, web, other, "subjects are scoped per provider")

	require.Len(t, r.Identities(web), 2)

	_, err = r.FindOrCreate(ctx, oauth.Identity{Provider: "github"})
	require.ErrorIs(t, err, broker.ErrUnknownSubject)
}

func TestProviderExtractor(t *testing.T) {
	t.Parallel()

	_, ok := broker.ProviderExtractor(context.Background())
	require.False(t, ok)
}
