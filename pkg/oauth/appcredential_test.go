package oauth_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authbroker/pkg/cache"
	"github.com/dmitrymomot/authbroker/pkg/oauth"
)

func TestAppCredentialAdapter(t *testing.T) {
	t.Parallel()

	var appTokenCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/app_access_token", func(w http.ResponseWriter, r *http.Request) {
		appTokenCalls.Add(1)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "cli_app", body["app_id"])
		require.Equal(t, "app-secret", body["app_secret"])
		time.Sleep(10 * time.Millisecond)
		_, _ = w.Write([]byte(`{"code":0,"msg":"ok","app_access_token":"t-app","expire":7200}`))
	})
	mux.HandleFunc("/access_token", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer t-app", r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["code"] != "good" {
			_, _ = w.Write([]byte(`{"code":20003,"msg":"invalid code"}`))
			return
		}
		_, _ = w.Write([]byte(`{"code":0,"msg":"success","data":{"access_token":"u-at","refresh_token":"u-rt","expires_in":6900,"open_id":"ou_1","union_id":"on_1"}}`))
	})
	mux.HandleFunc("/user_info", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer u-at", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"code":0,"msg":"success","data":{"name":"Lark User","avatar_url":"https://lf.example.com/a.png","user_id":"5d9bdxxx","open_id":"ou_1","email":"lark@example.com"}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := oauth.Feishu(oauth.Credentials{ClientID: "cli_app", ClientSecret: "app-secret", RedirectURI: "https://app.example.com/auth/feishu/callback"})
	cfg.AppTokenURL = srv.URL + "/app_access_token"
	cfg.TokenURL = srv.URL + "/access_token"
	cfg.UserInfoURL = srv.URL + "/user_info"

	tokens := cache.NewMemory[string]()
	defer tokens.Close()

	a := oauth.NewAppCredentialAdapter(srv.Client(), tokens)
	ctx := context.Background()

	t.Run("fetches the app token once under concurrency", func(t *testing.T) {
		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = a.Exchange(ctx, cfg, "good", oauth.ExchangeOptions{})
			}()
		}
		wg.Wait()

		require.Equal(t, int32(1), appTokenCalls.Load())
	})

	t.Run("normalizes identity", func(t *testing.T) {
		tok, err := a.Exchange(ctx, cfg, "good", oauth.ExchangeOptions{})
		require.NoError(t, err)
		require.Equal(t, 6900*time.Second, tok.ExpiresIn)
		require.Equal(t, "ou_1", tok.Subject)

		id, err := a.FetchUserInfo(ctx, cfg, tok)
		require.NoError(t, err)
		require.Equal(t, "feishu", id.Provider)
		require.Equal(t, "ou_1", id.Subject, "open_id wins over the tenant user_id")
		require.Equal(t, "on_1", id.UnionID)
		require.Equal(t, "Lark User", id.Name)
		require.Equal(t, "lark@example.com", id.Email)
	})

	t.Run("provider error drops the cached app token", func(t *testing.T) {
		_, err := a.Exchange(ctx, cfg, "bad", oauth.ExchangeOptions{})

		var perr *oauth.ProviderError
		require.True(t, errors.As(err, &perr))
		require.Equal(t, "20003", perr.Code)
		require.Equal(t, "invalid code", perr.Message)

		has, err := tokens.Has(ctx, "oauth:app_token:feishu")
		require.NoError(t, err)
		require.False(t, has)
	})

	t.Run("authorization URL uses app_id", func(t *testing.T) {
		raw, err := a.AuthCodeURL(cfg, "st", oauth.AuthOptions{})
		require.NoError(t, err)
		require.Contains(t, raw, "app_id=cli_app")
		require.Contains(t, raw, "response_type=code")
		require.Contains(t, raw, "state=st")
	})
}
