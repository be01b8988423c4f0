package broker_test

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authbroker/pkg/broker"
	"github.com/dmitrymomot/authbroker/pkg/cache"
	"github.com/dmitrymomot/authbroker/pkg/oauth"
	"github.com/dmitrymomot/authbroker/pkg/state"
	"github.com/dmitrymomot/authbroker/pkg/token"
)

// stubAdapter answers every provider call locally and records the PKCE
// verifiers it sees.
type stubAdapter struct {
	mu        sync.Mutex
	exchanges int
	authVer   string
	exchVer   string

	exchangeErr error
	block       bool
}

func (s *stubAdapter) AuthCodeURL(cfg oauth.ProviderConfig, st string, opts oauth.AuthOptions) (string, error) {
	s.mu.Lock()
	s.authVer = opts.CodeVerifier
	s.mu.Unlock()
	return cfg.AuthURL + "?state=" + url.QueryEscape(st), nil
}

func (s *stubAdapter) Exchange(ctx context.Context, cfg oauth.ProviderConfig, code string, opts oauth.ExchangeOptions) (*oauth.Token, error) {
	s.mu.Lock()
	s.exchanges++
	s.exchVer = opts.CodeVerifier
	block, exchErr := s.block, s.exchangeErr
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if exchErr != nil {
		return nil, exchErr
	}
	return &oauth.Token{AccessToken: "provider-" + code, ExpiresIn: time.Hour}, nil
}

func (s *stubAdapter) FetchUserInfo(_ context.Context, cfg oauth.ProviderConfig, tok *oauth.Token) (*oauth.Identity, error) {
	return &oauth.Identity{Provider: cfg.ID, Subject: "42", Name: "Octo Cat", AccessToken: tok.AccessToken}, nil
}

type env struct {
	broker   *broker.Broker
	adapter  *stubAdapter
	resolver *broker.MemoryResolver
	reg      *prometheus.Registry
}

func provider(id string, pkce bool) oauth.ProviderConfig {
	return oauth.ProviderConfig{
		ID:           id,
		Dialect:      oauth.DialectOAuth2,
		ClientID:     id + "-client",
		ClientSecret: "secret",
		AuthURL:      "https://" + id + ".example.com/authorize",
		TokenURL:     "https://" + id + ".example.com/token",
		UserInfoURL:  "https://" + id + ".example.com/user",
		RedirectURI:  "https://app.example.com/auth/" + id + "/callback",
		UsePKCE:      pkce,
	}
}

func newEnv(t *testing.T, resolver broker.UserResolver, opts ...broker.Option) *env {
	t.Helper()

	adapter := &stubAdapter{}
	registry, err := oauth.NewRegistry(
		[]oauth.ProviderConfig{provider("github", false), provider("google", true)},
		oauth.WithAdapter(oauth.DialectOAuth2, adapter),
	)
	require.NoError(t, err)

	stateCache := cache.NewMemory[state.Record]()
	blCache := cache.NewMemory[bool]()
	t.Cleanup(func() {
		_ = stateCache.Close()
		_ = blCache.Close()
	})

	key, err := token.NewHMACKey("k1", []byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	tokens, err := token.NewManager(token.NewMemoryLedger(), token.NewCacheBlacklist(blCache), token.WithSigningKey(key))
	require.NoError(t, err)

	mem := broker.NewMemoryResolver()
	if resolver == nil {
		resolver = mem
	}

	reg := prometheus.NewRegistry()
	metrics, err := broker.NewMetrics(reg)
	require.NoError(t, err)

	b := broker.New(registry, state.NewStore(stateCache), tokens, resolver,
		append([]broker.Option{broker.WithMetrics(metrics)}, opts...)...)

	return &env{broker: b, adapter: adapter, resolver: mem, reg: reg}
}

func begin(t *testing.T, e *env, providerID, redirect string) string {
	t.Helper()

	authURL, err := e.broker.BeginLogin(context.Background(), providerID, redirect)
	require.NoError(t, err)
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	st := u.Query().Get("state")
	require.NotEmpty(t, st)
	return st
}

func TestBroker_FullLogin(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	var resolved []oauth.Identity
	var mu sync.Mutex
	e := newEnv(t, broker.UserResolverFunc(func(_ context.Context, ident oauth.Identity) (string, error) {
		mu.Lock()
		resolved = append(resolved, ident)
		mu.Unlock()
		return "42", nil
	}))
	st := begin(t, e, "github", "/dashboard")

	res, err := e.broker.HandleCallback(ctx, broker.CallbackParams{Provider: "github", Code: "abc", State: st})
	require.NoError(t, err)
	require.Equal(t, "42", res.UserID)
	require.Equal(t, "/dashboard", res.Redirect)
	require.Equal(t, "42", res.Identity.Subject)
	require.Equal(t, "github", res.Identity.Provider)

	mu.Lock()
	require.Len(t, resolved, 1)
	require.Equal(t, "github", resolved[0].Provider)
	require.Equal(t, "42", resolved[0].Subject)
	mu.Unlock()

	claims, err := e.broker.Authenticate(ctx, res.Tokens.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "42", claims.Subject)
	require.Equal(t, "github", claims.Extra["provider"])

	t.Run("state is single use", func(t *testing.T) {
		_, err := e.broker.HandleCallback(ctx, broker.CallbackParams{Provider: "github", Code: "abc", State: st})
		require.ErrorIs(t, err, broker.ErrInvalidState)
		require.Equal(t, broker.ReasonState, broker.Reason(err))
	})

	t.Run("returning user keeps the same id", func(t *testing.T) {
		st := begin(t, e, "github", "")
		again, err := e.broker.HandleCallback(ctx, broker.CallbackParams{Provider: "github", Code: "def", State: st})
		require.NoError(t, err)
		require.Equal(t, res.UserID, again.UserID)
	})

	t.Run("refresh and logout", func(t *testing.T) {
		_, err := e.broker.Refresh(ctx, res.Tokens.RefreshToken)
		require.NoError(t, err)

		_, err = e.broker.Refresh(ctx, res.Tokens.RefreshToken)
		require.ErrorIs(t, err, broker.ErrInvalidToken)
		require.Equal(t, broker.ReasonToken, broker.Reason(err))

		fresh := begin(t, e, "github", "")
		login, err := e.broker.HandleCallback(ctx, broker.CallbackParams{Provider: "github", Code: "x", State: fresh})
		require.NoError(t, err)

		e.broker.Logout(ctx, login.Tokens.AccessToken, login.Tokens.RefreshToken)
		_, err = e.broker.Authenticate(ctx, login.Tokens.AccessToken)
		require.ErrorIs(t, err, broker.ErrInvalidToken)
		_, err = e.broker.Refresh(ctx, login.Tokens.RefreshToken)
		require.ErrorIs(t, err, broker.ErrInvalidToken)

		e.broker.Logout(ctx, "", "")
		e.broker.Logout(ctx, "garbage", "garbage")
	})

	series, err := testutil.GatherAndCount(e.reg, "authbroker_login_phase_total")
	require.NoError(t, err)
	require.Positive(t, series)
}

func TestBroker_CallbackFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("provider denial does not consume the state", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t, nil)
		st := begin(t, e, "github", "")

		_, err := e.broker.HandleCallback(ctx, broker.CallbackParams{
			Provider: "github", State: st, Error: "access_denied", ErrorDescription: "user said no",
		})
		require.ErrorIs(t, err, broker.ErrProviderDenied)
		require.Equal(t, broker.ReasonDenied, broker.Reason(err))
		require.Contains(t, err.Error(), "user said no")

		_, err = e.broker.HandleCallback(ctx, broker.CallbackParams{Provider: "github", Code: "abc", State: st})
		require.NoError(t, err)
	})

	t.Run("missing code", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t, nil)
		_, err := e.broker.HandleCallback(ctx, broker.CallbackParams{Provider: "github", State: begin(t, e, "github", "")})
		require.ErrorIs(t, err, broker.ErrMissingCode)
	})

	t.Run("unknown state", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t, nil)
		_, err := e.broker.HandleCallback(ctx, broker.CallbackParams{Provider: "github", Code: "abc", State: "forged"})
		require.ErrorIs(t, err, broker.ErrInvalidState)
		require.ErrorIs(t, err, state.ErrInvalidState)
	})

	t.Run("provider mismatch", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t, nil)
		st := begin(t, e, "google", "")

		_, err := e.broker.HandleCallback(ctx, broker.CallbackParams{Provider: "github", Code: "abc", State: st})
		require.ErrorIs(t, err, broker.ErrProviderMismatch)
		require.Equal(t, broker.ReasonState, broker.Reason(err))
		require.Zero(t, e.adapter.exchanges)
	})

	t.Run("provider error passes through and burns the state", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t, nil)
		e.adapter.exchangeErr = &oauth.ProviderError{Provider: "github", Code: "bad_verification_code", Message: "The code passed is incorrect or expired."}
		st := begin(t, e, "github", "")

		_, err := e.broker.HandleCallback(ctx, broker.CallbackParams{Provider: "github", Code: "abc", State: st})
		var perr *oauth.ProviderError
		require.ErrorAs(t, err, &perr)
		require.Equal(t, "bad_verification_code", perr.Code)
		require.Equal(t, broker.ReasonProvider, broker.Reason(err))

		e.adapter.mu.Lock()
		e.adapter.exchangeErr = nil
		e.adapter.mu.Unlock()
		_, err = e.broker.HandleCallback(ctx, broker.CallbackParams{Provider: "github", Code: "abc", State: st})
		require.ErrorIs(t, err, broker.ErrInvalidState)
	})

	t.Run("resolver failure", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("user store down")
		e := newEnv(t, broker.UserResolverFunc(func(context.Context, oauth.Identity) (string, error) {
			return "", boom
		}))

		_, err := e.broker.HandleCallback(ctx, broker.CallbackParams{Provider: "github", Code: "abc", State: begin(t, e, "github", "")})
		require.ErrorIs(t, err, broker.ErrUnknownUser)
		require.ErrorIs(t, err, boom)
		require.Equal(t, broker.ReasonUser, broker.Reason(err))
	})

	t.Run("timeout abandons the exchange without restoring state", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t, nil, broker.WithTimeout(20*time.Millisecond))
		e.adapter.block = true
		st := begin(t, e, "github", "")

		_, err := e.broker.HandleCallback(ctx, broker.CallbackParams{Provider: "github", Code: "abc", State: st})
		require.ErrorIs(t, err, context.DeadlineExceeded)

		e.adapter.mu.Lock()
		e.adapter.block = false
		e.adapter.mu.Unlock()
		_, err = e.broker.HandleCallback(ctx, broker.CallbackParams{Provider: "github", Code: "abc", State: st})
		require.ErrorIs(t, err, broker.ErrInvalidState)
	})
}

func TestBroker_BeginLogin(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("unknown provider", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t, nil)
		_, err := e.broker.BeginLogin(ctx, "myspace", "")
		require.ErrorIs(t, err, broker.ErrUnknownProvider)
		require.Equal(t, broker.ReasonUnknownProvider, broker.Reason(err))
	})

	t.Run("disallowed redirect", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t, nil)
		_, err := e.broker.BeginLogin(ctx, "github", "https://evil.example.net/")
		require.ErrorIs(t, err, state.ErrRedirectNotAllowed)
	})

	t.Run("pkce verifier travels through the state", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t, nil)
		st := begin(t, e, "google", "")
		_, err := e.broker.HandleCallback(ctx, broker.CallbackParams{Provider: "google", Code: "abc", State: st})
		require.NoError(t, err)

		e.adapter.mu.Lock()
		defer e.adapter.mu.Unlock()
		require.NotEmpty(t, e.adapter.authVer)
		require.Equal(t, e.adapter.authVer, e.adapter.exchVer)
	})

	t.Run("no pkce for plain providers", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t, nil)
		begin(t, e, "github", "")
		e.adapter.mu.Lock()
		defer e.adapter.mu.Unlock()
		require.Empty(t, e.adapter.authVer)
	})
}

func TestReason(t *testing.T) {
	t.Parallel()

	require.Empty(t, broker.Reason(nil))
	require.Equal(t, broker.ReasonProvider, broker.Reason(oauth.ErrRequestFailed))
	require.Equal(t, broker.ReasonProvider, broker.Reason(broker.ErrMissingCode))
	require.Equal(t, broker.ReasonInternal, broker.Reason(errors.New("disk full")))
	require.Equal(t, broker.ReasonToken, broker.Reason(errors.Join(token.ErrInvalidToken, errors.New("x"))))
}

func TestNewMetrics_Reregister(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := broker.NewMetrics(reg)
	require.NoError(t, err)
	_, err = broker.NewMetrics(reg)
	require.NoError(t, err)

	m, err := broker.NewMetrics(nil)
	require.NoError(t, err)
	require.NotNil(t, m)
}
