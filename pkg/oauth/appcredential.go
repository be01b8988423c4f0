package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dmitrymomot/authbroker/pkg/cache"
)

// appTokenSafetyMargin is subtracted from the app token lifetime so a
// cached token never expires mid-request.
const appTokenSafetyMargin = 5 * time.Minute

// AppCredentialAdapter implements the Feishu/DingTalk family, where the
// code exchange is authorized by an app-level access token obtained from
// the app id and secret. Responses use a {code, msg, data} envelope.
type AppCredentialAdapter struct {
	httpClient *http.Client
	appTokens  cache.Cache[string]
}

// NewAppCredentialAdapter creates an adapter that caches app tokens in c.
func NewAppCredentialAdapter(client *http.Client, c cache.Cache[string]) *AppCredentialAdapter {
	return &AppCredentialAdapter{httpClient: client, appTokens: c}
}

// AuthCodeURL builds the authorization URL.
func (a *AppCredentialAdapter) AuthCodeURL(cfg ProviderConfig, state string, _ AuthOptions) (string, error) {
	params := url.Values{
		"app_id":        {cfg.ClientID},
		"redirect_uri":  {cfg.RedirectURI},
		"response_type": {"code"},
		"state":         {state},
	}
	if s := cfg.scope(" "); s != "" {
		params.Set("scope", s)
	}
	return cfg.AuthURL + "?" + params.Encode(), nil
}

// Exchange trades code for a user access token.
func (a *AppCredentialAdapter) Exchange(ctx context.Context, cfg ProviderConfig, code string, _ ExchangeOptions) (*Token, error) {
	appToken, err := a.appToken(ctx, cfg)
	if err != nil {
		return nil, err
	}

	data, err := a.send(ctx, cfg, http.MethodPost, cfg.TokenURL, appToken, map[string]string{
		"grant_type": "authorization_code",
		"code":       code,
	})
	if err != nil {
		var perr *ProviderError
		if errors.As(err, &perr) {
			// The app token may have been revoked early; the next login
			// fetches a fresh one.
			_ = a.appTokens.Delete(ctx, a.cacheKey(cfg))
		}
		return nil, err
	}

	tok := &Token{
		AccessToken:  data.str("access_token"),
		RefreshToken: data.str("refresh_token"),
		TokenType:    "Bearer",
		Scope:        data.str("scope"),
		ExpiresIn:    cfg.lifetime(data.num("expires_in", "expire")),
		Subject:      data.str("open_id"),
		UnionID:      data.str("union_id"),
	}
	if tok.AccessToken == "" {
		return nil, ErrMissingAccessToken
	}
	return tok, nil
}

// FetchUserInfo loads the profile with the user access token.
func (a *AppCredentialAdapter) FetchUserInfo(ctx context.Context, cfg ProviderConfig, tok *Token) (*Identity, error) {
	data, err := a.send(ctx, cfg, http.MethodGet, cfg.UserInfoURL, tok.AccessToken, nil)
	if err != nil {
		return nil, err
	}
	if data.str(subjectKeys...) == "" && tok.Subject != "" {
		data["open_id"] = tok.Subject
	}

	id, err := data.identity(cfg.ID)
	if err != nil {
		return nil, err
	}
	// The profile may carry both user_id and open_id; the subject is the
	// app-scoped open_id the token exchange returned.
	if tok.Subject != "" {
		id.Subject = tok.Subject
	}
	if id.UnionID == "" {
		id.UnionID = tok.UnionID
	}
	id.AccessToken = tok.AccessToken
	id.RefreshToken = tok.RefreshToken
	return id, nil
}

// appToken returns a cached app access token, fetching one when missing.
// Concurrent misses share a single fetch.
func (a *AppCredentialAdapter) appToken(ctx context.Context, cfg ProviderConfig) (string, error) {
	return cache.GetOrSet(ctx, a.appTokens, a.cacheKey(cfg), func(ctx context.Context) (string, time.Duration, error) {
		f, err := a.send(ctx, cfg, http.MethodPost, cfg.AppTokenURL, "", map[string]string{
			"app_id":     cfg.ClientID,
			"app_secret": cfg.ClientSecret,
		})
		if err != nil {
			return "", 0, err
		}
		token := f.str("app_access_token", "tenant_access_token", "access_token")
		if token == "" {
			return "", 0, ErrMissingAccessToken
		}

		ttl := cfg.lifetime(f.num("expire", "expires_in"))
		if ttl > 2*appTokenSafetyMargin {
			ttl -= appTokenSafetyMargin
		} else {
			ttl /= 2
		}
		return token, ttl, nil
	})
}

func (a *AppCredentialAdapter) cacheKey(cfg ProviderConfig) string {
	return "oauth:app_token:" + cfg.ID
}

// send performs a JSON call and unwraps the envelope. The data object is
// returned when present; otherwise the top level, which is where app token
// endpoints put their fields.
func (a *AppCredentialAdapter) send(ctx context.Context, cfg ProviderConfig, method, endpoint, bearer string, payload any) (fields, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Join(ErrRequestFailed, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := newRequest(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	f, _, err := do(a.httpClient, cfg.ID, req)
	if err != nil {
		return nil, err
	}
	if code := f.num("code", "errcode"); code != 0 {
		return nil, &ProviderError{
			Provider: cfg.ID,
			Code:     f.str("code", "errcode"),
			Message:  f.str("msg", "errmsg", "message"),
			Status:   http.StatusOK,
		}
	}
	if data := f.obj("data"); data != nil {
		return data, nil
	}
	return f, nil
}

var _ Adapter = (*AppCredentialAdapter)(nil)
