package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

// OAuth2Adapter implements the standard authorization code flow on top of
// golang.org/x/oauth2.
type OAuth2Adapter struct {
	httpClient *http.Client
}

// NewOAuth2Adapter creates an adapter that sends provider calls through client.
func NewOAuth2Adapter(client *http.Client) *OAuth2Adapter {
	return &OAuth2Adapter{httpClient: client}
}

// AuthCodeURL builds the authorization URL, adding an S256 PKCE challenge
// when a verifier is given.
func (a *OAuth2Adapter) AuthCodeURL(cfg ProviderConfig, state string, opts AuthOptions) (string, error) {
	oc := oauth2Config(cfg)
	params := []oauth2.AuthCodeOption{}
	if cfg.ScopeSeparator != "" && cfg.ScopeSeparator != " " {
		// x/oauth2 always joins scopes with a space.
		oc.Scopes = nil
		params = append(params, oauth2.SetAuthURLParam("scope", cfg.scope(" ")))
	}
	if opts.CodeVerifier != "" {
		params = append(params, oauth2.S256ChallengeOption(opts.CodeVerifier))
	}
	return oc.AuthCodeURL(state, params...), nil
}

// Exchange trades code for tokens at the provider's token endpoint.
func (a *OAuth2Adapter) Exchange(ctx context.Context, cfg ProviderConfig, code string, opts ExchangeOptions) (*Token, error) {
	var params []oauth2.AuthCodeOption
	if opts.CodeVerifier != "" {
		params = append(params, oauth2.VerifierOption(opts.CodeVerifier))
	}

	tok, err := oauth2Config(cfg).Exchange(a.withClient(ctx), code, params...)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return nil, retrieveError(cfg.ID, re)
		}
		return nil, errors.Join(ErrRequestFailed, fmt.Errorf("exchange code: %w", err))
	}
	if tok.AccessToken == "" {
		return nil, ErrMissingAccessToken
	}

	var expiresIn int64
	if !tok.Expiry.IsZero() {
		expiresIn = int64(time.Until(tok.Expiry).Round(time.Second) / time.Second)
	}

	out := &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.Type(),
		ExpiresIn:    cfg.lifetime(expiresIn),
	}
	if s, ok := tok.Extra("scope").(string); ok {
		out.Scope = s
	}
	return out, nil
}

// FetchUserInfo calls the user-info endpoint with the bearer token.
func (a *OAuth2Adapter) FetchUserInfo(ctx context.Context, cfg ProviderConfig, tok *Token) (*Identity, error) {
	req, err := newRequest(ctx, http.MethodGet, cfg.UserInfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)

	f, _, err := do(a.httpClient, cfg.ID, req)
	if err != nil {
		return nil, err
	}

	id, err := f.identity(cfg.ID)
	if err != nil {
		return nil, err
	}
	if cfg.EmailsURL != "" {
		email, err := a.primaryVerifiedEmail(ctx, cfg, tok)
		if err != nil {
			return nil, err
		}
		id.Email, id.EmailVerified = email, email != ""
	}
	id.AccessToken = tok.AccessToken
	id.RefreshToken = tok.RefreshToken
	return id, nil
}

type providerEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// primaryVerifiedEmail returns the primary verified address from
// cfg.EmailsURL, else any verified one, else "".
func (a *OAuth2Adapter) primaryVerifiedEmail(ctx context.Context, cfg ProviderConfig, tok *Token) (string, error) {
	req, err := newRequest(ctx, http.MethodGet, cfg.EmailsURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)

	body, err := send(a.httpClient, cfg.ID, req)
	if err != nil {
		return "", err
	}

	var emails []providerEmail
	if err := json.Unmarshal(body, &emails); err != nil {
		return "", errors.Join(ErrDecodeFailed, fmt.Errorf("decode emails: %w", err))
	}

	fallback := ""
	for _, e := range emails {
		if !e.Verified || e.Email == "" {
			continue
		}
		if e.Primary {
			return e.Email, nil
		}
		if fallback == "" {
			fallback = e.Email
		}
	}
	return fallback, nil
}

func (a *OAuth2Adapter) withClient(ctx context.Context) context.Context {
	if a.httpClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	}
	return ctx
}

func oauth2Config(cfg ProviderConfig) *oauth2.Config {
	style := oauth2.AuthStyleAutoDetect
	switch cfg.AuthStyle {
	case "header":
		style = oauth2.AuthStyleInHeader
	case "params":
		style = oauth2.AuthStyleInParams
	}
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   cfg.AuthURL,
			TokenURL:  cfg.TokenURL,
			AuthStyle: style,
		},
	}
}

func retrieveError(provider string, re *oauth2.RetrieveError) *ProviderError {
	perr := &ProviderError{
		Provider: provider,
		Code:     re.ErrorCode,
		Message:  re.ErrorDescription,
	}
	if re.Response != nil {
		perr.Status = re.Response.StatusCode
	}
	if perr.Code == "" {
		perr.Code = strconv.Itoa(perr.Status)
	}
	if perr.Message == "" {
		perr.Message = truncate(string(re.Body), 256)
	}
	return perr
}

var _ Adapter = (*OAuth2Adapter)(nil)
