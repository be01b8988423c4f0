package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	alipayMethodToken    = "alipay.system.oauth.token"
	alipayMethodUserInfo = "alipay.user.info.share"
	alipaySuccessCode    = "10000"
)

// alipayZone is the gateway's timestamp zone (UTC+8, no DST).
var alipayZone = time.FixedZone("CST", 8*60*60)

// AlipayAdapter implements the RSA-signed gateway dialect. Every gateway
// call carries app_id, method, charset, sign_type, timestamp and version,
// signed over their canonical form.
type AlipayAdapter struct {
	httpClient *http.Client
	now        func() time.Time
}

// NewAlipayAdapter creates an adapter that sends gateway calls through
// client and stamps them using now.
func NewAlipayAdapter(client *http.Client, now func() time.Time) *AlipayAdapter {
	if now == nil {
		now = time.Now
	}
	return &AlipayAdapter{httpClient: client, now: now}
}

// AuthCodeURL builds a signed authorization URL.
func (a *AlipayAdapter) AuthCodeURL(cfg ProviderConfig, state string, _ AuthOptions) (string, error) {
	params := url.Values{
		"app_id":        {cfg.ClientID},
		"redirect_uri":  {cfg.RedirectURI},
		"response_type": {"code"},
		"scope":         {cfg.scope(",")},
		"state":         {state},
		"sign_type":     {string(cfg.signAlgorithm())},
	}
	if err := a.sign(cfg, params); err != nil {
		return "", err
	}
	return cfg.AuthURL + "?" + params.Encode(), nil
}

// Exchange calls alipay.system.oauth.token.
func (a *AlipayAdapter) Exchange(ctx context.Context, cfg ProviderConfig, code string, _ ExchangeOptions) (*Token, error) {
	node, err := a.call(ctx, cfg, cfg.TokenURL, alipayMethodToken, url.Values{
		"grant_type": {"authorization_code"},
		"code":       {code},
	})
	if err != nil {
		return nil, err
	}

	tok := &Token{
		AccessToken:  node.str("access_token"),
		RefreshToken: node.str("refresh_token"),
		TokenType:    "Bearer",
		ExpiresIn:    cfg.lifetime(node.num("expires_in")),
		Subject:      node.str("user_id", "open_id"),
	}
	if tok.AccessToken == "" {
		return nil, ErrMissingAccessToken
	}
	return tok, nil
}

// FetchUserInfo calls alipay.user.info.share.
func (a *AlipayAdapter) FetchUserInfo(ctx context.Context, cfg ProviderConfig, tok *Token) (*Identity, error) {
	node, err := a.call(ctx, cfg, cfg.UserInfoURL, alipayMethodUserInfo, url.Values{
		"auth_token": {tok.AccessToken},
	})
	if err != nil {
		return nil, err
	}
	if node.str("user_id", "open_id") == "" && tok.Subject != "" {
		node["user_id"] = tok.Subject
	}

	id, err := node.identity(cfg.ID)
	if err != nil {
		return nil, err
	}
	id.AccessToken = tok.AccessToken
	id.RefreshToken = tok.RefreshToken
	return id, nil
}

// call posts a signed gateway request and returns the method's response node.
func (a *AlipayAdapter) call(ctx context.Context, cfg ProviderConfig, gateway, method string, biz url.Values) (fields, error) {
	params := url.Values{
		"app_id":    {cfg.ClientID},
		"method":    {method},
		"format":    {"JSON"},
		"charset":   {"utf-8"},
		"sign_type": {string(cfg.signAlgorithm())},
		"timestamp": {a.now().In(alipayZone).Format(time.DateTime)},
		"version":   {"1.0"},
	}
	for k, v := range biz {
		params[k] = v
	}
	if err := a.sign(cfg, params); err != nil {
		return nil, err
	}

	req, err := newRequest(ctx, http.MethodPost, gateway, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")

	_, body, err := do(a.httpClient, cfg.ID, req)
	if err != nil {
		return nil, err
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errors.Join(ErrDecodeFailed, err)
	}

	nodeKey := strings.ReplaceAll(method, ".", "_") + "_response"
	raw, ok := envelope[nodeKey]
	if !ok {
		raw, ok = envelope["error_response"]
	}
	if !ok {
		return nil, errors.Join(ErrDecodeFailed, fmt.Errorf("missing %s", nodeKey))
	}

	node, err := decodeFields(raw)
	if err != nil {
		return nil, err
	}

	// Error nodes are often unsigned, or signed over a different node, so
	// the signature is only enforced on successful responses.
	if code := node.str("code"); code != "" && code != alipaySuccessCode {
		return nil, &ProviderError{
			Provider: cfg.ID,
			Code:     node.str("sub_code", "code"),
			Message:  node.str("sub_msg", "msg"),
			Status:   http.StatusOK,
		}
	}

	if cfg.ProviderPublicKey != "" {
		if err := a.verify(cfg, raw, envelope["sign"]); err != nil {
			return nil, err
		}
	}
	return node, nil
}

func (a *AlipayAdapter) sign(cfg ProviderConfig, params url.Values) error {
	key, err := signingKey(cfg)
	if err != nil {
		return err
	}
	sig, err := Sign(Canonicalize(params), key, cfg.signAlgorithm())
	if err != nil {
		return err
	}
	params.Set("sign", sig)
	return nil
}

// verify checks the envelope signature, which covers the raw response
// node bytes exactly as received.
func (a *AlipayAdapter) verify(cfg ProviderConfig, node, rawSign json.RawMessage) error {
	var sig string
	if err := json.Unmarshal(rawSign, &sig); err != nil || sig == "" {
		return errors.Join(ErrInvalidSignature, errors.New("response is not signed"))
	}
	key, err := verifyingKey(cfg)
	if err != nil {
		return err
	}
	return Verify(string(node), sig, key, cfg.signAlgorithm())
}

var _ Adapter = (*AlipayAdapter)(nil)
