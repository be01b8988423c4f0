package oauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Dialect names the credential-exchange protocol a provider speaks.
type Dialect string

const (
	// DialectOAuth2 is standard RFC 6749 authorization code flow.
	DialectOAuth2 Dialect = "oauth2"
	// DialectWeChat is the QR-connect flow with appid/secret query auth.
	DialectWeChat Dialect = "wechat"
	// DialectAlipay is the RSA-signed gateway flow.
	DialectAlipay Dialect = "alipay"
	// DialectAppCredential exchanges codes with an app-level access token
	// (Feishu/Lark and DingTalk style).
	DialectAppCredential Dialect = "app_credential"
)

// DefaultLifetime is the provider token lifetime assumed when a response
// reports zero or no expires_in.
func (d Dialect) DefaultLifetime() time.Duration {
	switch d {
	case DialectWeChat, DialectAppCredential:
		return 2 * time.Hour
	case DialectAlipay:
		return 15 * 24 * time.Hour
	default:
		return time.Hour
	}
}

func (d Dialect) valid() bool {
	switch d {
	case DialectOAuth2, DialectWeChat, DialectAlipay, DialectAppCredential:
		return true
	}
	return false
}

// ProviderConfig describes one configured identity provider.
// It is immutable once handed to NewRegistry.
type ProviderConfig struct {
	ID      string  `yaml:"id"`
	Dialect Dialect `yaml:"dialect"`

	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	// PrivateKey is the PEM (or bare base64 PKCS#8) application key used
	// by signed-gateway dialects.
	PrivateKey string `yaml:"private_key"`
	// ProviderPublicKey, when set, is used to verify signed responses.
	ProviderPublicKey string `yaml:"provider_public_key"`
	// SignAlgorithm is the gateway signature type. Default: RSA2.
	SignAlgorithm Algorithm `yaml:"sign_algorithm"`

	AuthURL     string `yaml:"auth_url"`
	TokenURL    string `yaml:"token_url"`
	UserInfoURL string `yaml:"user_info_url"`
	// EmailsURL, when set, lists the user's addresses with verification
	// flags (GitHub /user/emails). The primary verified one replaces
	// whatever the profile reported.
	EmailsURL   string `yaml:"emails_url"`
	AppTokenURL string `yaml:"app_token_url"`
	RedirectURI string `yaml:"redirect_uri"`

	Scopes         []string `yaml:"scopes"`
	ScopeSeparator string   `yaml:"scope_separator"`

	// AuthStyle selects client credential placement for oauth2 token
	// requests: "header", "params", or empty for auto-detection.
	AuthStyle string `yaml:"auth_style"`
	UsePKCE   bool   `yaml:"use_pkce"`

	// DefaultLifetime overrides the dialect default token lifetime.
	DefaultLifetime time.Duration `yaml:"default_lifetime"`
}

// Validate reports whether the config is complete for its dialect.
func (c ProviderConfig) Validate() error {
	var errs []error
	if c.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if !c.Dialect.valid() {
		errs = append(errs, errors.Join(ErrUnsupportedDialect, fmt.Errorf("dialect %q", c.Dialect)))
	}
	if c.ClientID == "" {
		errs = append(errs, ErrMissingClientID)
	}
	if c.Dialect == DialectAlipay && c.signAlgorithm() != AlgHMACSHA256 {
		if c.PrivateKey == "" {
			errs = append(errs, ErrMissingPrivateKey)
		} else if _, err := parseRSAPrivateKey(c.PrivateKey); err != nil {
			errs = append(errs, err)
		}
	} else if c.ClientSecret == "" {
		errs = append(errs, ErrMissingClientSecret)
	}
	if c.AuthURL == "" || c.TokenURL == "" || c.UserInfoURL == "" {
		errs = append(errs, errors.New("auth, token and user info URLs are required"))
	}
	if c.Dialect == DialectAppCredential && c.AppTokenURL == "" {
		errs = append(errs, errors.New("app token URL is required"))
	}
	if c.RedirectURI == "" {
		errs = append(errs, errors.New("redirect URI is required"))
	}
	if len(errs) > 0 {
		return errors.Join(ErrInvalidConfig, fmt.Errorf("provider %q: %w", c.ID, errors.Join(errs...)))
	}
	return nil
}

func (c ProviderConfig) lifetime(expiresIn int64) time.Duration {
	if expiresIn > 0 {
		return time.Duration(expiresIn) * time.Second
	}
	if c.DefaultLifetime > 0 {
		return c.DefaultLifetime
	}
	return c.Dialect.DefaultLifetime()
}

func (c ProviderConfig) signAlgorithm() Algorithm {
	if c.SignAlgorithm == "" {
		return AlgRSA2
	}
	return c.SignAlgorithm
}

func (c ProviderConfig) scope(defaultSep string) string {
	sep := c.ScopeSeparator
	if sep == "" {
		sep = defaultSep
	}
	return strings.Join(c.Scopes, sep)
}

// Token is a provider token response normalized across dialects.
type Token struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	// ExpiresIn is never zero: missing lifetimes fall back to the
	// provider's default.
	ExpiresIn time.Duration
	// Subject and UnionID are set when the token response itself names
	// the user (WeChat openid, Alipay user_id, Feishu open_id).
	Subject string
	UnionID string
}

// Identity is the canonical external identity of a provider user.
type Identity struct {
	Provider  string `json:"provider"`
	Subject   string `json:"subject"`
	UnionID   string `json:"union_id,omitempty"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Email     string `json:"email,omitempty"`

	// EmailVerified is set only when the provider vouches for Email.
	// Link accounts by email only when it is true.
	EmailVerified bool `json:"email_verified,omitempty"`

	// Raw provider credentials, for profile fetching only.
	AccessToken  string `json:"-"`
	RefreshToken string `json:"-"`
}

// AuthOptions carries per-attempt authorization URL parameters.
type AuthOptions struct {
	// CodeVerifier enables PKCE (S256) when non-empty.
	CodeVerifier string
}

// ExchangeOptions carries per-attempt code exchange parameters.
type ExchangeOptions struct {
	CodeVerifier string
}

// Adapter implements one dialect of the authorization code flow.
// Adapters are stateless with respect to a login attempt and safe for
// concurrent use.
type Adapter interface {
	// AuthCodeURL builds the provider authorization URL.
	AuthCodeURL(cfg ProviderConfig, state string, opts AuthOptions) (string, error)

	// Exchange trades an authorization code for provider tokens.
	// Provider-reported failures are returned as *ProviderError.
	Exchange(ctx context.Context, cfg ProviderConfig, code string, opts ExchangeOptions) (*Token, error)

	// FetchUserInfo resolves the provider user behind tok.
	FetchUserInfo(ctx context.Context, cfg ProviderConfig, tok *Token) (*Identity, error)
}

// Provider binds a config to the adapter for its dialect.
type Provider struct {
	Config  ProviderConfig
	Adapter Adapter
}

// ID returns the provider identifier.
func (p Provider) ID() string { return p.Config.ID }

// AuthCodeURL builds the authorization URL for state.
func (p Provider) AuthCodeURL(state string, opts AuthOptions) (string, error) {
	return p.Adapter.AuthCodeURL(p.Config, state, opts)
}

// Exchange trades code for provider tokens.
func (p Provider) Exchange(ctx context.Context, code string, opts ExchangeOptions) (*Token, error) {
	return p.Adapter.Exchange(ctx, p.Config, code, opts)
}

// FetchUserInfo resolves the provider user behind tok.
func (p Provider) FetchUserInfo(ctx context.Context, tok *Token) (*Identity, error) {
	return p.Adapter.FetchUserInfo(ctx, p.Config, tok)
}
