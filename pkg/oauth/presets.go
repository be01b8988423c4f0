package oauth

import (
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

// Endpoints for the built-in presets.
const (
	githubUserInfoURL = "https://api.github.com/user"
	githubEmailsURL   = "https://api.github.com/user/emails"
	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

	wechatAuthURL     = "https://open.weixin.qq.com/connect/qrconnect"
	wechatTokenURL    = "https://api.weixin.qq.com/sns/oauth2/access_token"
	wechatUserInfoURL = "https://api.weixin.qq.com/sns/userinfo"

	alipayAuthURL = "https://openauth.alipay.com/oauth2/publicAppAuthorize.htm"
	alipayGateway = "https://openapi.alipay.com/gateway.do"

	feishuAuthURL     = "https://open.feishu.cn/open-apis/authen/v1/authorize"
	feishuAppTokenURL = "https://open.feishu.cn/open-apis/auth/v3/app_access_token/internal"
	feishuTokenURL    = "https://open.feishu.cn/open-apis/authen/v1/access_token"
	feishuUserInfoURL = "https://open.feishu.cn/open-apis/authen/v1/user_info"
)

// Credentials are the client settings every preset needs.
type Credentials struct {
	ClientID     string   `env:"CLIENT_ID"`
	ClientSecret string   `env:"CLIENT_SECRET"`
	RedirectURI  string   `env:"REDIRECT_URI"`
	Scopes       []string `env:"SCOPES" envSeparator:","`
}

func (c Credentials) scopes(def ...string) []string {
	if len(c.Scopes) > 0 {
		return c.Scopes
	}
	return def
}

// GitHub returns a ProviderConfig for GitHub OAuth apps.
func GitHub(c Credentials) ProviderConfig {
	return ProviderConfig{
		ID:           "github",
		Dialect:      DialectOAuth2,
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURI:  c.RedirectURI,
		AuthURL:      github.Endpoint.AuthURL,
		TokenURL:     github.Endpoint.TokenURL,
		UserInfoURL:  githubUserInfoURL,
		EmailsURL:    githubEmailsURL,
		Scopes:       c.scopes("read:user", "user:email"),
		AuthStyle:    "params",
	}
}

// Google returns a ProviderConfig for Google OpenID Connect with PKCE.
func Google(c Credentials) ProviderConfig {
	return ProviderConfig{
		ID:           "google",
		Dialect:      DialectOAuth2,
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURI:  c.RedirectURI,
		AuthURL:      google.Endpoint.AuthURL,
		TokenURL:     google.Endpoint.TokenURL,
		UserInfoURL:  googleUserInfoURL,
		Scopes:       c.scopes("openid", "profile", "email"),
		UsePKCE:      true,
	}
}

// WeChat returns a ProviderConfig for WeChat website QR login.
func WeChat(c Credentials) ProviderConfig {
	return ProviderConfig{
		ID:             "wechat",
		Dialect:        DialectWeChat,
		ClientID:       c.ClientID,
		ClientSecret:   c.ClientSecret,
		RedirectURI:    c.RedirectURI,
		AuthURL:        wechatAuthURL,
		TokenURL:       wechatTokenURL,
		UserInfoURL:    wechatUserInfoURL,
		Scopes:         c.scopes("snsapi_login"),
		ScopeSeparator: ",",
	}
}

// Alipay returns a ProviderConfig for Alipay web authorization.
// privateKey is the application RSA key; publicKey the Alipay public key
// used to verify gateway responses (optional).
func Alipay(c Credentials, privateKey, publicKey string) ProviderConfig {
	return ProviderConfig{
		ID:                "alipay",
		Dialect:           DialectAlipay,
		ClientID:          c.ClientID,
		PrivateKey:        privateKey,
		ProviderPublicKey: publicKey,
		SignAlgorithm:     AlgRSA2,
		RedirectURI:       c.RedirectURI,
		AuthURL:           alipayAuthURL,
		TokenURL:          alipayGateway,
		UserInfoURL:       alipayGateway,
		Scopes:            c.scopes("auth_user"),
		ScopeSeparator:    ",",
	}
}

// Feishu returns a ProviderConfig for Feishu (Lark) web login.
func Feishu(c Credentials) ProviderConfig {
	return ProviderConfig{
		ID:           "feishu",
		Dialect:      DialectAppCredential,
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURI:  c.RedirectURI,
		AuthURL:      feishuAuthURL,
		AppTokenURL:  feishuAppTokenURL,
		TokenURL:     feishuTokenURL,
		UserInfoURL:  feishuUserInfoURL,
		Scopes:       c.Scopes,
	}
}
