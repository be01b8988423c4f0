// Package oauth resolves external identities from heterogeneous OAuth
// providers.
//
// A [Registry] holds one immutable [ProviderConfig] per provider and binds
// it to the [Adapter] for its [Dialect]:
//
//   - [DialectOAuth2]: RFC 6749 code flow via golang.org/x/oauth2 (GitHub, Google)
//   - [DialectWeChat]: QR-connect with query-string credentials and errcode bodies
//   - [DialectAlipay]: RSA2-signed gateway calls with *_response envelopes
//   - [DialectAppCredential]: code exchange authorized by a cached app token (Feishu, DingTalk)
//
// Every adapter produces the same canonical [Identity]; [Normalize] maps the
// provider's field spellings (openid/sub/user_id, nickname/name,
// headimgurl/avatar_url/picture) onto it.
//
// # Usage
//
//	reg, err := oauth.NewRegistry([]oauth.ProviderConfig{
//	    oauth.GitHub(oauth.Credentials{
//	        ClientID:     os.Getenv("GITHUB_CLIENT_ID"),
//	        ClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
//	        RedirectURI:  "https://example.com/auth/github/callback",
//	    }),
//	})
//
//	p, err := reg.Get("github")
//	authURL, err := p.AuthCodeURL(state, oauth.AuthOptions{})
//	tok, err := p.Exchange(ctx, code, oauth.ExchangeOptions{})
//	identity, err := p.FetchUserInfo(ctx, tok)
//
// # Errors
//
// Provider-reported failures are returned as [*ProviderError] with the
// provider's own code and message. Transport and decode failures wrap
// [ErrRequestFailed] and [ErrDecodeFailed]. Lookups of unconfigured ids
// return [ErrUnknownProvider].
//
// # Signatures
//
// Signed-gateway dialects sign [Canonicalize] output (sorted key=value
// pairs joined by "&", skipping sign and empty values) with [Sign], using
// golang-jwt signing methods as the RSA/HMAC primitive.
package oauth
