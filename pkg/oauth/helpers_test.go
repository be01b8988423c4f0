package oauth_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authbroker/pkg/oauth"
)

func newRSAKey(t *testing.T) (*rsa.PrivateKey, string, string) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	priv := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pub := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	return key, string(priv), string(pub)
}

func oauth2Config(baseURL string) oauth.ProviderConfig {
	return oauth.ProviderConfig{
		ID:           "github",
		Dialect:      oauth.DialectOAuth2,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "https://app.example.com/auth/github/callback",
		AuthURL:      baseURL + "/authorize",
		TokenURL:     baseURL + "/token",
		UserInfoURL:  baseURL + "/user",
		Scopes:       []string{"read:user", "user:email"},
		AuthStyle:    "params",
	}
}
