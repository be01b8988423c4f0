package oauth

import (
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"net/url"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Algorithm is a gateway signature type as named by the provider.
type Algorithm string

const (
	// AlgRSA2 is RSA PKCS#1 v1.5 with SHA-256.
	AlgRSA2 Algorithm = "RSA2"
	// AlgHMACSHA256 is HMAC with SHA-256 keyed by the client secret.
	AlgHMACSHA256 Algorithm = "HMAC-SHA256"
)

func (a Algorithm) method() (jwt.SigningMethod, error) {
	switch a {
	case AlgRSA2, "":
		return jwt.SigningMethodRS256, nil
	case AlgHMACSHA256:
		return jwt.SigningMethodHS256, nil
	}
	return nil, errors.Join(ErrUnsupportedAlgorithm, errors.New(string(a)))
}

// Canonicalize renders params as the gateway signing string: keys sorted
// ascending, "key=value" pairs joined with "&". The sign parameter itself
// and empty values are excluded. Values are not URL-encoded.
func Canonicalize(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if k == "sign" || len(v) == 0 || v[0] == "" {
			continue
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params.Get(k))
	}
	return b.String()
}

// Sign signs payload with key and returns the standard base64 signature.
// RSA2 expects an *rsa.PrivateKey, HMAC-SHA256 a []byte secret.
func Sign(payload string, key any, alg Algorithm) (string, error) {
	m, err := alg.method()
	if err != nil {
		return "", err
	}
	sig, err := m.Sign(payload, key)
	if err != nil {
		return "", errors.Join(ErrInvalidKey, err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify checks a standard base64 signature over payload.
// RSA2 expects an *rsa.PublicKey, HMAC-SHA256 a []byte secret.
func Verify(payload, signature string, key any, alg Algorithm) error {
	m, err := alg.method()
	if err != nil {
		return err
	}
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return errors.Join(ErrInvalidSignature, err)
	}
	if err := m.Verify(payload, sig, key); err != nil {
		return errors.Join(ErrInvalidSignature, err)
	}
	return nil
}

func parseRSAPrivateKey(material string) (*rsa.PrivateKey, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemWrap(material, "PRIVATE KEY"))
	if err != nil {
		return nil, errors.Join(ErrInvalidKey, err)
	}
	return key, nil
}

func parseRSAPublicKey(material string) (*rsa.PublicKey, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM(pemWrap(material, "PUBLIC KEY"))
	if err != nil {
		return nil, errors.Join(ErrInvalidKey, err)
	}
	return key, nil
}

// pemWrap accepts either a PEM block or the bare base64 body that gateway
// consoles hand out, and returns PEM bytes.
func pemWrap(material, blockType string) []byte {
	material = strings.TrimSpace(material)
	if strings.HasPrefix(material, "-----BEGIN") {
		return []byte(material)
	}
	var b strings.Builder
	b.WriteString("-----BEGIN " + blockType + "-----\n")
	for len(material) > 64 {
		b.WriteString(material[:64] + "\n")
		material = material[64:]
	}
	b.WriteString(material + "\n-----END " + blockType + "-----\n")
	return []byte(b.String())
}

func signingKey(cfg ProviderConfig) (any, error) {
	if cfg.signAlgorithm() == AlgHMACSHA256 {
		return []byte(cfg.ClientSecret), nil
	}
	return parseRSAPrivateKey(cfg.PrivateKey)
}

func verifyingKey(cfg ProviderConfig) (any, error) {
	if cfg.signAlgorithm() == AlgHMACSHA256 {
		return []byte(cfg.ClientSecret), nil
	}
	return parseRSAPublicKey(cfg.ProviderPublicKey)
}
