package token

import (
	"crypto/ed25519"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// minHMACKeyLen is the shortest accepted HMAC secret, in bytes.
const minHMACKeyLen = 32

// Key is a signing key and its verification counterpart, addressed by the
// kid header.
type Key struct {
	ID     string
	Method jwt.SigningMethod
	sign   any
	verify any
}

// NewHMACKey creates an HS256 key. The secret must be at least 32 bytes.
func NewHMACKey(id string, secret []byte) (Key, error) {
	if len(secret) < minHMACKeyLen {
		return Key{}, errors.Join(ErrInvalidKey, fmt.Errorf("hmac secret must be at least %d bytes", minHMACKeyLen))
	}
	return Key{ID: id, Method: jwt.SigningMethodHS256, sign: secret, verify: secret}, nil
}

// NewRSAKey creates an RS256 key.
func NewRSAKey(id string, key *rsa.PrivateKey) (Key, error) {
	if key == nil {
		return Key{}, ErrInvalidKey
	}
	return Key{ID: id, Method: jwt.SigningMethodRS256, sign: key, verify: &key.PublicKey}, nil
}

// NewEd25519Key creates an EdDSA key.
func NewEd25519Key(id string, key ed25519.PrivateKey) (Key, error) {
	if len(key) != ed25519.PrivateKeySize {
		return Key{}, ErrInvalidKey
	}
	return Key{ID: id, Method: jwt.SigningMethodEdDSA, sign: key, verify: key.Public()}, nil
}

// ParseKey builds a Key from configuration. HS* algorithms take the raw
// secret; RS* and EdDSA take a PEM private key.
func ParseKey(alg, id, material string) (Key, error) {
	switch strings.ToUpper(alg) {
	case "HS256", "":
		return NewHMACKey(id, []byte(material))
	case "RS256":
		k, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(material))
		if err != nil {
			return Key{}, errors.Join(ErrInvalidKey, err)
		}
		return NewRSAKey(id, k)
	case "EDDSA":
		k, err := jwt.ParseEdPrivateKeyFromPEM([]byte(material))
		if err != nil {
			return Key{}, errors.Join(ErrInvalidKey, err)
		}
		edk, ok := k.(ed25519.PrivateKey)
		if !ok {
			return Key{}, ErrInvalidKey
		}
		return NewEd25519Key(id, edk)
	}
	return Key{}, errors.Join(ErrUnsupportedAlgorithm, fmt.Errorf("algorithm %q", alg))
}
