package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token type discriminators.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Claims is the payload of both access and refresh tokens.
type Claims struct {
	jwt.RegisteredClaims
	Type string `json:"typ"`
	// Family links every refresh token descended from one login.
	Family string         `json:"fam,omitempty"`
	Extra  map[string]any `json:"ext,omitempty"`
}

// Pair is an issued access/refresh token pair.
type Pair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	ExpiresIn        int64     `json:"expires_in"`
	RefreshExpiresIn int64     `json:"refresh_expires_in"`
	AccessExpiresAt  time.Time `json:"-"`
	RefreshExpiresAt time.Time `json:"-"`
}
