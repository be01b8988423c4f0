// Package token issues and validates the broker's own JWT access and
// refresh tokens.
//
// Access tokens are stateless and checked against a Blacklist on every
// verification. Refresh tokens are backed by a Ledger record; with rotation
// enabled each refresh token can be exchanged exactly once, and presenting
// a consumed token again revokes its whole family.
//
//	key, _ := token.NewHMACKey("primary", secret)
//	m, err := token.NewManager(token.NewMemoryLedger(), blacklist,
//		token.WithSigningKey(key),
//		token.WithAccessTTL(15*time.Minute),
//	)
//	pair, err := m.IssuePair(ctx, userID, nil)
//	claims, err := m.VerifyAccess(ctx, pair.AccessToken)
//	next, err := m.Rotate(ctx, pair.RefreshToken)
//
// Ledger backends are MemoryLedger, RedisLedger (Lua scripts) and
// SQLLedger (sqlite or postgres, schema applied through goose). Keys carry
// an id written to the kid header; retired keys passed to
// WithVerificationKeys keep verifying tokens they signed.
package token
