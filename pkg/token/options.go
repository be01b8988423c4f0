package token

import (
	"log/slog"
	"time"
)

// Option configures a Manager.
type Option func(*Manager)

// WithSigningKey sets the key new tokens are signed with.
func WithSigningKey(k Key) Option {
	return func(m *Manager) {
		m.active = k
		m.hasActive = true
	}
}

// WithVerificationKeys adds retired keys that still verify tokens they
// signed. They are never used for signing.
func WithVerificationKeys(keys ...Key) Option {
	return func(m *Manager) {
		m.previous = append(m.previous, keys...)
	}
}

// WithAccessTTL sets the access token lifetime.
func WithAccessTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.accessTTL = d
		}
	}
}

// WithRefreshTTL sets the refresh token lifetime.
func WithRefreshTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.refreshTTL = d
		}
	}
}

// WithRotation toggles single-use refresh tokens.
func WithRotation(enabled bool) Option {
	return func(m *Manager) {
		m.rotation = enabled
	}
}

// WithReuseDetection toggles family revocation when a revoked refresh
// token is presented again.
func WithReuseDetection(enabled bool) Option {
	return func(m *Manager) {
		m.reuseDetection = enabled
	}
}

// WithIssuer sets the iss claim and requires it on verification.
func WithIssuer(iss string) Option {
	return func(m *Manager) {
		m.issuer = iss
	}
}

// WithAudience sets the aud claim and requires it on verification.
func WithAudience(aud string) Option {
	return func(m *Manager) {
		m.audience = aud
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the logger used for rejected tokens and storage failures.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}
