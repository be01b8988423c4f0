package state

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/dmitrymomot/authbroker/pkg/cache"
)

const (
	// DefaultTTL is the validity window of a state token.
	DefaultTTL = 10 * time.Minute

	tokenBytes = 32

	keyPrefix  = "state:"
	usedPrefix = "state_used:"
)

// Config holds state store settings.
type Config struct {
	TTL time.Duration `env:"STATE_TTL" envDefault:"10m"`
	// RedirectAllowlist lists hosts an absolute redirect hint may point to.
	// Relative paths are always accepted.
	RedirectAllowlist []string `env:"STATE_REDIRECT_ALLOWLIST" envSeparator:","`
}

// Record is what a state token stands for.
type Record struct {
	Provider     string    `json:"provider"`
	RedirectHint string    `json:"redirect_hint,omitempty"`
	CodeVerifier string    `json:"code_verifier,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateOptions carries the optional parts of a login attempt.
type CreateOptions struct {
	RedirectHint string
	CodeVerifier string
}

// Store issues and consumes single-use CSRF state tokens.
// All atomicity comes from the backend's Take, so a Store over a shared
// Redis backend is safe across broker instances.
type Store struct {
	backend cache.Atomic[Record]
	now     func() time.Time
	allow   []string
	ttl     time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the validity window. Default: 10 minutes.
func WithTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRedirectAllowlist sets the hosts absolute redirect hints may target.
func WithRedirectAllowlist(hosts ...string) Option {
	return func(s *Store) {
		for _, h := range hosts {
			if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
				s.allow = append(s.allow, h)
			}
		}
	}
}

// NewStore creates a Store over backend.
func NewStore(backend cache.Atomic[Record], opts ...Option) *Store {
	s := &Store{
		backend: backend,
		now:     time.Now,
		ttl:     DefaultTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewStoreFromConfig creates a Store using cfg.
func NewStoreFromConfig(backend cache.Atomic[Record], cfg Config, opts ...Option) *Store {
	base := []Option{WithTTL(cfg.TTL), WithRedirectAllowlist(cfg.RedirectAllowlist...)}
	return NewStore(backend, append(base, opts...)...)
}

// TTL returns the validity window.
func (s *Store) TTL() time.Duration { return s.ttl }

// Create stores a fresh state for provider and returns its token.
func (s *Store) Create(ctx context.Context, provider string, opts CreateOptions) (string, error) {
	if err := s.checkRedirect(opts.RedirectHint); err != nil {
		return "", err
	}

	rec := Record{
		Provider:     provider,
		RedirectHint: opts.RedirectHint,
		CodeVerifier: opts.CodeVerifier,
		CreatedAt:    s.now().UTC(),
	}

	// A collision on 256 random bits means the random source is broken;
	// one retry distinguishes that from astronomically bad luck.
	for range 2 {
		token, err := newToken()
		if err != nil {
			return "", err
		}
		err = s.backend.Add(ctx, keyPrefix+token, rec, s.ttl)
		if errors.Is(err, cache.ErrExists) {
			continue
		}
		if err != nil {
			return "", err
		}
		return token, nil
	}
	return "", ErrGenerate
}

// Consume atomically takes the state and returns its record.
// Exactly one of any number of concurrent calls with the same token
// succeeds. Every failure matches ErrInvalidState; the wrapped
// *RejectError says why.
func (s *Store) Consume(ctx context.Context, token string) (Record, error) {
	if !wellFormed(token) {
		return Record{}, reject(ErrNotFound)
	}

	rec, err := s.backend.Take(ctx, keyPrefix+token)
	if errors.Is(err, cache.ErrNotFound) {
		if used, _ := s.backend.Has(ctx, usedPrefix+token); used {
			return Record{}, reject(ErrAlreadyConsumed)
		}
		return Record{}, reject(ErrNotFound)
	}
	if err != nil {
		return Record{}, errors.Join(ErrInvalidState, err)
	}

	// The tombstone only improves log detail; losing it is harmless.
	_ = s.backend.Set(ctx, usedPrefix+token, Record{Provider: rec.Provider, CreatedAt: rec.CreatedAt}, s.ttl)

	if s.now().Sub(rec.CreatedAt) > s.ttl {
		return Record{}, reject(ErrExpired)
	}
	return rec, nil
}

func (s *Store) checkRedirect(hint string) error {
	if hint == "" {
		return nil
	}
	u, err := url.Parse(hint)
	if err != nil {
		return ErrRedirectNotAllowed
	}
	if u.Scheme == "" && u.Host == "" {
		// Relative targets must stay on this origin: "//evil.com" and
		// "/\evil.com" are protocol-relative in browsers.
		if !strings.HasPrefix(hint, "/") || strings.HasPrefix(hint, "//") || strings.HasPrefix(hint, "/\\") {
			return ErrRedirectNotAllowed
		}
		return nil
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return ErrRedirectNotAllowed
	}
	if !slices.Contains(s.allow, strings.ToLower(u.Hostname())) {
		return ErrRedirectNotAllowed
	}
	return nil
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Join(ErrGenerate, err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func wellFormed(token string) bool {
	if len(token) != base64.RawURLEncoding.EncodedLen(tokenBytes) {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(token)
	return err == nil
}
