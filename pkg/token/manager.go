package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/authbroker/pkg/logger"
)

// Default lifetimes.
const (
	DefaultAccessTTL  = time.Hour
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// Manager issues, verifies, rotates and revokes token pairs.
type Manager struct {
	ledger    Ledger
	blacklist Blacklist

	active    Key
	hasActive bool
	previous  []Key
	keys      map[string]Key
	methods   []string

	accessTTL      time.Duration
	refreshTTL     time.Duration
	rotation       bool
	reuseDetection bool
	issuer         string
	audience       string

	now func() time.Time
	log *slog.Logger
}

// NewManager creates a Manager. A signing key is required.
func NewManager(ledger Ledger, blacklist Blacklist, opts ...Option) (*Manager, error) {
	if ledger == nil || blacklist == nil {
		return nil, errors.New("token: ledger and blacklist are required")
	}

	m := &Manager{
		ledger:         ledger,
		blacklist:      blacklist,
		accessTTL:      DefaultAccessTTL,
		refreshTTL:     DefaultRefreshTTL,
		rotation:       true,
		reuseDetection: true,
		now:            time.Now,
		log:            logger.NewNope(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if !m.hasActive {
		return nil, ErrNoSigningKey
	}
	if m.active.ID == "" {
		return nil, errors.Join(ErrInvalidKey, errors.New("signing key has no id"))
	}

	m.keys = make(map[string]Key, len(m.previous)+1)
	seen := make(map[string]bool)
	for _, k := range append([]Key{m.active}, m.previous...) {
		if _, dup := m.keys[k.ID]; dup {
			return nil, errors.Join(ErrInvalidKey, fmt.Errorf("duplicate key id %q", k.ID))
		}
		m.keys[k.ID] = k
		if alg := k.Method.Alg(); !seen[alg] {
			seen[alg] = true
			m.methods = append(m.methods, alg)
		}
	}

	return m, nil
}

// AccessTTL returns the configured access token lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.accessTTL }

// IssuePair signs a new access/refresh pair for subject and records the
// refresh token in a new family.
func (m *Manager) IssuePair(ctx context.Context, subject string, extra map[string]any) (*Pair, error) {
	if subject == "" {
		return nil, errors.New("token: empty subject")
	}

	pair, rec, err := m.issue(subject, uuid.NewString(), extra)
	if err != nil {
		return nil, err
	}
	if err := m.ledger.Create(ctx, rec); err != nil {
		return nil, errors.Join(ErrStorage, err)
	}
	return pair, nil
}

// VerifyAccess validates an access token and checks the blacklist.
func (m *Manager) VerifyAccess(ctx context.Context, token string) (*Claims, error) {
	claims, err := m.parse(token, TypeAccess, true)
	if err != nil {
		m.log.DebugContext(ctx, "access token rejected", logger.Error(err))
		return nil, ErrInvalidToken
	}

	blocked, err := m.blacklist.Contains(ctx, claims.ID)
	if err != nil {
		m.log.ErrorContext(ctx, "blacklist lookup failed", logger.Error(err))
		return nil, ErrInvalidToken
	}
	if blocked {
		m.log.DebugContext(ctx, "access token blacklisted", slog.String(logger.KeyTokenID, claims.ID))
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Rotate exchanges a refresh token for a new pair. With rotation enabled
// the presented token is consumed; two concurrent calls with the same
// token produce exactly one pair.
func (m *Manager) Rotate(ctx context.Context, refresh string) (*Pair, error) {
	claims, err := m.parse(refresh, TypeRefresh, true)
	if err != nil {
		m.log.DebugContext(ctx, "refresh token rejected", logger.Error(err))
		return nil, ErrInvalidToken
	}

	if !m.rotation {
		return m.reissueAccess(ctx, refresh, claims)
	}

	// Sign first: a signing failure must leave the old token usable.
	pair, next, err := m.issue(claims.Subject, claims.Family, claims.Extra)
	if err != nil {
		return nil, err
	}

	err = m.ledger.Rotate(ctx, claims.ID, next)
	switch {
	case err == nil:
		return pair, nil
	case errors.Is(err, ErrRecordRevoked):
		m.handleReuse(ctx, claims)
		return nil, ErrInvalidToken
	case errors.Is(err, ErrRecordNotFound):
		m.log.DebugContext(ctx, "refresh record not live", slog.String(logger.KeyTokenID, claims.ID))
		return nil, ErrInvalidToken
	default:
		return nil, errors.Join(ErrStorage, err)
	}
}

// Revoke revokes the record behind a refresh token. Expired tokens are
// accepted. It reports whether a record was found.
func (m *Manager) Revoke(ctx context.Context, refresh string) (bool, error) {
	claims, err := m.parse(refresh, TypeRefresh, false)
	if err != nil {
		return false, nil
	}
	found, err := m.ledger.Revoke(ctx, claims.ID)
	if err != nil {
		return false, errors.Join(ErrStorage, err)
	}
	return found, nil
}

// BlacklistAccess blocks an access token for the rest of its lifetime.
// Malformed, expired or jti-less tokens are ignored.
func (m *Manager) BlacklistAccess(ctx context.Context, token string) {
	claims, err := m.parse(token, TypeAccess, false)
	if err != nil || claims.ExpiresAt == nil {
		return
	}

	ttl := claims.ExpiresAt.Sub(m.now())
	if ttl <= 0 {
		return
	}

	if err := m.blacklist.Add(ctx, claims.ID, ttl); err != nil {
		m.log.ErrorContext(ctx, "blacklist write failed",
			slog.String(logger.KeyTokenID, claims.ID),
			logger.Error(err),
		)
	}
}

// RevokeSubject revokes every refresh record of subject.
func (m *Manager) RevokeSubject(ctx context.Context, subject string) (int, error) {
	n, err := m.ledger.RevokeSubject(ctx, subject)
	if err != nil {
		return 0, errors.Join(ErrStorage, err)
	}
	return n, nil
}

// Sweep deletes expired refresh records.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	n, err := m.ledger.Sweep(ctx, m.now())
	if err != nil {
		return 0, errors.Join(ErrStorage, err)
	}
	return n, nil
}

func (m *Manager) handleReuse(ctx context.Context, claims *Claims) {
	if !m.reuseDetection || claims.Family == "" {
		return
	}
	n, err := m.ledger.RevokeFamily(ctx, claims.Family)
	if err != nil {
		m.log.ErrorContext(ctx, "family revocation failed", logger.Error(err))
		return
	}
	m.log.WarnContext(ctx, "refresh token reuse detected",
		slog.String(logger.KeySubject, claims.Subject),
		slog.String(logger.KeyTokenID, claims.ID),
		slog.Int("revoked", n),
	)
}

func (m *Manager) reissueAccess(ctx context.Context, refresh string, claims *Claims) (*Pair, error) {
	rec, err := m.ledger.Get(ctx, claims.ID)
	switch {
	case errors.Is(err, ErrRecordNotFound):
		return nil, ErrInvalidToken
	case err != nil:
		return nil, errors.Join(ErrStorage, err)
	}
	if rec.Revoked || rec.Subject != claims.Subject || !rec.ExpiresAt.After(m.now()) {
		return nil, ErrInvalidToken
	}

	now := m.now().Truncate(time.Second)
	access, err := m.sign(m.claims(TypeAccess, claims.Subject, claims.Family, claims.Extra, now, m.accessTTL))
	if err != nil {
		return nil, err
	}

	return &Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        "Bearer",
		ExpiresIn:        int64(m.accessTTL / time.Second),
		RefreshExpiresIn: int64(rec.ExpiresAt.Sub(now) / time.Second),
		AccessExpiresAt:  now.Add(m.accessTTL),
		RefreshExpiresAt: rec.ExpiresAt,
	}, nil
}

func (m *Manager) issue(subject, family string, extra map[string]any) (*Pair, Record, error) {
	now := m.now().Truncate(time.Second)

	access, err := m.sign(m.claims(TypeAccess, subject, family, extra, now, m.accessTTL))
	if err != nil {
		return nil, Record{}, err
	}

	rc := m.claims(TypeRefresh, subject, family, extra, now, m.refreshTTL)
	refresh, err := m.sign(rc)
	if err != nil {
		return nil, Record{}, err
	}

	rec := Record{
		ID:        rc.ID,
		Subject:   subject,
		Family:    family,
		ExpiresAt: rc.ExpiresAt.Time,
		CreatedAt: now,
	}

	return &Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        "Bearer",
		ExpiresIn:        int64(m.accessTTL / time.Second),
		RefreshExpiresIn: int64(m.refreshTTL / time.Second),
		AccessExpiresAt:  now.Add(m.accessTTL),
		RefreshExpiresAt: rec.ExpiresAt,
	}, rec, nil
}

func (m *Manager) claims(typ, subject, family string, extra map[string]any, now time.Time, ttl time.Duration) *Claims {
	c := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Type:   typ,
		Family: family,
		Extra:  extra,
	}
	if m.audience != "" {
		c.Audience = jwt.ClaimStrings{m.audience}
	}
	return c
}

func (m *Manager) sign(c *Claims) (string, error) {
	t := jwt.NewWithClaims(m.active.Method, c)
	t.Header["kid"] = m.active.ID
	s, err := t.SignedString(m.active.sign)
	if err != nil {
		return "", errors.Join(ErrInvalidKey, err)
	}
	return s, nil
}

// parse verifies the signature and type. When validate is false the time
// and issuer claims are not checked.
func (m *Manager) parse(token, typ string, validate bool) (*Claims, error) {
	if token == "" {
		return nil, errors.New("empty token")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods(m.methods)}
	if validate {
		opts = append(opts,
			jwt.WithTimeFunc(m.now),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
		)
		if m.issuer != "" {
			opts = append(opts, jwt.WithIssuer(m.issuer))
		}
		if m.audience != "" {
			opts = append(opts, jwt.WithAudience(m.audience))
		}
	} else {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	claims := &Claims{}
	if _, err := jwt.ParseWithClaims(token, claims, m.keyFunc, opts...); err != nil {
		return nil, err
	}
	if claims.Type != typ {
		return nil, fmt.Errorf("token type %q, want %q", claims.Type, typ)
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, errors.New("token has no jti or sub")
	}
	return claims, nil
}

func (m *Manager) keyFunc(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	k, ok := m.keys[kid]
	if !ok {
		return nil, fmt.Errorf("unknown key id %q", kid)
	}
	if t.Method.Alg() != k.Method.Alg() {
		return nil, fmt.Errorf("key %q does not sign with %s", kid, t.Method.Alg())
	}
	return k.verify, nil
}
