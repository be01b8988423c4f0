package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/dmitrymomot/authbroker/pkg/logger"
	"github.com/dmitrymomot/authbroker/pkg/oauth"
	"github.com/dmitrymomot/authbroker/pkg/state"
	"github.com/dmitrymomot/authbroker/pkg/token"
)

const tracerName = "github.com/dmitrymomot/authbroker/pkg/broker"

// Providers looks up configured providers. *oauth.Registry implements it.
type Providers interface {
	Get(id string) (oauth.Provider, error)
}

// States issues and consumes login states. *state.Store implements it.
type States interface {
	Create(ctx context.Context, provider string, opts state.CreateOptions) (string, error)
	Consume(ctx context.Context, token string) (state.Record, error)
}

// Tokens is the token lifecycle the broker drives. *token.Manager
// implements it.
type Tokens interface {
	IssuePair(ctx context.Context, subject string, extra map[string]any) (*token.Pair, error)
	VerifyAccess(ctx context.Context, access string) (*token.Claims, error)
	Rotate(ctx context.Context, refresh string) (*token.Pair, error)
	Revoke(ctx context.Context, refresh string) (bool, error)
	BlacklistAccess(ctx context.Context, access string)
}

// CallbackParams are the query parameters a provider redirects back with.
type CallbackParams struct {
	Provider         string
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// LoginResult is a completed login.
type LoginResult struct {
	UserID   string
	Identity oauth.Identity
	Tokens   *token.Pair
	// Redirect is the hint passed to BeginLogin, already validated.
	Redirect string
}

// Broker runs the login flow across providers and hands out the broker's
// own tokens.
type Broker struct {
	providers Providers
	states    States
	tokens    Tokens
	resolver  UserResolver

	timeout time.Duration
	log     *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// New creates a Broker.
func New(providers Providers, states States, tokens Tokens, resolver UserResolver, opts ...Option) *Broker {
	b := &Broker{
		providers: providers,
		states:    states,
		tokens:    tokens,
		resolver:  resolver,
		timeout:   DefaultTimeout,
		log:       logger.NewNope(),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BeginLogin starts a login attempt and returns the provider authorization
// URL to redirect the user to.
func (b *Broker) BeginLogin(ctx context.Context, providerID, redirectHint string) (string, error) {
	ctx, span := b.tracer.Start(ctx, "broker.BeginLogin")
	defer span.End()

	p, err := b.providers.Get(providerID)
	if err != nil {
		b.log.InfoContext(ctx, "login for unknown provider", logger.Error(err))
		return "", b.fail(span, err)
	}

	ctx = withProvider(ctx, providerID)
	span.SetAttributes(attribute.String(logger.KeyProvider, providerID))
	b.enter(ctx, providerID, PhaseInitiated)

	opts := state.CreateOptions{RedirectHint: redirectHint}
	if p.Config.UsePKCE {
		opts.CodeVerifier = oauth2.GenerateVerifier()
	}

	st, err := b.states.Create(ctx, providerID, opts)
	if err != nil {
		b.enter(ctx, providerID, PhaseFailed)
		b.log.WarnContext(ctx, "state creation failed", logger.Error(err))
		return "", b.fail(span, err)
	}

	authURL, err := p.AuthCodeURL(st, oauth.AuthOptions{CodeVerifier: opts.CodeVerifier})
	if err != nil {
		b.enter(ctx, providerID, PhaseFailed)
		b.log.ErrorContext(ctx, "authorization url failed", logger.Error(err))
		return "", b.fail(span, err)
	}

	b.enter(ctx, providerID, PhaseAwaitingCallback)
	return authURL, nil
}

// HandleCallback completes a login attempt. The state is consumed before
// any network call and is never restored, even when the exchange fails or
// ctx is cancelled. Provider failures come back as *oauth.ProviderError.
func (b *Broker) HandleCallback(ctx context.Context, params CallbackParams) (result *LoginResult, err error) {
	ctx, span := b.tracer.Start(ctx, "broker.HandleCallback",
		trace.WithAttributes(attribute.String(logger.KeyProvider, params.Provider)))
	started := time.Now()

	p, lookupErr := b.providers.Get(params.Provider)
	label := params.Provider
	if lookupErr != nil {
		label = "unknown"
	} else {
		ctx = withProvider(ctx, params.Provider)
	}

	defer func() {
		b.metrics.callback(label, started, err)
		if err != nil {
			b.enter(ctx, label, PhaseFailed)
			b.log.WarnContext(ctx, "login failed",
				slog.String(logger.KeyReason, Reason(err)),
				logger.Error(err),
			)
			_ = b.fail(span, err)
		} else {
			b.enter(ctx, label, PhaseResolved)
			span.SetAttributes(attribute.String(logger.KeyUserID, result.UserID))
		}
		span.End()
	}()

	if params.Error != "" {
		detail := params.Error
		if params.ErrorDescription != "" {
			detail += ": " + params.ErrorDescription
		}
		return nil, errors.Join(ErrProviderDenied, errors.New(detail))
	}
	if params.Code == "" {
		return nil, ErrMissingCode
	}

	rec, err := b.states.Consume(ctx, params.State)
	if err != nil {
		return nil, errors.Join(ErrInvalidState, err)
	}
	if rec.Provider != params.Provider {
		return nil, errors.Join(ErrProviderMismatch,
			fmt.Errorf("state issued for %q, callback for %q", rec.Provider, params.Provider))
	}
	if lookupErr != nil {
		return nil, lookupErr
	}

	netCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	tok, err := p.Exchange(netCtx, params.Code, oauth.ExchangeOptions{CodeVerifier: rec.CodeVerifier})
	if err != nil {
		return nil, err
	}

	ident, err := p.FetchUserInfo(netCtx, tok)
	if err != nil {
		return nil, err
	}
	if ident.Provider == "" {
		ident.Provider = params.Provider
	}

	userID, err := b.resolver.FindOrCreate(ctx, *ident)
	if err != nil {
		return nil, errors.Join(ErrUnknownUser, err)
	}

	pair, err := b.tokens.IssuePair(ctx, userID, map[string]any{"provider": params.Provider})
	if err != nil {
		return nil, err
	}

	b.log.InfoContext(ctx, "login resolved",
		slog.String(logger.KeyUserID, userID),
		slog.String(logger.KeySubject, ident.Subject),
		slog.Duration(logger.KeyDuration, time.Since(started)),
	)

	return &LoginResult{
		UserID:   userID,
		Identity: *ident,
		Tokens:   pair,
		Redirect: rec.RedirectHint,
	}, nil
}

// Refresh rotates a refresh token into a new pair. Any failure means the
// client must log in again.
func (b *Broker) Refresh(ctx context.Context, refresh string) (*token.Pair, error) {
	ctx, span := b.tracer.Start(ctx, "broker.Refresh")
	defer span.End()

	pair, err := b.tokens.Rotate(ctx, refresh)
	b.metrics.refreshed(err)
	if err != nil {
		return nil, b.fail(span, err)
	}
	return pair, nil
}

// Logout blacklists the access token and revokes the refresh token.
// Either may be empty. Logout never fails; problems are logged.
func (b *Broker) Logout(ctx context.Context, access, refresh string) {
	ctx, span := b.tracer.Start(ctx, "broker.Logout")
	defer span.End()

	if access != "" {
		b.tokens.BlacklistAccess(ctx, access)
	}
	if refresh != "" {
		if _, err := b.tokens.Revoke(ctx, refresh); err != nil {
			b.log.ErrorContext(ctx, "refresh revocation failed", logger.Error(err))
			span.RecordError(err)
		}
	}
}

// Authenticate verifies an access token.
func (b *Broker) Authenticate(ctx context.Context, access string) (*token.Claims, error) {
	return b.tokens.VerifyAccess(ctx, access)
}

func (b *Broker) enter(ctx context.Context, provider string, p Phase) {
	b.metrics.phase(provider, p)
	b.log.DebugContext(ctx, "login phase", slog.String(logger.KeyPhase, string(p)))
}

func (b *Broker) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, Reason(err))
	return err
}
