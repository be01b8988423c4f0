package oauth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrymomot/authbroker/pkg/cache"
)

// Registry maps provider ids to their configs and adapters.
// It is built once and never mutated, so lookups need no locking.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry validates configs and binds each to its dialect adapter.
func NewRegistry(configs []ProviderConfig, opts ...Option) (*Registry, error) {
	o := &options{adapters: make(map[Dialect]Adapter)}
	for _, opt := range opts {
		opt(o)
	}
	if o.httpClient == nil {
		o.httpClient = defaultHTTPClient()
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.appTokens == nil {
		// One key per app-credential provider, and expired entries are
		// replaced on the next miss, so no janitor is needed. The registry
		// has no Close to stop one.
		o.appTokens = cache.NewMemory[string](cache.WithCleanupInterval(0))
	}

	defaults := map[Dialect]Adapter{
		DialectOAuth2:        NewOAuth2Adapter(o.httpClient),
		DialectWeChat:        NewWeChatAdapter(o.httpClient),
		DialectAlipay:        NewAlipayAdapter(o.httpClient, o.now),
		DialectAppCredential: NewAppCredentialAdapter(o.httpClient, o.appTokens),
	}
	for d, a := range o.adapters {
		defaults[d] = a
	}

	r := &Registry{providers: make(map[string]Provider, len(configs))}
	for _, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.providers[cfg.ID]; dup {
			return nil, errors.Join(ErrDuplicateProvider, fmt.Errorf("provider %q", cfg.ID))
		}
		cfg.Scopes = slices.Clone(cfg.Scopes)
		r.providers[cfg.ID] = Provider{Config: cfg, Adapter: defaults[cfg.Dialect]}
	}

	return r, nil
}

// Get returns the provider registered under id.
func (r *Registry) Get(id string) (Provider, error) {
	p, ok := r.providers[id]
	if !ok {
		return Provider{}, errors.Join(ErrUnknownProvider, fmt.Errorf("provider %q", id))
	}
	return p, nil
}

// IDs returns the configured provider ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
