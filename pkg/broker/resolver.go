package broker

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrymomot/authbroker/pkg/oauth"
)

// UserResolver maps an external identity to a local user id, creating the
// user on first sight.
type UserResolver interface {
	FindOrCreate(ctx context.Context, ident oauth.Identity) (string, error)
}

// UserResolverFunc adapts a function to UserResolver.
type UserResolverFunc func(ctx context.Context, ident oauth.Identity) (string, error)

func (f UserResolverFunc) FindOrCreate(ctx context.Context, ident oauth.Identity) (string, error) {
	return f(ctx, ident)
}

// MemoryResolver is an in-process UserResolver. Identities are keyed by
// provider and subject; a shared union id links identities of the same
// person into one user.
type MemoryResolver struct {
	mu       sync.Mutex
	subjects map[string]string
	unions   map[string]string
	users    map[string][]oauth.Identity
}

// NewMemoryResolver creates an empty MemoryResolver.
func NewMemoryResolver() *MemoryResolver {
	return &MemoryResolver{
		subjects: make(map[string]string),
		unions:   make(map[string]string),
		users:    make(map[string][]oauth.Identity),
	}
}

func (r *MemoryResolver) FindOrCreate(_ context.Context, ident oauth.Identity) (string, error) {
	if ident.Subject == "" {
		return "", ErrUnknownSubject
	}

	subjectKey := ident.Provider + "\x00" + ident.Subject

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.subjects[subjectKey]; ok {
		return id, nil
	}

	var id string
	if ident.UnionID != "" {
		id = r.unions[ident.UnionID]
	}
	if id == "" {
		id = uuid.NewString()
	}

	r.subjects[subjectKey] = id
	if ident.UnionID != "" {
		r.unions[ident.UnionID] = id
	}
	ident.AccessToken, ident.RefreshToken = "", ""
	r.users[id] = append(r.users[id], ident)
	return id, nil
}

// Identities returns the identities linked to userID.
func (r *MemoryResolver) Identities(userID string) []oauth.Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]oauth.Identity(nil), r.users[userID]...)
}

var _ UserResolver = (*MemoryResolver)(nil)
