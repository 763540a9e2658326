package gateway

import (
	"context"
	"sync"
)

type identityKey struct{}

// Identity is the per-request auth state: the principal resolved from the caller's token, or one
// created on the caller's behalf during the request.
type Identity struct {
	mu          sync.RWMutex
	principalID string
	created     bool
}

// NewIdentity returns an Identity for principalID ("" for an unauthenticated caller).
func NewIdentity(principalID string) *Identity {
	return &Identity{principalID: principalID}
}

// PrincipalID returns the bound principal, or "".
func (i *Identity) PrincipalID() string {
	if i == nil {
		return ""
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.principalID
}

// CreatedAnonymously reports whether the principal was created during this request.
func (i *Identity) CreatedAnonymously() bool {
	if i == nil {
		return false
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.created
}

func (i *Identity) bindAnonymous(principalID string) {
	if i == nil {
		return
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.principalID = principalID
	i.created = true
}

// WithIdentity attaches id to ctx.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// WithPrincipal attaches a fresh Identity bound to principalID.
func WithPrincipal(ctx context.Context, principalID string) context.Context {
	return WithIdentity(ctx, NewIdentity(principalID))
}

// IdentityFromContext returns the Identity attached to ctx, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}

func currentPrincipal(ctx context.Context) (string, bool) {
	id := IdentityFromContext(ctx).PrincipalID()
	return id, id != ""
}
