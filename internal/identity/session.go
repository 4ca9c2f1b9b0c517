package identity

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"cashbook/internal/cache"
	"cashbook/internal/core"
)

// Sessions maps opaque bearer tokens to identities. Entries expire after
// ttl of inactivity and the least recently used ones are evicted past
// capacity.
type Sessions struct {
	tokens *cache.LRUCache[core.Identity]
}

func NewSessions(capacity int, ttl time.Duration) *Sessions {
	return &Sessions{tokens: cache.NewLRUCache[core.Identity](capacity, ttl)}
}

// Cache exposes the backing cache so a cache.Manager can sweep it.
func (s *Sessions) Cache() *cache.LRUCache[core.Identity] { return s.tokens }

// Login issues a new token for id.
func (s *Sessions) Login(id core.Identity) string {
	token := uuid.NewString()
	s.tokens.Set(token, id)
	return token
}

func (s *Sessions) Logout(token string) {
	s.tokens.Delete(token)
}

// Lookup resolves a token. A missing or expired token yields a
// PreconditionError wrapping core.ErrNoIdentity.
func (s *Sessions) Lookup(token string) (core.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return core.Identity{}, &core.PreconditionError{Err: core.ErrNoIdentity}
	}
	id, ok := s.tokens.Get(token)
	if !ok {
		return core.Identity{}, &core.PreconditionError{Err: core.ErrNoIdentity}
	}
	return id, nil
}

// Refresh rewrites every live session of id.Key with the new display name.
func (s *Sessions) Refresh(id core.Identity) {
	s.tokens.Update(func(_ string, cur core.Identity) (core.Identity, bool) {
		if cur.Key == id.Key {
			return id, true
		}
		return cur, true
	})
}

// Revoke ends every session of the given identity key.
func (s *Sessions) Revoke(key string) int {
	return s.tokens.Update(func(_ string, cur core.Identity) (core.Identity, bool) {
		return cur, cur.Key != key
	})
}

type ctxKey struct{}

// WithIdentity returns a child context carrying id.
func WithIdentity(ctx context.Context, id core.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (core.Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(core.Identity)
	return id, ok && !id.IsZero()
}

// Current is FromContext with the absence turned into a PreconditionError.
func Current(ctx context.Context) (core.Identity, error) {
	id, ok := FromContext(ctx)
	if !ok {
		return core.Identity{}, &core.PreconditionError{Err: core.ErrNoIdentity}
	}
	return id, nil
}
