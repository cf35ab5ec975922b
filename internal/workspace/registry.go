package workspace

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// Factory builds the workspace of a session, loading its persisted state.
type Factory func(ctx context.Context, sessionID string) (*Workspace, error)

// Registry keeps the live workspaces of active sessions. A workspace not
// accessed for the idle TTL is dropped from memory; its persisted state
// survives and is reloaded on the next access. The idle TTL must exceed
// the merge timeout: the request that starts an insert refreshes the
// deadline, so the workspace stays live until its merge settles.
type Registry struct {
	mu      sync.Mutex
	cache   *cache.Cache
	factory Factory
}

// NewRegistry creates a Registry. idle <= 0 keeps workspaces until Forget.
func NewRegistry(factory Factory, idle time.Duration) *Registry {
	exp := idle
	if exp <= 0 {
		exp = cache.NoExpiration
	}
	cleanup := idle / 2
	if cleanup <= 0 {
		cleanup = time.Minute
	}
	return &Registry{
		cache:   cache.New(exp, cleanup),
		factory: factory,
	}
}

// Get returns the workspace of sessionID, building it on first use.
// Every access extends the idle deadline.
func (r *Registry) Get(ctx context.Context, sessionID string) (*Workspace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if x, ok := r.cache.Get(sessionID); ok {
		ws := x.(*Workspace)
		r.cache.Set(sessionID, ws, cache.DefaultExpiration)
		return ws, nil
	}

	ws, err := r.factory(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("opening workspace %s: %w", sessionID, err)
	}
	r.cache.Set(sessionID, ws, cache.DefaultExpiration)
	return ws, nil
}

// Forget drops the live workspace of sessionID.
func (r *Registry) Forget(sessionID string) {
	r.cache.Delete(sessionID)
}

// Len returns the number of live workspaces.
func (r *Registry) Len() int {
	return r.cache.ItemCount()
}
