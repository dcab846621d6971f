// Package locks provides keyed mutual-exclusion tokens grouped by namespace.
package locks

import (
	"context"
	"errors"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// ErrAlreadyRunning is returned when a key is already held.
var ErrAlreadyRunning = errors.New("already running")

// Namespace separates independent sets of keys.
type Namespace string

const (
	// PostUpdate serializes refreshes of one original message.
	PostUpdate Namespace = "post_update_lock"
	// GuildPosRoles serializes position role reconciles of one guild.
	GuildPosRoles Namespace = "guild_pr_update"
	// VoteRecount guards recounts of one original message.
	VoteRecount Namespace = "vote_recount"
)

type key struct {
	ns Namespace
	id uint64
}

// Registry is a process-wide set of held keys.
type Registry struct {
	held *xsync.MapOf[key, chan struct{}]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{held: xsync.NewMapOf[key, chan struct{}]()}
}

// Guard is a held key. Release frees it; releasing twice is a no-op.
type Guard struct {
	registry *Registry
	key      key
	done     chan struct{}
	once     sync.Once
}

// TryLock holds the key if it is free. Returns nil if the key is already held.
func (r *Registry) TryLock(ns Namespace, id uint64) *Guard {
	k := key{ns: ns, id: id}
	done := make(chan struct{})

	if _, loaded := r.held.LoadOrStore(k, done); loaded {
		return nil
	}

	return &Guard{registry: r, key: k, done: done}
}

// Lock waits until the key is free and holds it.
func (r *Registry) Lock(ctx context.Context, ns Namespace, id uint64) (*Guard, error) {
	k := key{ns: ns, id: id}

	for {
		if g := r.TryLock(ns, id); g != nil {
			return g, nil
		}

		done, ok := r.held.Load(k)
		if !ok {
			continue
		}

		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Held reports whether the key is currently held.
func (r *Registry) Held(ns Namespace, id uint64) bool {
	_, ok := r.held.Load(key{ns: ns, id: id})
	return ok
}

// Release frees the key and wakes waiters.
func (g *Guard) Release() {
	g.once.Do(func() {
		g.registry.held.Delete(g.key)
		close(g.done)
	})
}
