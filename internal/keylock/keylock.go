// Package keylock provides an in-process registry of named locks used
// to serialize test-data synchronization per (host, problem) key.
package keylock

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
)

// Registry holds one lightweight mutex per key. Keys are never removed;
// the set of (host, problem) pairs a judge host touches is small and
// bounded by the problem set.
type Registry struct {
	locks *xsync.MapOf[string, chan struct{}]
}

func New() *Registry {
	return &Registry{locks: xsync.NewMapOf[string, chan struct{}]()}
}

// Acquire blocks until the lock for key is free or ctx is done. On
// success it returns a release func that must be called exactly once;
// callers should defer it so release happens on all paths.
func (r *Registry) Acquire(ctx context.Context, key string) (release func(), err error) {
	ch, _ := r.locks.LoadOrStore(key, make(chan struct{}, 1))
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryAcquire acquires the lock for key only if it is immediately free
func (r *Registry) TryAcquire(key string) (release func(), ok bool) {
	ch, _ := r.locks.LoadOrStore(key, make(chan struct{}, 1))
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, true
	default:
		return nil, false
	}
}
