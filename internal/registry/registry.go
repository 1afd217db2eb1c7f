// Package registry maps users to their single live connection.
package registry

import (
	"sync"

	"github.com/omis-2025/strangerwave-sub000/internal/events"
)

// Handle is one live client connection. Send must not block on network I/O.
type Handle interface {
	ID() string
	Send(e events.Event) error
	Close() error
}

type Registry struct {
	mu    sync.RWMutex
	conns map[uint]Handle
}

func New() *Registry {
	return &Registry{conns: make(map[uint]Handle)}
}

// Register binds handle to userID and returns the handle it superseded, if
// any. The caller owns closing the previous handle.
func (r *Registry) Register(userID uint, handle Handle) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.conns[userID]
	r.conns[userID] = handle
	if prev != nil && prev.ID() == handle.ID() {
		return nil
	}
	return prev
}

// Unregister removes the user's handle and returns it.
func (r *Registry) Unregister(userID uint) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := r.conns[userID]
	delete(r.conns, userID)
	return h
}

// UnregisterIf removes the user's handle only when it is still handleID, so
// a superseded connection closing late leaves the new one in place.
func (r *Registry) UnregisterIf(userID uint, handleID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.conns[userID]
	if !ok || h.ID() != handleID {
		return false
	}
	delete(r.conns, userID)
	return true
}

// Send delivers e to the user's connection. It reports false when the user is
// offline or the handle refused the event.
func (r *Registry) Send(userID uint, e events.Event) bool {
	r.mu.RLock()
	h, ok := r.conns[userID]
	r.mu.RUnlock()

	if !ok {
		return false
	}
	return h.Send(e) == nil
}

func (r *Registry) IsOnline(userID uint) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[userID]
	return ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Users returns the ids of every connected user.
func (r *Registry) Users() []uint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]uint, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	return ids
}
