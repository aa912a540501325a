package observer

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Registry tracks all live observers.
type Registry struct {
	mu        sync.RWMutex
	observers map[uuid.UUID]*Observer
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{observers: make(map[uuid.UUID]*Observer)}
}

// Add registers an observer.
func (r *Registry) Add(o *Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers[o.ID] = o
}

// Remove unregisters an observer.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.observers, id)
}

// Get returns the observer with the given id, or nil.
func (r *Registry) Get(id uuid.UUID) *Observer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.observers[id]
}

// Has reports whether the observer with the given id is registered.
func (r *Registry) Has(id uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.observers[id]
	return ok
}

// GetByName returns the observer with the given name (case-insensitive), or nil.
func (r *Registry) GetByName(name string) *Observer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.observers {
		if strings.EqualFold(o.Name, name) {
			return o
		}
	}
	return nil
}

// Len returns the number of registered observers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.observers)
}

// ForEach calls fn for every observer under a read lock.
func (r *Registry) ForEach(fn func(*Observer)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.observers {
		fn(o)
	}
}

// Broadcast sends a message to all observers.
func (r *Registry) Broadcast(msg string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.observers {
		o.Send(msg)
	}
}
