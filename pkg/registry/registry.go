// Package registry maps stable string keys to agent responders. Workflow
// nodes reference responders by key; the executor only ever calls
// through the ports.Responder interface, so the node graph is checked
// against the registry at setup time.
package registry

import (
	"sync"

	"github.com/aretw0/parley/pkg/ports"
)

// Registry manages the available responders.
type Registry struct {
	mu         sync.RWMutex
	responders map[string]ports.Responder
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		responders: make(map[string]ports.Responder),
	}
}

// Register adds a responder under a key.
// If a responder with the same key exists, it is overwritten.
func (r *Registry) Register(key string, responder ports.Responder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responders[key] = responder
}

// RegisterFunc adds a plain function as a responder.
func (r *Registry) RegisterFunc(key string, fn ports.ResponderFunc) {
	r.Register(key, fn)
}

// Get looks up a responder by key.
func (r *Registry) Get(key string) (ports.Responder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	responder, ok := r.responders[key]
	return responder, ok
}

// Has reports whether a key is registered.
func (r *Registry) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}
