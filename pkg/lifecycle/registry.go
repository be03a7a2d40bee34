package lifecycle

import (
	"errors"
	"fmt"
	"sync"
)

// Registry errors.
var (
	ErrRegistryFrozen = errors.New("lifecycle: registry is frozen")
	ErrNilListener    = errors.New("lifecycle: nil listener")
)

// NamedListener is a Listener with the name it was registered under.
type NamedListener struct {
	Name     string
	Listener Listener
}

// Registry collects plugin listeners during bootstrap. Once frozen it is
// read-only for the life of the server instance.
type Registry struct {
	mu        sync.RWMutex
	listeners []NamedListener
	names     map[string]struct{}
	frozen    bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]struct{})}
}

// Register adds a listener under a unique name.
func (r *Registry) Register(name string, l Listener) error {
	if l == nil {
		return ErrNilListener
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return ErrRegistryFrozen
	}
	if _, dup := r.names[name]; dup {
		return fmt.Errorf("lifecycle: listener %q already registered", name)
	}
	r.names[name] = struct{}{}
	r.listeners = append(r.listeners, NamedListener{Name: name, Listener: l})
	return nil
}

// Freeze prevents further registration.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Listeners returns the registered listeners in registration order.
func (r *Registry) Listeners() []NamedListener {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]NamedListener(nil), r.listeners...)
}

// Len returns the number of registered listeners.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners)
}
