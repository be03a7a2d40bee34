// Package probe detects optional server capabilities at startup.
//
// A capability is made available by name (its marker) in a Registry. The
// runner asks for the marker it needs and gets either Absent or Present; a
// missing capability is a normal outcome, never an error.
package probe

import (
	"net/http"
	"sync"
)

// Mounter is the part of the web application unit a capability attaches to.
type Mounter interface {
	Mount(pattern string, h http.Handler)
}

// Endpoint is a unit of work registered into a Container.
type Endpoint interface {
	Pattern() string
}

// Container is the handle returned by a capability once attached.
type Container interface {
	AddEndpoint(ep Endpoint) error
	Endpoints() []string
}

// Capability is an optional server feature.
type Capability interface {
	Name() string
	Attach(m Mounter) (Container, error)
}

// Result is the outcome of a probe. The zero value is Absent.
type Result struct {
	capability Capability
}

// Absent returns a Result reporting that the capability is not available.
func Absent() Result { return Result{} }

// Present returns a Result carrying c. A nil c is reported as Absent.
func Present(c Capability) Result { return Result{capability: c} }

// Present reports whether the capability is available.
func (r Result) Present() bool { return r.capability != nil }

// Capability returns the probed capability, or nil when absent.
func (r Result) Capability() Capability { return r.capability }

// Probe reports whether a capability is available in this process.
type Probe interface {
	Probe() Result
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func() Result

func (f ProbeFunc) Probe() Result { return f() }

// Registry maps markers to capabilities.
type Registry struct {
	mu   sync.RWMutex
	caps map[string]Capability
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{caps: make(map[string]Capability)}
}

// Provide makes c available under marker, replacing any earlier value.
// A nil c removes the marker.
func (r *Registry) Provide(marker string, c Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c == nil {
		delete(r.caps, marker)
		return
	}
	r.caps[marker] = c
}

// Lookup returns the capability registered under marker, or Absent.
func (r *Registry) Lookup(marker string) Result {
	if r == nil {
		return Absent()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Present(r.caps[marker])
}

// For returns a Probe bound to marker.
func (r *Registry) For(marker string) Probe {
	return ProbeFunc(func() Result { return r.Lookup(marker) })
}
