// Package registry implements the process-wide message descriptor table
// from spec.md §3: the authority that enforces unique descriptor names and
// unique Connection bindings across every registered message type.
package registry

import (
	"fmt"
	"sync"

	"mcl/connection"
	"mcl/message"
	"mcl/mclerr"
)

// Registry tracks registered message descriptors, keyed by name. Connection
// collisions are detected by scanning every registered descriptor.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*message.Descriptor
}

// New returns an empty, independent Registry. Tests should use this rather
// than the shared Default instance to avoid cross-test interference.
func New() *Registry {
	return &Registry{byName: make(map[string]*message.Descriptor)}
}

// Default is the process-wide registry instance (spec.md §3).
var Default = New()

// Register adds desc to the registry. It fails if a descriptor with the
// same name is already registered, or if desc.Connection collides with an
// already-registered descriptor's connection (spec.md §3).
func (r *Registry) Register(desc *message.Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[desc.Name]; exists {
		return mclerr.New(mclerr.ConfigError, "registry.Register",
			fmt.Errorf("message name %q is already registered", desc.Name))
	}
	for _, existing := range r.byName {
		if connectionsCollide(existing.Connection, desc.Connection) {
			return mclerr.New(mclerr.ConfigError, "registry.Register",
				fmt.Errorf("connection for %q collides with %q", desc.Name, existing.Name))
		}
	}
	r.byName[desc.Name] = desc
	return nil
}

// Remove unregisters the descriptor with the given name. It is a no-op if
// no such descriptor is registered.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byName, name)
}

// Lookup returns the descriptor registered under name, if any.
func (r *Registry) Lookup(name string) (*message.Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	desc, ok := r.byName[name]
	return desc, ok
}

// Names returns the currently registered descriptor names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	return names
}

// connectionsCollide reports whether two connections would receive the
// same datagrams: same group and port, and either filter is unset (match
// everything) or the topic sets intersect (spec.md §3, §4.B).
func connectionsCollide(a, b *connection.Connection) bool {
	if a.Group() != b.Group() || a.Port() != b.Port() {
		return false
	}
	aTopics, bTopics := a.Topics(), b.Topics()
	if len(aTopics) == 0 || len(bTopics) == 0 {
		return true
	}
	set := make(map[string]bool, len(aTopics))
	for _, t := range aTopics {
		set[t] = true
	}
	for _, t := range bTopics {
		if set[t] {
			return true
		}
	}
	return false
}
