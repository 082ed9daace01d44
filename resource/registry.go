package resource

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// Registry is the process-wide set of recoverable resources, keyed by
// unique name. The recovery engine enumerates it on every run; resources
// register when they come online and unregister when they are closed.
type Registry struct {
	mu        sync.RWMutex
	resources map[string]Recoverable
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{resources: make(map[string]Recoverable)}
}

// Register adds a resource. Registering a second resource under the same
// unique name is an error: journal records reference resources by name, so
// a duplicate would make recovery ambiguous.
func (r *Registry) Register(res Recoverable) error {
	name := res.UniqueName()
	if name == "" {
		return errors.New("cannot register a resource with an empty unique name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.resources[name]; exists {
		return errors.Errorf("resource with unique name %q is already registered", name)
	}
	r.resources[name] = res
	return nil
}

// Unregister removes the resource with the given unique name, if present.
func (r *Registry) Unregister(uniqueName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.resources, uniqueName)
}

// ByName returns the resource registered under uniqueName, or nil.
func (r *Registry) ByName(uniqueName string) Recoverable {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resources[uniqueName]
}

// All returns a snapshot of the registered resources in stable name order.
func (r *Registry) All() []Recoverable {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.resources))
	for name := range r.resources {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Recoverable, 0, len(names))
	for _, name := range names {
		out = append(out, r.resources[name])
	}
	return out
}
