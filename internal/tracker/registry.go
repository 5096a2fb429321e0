package tracker

import (
	"fmt"
	"sort"
	"sync"
)

// TrackerFactory creates a new IssueTracker instance.
type TrackerFactory func() IssueTracker

// Registry maps backend names to factories. Backends register into the
// default registry from init().
type Registry struct {
	mu        sync.RWMutex
	factories map[string]TrackerFactory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]TrackerFactory)}
}

var defaultRegistry = NewRegistry()

// Register adds a backend to the default registry.
func Register(name string, factory TrackerFactory) {
	defaultRegistry.Register(name, factory)
}

// NewTracker creates an instance of the named backend from the default registry.
func NewTracker(name string) (IssueTracker, error) {
	return defaultRegistry.NewTracker(name)
}

// Register adds or replaces a backend.
func (r *Registry) Register(name string, factory TrackerFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// NewTracker creates a fresh instance of the named backend. The error for an
// unknown name lists the registered ones.
func (r *Registry) NewTracker(name string) (IssueTracker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		names := make([]string, 0, len(r.factories))
		for n := range r.factories {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("unknown tracker %q (available: %v)", name, names)
	}
	return factory(), nil
}
