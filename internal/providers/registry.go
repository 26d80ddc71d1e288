package providers

import (
	"fmt"
	"sync"
)

// ConnectionParams holds everything needed to construct a client for one server.
type ConnectionParams struct {
	ServerName string // display name used in logs and errors
	URL        string
	Token      string
}

// Constructor builds a concrete client from connection parameters.
type Constructor func(params ConnectionParams) (Client, error)

// Registry maps a provider-type tag to its constructor and static capability
// set. CreateClient is the only place in the system that instantiates a
// concrete client; all other code depends solely on [Client].
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registryEntry
}

type registryEntry struct {
	ctor Constructor
	caps CapabilitySet
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registryEntry)}
}

// Register adds a provider type with its constructor and static capabilities.
// Registering the same type twice panics, mirroring database/sql drivers.
func (r *Registry) Register(providerType string, ctor Constructor, caps CapabilitySet) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.entries[providerType]; dup {
		panic(fmt.Sprintf("providers: Register called twice for type %q", providerType))
	}
	r.entries[providerType] = registryEntry{ctor: ctor, caps: caps}
}

// CreateClient instantiates a client for the given provider type.
func (r *Registry) CreateClient(providerType string, params ConnectionParams) (Client, error) {
	r.mu.RLock()
	entry, ok := r.entries[providerType]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown provider type: %s", providerType)
	}
	return entry.ctor(params)
}

// StaticCapabilities answers a provider type's declared capability set without
// opening a connection, so invitations can be pre-validated cheaply.
func (r *Registry) StaticCapabilities(providerType string) (CapabilitySet, error) {
	r.mu.RLock()
	entry, ok := r.entries[providerType]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown provider type: %s", providerType)
	}
	return entry.caps, nil
}

// Types returns the registered provider type tags.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.entries))
	for t := range r.entries {
		types = append(types, t)
	}
	return types
}

// Default is the process-wide registry concrete clients register with in init.
var Default = NewRegistry()

// Register adds a provider type to the default registry.
func Register(providerType string, ctor Constructor, caps CapabilitySet) {
	Default.Register(providerType, ctor, caps)
}

// CreateClient instantiates a client from the default registry.
func CreateClient(providerType string, params ConnectionParams) (Client, error) {
	return Default.CreateClient(providerType, params)
}

// StaticCapabilities reads a type's capability set from the default registry.
func StaticCapabilities(providerType string) (CapabilitySet, error) {
	return Default.StaticCapabilities(providerType)
}
