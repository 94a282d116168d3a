package gateway

import (
	"fmt"
	"sort"
	"sync"
)

// Rail describes a settlement network the simulator can route to.
type Rail struct {
	Name      string `json:"name" yaml:"name"`
	Processor string `json:"processor" yaml:"processor"`
	Mode      string `json:"mode" yaml:"mode"`
}

// DefaultRails are the rails offered when configuration names none.
var DefaultRails = []Rail{
	{Name: "Aani", Processor: "Aani-mock", Mode: "test"},
	{Name: "UAEFTS/RTGS", Processor: "UAEFTS-mock", Mode: "test"},
}

// UnknownRailError reports a settlement request for an unregistered rail.
type UnknownRailError struct {
	Rail string
}

func (e *UnknownRailError) Error() string {
	return fmt.Sprintf("no settlement rail registered as %q", e.Rail)
}

// Registry maps rail names to their descriptions.
// It is safe for concurrent reads; Register should only be called at startup.
type Registry struct {
	mu    sync.RWMutex
	rails map[string]Rail
}

// NewRegistry creates a Registry holding rails.
func NewRegistry(rails ...Rail) *Registry {
	r := &Registry{rails: make(map[string]Rail)}
	for _, rail := range rails {
		r.Register(rail)
	}
	return r
}

// Register adds a rail. Panics on duplicate name to surface misconfiguration early.
func (r *Registry) Register(rail Rail) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rails[rail.Name]; exists {
		panic(fmt.Sprintf("rail registry: duplicate rail %q", rail.Name))
	}
	r.rails[rail.Name] = rail
}

// Get returns the rail registered under name.
func (r *Registry) Get(name string) (Rail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rail, ok := r.rails[name]
	if !ok {
		return Rail{}, &UnknownRailError{Rail: name}
	}
	return rail, nil
}

// Rails returns all registered rails sorted by name.
func (r *Registry) Rails() []Rail {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Rail, 0, len(r.rails))
	for _, rail := range r.rails {
		out = append(out, rail)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
