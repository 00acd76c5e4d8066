package collector

import (
	"fmt"
	"sort"

	"github.com/forensiq/collectq/internal/domain/collection"
)

// Registry holds the collectors a worker process runs. It is populated once
// at startup and read-only afterwards, so lookups need no locking.
type Registry struct {
	collectors map[string]Collector
}

// NewRegistry creates a registry from the given collectors. Names must be
// unique; routing is by name.
func NewRegistry(collectors ...Collector) (*Registry, error) {
	reg := &Registry{collectors: make(map[string]Collector, len(collectors))}
	for _, c := range collectors {
		if c.Name() == "" {
			return nil, fmt.Errorf("collector with empty name")
		}
		if _, exists := reg.collectors[c.Name()]; exists {
			return nil, fmt.Errorf("duplicate collector name %q", c.Name())
		}
		reg.collectors[c.Name()] = c
	}
	return reg, nil
}

// Get returns the collector registered under the given name.
func (r *Registry) Get(name string) (Collector, bool) {
	c, ok := r.collectors[name]
	return c, ok
}

// All returns every registered collector, ordered by name.
func (r *Registry) All() []Collector {
	out := make([]Collector, 0, len(r.collectors))
	for _, c := range r.collectors {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Capabilities returns the claim capabilities this registry can service, one
// per collector, ordered by collector name.
func (r *Registry) Capabilities() []collection.Capability {
	caps := make([]collection.Capability, 0, len(r.collectors))
	for _, c := range r.All() {
		caps = append(caps, collection.Capability{
			ObservableType: c.ObservableType(),
			CollectorName:  c.Name(),
		})
	}
	return caps
}
