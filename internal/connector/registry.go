package connector

import "sort"

// Registry holds the configured connectors for the pipeline and the API
type Registry struct {
	primary  Connector
	fallback Connector
	byID     map[string]Connector
}

// NewRegistry creates a registry. fallback may be nil when disabled.
func NewRegistry(primary Connector, fallback Connector) *Registry {
	r := &Registry{
		primary:  primary,
		fallback: fallback,
		byID:     make(map[string]Connector),
	}
	if primary != nil {
		r.byID[primary.ID()] = primary
	}
	if fallback != nil {
		r.byID[fallback.ID()] = fallback
	}
	return r
}

// Primary returns the primary connector
func (r *Registry) Primary() Connector {
	return r.primary
}

// Fallback returns the fallback connector or nil
func (r *Registry) Fallback() Connector {
	return r.fallback
}

// Get looks up a connector by source ID
func (r *Registry) Get(id string) (Connector, bool) {
	c, ok := r.byID[id]
	return c, ok
}

// Stats returns statistics for every connector, sorted by source
func (r *Registry) Stats() []StatsSnapshot {
	var out []StatsSnapshot
	for id, c := range r.byID {
		if rep, ok := c.(StatsReporter); ok {
			out = append(out, rep.Stats())
		} else {
			out = append(out, StatsSnapshot{Source: id, Available: true})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}
