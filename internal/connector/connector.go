// Package connector provides pluggable source executors, one per data source
// kind. Connectors turn a spec's parameters into raw rows plus provenance;
// they normalize shape only and never apply business logic.
package connector

import (
	"dataquery/internal/domain"
)

// Registry maps source kinds to their connectors.
type Registry struct {
	byKind map[domain.SourceKind]domain.Connector
}

// NewRegistry creates a connector registry from the given connectors.
func NewRegistry(connectors ...domain.Connector) *Registry {
	r := &Registry{byKind: make(map[domain.SourceKind]domain.Connector, len(connectors))}
	for _, c := range connectors {
		r.byKind[c.Kind()] = c
	}
	return r
}

// For returns the connector for the given source kind.
func (r *Registry) For(kind domain.SourceKind) (domain.Connector, error) {
	c, ok := r.byKind[kind]
	if !ok {
		return nil, domain.ErrConnector(string(kind), nil, "no connector registered")
	}
	return c, nil
}
