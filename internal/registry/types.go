// Package registry loads, validates, and indexes declarative query
// specifications from a directory of YAML documents.
package registry

import "dataquery/internal/domain"

// SupportedAPIVersion is the only spec document version this build accepts.
const SupportedAPIVersion = "dataquery/v1"

// KindNameQuery is the expected document kind.
const KindNameQuery = "Query"

// QueryDoc is the on-disk envelope: apiVersion/kind plus the spec fields
// inlined at the top level.
type QueryDoc struct {
	APIVersion string `yaml:"apiVersion"`
	Kind       string `yaml:"kind"`

	Spec domain.QuerySpec `yaml:",inline"`
}
