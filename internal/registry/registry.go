package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"dataquery/internal/domain"
)

// Registry is an immutable, indexed set of loaded query specs. It is sealed
// after Load returns; callers wanting a modified pipeline must Clone a spec
// into an override, never mutate the registry's copy.
type Registry struct {
	specs    map[string]*domain.QuerySpec
	ids      []string
	checksum string
}

func newRegistry() *Registry {
	return &Registry{specs: make(map[string]*domain.QuerySpec)}
}

func (r *Registry) add(spec *domain.QuerySpec) error {
	if _, exists := r.specs[spec.ID]; exists {
		return domain.ErrDuplicateSpec("duplicate query id %q", spec.ID)
	}
	r.specs[spec.ID] = spec.Clone()
	return nil
}

// seal fixes the id order and content checksum. Checksum is independent of
// file walk order: specs are digested sorted by id.
func (r *Registry) seal() {
	r.ids = make([]string, 0, len(r.specs))
	for id := range r.specs {
		r.ids = append(r.ids, id)
	}
	sort.Strings(r.ids)

	h := sha256.New()
	for _, id := range r.ids {
		// JSON marshaling of the spec struct is deterministic: struct field
		// order is fixed and map keys are sorted by encoding/json.
		data, err := json.Marshal(r.specs[id])
		if err != nil {
			// Specs are plain value types; marshal cannot fail in practice.
			panic(fmt.Sprintf("marshal spec %q: %v", id, err))
		}
		h.Write([]byte(id))
		h.Write([]byte{0})
		h.Write(data)
		h.Write([]byte{'\n'})
	}
	r.checksum = hex.EncodeToString(h.Sum(nil))
}

// Get returns the spec for id. The returned value is shared and must not be
// mutated; use Clone/WithParams/WithPostprocess for overrides.
func (r *Registry) Get(id string) (*domain.QuerySpec, error) {
	spec, ok := r.specs[id]
	if !ok {
		return nil, domain.ErrSpecNotFound("query spec %q not found", id)
	}
	return spec, nil
}

// IDs lists loaded query ids in sorted order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.ids...)
}

// Len returns the number of loaded specs.
func (r *Registry) Len() int { return len(r.specs) }

// Checksum returns a stable digest over all loaded specs, used by operators
// to confirm a deployed engine matches an expected spec version.
func (r *Registry) Checksum() string { return r.checksum }
