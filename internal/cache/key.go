// Package cache provides deterministic key derivation and TTL-based stores
// for query results. Values are immutable once written; identical
// (id, params, postprocess) always derives the identical key, and any
// postprocess difference — even a single parameter value — derives a
// different key, so pipeline variants never collide.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"dataquery/internal/domain"
)

// keyVersion is bumped whenever the canonicalization scheme changes, so old
// persisted entries can never be misread by a new build.
const keyVersion = "v1"

// Key derives the cache key "<namespace>:v1:<query_id>:<16-hex-hash>". The
// hash covers the sorted params and the ordered, serialized postprocess list.
func Key(namespace, queryID string, params map[string]string, postprocess []domain.TransformStep) string {
	h := sha256.New()

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%s\x1e", k, params[k])
	}

	h.Write([]byte{0})
	for _, step := range postprocess {
		// encoding/json sorts map keys, making the serialization canonical.
		data, err := json.Marshal(step)
		if err != nil {
			// Step params are plain YAML/JSON scalars and containers.
			panic(fmt.Sprintf("marshal postprocess step %q: %v", step.Name, err))
		}
		h.Write(data)
		h.Write([]byte{'\x1e'})
	}

	sum := hex.EncodeToString(h.Sum(nil))
	return fmt.Sprintf("%s:%s:%s:%s", namespace, keyVersion, queryID, sum[:16])
}
