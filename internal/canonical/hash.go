// Package canonical produces a deterministic fingerprint of a submission so
// idempotency replays can be compared byte-for-byte.
package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Hash returns the hex SHA-256 of v's canonical JSON encoding: map keys are
// sorted and re-encoded so that two structurally-equal values with different
// key orderings still hash identically.
func Hash(v any) (string, error) {
	normalized, err := normalize(v)
	if err != nil {
		return "", err
	}
	encoded, err := json.Marshal(normalized)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}

// normalize round-trips v through JSON so nested maps decode as
// map[string]any, whose keys json.Marshal always emits in sorted order.
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return generic, nil
}

// SortedKeys returns m's keys in sorted order, for deterministic iteration
// outside of JSON re-encoding.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// UnmarshalJSON decodes data into a new value of type T, returning
// json.Unmarshal's error unchanged on failure.
func UnmarshalJSON[T any](data []byte) (*T, error) {
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
