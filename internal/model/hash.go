package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// ComputeContentHash returns a deterministic hex-encoded SHA-256 digest of
// content, satisfying invariant 1: equal content (by JSON value, independent
// of key order or insignificant whitespace) always hashes equal. content
// must be valid JSON; grounded on the teacher's content_hash column
// handling in its local store layer.
func ComputeContentHash(content []byte) (string, error) {
	canonical, err := canonicalizeJSON(content)
	if err != nil {
		return "", fmt.Errorf("canonicalize content: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalizeJSON decodes arbitrary JSON and re-encodes it with object
// keys sorted at every nesting level, so structurally equal values produce
// byte-identical output regardless of source key order.
func canonicalizeJSON(raw []byte) ([]byte, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return json.Marshal(canonicalizeValue(v))
}

func canonicalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ordered := make(orderedMap, 0, len(keys))
		for _, k := range keys {
			ordered = append(ordered, orderedEntry{k, canonicalizeValue(val[k])})
		}
		return ordered
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = canonicalizeValue(e)
		}
		return out
	default:
		return val
	}
}

// orderedMap marshals as a JSON object with keys emitted in slice order,
// since encoding/json always sorts map[string]interface{} keys itself but
// we want canonicalization to be explicit and independent of that detail.
type orderedEntry struct {
	key   string
	value interface{}
}
type orderedMap []orderedEntry

func (m orderedMap) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, 64)
	buf = append(buf, '{')
	for i, e := range m {
		if i > 0 {
			buf = append(buf, ',')
		}
		keyJSON, err := json.Marshal(e.key)
		if err != nil {
			return nil, err
		}
		buf = append(buf, keyJSON...)
		buf = append(buf, ':')
		valJSON, err := json.Marshal(e.value)
		if err != nil {
			return nil, err
		}
		buf = append(buf, valJSON...)
	}
	buf = append(buf, '}')
	return buf, nil
}
