// Package sanitize strips personally-identifying fields from raw provider
// payloads before they are persisted to the bronze layer.
package sanitize

import (
	"encoding/json"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Identity keys removed from payloads, matched case-insensitively. The
// author object carries the user id and profile URL; the rest show up as
// loose fields on some payload versions.
var piiKeys = map[string]struct{}{
	"author":   {},
	"username": {},
	"profile":  {},
	"steamid":  {},
	"user":     {},
}

func isPIIKey(key string) bool {
	_, ok := piiKeys[strings.ToLower(key)]
	return ok
}

// Document removes identity fields from a raw JSON object: matching keys at
// the top level and one level inside any object-valued field. All other
// fields pass through with their order preserved. This is a structural
// transform, never a text scrub: string fields are untouched even when they
// contain PII-looking substrings. Non-object inputs are returned unchanged.
func Document(raw json.RawMessage) json.RawMessage {
	doc := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(raw, doc); err != nil {
		return raw
	}

	scrubObject(doc, true)

	out, err := json.Marshal(doc)
	if err != nil {
		return raw
	}
	return out
}

// scrubObject removes PII keys from obj. When recurse is set, object-valued
// fields get the same treatment one level down; anything deeper passes
// through unchanged. Values are kept as raw bytes so field order survives
// the round trip at every level.
func scrubObject(obj *orderedmap.OrderedMap[string, json.RawMessage], recurse bool) {
	var remove []string
	for pair := obj.Oldest(); pair != nil; pair = pair.Next() {
		if isPIIKey(pair.Key) {
			remove = append(remove, pair.Key)
			continue
		}
		if !recurse || !isObject(pair.Value) {
			continue
		}

		nested := orderedmap.New[string, json.RawMessage]()
		if err := json.Unmarshal(pair.Value, nested); err != nil {
			continue
		}
		before := nested.Len()
		scrubObject(nested, false)
		if nested.Len() == before {
			// Nothing removed: keep the original bytes untouched.
			continue
		}
		if out, err := json.Marshal(nested); err == nil {
			obj.Set(pair.Key, out)
		}
	}
	for _, key := range remove {
		obj.Delete(key)
	}
}

// isObject reports whether the raw value is a JSON object.
func isObject(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return b == '{'
		}
	}
	return false
}
