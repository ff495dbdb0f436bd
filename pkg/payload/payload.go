// Package payload reads and edits configuration payloads addressed by slash-delimited key paths.
//
// A Payload is the decoded JSON document of a platform config. Values are JSON-shaped:
// nil, bool, float64 (or json.Number), string, []any and map[string]any. Traversal
// switches on that shape at every segment and only descends into mappings.
//
// Reads are lenient: a missing segment yields found=false, never an error. Writes and
// deletes are strict: every segment, including the last, must already exist, so an
// edit can never introduce a key the platform schema does not know about.
package payload

import (
	"strings"

	sdkerrors "github.com/wehubfusion/Daedalus/pkg/errors"
)

// Separator delimits the segments of a path.
const Separator = "/"

// Payload is a decoded configuration document.
type Payload = map[string]any

// Split returns the segments of path.
func Split(path string) []string {
	return strings.Split(path, Separator)
}

// Read returns the value at path and whether it exists.
// A value that exists and is JSON null returns (nil, true).
func Read(p Payload, path string) (any, bool) {
	if p == nil {
		return nil, false
	}
	var current any = p
	for _, key := range Split(path) {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Write replaces the value at path. It never creates keys.
func Write(p Payload, path string, value any) error {
	parent, key, err := resolveParent(p, path, "write")
	if err != nil {
		return err
	}
	if _, ok := parent[key]; !ok {
		return &sdkerrors.PathError{Op: "write", Path: path, Segment: key, Reason: "does not exist"}
	}
	parent[key] = value
	return nil
}

// Delete removes the key at path.
func Delete(p Payload, path string) error {
	parent, key, err := resolveParent(p, path, "delete")
	if err != nil {
		return err
	}
	if _, ok := parent[key]; !ok {
		return &sdkerrors.PathError{Op: "delete", Path: path, Segment: key, Reason: "does not exist"}
	}
	delete(parent, key)
	return nil
}

// resolveParent walks all but the last segment and returns the innermost mapping
// together with the final key.
func resolveParent(p Payload, path, op string) (map[string]any, string, error) {
	if p == nil {
		return nil, "", &sdkerrors.PathError{Op: op, Path: path, Reason: "payload is nil"}
	}
	keys := Split(path)
	current := p
	for _, key := range keys[:len(keys)-1] {
		next, ok := current[key]
		if !ok {
			return nil, "", &sdkerrors.PathError{Op: op, Path: path, Segment: key, Reason: "does not exist"}
		}
		m, ok := next.(map[string]any)
		if !ok {
			return nil, "", &sdkerrors.PathError{Op: op, Path: path, Segment: key, Reason: "is not a mapping"}
		}
		current = m
	}
	return current, keys[len(keys)-1], nil
}

// Clone returns a deep copy of p. Mappings and sequences are copied recursively;
// scalars are shared since they are immutable.
func Clone(p Payload) Payload {
	if p == nil {
		return nil
	}
	return CloneValue(p).(map[string]any)
}

// CloneValue deep-copies a single payload value with the same rules as Clone.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = CloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = CloneValue(val)
		}
		return out
	default:
		return v
	}
}
