// Package derive builds new configuration payloads from a base payload.
//
// A derivation never touches its input: the base is deep-copied and edits are applied
// to the copy in order. The first failing edit aborts the derivation and the partially
// edited copy is dropped, so callers see either a fully derived payload or an error.
package derive

import (
	"fmt"

	sdkerrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/payload"
)

// PathEdit replaces the value at Path, or removes the key when Delete is set.
type PathEdit struct {
	Path   string
	Value  any
	Delete bool
}

// Set returns an edit that replaces the value at path.
func Set(path string, value any) PathEdit {
	return PathEdit{Path: path, Value: value}
}

// Remove returns an edit that deletes the key at path.
func Remove(path string) PathEdit {
	return PathEdit{Path: path, Delete: true}
}

func (e PathEdit) String() string {
	if e.Delete {
		return fmt.Sprintf("delete %s", e.Path)
	}
	return fmt.Sprintf("set %s = %v", e.Path, e.Value)
}

// Derive returns a copy of base with edits applied in order. Edit values are deep-copied,
// so the result shares no mappings or sequences with base or edits.
func Derive(base payload.Payload, edits []PathEdit) (payload.Payload, error) {
	if base == nil {
		return nil, sdkerrors.NewInvalidArgumentError("base configuration data is nil", "NIL_BASE_CONFIG")
	}

	derived := payload.Clone(base)
	for _, edit := range edits {
		var err error
		if edit.Delete {
			err = payload.Delete(derived, edit.Path)
		} else {
			err = payload.Write(derived, edit.Path, payload.CloneValue(edit.Value))
		}
		if err != nil {
			return nil, fmt.Errorf("failed to apply edit '%s' to base configuration data: %w", edit, err)
		}
	}

	return derived, nil
}

// DeriveByCopying returns a copy of base where each path takes its value from source.
// Every path must exist in both payloads. A value that is JSON null in source is copied as null.
func DeriveByCopying(base, source payload.Payload, paths []string) (payload.Payload, error) {
	if base == nil || source == nil {
		return nil, sdkerrors.NewInvalidArgumentError("base configuration data or copied configuration data is nil", "NIL_CONFIG")
	}
	if paths == nil {
		return nil, sdkerrors.NewInvalidArgumentError("paths to be copied is nil", "NIL_PATHS")
	}

	edits := make([]PathEdit, 0, len(paths))
	for _, path := range paths {
		if _, found := payload.Read(base, path); !found {
			return nil, &sdkerrors.PathError{Op: "copy", Path: path, Reason: "not found in base configuration data"}
		}
		value, found := payload.Read(source, path)
		if !found {
			return nil, &sdkerrors.PathError{Op: "copy", Path: path, Reason: "not found in copied configuration data"}
		}
		edits = append(edits, Set(path, value))
	}

	return Derive(base, edits)
}
