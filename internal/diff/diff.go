// Package diff computes field-level differences between the rendered
// form of a manifest and the values currently stored on the server.
//
// Plain entity fields (title, body, color, ...) are compared as one flat
// dictionary. Metadata fields nest one level deeper: first per field
// name, then per field attribute.
package diff

import (
	"fmt"
	"reflect"
	"sort"
)

// Change captures an old and new value for a key present on both sides.
type Change struct {
	Old any
	New any
}

func (c Change) String() string {
	return fmt.Sprintf("%v -> %v", c.Old, c.New)
}

// DictComparison is a three-way classification of the keys of two flat
// dictionaries.
type DictComparison struct {
	ToAdd    map[string]any
	ToChange map[string]Change
	ToDelete []string
}

// CompareDicts classifies keys: only in new → ToAdd, only in old →
// ToDelete, in both with unequal values → ToChange. Equal keys are
// omitted.
func CompareDicts(old, new map[string]any) DictComparison {
	result := DictComparison{
		ToAdd:    make(map[string]any),
		ToChange: make(map[string]Change),
	}
	for key, newValue := range new {
		oldValue, ok := old[key]
		if !ok {
			result.ToAdd[key] = newValue
			continue
		}
		if !reflect.DeepEqual(oldValue, newValue) {
			result.ToChange[key] = Change{Old: oldValue, New: newValue}
		}
	}
	for key := range old {
		if _, ok := new[key]; !ok {
			result.ToDelete = append(result.ToDelete, key)
		}
	}
	sort.Strings(result.ToDelete)
	return result
}

// IsEmpty reports whether the comparison found no differences.
func (c DictComparison) IsEmpty() bool {
	return len(c.ToAdd) == 0 && len(c.ToChange) == 0 && len(c.ToDelete) == 0
}

// MetadataComparison applies the same three-way classification per
// metadata field name, recursing into each shared field's attribute
// dictionary.
type MetadataComparison struct {
	ToAdd    map[string]map[string]any
	ToChange map[string]DictComparison
	ToDelete []string
}

// CompareMetadata compares two field-name → attribute-dict maps.
func CompareMetadata(old, new map[string]map[string]any) MetadataComparison {
	result := MetadataComparison{
		ToAdd:    make(map[string]map[string]any),
		ToChange: make(map[string]DictComparison),
	}
	for name, newField := range new {
		oldField, ok := old[name]
		if !ok {
			result.ToAdd[name] = newField
			continue
		}
		if inner := CompareDicts(oldField, newField); !inner.IsEmpty() {
			result.ToChange[name] = inner
		}
	}
	for name := range old {
		if _, ok := new[name]; !ok {
			result.ToDelete = append(result.ToDelete, name)
		}
	}
	sort.Strings(result.ToDelete)
	return result
}

// IsEmpty reports whether the comparison found no differences.
func (c MetadataComparison) IsEmpty() bool {
	return len(c.ToAdd) == 0 && len(c.ToChange) == 0 && len(c.ToDelete) == 0
}

// Diff pairs the plain-field comparison with the metadata comparison.
// An empty Diff is the signal that an update would be a no-op.
type Diff struct {
	Main     DictComparison
	Metadata MetadataComparison
}

// New computes a Diff between old and new plain fields plus old and new
// metadata field dictionaries.
func New(old, new map[string]any, oldMeta, newMeta map[string]map[string]any) Diff {
	return Diff{
		Main:     CompareDicts(old, new),
		Metadata: CompareMetadata(oldMeta, newMeta),
	}
}

// IsEmpty reports whether both sides of the diff are empty.
func (d Diff) IsEmpty() bool {
	return d.Main.IsEmpty() && d.Metadata.IsEmpty()
}
