// Package metadata models the JSON blob eLabFTW stores in each entity's
// metadata column: field definitions with values, display groups, and the
// control blob elabctl injects to recover manifest names from remote
// objects.
//
// Parsing is deliberately lenient. The metadata column is free-form user
// content in the wild, so anything that does not parse is treated as
// empty metadata and logged, never surfaced as an error.
package metadata

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Field type discriminators as they appear on the wire.
const (
	TypeCheckbox    = "checkbox"
	TypeRadio       = "radio"
	TypeSelect      = "select"
	TypeText        = "text"
	TypeNumber      = "number"
	TypeEmail       = "email"
	TypeURL         = "url"
	TypeDate        = "date"
	TypeDatetime    = "datetime-local"
	TypeTime        = "time"
	TypeItems       = "items"
	TypeExperiments = "experiments"
)

// Group is a display category for extra fields.
type Group struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// ElabConfig is the "elabftw" section of the metadata blob.
type ElabConfig struct {
	DisplayMainText *bool   `json:"display_main_text,omitempty"`
	Groups          []Group `json:"extra_fields_groups,omitempty"`
}

// Control is the blob elabctl stashes inside managed entities so their
// manifest names survive a round trip through the server.
type Control struct {
	TemplateName string `json:"template_name,omitempty"`
	Name         string `json:"name,omitempty"`
	Version      string `json:"version,omitempty"`
}

// Field is one extra field as stored on the server. Link-typed fields
// ("items", "experiments") carry a numeric id in Value here; manifests
// carry names and the two are translated during rendering and parsing.
type Field struct {
	Value                 Value    `json:"value"`
	Type                  string   `json:"type,omitempty"`
	Options               []string `json:"options,omitempty"`
	AllowMultiValues      *bool    `json:"allow_multi_values,omitempty"`
	Required              *bool    `json:"required,omitempty"`
	Description           string   `json:"description,omitempty"`
	Units                 []string `json:"units,omitempty"`
	Unit                  string   `json:"unit,omitempty"`
	Position              *FlexInt `json:"position,omitempty"`
	BlankValueOnDuplicate *bool    `json:"blank_value_on_duplicate,omitempty"`
	GroupID               *FlexInt `json:"group_id,omitempty"`
	Readonly              *bool    `json:"readonly,omitempty"`
}

// EffectiveType returns the field type, defaulting to text.
func (f Field) EffectiveType() string {
	if f.Type == "" {
		return TypeText
	}
	return f.Type
}

// ValueAndUnit returns "value unit", or just the value when no unit
// applies, or "" for an empty value.
func (f Field) ValueAndUnit() string {
	if f.Value.IsEmpty() {
		return ""
	}
	if f.Unit == "" {
		return f.Value.String()
	}
	return f.Value.String() + " " + f.Unit
}

// CorrectedUnit returns the unit, or "" when the value itself is empty.
func (f Field) CorrectedUnit() string {
	if f.Value.IsEmpty() {
		return ""
	}
	return f.Unit
}

// LinkID extracts the numeric id from a link-typed field value. The
// server renders links as "123 - some title"; a bare id is also
// accepted. Returns false for anything else.
func (f Field) LinkID() (int, bool) {
	if f.Value.IsList() {
		return 0, false
	}
	head, _, _ := strings.Cut(f.Value.String(), " - ")
	id, err := strconv.Atoi(strings.TrimSpace(head))
	if err != nil {
		return 0, false
	}
	return id, true
}

// Diffable returns the field attributes as a flat dictionary for the
// diff engine. The same normalization is applied to manifests rendered
// to wire form and to fields fetched from the server, so equal content
// produces equal dictionaries.
func (f Field) Diffable() map[string]any {
	out := map[string]any{
		"value": f.Value.Raw(),
		"type":  f.EffectiveType(),
	}
	if f.Options != nil {
		out["options"] = append([]string(nil), f.Options...)
	}
	if f.AllowMultiValues != nil {
		out["allow_multi_values"] = *f.AllowMultiValues
	}
	if f.Required != nil {
		out["required"] = *f.Required
	}
	if f.Description != "" {
		out["description"] = f.Description
	}
	if f.Units != nil {
		out["units"] = append([]string(nil), f.Units...)
	}
	if f.Unit != "" {
		out["unit"] = f.Unit
	}
	if f.Position != nil {
		out["position"] = int(*f.Position)
	}
	if f.GroupID != nil {
		out["group_id"] = int(*f.GroupID)
	}
	if f.Readonly != nil {
		out["readonly"] = *f.Readonly
	}
	return out
}

// Model is the complete parsed metadata blob.
type Model struct {
	Elabftw     ElabConfig       `json:"elabftw,omitempty"`
	ExtraFields map[string]Field `json:"extra_fields,omitempty"`
	Control     *Control         `json:"elabftwcontrol,omitempty"`
}

// IsEmpty reports whether the model carries no information at all.
func (m Model) IsEmpty() bool {
	return len(m.ExtraFields) == 0 &&
		m.Control == nil &&
		m.Elabftw.DisplayMainText == nil &&
		len(m.Elabftw.Groups) == 0
}

// GroupName resolves a group id to its display name, or "" if unknown.
func (m Model) GroupName(id int) string {
	for _, g := range m.Elabftw.Groups {
		if g.ID == id {
			return g.Name
		}
	}
	return ""
}

// OrderedFieldNames returns field names sorted by position. Fields
// without a position sort first; ties break alphabetically so the order
// is stable.
func (m Model) OrderedFieldNames() []string {
	type entry struct {
		position int
		name     string
	}
	entries := make([]entry, 0, len(m.ExtraFields))
	for name, field := range m.ExtraFields {
		position := -1
		if field.Position != nil {
			position = int(*field.Position)
		}
		entries = append(entries, entry{position: position, name: name})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].position != entries[j].position {
			return entries[i].position < entries[j].position
		}
		return entries[i].name < entries[j].name
	})
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.name
	}
	return names
}

// FieldValues returns name → value for every field, in position order as
// far as map semantics allow.
func (m Model) FieldValues() map[string]string {
	out := make(map[string]string, len(m.ExtraFields))
	for name, field := range m.ExtraFields {
		out[name] = field.Value.String()
	}
	return out
}

// FieldUnits returns name → unit, with the unit blanked for empty values.
func (m Model) FieldUnits() map[string]string {
	out := make(map[string]string, len(m.ExtraFields))
	for name, field := range m.ExtraFields {
		out[name] = field.CorrectedUnit()
	}
	return out
}

// FieldValuesAndUnits returns name → "value unit".
func (m Model) FieldValuesAndUnits() map[string]string {
	out := make(map[string]string, len(m.ExtraFields))
	for name, field := range m.ExtraFields {
		out[name] = field.ValueAndUnit()
	}
	return out
}

// Diffable returns the per-field dictionaries the metadata diff engine
// compares.
func (m Model) Diffable() map[string]map[string]any {
	out := make(map[string]map[string]any, len(m.ExtraFields))
	for name, field := range m.ExtraFields {
		out[name] = field.Diffable()
	}
	return out
}

// MarshalString renders the model to the JSON string the API expects in
// the metadata column.
func (m Model) MarshalString() (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
