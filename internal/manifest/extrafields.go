package manifest

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"elabctl/internal/metadata"
	"elabctl/internal/types"
)

// FieldsConfig carries the display options of the metadata block.
type FieldsConfig struct {
	DisplayMainText *bool `yaml:"display_main_text"`
}

// ExtraFields is the full representation of a manifest's metadata block:
// an ordered list of field specs. Manifests may also write fields nested
// under named groups; those are flattened at decode time so the rest of
// the program only ever sees this form.
type ExtraFields struct {
	Config FieldsConfig
	Fields []FieldSpec
}

func (e *ExtraFields) UnmarshalYAML(node *yaml.Node) error {
	if err := checkKnownKeys(node, []string{"config", "fields"}); err != nil {
		return err
	}
	if cfg := mappingValue(node, "config"); cfg != nil {
		if err := checkKnownKeys(cfg, []string{"display_main_text"}); err != nil {
			return err
		}
		if err := cfg.Decode(&e.Config); err != nil {
			return err
		}
	}
	fields := mappingValue(node, "fields")
	if fields == nil {
		return e.Validate()
	}
	if fields.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: fields must be a list", fields.Line)
	}
	for _, entry := range fields.Content {
		if mappingValue(entry, "group_name") != nil {
			flattened, err := decodeFieldGroup(entry)
			if err != nil {
				return err
			}
			e.Fields = append(e.Fields, flattened...)
			continue
		}
		var field FieldSpec
		if err := entry.Decode(&field); err != nil {
			return err
		}
		e.Fields = append(e.Fields, field)
	}
	return e.Validate()
}

// decodeFieldGroup expands a {group_name, sub_fields} entry into its
// sub-fields with the group name applied. A sub-field naming a different
// group is a hard error.
func decodeFieldGroup(node *yaml.Node) ([]FieldSpec, error) {
	if err := checkKnownKeys(node, []string{"group_name", "sub_fields"}); err != nil {
		return nil, err
	}
	var group struct {
		GroupName string      `yaml:"group_name"`
		SubFields []FieldSpec `yaml:"sub_fields"`
	}
	if err := node.Decode(&group); err != nil {
		return nil, err
	}
	for i := range group.SubFields {
		sub := &group.SubFields[i]
		if sub.Group != "" && sub.Group != group.GroupName {
			return nil, fmt.Errorf(
				"field %q in group %q has an incompatible group name %q",
				sub.Name, group.GroupName, sub.Group,
			)
		}
		sub.Group = group.GroupName
	}
	return group.SubFields, nil
}

// Validate checks every field and rejects duplicated field names.
func (e *ExtraFields) Validate() error {
	seen := make(map[string]struct{}, len(e.Fields))
	for i := range e.Fields {
		if err := e.Fields[i].Validate(); err != nil {
			return err
		}
		name := e.Fields[i].Name
		if _, dup := seen[name]; dup {
			return fmt.Errorf("field name %q is duplicated", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// Field returns the spec with the given name.
func (e *ExtraFields) Field(name string) (*FieldSpec, bool) {
	for i := range e.Fields {
		if e.Fields[i].Name == name {
			return &e.Fields[i], true
		}
	}
	return nil, false
}

// Dependencies returns the entities referenced by link fields, in field
// order, deduplicated.
func (e *ExtraFields) Dependencies() []types.NameNode {
	var out []types.NameNode
	seen := make(map[types.NameNode]struct{})
	for _, field := range e.Fields {
		dep, ok := field.Dependency()
		if !ok {
			continue
		}
		if _, dup := seen[dep]; dup {
			continue
		}
		seen[dep] = struct{}{}
		out = append(out, dep)
	}
	return out
}

// ToModel renders the block to its wire form. Positions follow field
// order and group names become numeric ids in order of first use. The
// control blob, when given, is embedded so the manifest name can be
// recovered from the server later.
func (e *ExtraFields) ToModel(resolve Resolver, strict bool, control *metadata.Control) (metadata.Model, error) {
	model := metadata.Model{
		ExtraFields: make(map[string]metadata.Field, len(e.Fields)),
		Control:     control,
	}
	model.Elabftw.DisplayMainText = cloneBool(e.Config.DisplayMainText)

	groupIDs := make(map[string]int)
	for i, field := range e.Fields {
		var groupID *int
		if field.Group != "" {
			id, ok := groupIDs[field.Group]
			if !ok {
				id = len(groupIDs) + 1
				groupIDs[field.Group] = id
				model.Elabftw.Groups = append(model.Elabftw.Groups, metadata.Group{
					ID:   id,
					Name: field.Group,
				})
			}
			groupID = &id
		}
		position := i
		rendered, err := field.toField(&position, groupID, resolve, strict)
		if err != nil {
			return metadata.Model{}, err
		}
		model.ExtraFields[field.Name] = rendered
	}
	return model, nil
}

// MetadataString renders the block to the JSON string stored in the
// entity's metadata column.
func (e *ExtraFields) MetadataString(resolve Resolver, strict bool, control *metadata.Control) (string, error) {
	model, err := e.ToModel(resolve, strict, control)
	if err != nil {
		return "", err
	}
	return model.MarshalString()
}

// FieldDict renders the block to the nested dictionary the diff engine
// compares. Rendering is lax: unresolvable links diff as placeholders
// rather than failing the plan.
func (e *ExtraFields) FieldDict(resolve Resolver) (map[string]map[string]any, error) {
	model, err := e.ToModel(resolve, false, nil)
	if err != nil {
		return nil, err
	}
	return model.Diffable(), nil
}

// ExtraFieldsFromModel converts server metadata back into a manifest
// block. Fields come out in position order and link ids are replaced by
// manifest names.
func ExtraFieldsFromModel(model metadata.Model, resolveName NameResolver) ExtraFields {
	out := ExtraFields{
		Config: FieldsConfig{DisplayMainText: cloneBool(model.Elabftw.DisplayMainText)},
	}
	for _, name := range model.OrderedFieldNames() {
		field := model.ExtraFields[name]
		group := ""
		if field.GroupID != nil {
			group = model.GroupName(int(*field.GroupID))
		}
		out.Fields = append(out.Fields, fieldSpecFromField(name, group, field, resolveName))
	}
	return out
}

// clone returns a deep copy of the block.
func (e *ExtraFields) clone() ExtraFields {
	out := ExtraFields{
		Config: FieldsConfig{DisplayMainText: cloneBool(e.Config.DisplayMainText)},
		Fields: make([]FieldSpec, len(e.Fields)),
	}
	for i := range e.Fields {
		out.Fields[i] = e.Fields[i].clone()
	}
	return out
}

// SimpleValue is a value override in a simplified manifest: either a
// bare value or a {value, unit} pair.
type SimpleValue struct {
	Value metadata.Value
	Unit  string
}

func (s *SimpleValue) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.MappingNode && mappingValue(node, "value") != nil {
		if err := checkKnownKeys(node, []string{"value", "unit"}); err != nil {
			return err
		}
		var pair struct {
			Value metadata.Value `yaml:"value"`
			Unit  string         `yaml:"unit"`
		}
		if err := node.Decode(&pair); err != nil {
			return err
		}
		s.Value = pair.Value
		s.Unit = pair.Unit
		return nil
	}
	return node.Decode(&s.Value)
}

// SimpleExtraFields is the simplified metadata block: bare value
// overrides that are resolved against the full field definitions of the
// parent entity.
type SimpleExtraFields struct {
	Config      *FieldsConfig          `yaml:"config"`
	FieldValues map[string]SimpleValue `yaml:"field_values"`
}

func (s *SimpleExtraFields) UnmarshalYAML(node *yaml.Node) error {
	if err := checkKnownKeys(node, []string{"config", "field_values"}); err != nil {
		return err
	}
	type plain SimpleExtraFields
	return node.Decode((*plain)(s))
}

// Resolve expands the overrides against the parent's full field
// definitions. Overriding a field the parent does not define is an
// error, as is a value that violates the field's own constraints.
func (s *SimpleExtraFields) Resolve(parent *ExtraFields) (*ExtraFields, error) {
	if parent == nil {
		if len(s.FieldValues) > 0 {
			return nil, fmt.Errorf("parent has no extra fields to fill in")
		}
		return nil, nil
	}
	full := parent.clone()
	if s.Config != nil {
		full.Config = FieldsConfig{DisplayMainText: cloneBool(s.Config.DisplayMainText)}
	}
	for name, override := range s.FieldValues {
		field, ok := full.Field(name)
		if !ok {
			return nil, fmt.Errorf("field %q not present in parent metadata", name)
		}
		field.Value = override.Value
		if override.Unit != "" && field.EffectiveType() == metadata.TypeNumber {
			field.Unit = override.Unit
		}
		if err := field.Validate(); err != nil {
			return nil, err
		}
	}
	return &full, nil
}
