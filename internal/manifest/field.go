package manifest

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"elabctl/internal/metadata"
	"elabctl/internal/types"
)

// Resolver translates a manifest name to the id of the live object it
// refers to. The boolean reports whether the name is known.
type Resolver func(types.NameNode) (types.IdNode, bool)

// NameResolver translates a live object id back to a manifest name.
type NameResolver func(types.IdNode) types.NameNode

// linkPlaceholder is rendered in place of a link whose target has no id
// yet. Only lax rendering produces it; patch bodies are rendered strictly.
const linkPlaceholder = "Unknown"

// FieldSpec is one extra field as declared in a manifest. The Type
// discriminator selects which attributes are meaningful and how the
// value is validated. Link fields ("items", "experiments") hold the
// manifest name of their target; ids are substituted at render time.
type FieldSpec struct {
	Name             string         `yaml:"name"`
	Type             string         `yaml:"type"`
	Group            string         `yaml:"group"`
	Description      string         `yaml:"description"`
	Required         *bool          `yaml:"required"`
	Readonly         *bool          `yaml:"readonly"`
	Value            metadata.Value `yaml:"value"`
	Options          []string       `yaml:"options"`
	AllowMultiValues *bool          `yaml:"allow_multi_values"`
	Units            []string       `yaml:"units"`
	Unit             string         `yaml:"unit"`
}

var fieldSpecKeys = []string{
	"name", "type", "group", "description", "required", "readonly",
	"value", "options", "allow_multi_values", "units", "unit",
}

func (f *FieldSpec) UnmarshalYAML(node *yaml.Node) error {
	if err := checkKnownKeys(node, fieldSpecKeys); err != nil {
		return err
	}
	type plain FieldSpec
	return node.Decode((*plain)(f))
}

// EffectiveType returns the declared type, defaulting to text.
func (f FieldSpec) EffectiveType() string {
	if f.Type == "" {
		return metadata.TypeText
	}
	return f.Type
}

// IsLink reports whether the field references another entity by name.
func (f FieldSpec) IsLink() bool {
	t := f.EffectiveType()
	return t == metadata.TypeItems || t == metadata.TypeExperiments
}

// Dependency returns the entity this field links to, if any.
func (f FieldSpec) Dependency() (types.NameNode, bool) {
	if !f.IsLink() || f.Value.IsEmpty() {
		return types.NameNode{}, false
	}
	kind := types.KindItem
	if f.EffectiveType() == metadata.TypeExperiments {
		kind = types.KindExperiment
	}
	return types.NameNode{Kind: kind, Name: f.Value.String()}, true
}

// Validate checks the value against the constraints of the field type.
// Unknown types are rejected; the per-type rules live in fieldValidators.
func (f *FieldSpec) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("field without a name")
	}
	validate, ok := fieldValidators[f.EffectiveType()]
	if !ok {
		return fmt.Errorf("field %q: unknown type %q", f.Name, f.Type)
	}
	if err := validate(f); err != nil {
		return fmt.Errorf("field %q: %w", f.Name, err)
	}
	return nil
}

// fieldValidators maps every wire field type to its validation rule.
// Each rule may also normalize defaults, such as the checkbox off state.
var fieldValidators = map[string]func(*FieldSpec) error{
	metadata.TypeText: func(f *FieldSpec) error {
		return requireSingle(f)
	},
	metadata.TypeCheckbox: func(f *FieldSpec) error {
		if err := requireSingle(f); err != nil {
			return err
		}
		switch f.Value.String() {
		case "":
			f.Value = metadata.StringValue("off")
		case "on", "off":
		default:
			return fmt.Errorf("checkbox value must be \"on\" or \"off\", got %q", f.Value)
		}
		return nil
	},
	metadata.TypeRadio: func(f *FieldSpec) error {
		if err := requireSingle(f); err != nil {
			return err
		}
		if f.Options == nil {
			return fmt.Errorf("radio field needs options")
		}
		if v := f.Value.String(); v != "" && !contains(f.Options, v) {
			return fmt.Errorf("value %q is not one of the options %v", v, f.Options)
		}
		return nil
	},
	metadata.TypeSelect: func(f *FieldSpec) error {
		if f.Options == nil {
			return fmt.Errorf("select field needs options")
		}
		multi := f.AllowMultiValues != nil && *f.AllowMultiValues
		if multi {
			if !f.Value.IsList() {
				if !f.Value.IsEmpty() {
					return fmt.Errorf("multi-select value must be a list")
				}
				f.Value = metadata.ListValue()
			}
			for _, v := range f.Value.List() {
				if !contains(f.Options, v) {
					return fmt.Errorf("value %q is not one of the options %v", v, f.Options)
				}
			}
			return nil
		}
		if f.Value.IsList() {
			return fmt.Errorf("multiple values given but allow_multi_values is not set")
		}
		if v := f.Value.String(); v != "" && !contains(f.Options, v) {
			return fmt.Errorf("value %q is not one of the options %v", v, f.Options)
		}
		return nil
	},
	metadata.TypeNumber: func(f *FieldSpec) error {
		if err := requireSingle(f); err != nil {
			return err
		}
		if v := f.Value.String(); v != "" {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				return fmt.Errorf("value %q is not a number", v)
			}
		}
		if f.Unit != "" {
			if f.Units == nil {
				return fmt.Errorf("unit %q given but no units defined", f.Unit)
			}
			if !contains(f.Units, f.Unit) {
				return fmt.Errorf("unit %q is not one of the units %v", f.Unit, f.Units)
			}
		}
		return nil
	},
	metadata.TypeEmail: func(f *FieldSpec) error {
		if err := requireSingle(f); err != nil {
			return err
		}
		if v := f.Value.String(); v != "" && !emailPattern.MatchString(v) {
			return fmt.Errorf("value %q is not a valid email", v)
		}
		return nil
	},
	metadata.TypeURL: func(f *FieldSpec) error {
		if err := requireSingle(f); err != nil {
			return err
		}
		if v := f.Value.String(); v != "" && !urlPattern.MatchString(v) {
			return fmt.Errorf("value %q is not a valid url", v)
		}
		return nil
	},
	metadata.TypeDate:     timeValidator("2006-01-02", "a date in the format YYYY-MM-DD"),
	metadata.TypeDatetime: timeValidator("2006-01-02T15:04", "a datetime in the format YYYY-MM-DDTHH:MM"),
	metadata.TypeTime:     timeValidator("15:04", "a time in the format HH:MM"),
	metadata.TypeItems: func(f *FieldSpec) error {
		return requireSingle(f)
	},
	metadata.TypeExperiments: func(f *FieldSpec) error {
		return requireSingle(f)
	},
}

var (
	emailPattern = regexp.MustCompile(`^[^@]+@[^@]+\.[^@]+$`)
	urlPattern   = regexp.MustCompile(`^https?://[-a-zA-Z0-9@:%._~#=]{1,256}\.[a-zA-Z0-9()]{1,6}\b[-a-zA-Z0-9()@:%_+.~#?&/=]*$`)
)

func timeValidator(layout, description string) func(*FieldSpec) error {
	return func(f *FieldSpec) error {
		if err := requireSingle(f); err != nil {
			return err
		}
		if v := f.Value.String(); v != "" {
			if _, err := time.Parse(layout, v); err != nil {
				return fmt.Errorf("value %q is not %s", v, description)
			}
		}
		return nil
	}
}

func requireSingle(f *FieldSpec) error {
	if f.Value.IsList() {
		return fmt.Errorf("value must be a single string")
	}
	return nil
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// toField renders the spec to its wire form. Link names are swapped for
// ids through resolve; in strict mode an unresolvable link is an error,
// otherwise a placeholder is rendered.
func (f FieldSpec) toField(position, groupID *int, resolve Resolver, strict bool) (metadata.Field, error) {
	out := metadata.Field{
		Value:            f.Value,
		Type:             f.EffectiveType(),
		Options:          cloneStrings(f.Options),
		AllowMultiValues: cloneBool(f.AllowMultiValues),
		Required:         cloneBool(f.Required),
		Readonly:         cloneBool(f.Readonly),
		Description:      f.Description,
		Units:            cloneStrings(f.Units),
		Unit:             f.Unit,
	}
	if position != nil {
		out.Position = metadata.FlexIntPtr(*position)
	}
	if groupID != nil {
		out.GroupID = metadata.FlexIntPtr(*groupID)
	}
	if dep, ok := f.Dependency(); ok {
		id, found := resolve(dep)
		if !found {
			if strict {
				return metadata.Field{}, fmt.Errorf("field %q: could not resolve link to %s", f.Name, dep)
			}
			out.Value = metadata.StringValue(linkPlaceholder)
		} else {
			out.Value = metadata.StringValue(strconv.Itoa(id.ID))
		}
	}
	return out, nil
}

// fieldSpecFromField converts a wire field back to a manifest spec.
// Link ids are swapped for manifest names through resolveName.
func fieldSpecFromField(name, group string, f metadata.Field, resolveName NameResolver) FieldSpec {
	out := FieldSpec{
		Name:             name,
		Type:             f.EffectiveType(),
		Group:            group,
		Description:      f.Description,
		Required:         cloneBool(f.Required),
		Readonly:         cloneBool(f.Readonly),
		Value:            f.Value,
		Options:          cloneStrings(f.Options),
		AllowMultiValues: cloneBool(f.AllowMultiValues),
		Units:            cloneStrings(f.Units),
		Unit:             f.Unit,
	}
	if out.IsLink() && !f.Value.IsEmpty() {
		if id, ok := f.LinkID(); ok {
			kind := types.KindItem
			if out.EffectiveType() == metadata.TypeExperiments {
				kind = types.KindExperiment
			}
			out.Value = metadata.StringValue(resolveName(types.IdNode{Kind: kind, ID: id}).Name)
		}
	}
	return out
}

// clone returns a deep copy so simplified manifests can overwrite values
// without mutating the parent's field definitions.
func (f FieldSpec) clone() FieldSpec {
	out := f
	out.Options = cloneStrings(f.Options)
	out.Units = cloneStrings(f.Units)
	out.Required = cloneBool(f.Required)
	out.Readonly = cloneBool(f.Readonly)
	out.AllowMultiValues = cloneBool(f.AllowMultiValues)
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

func cloneBool(in *bool) *bool {
	if in == nil {
		return nil
	}
	v := *in
	return &v
}
