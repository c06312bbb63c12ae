// Package manifest parses the YAML documents that declare the desired
// state: items types, experiments templates, items and experiments,
// addressed by name. It validates field constraints at parse time,
// resolves simplified manifests against their parent's field
// definitions, and indexes everything into a dependency graph that
// yields creation and deletion order.
package manifest

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"elabctl/internal/types"
)

// Manifest is one parsed manifest document: a versioned, named envelope
// around a kind-specific spec.
type Manifest struct {
	Version int
	Name    string
	Kind    types.EntityKind

	// Exactly one of the following is set, matching Kind. Items and
	// experiments may carry the simplified form until the index
	// resolves them against their parent.
	ItemsType  *ItemsTypeSpec
	Template   *TemplateSpec
	Item       *ItemSpec
	Experiment *ExperimentSpec

	itemSimple       *itemSimpleSpec
	experimentSimple *experimentSimpleSpec
}

// Node returns the manifest's identity.
func (m Manifest) Node() types.NameNode {
	return types.NameNode{Kind: m.Kind, Name: m.Name}
}

func (m *Manifest) UnmarshalYAML(node *yaml.Node) error {
	if err := checkKnownKeys(node, []string{"version", "id", "kind", "spec"}); err != nil {
		return err
	}
	var envelope struct {
		Version int       `yaml:"version"`
		ID      string    `yaml:"id"`
		Kind    string    `yaml:"kind"`
		Spec    yaml.Node `yaml:"spec"`
	}
	if err := node.Decode(&envelope); err != nil {
		return err
	}
	if envelope.ID == "" {
		return fmt.Errorf("line %d: manifest without an id", node.Line)
	}
	m.Version = envelope.Version
	if m.Version == 0 {
		m.Version = 1
	}
	m.Name = envelope.ID
	m.Kind = types.EntityKind(envelope.Kind)
	if envelope.Spec.Kind == 0 {
		return fmt.Errorf("manifest %q has no spec", m.Name)
	}

	spec := &envelope.Spec
	var err error
	switch m.Kind {
	case types.KindItemsType:
		m.ItemsType = &ItemsTypeSpec{}
		err = spec.Decode(m.ItemsType)
	case types.KindExperimentsTemplate:
		m.Template = &TemplateSpec{}
		err = spec.Decode(m.Template)
	case types.KindItem:
		if isSimplifiedSpec(spec) {
			m.itemSimple = &itemSimpleSpec{}
			err = spec.Decode(m.itemSimple)
		} else {
			m.Item = &ItemSpec{}
			err = spec.Decode(m.Item)
		}
	case types.KindExperiment:
		if isSimplifiedSpec(spec) {
			m.experimentSimple = &experimentSimpleSpec{}
			err = spec.Decode(m.experimentSimple)
		} else {
			m.Experiment = &ExperimentSpec{}
			err = spec.Decode(m.Experiment)
		}
	default:
		return fmt.Errorf("manifest %q: unknown kind %q", m.Name, envelope.Kind)
	}
	if err != nil {
		return fmt.Errorf("manifest %q: %w", m.Name, err)
	}
	return nil
}

// isSimplifiedSpec detects the simplified metadata form: the spec's
// extra_fields block carries field_values instead of field definitions.
func isSimplifiedSpec(spec *yaml.Node) bool {
	return mappingValue(mappingValue(spec, "extra_fields"), "field_values") != nil
}

// itemSimpleSpec is an item whose metadata only overrides values of the
// fields its items type defines.
type itemSimpleSpec struct {
	Title       string             `yaml:"title"`
	Body        *string            `yaml:"body"`
	Category    string             `yaml:"category"`
	TagList     []string           `yaml:"tags"`
	ExtraFields *SimpleExtraFields `yaml:"extra_fields"`

	bookingFields `yaml:",inline"`
}

func (s *itemSimpleSpec) UnmarshalYAML(node *yaml.Node) error {
	if err := checkKnownKeys(node, itemSpecKeys); err != nil {
		return err
	}
	type plain itemSimpleSpec
	return node.Decode((*plain)(s))
}

func (s *itemSimpleSpec) resolve(parent *ItemsTypeSpec) (*ItemSpec, error) {
	fields, err := s.ExtraFields.Resolve(parent.ExtraFields)
	if err != nil {
		return nil, err
	}
	return &ItemSpec{
		Title:         s.Title,
		Body:          s.Body,
		Category:      s.Category,
		TagList:       s.TagList,
		ExtraFields:   fields,
		bookingFields: s.bookingFields,
	}, nil
}

// experimentSimpleSpec is an experiment whose metadata only overrides
// values of the fields its template defines.
type experimentSimpleSpec struct {
	Title       string             `yaml:"title"`
	Body        *string            `yaml:"body"`
	Template    *string            `yaml:"template"`
	Rating      *int               `yaml:"rating"`
	TagList     []string           `yaml:"tags"`
	ExtraFields *SimpleExtraFields `yaml:"extra_fields"`
}

func (s *experimentSimpleSpec) UnmarshalYAML(node *yaml.Node) error {
	if err := checkKnownKeys(node, []string{"title", "body", "template", "rating", "tags", "extra_fields"}); err != nil {
		return err
	}
	type plain experimentSimpleSpec
	return node.Decode((*plain)(s))
}

func (s *experimentSimpleSpec) resolve(parent *TemplateSpec) (*ExperimentSpec, error) {
	fields, err := s.ExtraFields.Resolve(parent.ExtraFields)
	if err != nil {
		return nil, err
	}
	return &ExperimentSpec{
		Title:       s.Title,
		Body:        s.Body,
		Template:    s.Template,
		Rating:      s.Rating,
		TagList:     s.TagList,
		ExtraFields: fields,
	}, nil
}
