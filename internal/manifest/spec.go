package manifest

import (
	"strings"

	"gopkg.in/yaml.v3"

	"elabctl/internal/metadata"
	"elabctl/internal/types"
)

// RenderContext controls how a spec is rendered to a request body.
// Strict rendering fails on unresolvable links and is used for the
// bodies actually sent to the server; lax rendering substitutes a
// placeholder and is used when computing diffs at plan time.
type RenderContext struct {
	Resolve Resolver
	Strict  bool
	Control *metadata.Control
}

// Spec is the per-kind payload of a manifest in its full representation.
type Spec interface {
	// Tags returns the desired tags, or nil for kinds without tags.
	Tags() []string
	// Fields returns the metadata block, or nil.
	Fields() *ExtraFields
	// Dependencies returns every entity this spec references by name.
	Dependencies() []types.NameNode
	// Render produces the request body for creating or patching the
	// entity. Tags are included under "tags"; callers strip them when
	// the endpoint handles tags through a subresource.
	Render(ctx RenderContext) (map[string]any, error)
}

// renderCommon covers the body parts shared by all kinds: title, body
// and the metadata column. Metadata is rendered whenever the spec has
// fields or a control blob must be embedded.
func renderCommon(title string, body *string, fields *ExtraFields, ctx RenderContext) (map[string]any, error) {
	out := map[string]any{"title": title}
	if body != nil {
		out["body"] = *body
	}
	if fields == nil && ctx.Control == nil {
		return out, nil
	}
	block := fields
	if block == nil {
		block = &ExtraFields{}
	}
	rendered, err := block.MetadataString(ctx.Resolve, ctx.Strict, ctx.Control)
	if err != nil {
		return nil, err
	}
	out["metadata"] = rendered
	return out, nil
}

func renderTags(out map[string]any, tags []string) {
	if tags != nil {
		out["tags"] = strings.Join(tags, "|")
	}
}

func fieldDependencies(fields *ExtraFields) []types.NameNode {
	if fields == nil {
		return nil
	}
	return fields.Dependencies()
}

// ItemsTypeSpec describes an item category. The color quirk is handled
// at render time: the server reports colors without the leading '#', so
// the rendered body strips it and the transport layer adds it back on
// the way out.
type ItemsTypeSpec struct {
	Title       string       `yaml:"title"`
	Body        *string      `yaml:"body"`
	Color       *string      `yaml:"color"`
	ExtraFields *ExtraFields `yaml:"extra_fields"`
}

func (s *ItemsTypeSpec) UnmarshalYAML(node *yaml.Node) error {
	if err := checkKnownKeys(node, []string{"title", "body", "color", "extra_fields"}); err != nil {
		return err
	}
	type plain ItemsTypeSpec
	return node.Decode((*plain)(s))
}

func (s *ItemsTypeSpec) Tags() []string       { return nil }
func (s *ItemsTypeSpec) Fields() *ExtraFields { return s.ExtraFields }

func (s *ItemsTypeSpec) Dependencies() []types.NameNode {
	return fieldDependencies(s.ExtraFields)
}

func (s *ItemsTypeSpec) Render(ctx RenderContext) (map[string]any, error) {
	out, err := renderCommon(s.Title, s.Body, s.ExtraFields, ctx)
	if err != nil {
		return nil, err
	}
	if s.Color != nil {
		out["color"] = strings.TrimPrefix(*s.Color, "#")
	}
	return out, nil
}

// TemplateSpec describes an experiments template.
type TemplateSpec struct {
	Title       string       `yaml:"title"`
	Body        *string      `yaml:"body"`
	TagList     []string     `yaml:"tags"`
	ExtraFields *ExtraFields `yaml:"extra_fields"`
}

func (s *TemplateSpec) UnmarshalYAML(node *yaml.Node) error {
	if err := checkKnownKeys(node, []string{"title", "body", "tags", "extra_fields"}); err != nil {
		return err
	}
	type plain TemplateSpec
	return node.Decode((*plain)(s))
}

func (s *TemplateSpec) Tags() []string       { return s.TagList }
func (s *TemplateSpec) Fields() *ExtraFields { return s.ExtraFields }

func (s *TemplateSpec) Dependencies() []types.NameNode {
	return fieldDependencies(s.ExtraFields)
}

func (s *TemplateSpec) Render(ctx RenderContext) (map[string]any, error) {
	out, err := renderCommon(s.Title, s.Body, s.ExtraFields, ctx)
	if err != nil {
		return nil, err
	}
	renderTags(out, s.TagList)
	return out, nil
}

// bookingFields are the reservation options an item can carry.
type bookingFields struct {
	Rating            *int  `yaml:"rating"`
	IsBookable        *bool `yaml:"is_bookable"`
	BookCanOverlap    *bool `yaml:"book_can_overlap"`
	BookIsCancellable *bool `yaml:"book_is_cancellable"`
	BookCancelMinutes *int  `yaml:"book_cancel_minutes"`
	BookMaxMinutes    *int  `yaml:"book_max_minutes"`
	BookMaxSlots      *int  `yaml:"book_max_slots"`
}

var bookingKeys = []string{
	"rating", "is_bookable", "book_can_overlap", "book_is_cancellable",
	"book_cancel_minutes", "book_max_minutes", "book_max_slots",
}

func (b bookingFields) render(out map[string]any) {
	if b.Rating != nil {
		out["rating"] = *b.Rating
	}
	if b.IsBookable != nil {
		out["is_bookable"] = *b.IsBookable
	}
	if b.BookCanOverlap != nil {
		out["book_can_overlap"] = *b.BookCanOverlap
	}
	if b.BookIsCancellable != nil {
		out["book_is_cancellable"] = *b.BookIsCancellable
	}
	if b.BookCancelMinutes != nil {
		out["book_cancel_minutes"] = *b.BookCancelMinutes
	}
	if b.BookMaxMinutes != nil {
		out["book_max_minutes"] = *b.BookMaxMinutes
	}
	if b.BookMaxSlots != nil {
		out["book_max_slots"] = *b.BookMaxSlots
	}
}

// ItemSpec describes an item in full representation. Category names the
// items type the item belongs to and is always a dependency; it is not
// part of the rendered body since the server binds the category at
// creation time.
type ItemSpec struct {
	Title       string       `yaml:"title"`
	Body        *string      `yaml:"body"`
	Category    string       `yaml:"category"`
	TagList     []string     `yaml:"tags"`
	ExtraFields *ExtraFields `yaml:"extra_fields"`

	bookingFields `yaml:",inline"`
}

var itemSpecKeys = append([]string{"title", "body", "category", "tags", "extra_fields"}, bookingKeys...)

func (s *ItemSpec) UnmarshalYAML(node *yaml.Node) error {
	if err := checkKnownKeys(node, itemSpecKeys); err != nil {
		return err
	}
	type plain ItemSpec
	return node.Decode((*plain)(s))
}

func (s *ItemSpec) Tags() []string       { return s.TagList }
func (s *ItemSpec) Fields() *ExtraFields { return s.ExtraFields }

// Parent returns the items type this item belongs to.
func (s *ItemSpec) Parent() types.NameNode {
	return types.NameNode{Kind: types.KindItemsType, Name: s.Category}
}

func (s *ItemSpec) Dependencies() []types.NameNode {
	out := []types.NameNode{s.Parent()}
	for _, dep := range fieldDependencies(s.ExtraFields) {
		if dep != out[0] {
			out = append(out, dep)
		}
	}
	return out
}

func (s *ItemSpec) Render(ctx RenderContext) (map[string]any, error) {
	out, err := renderCommon(s.Title, s.Body, s.ExtraFields, ctx)
	if err != nil {
		return nil, err
	}
	renderTags(out, s.TagList)
	s.bookingFields.render(out)
	return out, nil
}

// ExperimentSpec describes an experiment. The template reference is
// optional; like an item's category it is a dependency but not part of
// the rendered body.
type ExperimentSpec struct {
	Title       string       `yaml:"title"`
	Body        *string      `yaml:"body"`
	Template    *string      `yaml:"template"`
	Rating      *int         `yaml:"rating"`
	TagList     []string     `yaml:"tags"`
	ExtraFields *ExtraFields `yaml:"extra_fields"`
}

func (s *ExperimentSpec) UnmarshalYAML(node *yaml.Node) error {
	if err := checkKnownKeys(node, []string{"title", "body", "template", "rating", "tags", "extra_fields"}); err != nil {
		return err
	}
	type plain ExperimentSpec
	return node.Decode((*plain)(s))
}

func (s *ExperimentSpec) Tags() []string       { return s.TagList }
func (s *ExperimentSpec) Fields() *ExtraFields { return s.ExtraFields }

// Parent returns the experiments template, if one is referenced.
func (s *ExperimentSpec) Parent() (types.NameNode, bool) {
	if s.Template == nil {
		return types.NameNode{}, false
	}
	return types.NameNode{Kind: types.KindExperimentsTemplate, Name: *s.Template}, true
}

func (s *ExperimentSpec) Dependencies() []types.NameNode {
	var out []types.NameNode
	if parent, ok := s.Parent(); ok {
		out = append(out, parent)
	}
	for _, dep := range fieldDependencies(s.ExtraFields) {
		out = append(out, dep)
	}
	return out
}

func (s *ExperimentSpec) Render(ctx RenderContext) (map[string]any, error) {
	out, err := renderCommon(s.Title, s.Body, s.ExtraFields, ctx)
	if err != nil {
		return nil, err
	}
	renderTags(out, s.TagList)
	if s.Rating != nil {
		out["rating"] = *s.Rating
	}
	return out, nil
}
