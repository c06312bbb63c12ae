package manifest

import (
	"fmt"

	"elabctl/internal/graph"
	"elabctl/internal/types"
)

// Index holds every manifest spec in full representation, keyed by name,
// together with the dependency graph linking them. Simplified item and
// experiment specs are resolved against their parent during construction
// so consumers only ever see full specs.
type Index struct {
	specs   map[types.NameNode]Spec
	parents map[types.NameNode]types.NameNode
	graph   *graph.Graph[types.NameNode]
}

// NewIndex builds an Index from parsed manifests. Every dependency,
// including an item's category and an experiment's template, must be
// declared by another manifest in the same set.
func NewIndex(manifests []Manifest) (*Index, error) {
	byNode := make(map[types.NameNode]Manifest, len(manifests))
	deps := graph.NewRigid[types.NameNode]()

	for _, m := range manifests {
		node := m.Node()
		if !m.Kind.IsValid() {
			return nil, fmt.Errorf("manifest %q: invalid kind %q", m.Name, m.Kind)
		}
		if err := deps.AddNode(node); err != nil {
			return nil, fmt.Errorf("manifest %s is declared twice", node)
		}
		byNode[node] = m
	}

	index := &Index{
		specs:   make(map[types.NameNode]Spec, len(manifests)),
		parents: make(map[types.NameNode]types.NameNode),
		graph:   deps,
	}

	for _, m := range manifests {
		node := m.Node()
		spec, err := index.resolveSpec(m, byNode)
		if err != nil {
			return nil, err
		}
		index.specs[node] = spec
		for _, dep := range spec.Dependencies() {
			if err := deps.AddEdge(node, dep); err != nil {
				return nil, fmt.Errorf("%s depends on %s which is not declared", node, dep)
			}
		}
	}
	return index, nil
}

// resolveSpec produces the full spec for one manifest, expanding
// simplified forms against their parent and recording parent links.
func (x *Index) resolveSpec(m Manifest, byNode map[types.NameNode]Manifest) (Spec, error) {
	node := m.Node()
	switch m.Kind {
	case types.KindItemsType:
		return m.ItemsType, nil

	case types.KindExperimentsTemplate:
		return m.Template, nil

	case types.KindItem:
		category := itemCategory(m)
		parent := types.NameNode{Kind: types.KindItemsType, Name: category}
		parentManifest, ok := byNode[parent]
		if !ok {
			return nil, fmt.Errorf("%s: category %q is not declared as an items type", node, category)
		}
		x.parents[node] = parent
		if m.itemSimple == nil {
			return m.Item, nil
		}
		spec, err := m.itemSimple.resolve(parentManifest.ItemsType)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", node, err)
		}
		return spec, nil

	case types.KindExperiment:
		template := experimentTemplate(m)
		if template == nil {
			if m.experimentSimple != nil {
				return nil, fmt.Errorf("%s: simplified metadata requires a template", node)
			}
			return m.Experiment, nil
		}
		parent := types.NameNode{Kind: types.KindExperimentsTemplate, Name: *template}
		parentManifest, ok := byNode[parent]
		if !ok {
			return nil, fmt.Errorf("%s: template %q is not declared", node, *template)
		}
		x.parents[node] = parent
		if m.experimentSimple == nil {
			return m.Experiment, nil
		}
		spec, err := m.experimentSimple.resolve(parentManifest.Template)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", node, err)
		}
		return spec, nil
	}
	return nil, fmt.Errorf("%s: unsupported kind", node)
}

func itemCategory(m Manifest) string {
	if m.itemSimple != nil {
		return m.itemSimple.Category
	}
	return m.Item.Category
}

func experimentTemplate(m Manifest) *string {
	if m.experimentSimple != nil {
		return m.experimentSimple.Template
	}
	return m.Experiment.Template
}

// Spec returns the full spec for a name.
func (x *Index) Spec(node types.NameNode) (Spec, bool) {
	spec, ok := x.specs[node]
	return spec, ok
}

// Parent returns the parent container of an item or experiment.
func (x *Index) Parent(node types.NameNode) (types.NameNode, bool) {
	parent, ok := x.parents[node]
	return parent, ok
}

// Len returns the number of indexed manifests.
func (x *Index) Len() int {
	return len(x.specs)
}

// Has reports whether a name is declared.
func (x *Index) Has(node types.NameNode) bool {
	return x.graph.HasNode(node)
}

// Dependencies returns the direct dependencies of a name.
func (x *Index) Dependencies(node types.NameNode) []types.NameNode {
	return x.graph.Dependencies(node)
}

// CreationOrder returns every name such that dependencies come before
// their dependents.
func (x *Index) CreationOrder() ([]types.NameNode, error) {
	return x.graph.OrderedNodes()
}

// DeletionOrder is the exact reverse of CreationOrder.
func (x *Index) DeletionOrder() ([]types.NameNode, error) {
	return x.graph.ReverseOrderedNodes()
}
