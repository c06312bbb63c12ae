package plan

import (
	"context"
	"fmt"
	"log"

	"elabctl/internal/diff"
	"elabctl/internal/manifest"
	"elabctl/internal/state"
	"elabctl/internal/types"
)

// Evaluator compares manifests against the snapshot and produces plans.
type Evaluator struct {
	registry *Registry
	index    *manifest.Index
	version  string
	logger   *log.Logger
}

// NewEvaluator builds an evaluator. The version is stamped into the
// control blob of everything the plan creates or updates.
func NewEvaluator(index *manifest.Index, snapshot *state.State, version string, logger *log.Logger) *Evaluator {
	return &Evaluator{
		registry: NewRegistry(index, snapshot),
		index:    index,
		version:  version,
		logger:   logger,
	}
}

// Registry exposes the live name to id mapping, which mutates as the
// plan executes.
func (e *Evaluator) Registry() *Registry {
	return e.registry
}

// EvaluateApply walks the manifests in creation order. A name without a
// live object becomes a create followed by an unconditional update that
// fills in the content; an existing object is updated only when its diff
// is non-empty.
func (e *Evaluator) EvaluateApply() (*Plan, error) {
	order, err := e.index.CreationOrder()
	if err != nil {
		return nil, err
	}
	plan := &Plan{}
	for _, node := range order {
		if !e.registry.ContainsName(node) {
			plan.Operations = append(plan.Operations,
				e.createOperation(node),
				e.updateOperation(node, diff.Diff{}),
			)
			continue
		}
		d, err := e.computeDiff(node)
		if err != nil {
			return nil, err
		}
		if d.IsEmpty() {
			continue
		}
		plan.Operations = append(plan.Operations, e.updateOperation(node, d))
	}
	return plan, nil
}

// EvaluateDestroy walks the manifests in deletion order, the exact
// reverse of creation order. Names without a live object are logged and
// skipped.
func (e *Evaluator) EvaluateDestroy() (*Plan, error) {
	order, err := e.index.DeletionOrder()
	if err != nil {
		return nil, err
	}
	plan := &Plan{}
	for _, node := range order {
		if !e.registry.ContainsName(node) {
			if e.logger != nil {
				e.logger.Printf("Warning: the object %s does not exist. Can not delete.", node)
			}
			continue
		}
		plan.Operations = append(plan.Operations, e.deleteOperation(node))
	}
	return plan, nil
}

// computeDiff renders the spec laxly, without the control blob, and
// compares it key by key against the snapshot. Metadata is compared
// separately, per field, so the preview can show which fields changed
// rather than one opaque JSON string.
func (e *Evaluator) computeDiff(node types.NameNode) (diff.Diff, error) {
	spec, ok := e.registry.Spec(node)
	if !ok {
		return diff.Diff{}, fmt.Errorf("no manifest for %s", node)
	}
	rendered, err := spec.Render(manifest.RenderContext{Resolve: e.registry.Resolver()})
	if err != nil {
		return diff.Diff{}, err
	}
	delete(rendered, "metadata")

	newMeta := map[string]map[string]any{}
	if fields := spec.Fields(); fields != nil {
		newMeta, err = fields.FieldDict(e.registry.Resolver())
		if err != nil {
			return diff.Diff{}, err
		}
	}

	old := map[string]any{}
	oldMeta := map[string]map[string]any{}
	if obj, found := e.registry.StateObject(node); found {
		keys := make([]string, 0, len(rendered))
		for key := range rendered {
			keys = append(keys, key)
		}
		old = obj.Values(keys)
		delete(old, "metadata")
		oldMeta = obj.FieldDict()
	}
	return diff.New(old, rendered, oldMeta, newMeta), nil
}

func (e *Evaluator) createOperation(node types.NameNode) *Operation {
	registry := e.registry
	return &Operation{
		Node:     node,
		Action:   ActionCreate,
		registry: registry,
		run: func(ctx context.Context, client Client) (types.IdNode, error) {
			categoryID := 0
			if node.Kind == types.KindItem {
				parent, ok := registry.ParentID(node)
				if !ok {
					return types.IdNode{}, fmt.Errorf("%s requires an items type id, which was not found", node)
				}
				categoryID = parent.ID
			}
			id, err := client.Create(ctx, node.Kind, categoryID)
			if err != nil {
				return types.IdNode{}, err
			}
			return types.IdNode{Kind: node.Kind, ID: id}, nil
		},
		onSuccess: func(id types.IdNode) {
			registry.Add(node, id)
		},
		wrapErr: func(err error) error {
			return &CreationError{Node: node, Err: err}
		},
	}
}

// updateOperation renders the patch body at execution time, strictly,
// against the live registry: by then every dependency created earlier in
// the plan has a real id.
func (e *Evaluator) updateOperation(node types.NameNode, d diff.Diff) *Operation {
	registry := e.registry
	version := e.version
	return &Operation{
		Node:     node,
		Action:   ActionUpdate,
		Diff:     d,
		registry: registry,
		run: func(ctx context.Context, client Client) (types.IdNode, error) {
			id, ok := registry.ID(node)
			if !ok {
				return types.IdNode{}, fmt.Errorf("%s does not exist", node)
			}
			spec, ok := registry.Spec(node)
			if !ok {
				return types.IdNode{}, fmt.Errorf("no manifest for %s", node)
			}
			body, err := spec.Render(manifest.RenderContext{
				Resolve: registry.Resolver(),
				Strict:  true,
				Control: registry.Control(node, version),
			})
			if err != nil {
				return types.IdNode{}, err
			}
			delete(body, "tags")
			if err := client.Patch(ctx, node.Kind, id.ID, body); err != nil {
				return types.IdNode{}, err
			}
			if node.Kind != types.KindItemsType {
				oldTags := map[string]int{}
				if obj, found := registry.StateObject(node); found {
					oldTags = obj.TagMap()
				}
				tagPatch := NewTagPatch(node.Kind, id.ID, oldTags, spec.Tags())
				if err := tagPatch.Apply(ctx, client); err != nil {
					return types.IdNode{}, err
				}
			}
			return id, nil
		},
		wrapErr: func(err error) error {
			return &PatchingError{Node: node, Err: err}
		},
	}
}

func (e *Evaluator) deleteOperation(node types.NameNode) *Operation {
	registry := e.registry
	return &Operation{
		Node:     node,
		Action:   ActionDelete,
		registry: registry,
		run: func(ctx context.Context, client Client) (types.IdNode, error) {
			id, ok := registry.ID(node)
			if !ok {
				return types.IdNode{}, fmt.Errorf("%s does not exist", node)
			}
			if err := client.Delete(ctx, node.Kind, id.ID); err != nil {
				return types.IdNode{}, err
			}
			return id, nil
		},
		onSuccess: func(id types.IdNode) {
			registry.RemoveByID(id)
		},
		wrapErr: func(err error) error {
			return &DeletionError{Node: node, Err: err}
		},
	}
}
