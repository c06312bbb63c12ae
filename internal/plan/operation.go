package plan

import (
	"context"
	"fmt"

	"elabctl/internal/diff"
	"elabctl/internal/types"
)

// Client is the part of the API surface operations need.
type Client interface {
	Create(ctx context.Context, kind types.EntityKind, categoryID int) (int, error)
	Patch(ctx context.Context, kind types.EntityKind, id int, body map[string]any) error
	Delete(ctx context.Context, kind types.EntityKind, id int) error
	CreateTag(ctx context.Context, kind types.EntityKind, id int, tag string) error
	DeleteTag(ctx context.Context, kind types.EntityKind, id, tagID int) error
}

// Action classifies an operation for previews and summaries.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// CreationError marks a failed create.
type CreationError struct {
	Node types.NameNode
	Err  error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("%s failed to be created: %v", e.Node, e.Err)
}

func (e *CreationError) Unwrap() error { return e.Err }

// PatchingError marks a failed update.
type PatchingError struct {
	Node types.NameNode
	Err  error
}

func (e *PatchingError) Error() string {
	return fmt.Sprintf("%s failed to be patched: %v", e.Node, e.Err)
}

func (e *PatchingError) Unwrap() error { return e.Err }

// DeletionError marks a failed delete.
type DeletionError struct {
	Node types.NameNode
	Err  error
}

func (e *DeletionError) Error() string {
	return fmt.Sprintf("%s failed to be deleted: %v", e.Node, e.Err)
}

func (e *DeletionError) Unwrap() error { return e.Err }

// Operation is one step of a plan. The action runs against the API and
// reports the id it touched; onSuccess feeds that id back into the
// registry so later operations can resolve it.
type Operation struct {
	Node   types.NameNode
	Action Action
	// Diff is set on updates of existing objects, for the preview.
	Diff diff.Diff

	registry  *Registry
	run       func(ctx context.Context, client Client) (types.IdNode, error)
	onSuccess func(types.IdNode)
	wrapErr   func(error) error
}

// Execute runs the operation and the success callback.
func (op *Operation) Execute(ctx context.Context, client Client) error {
	id, err := op.run(ctx, client)
	if err != nil {
		return op.wrapErr(err)
	}
	if op.onSuccess != nil {
		op.onSuccess(id)
	}
	return nil
}

// String renders the preview line of the operation. The id is looked up
// at render time: objects created earlier in the run show their real id,
// pending ones show as unknown.
func (op *Operation) String() string {
	switch op.Action {
	case ActionCreate:
		return fmt.Sprintf("- Creation of new %s", op.Node)
	case ActionUpdate:
		if id, ok := op.registry.ID(op.Node); ok {
			return fmt.Sprintf("- Patching of %s (%d)", op.Node, id.ID)
		}
		return fmt.Sprintf("- Patching of %s (ID unknown)", op.Node)
	default:
		if id, ok := op.registry.ID(op.Node); ok {
			return fmt.Sprintf("- Deletion of %s (%d)", op.Node, id.ID)
		}
		return fmt.Sprintf("- Deletion of %s (ID unknown)", op.Node)
	}
}

// Plan is an ordered list of operations.
type Plan struct {
	Operations []*Operation
}

// IsEmpty reports whether there is no work to do.
func (p *Plan) IsEmpty() bool {
	return len(p.Operations) == 0
}

// Counts tallies the operations per action.
func (p *Plan) Counts() (creates, updates, deletes int) {
	for _, op := range p.Operations {
		switch op.Action {
		case ActionCreate:
			creates++
		case ActionUpdate:
			updates++
		case ActionDelete:
			deletes++
		}
	}
	return
}

// Execute runs the operations strictly in order. The first failure
// aborts the run: later operations may depend on the failed one and the
// registry would resolve them against stale ids.
func (p *Plan) Execute(ctx context.Context, client Client) error {
	for _, op := range p.Operations {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := op.Execute(ctx, client); err != nil {
			return err
		}
	}
	return nil
}
