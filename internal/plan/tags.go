package plan

import (
	"context"
	"sort"

	"elabctl/internal/types"
)

// TagPatch reconciles an entity's tags through the tag subresource,
// since patch bodies cannot carry tags. Deletions need the tag ids the
// server assigned, additions only the names.
type TagPatch struct {
	Kind     types.EntityKind
	ID       int
	ToAdd    []string
	ToDelete map[string]int
}

// NewTagPatch compares the server's tag map with the desired names.
func NewTagPatch(kind types.EntityKind, id int, old map[string]int, desired []string) TagPatch {
	patch := TagPatch{
		Kind:     kind,
		ID:       id,
		ToDelete: make(map[string]int),
	}
	wanted := make(map[string]struct{}, len(desired))
	for _, tag := range desired {
		wanted[tag] = struct{}{}
		if _, exists := old[tag]; !exists {
			patch.ToAdd = append(patch.ToAdd, tag)
		}
	}
	sort.Strings(patch.ToAdd)
	for tag, tagID := range old {
		if _, keep := wanted[tag]; !keep {
			patch.ToDelete[tag] = tagID
		}
	}
	return patch
}

// IsEmpty reports whether the tags already match.
func (p TagPatch) IsEmpty() bool {
	return len(p.ToAdd) == 0 && len(p.ToDelete) == 0
}

// Apply creates the missing tags and detaches the unwanted ones.
func (p TagPatch) Apply(ctx context.Context, client Client) error {
	for _, tag := range p.ToAdd {
		if err := client.CreateTag(ctx, p.Kind, p.ID, tag); err != nil {
			return err
		}
	}
	ids := make([]int, 0, len(p.ToDelete))
	for _, tagID := range p.ToDelete {
		ids = append(ids, tagID)
	}
	sort.Ints(ids)
	for _, tagID := range ids {
		if err := client.DeleteTag(ctx, p.Kind, p.ID, tagID); err != nil {
			return err
		}
	}
	return nil
}
