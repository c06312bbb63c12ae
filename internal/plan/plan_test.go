package plan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"elabctl/internal/manifest"
	"elabctl/internal/metadata"
	"elabctl/internal/state"
	"elabctl/internal/types"
)

// fakeClient records API calls and hands out sequential ids.
type fakeClient struct {
	nextID    int
	calls     []string
	bodies    map[string]map[string]any
	patchErr  error
	deleteErr error
}

func newFakeClient() *fakeClient {
	return &fakeClient{nextID: 100, bodies: make(map[string]map[string]any)}
}

func (c *fakeClient) Create(_ context.Context, kind types.EntityKind, categoryID int) (int, error) {
	c.nextID++
	c.calls = append(c.calls, fmt.Sprintf("create %s category=%d -> %d", kind, categoryID, c.nextID))
	return c.nextID, nil
}

func (c *fakeClient) Patch(_ context.Context, kind types.EntityKind, id int, body map[string]any) error {
	if c.patchErr != nil {
		return c.patchErr
	}
	key := fmt.Sprintf("%s/%d", kind, id)
	c.calls = append(c.calls, "patch "+key)
	c.bodies[key] = body
	return nil
}

func (c *fakeClient) Delete(_ context.Context, kind types.EntityKind, id int) error {
	if c.deleteErr != nil {
		return c.deleteErr
	}
	c.calls = append(c.calls, fmt.Sprintf("delete %s/%d", kind, id))
	return nil
}

func (c *fakeClient) CreateTag(_ context.Context, kind types.EntityKind, id int, tag string) error {
	c.calls = append(c.calls, fmt.Sprintf("tag+ %s/%d %s", kind, id, tag))
	return nil
}

func (c *fakeClient) DeleteTag(_ context.Context, kind types.EntityKind, id, tagID int) error {
	c.calls = append(c.calls, fmt.Sprintf("tag- %s/%d %d", kind, id, tagID))
	return nil
}

func mustIndex(t *testing.T, docs string) *manifest.Index {
	t.Helper()
	manifests, err := manifest.ParseReader(strings.NewReader(docs))
	if err != nil {
		t.Fatalf("parse manifests: %v", err)
	}
	index, err := manifest.NewIndex(manifests)
	if err != nil {
		t.Fatalf("index manifests: %v", err)
	}
	return index
}

const applyDocs = `
- kind: items_type
  id: probe
  spec:
    title: Probe
    color: "#29AEB9"
    extra_fields:
      fields:
        - name: temperature
          type: number
          value: "37"
- kind: item
  id: sample_a
  spec:
    title: Sample A
    category: probe
    tags: [managed]
`

func TestEvaluateApply_FreshState(t *testing.T) {
	index := mustIndex(t, applyDocs)
	evaluator := NewEvaluator(index, state.Empty(), "v1", nil)

	plan, err := evaluator.EvaluateApply()
	if err != nil {
		t.Fatalf("EvaluateApply(): %v", err)
	}
	if len(plan.Operations) != 4 {
		t.Fatalf("expected 4 operations, got %d", len(plan.Operations))
	}
	wantActions := []Action{ActionCreate, ActionUpdate, ActionCreate, ActionUpdate}
	probe := types.NameNode{Kind: types.KindItemsType, Name: "probe"}
	sample := types.NameNode{Kind: types.KindItem, Name: "sample_a"}
	wantNodes := []types.NameNode{probe, probe, sample, sample}
	for i, op := range plan.Operations {
		if op.Action != wantActions[i] || op.Node != wantNodes[i] {
			t.Errorf("operation %d = %s of %s, want %s of %s",
				i, op.Action, op.Node, wantActions[i], wantNodes[i])
		}
	}

	client := newFakeClient()
	if err := plan.Execute(context.Background(), client); err != nil {
		t.Fatalf("Execute(): %v", err)
	}

	// The item is created inside the category whose id was learned
	// earlier in the same run.
	var itemCreate string
	for _, call := range client.calls {
		if strings.HasPrefix(call, "create item ") {
			itemCreate = call
		}
	}
	if !strings.Contains(itemCreate, "category=101") {
		t.Errorf("item create call = %q, want category=101", itemCreate)
	}

	// The items type patch carries the control blob and the stripped
	// color; tags never appear in a patch body.
	probeBody := client.bodies["items_type/101"]
	if probeBody == nil {
		t.Fatal("items type was not patched")
	}
	if probeBody["color"] != "29AEB9" {
		t.Errorf("patched color = %v, want 29AEB9", probeBody["color"])
	}
	meta, _ := probeBody["metadata"].(string)
	if !strings.Contains(meta, `"template_name":"probe"`) || !strings.Contains(meta, `"version":"v1"`) {
		t.Errorf("control blob missing from metadata: %s", meta)
	}
	sampleBody := client.bodies["item/102"]
	if sampleBody == nil {
		t.Fatal("item was not patched")
	}
	if _, ok := sampleBody["tags"]; ok {
		t.Error("tags must not be part of a patch body")
	}

	// The item's tags go through the tag subresource.
	found := false
	for _, call := range client.calls {
		if call == "tag+ item/102 managed" {
			found = true
		}
	}
	if !found {
		t.Errorf("missing tag creation, calls: %v", client.calls)
	}
}

func trackedObject(kind types.EntityKind, id int, data map[string]any) state.Object {
	data["id"] = float64(id)
	return state.NewObject(kind, data, metadata.NewParser(nil))
}

func TestEvaluateApply_NoChanges(t *testing.T) {
	index := mustIndex(t, applyDocs)
	snapshot := state.New([]state.Object{
		trackedObject(types.KindItemsType, 1, map[string]any{
			"title": "Probe",
			"color": "29AEB9",
			"metadata": `{
				"extra_fields": {"temperature": {"type": "number", "value": "37", "position": 0}},
				"elabftwcontrol": {"template_name": "probe", "version": "v1"}
			}`,
		}),
		trackedObject(types.KindItem, 2, map[string]any{
			"title":   "Sample A",
			"tags":    "managed",
			"tags_id": "7",
			"metadata": `{
				"elabftwcontrol": {"template_name": "probe", "name": "sample_a", "version": "v1"}
			}`,
		}),
	}, true, nil)

	evaluator := NewEvaluator(index, snapshot, "v1", nil)
	plan, err := evaluator.EvaluateApply()
	if err != nil {
		t.Fatalf("EvaluateApply(): %v", err)
	}
	if !plan.IsEmpty() {
		for _, op := range plan.Operations {
			t.Logf("unexpected %s of %s: %+v", op.Action, op.Node, op.Diff)
		}
		t.Fatalf("expected empty plan, got %d operations", len(plan.Operations))
	}
}

func TestEvaluateApply_DetectsDrift(t *testing.T) {
	index := mustIndex(t, applyDocs)
	snapshot := state.New([]state.Object{
		trackedObject(types.KindItemsType, 1, map[string]any{
			"title": "Old title",
			"color": "29AEB9",
			"metadata": `{
				"extra_fields": {"temperature": {"type": "number", "value": "20", "position": 0}},
				"elabftwcontrol": {"template_name": "probe"}
			}`,
		}),
	}, true, nil)

	evaluator := NewEvaluator(index, snapshot, "", nil)
	plan, err := evaluator.EvaluateApply()
	if err != nil {
		t.Fatalf("EvaluateApply(): %v", err)
	}

	// One update for the drifted type, one create+update pair for the
	// missing item.
	if len(plan.Operations) != 3 {
		t.Fatalf("expected 3 operations, got %d", len(plan.Operations))
	}
	update := plan.Operations[0]
	if update.Action != ActionUpdate {
		t.Fatalf("first operation = %s, want update", update.Action)
	}
	if _, ok := update.Diff.Main.ToChange["title"]; !ok {
		t.Error("title drift not detected")
	}
	inner, ok := update.Diff.Metadata.ToChange["temperature"]
	if !ok {
		t.Fatal("metadata drift not detected")
	}
	if change := inner.ToChange["value"]; change.Old != "20" || change.New != "37" {
		t.Errorf("temperature change = %v", change)
	}
}

func TestEvaluateDestroy(t *testing.T) {
	index := mustIndex(t, applyDocs)
	snapshot := state.New([]state.Object{
		trackedObject(types.KindItemsType, 1, map[string]any{
			"title":    "Probe",
			"metadata": `{"elabftwcontrol": {"template_name": "probe"}}`,
		}),
		trackedObject(types.KindItem, 2, map[string]any{
			"title":    "Sample A",
			"metadata": `{"elabftwcontrol": {"template_name": "probe", "name": "sample_a"}}`,
		}),
	}, true, nil)

	evaluator := NewEvaluator(index, snapshot, "", nil)
	plan, err := evaluator.EvaluateDestroy()
	if err != nil {
		t.Fatalf("EvaluateDestroy(): %v", err)
	}
	if len(plan.Operations) != 2 {
		t.Fatalf("expected 2 deletions, got %d", len(plan.Operations))
	}
	// Deletion order is the reverse of creation order: item first.
	if plan.Operations[0].Node.Kind != types.KindItem {
		t.Errorf("first deletion = %s, want the item", plan.Operations[0].Node)
	}

	client := newFakeClient()
	if err := plan.Execute(context.Background(), client); err != nil {
		t.Fatalf("Execute(): %v", err)
	}
	want := []string{"delete item/2", "delete items_type/1"}
	for i, call := range want {
		if client.calls[i] != call {
			t.Errorf("call %d = %q, want %q", i, client.calls[i], call)
		}
	}
}

func TestEvaluateDestroy_SkipsMissing(t *testing.T) {
	index := mustIndex(t, applyDocs)
	evaluator := NewEvaluator(index, state.Empty(), "", nil)

	plan, err := evaluator.EvaluateDestroy()
	if err != nil {
		t.Fatalf("EvaluateDestroy(): %v", err)
	}
	if !plan.IsEmpty() {
		t.Errorf("expected empty plan for absent objects, got %d operations", len(plan.Operations))
	}
}

func TestExecute_AbortsOnFirstError(t *testing.T) {
	index := mustIndex(t, applyDocs)
	evaluator := NewEvaluator(index, state.Empty(), "", nil)
	plan, err := evaluator.EvaluateApply()
	if err != nil {
		t.Fatalf("EvaluateApply(): %v", err)
	}

	client := newFakeClient()
	client.patchErr = errors.New("boom")
	err = plan.Execute(context.Background(), client)

	var patchErr *PatchingError
	if !errors.As(err, &patchErr) {
		t.Fatalf("error = %v, want *PatchingError", err)
	}
	// The failing update is the second operation; only the items type
	// creation before it ran, and in particular no item was created.
	for _, call := range client.calls {
		if strings.HasPrefix(call, "create item ") {
			t.Errorf("execution continued past the failure: %v", client.calls)
		}
	}
	if len(client.calls) != 1 || !strings.HasPrefix(client.calls[0], "create items_type ") {
		t.Errorf("calls after aborted run = %v, want only the items type creation", client.calls)
	}
}

func TestTagPatch(t *testing.T) {
	patch := NewTagPatch(types.KindExperiment, 9,
		map[string]int{"stale": 4, "kept": 5},
		[]string{"kept", "fresh"},
	)
	if patch.IsEmpty() {
		t.Fatal("patch should not be empty")
	}
	if len(patch.ToAdd) != 1 || patch.ToAdd[0] != "fresh" {
		t.Errorf("ToAdd = %v", patch.ToAdd)
	}
	if len(patch.ToDelete) != 1 || patch.ToDelete["stale"] != 4 {
		t.Errorf("ToDelete = %v", patch.ToDelete)
	}

	same := NewTagPatch(types.KindExperiment, 9, map[string]int{"kept": 5}, []string{"kept"})
	if !same.IsEmpty() {
		t.Errorf("identical tags should produce an empty patch: %+v", same)
	}
}
