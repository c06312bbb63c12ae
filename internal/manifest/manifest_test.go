package manifest

import (
	"encoding/json"
	"strings"
	"testing"

	"elabctl/internal/metadata"
	"elabctl/internal/types"
)

func parseOne(t *testing.T, doc string) Manifest {
	t.Helper()
	manifests, err := ParseReader(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(manifests) != 1 {
		t.Fatalf("expected 1 manifest, got %d", len(manifests))
	}
	return manifests[0]
}

func noResolver(types.NameNode) (types.IdNode, bool) {
	return types.IdNode{}, false
}

func TestFieldValidators(t *testing.T) {
	on := true
	tests := []struct {
		name    string
		field   FieldSpec
		wantErr bool
	}{
		{"text default type", FieldSpec{Name: "f"}, false},
		{"unknown type", FieldSpec{Name: "f", Type: "blob"}, true},
		{"checkbox on", FieldSpec{Name: "f", Type: "checkbox", Value: metadata.StringValue("on")}, false},
		{"checkbox junk", FieldSpec{Name: "f", Type: "checkbox", Value: metadata.StringValue("yes")}, true},
		{"radio in options", FieldSpec{Name: "f", Type: "radio", Options: []string{"a", "b"}, Value: metadata.StringValue("a")}, false},
		{"radio outside options", FieldSpec{Name: "f", Type: "radio", Options: []string{"a"}, Value: metadata.StringValue("x")}, true},
		{"radio no options", FieldSpec{Name: "f", Type: "radio", Value: metadata.StringValue("")}, true},
		{"select empty ok", FieldSpec{Name: "f", Type: "select", Options: []string{"a"}}, false},
		{"select list without multi", FieldSpec{Name: "f", Type: "select", Options: []string{"a"}, Value: metadata.ListValue("a")}, true},
		{"multi select subset", FieldSpec{Name: "f", Type: "select", Options: []string{"a", "b"}, AllowMultiValues: &on, Value: metadata.ListValue("a", "b")}, false},
		{"multi select outside options", FieldSpec{Name: "f", Type: "select", Options: []string{"a"}, AllowMultiValues: &on, Value: metadata.ListValue("z")}, true},
		{"number ok", FieldSpec{Name: "f", Type: "number", Value: metadata.StringValue("1.5")}, false},
		{"number junk", FieldSpec{Name: "f", Type: "number", Value: metadata.StringValue("abc")}, true},
		{"unit without units", FieldSpec{Name: "f", Type: "number", Unit: "mg"}, true},
		{"unit outside units", FieldSpec{Name: "f", Type: "number", Unit: "mg", Units: []string{"kg"}}, true},
		{"unit in units", FieldSpec{Name: "f", Type: "number", Unit: "mg", Units: []string{"mg", "kg"}}, false},
		{"email ok", FieldSpec{Name: "f", Type: "email", Value: metadata.StringValue("a@b.org")}, false},
		{"email junk", FieldSpec{Name: "f", Type: "email", Value: metadata.StringValue("nope")}, true},
		{"url ok", FieldSpec{Name: "f", Type: "url", Value: metadata.StringValue("https://example.org/x")}, false},
		{"url junk", FieldSpec{Name: "f", Type: "url", Value: metadata.StringValue("ftp:/x")}, true},
		{"date ok", FieldSpec{Name: "f", Type: "date", Value: metadata.StringValue("2024-03-01")}, false},
		{"date junk", FieldSpec{Name: "f", Type: "date", Value: metadata.StringValue("01/03/2024")}, true},
		{"datetime ok", FieldSpec{Name: "f", Type: "datetime-local", Value: metadata.StringValue("2024-03-01T13:30")}, false},
		{"time ok", FieldSpec{Name: "f", Type: "time", Value: metadata.StringValue("13:30")}, false},
		{"time junk", FieldSpec{Name: "f", Type: "time", Value: metadata.StringValue("25:99")}, true},
		{"items link", FieldSpec{Name: "f", Type: "items", Value: metadata.StringValue("other")}, false},
		{"empty value always ok", FieldSpec{Name: "f", Type: "date"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.field.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheckboxDefault(t *testing.T) {
	f := FieldSpec{Name: "f", Type: "checkbox"}
	if err := f.Validate(); err != nil {
		t.Fatalf("Validate(): %v", err)
	}
	if f.Value.String() != "off" {
		t.Errorf("default checkbox value = %q, want off", f.Value)
	}
}

func TestExtraFields_GroupFlattening(t *testing.T) {
	m := parseOne(t, `
kind: items_type
id: probe
spec:
  title: Probe
  extra_fields:
    fields:
      - group_name: General
        sub_fields:
          - name: owner
            value: alice
      - name: ungrouped
        value: x
`)
	fields := m.ItemsType.ExtraFields.Fields
	if len(fields) != 2 {
		t.Fatalf("expected 2 flattened fields, got %d", len(fields))
	}
	if fields[0].Group != "General" || fields[1].Group != "" {
		t.Errorf("groups = %q, %q", fields[0].Group, fields[1].Group)
	}
}

func TestExtraFields_GroupConflict(t *testing.T) {
	_, err := ParseReader(strings.NewReader(`
kind: items_type
id: probe
spec:
  title: Probe
  extra_fields:
    fields:
      - group_name: General
        sub_fields:
          - name: owner
            group: Other
            value: alice
`))
	if err == nil || !strings.Contains(err.Error(), "incompatible group name") {
		t.Errorf("expected group conflict error, got %v", err)
	}
}

func TestExtraFields_DuplicateName(t *testing.T) {
	_, err := ParseReader(strings.NewReader(`
kind: items_type
id: probe
spec:
  title: Probe
  extra_fields:
    fields:
      - name: owner
      - name: owner
`))
	if err == nil || !strings.Contains(err.Error(), "duplicated") {
		t.Errorf("expected duplicate field error, got %v", err)
	}
}

func TestExtraFields_UnknownKeyRejected(t *testing.T) {
	_, err := ParseReader(strings.NewReader(`
kind: items_type
id: probe
spec:
  title: Probe
  extra_fields:
    fields:
      - name: owner
        opions: [a]
`))
	if err == nil || !strings.Contains(err.Error(), "unknown key") {
		t.Errorf("expected unknown key error, got %v", err)
	}
}

func TestRender_ColorStripped(t *testing.T) {
	m := parseOne(t, `
kind: items_type
id: probe
spec:
  title: Probe
  color: "#29AEB9"
`)
	body, err := m.ItemsType.Render(RenderContext{Resolve: noResolver})
	if err != nil {
		t.Fatalf("Render(): %v", err)
	}
	if body["color"] != "29AEB9" {
		t.Errorf("rendered color = %v, want 29AEB9", body["color"])
	}
	if _, ok := body["metadata"]; ok {
		t.Error("metadata rendered without fields or control blob")
	}
}

func TestRender_LinkResolution(t *testing.T) {
	m := parseOne(t, `
kind: item
id: sample
spec:
  title: Sample
  category: probe
  extra_fields:
    fields:
      - name: source
        type: items
        value: other_sample
`)
	target := types.NameNode{Kind: types.KindItem, Name: "other_sample"}

	resolved := func(n types.NameNode) (types.IdNode, bool) {
		if n == target {
			return types.IdNode{Kind: types.KindItem, ID: 42}, true
		}
		return types.IdNode{}, false
	}
	body, err := m.Item.Render(RenderContext{Resolve: resolved, Strict: true})
	if err != nil {
		t.Fatalf("strict render with resolvable link: %v", err)
	}
	var model struct {
		ExtraFields map[string]struct {
			Value string `json:"value"`
		} `json:"extra_fields"`
	}
	if err := json.Unmarshal([]byte(body["metadata"].(string)), &model); err != nil {
		t.Fatalf("rendered metadata not valid JSON: %v", err)
	}
	if got := model.ExtraFields["source"].Value; got != "42" {
		t.Errorf("link value = %q, want 42", got)
	}

	if _, err := m.Item.Render(RenderContext{Resolve: noResolver, Strict: true}); err == nil {
		t.Error("strict render with unresolvable link should fail")
	}
	body, err = m.Item.Render(RenderContext{Resolve: noResolver})
	if err != nil {
		t.Fatalf("lax render: %v", err)
	}
	if !strings.Contains(body["metadata"].(string), linkPlaceholder) {
		t.Error("lax render should substitute a placeholder")
	}
}

func TestRender_TagsJoined(t *testing.T) {
	m := parseOne(t, `
kind: experiments_template
id: tpl
spec:
  title: Template
  tags: [a, b]
`)
	body, err := m.Template.Render(RenderContext{Resolve: noResolver})
	if err != nil {
		t.Fatalf("Render(): %v", err)
	}
	if body["tags"] != "a|b" {
		t.Errorf("tags = %v, want a|b", body["tags"])
	}
}

const indexDocs = `
- kind: items_type
  id: probe
  spec:
    title: Probe
    extra_fields:
      fields:
        - name: temperature
          type: number
          units: [C, K]
          unit: C
        - name: status
          type: select
          options: [new, used]
- kind: item
  id: sample_a
  spec:
    title: Sample A
    category: probe
    extra_fields:
      field_values:
        temperature: {value: "37", unit: C}
        status: used
- kind: item
  id: sample_b
  spec:
    title: Sample B
    category: probe
    extra_fields:
      fields:
        - name: source
          type: items
          value: sample_a
`

func TestIndex_CreationAndDeletionOrder(t *testing.T) {
	manifests, err := ParseReader(strings.NewReader(indexDocs))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	index, err := NewIndex(manifests)
	if err != nil {
		t.Fatalf("NewIndex(): %v", err)
	}

	order, err := index.CreationOrder()
	if err != nil {
		t.Fatalf("CreationOrder(): %v", err)
	}
	position := make(map[types.NameNode]int)
	for i, node := range order {
		position[node] = i
	}
	probe := types.NameNode{Kind: types.KindItemsType, Name: "probe"}
	sampleA := types.NameNode{Kind: types.KindItem, Name: "sample_a"}
	sampleB := types.NameNode{Kind: types.KindItem, Name: "sample_b"}
	if !(position[probe] < position[sampleA] && position[sampleA] < position[sampleB]) {
		t.Errorf("creation order = %v", order)
	}

	reversed, err := index.DeletionOrder()
	if err != nil {
		t.Fatalf("DeletionOrder(): %v", err)
	}
	for i := range order {
		if reversed[i] != order[len(order)-1-i] {
			t.Fatalf("deletion order is not the reverse of creation order")
		}
	}

	if parent, ok := index.Parent(sampleA); !ok || parent != probe {
		t.Errorf("Parent(sample_a) = %v, %v", parent, ok)
	}
}

func TestIndex_TemplateAndExperiment(t *testing.T) {
	doc := `
- kind: experiments_template
  id: pcr
  spec:
    title: PCR run
    extra_fields:
      fields:
        - name: cycles
          type: number
          value: "30"
- kind: experiment
  id: run_1
  spec:
    title: First run
    template: pcr
    extra_fields:
      field_values:
        cycles: "35"
`
	manifests, err := ParseReader(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if manifests[0].Kind != types.KindExperimentsTemplate || manifests[0].Template == nil {
		t.Fatalf("template manifest not decoded: %+v", manifests[0])
	}
	index, err := NewIndex(manifests)
	if err != nil {
		t.Fatalf("NewIndex(): %v", err)
	}

	template := types.NameNode{Kind: types.KindExperimentsTemplate, Name: "pcr"}
	run := types.NameNode{Kind: types.KindExperiment, Name: "run_1"}
	order, err := index.CreationOrder()
	if err != nil {
		t.Fatalf("CreationOrder(): %v", err)
	}
	if len(order) != 2 || order[0] != template || order[1] != run {
		t.Errorf("creation order = %v, want template before experiment", order)
	}
	if parent, ok := index.Parent(run); !ok || parent != template {
		t.Errorf("Parent(run_1) = %v, %v", parent, ok)
	}
	deps := index.Dependencies(run)
	if len(deps) != 1 || deps[0] != template {
		t.Errorf("Dependencies(run_1) = %v", deps)
	}

	spec, ok := index.Spec(run)
	if !ok {
		t.Fatal("run_1 not indexed")
	}
	cycles, ok := spec.Fields().Field("cycles")
	if !ok || cycles.Value.String() != "35" {
		t.Errorf("cycles override not applied: %+v", cycles)
	}
}

func TestIndex_SimplifiedResolution(t *testing.T) {
	manifests, err := ParseReader(strings.NewReader(indexDocs))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	index, err := NewIndex(manifests)
	if err != nil {
		t.Fatalf("NewIndex(): %v", err)
	}
	spec, ok := index.Spec(types.NameNode{Kind: types.KindItem, Name: "sample_a"})
	if !ok {
		t.Fatal("sample_a not indexed")
	}
	fields := spec.Fields()
	if fields == nil {
		t.Fatal("simplified item lost its fields")
	}
	temperature, ok := fields.Field("temperature")
	if !ok || temperature.Value.String() != "37" || temperature.Unit != "C" {
		t.Errorf("temperature override not applied: %+v", temperature)
	}
	status, _ := fields.Field("status")
	if status.Value.String() != "used" {
		t.Errorf("status override not applied: %+v", status)
	}
}

func TestIndex_SimplifiedUnknownField(t *testing.T) {
	doc := `
- kind: items_type
  id: probe
  spec:
    title: Probe
    extra_fields:
      fields:
        - name: known
- kind: item
  id: sample
  spec:
    title: Sample
    category: probe
    extra_fields:
      field_values:
        unknown: x
`
	manifests, err := ParseReader(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := NewIndex(manifests); err == nil || !strings.Contains(err.Error(), "not present in parent") {
		t.Errorf("expected unknown field error, got %v", err)
	}
}

func TestIndex_MissingDependency(t *testing.T) {
	doc := `
kind: item
id: sample
spec:
  title: Sample
  category: missing_type
`
	manifests, err := ParseReader(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := NewIndex(manifests); err == nil || !strings.Contains(err.Error(), "not declared") {
		t.Errorf("expected missing dependency error, got %v", err)
	}
}

func TestIndex_DuplicateManifest(t *testing.T) {
	doc := `
- kind: items_type
  id: probe
  spec: {title: A}
- kind: items_type
  id: probe
  spec: {title: B}
`
	manifests, err := ParseReader(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := NewIndex(manifests); err == nil || !strings.Contains(err.Error(), "twice") {
		t.Errorf("expected duplicate manifest error, got %v", err)
	}
}

func TestExtraFieldsFromModel_RoundTrip(t *testing.T) {
	original := &ExtraFields{
		Fields: []FieldSpec{
			{Name: "owner", Group: "General", Value: metadata.StringValue("alice")},
			{Name: "temperature", Type: "number", Value: metadata.StringValue("37"), Units: []string{"C"}, Unit: "C"},
		},
	}
	model, err := original.ToModel(noResolver, false, nil)
	if err != nil {
		t.Fatalf("ToModel(): %v", err)
	}
	back := ExtraFieldsFromModel(model, func(id types.IdNode) types.NameNode {
		return types.NameNode{Kind: id.Kind, Name: id.DefaultName()}
	})
	if len(back.Fields) != 2 {
		t.Fatalf("round trip lost fields: %+v", back.Fields)
	}
	if back.Fields[0].Name != "owner" || back.Fields[0].Group != "General" {
		t.Errorf("first field = %+v", back.Fields[0])
	}
	if back.Fields[1].Unit != "C" {
		t.Errorf("unit lost: %+v", back.Fields[1])
	}
}
