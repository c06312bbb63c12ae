package main

import (
	"testing"

	"elabctl/internal/metadata"
	"elabctl/internal/state"
	"elabctl/internal/types"
)

func TestKindFromArg(t *testing.T) {
	cases := map[string]types.EntityKind{
		"item":                  types.KindItem,
		"items":                 types.KindItem,
		"experiment":            types.KindExperiment,
		"items_types":           types.KindItemsType,
		"template":              types.KindExperimentsTemplate,
		"experiments_templates": types.KindExperimentsTemplate,
	}
	for arg, want := range cases {
		got, err := kindFromArg(arg)
		if err != nil || got != want {
			t.Errorf("kindFromArg(%q) = %v, %v, want %v", arg, got, err, want)
		}
	}
	if _, err := kindFromArg("widget"); err == nil {
		t.Error("kindFromArg should reject unknown kinds")
	}
}

func TestMaskKey(t *testing.T) {
	if got := maskKey("abcd1234"); got != "abcd****" {
		t.Errorf("maskKey() = %q", got)
	}
	if got := maskKey("ab"); got != "****" {
		t.Errorf("maskKey() on a short key = %q", got)
	}
}

func TestFilterObjects(t *testing.T) {
	parser := metadata.NewParser(nil)
	objects := []state.Object{
		state.NewObject(types.KindItem, map[string]any{
			"id": float64(1), "title": "A", "category_title": "Probe",
		}, parser),
		state.NewObject(types.KindItem, map[string]any{
			"id": float64(2), "title": "B", "category_title": "Reagent",
		}, parser),
	}

	byCategory, err := filterObjects(objects, "Probe", "")
	if err != nil {
		t.Fatalf("filterObjects(): %v", err)
	}
	if len(byCategory) != 1 || byCategory[0].ID() != 1 {
		t.Errorf("category filter kept %v", byCategory)
	}

	byID, err := filterObjects(objects, "", "2")
	if err != nil {
		t.Fatalf("filterObjects(): %v", err)
	}
	if len(byID) != 1 || byID[0].ID() != 2 {
		t.Errorf("id filter kept %v", byID)
	}

	if _, err := filterObjects(objects, "", "2,x"); err == nil {
		t.Error("expected error for a non-numeric id")
	}
}
