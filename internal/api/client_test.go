package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"elabctl/internal/types"
)

func TestIDFromLocation(t *testing.T) {
	tests := []struct {
		location string
		want     int
		wantErr  bool
	}{
		{"https://elab.example.org/api/v2/items/42", 42, false},
		{"https://elab.example.org/database.php?mode=edit&templateid=7", 7, false},
		{"no-id-here", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := idFromLocation(tt.location)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("idFromLocation(%q) = (%d, %v), want (%d, wantErr=%v)",
				tt.location, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestEndpointPath(t *testing.T) {
	tests := []struct {
		kind types.EntityKind
		want string
	}{
		{types.KindItem, "items"},
		{types.KindExperiment, "experiments"},
		{types.KindItemsType, "items_types"},
		{types.KindExperimentsTemplate, "experiments_templates"},
	}
	for _, tt := range tests {
		if got := endpointPath(tt.kind); got != tt.want {
			t.Errorf("endpointPath(%s) = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestCreate_LearnsIDFromLocation(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/items" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "secret" {
			t.Errorf("missing api key header")
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Location", serverURL(r)+"/items/17")
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := New(Config{HostURL: server.URL, APIKey: "secret"})
	id, err := client.Create(context.Background(), types.KindItem, 3)
	if err != nil {
		t.Fatalf("Create(): %v", err)
	}
	if id != 17 {
		t.Errorf("id = %d, want 17", id)
	}
	if gotBody["category_id"] != float64(3) {
		t.Errorf("category_id = %v, want 3", gotBody["category_id"])
	}
}

func serverURL(r *http.Request) string {
	return "http://" + r.Host
}

func TestPatch_RestoresColorHash(t *testing.T) {
	bodies := make(map[string]map[string]any)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		bodies[r.URL.Path] = body
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(Config{HostURL: server.URL, APIKey: "k"})
	ctx := context.Background()

	if err := client.Patch(ctx, types.KindItemsType, 1, map[string]any{"color": "29AEB9"}); err != nil {
		t.Fatalf("Patch(): %v", err)
	}
	if got := bodies["/items_types/1"]["color"]; got != "#29AEB9" {
		t.Errorf("items type color sent as %v, want #29AEB9", got)
	}

	if err := client.Patch(ctx, types.KindItem, 2, map[string]any{"color": "29AEB9"}); err != nil {
		t.Fatalf("Patch(): %v", err)
	}
	if got := bodies["/items/2"]["color"]; got != "29AEB9" {
		t.Errorf("item color rewritten to %v, should be untouched", got)
	}
}

func TestList_Paginates(t *testing.T) {
	total := 5
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		var page []map[string]any
		for i := offset; i < total && i < offset+limit; i++ {
			page = append(page, map[string]any{"id": i})
		}
		json.NewEncoder(w).Encode(page)
	}))
	defer server.Close()

	client := New(Config{HostURL: server.URL, APIKey: "k", BatchSize: 2})
	items, err := client.List(context.Background(), types.KindItem)
	if err != nil {
		t.Fatalf("List(): %v", err)
	}
	if len(items) != total {
		t.Errorf("listed %d items, want %d", len(items), total)
	}
}

func TestList_ItemsTypesFetchedIndividually(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/items_types":
			json.NewEncoder(w).Encode([]map[string]any{{"id": 1}, {"id": 2}})
		case "/items_types/1", "/items_types/2":
			json.NewEncoder(w).Encode(map[string]any{
				"id":       json.Number(r.URL.Path[len("/items_types/"):]),
				"metadata": `{"extra_fields": {}}`,
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := New(Config{HostURL: server.URL, APIKey: "k"})
	listed, err := client.List(context.Background(), types.KindItemsType)
	if err != nil {
		t.Fatalf("List(): %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("listed %d items types, want 2", len(listed))
	}
	if _, ok := listed[0]["metadata"]; !ok {
		t.Error("full representation missing metadata")
	}
}

func TestTags_Endpoints(t *testing.T) {
	var calls []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, fmt.Sprintf("%s %s", r.Method, r.URL.Path))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(Config{HostURL: server.URL, APIKey: "k"})
	ctx := context.Background()
	if err := client.CreateTag(ctx, types.KindExperiment, 9, "urgent"); err != nil {
		t.Fatalf("CreateTag(): %v", err)
	}
	if err := client.DeleteTag(ctx, types.KindExperiment, 9, 4); err != nil {
		t.Fatalf("DeleteTag(): %v", err)
	}
	want := []string{"POST /experiments/9/tags", "DELETE /experiments/9/tags/4"}
	for i, call := range want {
		if calls[i] != call {
			t.Errorf("call %d = %q, want %q", i, calls[i], call)
		}
	}
}

func TestStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"description": "nope"}`, http.StatusForbidden)
	}))
	defer server.Close()

	client := New(Config{HostURL: server.URL, APIKey: "k"})
	err := client.Delete(context.Background(), types.KindItem, 1)
	statusErr, ok := err.(*StatusError)
	if !ok {
		t.Fatalf("error type = %T, want *StatusError", err)
	}
	if statusErr.Code != http.StatusForbidden {
		t.Errorf("code = %d, want 403", statusErr.Code)
	}
}
