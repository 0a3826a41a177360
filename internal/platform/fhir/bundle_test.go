package fhir

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/clinified/clinified/pkg/pagination"
)

func TestNewSearchBundle(t *testing.T) {
	resources := []map[string]interface{}{
		{"resourceType": "Patient", "id": "p1"},
		{"resourceType": "Patient", "id": "p2"},
	}
	pg := pagination.Params{Limit: 2, Offset: 0}

	b, err := NewSearchBundle(resources, 5, "/fhir/Patient", pg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.ResourceType != "Bundle" || b.Type != "searchset" {
		t.Errorf("got %s/%s, want Bundle/searchset", b.ResourceType, b.Type)
	}
	if b.Total == nil || *b.Total != 5 {
		t.Errorf("total = %v, want 5", b.Total)
	}
	if len(b.Entry) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(b.Entry))
	}
	if b.Entry[0].FullURL != "/fhir/Patient/p1" {
		t.Errorf("fullUrl = %q", b.Entry[0].FullURL)
	}
	if b.Entry[1].Search == nil || b.Entry[1].Search.Mode != "match" {
		t.Error("expected search mode match")
	}

	var res map[string]interface{}
	if err := json.Unmarshal(b.Entry[1].Resource, &res); err != nil {
		t.Fatalf("entry resource is not JSON: %v", err)
	}
	if res["id"] != "p2" {
		t.Errorf("entry id = %v", res["id"])
	}

	rels := map[string]bool{}
	for _, l := range b.Link {
		rels[l.Relation] = true
	}
	if !rels["self"] || !rels["next"] || rels["previous"] {
		t.Errorf("unexpected links on first page: %+v", b.Link)
	}
}

func TestNewSearchBundle_Empty(t *testing.T) {
	b, err := NewSearchBundle(nil, 0, "/fhir/Encounter", pagination.Params{Limit: 20})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"entry":[]`) {
		t.Errorf("empty bundle should carry an empty entry array: %s", data)
	}
}

func TestNewSearchBundle_NoID(t *testing.T) {
	b, err := NewSearchBundle([]map[string]interface{}{{"resourceType": "Patient"}}, 1, "/fhir/Patient", pagination.Params{Limit: 20})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Entry[0].FullURL != "" {
		t.Errorf("fullUrl = %q, want empty", b.Entry[0].FullURL)
	}
}
