package engine

import (
	"strings"
	"testing"
)

func TestParseBatch_DefaultsCollectionFromKind(t *testing.T) {
	doc := `{"operations":[
		{"id":"op1","entity_kind":"vendor","verb":"create","payload":{"name":"Acme"}}
	]}`

	ops, err := ParseBatch(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("failed to parse batch: %v", err)
	}

	if len(ops) != 1 {
		t.Fatalf("expected 1 operation, got %d", len(ops))
	}
	if ops[0].Target.Collection != "core_company" {
		t.Errorf("expected collection core_company, got %s", ops[0].Target.Collection)
	}
	if ops[0].Status != StatusPending {
		t.Errorf("expected pending status, got %s", ops[0].Status)
	}
}

func TestParseBatch_ExplicitCollectionWins(t *testing.T) {
	doc := `{"operations":[
		{"id":"op1","entity_kind":"vendor","verb":"create","collection":"u_custom_vendor","payload":{"name":"Acme"}}
	]}`

	ops, err := ParseBatch(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("failed to parse batch: %v", err)
	}
	if ops[0].Target.Collection != "u_custom_vendor" {
		t.Errorf("expected explicit collection, got %s", ops[0].Target.Collection)
	}
}

func TestParseBatch_RejectsDuplicateIDs(t *testing.T) {
	doc := `{"operations":[
		{"id":"op1","entity_kind":"vendor","verb":"create","payload":{"name":"a"}},
		{"id":"op1","entity_kind":"supplier","verb":"create","payload":{"name":"b"}}
	]}`

	if _, err := ParseBatch(strings.NewReader(doc)); err == nil {
		t.Fatal("expected duplicate id error")
	}
}

func TestParseBatch_RejectsUnknownVerb(t *testing.T) {
	doc := `{"operations":[
		{"id":"op1","entity_kind":"vendor","verb":"upsert","payload":{"name":"a"}}
	]}`

	if _, err := ParseBatch(strings.NewReader(doc)); err == nil {
		t.Fatal("expected invalid verb error")
	}
}

func TestParseBatch_UnknownKindNeedsCollection(t *testing.T) {
	doc := `{"operations":[
		{"id":"op1","entity_kind":"warehouseBay","verb":"create","payload":{"name":"a"}}
	]}`
	if _, err := ParseBatch(strings.NewReader(doc)); err == nil {
		t.Fatal("expected error for unknown kind without collection")
	}

	withCollection := `{"operations":[
		{"id":"op1","entity_kind":"warehouseBay","verb":"create","collection":"u_warehouse_bay","payload":{"name":"a"}}
	]}`
	if _, err := ParseBatch(strings.NewReader(withCollection)); err != nil {
		t.Fatalf("expected unknown kind with explicit collection to parse: %v", err)
	}
}

func TestParseBatch_EmptyDocument(t *testing.T) {
	if _, err := ParseBatch(strings.NewReader(`{"operations":[]}`)); err == nil {
		t.Fatal("expected error for empty batch")
	}
}
