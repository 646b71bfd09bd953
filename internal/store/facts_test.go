package store

import (
	"encoding/json"
	"testing"
)

func TestPutFactOverwrites(t *testing.T) {
	db := testDB(t)

	first := &Fact{Key: "ability_use_mcp_tools", Category: "ability", Value: json.RawMessage(`{"description":"one"}`)}
	if err := db.PutFact(first); err != nil {
		t.Fatalf("PutFact: %v", err)
	}
	second := &Fact{Key: "ability_use_mcp_tools", Category: "ability", Value: json.RawMessage(`{"description":"two"}`)}
	if err := db.PutFact(second); err != nil {
		t.Fatalf("PutFact again: %v", err)
	}

	n, err := db.CountFacts()
	if err != nil {
		t.Fatalf("CountFacts: %v", err)
	}
	if n != 1 {
		t.Errorf("facts = %d, want 1", n)
	}
	got, err := db.GetFact("ability_use_mcp_tools")
	if err != nil {
		t.Fatalf("GetFact: %v", err)
	}
	if string(got.Value) != `{"description":"two"}` {
		t.Errorf("Value = %s, want second description", got.Value)
	}
	if got.CreatedAt != first.CreatedAt {
		t.Errorf("CreatedAt changed on overwrite: %d -> %d", first.CreatedAt, got.CreatedAt)
	}
}

func TestPutFactKeyUniqueAcrossCategories(t *testing.T) {
	db := testDB(t)

	if err := db.PutFact(&Fact{Key: "shared", Category: "ability", Value: json.RawMessage(`1`)}); err != nil {
		t.Fatalf("PutFact: %v", err)
	}
	if err := db.PutFact(&Fact{Key: "shared", Category: "permission", Value: json.RawMessage(`2`)}); err != nil {
		t.Fatalf("PutFact: %v", err)
	}

	got, _ := db.GetFact("shared")
	if got.Category != "permission" {
		t.Errorf("Category = %q, want permission (last write wins)", got.Category)
	}
	abilities, _ := db.FactsByCategory("ability")
	if len(abilities) != 0 {
		t.Errorf("abilities = %d, want 0", len(abilities))
	}
}

func TestPutFactRejectsInvalidJSON(t *testing.T) {
	db := testDB(t)

	if err := db.PutFact(&Fact{Key: "k", Category: "context", Value: json.RawMessage(`{nope`)}); err == nil {
		t.Error("expected error for invalid JSON value")
	}
}

func TestFactsByCategoryAndDelete(t *testing.T) {
	db := testDB(t)

	for _, k := range []string{"context_b", "context_a"} {
		if err := db.PutFact(&Fact{Key: k, Category: "context", Value: json.RawMessage(`"v"`)}); err != nil {
			t.Fatalf("PutFact: %v", err)
		}
	}
	facts, err := db.FactsByCategory("context")
	if err != nil {
		t.Fatalf("FactsByCategory: %v", err)
	}
	if len(facts) != 2 || facts[0].Key != "context_a" {
		t.Fatalf("facts = %+v, want sorted by key", facts)
	}

	ok, err := db.DeleteFact("context_a")
	if err != nil || !ok {
		t.Fatalf("DeleteFact = %v, %v", ok, err)
	}
	if got, _ := db.GetFact("context_a"); got != nil {
		t.Errorf("fact survived delete: %+v", got)
	}
}
