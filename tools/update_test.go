package tools

import (
	"context"
	"testing"

	"github.com/richinex/curator/docstore"
)

func TestUpdateRequiresNonEmptyFilter(t *testing.T) {
	tool := NewUpdateTool(docstore.NewMemoryStore())

	for _, op := range []string{"updateOne", "updateMany", "replaceOne"} {
		outcome := execute(t, tool, map[string]interface{}{
			"collection": "users",
			"operation":  op,
			"filter":     map[string]interface{}{},
			"update":     map[string]interface{}{"$set": map[string]interface{}{"a": 1}},
		})
		if outcome.Success() {
			t.Errorf("%s with empty filter should fail validation", op)
		}
	}
}

func TestUpdateOne(t *testing.T) {
	store := docstore.NewMemoryStore()
	seedMany(t, store, "users", 3)
	tool := NewUpdateTool(store)

	outcome := execute(t, tool, map[string]interface{}{
		"collection": "users",
		"operation":  "updateOne",
		"filter":     map[string]interface{}{"_id": "seed-001"},
		"update":     map[string]interface{}{"$set": map[string]interface{}{"name": "bob"}},
	})
	if !outcome.Success() {
		t.Fatalf("Expected success, got %v", outcome.Err)
	}
	if outcome.Payload["matchedCount"] != int64(1) || outcome.Payload["modifiedCount"] != int64(1) {
		t.Errorf("Unexpected counts: %v", outcome.Payload)
	}
	snapshot := outcome.Payload["documents"].([]map[string]interface{})
	if len(snapshot) != 1 || snapshot[0]["_id"] != "seed-001" {
		t.Errorf("Expected single-document before snapshot, got %v", snapshot)
	}
	// Snapshot carries the pre-update state.
	if _, ok := snapshot[0]["name"]; ok {
		t.Error("Snapshot should not contain the new field")
	}
}

func TestUpdateRejectsNonOperatorKeys(t *testing.T) {
	store := docstore.NewMemoryStore()
	seedMany(t, store, "users", 1)
	tool := NewUpdateTool(store)

	outcome := execute(t, tool, map[string]interface{}{
		"collection": "users",
		"operation":  "updateOne",
		"filter":     map[string]interface{}{"_id": "seed-000"},
		"update":     map[string]interface{}{"name": "bob"},
	})
	if outcome.Success() {
		t.Fatal("Expected validation failure for plain-key update document")
	}
}

func TestUpdateManyBulkGuard(t *testing.T) {
	store := docstore.NewMemoryStore()
	seedMany(t, store, "users", BulkUpdateThreshold+10)
	tool := NewUpdateTool(store)

	args := map[string]interface{}{
		"collection": "users",
		"operation":  "updateMany",
		"filter":     map[string]interface{}{"active": true},
		"update":     map[string]interface{}{"$set": map[string]interface{}{"flagged": true}},
	}
	outcome := execute(t, tool, args)
	if outcome.Success() {
		t.Fatal("Expected bulk guard failure past the threshold")
	}

	args["allowBulk"] = true
	outcome = execute(t, tool, args)
	if !outcome.Success() {
		t.Fatalf("Expected success with allowBulk, got %v", outcome.Err)
	}
	if outcome.Payload["matchedCount"] != int64(BulkUpdateThreshold+10) {
		t.Errorf("Unexpected matchedCount: %v", outcome.Payload["matchedCount"])
	}
}

func TestUpdateManyUnderThresholdNoFlagNeeded(t *testing.T) {
	store := docstore.NewMemoryStore()
	seedMany(t, store, "users", 5)
	tool := NewUpdateTool(store)

	outcome := execute(t, tool, map[string]interface{}{
		"collection": "users",
		"operation":  "updateMany",
		"filter":     map[string]interface{}{"active": true},
		"update":     map[string]interface{}{"$set": map[string]interface{}{"flagged": true}},
	})
	if !outcome.Success() {
		t.Fatalf("Expected success under threshold, got %v", outcome.Err)
	}
	snapshot := outcome.Payload["documents"].([]map[string]interface{})
	if len(snapshot) != 5 {
		t.Errorf("Expected snapshot of 5 documents, got %d", len(snapshot))
	}
}

func TestReplaceOneRejectsOperatorKeys(t *testing.T) {
	store := docstore.NewMemoryStore()
	seedMany(t, store, "users", 1)
	tool := NewUpdateTool(store)

	outcome := execute(t, tool, map[string]interface{}{
		"collection":  "users",
		"operation":   "replaceOne",
		"filter":      map[string]interface{}{"_id": "seed-000"},
		"replacement": map[string]interface{}{"$set": map[string]interface{}{"name": "bob"}},
	})
	if outcome.Success() {
		t.Fatal("Expected validation failure for operator keys in replacement")
	}
}

func TestReplaceOne(t *testing.T) {
	store := docstore.NewMemoryStore()
	seedMany(t, store, "users", 1)
	tool := NewUpdateTool(store)

	outcome := execute(t, tool, map[string]interface{}{
		"collection":  "users",
		"operation":   "replaceOne",
		"filter":      map[string]interface{}{"_id": "seed-000"},
		"replacement": map[string]interface{}{"name": "bob"},
	})
	if !outcome.Success() {
		t.Fatalf("Expected success, got %v", outcome.Err)
	}
	if outcome.Payload["matchedCount"] != int64(1) {
		t.Errorf("Unexpected matchedCount: %v", outcome.Payload["matchedCount"])
	}

	doc, _ := store.FindOne(context.Background(), "users", docstore.Filter{"_id": "seed-000"})
	if doc == nil || doc["name"] != "bob" {
		t.Errorf("Unexpected document after replace: %v", doc)
	}
	if _, ok := doc["n"]; ok {
		t.Error("Replacement should drop old fields")
	}
}

func TestUpdateUnknownOperation(t *testing.T) {
	tool := NewUpdateTool(docstore.NewMemoryStore())

	outcome := execute(t, tool, map[string]interface{}{
		"collection": "users",
		"operation":  "upsert",
		"filter":     map[string]interface{}{"a": 1},
	})
	if outcome.Success() {
		t.Fatal("Expected failure for unknown operation")
	}
}
