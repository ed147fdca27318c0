package docstore

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryInsertAndFind(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	doc := Document{"_id": "1", "name": "alice"}
	if err := store.InsertOne(ctx, "users", doc); err != nil {
		t.Fatalf("InsertOne failed: %v", err)
	}

	results, err := store.Find(ctx, "users", Filter{"name": "alice"}, 0)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	if results[0]["_id"] != "1" {
		t.Errorf("Expected _id 1, got %v", results[0]["_id"])
	}
}

func TestMemoryInsertDuplicate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.InsertOne(ctx, "users", Document{"_id": "1"}); err != nil {
		t.Fatalf("InsertOne failed: %v", err)
	}
	err := store.InsertOne(ctx, "users", Document{"_id": "1"})
	if !errors.Is(err, ErrDuplicateID) {
		t.Errorf("Expected ErrDuplicateID, got %v", err)
	}
}

func TestMemoryInsertMissingID(t *testing.T) {
	store := NewMemoryStore()
	err := store.InsertOne(context.Background(), "users", Document{"name": "alice"})
	if !errors.Is(err, ErrMissingID) {
		t.Errorf("Expected ErrMissingID, got %v", err)
	}
}

func TestMemoryFindCopyOnRead(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.InsertOne(ctx, "users", Document{"_id": "1", "name": "alice"}); err != nil {
		t.Fatalf("InsertOne failed: %v", err)
	}

	results, _ := store.Find(ctx, "users", Filter{}, 0)
	results[0]["name"] = "mutated"

	again, _ := store.Find(ctx, "users", Filter{}, 0)
	if again[0]["name"] != "alice" {
		t.Error("Mutating a Find result should not affect stored data")
	}
}

func TestMemoryFindLimit(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		if err := store.InsertOne(ctx, "users", Document{"_id": id}); err != nil {
			t.Fatalf("InsertOne failed: %v", err)
		}
	}

	results, err := store.Find(ctx, "users", Filter{}, 2)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Expected 2 results, got %d", len(results))
	}
}

func TestMemoryFindOne(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	doc, err := store.FindOne(ctx, "users", Filter{"name": "nobody"})
	if err != nil {
		t.Fatalf("FindOne failed: %v", err)
	}
	if doc != nil {
		t.Error("Expected nil for no match")
	}
}

func TestMemoryCountAndDistinct(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	docs := []Document{
		{"_id": "1", "team": "a"},
		{"_id": "2", "team": "a"},
		{"_id": "3", "team": "b"},
	}
	if err := store.InsertMany(ctx, "users", docs); err != nil {
		t.Fatalf("InsertMany failed: %v", err)
	}

	count, err := store.Count(ctx, "users", Filter{"team": "a"})
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected count 2, got %d", count)
	}

	values, err := store.Distinct(ctx, "users", "team", Filter{})
	if err != nil {
		t.Fatalf("Distinct failed: %v", err)
	}
	if len(values) != 2 || values[0] != "a" || values[1] != "b" {
		t.Errorf("Unexpected distinct values: %v", values)
	}
}

func TestMemoryUpdateOne(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.InsertMany(ctx, "users", []Document{
		{"_id": "1", "team": "a"},
		{"_id": "2", "team": "a"},
	}); err != nil {
		t.Fatalf("InsertMany failed: %v", err)
	}

	result, err := store.UpdateOne(ctx, "users", Filter{"team": "a"},
		map[string]interface{}{"$set": map[string]interface{}{"team": "b"}})
	if err != nil {
		t.Fatalf("UpdateOne failed: %v", err)
	}
	if result.MatchedCount != 1 || result.ModifiedCount != 1 {
		t.Errorf("Expected 1/1, got %d/%d", result.MatchedCount, result.ModifiedCount)
	}

	count, _ := store.Count(ctx, "users", Filter{"team": "a"})
	if count != 1 {
		t.Errorf("Expected one doc left on team a, got %d", count)
	}
}

func TestMemoryUpdateMany(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.InsertMany(ctx, "users", []Document{
		{"_id": "1", "team": "a", "score": float64(1)},
		{"_id": "2", "team": "a", "score": float64(2)},
		{"_id": "3", "team": "b", "score": float64(3)},
	}); err != nil {
		t.Fatalf("InsertMany failed: %v", err)
	}

	result, err := store.UpdateMany(ctx, "users", Filter{"team": "a"},
		map[string]interface{}{"$inc": map[string]interface{}{"score": float64(10)}})
	if err != nil {
		t.Fatalf("UpdateMany failed: %v", err)
	}
	if result.MatchedCount != 2 || result.ModifiedCount != 2 {
		t.Errorf("Expected 2/2, got %d/%d", result.MatchedCount, result.ModifiedCount)
	}
}

func TestMemoryReplaceOne(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.InsertOne(ctx, "users", Document{"_id": "1", "name": "alice", "age": float64(30)}); err != nil {
		t.Fatalf("InsertOne failed: %v", err)
	}

	result, err := store.ReplaceOne(ctx, "users", Filter{"_id": "1"}, Document{"name": "bob"})
	if err != nil {
		t.Fatalf("ReplaceOne failed: %v", err)
	}
	if result.MatchedCount != 1 || result.ModifiedCount != 1 {
		t.Errorf("Expected 1/1, got %d/%d", result.MatchedCount, result.ModifiedCount)
	}

	doc, _ := store.FindOne(ctx, "users", Filter{"_id": "1"})
	if doc == nil {
		t.Fatal("Expected document to survive replacement with its _id")
	}
	if doc["name"] != "bob" {
		t.Errorf("Expected name bob, got %v", doc["name"])
	}
	if _, ok := doc["age"]; ok {
		t.Error("Expected age removed by replacement")
	}
}

func TestMemoryDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.InsertMany(ctx, "users", []Document{
		{"_id": "1", "team": "a"},
		{"_id": "2", "team": "a"},
		{"_id": "3", "team": "b"},
	}); err != nil {
		t.Fatalf("InsertMany failed: %v", err)
	}

	deleted, err := store.DeleteOne(ctx, "users", Filter{"team": "a"})
	if err != nil {
		t.Fatalf("DeleteOne failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted, got %d", deleted)
	}

	deleted, err = store.DeleteMany(ctx, "users", Filter{})
	if err != nil {
		t.Fatalf("DeleteMany failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("Expected 2 deleted, got %d", deleted)
	}
}

func TestMemoryListCollections(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.InsertOne(ctx, "zebra", Document{"_id": "1"}); err != nil {
		t.Fatalf("InsertOne failed: %v", err)
	}
	if err := store.InsertOne(ctx, "apple", Document{"_id": "1"}); err != nil {
		t.Fatalf("InsertOne failed: %v", err)
	}

	names, err := store.ListCollections(ctx)
	if err != nil {
		t.Fatalf("ListCollections failed: %v", err)
	}
	if len(names) != 2 || names[0] != "apple" || names[1] != "zebra" {
		t.Errorf("Expected sorted [apple zebra], got %v", names)
	}
}

func TestMemoryAggregate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.InsertMany(ctx, "orders", []Document{
		{"_id": "1", "item": "x", "qty": float64(2)},
		{"_id": "2", "item": "x", "qty": float64(3)},
		{"_id": "3", "item": "y", "qty": float64(1)},
	}); err != nil {
		t.Fatalf("InsertMany failed: %v", err)
	}

	results, err := store.Aggregate(ctx, "orders", []map[string]interface{}{
		{"$group": map[string]interface{}{
			"_id":   "$item",
			"total": map[string]interface{}{"$sum": "$qty"},
		}},
	}, 10)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 groups, got %d", len(results))
	}
	if results[0]["_id"] != "x" || results[0]["total"] != float64(5) {
		t.Errorf("Unexpected first group: %v", results[0])
	}
}
