// In-memory document store.
//
// Information Hiding:
// - Map storage structure hidden from users
// - Thread-safe access via RWMutex hidden behind interface
// - Suitable for testing and ephemeral runs

package docstore

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore implements Store using in-memory maps.
// Data is lost when the process terminates.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string][]Document
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string][]Document),
	}
}

// Find returns matching documents in insertion order, up to limit.
func (s *MemoryStore) Find(ctx context.Context, collection string, filter Filter, limit int) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return findDocs(s.collections[collection], filter, limit)
}

// FindOne returns the first matching document, or nil if none matches.
func (s *MemoryStore) FindOne(ctx context.Context, collection string, filter Filter) (Document, error) {
	results, err := s.Find(ctx, collection, filter, 1)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

// Count returns the number of matching documents.
func (s *MemoryStore) Count(ctx context.Context, collection string, filter Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, doc := range s.collections[collection] {
		ok, err := Matches(doc, filter)
		if err != nil {
			return 0, err
		}
		if ok {
			count++
		}
	}
	return count, nil
}

// Distinct returns unique values of field across matching documents,
// in first-seen order.
func (s *MemoryStore) Distinct(ctx context.Context, collection, field string, filter Filter) ([]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var values []interface{}
	for _, doc := range s.collections[collection] {
		ok, err := Matches(doc, filter)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		val, exists := lookupPath(doc, field)
		if !exists {
			continue
		}
		key := canonical(val)
		if !seen[key] {
			seen[key] = true
			values = append(values, cloneValue(val))
		}
	}
	return values, nil
}

// Aggregate runs a pipeline over the collection, truncating output to limit.
func (s *MemoryStore) Aggregate(ctx context.Context, collection string, pipeline []map[string]interface{}, limit int) ([]Document, error) {
	s.mu.RLock()
	docs := s.collections[collection]
	s.mu.RUnlock()

	results, err := runPipeline(docs, pipeline)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// InsertOne stores a document. The document must carry a string _id.
func (s *MemoryStore) InsertOne(ctx context.Context, collection string, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertLocked(collection, doc)
}

// InsertMany stores documents in order. Fails on the first duplicate _id,
// leaving earlier inserts in place.
func (s *MemoryStore) InsertMany(ctx context.Context, collection string, docs []Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, doc := range docs {
		if err := s.insertLocked(collection, doc); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) insertLocked(collection string, doc Document) error {
	id, err := doc.ID()
	if err != nil {
		return err
	}
	for _, existing := range s.collections[collection] {
		existingID, err := existing.ID()
		if err == nil && existingID == id {
			return ErrDuplicateID
		}
	}
	s.collections[collection] = append(s.collections[collection], doc.Clone())
	return nil
}

// UpdateOne applies update operators to the first matching document.
func (s *MemoryStore) UpdateOne(ctx context.Context, collection string, filter Filter, update map[string]interface{}) (UpdateResult, error) {
	return s.update(collection, filter, update, 1)
}

// UpdateMany applies update operators to every matching document.
func (s *MemoryStore) UpdateMany(ctx context.Context, collection string, filter Filter, update map[string]interface{}) (UpdateResult, error) {
	return s.update(collection, filter, update, 0)
}

func (s *MemoryStore) update(collection string, filter Filter, update map[string]interface{}, max int) (UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result UpdateResult
	docs := s.collections[collection]
	for i, doc := range docs {
		if max > 0 && result.MatchedCount >= int64(max) {
			break
		}
		ok, err := Matches(doc, filter)
		if err != nil {
			return UpdateResult{}, err
		}
		if !ok {
			continue
		}
		result.MatchedCount++
		updated, changed, err := applyUpdate(doc, update)
		if err != nil {
			return UpdateResult{}, err
		}
		if changed {
			docs[i] = updated
			result.ModifiedCount++
		}
	}
	return result, nil
}

// ReplaceOne replaces the first matching document wholesale, preserving
// its _id.
func (s *MemoryStore) ReplaceOne(ctx context.Context, collection string, filter Filter, replacement Document) (UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.collections[collection]
	for i, doc := range docs {
		ok, err := Matches(doc, filter)
		if err != nil {
			return UpdateResult{}, err
		}
		if !ok {
			continue
		}
		newDoc := replacement.Clone()
		if newDoc == nil {
			newDoc = Document{}
		}
		newDoc[IDField] = doc[IDField]
		result := UpdateResult{MatchedCount: 1}
		if canonical(map[string]interface{}(doc)) != canonical(map[string]interface{}(newDoc)) {
			docs[i] = newDoc
			result.ModifiedCount = 1
		}
		return result, nil
	}
	return UpdateResult{}, nil
}

// DeleteOne removes the first matching document.
func (s *MemoryStore) DeleteOne(ctx context.Context, collection string, filter Filter) (int64, error) {
	return s.delete(collection, filter, 1)
}

// DeleteMany removes every matching document.
func (s *MemoryStore) DeleteMany(ctx context.Context, collection string, filter Filter) (int64, error) {
	return s.delete(collection, filter, 0)
}

func (s *MemoryStore) delete(collection string, filter Filter, max int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []Document
	var deleted int64
	for _, doc := range s.collections[collection] {
		if max > 0 && deleted >= int64(max) {
			kept = append(kept, doc)
			continue
		}
		ok, err := Matches(doc, filter)
		if err != nil {
			return 0, err
		}
		if ok {
			deleted++
			continue
		}
		kept = append(kept, doc)
	}
	s.collections[collection] = kept
	return deleted, nil
}

// ListCollections lists collection names in sorted order.
func (s *MemoryStore) ListCollections(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.collections))
	for name, docs := range s.collections {
		if len(docs) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Ping always succeeds for the in-memory store.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// Verify MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
