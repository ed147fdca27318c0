// Package docstore provides JSON document storage with Mongo-style
// filters, update operators, and aggregation pipelines.
//
// Information Hiding:
// - Storage backend implementation details hidden behind interface
// - Allows swapping between memory and SQLite without API changes
// - Filter and update evaluation shared across backends
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// IDField is the document identifier field.
const IDField = "_id"

// Document is a JSON document.
type Document map[string]interface{}

// Filter is a Mongo-style query filter. An empty filter matches everything.
type Filter map[string]interface{}

// Sentinel errors shared by all backends.
var (
	// ErrMissingID indicates an insert without an _id field.
	ErrMissingID = errors.New("document has no _id field")
	// ErrDuplicateID indicates an insert whose _id already exists in the collection.
	ErrDuplicateID = errors.New("document _id already exists")
)

// UpdateResult reports how many documents an update touched.
type UpdateResult struct {
	MatchedCount  int64 `json:"matchedCount"`
	ModifiedCount int64 `json:"modifiedCount"`
}

// Store defines the document store interface.
// Find/Aggregate honor limit when > 0; limit <= 0 means unbounded.
// FindOne returns nil (not an error) when nothing matches.
type Store interface {
	Find(ctx context.Context, collection string, filter Filter, limit int) ([]Document, error)
	FindOne(ctx context.Context, collection string, filter Filter) (Document, error)
	Count(ctx context.Context, collection string, filter Filter) (int64, error)
	Distinct(ctx context.Context, collection, field string, filter Filter) ([]interface{}, error)
	Aggregate(ctx context.Context, collection string, pipeline []map[string]interface{}, limit int) ([]Document, error)

	InsertOne(ctx context.Context, collection string, doc Document) error
	InsertMany(ctx context.Context, collection string, docs []Document) error

	UpdateOne(ctx context.Context, collection string, filter Filter, update map[string]interface{}) (UpdateResult, error)
	UpdateMany(ctx context.Context, collection string, filter Filter, update map[string]interface{}) (UpdateResult, error)
	ReplaceOne(ctx context.Context, collection string, filter Filter, replacement Document) (UpdateResult, error)

	DeleteOne(ctx context.Context, collection string, filter Filter) (int64, error)
	DeleteMany(ctx context.Context, collection string, filter Filter) (int64, error)

	ListCollections(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// ID returns the document's _id as a string.
func (d Document) ID() (string, error) {
	v, ok := d[IDField]
	if !ok {
		return "", ErrMissingID
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("document _id must be a string, got %T", v)
	}
	return s, nil
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	copied, _ := cloneValue(d).(map[string]interface{})
	return Document(copied)
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case Document:
		return cloneValue(map[string]interface{}(val))
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// encodeDocument serializes a document to its stored JSON form.
func encodeDocument(doc Document) (string, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}
	return string(b), nil
}

// decodeDocument parses a stored JSON body back into a document.
func decodeDocument(body string) (Document, error) {
	var doc Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return doc, nil
}

// canonical returns a stable JSON encoding used for value equality and
// group keys. Marshaling a map sorts its keys, so encodings are comparable.
func canonical(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
