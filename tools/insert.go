// Document insertion tool.
//
// Information Hiding:
// - Identifier generation policy internalized
// - Batch size guard enforced before the store is touched

package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/richinex/curator/docstore"
)

// InsertTool exposes insertOne and insertMany to the model.
type InsertTool struct {
	BaseTool
	store docstore.Store
}

// NewInsertTool creates an insert tool over the given store.
func NewInsertTool(store docstore.Store) *InsertTool {
	return &InsertTool{store: store}
}

type insertArgs struct {
	Collection          string                   `json:"collection"`
	Operation           string                   `json:"operation"`
	Document            json.RawMessage          `json:"document"`
	Documents           []map[string]interface{} `json:"documents"`
	DisableIDGeneration bool                     `json:"disableIdGeneration"`
}

// Metadata returns the insert tool's contract.
func (t *InsertTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "insert_documents",
		Description: "Insert documents into a collection. Operations: insertOne (single document), insertMany (up to 100 documents). Documents receive a generated _id unless generation is disabled and an _id is supplied.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"collection": map[string]interface{}{
					"type":        "string",
					"description": "Collection to insert into",
				},
				"operation": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"insertOne", "insertMany"},
					"description": "Insert operation to perform",
				},
				"document": map[string]interface{}{
					"type":        "object",
					"description": "Single document for insertOne",
				},
				"documents": map[string]interface{}{
					"type":        "array",
					"description": "Documents for insertMany (at most 100)",
					"items":       map[string]interface{}{"type": "object"},
				},
				"disableIdGeneration": map[string]interface{}{
					"type":        "boolean",
					"description": "Skip _id generation; every document must then supply its own _id",
				},
			},
			"required": []string{"collection", "operation"},
		},
	}
}

// Execute runs an insert operation.
func (t *InsertTool) Execute(ctx context.Context, raw json.RawMessage) (Outcome, error) {
	var args insertArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return Failuref("", "", "invalid arguments: %v", err), nil
	}
	op, coll := args.Operation, args.Collection

	if coll == "" {
		return Failuref(op, coll, "collection is required"), nil
	}

	switch op {
	case "insertOne":
		if len(args.Document) == 0 {
			return Failuref(op, coll, "insertOne requires a document"), nil
		}
		if bytes.HasPrefix(bytes.TrimSpace(args.Document), []byte("[")) {
			return Failuref(op, coll, "insertOne expects a single document, not an array; use insertMany"), nil
		}
		var doc map[string]interface{}
		if err := json.Unmarshal(args.Document, &doc); err != nil {
			return Failuref(op, coll, "document must be an object: %v", err), nil
		}
		prepared, err := prepareDocuments([]map[string]interface{}{doc}, args.DisableIDGeneration)
		if err != nil {
			return FailureOutcome(op, coll, err), nil
		}
		if err := t.store.InsertOne(ctx, coll, prepared[0]); err != nil {
			return FailureOutcome(op, coll, err), nil
		}
		return SuccessOutcome(op, coll, map[string]interface{}{
			"insertedId": prepared[0][docstore.IDField],
		}), nil

	case "insertMany":
		if len(args.Documents) == 0 {
			return Failuref(op, coll, "insertMany requires a non-empty documents array"), nil
		}
		if len(args.Documents) > MaxInsertBatch {
			return Failuref(op, coll, "insertMany accepts at most %d documents, got %d", MaxInsertBatch, len(args.Documents)), nil
		}
		prepared, err := prepareDocuments(args.Documents, args.DisableIDGeneration)
		if err != nil {
			return FailureOutcome(op, coll, err), nil
		}
		if err := t.store.InsertMany(ctx, coll, prepared); err != nil {
			return FailureOutcome(op, coll, err), nil
		}
		ids := make([]interface{}, len(prepared))
		for i, doc := range prepared {
			ids[i] = doc[docstore.IDField]
		}
		return SuccessOutcome(op, coll, map[string]interface{}{
			"insertedCount": len(prepared),
			"insertedIds":   ids,
		}), nil

	default:
		return Failuref(op, coll, "unknown operation %q", op), nil
	}
}

// prepareDocuments assigns generated identifiers, or verifies supplied
// ones when generation is disabled.
func prepareDocuments(docs []map[string]interface{}, disableIDGeneration bool) ([]docstore.Document, error) {
	prepared := make([]docstore.Document, len(docs))
	for i, doc := range docs {
		d := docstore.Document(doc).Clone()
		if d == nil {
			d = docstore.Document{}
		}
		if _, ok := d[docstore.IDField]; !ok {
			if disableIDGeneration {
				return nil, fmt.Errorf("document %d has no %s and id generation is disabled", i, docstore.IDField)
			}
			d[docstore.IDField] = uuid.NewString()
		}
		prepared[i] = d
	}
	return prepared, nil
}

// Verify InsertTool implements Tool
var _ Tool = (*InsertTool)(nil)
