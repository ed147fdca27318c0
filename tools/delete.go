// Document deletion tool.
//
// Information Hiding:
// - Confirmation and safe-mode guards internalized
// - There is no path to delete a whole collection through this tool

package tools

import (
	"context"
	"encoding/json"

	"github.com/richinex/curator/docstore"
)

// DeleteTool exposes deleteOne and deleteMany to the model.
type DeleteTool struct {
	BaseTool
	store docstore.Store
}

// NewDeleteTool creates a delete tool over the given store.
func NewDeleteTool(store docstore.Store) *DeleteTool {
	return &DeleteTool{store: store}
}

type deleteArgs struct {
	Collection      string                 `json:"collection"`
	Operation       string                 `json:"operation"`
	Filter          map[string]interface{} `json:"filter"`
	ConfirmDeletion bool                   `json:"confirmDeletion"`
	SafeMode        *bool                  `json:"safeMode"`
}

// Metadata returns the delete tool's contract.
func (t *DeleteTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "delete_documents",
		Description: "Delete documents from a collection. Operations: deleteOne, deleteMany. Requires confirmDeletion=true and a non-empty filter. deleteMany refuses to remove more than 10 documents unless safeMode is explicitly set to false.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"collection": map[string]interface{}{
					"type":        "string",
					"description": "Collection to delete from",
				},
				"operation": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"deleteOne", "deleteMany"},
					"description": "Delete operation to perform",
				},
				"filter": map[string]interface{}{
					"type":        "object",
					"description": "Non-empty Mongo-style filter selecting documents to delete",
				},
				"confirmDeletion": map[string]interface{}{
					"type":        "boolean",
					"description": "Must be true; deletion is never implicit",
				},
				"safeMode": map[string]interface{}{
					"type":        "boolean",
					"description": "Default true; set false to let deleteMany remove more than 10 documents",
				},
			},
			"required": []string{"collection", "operation", "filter", "confirmDeletion"},
		},
	}
}

// Execute runs a delete operation.
func (t *DeleteTool) Execute(ctx context.Context, raw json.RawMessage) (Outcome, error) {
	var args deleteArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return Failuref("", "", "invalid arguments: %v", err), nil
	}
	op, coll := args.Operation, args.Collection

	if coll == "" {
		return Failuref(op, coll, "collection is required"), nil
	}
	if !args.ConfirmDeletion {
		return Failuref(op, coll, "deletion requires confirmDeletion=true"), nil
	}
	if filterEmpty(args.Filter) {
		return Failuref(op, coll, "filter must not be empty"), nil
	}
	filter := docstore.Filter(args.Filter)

	switch op {
	case "deleteOne":
		snapshot, err := t.store.Find(ctx, coll, filter, 1)
		if err != nil {
			return FailureOutcome(op, coll, err), nil
		}
		deleted, err := t.store.DeleteOne(ctx, coll, filter)
		if err != nil {
			return FailureOutcome(op, coll, err), nil
		}
		return SuccessOutcome(op, coll, map[string]interface{}{
			"deletedCount": deleted,
			"documents":    docsToMaps(snapshot),
		}), nil

	case "deleteMany":
		safeMode := args.SafeMode == nil || *args.SafeMode
		if safeMode {
			matched, err := t.store.Count(ctx, coll, filter)
			if err != nil {
				return FailureOutcome(op, coll, err), nil
			}
			if matched > SafeDeleteLimit {
				return Failuref(op, coll, "deleteMany matches %d documents, above the safe-mode limit of %d; set safeMode to false to proceed", matched, SafeDeleteLimit), nil
			}
		}

		snapshot, err := t.store.Find(ctx, coll, filter, MaxResultLimit)
		if err != nil {
			return FailureOutcome(op, coll, err), nil
		}
		deleted, err := t.store.DeleteMany(ctx, coll, filter)
		if err != nil {
			return FailureOutcome(op, coll, err), nil
		}
		return SuccessOutcome(op, coll, map[string]interface{}{
			"deletedCount": deleted,
			"documents":    docsToMaps(snapshot),
		}), nil

	default:
		return Failuref(op, coll, "unknown operation %q", op), nil
	}
}

// Verify DeleteTool implements Tool
var _ Tool = (*DeleteTool)(nil)
