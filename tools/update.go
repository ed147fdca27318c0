// Document update tool.
//
// Information Hiding:
// - Bulk-size guard and snapshot policy internalized
// - Snapshots are best-effort: re-queried before the write, with no
//   transactional guarantee against interleaving writers

package tools

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/richinex/curator/docstore"
)

// UpdateTool exposes updateOne, updateMany, and replaceOne to the model.
type UpdateTool struct {
	BaseTool
	store docstore.Store
}

// NewUpdateTool creates an update tool over the given store.
func NewUpdateTool(store docstore.Store) *UpdateTool {
	return &UpdateTool{store: store}
}

type updateArgs struct {
	Collection  string                 `json:"collection"`
	Operation   string                 `json:"operation"`
	Filter      map[string]interface{} `json:"filter"`
	Update      map[string]interface{} `json:"update"`
	Replacement map[string]interface{} `json:"replacement"`
	AllowBulk   bool                   `json:"allowBulk"`
}

// Metadata returns the update tool's contract.
func (t *UpdateTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "update_documents",
		Description: "Update documents in a collection. Operations: updateOne, updateMany (requires allowBulk beyond 50 matches), replaceOne. The filter must not be empty. Update documents use operators ($set, $unset, $inc, $push); replacements must not.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"collection": map[string]interface{}{
					"type":        "string",
					"description": "Collection to update",
				},
				"operation": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"updateOne", "updateMany", "replaceOne"},
					"description": "Update operation to perform",
				},
				"filter": map[string]interface{}{
					"type":        "object",
					"description": "Non-empty Mongo-style filter selecting documents to update",
				},
				"update": map[string]interface{}{
					"type":        "object",
					"description": "Update document built from operators, e.g. {\"$set\": {\"field\": \"value\"}}",
				},
				"replacement": map[string]interface{}{
					"type":        "object",
					"description": "Full replacement document for replaceOne (no $ operators)",
				},
				"allowBulk": map[string]interface{}{
					"type":        "boolean",
					"description": "Explicitly allow updateMany to touch more than 50 documents",
				},
			},
			"required": []string{"collection", "operation", "filter"},
		},
	}
}

// Execute runs an update operation.
func (t *UpdateTool) Execute(ctx context.Context, raw json.RawMessage) (Outcome, error) {
	var args updateArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return Failuref("", "", "invalid arguments: %v", err), nil
	}
	op, coll := args.Operation, args.Collection

	if coll == "" {
		return Failuref(op, coll, "collection is required"), nil
	}
	if filterEmpty(args.Filter) {
		return Failuref(op, coll, "filter must not be empty"), nil
	}
	filter := docstore.Filter(args.Filter)

	switch op {
	case "updateOne", "updateMany":
		if len(args.Update) == 0 {
			return Failuref(op, coll, "%s requires an update document", op), nil
		}
		for key := range args.Update {
			if !strings.HasPrefix(key, "$") {
				return Failuref(op, coll, "update document must contain only update operators, found key %q", key), nil
			}
		}

		snapshotBound := 1
		if op == "updateMany" {
			matched, err := t.store.Count(ctx, coll, filter)
			if err != nil {
				return FailureOutcome(op, coll, err), nil
			}
			if matched > BulkUpdateThreshold && !args.AllowBulk {
				return Failuref(op, coll, "updateMany matches %d documents, above the bulk threshold of %d; set allowBulk to proceed", matched, BulkUpdateThreshold), nil
			}
			snapshotBound = MaxResultLimit
		}

		snapshot, err := t.store.Find(ctx, coll, filter, snapshotBound)
		if err != nil {
			return FailureOutcome(op, coll, err), nil
		}

		var result docstore.UpdateResult
		if op == "updateOne" {
			result, err = t.store.UpdateOne(ctx, coll, filter, args.Update)
		} else {
			result, err = t.store.UpdateMany(ctx, coll, filter, args.Update)
		}
		if err != nil {
			return FailureOutcome(op, coll, err), nil
		}
		return SuccessOutcome(op, coll, map[string]interface{}{
			"matchedCount":  result.MatchedCount,
			"modifiedCount": result.ModifiedCount,
			"documents":     docsToMaps(snapshot),
		}), nil

	case "replaceOne":
		if len(args.Replacement) == 0 {
			return Failuref(op, coll, "replaceOne requires a replacement document"), nil
		}
		for key := range args.Replacement {
			if strings.HasPrefix(key, "$") {
				return Failuref(op, coll, "replacement document must not contain update operators, found key %q", key), nil
			}
		}

		snapshot, err := t.store.Find(ctx, coll, filter, 1)
		if err != nil {
			return FailureOutcome(op, coll, err), nil
		}
		result, err := t.store.ReplaceOne(ctx, coll, filter, docstore.Document(args.Replacement))
		if err != nil {
			return FailureOutcome(op, coll, err), nil
		}
		return SuccessOutcome(op, coll, map[string]interface{}{
			"matchedCount":  result.MatchedCount,
			"modifiedCount": result.ModifiedCount,
			"documents":     docsToMaps(snapshot),
		}), nil

	default:
		return Failuref(op, coll, "unknown operation %q", op), nil
	}
}

// Verify UpdateTool implements Tool
var _ Tool = (*UpdateTool)(nil)
