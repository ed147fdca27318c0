// Read-only document store tool.
//
// Information Hiding:
// - Result caps enforced internally, not trusted to the caller
// - Store access hidden behind the docstore.Store interface

package tools

import (
	"context"
	"encoding/json"

	"github.com/richinex/curator/docstore"
)

// Safety bounds shared by the store tools.
const (
	// MaxResultLimit is the hard cap on documents returned by a single
	// find or aggregate call, regardless of the requested limit.
	MaxResultLimit = 100
	// DefaultFindLimit applies when a find call requests no limit.
	DefaultFindLimit = 10
	// MaxInsertBatch bounds how many documents one insertMany may carry.
	MaxInsertBatch = 100
	// BulkUpdateThreshold is the matched-document count beyond which
	// updateMany requires an explicit allowBulk flag.
	BulkUpdateThreshold = 50
	// SafeDeleteLimit is the most documents deleteMany removes while
	// safe mode is on.
	SafeDeleteLimit = 10
)

// QueryTool exposes read-only store operations to the model.
type QueryTool struct {
	BaseTool
	store docstore.Store
}

// NewQueryTool creates a query tool over the given store.
func NewQueryTool(store docstore.Store) *QueryTool {
	return &QueryTool{store: store}
}

type queryArgs struct {
	Collection string                   `json:"collection"`
	Operation  string                   `json:"operation"`
	Filter     map[string]interface{}   `json:"filter"`
	Field      string                   `json:"field"`
	Pipeline   []map[string]interface{} `json:"pipeline"`
	Limit      int                      `json:"limit"`
}

// Metadata returns the query tool's contract.
func (t *QueryTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "query_documents",
		Description: "Read documents from a collection. Operations: find, findOne, count, distinct, aggregate, listCollections. find and aggregate return at most 100 documents.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"collection": map[string]interface{}{
					"type":        "string",
					"description": "Collection to query",
				},
				"operation": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"find", "findOne", "count", "distinct", "aggregate", "listCollections"},
					"description": "Read operation to perform",
				},
				"filter": map[string]interface{}{
					"type":        "object",
					"description": "Mongo-style filter ($eq, $ne, $gt, $gte, $lt, $lte, $in, $nin, $exists, $regex, $and, $or, $not)",
				},
				"field": map[string]interface{}{
					"type":        "string",
					"description": "Field name for distinct",
				},
				"pipeline": map[string]interface{}{
					"type":        "array",
					"description": "Aggregation pipeline stages ($match, $sort, $skip, $limit, $project, $group, $count)",
					"items":       map[string]interface{}{"type": "object"},
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum documents to return (capped at 100; find defaults to 10)",
				},
			},
			"required": []string{"collection", "operation"},
		},
	}
}

// Execute runs a read operation.
func (t *QueryTool) Execute(ctx context.Context, raw json.RawMessage) (Outcome, error) {
	var args queryArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return Failuref("", "", "invalid arguments: %v", err), nil
	}
	op, coll := args.Operation, args.Collection

	if op != "listCollections" && coll == "" {
		return Failuref(op, coll, "collection is required"), nil
	}

	switch op {
	case "find":
		limit := capLimit(args.Limit, DefaultFindLimit)
		docs, err := t.store.Find(ctx, coll, docstore.Filter(args.Filter), limit)
		if err != nil {
			return FailureOutcome(op, coll, err), nil
		}
		return SuccessOutcome(op, coll, map[string]interface{}{
			"count": len(docs),
			"data":  docsToMaps(docs),
		}), nil

	case "findOne":
		doc, err := t.store.FindOne(ctx, coll, docstore.Filter(args.Filter))
		if err != nil {
			return FailureOutcome(op, coll, err), nil
		}
		var data interface{}
		if doc != nil {
			data = map[string]interface{}(doc)
		}
		return SuccessOutcome(op, coll, map[string]interface{}{"data": data}), nil

	case "count":
		count, err := t.store.Count(ctx, coll, docstore.Filter(args.Filter))
		if err != nil {
			return FailureOutcome(op, coll, err), nil
		}
		return SuccessOutcome(op, coll, map[string]interface{}{"count": count}), nil

	case "distinct":
		if args.Field == "" {
			return Failuref(op, coll, "distinct requires a field argument"), nil
		}
		values, err := t.store.Distinct(ctx, coll, args.Field, docstore.Filter(args.Filter))
		if err != nil {
			return FailureOutcome(op, coll, err), nil
		}
		return SuccessOutcome(op, coll, map[string]interface{}{
			"field":  args.Field,
			"values": values,
		}), nil

	case "aggregate":
		if len(args.Pipeline) == 0 {
			return Failuref(op, coll, "aggregate requires a pipeline"), nil
		}
		limit := capLimit(args.Limit, MaxResultLimit)
		docs, err := t.store.Aggregate(ctx, coll, args.Pipeline, limit)
		if err != nil {
			return FailureOutcome(op, coll, err), nil
		}
		return SuccessOutcome(op, coll, map[string]interface{}{
			"count": len(docs),
			"data":  docsToMaps(docs),
		}), nil

	case "listCollections":
		names, err := t.store.ListCollections(ctx)
		if err != nil {
			return FailureOutcome(op, coll, err), nil
		}
		return SuccessOutcome(op, coll, map[string]interface{}{"collections": names}), nil

	default:
		return Failuref(op, coll, "unknown operation %q", op), nil
	}
}

// capLimit clamps a requested limit to the hard result cap, applying
// def when no limit was requested.
func capLimit(requested, def int) int {
	if requested <= 0 {
		requested = def
	}
	if requested > MaxResultLimit {
		return MaxResultLimit
	}
	return requested
}

func docsToMaps(docs []docstore.Document) []map[string]interface{} {
	out := make([]map[string]interface{}, len(docs))
	for i, doc := range docs {
		out[i] = map[string]interface{}(doc)
	}
	return out
}

func filterEmpty(filter map[string]interface{}) bool {
	return len(filter) == 0
}

// Verify QueryTool implements Tool
var _ Tool = (*QueryTool)(nil)
