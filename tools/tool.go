// Package tools provides the document-store tool system for the agent.
//
// Information Hiding:
// - Tool execution details hidden behind interface
// - Tool parameters and schemas hidden in implementations
// - Registry implementation details hidden from consumers
// - Safety guards internalized per tool
package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// ToolMetadata describes what a tool does and how to call it.
// Parameters is a JSON-schema-shaped object advertised to the model.
type ToolMetadata struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// String returns a string representation of the tool metadata.
func (m ToolMetadata) String() string {
	return fmt.Sprintf("%s: %s", m.Name, m.Description)
}

// Outcome is the result of a tool execution. It is always returned as
// data, never raised past the tool boundary. Success is determined by
// whether Err is nil; Payload carries the operation-specific result
// fields (counts, documents, generated identifiers).
type Outcome struct {
	Operation  string                 `json:"-"`
	Collection string                 `json:"-"`
	Payload    map[string]interface{} `json:"-"`
	Err        error                  `json:"-"`
}

// Success reports whether the execution succeeded.
func (o Outcome) Success() bool {
	return o.Err == nil
}

// MarshalJSON flattens the payload into the outcome object.
func (o Outcome) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(o.Payload)+4)
	for k, v := range o.Payload {
		out[k] = v
	}
	out["success"] = o.Err == nil
	if o.Operation != "" {
		out["operation"] = o.Operation
	}
	if o.Collection != "" {
		out["collection"] = o.Collection
	}
	if o.Err != nil {
		out["error"] = o.Err.Error()
	}
	return json.Marshal(out)
}

// Encode returns the outcome as a JSON string for a tool message body.
func (o Outcome) Encode() string {
	b, err := json.Marshal(o)
	if err != nil {
		return fmt.Sprintf(`{"success":false,"error":%q}`, err.Error())
	}
	return string(b)
}

// SuccessOutcome creates a successful outcome with a result payload.
func SuccessOutcome(operation, collection string, payload map[string]interface{}) Outcome {
	return Outcome{Operation: operation, Collection: collection, Payload: payload}
}

// FailureOutcome creates a failed outcome.
func FailureOutcome(operation, collection string, err error) Outcome {
	return Outcome{Operation: operation, Collection: collection, Err: err}
}

// Failuref creates a failed outcome with a formatted error message.
func Failuref(operation, collection, format string, args ...interface{}) Outcome {
	return Outcome{Operation: operation, Collection: collection, Err: fmt.Errorf(format, args...)}
}

// Tool is the interface that all tools must implement.
//
// Information Hiding: Tool implementations hide their internal validation
// logic, safety guards, and store access behind this interface.
type Tool interface {
	// Metadata returns tool metadata (name, description, parameter schema).
	Metadata() ToolMetadata

	// Execute runs the tool with given arguments. Validation failures and
	// store failures come back as failure Outcomes, not errors; a non-nil
	// error indicates the tool itself misbehaved and is converted to a
	// failure outcome by the caller.
	Execute(ctx context.Context, args json.RawMessage) (Outcome, error)

	// Validate validates arguments before execution (optional).
	Validate(args json.RawMessage) error
}

// BaseTool provides a default implementation for Validate.
type BaseTool struct{}

// Validate provides a default no-op validation.
func (BaseTool) Validate(args json.RawMessage) error {
	return nil
}
