// Tool registration and lookup.
//
// Information Hiding:
// - Tool storage and lookup implementation hidden
// - Registration order preserved so the model sees a stable tool list

package tools

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Sentinel errors for registry operations.
var (
	// ErrDuplicateTool indicates a registration under an already-taken name.
	ErrDuplicateTool = errors.New("tool already registered")
	// ErrToolNotFound indicates a lookup for an unregistered tool name.
	ErrToolNotFound = errors.New("tool not found")
)

// Registry manages available tools. Lookup is by name; listing preserves
// registration order so prompts are reproducible across runs.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	ordered []string
}

// NewRegistry creates a new empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a new tool to the registry.
// Returns ErrDuplicateTool if a tool with the same name already exists.
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Metadata().Name
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}
	r.tools[name] = tool
	r.ordered = append(r.ordered, name)
	return nil
}

// Get returns a tool by name, or ErrToolNotFound.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return tool, nil
}

// Has checks if a tool exists in the registry.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.tools[name]
	return exists
}

// Names returns all registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.ordered))
	copy(names, r.ordered)
	return names
}

// List returns metadata for all registered tools in registration order.
func (r *Registry) List() []ToolMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	metadata := make([]ToolMetadata, 0, len(r.ordered))
	for _, name := range r.ordered {
		metadata = append(metadata, r.tools[name].Metadata())
	}
	return metadata
}

// Description returns a formatted description of all tools for prompts.
func (r *Registry) Description() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var descriptions []string
	for _, name := range r.ordered {
		meta := r.tools[name].Metadata()
		descriptions = append(descriptions, fmt.Sprintf("Tool: %s\nDescription: %s", meta.Name, meta.Description))
	}
	return strings.Join(descriptions, "\n\n")
}
