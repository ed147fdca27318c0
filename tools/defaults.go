package tools

import (
	"fmt"

	"github.com/richinex/curator/docstore"
)

// WithStoreTools creates a registry with the four document-store tools
// registered in their canonical order.
func WithStoreTools(store docstore.Store) (*Registry, error) {
	registry := NewRegistry()

	all := []Tool{
		NewQueryTool(store),
		NewInsertTool(store),
		NewUpdateTool(store),
		NewDeleteTool(store),
	}

	for _, t := range all {
		if err := registry.Register(t); err != nil {
			return nil, fmt.Errorf("failed to register store tools: %w", err)
		}
	}

	return registry, nil
}
