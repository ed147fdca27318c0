package agent

import (
	"github.com/richinex/curator/tools"
)

// Result is the outcome of one conversation turn.
type Result struct {
	Success     bool            `json:"success"`
	Response    string          `json:"response"`
	ToolsUsed   []string        `json:"toolsUsed,omitempty"`
	ToolResults []tools.Outcome `json:"toolResults,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// ToolInfo describes a registered tool for introspection surfaces.
type ToolInfo struct {
	Name            string                 `json:"name"`
	Description     string                 `json:"description"`
	ParameterSchema map[string]interface{} `json:"parameterSchema"`
}
