// Package agent implements the tool-calling orchestration loop.
//
// A turn runs a two-round protocol against the model: the first round
// carries the conversation plus every registered tool contract; if the
// model requests tool calls they execute sequentially against the store,
// and a second round — without tools — synthesizes the results into the
// final answer.
//
// Information Hiding:
// - State machine transitions hidden inside ProcessMessage
// - Tool dispatch and failure isolation hidden
// - Conversation storage hidden behind the conversation set
package agent

import (
	"context"
	"fmt"
	"time"

	jsonutil "github.com/richinex/curator/internal/json"
	"github.com/richinex/curator/llm"
	"github.com/richinex/curator/tools"
)

const systemInstruction = `You are a data curator agent with access to a document store.
Use the provided tools to read and modify documents when the user's request calls for it.
Destructive operations require explicit confirmation flags; if a tool reports a guard failure, explain it to the user instead of retrying with guards disabled.
Answer directly without tools when no store access is needed.`

const synthesisInstruction = systemInstruction + `

The requested tool calls have been executed and their results appear above.
Summarize what happened for the user: report counts, identifiers, and any failures exactly as returned. Do not request further tool calls.`

const apologyText = "Sorry, something went wrong while processing your request."

// Options configures an Orchestrator.
type Options struct {
	// MaxHistory caps a conversation's retained messages; 0 disables the cap.
	MaxHistory int
	// ConversationTTL evicts conversations idle past this duration; 0 disables eviction.
	ConversationTTL time.Duration
}

// Orchestrator mediates between the model client and the registered
// store tools. One turn per conversation runs at a time.
type Orchestrator struct {
	client        *llm.Client
	registry      *tools.Registry
	conversations *conversationSet
}

// New creates an orchestrator over a provider and a tool registry.
func New(provider llm.Provider, registry *tools.Registry, opts Options) *Orchestrator {
	return &Orchestrator{
		client:        llm.NewClient(provider),
		registry:      registry,
		conversations: newConversationSet(opts.ConversationTTL, opts.MaxHistory),
	}
}

// ProcessMessage runs one conversation turn: user text in, final
// assistant answer out, with zero or more tool executions in between.
func (o *Orchestrator) ProcessMessage(ctx context.Context, conversationID, userText string) Result {
	conv := o.conversations.acquire(conversationID)
	defer o.conversations.release(conv)
	conv.turnMu.Lock()
	defer conv.turnMu.Unlock()

	// Idle -> AwaitingModel
	conv.messages = append(conv.messages, llm.UserMessage(userText))

	request := make([]llm.ChatMessage, 0, len(conv.messages)+1)
	request = append(request, llm.SystemMessage(systemInstruction))
	request = append(request, conv.messages...)

	response, err := o.client.ChatWithTools(ctx, request, o.toolDefinitions())
	if err != nil {
		return Result{Success: false, Response: apologyText, Error: err.Error()}
	}

	// No tools requested: terminal success.
	if len(response.ToolCalls) == 0 {
		conv.messages = append(conv.messages, llm.AssistantMessage(response.Content))
		conv.trim(o.conversations.maxHistory)
		return Result{Success: true, Response: response.Content}
	}

	// ToolsRequested -> ExecutingTools
	conv.messages = append(conv.messages, llm.AssistantMessageWithToolCalls(response.Content, response.ToolCalls))

	toolsUsed := make([]string, 0, len(response.ToolCalls))
	outcomes := make([]tools.Outcome, 0, len(response.ToolCalls))
	for _, call := range response.ToolCalls {
		outcome := o.runTool(ctx, call)
		toolsUsed = append(toolsUsed, call.Name)
		outcomes = append(outcomes, outcome)
		conv.messages = append(conv.messages, llm.ToolMessage(call.ID, outcome.Encode()))
	}

	// ExecutingTools -> AwaitingFinalModel: second round never gets tools.
	request = make([]llm.ChatMessage, 0, len(conv.messages)+1)
	request = append(request, llm.SystemMessage(synthesisInstruction))
	request = append(request, conv.messages...)

	final, err := o.client.Chat(ctx, request)
	if err != nil {
		// Partial appends from this turn remain; no rollback.
		return Result{Success: false, Response: apologyText, Error: err.Error()}
	}

	// AwaitingFinalModel -> Idle
	conv.messages = append(conv.messages, llm.AssistantMessage(final.Content))
	conv.trim(o.conversations.maxHistory)

	return Result{
		Success:     true,
		Response:    final.Content,
		ToolsUsed:   toolsUsed,
		ToolResults: outcomes,
	}
}

// runTool executes one tool call, converting every failure mode —
// unknown tool, bad arguments, store errors, panics — into a failure
// outcome so a single call never aborts its batch.
func (o *Orchestrator) runTool(ctx context.Context, call llm.ToolCall) (outcome tools.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = tools.Failuref("", "", "tool %s panicked: %v", call.Name, r)
		}
	}()

	tool, err := o.registry.Get(call.Name)
	if err != nil {
		return tools.Failuref("", "", "Unknown tool: %s", call.Name)
	}

	args := jsonutil.NormalizeArguments(call.Arguments)
	if err := tool.Validate(args); err != nil {
		return tools.FailureOutcome("", "", err)
	}

	result, err := tool.Execute(ctx, args)
	if err != nil {
		return tools.FailureOutcome("", "", fmt.Errorf("tool %s failed: %w", call.Name, err))
	}
	return result
}

// toolDefinitions converts registered contracts into the model-facing
// function declarations, preserving registration order.
func (o *Orchestrator) toolDefinitions() []llm.ToolDefinition {
	metadata := o.registry.List()
	defs := make([]llm.ToolDefinition, len(metadata))
	for i, meta := range metadata {
		defs[i] = llm.ToolDefinition{
			Name:        meta.Name,
			Description: meta.Description,
			Parameters:  meta.Parameters,
		}
	}
	return defs
}

// GetAvailableTools returns the registered tool contracts in
// registration order.
func (o *Orchestrator) GetAvailableTools() []tools.ToolMetadata {
	return o.registry.List()
}

// GetToolInfo returns a name-keyed view of the registered tools.
func (o *Orchestrator) GetToolInfo() map[string]ToolInfo {
	info := make(map[string]ToolInfo)
	for _, meta := range o.registry.List() {
		info[meta.Name] = ToolInfo{
			Name:            meta.Name,
			Description:     meta.Description,
			ParameterSchema: meta.Parameters,
		}
	}
	return info
}

// GetHistory returns a snapshot copy of a conversation's message log.
func (o *Orchestrator) GetHistory(conversationID string) []llm.ChatMessage {
	return o.conversations.snapshot(conversationID)
}

// ClearHistory resets a conversation's message log.
func (o *Orchestrator) ClearHistory(conversationID string) {
	o.conversations.clear(conversationID)
}
