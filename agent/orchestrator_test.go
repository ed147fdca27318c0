package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/richinex/curator/docstore"
	"github.com/richinex/curator/llm"
	"github.com/richinex/curator/tools"
)

// scriptedProvider replays canned responses and records every request.
type scriptedProvider struct {
	responses []llm.Response
	errs      []error
	calls     int
	requests  [][]llm.ChatMessage
	toolSets  [][]llm.ToolDefinition
}

func (p *scriptedProvider) Name() string  { return "scripted" }
func (p *scriptedProvider) Model() string { return "scripted-1" }

func (p *scriptedProvider) Chat(ctx context.Context, messages []llm.ChatMessage) (llm.Response, error) {
	return p.ChatWithTools(ctx, messages, nil)
}

func (p *scriptedProvider) ChatWithTools(ctx context.Context, messages []llm.ChatMessage, defs []llm.ToolDefinition) (llm.Response, error) {
	p.requests = append(p.requests, messages)
	p.toolSets = append(p.toolSets, defs)
	i := p.calls
	p.calls++
	if i < len(p.errs) && p.errs[i] != nil {
		return llm.Response{}, p.errs[i]
	}
	if i >= len(p.responses) {
		return llm.Response{}, fmt.Errorf("unexpected call %d", i)
	}
	return p.responses[i], nil
}

var _ llm.Provider = (*scriptedProvider)(nil)

func newTestOrchestrator(t *testing.T, provider llm.Provider) (*Orchestrator, docstore.Store) {
	t.Helper()
	store := docstore.NewMemoryStore()
	registry, err := tools.WithStoreTools(store)
	if err != nil {
		t.Fatalf("WithStoreTools failed: %v", err)
	}
	return New(provider, registry, Options{MaxHistory: 100, ConversationTTL: time.Hour}), store
}

func toolCall(id, name string, args map[string]interface{}) llm.ToolCall {
	raw, _ := json.Marshal(args)
	return llm.ToolCall{ID: id, Name: name, Arguments: raw}
}

func TestProcessMessageNoTools(t *testing.T) {
	provider := &scriptedProvider{
		responses: []llm.Response{{Content: "Hello there."}},
	}
	orch, _ := newTestOrchestrator(t, provider)

	result := orch.ProcessMessage(context.Background(), "conv", "hi")
	if !result.Success {
		t.Fatalf("Expected success, got error %q", result.Error)
	}
	if result.Response != "Hello there." {
		t.Errorf("Unexpected response: %q", result.Response)
	}
	if len(result.ToolsUsed) != 0 {
		t.Errorf("Expected no tools used, got %v", result.ToolsUsed)
	}

	// user + assistant, exactly one model round
	history := orch.GetHistory("conv")
	if len(history) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(history))
	}
	if provider.calls != 1 {
		t.Errorf("Expected 1 model call, got %d", provider.calls)
	}
}

func TestProcessMessageWithTools(t *testing.T) {
	provider := &scriptedProvider{
		responses: []llm.Response{
			{ToolCalls: []llm.ToolCall{
				toolCall("call-1", "insert_documents", map[string]interface{}{
					"collection": "notes",
					"operation":  "insertOne",
					"document":   map[string]interface{}{"text": "remember"},
				}),
			}},
			{Content: "Stored one note."},
		},
	}
	orch, store := newTestOrchestrator(t, provider)

	result := orch.ProcessMessage(context.Background(), "conv", "save a note")
	if !result.Success {
		t.Fatalf("Expected success, got error %q", result.Error)
	}
	if result.Response != "Stored one note." {
		t.Errorf("Unexpected response: %q", result.Response)
	}
	if len(result.ToolsUsed) != 1 || result.ToolsUsed[0] != "insert_documents" {
		t.Errorf("Unexpected toolsUsed: %v", result.ToolsUsed)
	}
	if len(result.ToolResults) != 1 || !result.ToolResults[0].Success() {
		t.Fatalf("Expected one successful outcome, got %v", result.ToolResults)
	}

	count, _ := store.Count(context.Background(), "notes", docstore.Filter{})
	if count != 1 {
		t.Errorf("Expected document inserted, found %d", count)
	}

	// user + assistant-with-calls + 1 tool + final assistant
	history := orch.GetHistory("conv")
	if len(history) != 4 {
		t.Fatalf("Expected 4 messages, got %d", len(history))
	}
	if history[1].Role != llm.RoleAssistant || len(history[1].ToolCalls) != 1 {
		t.Errorf("Expected assistant tool-call message at index 1: %+v", history[1])
	}
	if history[2].Role != llm.RoleTool || history[2].ToolCallID != "call-1" {
		t.Errorf("Expected correlated tool message at index 2: %+v", history[2])
	}

	// Second round never gets tools.
	if len(provider.toolSets) != 2 {
		t.Fatalf("Expected 2 model calls, got %d", len(provider.toolSets))
	}
	if len(provider.toolSets[0]) == 0 {
		t.Error("First round should carry tool definitions")
	}
	if len(provider.toolSets[1]) != 0 {
		t.Error("Second round must not carry tool definitions")
	}
}

func TestProcessMessageUnknownTool(t *testing.T) {
	provider := &scriptedProvider{
		responses: []llm.Response{
			{ToolCalls: []llm.ToolCall{
				toolCall("call-1", "drop_everything", map[string]interface{}{}),
			}},
			{Content: "That tool does not exist."},
		},
	}
	orch, _ := newTestOrchestrator(t, provider)

	result := orch.ProcessMessage(context.Background(), "conv", "do something")
	if !result.Success {
		t.Fatalf("Unknown tool must not abort the turn, got error %q", result.Error)
	}
	if len(result.ToolResults) != 1 {
		t.Fatalf("Expected one outcome, got %d", len(result.ToolResults))
	}
	outcome := result.ToolResults[0]
	if outcome.Success() {
		t.Fatal("Expected failure outcome")
	}
	if outcome.Err.Error() != "Unknown tool: drop_everything" {
		t.Errorf("Unexpected error message: %q", outcome.Err.Error())
	}
}

func TestProcessMessageMixedBatch(t *testing.T) {
	provider := &scriptedProvider{
		responses: []llm.Response{
			{ToolCalls: []llm.ToolCall{
				toolCall("call-1", "insert_documents", map[string]interface{}{
					"collection": "notes",
					"operation":  "insertOne",
					"document":   map[string]interface{}{"text": "ok"},
				}),
				toolCall("call-2", "delete_documents", map[string]interface{}{
					"collection": "notes",
					"operation":  "deleteOne",
					"filter":     map[string]interface{}{"text": "ok"},
					// confirmDeletion missing: validation failure
				}),
				toolCall("call-3", "query_documents", map[string]interface{}{
					"collection": "notes",
					"operation":  "count",
				}),
			}},
			{Content: "Done."},
		},
	}
	orch, _ := newTestOrchestrator(t, provider)

	result := orch.ProcessMessage(context.Background(), "conv", "insert then delete then count")
	if !result.Success {
		t.Fatalf("Expected turn success, got error %q", result.Error)
	}
	if len(result.ToolResults) != 3 {
		t.Fatalf("Expected 3 outcomes, got %d", len(result.ToolResults))
	}
	if !result.ToolResults[0].Success() {
		t.Errorf("Insert should succeed: %v", result.ToolResults[0].Err)
	}
	if result.ToolResults[1].Success() {
		t.Error("Unconfirmed delete should fail")
	}
	if !result.ToolResults[2].Success() {
		t.Errorf("Count after failed sibling should still run: %v", result.ToolResults[2].Err)
	}
	// N+3 accounting: user + assistant + 3 tool + final assistant.
	history := orch.GetHistory("conv")
	if len(history) != 6 {
		t.Errorf("Expected 6 messages, got %d", len(history))
	}
}

func TestProcessMessageFirstRoundModelError(t *testing.T) {
	provider := &scriptedProvider{
		errs: []error{errors.New("upstream 503")},
	}
	orch, _ := newTestOrchestrator(t, provider)

	result := orch.ProcessMessage(context.Background(), "conv", "hi")
	if result.Success {
		t.Fatal("Expected failure result")
	}
	if result.Error != "upstream 503" {
		t.Errorf("Expected underlying error surfaced, got %q", result.Error)
	}
	if result.Response == "" {
		t.Error("Expected generic apology text")
	}
	// The user append from the failed turn remains; no rollback.
	history := orch.GetHistory("conv")
	if len(history) != 1 || history[0].Role != llm.RoleUser {
		t.Errorf("Expected only the user message, got %+v", history)
	}
}

func TestProcessMessageSecondRoundModelError(t *testing.T) {
	provider := &scriptedProvider{
		responses: []llm.Response{
			{ToolCalls: []llm.ToolCall{
				toolCall("call-1", "query_documents", map[string]interface{}{
					"collection": "notes",
					"operation":  "count",
				}),
			}},
		},
		errs: []error{nil, errors.New("upstream timeout")},
	}
	orch, _ := newTestOrchestrator(t, provider)

	result := orch.ProcessMessage(context.Background(), "conv", "count notes")
	if result.Success {
		t.Fatal("Expected failure result")
	}
	if result.Error != "upstream timeout" {
		t.Errorf("Expected underlying error surfaced, got %q", result.Error)
	}
	// Partial appends remain: user + assistant + tool.
	history := orch.GetHistory("conv")
	if len(history) != 3 {
		t.Errorf("Expected 3 partial messages, got %d", len(history))
	}
}

func TestProcessMessageFencedArguments(t *testing.T) {
	provider := &scriptedProvider{
		responses: []llm.Response{
			{ToolCalls: []llm.ToolCall{{
				ID:        "call-1",
				Name:      "query_documents",
				Arguments: json.RawMessage("```json\n{\"collection\":\"notes\",\"operation\":\"count\"}\n```"),
			}}},
			{Content: "Zero notes."},
		},
	}
	orch, _ := newTestOrchestrator(t, provider)

	result := orch.ProcessMessage(context.Background(), "conv", "count")
	if !result.Success {
		t.Fatalf("Expected success, got error %q", result.Error)
	}
	if !result.ToolResults[0].Success() {
		t.Errorf("Fenced arguments should be normalized: %v", result.ToolResults[0].Err)
	}
}

func TestConversationsAreIsolated(t *testing.T) {
	provider := &scriptedProvider{
		responses: []llm.Response{{Content: "a"}, {Content: "b"}},
	}
	orch, _ := newTestOrchestrator(t, provider)

	orch.ProcessMessage(context.Background(), "one", "first")
	orch.ProcessMessage(context.Background(), "two", "second")

	if len(orch.GetHistory("one")) != 2 || len(orch.GetHistory("two")) != 2 {
		t.Error("Each conversation should hold only its own messages")
	}
}

func TestClearHistory(t *testing.T) {
	provider := &scriptedProvider{
		responses: []llm.Response{{Content: "hello"}},
	}
	orch, _ := newTestOrchestrator(t, provider)

	orch.ProcessMessage(context.Background(), "conv", "hi")
	orch.ClearHistory("conv")
	if len(orch.GetHistory("conv")) != 0 {
		t.Error("Expected empty history after clear")
	}
}

func TestConversationEviction(t *testing.T) {
	set := newConversationSet(time.Minute, 0)
	base := time.Now()
	now := base
	set.now = func() time.Time { return now }

	conv := set.acquire("old")
	conv.messages = append(conv.messages, llm.UserMessage("hi"))
	set.release(conv)

	now = base.Add(2 * time.Minute)
	fresh := set.acquire("old")
	if len(fresh.messages) != 0 {
		t.Error("Expected idle conversation evicted and recreated empty")
	}
	set.release(fresh)
}

func TestSweepSkipsInFlightTurns(t *testing.T) {
	set := newConversationSet(time.Minute, 0)
	base := time.Now()
	now := base
	set.now = func() time.Time { return now }

	busy := set.acquire("busy")
	busy.messages = append(busy.messages, llm.UserMessage("hi"))

	// A turn on another conversation sweeps well past the TTL while
	// "busy" has not released yet.
	now = base.Add(2 * time.Minute)
	other := set.acquire("other")
	set.release(other)

	same := set.acquire("busy")
	if same != busy || len(same.messages) != 1 {
		t.Error("Expected in-flight conversation to survive the sweep")
	}
	set.release(same)
	set.release(busy)
}

// steadyProvider answers every request with fixed content and holds no
// state, so it is safe for concurrent use.
type steadyProvider struct{}

func (steadyProvider) Name() string  { return "steady" }
func (steadyProvider) Model() string { return "steady-1" }

func (steadyProvider) Chat(ctx context.Context, messages []llm.ChatMessage) (llm.Response, error) {
	return llm.Response{Content: "ok"}, nil
}

func (steadyProvider) ChatWithTools(ctx context.Context, messages []llm.ChatMessage, defs []llm.ToolDefinition) (llm.Response, error) {
	return llm.Response{Content: "ok"}, nil
}

var _ llm.Provider = steadyProvider{}

func TestConcurrentTurnsAcrossConversations(t *testing.T) {
	store := docstore.NewMemoryStore()
	registry, err := tools.WithStoreTools(store)
	if err != nil {
		t.Fatalf("WithStoreTools failed: %v", err)
	}
	// A nanosecond TTL forces every acquire to sweep, so idle-clock
	// reads race with concurrent turns unless both are set-guarded.
	orch := New(steadyProvider{}, registry, Options{ConversationTTL: time.Nanosecond})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("conv-%d", i)
			for j := 0; j < 20; j++ {
				if result := orch.ProcessMessage(context.Background(), id, "hi"); !result.Success {
					t.Errorf("Turn failed on %s: %s", id, result.Error)
					return
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestHistoryTrimDropsOrphanedToolMessages(t *testing.T) {
	conv := &conversation{messages: []llm.ChatMessage{
		llm.UserMessage("u1"),
		llm.AssistantMessageWithToolCalls("", []llm.ToolCall{{ID: "c1", Name: "x"}}),
		llm.ToolMessage("c1", "{}"),
		llm.AssistantMessage("a1"),
		llm.UserMessage("u2"),
		llm.AssistantMessage("a2"),
	}}

	conv.trim(5)
	if len(conv.messages) != 4 {
		t.Fatalf("Expected orphaned tool message dropped, got %d messages", len(conv.messages))
	}
	if conv.messages[0].Role != llm.RoleAssistant {
		t.Errorf("Expected log to start at the surviving assistant message, got %+v", conv.messages[0])
	}
}

func TestGetToolInfo(t *testing.T) {
	provider := &scriptedProvider{}
	orch, _ := newTestOrchestrator(t, provider)

	info := orch.GetToolInfo()
	if len(info) != 4 {
		t.Fatalf("Expected 4 tools, got %d", len(info))
	}
	// Each entry round-trips the registered contract unchanged.
	for _, meta := range orch.GetAvailableTools() {
		entry, ok := info[meta.Name]
		if !ok {
			t.Fatalf("Expected %s in tool info", meta.Name)
		}
		if entry.Description != meta.Description {
			t.Errorf("%s description diverges from registered contract", meta.Name)
		}
		if !reflect.DeepEqual(entry.ParameterSchema, meta.Parameters) {
			t.Errorf("%s parameter schema diverges from registered contract", meta.Name)
		}
	}
}

func TestGetAvailableToolsOrder(t *testing.T) {
	provider := &scriptedProvider{}
	orch, _ := newTestOrchestrator(t, provider)

	metadata := orch.GetAvailableTools()
	want := []string{"query_documents", "insert_documents", "update_documents", "delete_documents"}
	if len(metadata) != len(want) {
		t.Fatalf("Expected %d tools, got %d", len(want), len(metadata))
	}
	for i, name := range want {
		if metadata[i].Name != name {
			t.Errorf("Expected %s at %d, got %s", name, i, metadata[i].Name)
		}
	}
}

func TestPanickingToolIsIsolated(t *testing.T) {
	store := docstore.NewMemoryStore()
	registry, err := tools.WithStoreTools(store)
	if err != nil {
		t.Fatalf("WithStoreTools failed: %v", err)
	}
	if err := registry.Register(&panicTool{}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	provider := &scriptedProvider{
		responses: []llm.Response{
			{ToolCalls: []llm.ToolCall{
				toolCall("call-1", "panic_tool", map[string]interface{}{}),
				toolCall("call-2", "query_documents", map[string]interface{}{
					"collection": "notes",
					"operation":  "count",
				}),
			}},
			{Content: "Survived."},
		},
	}
	orch := New(provider, registry, Options{})

	result := orch.ProcessMessage(context.Background(), "conv", "go")
	if !result.Success {
		t.Fatalf("Panicking tool must not abort the turn, got error %q", result.Error)
	}
	if result.ToolResults[0].Success() {
		t.Error("Expected panic converted to failure outcome")
	}
	if !result.ToolResults[1].Success() {
		t.Errorf("Sibling call should still run: %v", result.ToolResults[1].Err)
	}
}

type panicTool struct {
	tools.BaseTool
}

func (t *panicTool) Metadata() tools.ToolMetadata {
	return tools.ToolMetadata{Name: "panic_tool", Description: "always panics"}
}

func (t *panicTool) Execute(ctx context.Context, args json.RawMessage) (tools.Outcome, error) {
	panic("boom")
}
