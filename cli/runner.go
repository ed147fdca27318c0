// Command execution for CLI commands.
//
// Information Hiding:
// - Provider, store, and orchestrator setup hidden
// - Output formatting hidden

package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/richinex/curator/agent"
	"github.com/richinex/curator/config"
	"github.com/richinex/curator/docstore"
	"github.com/richinex/curator/llm"
	"github.com/richinex/curator/server"
	"github.com/richinex/curator/tools"
)

// Options holds CLI execution options.
type Options struct {
	Provider  string
	StorePath string
	InMemory  bool
	Verbose   bool
}

// Ask sends a single message through the orchestrator and prints the answer.
func Ask(ctx context.Context, message string, opts Options) error {
	orch, store, _, err := buildOrchestrator(opts)
	if err != nil {
		return err
	}
	defer store.Close()

	result := orch.ProcessMessage(ctx, uuid.NewString(), message)
	return printResult(result, opts.Verbose)
}

// Chat starts an interactive chat session sharing one conversation.
func Chat(ctx context.Context, opts Options) error {
	orch, store, _, err := buildOrchestrator(opts)
	if err != nil {
		return err
	}
	defer store.Close()

	conversationID := uuid.NewString()
	fmt.Println("Chat session started. Type 'exit' to quit, 'clear' to reset history.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "clear":
			orch.ClearHistory(conversationID)
			fmt.Println("History cleared.")
			continue
		}

		result := orch.ProcessMessage(ctx, conversationID, line)
		if err := printResult(result, opts.Verbose); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
	return scanner.Err()
}

// Serve runs the HTTP server until it exits. An empty addr falls back
// to the configured server address.
func Serve(opts Options, addr string) error {
	orch, store, settings, err := buildOrchestrator(opts)
	if err != nil {
		return err
	}
	defer store.Close()

	if addr == "" {
		addr = settings.Curator.Addr
	}
	fmt.Printf("Listening on %s\n", addr)
	return server.New(orch, store).Run(addr)
}

// ListTools prints the registered tool contracts.
func ListTools(opts Options) error {
	store := docstore.NewMemoryStore()
	registry, err := tools.WithStoreTools(store)
	if err != nil {
		return err
	}

	if !opts.Verbose {
		fmt.Println(registry.Description())
		return nil
	}

	for _, meta := range registry.List() {
		fmt.Printf("%s\n", meta.Name)
		fmt.Printf("  %s\n", meta.Description)
		if props, ok := meta.Parameters["properties"].(map[string]interface{}); ok {
			for name := range props {
				fmt.Printf("  - %s\n", name)
			}
		}
		fmt.Println()
	}
	return nil
}

// buildOrchestrator assembles the store, tools, provider, and
// orchestrator from options and environment configuration.
func buildOrchestrator(opts Options) (*agent.Orchestrator, docstore.Store, config.Settings, error) {
	provider, settings, err := createProvider(opts.Provider)
	if err != nil {
		return nil, nil, config.Settings{}, err
	}

	store, err := createStore(opts, settings)
	if err != nil {
		return nil, nil, config.Settings{}, err
	}

	registry, err := tools.WithStoreTools(store)
	if err != nil {
		store.Close()
		return nil, nil, config.Settings{}, err
	}

	orch := agent.New(provider, registry, agent.Options{
		MaxHistory:      settings.Curator.MaxHistory,
		ConversationTTL: settings.Curator.ConversationTTL,
	})
	return orch, store, settings, nil
}

func createStore(opts Options, settings config.Settings) (docstore.Store, error) {
	if opts.InMemory {
		return docstore.NewMemoryStore(), nil
	}
	path := opts.StorePath
	if path == "" {
		path = settings.Curator.StorePath
	}
	return docstore.OpenSqlite(path)
}

func createProvider(providerName string) (llm.Provider, config.Settings, error) {
	if providerName == "" {
		return nil, config.Settings{}, fmt.Errorf("--provider is required for this command")
	}

	providerType, err := llm.ParseProviderType(providerName)
	if err != nil {
		return nil, config.Settings{}, err
	}

	settings, err := config.New(providerName)
	if err != nil {
		return nil, config.Settings{}, err
	}

	apiKey, err := config.APIKeyFor(providerName)
	if err != nil {
		return nil, config.Settings{}, err
	}

	provider, err := providerType.
		Model(settings.LLM.Model).
		MaxTokens(settings.LLM.MaxTokens).
		Temperature(float32(settings.LLM.Temperature)).
		APIKey(apiKey)
	if err != nil {
		return nil, config.Settings{}, err
	}
	return provider, settings, nil
}

func printResult(result agent.Result, verbose bool) error {
	if !result.Success {
		return fmt.Errorf("%s", result.Error)
	}
	if verbose && len(result.ToolsUsed) > 0 {
		fmt.Printf("[tools: %s]\n", strings.Join(result.ToolsUsed, ", "))
		for _, outcome := range result.ToolResults {
			fmt.Printf("  %s\n", outcome.Encode())
		}
	}
	fmt.Println(result.Response)
	return nil
}
