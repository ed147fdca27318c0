// Package main provides the curator CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/richinex/curator/cli"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	provider  string
	storePath string
	inMemory  bool
	verbose   bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "curator",
		Short: "LLM agent over a safety-constrained document store",
		Long: `A CLI for a tool-calling LLM agent that reads and edits a document store.

The agent advertises four store tools (query, insert, update, delete) to the
model; destructive operations are guarded by confirmation flags, result caps,
and bulk-size limits.`,
	}

	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "LLM provider (openai, anthropic, deepseek, gemini)")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "SQLite store path (default .curator/curator.db)")
	rootCmd.PersistentFlags().BoolVar(&inMemory, "in-memory", false, "Use an in-memory store instead of SQLite")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show tool outcomes")

	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(toolsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func options() cli.Options {
	return cli.Options{
		Provider:  provider,
		StorePath: storePath,
		InMemory:  inMemory,
		Verbose:   verbose,
	}
}

func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [message]",
		Short: "Send a single message to the agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Ask(context.Background(), args[0], options())
		},
	}
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Chat(context.Background(), options())
		},
	}
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Serve(options(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from CURATOR_ADDR or :8080)")
	return cmd
}

func toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the registered store tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ListTools(options())
		},
	}
}
